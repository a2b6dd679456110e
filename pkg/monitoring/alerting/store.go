// Package alerting 提供告警规则的配置存储
package alerting

import (
	"context"
	"fmt"
	"sync"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// RuleEventType 表示规则配置变更事件类型
type RuleEventType string

const (
	// RuleEventPut 规则新增或更新
	RuleEventPut RuleEventType = "put"
	// RuleEventDelete 规则删除
	RuleEventDelete RuleEventType = "delete"
)

// RuleEvent 表示一次规则配置变更
type RuleEvent struct {
	Type   RuleEventType
	RuleID string
	Rule   *models.AlertRule
}

// RuleStore 告警规则配置存储接口。默认使用内存实现，
// 进程重启后规则清空；etcd实现提供跨重启的规则持久化。
type RuleStore interface {
	// LoadRules 加载全部规则
	LoadRules(ctx context.Context) ([]*models.AlertRule, error)
	// SaveRule 保存规则
	SaveRule(ctx context.Context, rule *models.AlertRule) error
	// DeleteRule 删除规则
	DeleteRule(ctx context.Context, id string) error
	// WatchRules 监听规则变更，通道在ctx取消后关闭
	WatchRules(ctx context.Context) (<-chan RuleEvent, error)
}

// MemoryRuleStore 内存规则存储
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]*models.AlertRule
}

// NewMemoryRuleStore 创建内存规则存储
func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{
		rules: make(map[string]*models.AlertRule),
	}
}

// LoadRules 加载全部规则
func (s *MemoryRuleStore) LoadRules(ctx context.Context) ([]*models.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]*models.AlertRule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, rule)
	}
	return rules, nil
}

// SaveRule 保存规则
func (s *MemoryRuleStore) SaveRule(ctx context.Context, rule *models.AlertRule) error {
	if rule.ID == "" {
		return fmt.Errorf("规则ID不能为空")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return nil
}

// DeleteRule 删除规则
func (s *MemoryRuleStore) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

// WatchRules 内存存储没有外部变更来源，通道在ctx取消后关闭
func (s *MemoryRuleStore) WatchRules(ctx context.Context) (<-chan RuleEvent, error) {
	ch := make(chan RuleEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
