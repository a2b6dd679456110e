// Package alerting 提供基于etcd的告警规则存储实现
package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// EtcdRuleStoreConfig etcd规则存储配置
type EtcdRuleStoreConfig struct {
	// Client etcd客户端
	Client *clientv3.Client
	// Prefix 规则存储前缀
	Prefix string
	// Logger 日志记录器
	Logger *zap.Logger
}

// EtcdRuleStore 基于etcd的规则存储，规则变更通过watch下发
type EtcdRuleStore struct {
	client *clientv3.Client
	prefix string
	logger *zap.Logger
}

// NewEtcdRuleStore 创建etcd规则存储
func NewEtcdRuleStore(config EtcdRuleStoreConfig) (*EtcdRuleStore, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("etcd客户端不能为空")
	}
	if config.Prefix == "" {
		config.Prefix = "/clubmon/alert-rules/"
	}
	if config.Logger == nil {
		config.Logger, _ = zap.NewProduction()
	}

	return &EtcdRuleStore{
		client: config.Client,
		prefix: config.Prefix,
		logger: config.Logger,
	}, nil
}

// LoadRules 从etcd加载全部规则
func (s *EtcdRuleStore) LoadRules(ctx context.Context) ([]*models.AlertRule, error) {
	resp, err := s.client.Get(ctx, s.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("从etcd加载告警规则失败: %w", err)
	}

	rules := make([]*models.AlertRule, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		rule := &models.AlertRule{}
		if err := json.Unmarshal(kv.Value, rule); err != nil {
			s.logger.Error("解析告警规则失败",
				zap.String("key", string(kv.Key)),
				zap.Error(err))
			continue
		}
		rules = append(rules, rule)
	}

	s.logger.Info("从etcd加载告警规则完成", zap.Int("count", len(rules)))
	return rules, nil
}

// SaveRule 保存规则到etcd
func (s *EtcdRuleStore) SaveRule(ctx context.Context, rule *models.AlertRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("序列化告警规则失败: %w", err)
	}

	key := path.Join(s.prefix, rule.ID)
	if _, err := s.client.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("存储告警规则到etcd失败: %w", err)
	}
	return nil
}

// DeleteRule 从etcd删除规则
func (s *EtcdRuleStore) DeleteRule(ctx context.Context, id string) error {
	key := path.Join(s.prefix, id)
	if _, err := s.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("从etcd删除告警规则失败: %w", err)
	}
	return nil
}

// WatchRules 监听etcd中的规则变更
func (s *EtcdRuleStore) WatchRules(ctx context.Context) (<-chan RuleEvent, error) {
	events := make(chan RuleEvent)

	go func() {
		defer close(events)

		watchChan := s.client.Watch(ctx, s.prefix, clientv3.WithPrefix())
		for resp := range watchChan {
			if err := resp.Err(); err != nil {
				s.logger.Error("etcd规则监听出错", zap.Error(err))
				continue
			}

			for _, ev := range resp.Events {
				ruleID := path.Base(string(ev.Kv.Key))

				switch ev.Type {
				case clientv3.EventTypePut:
					rule := &models.AlertRule{}
					if err := json.Unmarshal(ev.Kv.Value, rule); err != nil {
						s.logger.Error("解析更新的告警规则失败",
							zap.String("id", ruleID),
							zap.Error(err))
						continue
					}
					select {
					case events <- RuleEvent{Type: RuleEventPut, RuleID: ruleID, Rule: rule}:
					case <-ctx.Done():
						return
					}

				case clientv3.EventTypeDelete:
					select {
					case events <- RuleEvent{Type: RuleEventDelete, RuleID: ruleID}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return events, nil
}
