// Package escalation 实现未确认告警的周期性升级扫描
package escalation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/common"
	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// DefaultScanInterval 默认扫描周期
const DefaultScanInterval = 2 * time.Minute

// AlertSource 未解决告警的来源，由告警管理器实现
type AlertSource interface {
	GetActiveAlerts() []*models.Alert
}

// Dispatcher 升级通知分发接口
type Dispatcher interface {
	Dispatch(alert *models.Alert, channelIDs []string, eventType string)
}

// Config 升级监控器配置
type Config struct {
	// Source 告警来源
	Source AlertSource
	// Dispatcher 通知分发器
	Dispatcher Dispatcher
	// Logger 日志记录器
	Logger *zap.Logger
	// ScanInterval 扫描周期，0使用默认值
	ScanInterval time.Duration
}

// Monitor 升级监控器。周期性扫描处于active状态的告警，
// 对超过升级规则时限仍未确认的告警向升级渠道补发通知。
// 每个(告警, 升级规则)组合最多升级一次。
type Monitor struct {
	source     AlertSource
	dispatcher Dispatcher
	logger     *zap.Logger
	validate   *validator.Validate
	interval   time.Duration

	mu    sync.RWMutex
	rules map[string]*models.EscalationRule
	fired map[string]struct{}

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New 创建升级监控器
func New(config Config) *Monitor {
	if config.Logger == nil {
		config.Logger, _ = zap.NewProduction()
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultScanInterval
	}

	return &Monitor{
		source:     config.Source,
		dispatcher: config.Dispatcher,
		logger:     config.Logger,
		validate:   validator.New(),
		interval:   config.ScanInterval,
		rules:      make(map[string]*models.EscalationRule),
		fired:      make(map[string]struct{}),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start 启动周期扫描
func (m *Monitor) Start() {
	go m.run()
	m.logger.Info("升级监控器已启动", zap.Duration("interval", m.interval))
}

// Stop 停止周期扫描，等待当前扫描完成
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stopCh) })
	<-m.doneCh
	m.logger.Info("升级监控器已停止")
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Scan()
		case <-m.stopCh:
			return
		}
	}
}

// AddRule 添加升级规则，名称唯一
func (m *Monitor) AddRule(rule *models.EscalationRule) error {
	if err := m.validate.Struct(rule); err != nil {
		return common.NewValidationError(fmt.Sprintf("升级规则校验失败: %v", err), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[rule.Name]; exists {
		return common.NewConflictError(fmt.Sprintf("升级规则已存在: %s", rule.Name), nil)
	}
	m.rules[rule.Name] = rule

	m.logger.Info("添加升级规则",
		zap.String("name", rule.Name),
		zap.Duration("after", rule.After))
	return nil
}

// UpdateRule 更新升级规则
func (m *Monitor) UpdateRule(rule *models.EscalationRule) error {
	if err := m.validate.Struct(rule); err != nil {
		return common.NewValidationError(fmt.Sprintf("升级规则校验失败: %v", err), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[rule.Name]; !exists {
		return common.NewNotFoundError(fmt.Sprintf("升级规则不存在: %s", rule.Name), nil)
	}
	m.rules[rule.Name] = rule
	return nil
}

// RemoveRule 删除升级规则
func (m *Monitor) RemoveRule(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[name]; !exists {
		return common.NewNotFoundError(fmt.Sprintf("升级规则不存在: %s", name), nil)
	}
	delete(m.rules, name)

	m.logger.Info("删除升级规则", zap.String("name", name))
	return nil
}

// GetRules 获取全部升级规则
func (m *Monitor) GetRules() []*models.EscalationRule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]*models.EscalationRule, 0, len(m.rules))
	for _, rule := range m.rules {
		rules = append(rules, rule)
	}
	return rules
}

// Scan 执行一轮升级扫描。只有仍处于active状态的告警参与升级，
// 已确认与已解决的告警不再升级。时限为0的规则不参与周期扫描。
func (m *Monitor) Scan() {
	if m.source == nil {
		return
	}

	alerts := m.source.GetActiveAlerts()
	now := time.Now()

	m.mu.RLock()
	rules := make([]*models.EscalationRule, 0, len(m.rules))
	for _, rule := range m.rules {
		if rule.Enabled && rule.After > 0 {
			rules = append(rules, rule)
		}
	}
	m.mu.RUnlock()

	live := make(map[string]struct{}, len(alerts))
	escalated := 0

	for _, alert := range alerts {
		live[alert.ID] = struct{}{}
		if alert.Status != models.AlertStatusActive {
			continue
		}

		for _, rule := range rules {
			if !rule.MatchesSeverity(alert.Severity) {
				continue
			}
			if now.Sub(alert.CreatedAt) < rule.After {
				continue
			}
			if !m.markFired(alert.ID, rule.Name) {
				continue
			}

			m.escalate(alert, rule)
			escalated++
		}
	}

	m.pruneFired(live)

	if escalated > 0 {
		m.logger.Info("升级扫描完成", zap.Int("escalated", escalated))
	}
}

// escalate 向升级渠道投递通知，规则的消息覆盖写入告警描述
func (m *Monitor) escalate(alert *models.Alert, rule *models.EscalationRule) {
	m.logger.Warn("告警升级",
		zap.String("alert", alert.ID),
		zap.String("rule", rule.Name),
		zap.String("severity", string(alert.Severity)),
		zap.Duration("age", time.Since(alert.CreatedAt)))

	if m.dispatcher == nil {
		return
	}

	outgoing := alert.Clone()
	if rule.Message != "" {
		outgoing.Description = rule.Message
	}
	m.dispatcher.Dispatch(outgoing, rule.Channels, "escalated")
}

// markFired 标记(告警, 规则)组合已升级，已标记过返回false
func (m *Monitor) markFired(alertID, ruleName string) bool {
	key := alertID + "|" + ruleName
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.fired[key]; exists {
		return false
	}
	m.fired[key] = struct{}{}
	return true
}

// pruneFired 清理已不在未解决集合中的告警的升级标记
func (m *Monitor) pruneFired(live map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.fired {
		alertID := key
		if idx := strings.IndexByte(key, '|'); idx >= 0 {
			alertID = key[:idx]
		}
		if _, ok := live[alertID]; !ok {
			delete(m.fired, key)
		}
	}
}
