package alerting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/common"
	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// AddRule 添加告警规则。ID为空时自动生成，
// 校验通过后写入存储并立即生效。
func (m *Manager) AddRule(ctx context.Context, rule *models.AlertRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	if err := m.validate.Struct(rule); err != nil {
		return common.NewValidationError(fmt.Sprintf("告警规则校验失败: %v", err), err)
	}

	m.mu.Lock()
	if _, exists := m.rules[rule.ID]; exists {
		m.mu.Unlock()
		return common.NewConflictError(fmt.Sprintf("告警规则已存在: %s", rule.ID), nil)
	}
	m.rules[rule.ID] = rule
	m.mu.Unlock()

	if err := m.store.SaveRule(ctx, rule); err != nil {
		m.mu.Lock()
		delete(m.rules, rule.ID)
		m.mu.Unlock()
		return fmt.Errorf("保存告警规则失败: %w", err)
	}

	m.logger.Info("添加告警规则",
		zap.String("id", rule.ID),
		zap.String("name", rule.Name),
		zap.String("metric", rule.Metric))
	return nil
}

// UpdateRule 更新已存在的告警规则，签名轨道保持不变
func (m *Manager) UpdateRule(ctx context.Context, rule *models.AlertRule) error {
	if err := m.validate.Struct(rule); err != nil {
		return common.NewValidationError(fmt.Sprintf("告警规则校验失败: %v", err), err)
	}

	m.mu.Lock()
	if _, exists := m.rules[rule.ID]; !exists {
		m.mu.Unlock()
		return common.NewNotFoundError(fmt.Sprintf("告警规则不存在: %s", rule.ID), nil)
	}
	m.rules[rule.ID] = rule
	m.mu.Unlock()

	if err := m.store.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("保存告警规则失败: %w", err)
	}

	m.logger.Info("更新告警规则", zap.String("id", rule.ID))
	return nil
}

// DeleteRule 删除告警规则，已触发的告警不受影响
func (m *Manager) DeleteRule(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, exists := m.rules[id]; !exists {
		m.mu.Unlock()
		return common.NewNotFoundError(fmt.Sprintf("告警规则不存在: %s", id), nil)
	}
	delete(m.rules, id)
	m.mu.Unlock()

	if err := m.store.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("删除告警规则失败: %w", err)
	}

	m.logger.Info("删除告警规则", zap.String("id", id))
	return nil
}

// ToggleRule 启用或禁用告警规则。禁用后停止评估，
// 签名轨道的计数与冷却时间保留，重新启用后继续生效。
func (m *Manager) ToggleRule(ctx context.Context, id string, enabled bool) error {
	m.mu.Lock()
	rule, exists := m.rules[id]
	if !exists {
		m.mu.Unlock()
		return common.NewNotFoundError(fmt.Sprintf("告警规则不存在: %s", id), nil)
	}
	rule.Enabled = enabled
	m.mu.Unlock()

	if err := m.store.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("保存告警规则失败: %w", err)
	}

	m.logger.Info("切换告警规则状态",
		zap.String("id", id),
		zap.Bool("enabled", enabled))
	return nil
}

// GetRule 获取指定ID告警规则的快照副本
func (m *Manager) GetRule(id string) (*models.AlertRule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, exists := m.rules[id]
	if !exists {
		return nil, false
	}
	return rule.Clone(), true
}

// GetRules 获取全部告警规则的快照副本
func (m *Manager) GetRules() []*models.AlertRule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]*models.AlertRule, 0, len(m.rules))
	for _, rule := range m.rules {
		rules = append(rules, rule.Clone())
	}
	return rules
}
