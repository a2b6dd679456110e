// Package notifier 提供通知分发与渠道管理功能
package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/common"
	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// EventTypeTriggered 触发事件
const EventTypeTriggered = "triggered"

// EventTypeResolved 解决事件
const EventTypeResolved = "resolved"

// EventTypeEscalated 升级事件
const EventTypeEscalated = "escalated"

// Config 通知分发器配置
type Config struct {
	// Factory 发送器工厂，为空时使用默认工厂
	Factory SenderFactory
	// Logger 日志记录器
	Logger *zap.Logger
	// RetryBackoff 首次重试的退避时间，之后指数增长，默认30秒
	RetryBackoff time.Duration
	// MaxRetries 失败后的最大重试次数，默认2
	MaxRetries int
	// HistorySize 通知历史的容量上限，默认1000
	HistorySize int
}

// Manager 通知分发器，持有渠道配置并负责通知投递
type Manager struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	senders  map[string]Sender

	factory  SenderFactory
	validate *validator.Validate
	logger   *zap.Logger
	history  *history

	retryBackoff time.Duration
	maxRetries   int

	// onNotified 在某渠道成功投递后回调，由告警的所有者同步更新已通知列表
	onNotified func(alertID, channelID string)

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// NewManager 创建新的通知分发器
func NewManager(config Config) *Manager {
	if config.Logger == nil {
		config.Logger, _ = zap.NewProduction()
	}
	if config.Factory == nil {
		config.Factory = NewDefaultFactory(config.Logger)
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	} else if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.HistorySize <= 0 {
		config.HistorySize = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		channels:     make(map[string]*Channel),
		senders:      make(map[string]Sender),
		factory:      config.Factory,
		validate:     validator.New(),
		logger:       config.Logger,
		history:      newHistory(config.HistorySize),
		retryBackoff: config.RetryBackoff,
		maxRetries:   config.MaxRetries,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetNotifiedCallback 设置成功投递后的回调
func (m *Manager) SetNotifiedCallback(fn func(alertID, channelID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNotified = fn
}

// Stop 停止分发器，取消在途的重试等待
func (m *Manager) Stop() {
	m.cancel()
	m.inflight.Wait()
	m.logger.Info("通知分发器已停止")
}

// Flush 等待全部在途投递完成
func (m *Manager) Flush() {
	m.inflight.Wait()
}

// AddChannel 添加一个通知渠道，配置非法时返回验证错误
func (m *Manager) AddChannel(channel *Channel) error {
	if channel.ID == "" {
		channel.ID = uuid.New().String()
	}

	if err := m.validate.Struct(channel); err != nil {
		return common.NewValidationError("渠道配置验证失败", err)
	}
	if !IsSupportedChannelType(channel.Type) {
		return common.NewValidationError(fmt.Sprintf("不支持的渠道类型: %s", channel.Type), nil)
	}

	// 创建发送器以验证类型相关的配置
	sender, err := m.factory.CreateSender(channel)
	if err != nil {
		return common.NewValidationError("渠道配置无效", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channels[channel.ID]; exists {
		return common.NewConflictError(fmt.Sprintf("渠道ID已存在: %s", channel.ID), nil)
	}

	now := time.Now()
	channel.CreatedAt = now
	channel.UpdatedAt = now
	m.channels[channel.ID] = channel
	m.senders[channel.ID] = sender

	m.logger.Info("添加通知渠道",
		zap.String("id", channel.ID),
		zap.String("name", channel.Name),
		zap.String("type", string(channel.Type)))
	return nil
}

// UpdateChannel 更新一个通知渠道
func (m *Manager) UpdateChannel(channel *Channel) error {
	if channel.ID == "" {
		return common.NewValidationError("渠道ID不能为空", nil)
	}
	if err := m.validate.Struct(channel); err != nil {
		return common.NewValidationError("渠道配置验证失败", err)
	}

	sender, err := m.factory.CreateSender(channel)
	if err != nil {
		return common.NewValidationError("渠道配置无效", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.channels[channel.ID]
	if !exists {
		return common.NewNotFoundError(fmt.Sprintf("渠道不存在: %s", channel.ID), nil)
	}

	channel.CreatedAt = existing.CreatedAt
	channel.UpdatedAt = time.Now()
	m.channels[channel.ID] = channel
	m.senders[channel.ID] = sender

	m.logger.Info("更新通知渠道", zap.String("id", channel.ID))
	return nil
}

// RemoveChannel 删除一个通知渠道
func (m *Manager) RemoveChannel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channels[id]; !exists {
		return common.NewNotFoundError(fmt.Sprintf("渠道不存在: %s", id), nil)
	}

	delete(m.channels, id)
	delete(m.senders, id)
	m.logger.Info("删除通知渠道", zap.String("id", id))
	return nil
}

// ToggleChannel 启用或禁用一个通知渠道
func (m *Manager) ToggleChannel(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	channel, exists := m.channels[id]
	if !exists {
		return common.NewNotFoundError(fmt.Sprintf("渠道不存在: %s", id), nil)
	}

	channel.Enabled = enabled
	channel.UpdatedAt = time.Now()
	m.logger.Info("切换通知渠道状态", zap.String("id", id), zap.Bool("enabled", enabled))
	return nil
}

// GetChannel 获取指定ID渠道的快照副本
func (m *Manager) GetChannel(id string) (*Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channel, exists := m.channels[id]
	if !exists {
		return nil, common.NewNotFoundError(fmt.Sprintf("渠道不存在: %s", id), nil)
	}
	return channel.Clone(), nil
}

// GetChannels 获取全部渠道的快照副本
func (m *Manager) GetChannels() []*Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels := make([]*Channel, 0, len(m.channels))
	for _, c := range m.channels {
		channels = append(channels, c.Clone())
	}
	return channels
}

// Dispatch 将告警分发到指定渠道，各渠道相互独立、并发投递，
// 调用立即返回，投递与重试在后台进行。
func (m *Manager) Dispatch(alert *models.Alert, channelIDs []string, eventType string) {
	if alert == nil {
		m.logger.Error("尝试分发空告警")
		return
	}

	// 投递使用告警快照，分发器不持有告警的可变状态
	snapshot := alert.Clone()

	for _, id := range channelIDs {
		m.mu.RLock()
		channel, exists := m.channels[id]
		var sender Sender
		if exists {
			sender = m.senders[id]
		}
		m.mu.RUnlock()

		if !exists {
			m.logger.Debug("跳过未知渠道", zap.String("channel", id), zap.String("alert", alert.ID))
			continue
		}
		if !channel.Enabled {
			m.logger.Debug("跳过禁用渠道", zap.String("channel", id), zap.String("alert", alert.ID))
			continue
		}

		m.inflight.Add(1)
		go func(channel *Channel, sender Sender) {
			defer m.inflight.Done()
			m.deliver(channel, sender, snapshot, eventType)
		}(channel, sender)
	}
}

// deliver 向单个渠道投递，失败时按指数退避重试
func (m *Manager) deliver(channel *Channel, sender Sender, alert *models.Alert, eventType string) {
	for attempt := 1; attempt <= m.maxRetries+1; attempt++ {
		result, err := sender.Send(alert, eventType)
		if result == nil {
			result = &NotificationResult{
				AlertID:     alert.ID,
				ChannelID:   channel.ID,
				ChannelName: channel.Name,
				ChannelType: channel.Type,
				EventType:   eventType,
				Timestamp:   time.Now(),
			}
		}
		result.Attempt = attempt
		if err != nil && result.Error == "" {
			result.Error = err.Error()
		}

		m.history.record(*result)

		if result.Success {
			m.logger.Info("通知发送成功",
				zap.String("alert", alert.ID),
				zap.String("channel", channel.ID),
				zap.String("event_type", eventType),
				zap.Int("attempt", attempt))

			m.mu.RLock()
			callback := m.onNotified
			m.mu.RUnlock()
			if callback != nil {
				callback(alert.ID, channel.ID)
			}
			return
		}

		m.logger.Warn("通知发送失败",
			zap.String("alert", alert.ID),
			zap.String("channel", channel.ID),
			zap.String("error", result.Error),
			zap.Int("attempt", attempt))

		if attempt > m.maxRetries {
			break
		}

		// 退避等待：30s、60s…，停止时放弃重试
		backoff := m.retryBackoff << (attempt - 1)
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(backoff):
		}
	}

	m.logger.Error("通知发送重试耗尽，放弃投递",
		zap.String("alert", alert.ID),
		zap.String("channel", channel.ID))
}

// TestChannel 向指定渠道发送一条测试通知，同步返回结果
func (m *Manager) TestChannel(id string) (*NotificationResult, error) {
	m.mu.RLock()
	channel, exists := m.channels[id]
	var sender Sender
	if exists {
		sender = m.senders[id]
	}
	m.mu.RUnlock()

	if !exists {
		return nil, common.NewNotFoundError(fmt.Sprintf("渠道不存在: %s", id), nil)
	}
	if !channel.Enabled {
		return nil, common.NewValidationError(fmt.Sprintf("渠道已禁用: %s", id), nil)
	}

	testAlert := &models.Alert{
		ID:        "test-" + uuid.New().String(),
		RuleID:    "test",
		RuleName:  "测试通知",
		Metric:    "test_metric",
		Severity:  models.AlertSeverityInfo,
		Value:     1,
		Threshold: 0,
		Condition: models.ConditionGreaterThan,
		Status:    models.AlertStatusActive,
		CreatedAt: time.Now(),
	}

	result, err := sender.Send(testAlert, "test")
	if err != nil {
		return nil, fmt.Errorf("发送测试通知失败: %w", err)
	}
	return result, nil
}

// HasNotified 检查指定的(告警, 渠道)组合是否已成功通知过
func (m *Manager) HasNotified(alertID, channelID string) bool {
	return m.history.hasSucceeded(alertID, channelID)
}

// History 返回最近的通知结果，最新的在末尾
func (m *Manager) History(limit int) []NotificationResult {
	return m.history.recent(limit)
}
