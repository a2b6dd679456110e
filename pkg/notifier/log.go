// Package notifier 提供日志与控制台通知渠道的实现
package notifier

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// LogSender 结构化日志发送器
type LogSender struct {
	logger *zap.Logger
	id     string
	name   string
}

// NewLogSender 创建新的日志发送器
func NewLogSender(channel *Channel, logger *zap.Logger) (Sender, error) {
	if channel.Type != ChannelTypeLog {
		return nil, fmt.Errorf("渠道类型不是log: %s", channel.Type)
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	return &LogSender{
		logger: logger,
		id:     channel.ID,
		name:   channel.Name,
	}, nil
}

// Send 以结构化日志的形式输出告警
func (s *LogSender) Send(alert *models.Alert, eventType string) (*NotificationResult, error) {
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("event_type", eventType),
		zap.String("rule", alert.RuleName),
		zap.String("metric", alert.Metric),
		zap.String("severity", string(alert.Severity)),
		zap.Float64("value", alert.Value),
		zap.Float64("threshold", alert.Threshold),
		zap.String("condition", string(alert.Condition)),
		zap.String("unit", alert.Unit),
		zap.Time("created_at", alert.CreatedAt),
	}

	switch alert.Severity {
	case models.AlertSeverityCritical:
		s.logger.Error("告警通知", fields...)
	case models.AlertSeverityWarning:
		s.logger.Warn("告警通知", fields...)
	default:
		s.logger.Info("告警通知", fields...)
	}

	return &NotificationResult{
		AlertID:     alert.ID,
		ChannelID:   s.id,
		ChannelName: s.name,
		ChannelType: ChannelTypeLog,
		EventType:   eventType,
		Success:     true,
		Timestamp:   time.Now(),
	}, nil
}

// ConsoleSender 控制台输出发送器
type ConsoleSender struct {
	id   string
	name string
}

// NewConsoleSender 创建新的控制台发送器
func NewConsoleSender(channel *Channel) (Sender, error) {
	if channel.Type != ChannelTypeConsole {
		return nil, fmt.Errorf("渠道类型不是console: %s", channel.Type)
	}

	return &ConsoleSender{
		id:   channel.ID,
		name: channel.Name,
	}, nil
}

// Send 将告警输出到终端
func (s *ConsoleSender) Send(alert *models.Alert, eventType string) (*NotificationResult, error) {
	fmt.Printf("[%s] %s [%s] %s: %s %.2f (阈值 %s %.2f%s)\n",
		time.Now().Format(time.RFC3339),
		eventType,
		alert.Severity,
		alert.RuleName,
		alert.Metric,
		alert.Value,
		alert.Condition,
		alert.Threshold,
		alert.Unit)

	return &NotificationResult{
		AlertID:     alert.ID,
		ChannelID:   s.id,
		ChannelName: s.name,
		ChannelType: ChannelTypeConsole,
		EventType:   eventType,
		Success:     true,
		Timestamp:   time.Now(),
	}, nil
}
