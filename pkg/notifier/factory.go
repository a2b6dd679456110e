// Package notifier 提供通知发送器的工厂
package notifier

import (
	"fmt"

	"go.uber.org/zap"
)

// SenderFactory 通知发送器工厂接口
type SenderFactory interface {
	// CreateSender 创建发送器实例
	CreateSender(channel *Channel) (Sender, error)
	// SupportedTypes 获取支持的渠道类型
	SupportedTypes() []ChannelType
}

// DefaultFactory 默认的发送器工厂
type DefaultFactory struct {
	logger *zap.Logger
}

// NewDefaultFactory 创建默认工厂
func NewDefaultFactory(logger *zap.Logger) *DefaultFactory {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &DefaultFactory{logger: logger}
}

// CreateSender 根据渠道类型创建发送器实例
func (f *DefaultFactory) CreateSender(channel *Channel) (Sender, error) {
	switch channel.Type {
	case ChannelTypeLog:
		return NewLogSender(channel, f.logger)
	case ChannelTypeConsole:
		return NewConsoleSender(channel)
	case ChannelTypeWebhook:
		return NewWebhookSender(channel, f.logger)
	case ChannelTypeChatWebhook:
		return NewChatWebhookSender(channel, f.logger)
	case ChannelTypeEmail:
		return NewEmailSender(channel, f.logger)
	default:
		return nil, fmt.Errorf("不支持的渠道类型: %s", channel.Type)
	}
}

// SupportedTypes 获取支持的渠道类型
func (f *DefaultFactory) SupportedTypes() []ChannelType {
	return []ChannelType{
		ChannelTypeLog,
		ChannelTypeConsole,
		ChannelTypeWebhook,
		ChannelTypeChatWebhook,
		ChannelTypeEmail,
	}
}

// IsSupportedChannelType 检查渠道类型是否受支持
func IsSupportedChannelType(t ChannelType) bool {
	switch t {
	case ChannelTypeLog, ChannelTypeConsole, ChannelTypeWebhook, ChannelTypeChatWebhook, ChannelTypeEmail:
		return true
	}
	return false
}
