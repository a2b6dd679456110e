// Package notifier 提供告警通知渠道与分发功能
package notifier

import (
	"time"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// ChannelType 表示通知渠道的类型
type ChannelType string

const (
	// ChannelTypeLog 结构化日志渠道
	ChannelTypeLog ChannelType = "log"
	// ChannelTypeConsole 控制台输出渠道
	ChannelTypeConsole ChannelType = "console"
	// ChannelTypeWebhook Webhook渠道
	ChannelTypeWebhook ChannelType = "webhook"
	// ChannelTypeChatWebhook 聊天机器人Webhook渠道
	ChannelTypeChatWebhook ChannelType = "chat-webhook"
	// ChannelTypeEmail 邮件渠道
	ChannelTypeEmail ChannelType = "email"
)

// Channel 表示一个通知渠道配置
type Channel struct {
	// 渠道ID
	ID string `json:"id" validate:"required"`
	// 渠道类型
	Type ChannelType `json:"type" validate:"required,oneof=log console webhook chat-webhook email"`
	// 渠道名称
	Name string `json:"name" validate:"required"`
	// 渠道配置，按类型解析为对应的配置结构
	Config interface{} `json:"config"`
	// 是否启用
	Enabled bool `json:"enabled"`
	// 描述
	Description string `json:"description,omitempty"`
	// 创建时间
	CreatedAt time.Time `json:"created_at"`
	// 更新时间
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone 返回渠道的副本。Config为替换式更新，副本共享同一引用
func (c *Channel) Clone() *Channel {
	cp := *c
	return &cp
}

// WebhookChannelConfig Webhook渠道配置
type WebhookChannelConfig struct {
	// Webhook URL
	URL string `json:"url"`
	// HTTP方法，默认POST
	Method string `json:"method,omitempty"`
	// 自定义请求头
	Headers map[string]string `json:"headers,omitempty"`
	// 请求体模板
	BodyTemplate string `json:"body_template,omitempty"`
	// 超时时间（秒），默认10
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ChatWebhookChannelConfig 聊天机器人Webhook渠道配置
type ChatWebhookChannelConfig struct {
	// 机器人Webhook URL
	WebhookURL string `json:"webhook_url"`
	// 标题模板
	TitleTemplate string `json:"title_template,omitempty"`
	// 内容模板
	ContentTemplate string `json:"content_template,omitempty"`
	// 是否提及所有人
	MentionAll bool `json:"mention_all,omitempty"`
	// 超时时间（秒），默认10
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// EmailChannelConfig 邮件渠道配置
type EmailChannelConfig struct {
	// 收件人列表
	Recipients []string `json:"recipients"`
	// SMTP服务器地址
	SMTPServer string `json:"smtp_server"`
	// SMTP服务器端口
	SMTPPort int `json:"smtp_port"`
	// SMTP用户名
	SMTPUsername string `json:"smtp_username,omitempty"`
	// SMTP密码
	SMTPPassword string `json:"smtp_password,omitempty"`
	// 发件人地址
	FromAddress string `json:"from_address"`
	// 邮件主题模板
	SubjectTemplate string `json:"subject_template,omitempty"`
	// 邮件内容模板
	BodyTemplate string `json:"body_template,omitempty"`
}

// NotificationResult 表示一次通知发送结果
type NotificationResult struct {
	// 告警ID
	AlertID string `json:"alert_id"`
	// 渠道ID
	ChannelID string `json:"channel_id"`
	// 渠道名称
	ChannelName string `json:"channel_name"`
	// 渠道类型
	ChannelType ChannelType `json:"channel_type"`
	// 事件类型
	EventType string `json:"event_type"`
	// 是否成功
	Success bool `json:"success"`
	// 错误信息（失败时）
	Error string `json:"error,omitempty"`
	// 第几次尝试，从1开始
	Attempt int `json:"attempt"`
	// 发送时间
	Timestamp time.Time `json:"timestamp"`
}

// Sender 通知发送器接口，每种渠道类型对应一个实现
type Sender interface {
	// Send 发送告警通知
	Send(alert *models.Alert, eventType string) (*NotificationResult, error)
}

// payload 渲染模板时使用的数据
type payload struct {
	*models.Alert
	// 事件类型（triggered, resolved, escalated等）
	EventType string
	// ISO-8601格式的发送时间
	Timestamp string
}

// newPayload 由告警构建模板数据
func newPayload(alert *models.Alert, eventType string) payload {
	return payload{
		Alert:     alert,
		EventType: eventType,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
