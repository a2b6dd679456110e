// Package notifier 提供Webhook通知渠道的实现
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// WebhookSender Webhook发送器
type WebhookSender struct {
	config *WebhookChannelConfig
	logger *zap.Logger
	id     string
	name   string
}

// 默认的请求体模板
const defaultWebhookBodyTemplate = `{
  "alert": {
    "id": "{{.ID}}",
    "rule_id": "{{.RuleID}}",
    "title": "{{.RuleName}}",
    "description": "{{.Description}}",
    "metric": "{{.Metric}}",
    "value": {{.Value}},
    "threshold": {{.Threshold}},
    "condition": "{{.Condition}}",
    "unit": "{{.Unit}}",
    "severity": "{{.Severity}}",
    "status": "{{.Status}}",
    "created_at": "{{formatTime .CreatedAt}}"
  },
  "event_type": "{{.EventType}}",
  "timestamp": "{{.Timestamp}}"
}`

// NewWebhookSender 创建新的Webhook发送器
func NewWebhookSender(channel *Channel, logger *zap.Logger) (Sender, error) {
	if channel.Type != ChannelTypeWebhook {
		return nil, fmt.Errorf("渠道类型不是webhook: %s", channel.Type)
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	config, err := decodeChannelConfig[WebhookChannelConfig](channel)
	if err != nil {
		return nil, err
	}

	if config.URL == "" {
		return nil, fmt.Errorf("Webhook URL不能为空")
	}
	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 10
	}
	if config.BodyTemplate == "" {
		config.BodyTemplate = defaultWebhookBodyTemplate
	}

	return &WebhookSender{
		config: config,
		logger: logger,
		id:     channel.ID,
		name:   channel.Name,
	}, nil
}

// Send 发送Webhook通知
func (s *WebhookSender) Send(alert *models.Alert, eventType string) (*NotificationResult, error) {
	result := &NotificationResult{
		AlertID:     alert.ID,
		ChannelID:   s.id,
		ChannelName: s.name,
		ChannelType: ChannelTypeWebhook,
		EventType:   eventType,
		Timestamp:   time.Now(),
	}

	// 渲染请求体
	bodyTmpl, err := template.New("body").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format(time.RFC3339)
		},
	}).Parse(s.config.BodyTemplate)
	if err != nil {
		result.Error = fmt.Sprintf("解析请求体模板失败: %s", err.Error())
		return result, nil
	}

	var bodyBuf bytes.Buffer
	if err := bodyTmpl.Execute(&bodyBuf, newPayload(alert, eventType)); err != nil {
		result.Error = fmt.Sprintf("渲染请求体模板失败: %s", err.Error())
		return result, nil
	}

	// 创建HTTP请求
	req, err := http.NewRequest(s.config.Method, s.config.URL, &bodyBuf)
	if err != nil {
		result.Error = fmt.Sprintf("创建HTTP请求失败: %s", err.Error())
		return result, nil
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.config.Headers {
		req.Header.Set(key, value)
	}

	// 超时约束网络IO，发送期间不持有任何共享状态的锁
	client := &http.Client{
		Timeout: time.Duration(s.config.TimeoutSeconds) * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("发送HTTP请求失败: %s", err.Error())
		return result, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("HTTP请求返回非成功状态码: %d", resp.StatusCode)
		return result, nil
	}

	result.Success = true
	return result, nil
}

// decodeChannelConfig 将渠道的通用配置解析为指定类型的配置结构
func decodeChannelConfig[T any](channel *Channel) (*T, error) {
	configData, err := json.Marshal(channel.Config)
	if err != nil {
		return nil, fmt.Errorf("序列化配置失败: %w", err)
	}

	var config T
	if err := json.Unmarshal(configData, &config); err != nil {
		return nil, fmt.Errorf("解析渠道配置失败: %w", err)
	}
	return &config, nil
}
