// Package notifier 提供聊天机器人Webhook通知渠道的实现
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

// ChatWebhookSender 聊天机器人Webhook发送器
type ChatWebhookSender struct {
	config *ChatWebhookChannelConfig
	logger *zap.Logger
	id     string
	name   string
}

// 默认的标题模板
const defaultChatTitleTemplate = "【{{.Severity}}】{{.RuleName}}"

// 默认的内容模板
const defaultChatContentTemplate = `告警详情:
规则: {{.RuleName}}
指标: {{.Metric}}
当前值: {{.Value}}{{.Unit}}
阈值: {{.Condition}} {{.Threshold}}{{.Unit}}
严重程度: {{.Severity}}
事件: {{.EventType}}
时间: {{.Timestamp}}
{{if .Tags}}
标签:
{{range $key, $value := .Tags}}{{$key}}: {{$value}}
{{end}}{{end}}`

// chatMessage 聊天机器人消息体
type chatMessage struct {
	MsgType  string       `json:"msgtype"`
	Markdown chatMarkdown `json:"markdown"`
}

// chatMarkdown markdown消息内容
type chatMarkdown struct {
	Content string `json:"content"`
}

// NewChatWebhookSender 创建新的聊天机器人发送器
func NewChatWebhookSender(channel *Channel, logger *zap.Logger) (Sender, error) {
	if channel.Type != ChannelTypeChatWebhook {
		return nil, fmt.Errorf("渠道类型不是chat-webhook: %s", channel.Type)
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	config, err := decodeChannelConfig[ChatWebhookChannelConfig](channel)
	if err != nil {
		return nil, err
	}

	if config.WebhookURL == "" {
		return nil, fmt.Errorf("聊天机器人Webhook URL不能为空")
	}
	if config.TitleTemplate == "" {
		config.TitleTemplate = defaultChatTitleTemplate
	}
	if config.ContentTemplate == "" {
		config.ContentTemplate = defaultChatContentTemplate
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 10
	}

	return &ChatWebhookSender{
		config: config,
		logger: logger,
		id:     channel.ID,
		name:   channel.Name,
	}, nil
}

// Send 发送聊天机器人通知
func (s *ChatWebhookSender) Send(alert *models.Alert, eventType string) (*NotificationResult, error) {
	result := &NotificationResult{
		AlertID:     alert.ID,
		ChannelID:   s.id,
		ChannelName: s.name,
		ChannelType: ChannelTypeChatWebhook,
		EventType:   eventType,
		Timestamp:   time.Now(),
	}

	data := newPayload(alert, eventType)

	title, err := renderTemplate("title", s.config.TitleTemplate, data)
	if err != nil {
		result.Error = fmt.Sprintf("渲染标题模板失败: %s", err.Error())
		return result, nil
	}

	content, err := renderTemplate("content", s.config.ContentTemplate, data)
	if err != nil {
		result.Error = fmt.Sprintf("渲染内容模板失败: %s", err.Error())
		return result, nil
	}

	text := fmt.Sprintf("## %s\n%s", title, content)
	if s.config.MentionAll {
		text += "\n<@all>"
	}

	body, err := json.Marshal(chatMessage{
		MsgType:  "markdown",
		Markdown: chatMarkdown{Content: text},
	})
	if err != nil {
		result.Error = fmt.Sprintf("序列化消息体失败: %s", err.Error())
		return result, nil
	}

	req, err := http.NewRequest(http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		result.Error = fmt.Sprintf("创建HTTP请求失败: %s", err.Error())
		return result, nil
	}
	req.Header.Set("Content-Type", "application/json")

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

// renderTemplate 渲染文本模板
func renderTemplate(name, tmpl string, data interface{}) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
