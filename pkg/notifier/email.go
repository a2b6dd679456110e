// Package notifier 提供邮件通知渠道的实现
package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// EmailSender 邮件发送器
type EmailSender struct {
	config *EmailChannelConfig
	logger *zap.Logger
	id     string
	name   string
}

// 默认的邮件主题模板
const defaultEmailSubjectTemplate = "【{{.Severity}}】{{.RuleName}}"

// 默认的邮件内容模板
const defaultEmailBodyTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>告警通知</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f5f5f5; padding: 10px; border-radius: 5px; }
        .severity-info { color: #2196F3; }
        .severity-warning { color: #FF9800; }
        .severity-critical { color: #F44336; }
        table { width: 100%; border-collapse: collapse; margin: 15px 0; }
        th, td { padding: 8px; text-align: left; border-bottom: 1px solid #ddd; }
        th { background-color: #f5f5f5; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h2 class="severity-{{.Severity}}">【{{.Severity}}】{{.RuleName}}</h2>
        </div>
        <table>
            <tr><th>事件</th><td>{{.EventType}}</td></tr>
            <tr><th>指标</th><td>{{.Metric}}</td></tr>
            <tr><th>当前值</th><td>{{.Value}}{{.Unit}}</td></tr>
            <tr><th>阈值</th><td>{{.Condition}} {{.Threshold}}{{.Unit}}</td></tr>
            <tr><th>时间</th><td>{{.Timestamp}}</td></tr>
        </table>
        {{if .Tags}}
        <h3>标签</h3>
        <table>
            {{range $key, $value := .Tags}}
            <tr><td>{{$key}}</td><td>{{$value}}</td></tr>
            {{end}}
        </table>
        {{end}}
        <p>此邮件由监控系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`

// NewEmailSender 创建新的邮件发送器
func NewEmailSender(channel *Channel, logger *zap.Logger) (Sender, error) {
	if channel.Type != ChannelTypeEmail {
		return nil, fmt.Errorf("渠道类型不是email: %s", channel.Type)
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	config, err := decodeChannelConfig[EmailChannelConfig](channel)
	if err != nil {
		return nil, err
	}

	if len(config.Recipients) == 0 {
		return nil, fmt.Errorf("收件人列表不能为空")
	}
	if config.SMTPServer == "" {
		return nil, fmt.Errorf("SMTP服务器地址不能为空")
	}
	if config.SMTPPort == 0 {
		config.SMTPPort = 25
	}
	if config.FromAddress == "" {
		return nil, fmt.Errorf("发件人地址不能为空")
	}
	if config.SubjectTemplate == "" {
		config.SubjectTemplate = defaultEmailSubjectTemplate
	}
	if config.BodyTemplate == "" {
		config.BodyTemplate = defaultEmailBodyTemplate
	}

	return &EmailSender{
		config: config,
		logger: logger,
		id:     channel.ID,
		name:   channel.Name,
	}, nil
}

// Send 发送邮件通知
func (s *EmailSender) Send(alert *models.Alert, eventType string) (*NotificationResult, error) {
	result := &NotificationResult{
		AlertID:     alert.ID,
		ChannelID:   s.id,
		ChannelName: s.name,
		ChannelType: ChannelTypeEmail,
		EventType:   eventType,
		Timestamp:   time.Now(),
	}

	data := newPayload(alert, eventType)

	subject, err := renderTemplate("subject", s.config.SubjectTemplate, data)
	if err != nil {
		result.Error = fmt.Sprintf("渲染主题模板失败: %s", err.Error())
		return result, nil
	}

	bodyTmpl, err := template.New("body").Parse(s.config.BodyTemplate)
	if err != nil {
		result.Error = fmt.Sprintf("解析内容模板失败: %s", err.Error())
		return result, nil
	}

	var bodyBuf bytes.Buffer
	if err := bodyTmpl.Execute(&bodyBuf, data); err != nil {
		result.Error = fmt.Sprintf("渲染内容模板失败: %s", err.Error())
		return result, nil
	}

	msg := buildMessage(s.config.FromAddress, s.config.Recipients, subject, bodyBuf.String())
	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)

	var auth smtp.Auth
	if s.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPServer)
	}

	if err := smtp.SendMail(addr, auth, s.config.FromAddress, s.config.Recipients, msg); err != nil {
		result.Error = fmt.Sprintf("发送邮件失败: %s", err.Error())
		return result, nil
	}

	result.Success = true
	return result, nil
}

// buildMessage 构建MIME邮件内容
func buildMessage(from string, to []string, subject, body string) []byte {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}
