// Package models 定义告警相关的数据模型
package models

import (
	"time"
)

// AlertSeverity 表示告警的严重程度
type AlertSeverity string

const (
	// AlertSeverityInfo 信息级别的告警
	AlertSeverityInfo AlertSeverity = "info"
	// AlertSeverityWarning 警告级别的告警
	AlertSeverityWarning AlertSeverity = "warning"
	// AlertSeverityCritical 严重级别的告警
	AlertSeverityCritical AlertSeverity = "critical"
)

// Valid 检查严重程度是否合法
func (s AlertSeverity) Valid() bool {
	switch s {
	case AlertSeverityInfo, AlertSeverityWarning, AlertSeverityCritical:
		return true
	}
	return false
}

// AlertConditionType 表示告警条件的类型
type AlertConditionType string

const (
	// ConditionGreaterThan 大于条件
	ConditionGreaterThan AlertConditionType = "gt"
	// ConditionLessThan 小于条件
	ConditionLessThan AlertConditionType = "lt"
	// ConditionEqual 等于条件
	ConditionEqual AlertConditionType = "eq"
	// ConditionGreaterThanOrEqual 大于等于条件
	ConditionGreaterThanOrEqual AlertConditionType = "gte"
	// ConditionLessThanOrEqual 小于等于条件
	ConditionLessThanOrEqual AlertConditionType = "lte"
)

// AlertStatus 表示告警的状态
type AlertStatus string

const (
	// AlertStatusActive 活动状态
	AlertStatusActive AlertStatus = "active"
	// AlertStatusAcknowledged 已确认状态
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	// AlertStatusResolved 已解决状态，终止状态
	AlertStatusResolved AlertStatus = "resolved"
)

// AlertRule 表示一个告警规则
type AlertRule struct {
	// 规则ID
	ID string `json:"id" validate:"required"`
	// 规则名称
	Name string `json:"name" validate:"required"`
	// 目标指标名称
	Metric string `json:"metric" validate:"required"`
	// 条件类型
	Condition AlertConditionType `json:"condition" validate:"required,oneof=gt lt eq gte lte"`
	// 阈值
	Threshold float64 `json:"threshold"`
	// 告警严重程度
	Severity AlertSeverity `json:"severity" validate:"required,oneof=info warning critical"`
	// 是否启用
	Enabled bool `json:"enabled"`
	// 冷却时间，同一签名在冷却期内不会重复触发
	Cooldown time.Duration `json:"cooldown" validate:"min=0"`
	// 最少连续失败次数，0表示单次满足即触发
	ConsecutiveFailures int `json:"consecutive_failures" validate:"min=0"`
	// 可选的评估时间窗口
	Window time.Duration `json:"window,omitempty"`
	// 通知渠道ID列表
	Channels []string `json:"channels"`
	// 规则描述
	Description string `json:"description,omitempty"`
}

// Clone 返回规则的副本，渠道列表独立复制
func (r *AlertRule) Clone() *AlertRule {
	cp := *r
	if r.Channels != nil {
		cp.Channels = append([]string(nil), r.Channels...)
	}
	return &cp
}

// Alert 表示一个具体的告警实例
type Alert struct {
	// 告警ID
	ID string `json:"id"`
	// 关联的规则ID
	RuleID string `json:"rule_id"`
	// 规则名称，用于展示与聚合
	RuleName string `json:"rule_name"`
	// 指标名称
	Metric string `json:"metric"`
	// 标签
	Tags map[string]string `json:"tags,omitempty"`
	// 严重程度
	Severity AlertSeverity `json:"severity"`
	// 当前值
	Value float64 `json:"value"`
	// 阈值
	Threshold float64 `json:"threshold"`
	// 条件类型
	Condition AlertConditionType `json:"condition"`
	// 单位
	Unit string `json:"unit,omitempty"`
	// 告警状态
	Status AlertStatus `json:"status"`
	// 创建时间
	CreatedAt time.Time `json:"created_at"`
	// 确认人（已确认时）
	AcknowledgedBy string `json:"acknowledged_by,omitempty"`
	// 确认时间（已确认时）
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	// 解决时间（已解决时）
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	// 已成功通知的渠道ID列表，按通知顺序排列
	NotifiedChannels []string `json:"notified_channels,omitempty"`
	// 告警描述
	Description string `json:"description,omitempty"`
}

// Clone 返回告警的副本，切片与标签为深拷贝
func (a *Alert) Clone() *Alert {
	cp := *a
	if a.Tags != nil {
		cp.Tags = make(map[string]string, len(a.Tags))
		for k, v := range a.Tags {
			cp.Tags[k] = v
		}
	}
	if a.NotifiedChannels != nil {
		cp.NotifiedChannels = append([]string(nil), a.NotifiedChannels...)
	}
	return &cp
}

// EscalationRule 表示一个升级规则，独立于告警规则，按严重程度与告警年龄匹配
type EscalationRule struct {
	// 规则名称，唯一
	Name string `json:"name" validate:"required"`
	// 适用的严重程度集合
	Severities []AlertSeverity `json:"severities" validate:"required,min=1,dive,oneof=info warning critical"`
	// 未确认持续时间阈值，0表示触发时立即投递、不参与周期扫描
	After time.Duration `json:"after" validate:"min=0"`
	// 目标通知渠道ID列表
	Channels []string `json:"channels" validate:"required,min=1"`
	// 可选的消息覆盖
	Message string `json:"message,omitempty"`
	// 是否启用
	Enabled bool `json:"enabled"`
}

// MatchesSeverity 检查升级规则是否适用于指定严重程度
func (r *EscalationRule) MatchesSeverity(severity AlertSeverity) bool {
	for _, s := range r.Severities {
		if s == severity {
			return true
		}
	}
	return false
}

// AlertEventType 表示告警事件类型
type AlertEventType string

const (
	// AlertEventTriggered 告警触发事件
	AlertEventTriggered AlertEventType = "alert.triggered"
	// AlertEventResolved 告警解决事件
	AlertEventResolved AlertEventType = "alert.resolved"
	// AlertEventAcknowledged 告警确认事件
	AlertEventAcknowledged AlertEventType = "alert.acknowledged"
)

// AlertEvent 表示告警事件，投递给外部订阅者
type AlertEvent struct {
	// 事件类型
	Type AlertEventType `json:"type"`
	// 告警快照
	Alert Alert `json:"alert"`
	// 事件时间
	Timestamp time.Time `json:"timestamp"`
}

// TopAlertEntry 表示按发生次数排名的告警条目
type TopAlertEntry struct {
	// 告警标题（规则名称）
	Title string `json:"title"`
	// 累计发生次数
	Count int `json:"count"`
	// 最近一次发生时间
	LastSeen time.Time `json:"last_seen"`
}

// ResolvedBuckets 表示已解决告警按解决时间的分桶统计
type ResolvedBuckets struct {
	// 今日解决数量
	Today int `json:"today"`
	// 本周解决数量
	ThisWeek int `json:"this_week"`
	// 本月解决数量
	ThisMonth int `json:"this_month"`
}

// AlertSummary 表示告警聚合摘要
type AlertSummary struct {
	// 活动告警按严重程度计数
	ActiveBySeverity map[AlertSeverity]int `json:"active_by_severity"`
	// 已解决告警分桶
	Resolved ResolvedBuckets `json:"resolved"`
	// 发生次数排名前列的告警
	TopAlerts []TopAlertEntry `json:"top_alerts"`
	// 生成时间
	GeneratedAt time.Time `json:"generated_at"`
}
