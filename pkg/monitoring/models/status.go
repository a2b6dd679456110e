// Package models 定义系统状态相关的数据模型
package models

import (
	"time"
)

// HealthState 表示系统整体健康等级
type HealthState string

const (
	// HealthStateHealthy 无活动的警告或严重告警
	HealthStateHealthy HealthState = "healthy"
	// HealthStateDegraded 存在活动的警告告警
	HealthStateDegraded HealthState = "degraded"
	// HealthStateCritical 存在活动的严重告警
	HealthStateCritical HealthState = "critical"
)

// SystemStatus 表示监控系统的聚合状态
type SystemStatus struct {
	// 整体健康等级
	State HealthState `json:"state"`
	// 活动告警总数
	ActiveAlerts int `json:"active_alerts"`
	// 活动的严重告警数
	CriticalAlerts int `json:"critical_alerts"`
	// 活动的警告告警数
	WarningAlerts int `json:"warning_alerts"`
	// 已注册指标序列数
	MetricSeries int `json:"metric_series"`
	// 运行时长
	Uptime time.Duration `json:"uptime"`
	// 生成时间
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck 表示各子组件的健康检查结果
type HealthCheck struct {
	// 指标存储是否正常
	MetricStore bool `json:"metric_store"`
	// 规则评估器是否正常
	Evaluator bool `json:"evaluator"`
	// 通知分发器是否正常
	Dispatcher bool `json:"dispatcher"`
	// 升级监控器是否正常
	Escalation bool `json:"escalation"`
	// 调度器是否正常
	Scheduler bool `json:"scheduler"`
	// 整体是否健康
	Healthy bool `json:"healthy"`
	// 检查时间
	Timestamp time.Time `json:"timestamp"`
}
