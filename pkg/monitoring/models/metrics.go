// Package models 定义监控系统使用的数据模型
package models

import (
	"time"
)

// MetricKind 表示指标的类型
type MetricKind string

const (
	// MetricKindCounter 计数器类型指标，值只增不减
	MetricKindCounter MetricKind = "counter"
	// MetricKindGauge 仪表盘类型指标，值可上可下
	MetricKindGauge MetricKind = "gauge"
	// MetricKindHistogram 直方图类型指标
	MetricKindHistogram MetricKind = "histogram"
	// MetricKindTimer 计时器类型指标
	MetricKindTimer MetricKind = "timer"
)

// MetricPoint 表示一个指标数据点，创建后不可变
type MetricPoint struct {
	// 时间戳
	Timestamp time.Time `json:"timestamp"`
	// 指标值
	Value float64 `json:"value"`
	// 标签集合，与指标名称共同构成签名
	Tags map[string]string `json:"tags,omitempty"`
}

// SeriesStats 表示时间窗口内的统计结果
type SeriesStats struct {
	// 最小值
	Min float64 `json:"min"`
	// 最大值
	Max float64 `json:"max"`
	// 平均值
	Avg float64 `json:"avg"`
	// 数据点数量
	Count int `json:"count"`
	// 最新值
	Latest float64 `json:"latest"`
}

// SeriesSnapshot 表示单个指标序列的快照，用于诊断导出
type SeriesSnapshot struct {
	// 指标名称
	Name string `json:"name"`
	// 指标类型
	Kind MetricKind `json:"kind"`
	// 单位
	Unit string `json:"unit,omitempty"`
	// 数据点数量
	PointCount int `json:"point_count"`
	// 最新数据点
	Latest *MetricPoint `json:"latest,omitempty"`
	// 全量统计
	Stats *SeriesStats `json:"stats,omitempty"`
}

// MetricSnapshot 表示全部指标序列的快照
type MetricSnapshot struct {
	// 生成时间
	Timestamp time.Time `json:"timestamp"`
	// 各序列快照，按指标名称索引
	Series map[string]SeriesSnapshot `json:"series"`
}
