// Package models 定义性能基准相关的数据模型
package models

// BenchmarkStatus 表示基准的健康状态
type BenchmarkStatus string

const (
	// BenchmarkStatusGood 当前均值不高于基线
	BenchmarkStatusGood BenchmarkStatus = "good"
	// BenchmarkStatusWarning 当前均值高于基线但未超过阈值
	BenchmarkStatusWarning BenchmarkStatus = "warning"
	// BenchmarkStatusCritical 当前均值超过阈值
	BenchmarkStatusCritical BenchmarkStatus = "critical"
)

// BenchmarkTrend 表示基准的变化趋势
type BenchmarkTrend string

const (
	// BenchmarkTrendImproving 相比上次均值下降超过5%
	BenchmarkTrendImproving BenchmarkTrend = "improving"
	// BenchmarkTrendStable 变化在±5%以内
	BenchmarkTrendStable BenchmarkTrend = "stable"
	// BenchmarkTrendDegrading 相比上次均值上升超过5%
	BenchmarkTrendDegrading BenchmarkTrend = "degrading"
)

// PerformanceBenchmark 表示一个被跟踪操作的性能基准
type PerformanceBenchmark struct {
	// 操作名称
	Operation string `json:"operation"`
	// 基线值
	Baseline float64 `json:"baseline"`
	// 当前移动平均值（最近10次采样）
	Current float64 `json:"current"`
	// 告警阈值
	Threshold float64 `json:"threshold"`
	// 健康状态
	Status BenchmarkStatus `json:"status"`
	// 变化趋势
	Trend BenchmarkTrend `json:"trend"`
}
