// Package benchmark 实现操作性能基准的跟踪与趋势分类
package benchmark

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// sampleWindow 移动平均使用的采样数量
const sampleWindow = 10

// trendEpsilon 趋势判定的相对变化阈值
const trendEpsilon = 0.05

// entry 单个操作的内部跟踪状态
type entry struct {
	benchmark models.PerformanceBenchmark
	samples   []float64
}

// Tracker 性能基准跟踪器
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *zap.Logger
}

// NewTracker 创建一个新的基准跟踪器
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Tracker{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register 注册一个被跟踪的操作及其基线与阈值
func (t *Tracker) Register(operation string, baseline, threshold float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[operation]; exists {
		return
	}

	t.entries[operation] = &entry{
		benchmark: models.PerformanceBenchmark{
			Operation: operation,
			Baseline:  baseline,
			Threshold: threshold,
			Status:    models.BenchmarkStatusGood,
			Trend:     models.BenchmarkTrendStable,
		},
	}
	t.logger.Debug("注册性能基准",
		zap.String("operation", operation),
		zap.Float64("baseline", baseline),
		zap.Float64("threshold", threshold))
}

// Observe 记录一次采样并重新计算基准，未注册的操作忽略
func (t *Tracker) Observe(operation string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, exists := t.entries[operation]
	if !exists {
		return
	}

	e.samples = append(e.samples, value)
	if len(e.samples) > sampleWindow {
		e.samples = e.samples[len(e.samples)-sampleWindow:]
	}

	var sum float64
	for _, v := range e.samples {
		sum += v
	}
	current := sum / float64(len(e.samples))
	previous := e.benchmark.Current

	e.benchmark.Current = current
	e.benchmark.Status = classify(current, e.benchmark.Baseline, e.benchmark.Threshold)
	e.benchmark.Trend = trend(previous, current)

	if e.benchmark.Status == models.BenchmarkStatusCritical {
		t.logger.Warn("操作性能超过阈值",
			zap.String("operation", operation),
			zap.Float64("current", current),
			zap.Float64("threshold", e.benchmark.Threshold))
	}
}

// classify 根据基线与阈值计算健康状态
func classify(current, baseline, threshold float64) models.BenchmarkStatus {
	switch {
	case current <= baseline:
		return models.BenchmarkStatusGood
	case current <= threshold:
		return models.BenchmarkStatusWarning
	default:
		return models.BenchmarkStatusCritical
	}
}

// trend 比较新旧均值计算趋势，首次采样视为stable
func trend(previous, current float64) models.BenchmarkTrend {
	if previous == 0 {
		return models.BenchmarkTrendStable
	}

	change := (current - previous) / previous
	switch {
	case change < -trendEpsilon:
		return models.BenchmarkTrendImproving
	case change > trendEpsilon:
		return models.BenchmarkTrendDegrading
	default:
		return models.BenchmarkTrendStable
	}
}

// Get 返回指定操作的基准
func (t *Tracker) Get(operation string) (models.PerformanceBenchmark, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, exists := t.entries[operation]
	if !exists {
		return models.PerformanceBenchmark{}, false
	}
	return e.benchmark, true
}

// List 返回全部基准
func (t *Tracker) List() []models.PerformanceBenchmark {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]models.PerformanceBenchmark, 0, len(t.entries))
	for _, e := range t.entries {
		result = append(result, e.benchmark)
	}
	return result
}
