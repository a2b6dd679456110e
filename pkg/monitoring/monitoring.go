// Package monitoring 组装指标存储、基准跟踪、告警评估、
// 通知分发与升级监控，对业务层提供统一入口
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/alerting"
	"github.com/xsxdot/clubmon/pkg/monitoring/benchmark"
	"github.com/xsxdot/clubmon/pkg/monitoring/collector"
	"github.com/xsxdot/clubmon/pkg/monitoring/escalation"
	"github.com/xsxdot/clubmon/pkg/monitoring/metrics"
	"github.com/xsxdot/clubmon/pkg/monitoring/models"
	"github.com/xsxdot/clubmon/pkg/notifier"
	"github.com/xsxdot/clubmon/pkg/scheduler"
)

// 业务事件映射的指标名称
const (
	MetricEntityCount       = "entity_count"
	MetricCacheHitRate      = "cache_hit_rate"
	MetricQueryResponseTime = "query_response_time"
	MetricCalculationTime   = "calculation_time"
	MetricErrorCount        = "error_count"
	MetricOperationPerf     = "operation_performance"
)

// Config 监控编排器配置
type Config struct {
	// CollectInterval 系统指标采集周期，默认30秒
	CollectInterval time.Duration
	// PerformanceInterval 性能基准回写周期，默认60秒
	PerformanceInterval time.Duration
	// OperationalInterval 运营指标回写周期，默认300秒
	OperationalInterval time.Duration
	// RuleCheckInterval 规则复查周期，默认120秒
	RuleCheckInterval time.Duration
	// CleanupInterval 清理周期，默认6小时
	CleanupInterval time.Duration
	// Retention 已解决告警与过期数据点的保留时长，默认7天
	Retention time.Duration
	// SeriesCap 单指标序列容量，0使用存储默认值
	SeriesCap int
	// EscalationScanInterval 升级扫描周期，默认60秒
	EscalationScanInterval time.Duration
	// Logger 日志记录器
	Logger *zap.Logger
	// RuleStore 告警规则存储，为空使用内存存储
	RuleStore alerting.RuleStore
	// SnapshotStore 指标快照存储，为空不做快照
	SnapshotStore metrics.SnapshotStore
	// NotifierFactory 通知发送器工厂，为空使用默认工厂
	NotifierFactory notifier.SenderFactory
	// NotifierRetryBackoff 通知重试的基础退避时长，0使用默认值
	NotifierRetryBackoff time.Duration
}

func (c *Config) applyDefaults() {
	if c.CollectInterval <= 0 {
		c.CollectInterval = 30 * time.Second
	}
	if c.PerformanceInterval <= 0 {
		c.PerformanceInterval = 60 * time.Second
	}
	if c.OperationalInterval <= 0 {
		c.OperationalInterval = 300 * time.Second
	}
	if c.RuleCheckInterval <= 0 {
		c.RuleCheckInterval = 120 * time.Second
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 6 * time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.EscalationScanInterval <= 0 {
		c.EscalationScanInterval = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger, _ = zap.NewProduction()
	}
}

// Monitor 监控编排器
type Monitor struct {
	config Config
	logger *zap.Logger

	store      *metrics.Store
	tracker    *benchmark.Tracker
	evaluator  *alerting.Manager
	dispatcher *notifier.Manager
	escalation *escalation.Monitor
	scheduler  *scheduler.Scheduler
	collector  *collector.SystemCollector

	// 业务事件计数
	countersMu   sync.Mutex
	entityCounts map[string]int64
	cacheHits    int64
	cacheMisses  int64
	errorCounts  map[string]int64

	cycleMu  sync.Mutex
	cycleIDs []string

	started   atomic.Bool
	startTime time.Time
}

// NewMonitor 创建监控编排器并完成组件装配
func NewMonitor(config Config) *Monitor {
	config.applyDefaults()
	logger := config.Logger

	store := metrics.NewStore(metrics.Config{
		SeriesCap: config.SeriesCap,
		Logger:    logger.Named("metrics"),
	})
	tracker := benchmark.NewTracker(logger.Named("benchmark"))

	dispatcher := notifier.NewManager(notifier.Config{
		Factory:      config.NotifierFactory,
		Logger:       logger.Named("notifier"),
		RetryBackoff: config.NotifierRetryBackoff,
	})

	evaluator := alerting.New(alerting.Config{
		Store:         config.RuleStore,
		Dispatcher:    dispatcher,
		Logger:        logger.Named("alerting"),
		EnableWatcher: config.RuleStore != nil,
		UnitResolver:  store.Unit,
	})
	dispatcher.SetNotifiedCallback(evaluator.MarkNotified)

	esc := escalation.New(escalation.Config{
		Source:       evaluator,
		Dispatcher:   dispatcher,
		Logger:       logger.Named("escalation"),
		ScanInterval: config.EscalationScanInterval,
	})

	sched := scheduler.NewScheduler(nil)

	m := &Monitor{
		config:       config,
		logger:       logger,
		store:        store,
		tracker:      tracker,
		evaluator:    evaluator,
		dispatcher:   dispatcher,
		escalation:   esc,
		scheduler:    sched,
		entityCounts: make(map[string]int64),
		errorCounts:  make(map[string]int64),
	}

	m.collector = collector.NewSystemCollector(collector.SystemCollectorConfig{
		CollectInterval: config.CollectInterval,
		Logger:          logger.Named("collector"),
		Store:           store,
		Scheduler:       sched,
	})

	m.registerBuiltinMetrics()

	return m
}

// registerBuiltinMetrics 注册业务事件映射的指标序列
func (m *Monitor) registerBuiltinMetrics() {
	m.store.Register(MetricEntityCount, models.MetricKindGauge, "")
	m.store.Register(MetricCacheHitRate, models.MetricKindGauge, "%")
	m.store.Register(MetricQueryResponseTime, models.MetricKindTimer, "ms")
	m.store.Register(MetricCalculationTime, models.MetricKindTimer, "ms")
	m.store.Register(MetricErrorCount, models.MetricKindCounter, "")
	m.store.Register(MetricOperationPerf, models.MetricKindGauge, "ms")
}

// Start 启动编排器及全部子组件
func (m *Monitor) Start() error {
	if m.started.Load() {
		return fmt.Errorf("监控编排器已经在运行")
	}

	if err := m.scheduler.Start(); err != nil {
		return fmt.Errorf("启动调度器失败: %w", err)
	}
	if err := m.evaluator.Start(); err != nil {
		return fmt.Errorf("启动告警管理器失败: %w", err)
	}
	m.escalation.Start()

	if err := m.collector.Start(); err != nil {
		return fmt.Errorf("启动系统指标采集器失败: %w", err)
	}

	if err := m.startCycles(); err != nil {
		return err
	}

	m.startTime = time.Now()
	m.started.Store(true)
	m.logger.Info("监控编排器已启动")
	return nil
}

// Stop 停止编排器，等待在途通知投递完成
func (m *Monitor) Stop() error {
	if !m.started.Load() {
		return nil
	}
	m.started.Store(false)

	_ = m.collector.Stop()
	m.escalation.Stop()
	m.evaluator.Stop()
	if err := m.scheduler.Stop(); err != nil {
		m.logger.Error("停止调度器失败", zap.Error(err))
	}
	m.dispatcher.Stop()

	m.logger.Info("监控编排器已停止")
	return nil
}

// startCycles 注册周期任务
func (m *Monitor) startCycles() error {
	cycles := []struct {
		name     string
		interval time.Duration
		fn       scheduler.TaskFunc
	}{
		{"performance-cycle", m.config.PerformanceInterval, m.performanceCycle},
		{"operational-cycle", m.config.OperationalInterval, m.operationalCycle},
		{"rule-check-cycle", m.config.RuleCheckInterval, m.ruleCheckCycle},
		{"cleanup-cycle", m.config.CleanupInterval, m.cleanupCycle},
	}

	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	for _, c := range cycles {
		task := scheduler.NewIntervalTask(c.name, time.Now().Add(c.interval), c.interval, time.Minute, c.fn)
		if err := m.scheduler.AddTask(task); err != nil {
			return fmt.Errorf("注册周期任务失败 %s: %w", c.name, err)
		}
		m.cycleIDs = append(m.cycleIDs, task.GetID())
	}
	return nil
}

// stopCycles 移除全部周期任务
func (m *Monitor) stopCycles() {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	for _, id := range m.cycleIDs {
		m.scheduler.RemoveTask(id)
	}
	m.cycleIDs = nil
}

// UpdateConfig 更新周期配置并重启受影响的周期任务，
// 评估器、分发器与历史状态保持不变
func (m *Monitor) UpdateConfig(update func(*Config)) error {
	m.cycleMu.Lock()
	update(&m.config)
	m.config.applyDefaults()
	m.cycleMu.Unlock()

	if !m.started.Load() {
		return nil
	}

	m.stopCycles()
	if err := m.startCycles(); err != nil {
		return err
	}
	m.logger.Info("监控周期配置已更新")
	return nil
}

// RecordMetric 记录一个业务指标值。未注册的指标名视为摄入错误，
// 记录警告日志后丢弃，不会产生新序列。
// 记录后同步评估匹配的告警规则，通知投递在分发器内异步进行。
// 该方法不会失败。
func (m *Monitor) RecordMetric(name string, value float64, tags map[string]string) {
	if !m.store.Registered(name) {
		m.logger.Warn("忽略未注册指标的记录请求", zap.String("metric", name))
		return
	}
	m.store.Record(name, value, tags)
	m.evaluator.EvaluateMetric(name, value, tags)
}

// RegisterMetric 注册一个指标序列
func (m *Monitor) RegisterMetric(name string, kind models.MetricKind, unit string) {
	m.store.Register(name, kind, unit)
}

// RegisterBenchmark 注册一个被跟踪的操作基准
func (m *Monitor) RegisterBenchmark(operation string, baseline, threshold float64) {
	m.tracker.Register(operation, baseline, threshold)
}

// OnEntityCreated 业务实体创建事件
func (m *Monitor) OnEntityCreated(entityType string) {
	m.countersMu.Lock()
	m.entityCounts[entityType]++
	count := m.entityCounts[entityType]
	m.countersMu.Unlock()

	m.RecordMetric(MetricEntityCount, float64(count), map[string]string{"entity": entityType})
}

// OnEntityUpdated 业务实体更新事件。数量不变，重写当前值以刷新序列。
func (m *Monitor) OnEntityUpdated(entityType string) {
	m.countersMu.Lock()
	count := m.entityCounts[entityType]
	m.countersMu.Unlock()

	m.RecordMetric(MetricEntityCount, float64(count), map[string]string{"entity": entityType})
}

// OnEntityDeleted 业务实体删除事件
func (m *Monitor) OnEntityDeleted(entityType string) {
	m.countersMu.Lock()
	if m.entityCounts[entityType] > 0 {
		m.entityCounts[entityType]--
	}
	count := m.entityCounts[entityType]
	m.countersMu.Unlock()

	m.RecordMetric(MetricEntityCount, float64(count), map[string]string{"entity": entityType})
}

// OnCacheHit 缓存命中事件
func (m *Monitor) OnCacheHit() {
	m.recordCacheEvent(true)
}

// OnCacheMiss 缓存未命中事件
func (m *Monitor) OnCacheMiss() {
	m.recordCacheEvent(false)
}

func (m *Monitor) recordCacheEvent(hit bool) {
	m.countersMu.Lock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
	total := m.cacheHits + m.cacheMisses
	rate := float64(m.cacheHits) / float64(total) * 100
	m.countersMu.Unlock()

	m.RecordMetric(MetricCacheHitRate, rate, nil)
}

// OnQueryCompleted 查询完成事件，同时写入性能基准采样
func (m *Monitor) OnQueryCompleted(operation string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	m.RecordMetric(MetricQueryResponseTime, ms, map[string]string{"operation": operation})
	m.tracker.Observe(operation, ms)
}

// OnCalculationCompleted 统计计算完成事件
func (m *Monitor) OnCalculationCompleted(name string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	m.RecordMetric(MetricCalculationTime, ms, map[string]string{"calculation": name})
	m.tracker.Observe(name, ms)
}

// OnError 业务错误事件
func (m *Monitor) OnError(source string) {
	m.countersMu.Lock()
	m.errorCounts[source]++
	count := m.errorCounts[source]
	m.countersMu.Unlock()

	m.RecordMetric(MetricErrorCount, float64(count), map[string]string{"source": source})
}

// performanceCycle 将各操作基准的当前均值回写为指标
func (m *Monitor) performanceCycle(ctx context.Context) error {
	for _, b := range m.tracker.List() {
		m.RecordMetric(MetricOperationPerf, b.Current, map[string]string{"operation": b.Operation})
	}
	return nil
}

// operationalCycle 周期性回写运营计数，保证低频指标也有数据点
func (m *Monitor) operationalCycle(ctx context.Context) error {
	m.countersMu.Lock()
	entities := make(map[string]int64, len(m.entityCounts))
	for k, v := range m.entityCounts {
		entities[k] = v
	}
	hits, misses := m.cacheHits, m.cacheMisses
	m.countersMu.Unlock()

	for entityType, count := range entities {
		m.RecordMetric(MetricEntityCount, float64(count), map[string]string{"entity": entityType})
	}
	if total := hits + misses; total > 0 {
		m.RecordMetric(MetricCacheHitRate, float64(hits)/float64(total)*100, nil)
	}
	return nil
}

// ruleCheckCycle 用各指标的最新值重新评估规则，
// 兜底捕获停止上报后仍然越限的指标
func (m *Monitor) ruleCheckCycle(ctx context.Context) error {
	snapshot := m.store.ExportAll()
	for name, s := range snapshot.Series {
		if s.Latest == nil {
			continue
		}
		m.evaluator.EvaluateMetric(name, s.Latest.Value, s.Latest.Tags)
	}
	return nil
}

// cleanupCycle 清理过期数据并按需保存指标快照
func (m *Monitor) cleanupCycle(ctx context.Context) error {
	cutoff := time.Now().Add(-m.config.Retention)
	m.evaluator.PurgeResolvedBefore(cutoff)
	m.store.PurgeOlderThan(m.config.Retention)

	if m.config.SnapshotStore != nil {
		snapshot := m.store.ExportAll()
		if err := m.config.SnapshotStore.SaveSnapshot(snapshot); err != nil {
			m.logger.Error("保存指标快照失败", zap.Error(err))
		}
	}
	return nil
}

// SystemStatus 返回系统聚合状态
func (m *Monitor) SystemStatus() *models.SystemStatus {
	counts := m.evaluator.ActiveCounts()
	criticals := counts[models.AlertSeverityCritical]
	warnings := counts[models.AlertSeverityWarning]

	state := models.HealthStateHealthy
	switch {
	case criticals > 0:
		state = models.HealthStateCritical
	case warnings > 0:
		state = models.HealthStateDegraded
	}

	var uptime time.Duration
	if m.started.Load() {
		uptime = time.Since(m.startTime)
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	return &models.SystemStatus{
		State:          state,
		ActiveAlerts:   total,
		CriticalAlerts: criticals,
		WarningAlerts:  warnings,
		MetricSeries:   m.store.SeriesCount(),
		Uptime:         uptime,
		Timestamp:      time.Now(),
	}
}

// HealthCheck 返回各子组件的健康检查结果
func (m *Monitor) HealthCheck() *models.HealthCheck {
	check := &models.HealthCheck{
		MetricStore: m.store != nil,
		Evaluator:   m.evaluator != nil,
		Dispatcher:  m.dispatcher != nil,
		Escalation:  m.escalation != nil,
		Scheduler:   m.scheduler != nil && m.started.Load(),
		Timestamp:   time.Now(),
	}
	check.Healthy = check.MetricStore && check.Evaluator && check.Dispatcher &&
		check.Escalation && check.Scheduler
	return check
}

// MetricStore 返回指标存储
func (m *Monitor) MetricStore() *metrics.Store {
	return m.store
}

// Tracker 返回性能基准跟踪器
func (m *Monitor) Tracker() *benchmark.Tracker {
	return m.tracker
}

// Evaluator 返回告警管理器
func (m *Monitor) Evaluator() *alerting.Manager {
	return m.evaluator
}

// Dispatcher 返回通知分发器
func (m *Monitor) Dispatcher() *notifier.Manager {
	return m.dispatcher
}

// EscalationMonitor 返回升级监控器
func (m *Monitor) EscalationMonitor() *escalation.Monitor {
	return m.escalation
}
