package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	return NewMonitor(Config{Logger: zap.NewNop()})
}

func lowCacheHitRule() *models.AlertRule {
	return &models.AlertRule{
		ID:        "rule-cache-hit",
		Name:      "缓存命中率过低",
		Metric:    MetricCacheHitRate,
		Condition: models.ConditionLessThan,
		Threshold: 60,
		Severity:  models.AlertSeverityWarning,
		Enabled:   true,
		Cooldown:  5 * time.Minute,
	}
}

func TestRecordMetricIgnoresUnknownName(t *testing.T) {
	m := newTestMonitor(t)
	before := m.MetricStore().SeriesCount()

	// 未注册的指标名是摄入错误，丢弃且不产生新序列
	m.RecordMetric("club_member_total", 420, nil)

	_, ok := m.MetricStore().Latest("club_member_total")
	assert.False(t, ok)
	assert.Equal(t, before, m.MetricStore().SeriesCount())

	m.RegisterMetric("club_member_total", models.MetricKindGauge, "")
	m.RecordMetric("club_member_total", 420, nil)

	point, ok := m.MetricStore().Latest("club_member_total")
	require.True(t, ok)
	assert.Equal(t, 420.0, point.Value)
}

func TestRecordMetricEvaluatesRules(t *testing.T) {
	m := newTestMonitor(t)
	require.NoError(t, m.Evaluator().AddRule(context.Background(), lowCacheHitRule()))

	m.RecordMetric(MetricCacheHitRate, 55, nil)

	alerts := m.Evaluator().GetActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, MetricCacheHitRate, alerts[0].Metric)
	assert.Equal(t, "%", alerts[0].Unit)
}

func TestCacheEventsDriveHitRate(t *testing.T) {
	m := newTestMonitor(t)
	require.NoError(t, m.Evaluator().AddRule(context.Background(), lowCacheHitRule()))

	// 1次命中4次未命中：命中率20%，低于阈值触发告警
	m.OnCacheHit()
	m.OnCacheMiss()
	m.OnCacheMiss()
	m.OnCacheMiss()
	m.OnCacheMiss()
	require.Len(t, m.Evaluator().GetActiveAlerts(), 1)

	// 大量命中拉回命中率后自动解决
	for i := 0; i < 20; i++ {
		m.OnCacheHit()
	}
	assert.Empty(t, m.Evaluator().GetActiveAlerts())
}

func TestEntityEventsTrackCounts(t *testing.T) {
	m := newTestMonitor(t)

	m.OnEntityCreated("member")
	m.OnEntityCreated("member")
	m.OnEntityCreated("match")
	m.OnEntityDeleted("member")

	point, ok := m.MetricStore().Latest(MetricEntityCount)
	require.True(t, ok)
	assert.Equal(t, 1.0, point.Value)
	assert.Equal(t, "member", point.Tags["entity"])
}

func TestQueryEventsFeedBenchmark(t *testing.T) {
	m := newTestMonitor(t)
	m.RegisterBenchmark("member_list", 100, 200)

	for i := 0; i < 5; i++ {
		m.OnQueryCompleted("member_list", 150*time.Millisecond)
	}

	b, ok := m.Tracker().Get("member_list")
	require.True(t, ok)
	assert.Equal(t, 150.0, b.Current)
	assert.Equal(t, models.BenchmarkStatusWarning, b.Status)

	point, ok := m.MetricStore().Latest(MetricQueryResponseTime)
	require.True(t, ok)
	assert.Equal(t, 150.0, point.Value)
}

func TestErrorEventsAccumulate(t *testing.T) {
	m := newTestMonitor(t)

	m.OnError("database")
	m.OnError("database")
	m.OnError("cache")

	point, ok := m.MetricStore().Latest(MetricErrorCount)
	require.True(t, ok)
	assert.Equal(t, 1.0, point.Value)
	assert.Equal(t, "cache", point.Tags["source"])
}

func TestSystemStatusReflectsAlerts(t *testing.T) {
	m := newTestMonitor(t)

	status := m.SystemStatus()
	assert.Equal(t, models.HealthStateHealthy, status.State)
	assert.Zero(t, status.ActiveAlerts)

	rule := lowCacheHitRule()
	rule.Severity = models.AlertSeverityCritical
	require.NoError(t, m.Evaluator().AddRule(context.Background(), rule))
	m.RecordMetric(MetricCacheHitRate, 40, nil)

	status = m.SystemStatus()
	assert.Equal(t, models.HealthStateCritical, status.State)
	assert.Equal(t, 1, status.CriticalAlerts)
	assert.Equal(t, 1, status.ActiveAlerts)
}

func TestHealthCheckAndLifecycle(t *testing.T) {
	m := NewMonitor(Config{
		Logger:                 zap.NewNop(),
		CollectInterval:        time.Hour,
		PerformanceInterval:    time.Hour,
		OperationalInterval:    time.Hour,
		RuleCheckInterval:      time.Hour,
		CleanupInterval:        time.Hour,
		EscalationScanInterval: time.Hour,
	})

	check := m.HealthCheck()
	assert.False(t, check.Healthy, "未启动时调度器不健康")

	require.NoError(t, m.Start())
	assert.Error(t, m.Start(), "重复启动应失败")

	check = m.HealthCheck()
	assert.True(t, check.Healthy)

	status := m.SystemStatus()
	assert.GreaterOrEqual(t, status.Uptime, time.Duration(0))

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop(), "重复停止应为无操作")
}

func TestUpdateConfigRestartsCycles(t *testing.T) {
	m := NewMonitor(Config{
		Logger:                 zap.NewNop(),
		CollectInterval:        time.Hour,
		PerformanceInterval:    time.Hour,
		OperationalInterval:    time.Hour,
		RuleCheckInterval:      time.Hour,
		CleanupInterval:        time.Hour,
		EscalationScanInterval: time.Hour,
	})
	require.NoError(t, m.Start())
	defer func() { _ = m.Stop() }()

	require.NoError(t, m.UpdateConfig(func(c *Config) {
		c.RuleCheckInterval = 30 * time.Minute
	}))

	m.cycleMu.Lock()
	assert.Len(t, m.cycleIDs, 4)
	assert.Equal(t, 30*time.Minute, m.config.RuleCheckInterval)
	m.cycleMu.Unlock()
}

func TestCleanupCyclePurges(t *testing.T) {
	m := newTestMonitor(t)
	require.NoError(t, m.Evaluator().AddRule(context.Background(), lowCacheHitRule()))

	m.RecordMetric(MetricCacheHitRate, 40, nil)
	m.RecordMetric(MetricCacheHitRate, 90, nil)
	require.Empty(t, m.Evaluator().GetActiveAlerts())

	// 保留期设为负值使刚解决的告警立即过期
	m.config.Retention = -time.Second
	require.NoError(t, m.cleanupCycle(context.Background()))

	summary := m.Evaluator().Summary(0)
	assert.Zero(t, summary.Resolved.Today)
}
