package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

func newTestStore(cap int) *Store {
	return NewStore(Config{SeriesCap: cap, Logger: zap.NewNop()})
}

func TestRecordAndLatest(t *testing.T) {
	store := newTestStore(10)
	store.Register("query_response_time", models.MetricKindTimer, "ms")

	store.Record("query_response_time", 120, map[string]string{"entity": "match"})
	store.Record("query_response_time", 80, nil)

	point, ok := store.Latest("query_response_time")
	require.True(t, ok)
	assert.Equal(t, 80.0, point.Value)
}

func TestRecordUnknownMetricIsNoop(t *testing.T) {
	store := newTestStore(10)

	// 未注册的指标不应panic，也不应创建序列
	store.Record("nonexistent", 1, nil)
	assert.Equal(t, 0, store.SeriesCount())

	_, ok := store.Latest("nonexistent")
	assert.False(t, ok)
}

func TestSeriesCapEvictsOldest(t *testing.T) {
	store := newTestStore(5)
	store.Register("error_count", models.MetricKindCounter, "")

	for i := 0; i < 8; i++ {
		store.Record("error_count", float64(i), nil)
	}

	stats, ok := store.Stats("error_count", time.Hour)
	require.True(t, ok)
	assert.Equal(t, 5, stats.Count)
	// 最旧的0/1/2被淘汰
	assert.Equal(t, 3.0, stats.Min)
	assert.Equal(t, 7.0, stats.Max)
	assert.Equal(t, 7.0, stats.Latest)
}

func TestStatsWindow(t *testing.T) {
	store := newTestStore(10)
	store.Register("cache_hit_rate", models.MetricKindGauge, "%")

	store.Record("cache_hit_rate", 50, nil)
	store.Record("cache_hit_rate", 70, nil)

	stats, ok := store.Stats("cache_hit_rate", time.Minute)
	require.True(t, ok)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 50.0, stats.Min)
	assert.Equal(t, 70.0, stats.Max)
	assert.Equal(t, 60.0, stats.Avg)

	// 空窗口应返回false
	_, ok = store.Stats("cache_hit_rate", -time.Minute)
	assert.False(t, ok)
}

func TestStatsUnknownMetric(t *testing.T) {
	store := newTestStore(10)
	_, ok := store.Stats("missing", time.Minute)
	assert.False(t, ok)
}

func TestExportAll(t *testing.T) {
	store := newTestStore(10)
	store.Register("entity_count", models.MetricKindGauge, "")
	store.Register("empty_metric", models.MetricKindCounter, "")
	store.Record("entity_count", 42, nil)

	snapshot := store.ExportAll()
	require.Len(t, snapshot.Series, 2)

	entry := snapshot.Series["entity_count"]
	assert.Equal(t, 1, entry.PointCount)
	require.NotNil(t, entry.Latest)
	assert.Equal(t, 42.0, entry.Latest.Value)
	require.NotNil(t, entry.Stats)
	assert.Equal(t, 42.0, entry.Stats.Avg)

	empty := snapshot.Series["empty_metric"]
	assert.Equal(t, 0, empty.PointCount)
	assert.Nil(t, empty.Latest)
}

func TestPurgeOlderThan(t *testing.T) {
	store := newTestStore(10)
	store.Register("calculation_time", models.MetricKindTimer, "ms")
	store.Record("calculation_time", 5, nil)
	store.Record("calculation_time", 6, nil)

	// 全部数据点都比截止时间新，不应删除
	removed := store.PurgeOlderThan(time.Hour)
	assert.Equal(t, 0, removed)

	// 截止时间在未来，全部删除
	removed = store.PurgeOlderThan(-time.Hour)
	assert.Equal(t, 2, removed)

	_, ok := store.Latest("calculation_time")
	assert.False(t, ok)
}

func TestRecordCopiesTags(t *testing.T) {
	store := newTestStore(10)
	store.Register("entity_count", models.MetricKindGauge, "")

	tags := map[string]string{"entity": "club"}
	store.Record("entity_count", 1, tags)
	tags["entity"] = "mutated"

	point, ok := store.Latest("entity_count")
	require.True(t, ok)
	assert.Equal(t, "club", point.Tags["entity"])
}
