package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

func TestObserveMovingAverage(t *testing.T) {
	tracker := NewTracker(zap.NewNop())
	tracker.Register("query", 50, 100)

	// 超过窗口大小的采样只保留最近10次
	for i := 0; i < 12; i++ {
		tracker.Observe("query", float64(i*10))
	}

	b, ok := tracker.Get("query")
	require.True(t, ok)
	// 最近10次为20..110，均值65
	assert.Equal(t, 65.0, b.Current)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  models.BenchmarkStatus
	}{
		{"等于基线为good", 50, models.BenchmarkStatusGood},
		{"低于基线为good", 30, models.BenchmarkStatusGood},
		{"高于基线低于阈值为warning", 80, models.BenchmarkStatusWarning},
		{"等于阈值为warning", 100, models.BenchmarkStatusWarning},
		{"高于阈值为critical", 150, models.BenchmarkStatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(zap.NewNop())
			tracker.Register("op", 50, 100)
			tracker.Observe("op", tt.value)

			b, ok := tracker.Get("op")
			require.True(t, ok)
			assert.Equal(t, tt.want, b.Status)
		})
	}
}

func TestTrendClassification(t *testing.T) {
	tracker := NewTracker(zap.NewNop())
	tracker.Register("calc", 0, 1000)

	// 首次采样趋势为stable
	tracker.Observe("calc", 100)
	b, _ := tracker.Get("calc")
	assert.Equal(t, models.BenchmarkTrendStable, b.Trend)

	// 均值从100变为150，上升50%，degrading
	tracker.Observe("calc", 200)
	b, _ = tracker.Get("calc")
	assert.Equal(t, models.BenchmarkTrendDegrading, b.Trend)

	// 均值从150变为110，下降约26%，improving
	tracker.Observe("calc", 30)
	b, _ = tracker.Get("calc")
	assert.Equal(t, models.BenchmarkTrendImproving, b.Trend)
}

func TestTrendStableWithinEpsilon(t *testing.T) {
	tracker := NewTracker(zap.NewNop())
	tracker.Register("op", 0, 1000)

	tracker.Observe("op", 100)
	// 均值从100变为101，变化1%，stable
	tracker.Observe("op", 102)

	b, _ := tracker.Get("op")
	assert.Equal(t, models.BenchmarkTrendStable, b.Trend)
}

func TestObserveUnknownOperation(t *testing.T) {
	tracker := NewTracker(zap.NewNop())
	tracker.Observe("unknown", 1)

	_, ok := tracker.Get("unknown")
	assert.False(t, ok)
	assert.Empty(t, tracker.List())
}
