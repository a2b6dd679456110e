// Package metrics 实现指标数据的内存存储
package metrics

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// DefaultSeriesCap 单个序列默认的数据点容量上限
const DefaultSeriesCap = 1000

// series 一个指标的有序时间序列，最新的数据点在末尾
type series struct {
	mu     sync.Mutex
	name   string
	kind   models.MetricKind
	unit   string
	cap    int
	points []models.MetricPoint
}

// append 追加一个数据点，超出容量时淘汰最旧的点
func (s *series) append(p models.MetricPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.points) >= s.cap {
		copy(s.points, s.points[1:])
		s.points = s.points[:len(s.points)-1]
	}
	s.points = append(s.points, p)
}

// Config 指标存储配置
type Config struct {
	// SeriesCap 单序列容量上限，0表示使用默认值
	SeriesCap int
	// Logger 日志记录器
	Logger *zap.Logger
}

// Store 指标存储，持有全部已注册的指标序列
type Store struct {
	mu     sync.RWMutex
	series map[string]*series
	cap    int
	logger *zap.Logger
}

// NewStore 创建一个新的指标存储
func NewStore(config Config) *Store {
	if config.Logger == nil {
		config.Logger, _ = zap.NewProduction()
	}
	if config.SeriesCap <= 0 {
		config.SeriesCap = DefaultSeriesCap
	}

	return &Store{
		series: make(map[string]*series),
		cap:    config.SeriesCap,
		logger: config.Logger,
	}
}

// Register 注册一个指标序列，重复注册时保留原序列
func (s *Store) Register(name string, kind models.MetricKind, unit string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.series[name]; exists {
		return
	}

	s.series[name] = &series{
		name: name,
		kind: kind,
		unit: unit,
		cap:  s.cap,
	}
	s.logger.Debug("注册指标序列",
		zap.String("name", name),
		zap.String("kind", string(kind)))
}

// Registered 检查指标是否已注册
func (s *Store) Registered(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.series[name]
	return exists
}

// Unit 返回指标的单位，未注册时返回空字符串
func (s *Store) Unit(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sr, exists := s.series[name]; exists {
		return sr.unit
	}
	return ""
}

// Record 追加一个数据点，未注册的指标记录警告后忽略
func (s *Store) Record(name string, value float64, tags map[string]string) {
	s.mu.RLock()
	sr, exists := s.series[name]
	s.mu.RUnlock()

	if !exists {
		s.logger.Warn("记录未注册的指标，已忽略", zap.String("name", name))
		return
	}

	sr.append(models.MetricPoint{
		Timestamp: time.Now(),
		Value:     value,
		Tags:      copyTags(tags),
	})
}

// Latest 返回指标最新的数据点
func (s *Store) Latest(name string) (models.MetricPoint, bool) {
	s.mu.RLock()
	sr, exists := s.series[name]
	s.mu.RUnlock()

	if !exists {
		return models.MetricPoint{}, false
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	if len(sr.points) == 0 {
		return models.MetricPoint{}, false
	}
	return sr.points[len(sr.points)-1], true
}

// Stats 返回指标在时间窗口内的统计结果，窗口内无数据时返回false
func (s *Store) Stats(name string, window time.Duration) (models.SeriesStats, bool) {
	s.mu.RLock()
	sr, exists := s.series[name]
	s.mu.RUnlock()

	if !exists {
		return models.SeriesStats{}, false
	}

	cutoff := time.Now().Add(-window)

	sr.mu.Lock()
	defer sr.mu.Unlock()
	return computeStats(sr.points, cutoff)
}

// computeStats 计算cutoff之后数据点的统计结果
func computeStats(points []models.MetricPoint, cutoff time.Time) (models.SeriesStats, bool) {
	var stats models.SeriesStats
	var sum float64

	for _, p := range points {
		if p.Timestamp.Before(cutoff) {
			continue
		}
		if stats.Count == 0 {
			stats.Min = p.Value
			stats.Max = p.Value
		} else {
			if p.Value < stats.Min {
				stats.Min = p.Value
			}
			if p.Value > stats.Max {
				stats.Max = p.Value
			}
		}
		sum += p.Value
		stats.Latest = p.Value
		stats.Count++
	}

	if stats.Count == 0 {
		return models.SeriesStats{}, false
	}
	stats.Avg = sum / float64(stats.Count)
	return stats, true
}

// Window 返回指标在时间窗口内的全部数据点，最新的在末尾
func (s *Store) Window(name string, window time.Duration) []models.MetricPoint {
	s.mu.RLock()
	sr, exists := s.series[name]
	s.mu.RUnlock()

	if !exists {
		return nil
	}

	cutoff := time.Now().Add(-window)

	sr.mu.Lock()
	defer sr.mu.Unlock()

	var result []models.MetricPoint
	for _, p := range sr.points {
		if !p.Timestamp.Before(cutoff) {
			result = append(result, p)
		}
	}
	return result
}

// ExportAll 生成全部序列的快照，用于诊断
func (s *Store) ExportAll() models.MetricSnapshot {
	s.mu.RLock()
	all := make([]*series, 0, len(s.series))
	for _, sr := range s.series {
		all = append(all, sr)
	}
	s.mu.RUnlock()

	snapshot := models.MetricSnapshot{
		Timestamp: time.Now(),
		Series:    make(map[string]models.SeriesSnapshot, len(all)),
	}

	for _, sr := range all {
		sr.mu.Lock()
		entry := models.SeriesSnapshot{
			Name:       sr.name,
			Kind:       sr.kind,
			Unit:       sr.unit,
			PointCount: len(sr.points),
		}
		if len(sr.points) > 0 {
			latest := sr.points[len(sr.points)-1]
			entry.Latest = &latest
			if stats, ok := computeStats(sr.points, time.Time{}); ok {
				entry.Stats = &stats
			}
		}
		sr.mu.Unlock()
		snapshot.Series[sr.name] = entry
	}

	return snapshot
}

// PurgeOlderThan 删除早于指定时长的数据点，独立于容量淘汰
func (s *Store) PurgeOlderThan(age time.Duration) int {
	s.mu.RLock()
	all := make([]*series, 0, len(s.series))
	for _, sr := range s.series {
		all = append(all, sr)
	}
	s.mu.RUnlock()

	cutoff := time.Now().Add(-age)
	removed := 0

	for _, sr := range all {
		sr.mu.Lock()
		idx := 0
		for idx < len(sr.points) && sr.points[idx].Timestamp.Before(cutoff) {
			idx++
		}
		if idx > 0 {
			removed += idx
			sr.points = append(sr.points[:0], sr.points[idx:]...)
		}
		sr.mu.Unlock()
	}

	if removed > 0 {
		s.logger.Info("清理过期指标数据点", zap.Int("removed", removed))
	}
	return removed
}

// SeriesCount 返回已注册的序列数量
func (s *Store) SeriesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// copyTags 复制标签集合，保证数据点不可变
func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		cp[k] = v
	}
	return cp
}
