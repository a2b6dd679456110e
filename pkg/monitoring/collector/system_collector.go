// Package collector 实现主机系统指标采集功能
package collector

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/metrics"
	"github.com/xsxdot/clubmon/pkg/monitoring/models"
	"github.com/xsxdot/clubmon/pkg/scheduler"
)

// 系统指标名称
const (
	MetricCPUUsage       = "system_cpu_usage"
	MetricMemoryUsage    = "system_memory_usage"
	MetricDiskUsage      = "system_disk_usage"
	MetricLoad1          = "system_load1"
	MetricGoroutineCount = "system_goroutine_count"
	MetricHeapAlloc      = "system_heap_alloc"
	MetricGCPause        = "system_gc_pause"
)

// SystemCollectorConfig 系统指标采集器配置
type SystemCollectorConfig struct {
	// CollectInterval 采集间隔，0使用默认值60秒
	CollectInterval time.Duration
	// DiskPath 磁盘使用率采集路径，默认根分区
	DiskPath string
	// Logger 日志记录器
	Logger *zap.Logger
	// Store 指标存储
	Store *metrics.Store
	// Scheduler 调度器
	Scheduler *scheduler.Scheduler
}

// SystemCollector 主机系统指标采集器，周期性将CPU、内存、
// 磁盘与负载写入指标存储
type SystemCollector struct {
	config SystemCollectorConfig
	logger *zap.Logger
	store  *metrics.Store
	task   scheduler.Task
}

// NewSystemCollector 创建系统指标采集器并注册指标序列
func NewSystemCollector(config SystemCollectorConfig) *SystemCollector {
	if config.Logger == nil {
		config.Logger, _ = zap.NewProduction()
	}
	if config.CollectInterval <= 0 {
		config.CollectInterval = 60 * time.Second
	}
	if config.DiskPath == "" {
		config.DiskPath = "/"
	}

	c := &SystemCollector{
		config: config,
		logger: config.Logger,
		store:  config.Store,
	}

	c.store.Register(MetricCPUUsage, models.MetricKindGauge, "%")
	c.store.Register(MetricMemoryUsage, models.MetricKindGauge, "%")
	c.store.Register(MetricDiskUsage, models.MetricKindGauge, "%")
	c.store.Register(MetricLoad1, models.MetricKindGauge, "")
	c.store.Register(MetricGoroutineCount, models.MetricKindGauge, "")
	c.store.Register(MetricHeapAlloc, models.MetricKindGauge, "bytes")
	c.store.Register(MetricGCPause, models.MetricKindGauge, "ms")

	hostname, _ := os.Hostname()
	c.task = scheduler.NewIntervalTask(
		fmt.Sprintf("system-collector-%s", hostname),
		time.Now(),
		config.CollectInterval,
		30*time.Second,
		c.collect,
	)

	return c
}

// Start 启动系统指标采集
func (c *SystemCollector) Start() error {
	if c.config.Scheduler == nil {
		return fmt.Errorf("调度器未配置")
	}

	c.logger.Info("启动系统指标采集器",
		zap.Duration("interval", c.config.CollectInterval))
	return c.config.Scheduler.AddTask(c.task)
}

// Stop 停止系统指标采集
func (c *SystemCollector) Stop() error {
	if c.config.Scheduler != nil {
		c.config.Scheduler.RemoveTask(c.task.GetID())
	}
	c.logger.Info("系统指标采集器已停止")
	return nil
}

// collect 执行一轮采集。单项采集失败只记录日志，
// 不影响其余指标的采集。
func (c *SystemCollector) collect(ctx context.Context) error {
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		c.logger.Warn("采集CPU使用率失败", zap.Error(err))
	} else if len(percents) > 0 {
		c.store.Record(MetricCPUUsage, percents[0], nil)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		c.logger.Warn("采集内存使用率失败", zap.Error(err))
	} else {
		c.store.Record(MetricMemoryUsage, vm.UsedPercent, nil)
	}

	if usage, err := disk.UsageWithContext(ctx, c.config.DiskPath); err != nil {
		c.logger.Warn("采集磁盘使用率失败",
			zap.String("path", c.config.DiskPath),
			zap.Error(err))
	} else {
		c.store.Record(MetricDiskUsage, usage.UsedPercent, map[string]string{"path": c.config.DiskPath})
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		c.logger.Warn("采集系统负载失败", zap.Error(err))
	} else {
		c.store.Record(MetricLoad1, avg.Load1, nil)
	}

	c.store.Record(MetricGoroutineCount, float64(runtime.NumGoroutine()), nil)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	c.store.Record(MetricHeapAlloc, float64(ms.HeapAlloc), nil)
	if ms.NumGC > 0 {
		pause := ms.PauseNs[(ms.NumGC+255)%256]
		c.store.Record(MetricGCPause, float64(pause)/1e6, nil)
	}

	return nil
}
