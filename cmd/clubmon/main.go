package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/app/config"
	"github.com/xsxdot/clubmon/pkg/common"
	"github.com/xsxdot/clubmon/pkg/monitoring"
	"github.com/xsxdot/clubmon/pkg/monitoring/alerting"
	"github.com/xsxdot/clubmon/pkg/monitoring/api"
	"github.com/xsxdot/clubmon/pkg/monitoring/metrics"
)

func main() {
	configPath := flag.String("config", ".", "配置文件所在目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}

	logCfg := common.DefaultLogConfig()
	if cfg.Logger != nil {
		logCfg = *cfg.Logger
	}
	appLogger, err := common.NewLogger(logCfg)
	if err != nil {
		panic(fmt.Sprintf("初始化日志器失败: %v", err))
	}
	common.SetLogger(appLogger)
	logger := appLogger.ZapLogger()
	defer func() { _ = appLogger.Sync() }()

	monitorCfg := monitoring.Config{
		CollectInterval:        cfg.Monitor.CollectInterval,
		PerformanceInterval:    cfg.Monitor.PerformanceInterval,
		OperationalInterval:    cfg.Monitor.OperationalInterval,
		RuleCheckInterval:      cfg.Monitor.RuleCheckInterval,
		CleanupInterval:        cfg.Monitor.CleanupInterval,
		EscalationScanInterval: cfg.Monitor.EscalationScanInterval,
		Retention:              cfg.Monitor.Retention,
		SeriesCap:              cfg.Monitor.SeriesCap,
		Logger:                 logger,
	}

	// 可选的etcd规则存储
	var etcdClient *clientv3.Client
	if cfg.Etcd != nil {
		dialTimeout := cfg.Etcd.DialTimeout
		if dialTimeout <= 0 {
			dialTimeout = 5 * time.Second
		}
		etcdClient, err = clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: dialTimeout,
			Username:    cfg.Etcd.Username,
			Password:    cfg.Etcd.Password,
		})
		if err != nil {
			logger.Fatal("连接etcd失败", zap.Error(err))
		}
		defer func() { _ = etcdClient.Close() }()

		ruleStore, err := alerting.NewEtcdRuleStore(alerting.EtcdRuleStoreConfig{
			Client: etcdClient,
			Prefix: cfg.Etcd.RulePrefix,
			Logger: logger.Named("rule-store"),
		})
		if err != nil {
			logger.Fatal("创建etcd规则存储失败", zap.Error(err))
		}
		monitorCfg.RuleStore = ruleStore
	}

	// 可选的指标快照持久化
	if cfg.System.DataDir != "" {
		snapshotStore, err := metrics.NewBadgerSnapshotStore(
			filepath.Join(cfg.System.DataDir, "snapshots"),
			logger.Named("snapshot"),
		)
		if err != nil {
			logger.Fatal("打开指标快照存储失败", zap.Error(err))
		}
		defer func() { _ = snapshotStore.Close() }()
		monitorCfg.SnapshotStore = snapshotStore
	}

	monitor := monitoring.NewMonitor(monitorCfg)

	// 注册配置中的通知渠道
	for _, channel := range cfg.Channels {
		if err := monitor.Dispatcher().AddChannel(channel); err != nil {
			logger.Error("注册通知渠道失败",
				zap.String("name", channel.Name),
				zap.Error(err))
		}
	}

	if err := monitor.Start(); err != nil {
		logger.Fatal("启动监控系统失败", zap.Error(err))
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:      "clubmon",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	fiberApp.Use(recover.New())

	monitoringAPI := api.NewAPI(monitor, logger.Named("api"))
	monitoringAPI.RegisterRoutes(fiberApp.Group("/api"))

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("HTTP服务启动", zap.String("addr", addr))
		if err := fiberApp.Listen(addr); err != nil {
			logger.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到退出信号，开始关闭")
	if err := fiberApp.Shutdown(); err != nil {
		logger.Error("关闭HTTP服务失败", zap.Error(err))
	}
	if err := monitor.Stop(); err != nil {
		logger.Error("关闭监控系统失败", zap.Error(err))
	}
	logger.Info("进程退出")
}
