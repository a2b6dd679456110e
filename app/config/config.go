// Package config 负责应用配置的加载、校验与热更新
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/xsxdot/clubmon/pkg/common"
	"github.com/xsxdot/clubmon/pkg/notifier"
)

// ConfigFileName 默认配置文件名
const ConfigFileName = "clubmon.yaml"

// SystemConfig 系统配置
type SystemConfig struct {
	// Mode 运行模式
	Mode string `yaml:"mode"`
	// DataDir 数据目录，配置后启用指标快照持久化
	DataDir string `yaml:"data_dir"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"required,min=1,max=65535"`
}

// MonitorConfig 监控周期配置
type MonitorConfig struct {
	// CollectInterval 系统指标采集周期
	CollectInterval time.Duration `yaml:"collect_interval" validate:"min=0"`
	// PerformanceInterval 性能基准回写周期
	PerformanceInterval time.Duration `yaml:"performance_interval" validate:"min=0"`
	// OperationalInterval 运营指标回写周期
	OperationalInterval time.Duration `yaml:"operational_interval" validate:"min=0"`
	// RuleCheckInterval 规则复查周期
	RuleCheckInterval time.Duration `yaml:"rule_check_interval" validate:"min=0"`
	// CleanupInterval 清理周期
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"min=0"`
	// EscalationScanInterval 升级扫描周期
	EscalationScanInterval time.Duration `yaml:"escalation_scan_interval" validate:"min=0"`
	// Retention 数据保留时长
	Retention time.Duration `yaml:"retention" validate:"min=0"`
	// SeriesCap 单指标序列容量
	SeriesCap int `yaml:"series_cap" validate:"min=0"`
}

// EtcdConfig etcd配置，配置后告警规则改用etcd存储
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints" validate:"required,min=1"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	RulePrefix  string        `yaml:"rule_prefix"`
}

// Config 应用配置
type Config struct {
	System  SystemConfig      `yaml:"system"`
	Server  ServerConfig      `yaml:"server" validate:"required"`
	Logger  *common.LogConfig `yaml:"logger"`
	Monitor MonitorConfig     `yaml:"monitor"`
	Etcd    *EtcdConfig       `yaml:"etcd,omitempty"`
	// Channels 启动时注册的通知渠道
	Channels []*notifier.Channel `yaml:"channels,omitempty"`

	path string
	mu   sync.RWMutex
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	logCfg := common.DefaultLogConfig()
	return &Config{
		System: SystemConfig{
			Mode: "standalone",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logger: &logCfg,
	}
}

// LoadConfig 从目录中加载配置文件并应用环境变量覆盖
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = filepath.Join(configPath, ConfigFileName)

	if err := cfg.load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// load 读取文件、应用环境变量并校验
func (c *Config) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return err
	}

	if c.System.DataDir != "" {
		if err := os.MkdirAll(c.System.DataDir, 0755); err != nil {
			return fmt.Errorf("创建数据目录失败: %w", err)
		}
	}
	return nil
}

// applyEnvOverrides 应用CLUBMON_*环境变量覆盖
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CLUBMON_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("CLUBMON_HTTP_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("CLUBMON_DATA_DIR"); v != "" {
		c.System.DataDir = v
	}
	if v := os.Getenv("CLUBMON_LOG_LEVEL"); v != "" {
		if c.Logger == nil {
			logCfg := common.DefaultLogConfig()
			c.Logger = &logCfg
		}
		c.Logger.Level = common.LogLevel(v)
	}
	if v := os.Getenv("CLUBMON_ETCD_ENDPOINTS"); v != "" {
		if c.Etcd == nil {
			c.Etcd = &EtcdConfig{}
		}
		c.Etcd.Endpoints = strings.Split(v, ",")
	}
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return common.NewValidationError(fmt.Sprintf("配置校验失败: %v", err), err)
	}

	for _, channel := range c.Channels {
		if err := validate.Struct(channel); err != nil {
			return common.NewValidationError(
				fmt.Sprintf("通知渠道配置校验失败 %s: %v", channel.Name, err), err)
		}
	}
	return nil
}

// Reload 重新从文件加载配置
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := DefaultConfig()
	fresh.path = c.path
	if err := fresh.load(); err != nil {
		return fmt.Errorf("重新加载配置失败: %w", err)
	}

	c.System = fresh.System
	c.Server = fresh.Server
	c.Logger = fresh.Logger
	c.Monitor = fresh.Monitor
	c.Etcd = fresh.Etcd
	c.Channels = fresh.Channels
	return nil
}

// Snapshot 返回当前配置的副本，供并发读取
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Config{
		System:   c.System,
		Server:   c.Server,
		Logger:   c.Logger,
		Monitor:  c.Monitor,
		Etcd:     c.Etcd,
		Channels: c.Channels,
	}
}
