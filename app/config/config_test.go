package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsxdot/clubmon/pkg/common"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))
	return dir
}

const validYAML = `
system:
  mode: standalone
server:
  host: 127.0.0.1
  port: 9090
logger:
  level: debug
  console: true
monitor:
  collect_interval: 30s
  retention: 168h
channels:
  - id: ch-log
    name: 运维日志
    type: log
    enabled: true
`

func TestLoadConfig(t *testing.T) {
	dir := writeConfigFile(t, validYAML)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, common.DebugLevel, cfg.Logger.Level)
	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, "ch-log", cfg.Channels[0].ID)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := writeConfigFile(t, validYAML)

	t.Setenv("CLUBMON_HTTP_PORT", "18080")
	t.Setenv("CLUBMON_LOG_LEVEL", "warn")
	t.Setenv("CLUBMON_ETCD_ENDPOINTS", "10.0.0.1:2379,10.0.0.2:2379")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 18080, cfg.Server.Port)
	assert.Equal(t, common.WarnLevel, cfg.Logger.Level)
	require.NotNil(t, cfg.Etcd)
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, cfg.Etcd.Endpoints)
}

func TestValidateRejectsBadPort(t *testing.T) {
	dir := writeConfigFile(t, `
server:
  port: 70000
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.ErrorTypeValidation, appErr.Type)
}

func TestValidateRejectsBadChannel(t *testing.T) {
	dir := writeConfigFile(t, `
server:
  port: 8080
channels:
  - id: ch-bad
    name: 错误渠道
    type: carrier-pigeon
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.ErrorTypeValidation, appErr.Type)
}

func TestReload(t *testing.T) {
	dir := writeConfigFile(t, validYAML)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`
server:
  port: 9091
`), 0644))

	require.NoError(t, cfg.Reload())
	assert.Equal(t, 9091, cfg.Server.Port)

	snapshot := cfg.Snapshot()
	assert.Equal(t, 9091, snapshot.Server.Port)
}
