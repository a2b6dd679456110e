package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring"
	"github.com/xsxdot/clubmon/pkg/monitoring/models"
	"github.com/xsxdot/clubmon/pkg/utils"
)

func newTestApp(t *testing.T) (*fiber.App, *monitoring.Monitor) {
	t.Helper()

	monitor := monitoring.NewMonitor(monitoring.Config{Logger: zap.NewNop()})
	app := fiber.New()
	NewAPI(monitor, zap.NewNop()).RegisterRoutes(app.Group("/api"))
	return app, monitor
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, utils.Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	var envelope utils.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func TestSystemStatusEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, envelope := doJSON(t, app, http.MethodGet, "/api/monitoring/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, utils.StatusSuccess, envelope.Code)
}

func TestRuleCRUDOverHTTP(t *testing.T) {
	app, monitor := newTestApp(t)

	rule := map[string]interface{}{
		"id":        "rule-1",
		"name":      "缓存命中率过低",
		"metric":    "cache_hit_rate",
		"condition": "lt",
		"threshold": 60,
		"severity":  "warning",
		"enabled":   true,
	}

	_, envelope := doJSON(t, app, http.MethodPost, "/api/monitoring/rules/", rule)
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	_, envelope = doJSON(t, app, http.MethodGet, "/api/monitoring/rules/rule-1", nil)
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	// 无效条件类型返回参数错误
	bad := map[string]interface{}{
		"id": "rule-2", "name": "x", "metric": "m",
		"condition": "between", "severity": "warning",
	}
	_, envelope = doJSON(t, app, http.MethodPost, "/api/monitoring/rules/", bad)
	assert.Equal(t, utils.StatusBadRequest, envelope.Code)

	_, envelope = doJSON(t, app, http.MethodPatch, "/api/monitoring/rules/rule-1/toggle",
		map[string]bool{"enabled": false})
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	toggled, exists := monitor.Evaluator().GetRule("rule-1")
	require.True(t, exists)
	assert.False(t, toggled.Enabled)

	_, envelope = doJSON(t, app, http.MethodDelete, "/api/monitoring/rules/rule-1", nil)
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	_, envelope = doJSON(t, app, http.MethodGet, "/api/monitoring/rules/rule-1", nil)
	assert.Equal(t, utils.StatusNotFound, envelope.Code)
}

func TestAlertLifecycleOverHTTP(t *testing.T) {
	app, monitor := newTestApp(t)

	rule := map[string]interface{}{
		"id":        "rule-1",
		"name":      "查询耗时过高",
		"metric":    "query_response_time",
		"condition": "gt",
		"threshold": 100,
		"severity":  "critical",
		"enabled":   true,
		"cooldown":  int64(5 * time.Minute),
	}
	_, envelope := doJSON(t, app, http.MethodPost, "/api/monitoring/rules/", rule)
	require.Equal(t, utils.StatusSuccess, envelope.Code)

	monitor.RecordMetric("query_response_time", 150, nil)

	alerts := monitor.Evaluator().GetActiveAlerts()
	require.Len(t, alerts, 1)
	alertID := alerts[0].ID

	_, envelope = doJSON(t, app, http.MethodPost, "/api/monitoring/alerts/"+alertID+"/acknowledge",
		map[string]string{"actor": "admin"})
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	// 已确认的告警不能重复确认
	_, envelope = doJSON(t, app, http.MethodPost, "/api/monitoring/alerts/"+alertID+"/acknowledge",
		map[string]string{"actor": "admin"})
	assert.Equal(t, utils.StatusConflict, envelope.Code)

	_, envelope = doJSON(t, app, http.MethodPost, "/api/monitoring/alerts/"+alertID+"/resolve",
		map[string]string{"actor": "admin"})
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	_, envelope = doJSON(t, app, http.MethodGet, "/api/monitoring/alerts/summary", nil)
	assert.Equal(t, utils.StatusSuccess, envelope.Code)
}

func TestChannelEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	channel := map[string]interface{}{
		"id":      "ch-log",
		"name":    "运维日志",
		"type":    "log",
		"enabled": true,
	}
	_, envelope := doJSON(t, app, http.MethodPost, "/api/monitoring/channels/", channel)
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	_, envelope = doJSON(t, app, http.MethodPost, "/api/monitoring/channels/ch-log/test", nil)
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	_, envelope = doJSON(t, app, http.MethodGet, "/api/monitoring/channels/missing", nil)
	assert.Equal(t, utils.StatusNotFound, envelope.Code)
}

func TestMetricEndpoints(t *testing.T) {
	app, monitor := newTestApp(t)
	monitor.RegisterMetric("club_member_total", models.MetricKindGauge, "")

	_, envelope := doJSON(t, app, http.MethodPost, "/api/monitoring/metrics",
		map[string]interface{}{"name": "club_member_total", "value": 42})
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	point, ok := monitor.MetricStore().Latest("club_member_total")
	require.True(t, ok)
	assert.Equal(t, 42.0, point.Value)

	// 未注册的指标名被丢弃，不会出现新序列
	_, envelope = doJSON(t, app, http.MethodPost, "/api/monitoring/metrics",
		map[string]interface{}{"name": "tpyo_metric_name", "value": 1})
	assert.Equal(t, utils.StatusSuccess, envelope.Code)
	_, ok = monitor.MetricStore().Latest("tpyo_metric_name")
	assert.False(t, ok)

	_, envelope = doJSON(t, app, http.MethodGet, "/api/monitoring/metrics/club_member_total?window=1h", nil)
	assert.Equal(t, utils.StatusSuccess, envelope.Code)

	_, envelope = doJSON(t, app, http.MethodGet, "/api/monitoring/metrics/unknown_metric", nil)
	assert.Equal(t, utils.StatusNotFound, envelope.Code)
}
