package escalation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/common"
	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

type stubSource struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (s *stubSource) GetActiveAlerts() []*models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a.Clone())
	}
	return out
}

func (s *stubSource) set(alerts ...*models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = alerts
}

type stubDispatcher struct {
	mu    sync.Mutex
	calls []escalationCall
}

type escalationCall struct {
	alert    *models.Alert
	channels []string
	event    string
}

func (d *stubDispatcher) Dispatch(alert *models.Alert, channelIDs []string, eventType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, escalationCall{alert: alert, channels: channelIDs, event: eventType})
}

func (d *stubDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func activeAlert(id string, severity models.AlertSeverity, age time.Duration) *models.Alert {
	return &models.Alert{
		ID:        id,
		RuleName:  "查询耗时过高",
		Severity:  severity,
		Status:    models.AlertStatusActive,
		CreatedAt: time.Now().Add(-age),
	}
}

func criticalRule(after time.Duration) *models.EscalationRule {
	return &models.EscalationRule{
		Name:       "critical-unacked",
		Severities: []models.AlertSeverity{models.AlertSeverityCritical},
		After:      after,
		Channels:   []string{"ch-oncall"},
		Enabled:    true,
	}
}

func newTestMonitor(t *testing.T, source AlertSource, dispatcher Dispatcher) *Monitor {
	t.Helper()
	return New(Config{
		Source:     source,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
}

func TestScanEscalatesOverdueActiveAlerts(t *testing.T) {
	source := &stubSource{}
	dispatcher := &stubDispatcher{}
	m := newTestMonitor(t, source, dispatcher)
	require.NoError(t, m.AddRule(criticalRule(10*time.Minute)))

	source.set(
		activeAlert("a1", models.AlertSeverityCritical, 15*time.Minute),
		activeAlert("a2", models.AlertSeverityCritical, 5*time.Minute),
		activeAlert("a3", models.AlertSeverityWarning, time.Hour),
	)

	m.Scan()

	require.Equal(t, 1, dispatcher.count())
	call := dispatcher.calls[0]
	assert.Equal(t, "a1", call.alert.ID)
	assert.Equal(t, "escalated", call.event)
	assert.Equal(t, []string{"ch-oncall"}, call.channels)
}

func TestScanEscalatesAtMostOncePerAlertAndRule(t *testing.T) {
	source := &stubSource{}
	dispatcher := &stubDispatcher{}
	m := newTestMonitor(t, source, dispatcher)
	require.NoError(t, m.AddRule(criticalRule(10*time.Minute)))

	source.set(activeAlert("a1", models.AlertSeverityCritical, 15*time.Minute))

	m.Scan()
	m.Scan()
	m.Scan()
	assert.Equal(t, 1, dispatcher.count())

	// 第二条规则匹配同一告警时独立升级一次
	second := criticalRule(12 * time.Minute)
	second.Name = "critical-oncall-page"
	require.NoError(t, m.AddRule(second))

	m.Scan()
	assert.Equal(t, 2, dispatcher.count())
}

func TestScanSkipsAcknowledgedAndDisabled(t *testing.T) {
	source := &stubSource{}
	dispatcher := &stubDispatcher{}
	m := newTestMonitor(t, source, dispatcher)

	rule := criticalRule(10 * time.Minute)
	rule.Enabled = false
	require.NoError(t, m.AddRule(rule))

	acked := activeAlert("a1", models.AlertSeverityCritical, time.Hour)
	acked.Status = models.AlertStatusAcknowledged
	source.set(acked, activeAlert("a2", models.AlertSeverityCritical, time.Hour))

	m.Scan()
	assert.Equal(t, 0, dispatcher.count(), "禁用规则不应升级")

	rule.Enabled = true
	require.NoError(t, m.UpdateRule(rule))
	m.Scan()
	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, "a2", dispatcher.calls[0].alert.ID, "已确认告警不应升级")
}

func TestScanSkipsImmediateRules(t *testing.T) {
	source := &stubSource{}
	dispatcher := &stubDispatcher{}
	m := newTestMonitor(t, source, dispatcher)

	// 时限为0的规则不参与周期扫描
	require.NoError(t, m.AddRule(criticalRule(0)))
	source.set(activeAlert("a1", models.AlertSeverityCritical, time.Hour))

	m.Scan()
	assert.Equal(t, 0, dispatcher.count())
}

func TestMessageOverrideReplacesDescription(t *testing.T) {
	source := &stubSource{}
	dispatcher := &stubDispatcher{}
	m := newTestMonitor(t, source, dispatcher)

	rule := criticalRule(10 * time.Minute)
	rule.Message = "值班人员请立即处理"
	require.NoError(t, m.AddRule(rule))

	alert := activeAlert("a1", models.AlertSeverityCritical, time.Hour)
	alert.Description = "原始描述"
	source.set(alert)

	m.Scan()
	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, "值班人员请立即处理", dispatcher.calls[0].alert.Description)
}

func TestFiredMarksPrunedAfterResolve(t *testing.T) {
	source := &stubSource{}
	dispatcher := &stubDispatcher{}
	m := newTestMonitor(t, source, dispatcher)
	require.NoError(t, m.AddRule(criticalRule(10*time.Minute)))

	source.set(activeAlert("a1", models.AlertSeverityCritical, time.Hour))
	m.Scan()
	assert.Equal(t, 1, dispatcher.count())

	// 告警解决后标记被清理，内存不随历史告警增长
	source.set()
	m.Scan()

	m.mu.RLock()
	assert.Empty(t, m.fired)
	m.mu.RUnlock()
}

func TestRuleValidation(t *testing.T) {
	m := newTestMonitor(t, &stubSource{}, &stubDispatcher{})

	bad := criticalRule(time.Minute)
	bad.Channels = nil
	err := m.AddRule(bad)
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.ErrorTypeValidation, appErr.Type)

	require.NoError(t, m.AddRule(criticalRule(time.Minute)))
	err = m.AddRule(criticalRule(time.Minute))
	appErr, ok = common.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.ErrorTypeConflict, appErr.Type)

	err = m.RemoveRule("missing")
	appErr, ok = common.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.ErrorTypeNotFound, appErr.Type)
}

func TestStartStopLifecycle(t *testing.T) {
	m := New(Config{
		Source:       &stubSource{},
		Dispatcher:   &stubDispatcher{},
		Logger:       zap.NewNop(),
		ScanInterval: 10 * time.Millisecond,
	})
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}
