package notifier

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/common"
	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// stubSender 可编程的发送器，failures次失败后成功
type stubSender struct {
	channelID string
	failures  int32
	calls     int32
}

func (s *stubSender) Send(alert *models.Alert, eventType string) (*NotificationResult, error) {
	n := atomic.AddInt32(&s.calls, 1)
	result := &NotificationResult{
		AlertID:   alert.ID,
		ChannelID: s.channelID,
		EventType: eventType,
		Timestamp: time.Now(),
	}
	if n <= atomic.LoadInt32(&s.failures) {
		result.Error = "模拟发送失败"
		return result, nil
	}
	result.Success = true
	return result, nil
}

// stubFactory 为每个渠道返回预设的发送器
type stubFactory struct {
	mu      sync.Mutex
	senders map[string]*stubSender
}

func newStubFactory() *stubFactory {
	return &stubFactory{senders: make(map[string]*stubSender)}
}

func (f *stubFactory) CreateSender(channel *Channel) (Sender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.senders[channel.ID]; ok {
		return s, nil
	}
	s := &stubSender{channelID: channel.ID}
	f.senders[channel.ID] = s
	return s, nil
}

func (f *stubFactory) SupportedTypes() []ChannelType {
	return []ChannelType{ChannelTypeLog}
}

func newTestManager(t *testing.T, factory SenderFactory) *Manager {
	t.Helper()
	m := NewManager(Config{
		Factory:      factory,
		Logger:       zap.NewNop(),
		RetryBackoff: 5 * time.Millisecond,
		MaxRetries:   2,
		HistorySize:  100,
	})
	t.Cleanup(m.Stop)
	return m
}

func addLogChannel(t *testing.T, m *Manager, id string, enabled bool) {
	t.Helper()
	err := m.AddChannel(&Channel{
		ID:      id,
		Type:    ChannelTypeLog,
		Name:    "渠道" + id,
		Enabled: enabled,
	})
	require.NoError(t, err)
}

func testAlert() *models.Alert {
	return &models.Alert{
		ID:        "alert-1",
		RuleID:    "rule-1",
		RuleName:  "缓存命中率过低",
		Metric:    "cache_hit_rate",
		Severity:  models.AlertSeverityWarning,
		Value:     50,
		Threshold: 60,
		Condition: models.ConditionLessThan,
		Status:    models.AlertStatusActive,
		CreatedAt: time.Now(),
	}
}

func TestDispatchSuccessInvokesCallback(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory)
	addLogChannel(t, m, "ch1", true)

	var mu sync.Mutex
	var notified []string
	m.SetNotifiedCallback(func(alertID, channelID string) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, alertID+"|"+channelID)
	})

	m.Dispatch(testAlert(), []string{"ch1"}, EventTypeTriggered)
	m.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"alert-1|ch1"}, notified)
	assert.True(t, m.HasNotified("alert-1", "ch1"))
}

func TestDispatchChannelIsolation(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory)
	addLogChannel(t, m, "bad", true)
	addLogChannel(t, m, "good", true)

	// bad渠道永久失败
	atomic.StoreInt32(&factory.senders["bad"].failures, 100)

	m.Dispatch(testAlert(), []string{"bad", "good"}, EventTypeTriggered)
	m.Flush()

	assert.False(t, m.HasNotified("alert-1", "bad"))
	assert.True(t, m.HasNotified("alert-1", "good"))
	// 1次初始尝试加2次重试
	assert.Equal(t, int32(3), atomic.LoadInt32(&factory.senders["bad"].calls))
}

func TestDispatchRetrySucceedsAfterFailure(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory)
	addLogChannel(t, m, "flaky", true)

	// 第一次失败，第二次成功
	atomic.StoreInt32(&factory.senders["flaky"].failures, 1)

	m.Dispatch(testAlert(), []string{"flaky"}, EventTypeTriggered)
	m.Flush()

	assert.True(t, m.HasNotified("alert-1", "flaky"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&factory.senders["flaky"].calls))

	results := m.History(0)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, 2, results[1].Attempt)
}

func TestDispatchSkipsDisabledAndUnknownChannels(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory)
	addLogChannel(t, m, "off", false)

	m.Dispatch(testAlert(), []string{"off", "missing"}, EventTypeTriggered)
	m.Flush()

	// 跳过不算失败，也不产生历史记录
	assert.Empty(t, m.History(0))
	assert.Equal(t, int32(0), atomic.LoadInt32(&factory.senders["off"].calls))
}

func TestAddChannelValidation(t *testing.T) {
	m := newTestManager(t, newStubFactory())

	err := m.AddChannel(&Channel{Type: "carrier-pigeon", Name: "x"})
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.ErrorTypeValidation, appErr.Type)
}

func TestAddChannelDuplicateID(t *testing.T) {
	m := newTestManager(t, newStubFactory())
	addLogChannel(t, m, "dup", true)

	err := m.AddChannel(&Channel{ID: "dup", Type: ChannelTypeLog, Name: "again"})
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.ErrorTypeConflict, appErr.Type)
}

func TestToggleAndRemoveChannel(t *testing.T) {
	m := newTestManager(t, newStubFactory())
	addLogChannel(t, m, "ch", true)

	require.NoError(t, m.ToggleChannel("ch", false))
	channel, err := m.GetChannel("ch")
	require.NoError(t, err)
	assert.False(t, channel.Enabled)

	require.NoError(t, m.RemoveChannel("ch"))
	_, err = m.GetChannel("ch")
	assert.Error(t, err)

	assert.Error(t, m.ToggleChannel("ch", true))
}

func TestTestChannelRejectsDisabled(t *testing.T) {
	factory := newStubFactory()
	m := newTestManager(t, factory)
	addLogChannel(t, m, "ch", true)

	result, err := m.TestChannel("ch")
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.NoError(t, m.ToggleChannel("ch", false))
	_, err = m.TestChannel("ch")
	require.Error(t, err)
	appErr, ok := common.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.ErrorTypeValidation, appErr.Type)

	_, err = m.TestChannel("missing")
	require.Error(t, err)
	appErr, ok = common.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.ErrorTypeNotFound, appErr.Type)
}

func TestGetChannelsReturnSnapshots(t *testing.T) {
	m := newTestManager(t, newStubFactory())
	addLogChannel(t, m, "ch", true)

	snapshot := m.GetChannels()
	require.Len(t, snapshot, 1)
	require.NoError(t, m.ToggleChannel("ch", false))
	assert.True(t, snapshot[0].Enabled)

	single, err := m.GetChannel("ch")
	require.NoError(t, err)
	single.Name = "改名"
	current, err := m.GetChannel("ch")
	require.NoError(t, err)
	assert.Equal(t, "渠道ch", current.Name)
}

func TestHistoryBounded(t *testing.T) {
	h := newHistory(3)
	for i := 0; i < 5; i++ {
		h.record(NotificationResult{
			AlertID:   fmt.Sprintf("a%d", i),
			ChannelID: "ch",
			Success:   true,
		})
	}

	results := h.recent(0)
	require.Len(t, results, 3)
	assert.Equal(t, "a2", results[0].AlertID)
	assert.Equal(t, "a4", results[2].AlertID)

	// 被淘汰的成功记录不再可查
	assert.False(t, h.hasSucceeded("a0", "ch"))
	assert.True(t, h.hasSucceeded("a4", "ch"))
}
