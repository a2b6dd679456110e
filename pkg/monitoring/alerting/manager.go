// Package alerting 实现告警规则评估与告警生命周期管理
package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// Dispatcher 通知分发接口，由notifier包实现
type Dispatcher interface {
	// Dispatch 将告警分发到指定渠道，调用不阻塞
	Dispatch(alert *models.Alert, channelIDs []string, eventType string)
}

// Config 告警管理器配置
type Config struct {
	// Store 规则存储，为空时使用内存存储
	Store RuleStore
	// Dispatcher 通知分发器，可为空（只记录不通知）
	Dispatcher Dispatcher
	// Logger 日志记录器
	Logger *zap.Logger
	// EnableWatcher 是否监听存储中的规则变更（etcd存储时使用）
	EnableWatcher bool
	// UnitResolver 指标单位查询函数，可为空
	UnitResolver func(metric string) string
}

// track 一条签名轨道的迟滞状态，同一签名的评估串行进行
type track struct {
	mu          sync.Mutex
	consecutive int
	lastTrigger time.Time
}

// occurrence 告警标题的累计发生统计
type occurrence struct {
	count    int
	lastSeen time.Time
}

// Manager 告警管理器，持有规则与告警并负责评估
type Manager struct {
	store      RuleStore
	dispatcher Dispatcher
	logger     *zap.Logger
	validate   *validator.Validate
	unitOf     func(metric string) string

	mu                sync.RWMutex
	rules             map[string]*models.AlertRule
	alerts            map[string]*models.Alert
	activeBySignature map[string]string
	occurrences       map[string]*occurrence

	tracksMu sync.Mutex
	tracks   map[string]*track

	events *eventBus

	enableWatcher bool
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// New 创建一个新的告警管理器
func New(config Config) *Manager {
	if config.Logger == nil {
		config.Logger, _ = zap.NewProduction()
	}
	if config.Store == nil {
		config.Store = NewMemoryRuleStore()
	}
	if config.UnitResolver == nil {
		config.UnitResolver = func(string) string { return "" }
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:             config.Store,
		dispatcher:        config.Dispatcher,
		logger:            config.Logger,
		validate:          validator.New(),
		unitOf:            config.UnitResolver,
		rules:             make(map[string]*models.AlertRule),
		alerts:            make(map[string]*models.Alert),
		activeBySignature: make(map[string]string),
		occurrences:       make(map[string]*occurrence),
		tracks:            make(map[string]*track),
		events:            newEventBus(),
		enableWatcher:     config.EnableWatcher,
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start 启动告警管理器，加载规则并按需启动变更监听
func (m *Manager) Start() error {
	rules, err := m.store.LoadRules(m.ctx)
	if err != nil {
		return fmt.Errorf("加载告警规则失败: %w", err)
	}

	m.mu.Lock()
	for _, rule := range rules {
		m.rules[rule.ID] = rule
	}
	m.mu.Unlock()

	if m.enableWatcher {
		m.wg.Add(1)
		go m.watchRules()
	}

	m.logger.Info("告警管理器已启动", zap.Int("rules", len(rules)))
	return nil
}

// Stop 停止告警管理器
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.events.close()
	m.logger.Info("告警管理器已停止")
}

// watchRules 监听存储中的规则变更
func (m *Manager) watchRules() {
	defer m.wg.Done()

	events, err := m.store.WatchRules(m.ctx)
	if err != nil {
		m.logger.Error("启动规则变更监听失败", zap.Error(err))
		return
	}

	for event := range events {
		m.mu.Lock()
		switch event.Type {
		case RuleEventPut:
			m.rules[event.RuleID] = event.Rule
			m.logger.Info("告警规则已更新", zap.String("id", event.RuleID))
		case RuleEventDelete:
			delete(m.rules, event.RuleID)
			m.logger.Info("告警规则已删除", zap.String("id", event.RuleID))
		}
		m.mu.Unlock()
	}
}

// Subscribe 订阅告警生命周期事件
func (m *Manager) Subscribe(handler EventHandler) {
	m.events.subscribe(handler)
}

// EvaluateMetric 对一个到达的指标值评估全部匹配的启用规则。
// 该方法不会失败：未知指标、无匹配规则均为无操作。
func (m *Manager) EvaluateMetric(metric string, value float64, tags map[string]string) {
	m.mu.RLock()
	matched := make([]*models.AlertRule, 0, 2)
	for _, rule := range m.rules {
		if rule.Enabled && rule.Metric == metric {
			matched = append(matched, rule)
		}
	}
	m.mu.RUnlock()

	for _, rule := range matched {
		m.evaluateRule(rule, value, tags)
	}
}

// Evaluate 对单条规则评估一个指标值，规则不存在或未启用时无操作
func (m *Manager) Evaluate(ruleID string, value float64, tags map[string]string) {
	m.mu.RLock()
	rule, exists := m.rules[ruleID]
	m.mu.RUnlock()

	if !exists {
		m.logger.Debug("评估未知规则，已忽略", zap.String("rule", ruleID))
		return
	}
	if !rule.Enabled {
		return
	}
	m.evaluateRule(rule, value, tags)
}

// evaluateRule 单条规则的评估。同一签名的评估串行进行，
// 不同签名之间互不影响。
func (m *Manager) evaluateRule(rule *models.AlertRule, value float64, tags map[string]string) {
	conditionMet := checkCondition(rule.Condition, value, rule.Threshold, m.logger)
	sig := Signature(rule.ID, tags)

	tr := m.trackOf(sig)
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if !conditionMet {
		tr.consecutive = 0
		m.autoResolve(sig, rule)
		return
	}

	// 连续失败迟滞：未达到要求次数前不触发，计数跨调用保持
	if rule.ConsecutiveFailures > 0 {
		tr.consecutive++
		if tr.consecutive < rule.ConsecutiveFailures {
			m.logger.Debug("条件满足但未达到连续失败次数",
				zap.String("rule", rule.ID),
				zap.Int("consecutive", tr.consecutive),
				zap.Int("required", rule.ConsecutiveFailures))
			return
		}
	}

	// 冷却期内抑制重复触发
	now := time.Now()
	if !tr.lastTrigger.IsZero() && now.Sub(tr.lastTrigger) < rule.Cooldown {
		m.logger.Debug("签名处于冷却期，抑制触发",
			zap.String("rule", rule.ID),
			zap.String("signature", sig),
			zap.Time("last_trigger", tr.lastTrigger))
		return
	}

	tr.lastTrigger = now
	m.trigger(sig, rule, value, tags, now)
}

// trigger 创建新告警并分发通知
func (m *Manager) trigger(sig string, rule *models.AlertRule, value float64, tags map[string]string, now time.Time) {
	alert := &models.Alert{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Metric:      rule.Metric,
		Tags:        tags,
		Severity:    rule.Severity,
		Value:       value,
		Threshold:   rule.Threshold,
		Condition:   rule.Condition,
		Unit:        m.unitOf(rule.Metric),
		Status:      models.AlertStatusActive,
		CreatedAt:   now,
		Description: rule.Description,
	}

	m.mu.Lock()
	// 同一签名最多一个未解决告警：冷却期后重新触发时，
	// 旧告警被新告警取代并标记为已解决
	if oldID, exists := m.activeBySignature[sig]; exists {
		if old, ok := m.alerts[oldID]; ok && old.Status != models.AlertStatusResolved {
			resolvedAt := now
			old.Status = models.AlertStatusResolved
			old.ResolvedAt = &resolvedAt
			m.logger.Debug("旧告警被新触发取代", zap.String("old", oldID))
		}
	}
	m.alerts[alert.ID] = alert
	m.activeBySignature[sig] = alert.ID

	occ := m.occurrences[rule.Name]
	if occ == nil {
		occ = &occurrence{}
		m.occurrences[rule.Name] = occ
	}
	occ.count++
	occ.lastSeen = now
	m.mu.Unlock()

	m.logger.Info("触发新告警",
		zap.String("id", alert.ID),
		zap.String("rule", rule.Name),
		zap.String("metric", rule.Metric),
		zap.String("severity", string(rule.Severity)),
		zap.Float64("value", value),
		zap.Float64("threshold", rule.Threshold))

	m.events.publish(models.AlertEventTriggered, alert)
	if m.dispatcher != nil {
		m.dispatcher.Dispatch(alert, rule.Channels, "triggered")
	}
}

// autoResolve 条件不再满足时解决该签名下未解决的告警，可重复调用
func (m *Manager) autoResolve(sig string, rule *models.AlertRule) {
	m.mu.Lock()
	id, exists := m.activeBySignature[sig]
	if !exists {
		m.mu.Unlock()
		return
	}

	alert := m.alerts[id]
	if alert == nil || alert.Status == models.AlertStatusResolved {
		delete(m.activeBySignature, sig)
		m.mu.Unlock()
		return
	}

	now := time.Now()
	alert.Status = models.AlertStatusResolved
	alert.ResolvedAt = &now
	delete(m.activeBySignature, sig)
	m.mu.Unlock()

	m.logger.Info("告警自动解决",
		zap.String("id", alert.ID),
		zap.String("rule", alert.RuleName))

	m.events.publish(models.AlertEventResolved, alert)
	if m.dispatcher != nil {
		m.dispatcher.Dispatch(alert, rule.Channels, "resolved")
	}
}

// trackOf 获取或创建签名轨道
func (m *Manager) trackOf(sig string) *track {
	m.tracksMu.Lock()
	defer m.tracksMu.Unlock()

	tr, exists := m.tracks[sig]
	if !exists {
		tr = &track{}
		m.tracks[sig] = tr
	}
	return tr
}

// checkCondition 检查指标值是否满足告警条件，未知条件视为不满足
func checkCondition(condition models.AlertConditionType, value, threshold float64, logger *zap.Logger) bool {
	switch condition {
	case models.ConditionGreaterThan:
		return value > threshold
	case models.ConditionLessThan:
		return value < threshold
	case models.ConditionEqual:
		return value == threshold
	case models.ConditionGreaterThanOrEqual:
		return value >= threshold
	case models.ConditionLessThanOrEqual:
		return value <= threshold
	default:
		logger.Warn("未知的条件类型", zap.String("condition", string(condition)))
		return false
	}
}

// Acknowledge 确认告警。仅当告警存在且处于active状态时成功。
func (m *Manager) Acknowledge(alertID, actor string) bool {
	m.mu.Lock()
	alert, exists := m.alerts[alertID]
	if !exists || alert.Status != models.AlertStatusActive {
		m.mu.Unlock()
		return false
	}

	now := time.Now()
	alert.Status = models.AlertStatusAcknowledged
	alert.AcknowledgedBy = actor
	alert.AcknowledgedAt = &now
	m.mu.Unlock()

	m.logger.Info("告警已确认",
		zap.String("id", alertID),
		zap.String("actor", actor))

	m.events.publish(models.AlertEventAcknowledged, alert)
	return true
}

// Resolve 手动解决告警。除已解决的告警外均成功。
func (m *Manager) Resolve(alertID, actor string) bool {
	m.mu.Lock()
	alert, exists := m.alerts[alertID]
	if !exists || alert.Status == models.AlertStatusResolved {
		m.mu.Unlock()
		return false
	}

	now := time.Now()
	alert.Status = models.AlertStatusResolved
	alert.ResolvedAt = &now

	// 清理签名索引，避免后续评估误判该签名仍有未解决告警
	sig := Signature(alert.RuleID, alert.Tags)
	if m.activeBySignature[sig] == alertID {
		delete(m.activeBySignature, sig)
	}
	m.mu.Unlock()

	m.logger.Info("告警已手动解决",
		zap.String("id", alertID),
		zap.String("actor", actor))

	m.events.publish(models.AlertEventResolved, alert)
	return true
}

// MarkNotified 记录告警在某渠道的成功通知，由分发器回调
func (m *Manager) MarkNotified(alertID, channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, exists := m.alerts[alertID]
	if !exists {
		return
	}
	for _, id := range alert.NotifiedChannels {
		if id == channelID {
			return
		}
	}
	alert.NotifiedChannels = append(alert.NotifiedChannels, channelID)
}

// GetAlert 获取指定ID的告警快照
func (m *Manager) GetAlert(alertID string) (*models.Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, exists := m.alerts[alertID]
	if !exists {
		return nil, false
	}
	return alert.Clone(), true
}

// GetActiveAlerts 获取全部未解决告警的快照（active与acknowledged）
func (m *Manager) GetActiveAlerts() []*models.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := make([]*models.Alert, 0)
	for _, alert := range m.alerts {
		if alert.Status != models.AlertStatusResolved {
			alerts = append(alerts, alert.Clone())
		}
	}
	return alerts
}

// ActiveCounts 返回active状态告警按严重程度的计数
func (m *Manager) ActiveCounts() map[models.AlertSeverity]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[models.AlertSeverity]int)
	for _, alert := range m.alerts {
		if alert.Status == models.AlertStatusActive {
			counts[alert.Severity]++
		}
	}
	return counts
}

// PurgeResolvedBefore 删除在截止时间之前解决的告警，
// 同时清理长期未触发的空闲签名轨道，返回删除的告警数
func (m *Manager) PurgeResolvedBefore(cutoff time.Time) int {
	m.mu.Lock()
	removed := 0
	for id, alert := range m.alerts {
		if alert.Status == models.AlertStatusResolved && alert.ResolvedAt != nil && alert.ResolvedAt.Before(cutoff) {
			delete(m.alerts, id)
			removed++
		}
	}
	m.mu.Unlock()

	m.tracksMu.Lock()
	for sig, tr := range m.tracks {
		tr.mu.Lock()
		idle := tr.consecutive == 0 && !tr.lastTrigger.IsZero() && tr.lastTrigger.Before(cutoff)
		tr.mu.Unlock()
		if idle {
			delete(m.tracks, sig)
		}
	}
	m.tracksMu.Unlock()

	if removed > 0 {
		m.logger.Info("清理已解决的历史告警", zap.Int("removed", removed))
	}
	return removed
}
