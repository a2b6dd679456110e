// Package api 提供监控系统的HTTP API接口
package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/xsxdot/clubmon/pkg/monitoring"
	"github.com/xsxdot/clubmon/pkg/monitoring/models"
	"github.com/xsxdot/clubmon/pkg/notifier"
	"github.com/xsxdot/clubmon/pkg/utils"
)

// API 监控系统的HTTP API
type API struct {
	monitor *monitoring.Monitor
	logger  *zap.Logger
}

// NewAPI 创建新的监控系统API
func NewAPI(monitor *monitoring.Monitor, logger *zap.Logger) *API {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	return &API{
		monitor: monitor,
		logger:  logger,
	}
}

// RegisterRoutes 注册所有API路由
func (api *API) RegisterRoutes(router fiber.Router) {
	group := router.Group("/monitoring")

	// 系统状态与健康检查
	group.Get("/status", api.getSystemStatus)
	group.Get("/health", api.getHealthCheck)

	// 指标查询
	group.Get("/metrics", api.getMetricSnapshot)
	group.Get("/metrics/:name", api.getMetricStats)
	group.Post("/metrics", api.recordMetric)

	// 告警规则CRUD
	ruleGroup := group.Group("/rules")
	ruleGroup.Get("/", api.getAlertRules)
	ruleGroup.Get("/:id", api.getAlertRule)
	ruleGroup.Post("/", api.createAlertRule)
	ruleGroup.Put("/:id", api.updateAlertRule)
	ruleGroup.Delete("/:id", api.deleteAlertRule)
	ruleGroup.Patch("/:id/toggle", api.toggleAlertRule)

	// 告警生命周期
	alertGroup := group.Group("/alerts")
	alertGroup.Get("/active", api.getActiveAlerts)
	alertGroup.Get("/summary", api.getAlertSummary)
	alertGroup.Get("/:id", api.getAlert)
	alertGroup.Post("/:id/acknowledge", api.acknowledgeAlert)
	alertGroup.Post("/:id/resolve", api.resolveAlert)

	// 通知渠道CRUD
	channelGroup := group.Group("/channels")
	channelGroup.Get("/", api.getChannels)
	channelGroup.Get("/:id", api.getChannel)
	channelGroup.Post("/", api.createChannel)
	channelGroup.Put("/:id", api.updateChannel)
	channelGroup.Delete("/:id", api.deleteChannel)
	channelGroup.Patch("/:id/toggle", api.toggleChannel)
	channelGroup.Post("/:id/test", api.testChannel)
	channelGroup.Get("/history/recent", api.getNotificationHistory)

	// 升级规则CRUD
	escalationGroup := group.Group("/escalations")
	escalationGroup.Get("/", api.getEscalationRules)
	escalationGroup.Post("/", api.createEscalationRule)
	escalationGroup.Put("/:name", api.updateEscalationRule)
	escalationGroup.Delete("/:name", api.deleteEscalationRule)

	// 性能基准
	group.Get("/benchmarks", api.getBenchmarks)

	api.logger.Info("监控系统API路由已注册")
}

// 系统状态处理函数

// getSystemStatus 获取系统聚合状态
func (api *API) getSystemStatus(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, api.monitor.SystemStatus())
}

// getHealthCheck 获取各子组件健康检查结果
func (api *API) getHealthCheck(c *fiber.Ctx) error {
	check := api.monitor.HealthCheck()
	if !check.Healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.Success(check))
	}
	return utils.SuccessResponse(c, check)
}

// 指标处理函数

// getMetricSnapshot 获取全部指标序列快照
func (api *API) getMetricSnapshot(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, api.monitor.MetricStore().ExportAll())
}

// getMetricStats 获取指定指标在时间窗口内的统计结果
func (api *API) getMetricStats(c *fiber.Ctx) error {
	name := c.Params("name")

	window := time.Hour
	if windowStr := c.Query("window"); windowStr != "" {
		parsed, err := time.ParseDuration(windowStr)
		if err != nil {
			return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无效的时间窗口: %v", err))
		}
		window = parsed
	}

	stats, ok := api.monitor.MetricStore().Stats(name, window)
	if !ok {
		return utils.FailResponse(c, utils.StatusNotFound, fmt.Sprintf("指标无数据: %s", name))
	}
	return utils.SuccessResponse(c, stats)
}

// recordMetric 记录一个指标值
func (api *API) recordMetric(c *fiber.Ctx) error {
	request := struct {
		Name  string            `json:"name"`
		Value float64           `json:"value"`
		Tags  map[string]string `json:"tags"`
	}{}

	if err := c.BodyParser(&request); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}
	if request.Name == "" {
		return utils.FailResponse(c, utils.StatusBadRequest, "指标名称不能为空")
	}

	api.monitor.RecordMetric(request.Name, request.Value, request.Tags)
	return utils.SuccessResponse(c, true)
}

// 告警规则处理函数

// getAlertRules 获取所有告警规则
func (api *API) getAlertRules(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, api.monitor.Evaluator().GetRules())
}

// getAlertRule 获取特定告警规则
func (api *API) getAlertRule(c *fiber.Ctx) error {
	id := c.Params("id")
	rule, exists := api.monitor.Evaluator().GetRule(id)
	if !exists {
		return utils.FailResponse(c, utils.StatusNotFound, fmt.Sprintf("告警规则不存在: %s", id))
	}
	return utils.SuccessResponse(c, rule)
}

// createAlertRule 创建告警规则
func (api *API) createAlertRule(c *fiber.Ctx) error {
	rule := new(models.AlertRule)
	if err := c.BodyParser(rule); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	if err := api.monitor.Evaluator().AddRule(c.Context(), rule); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, rule)
}

// updateAlertRule 更新告警规则
func (api *API) updateAlertRule(c *fiber.Ctx) error {
	id := c.Params("id")
	rule := new(models.AlertRule)
	if err := c.BodyParser(rule); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	// 确保ID匹配
	rule.ID = id

	if err := api.monitor.Evaluator().UpdateRule(c.Context(), rule); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, rule)
}

// deleteAlertRule 删除告警规则
func (api *API) deleteAlertRule(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := api.monitor.Evaluator().DeleteRule(c.Context(), id); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, true)
}

// toggleAlertRule 切换告警规则的启用状态
func (api *API) toggleAlertRule(c *fiber.Ctx) error {
	id := c.Params("id")

	request := struct {
		Enabled bool `json:"enabled"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	if err := api.monitor.Evaluator().ToggleRule(c.Context(), id, request.Enabled); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, true)
}

// 告警生命周期处理函数

// getActiveAlerts 获取活动告警
func (api *API) getActiveAlerts(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, api.monitor.Evaluator().GetActiveAlerts())
}

// getAlertSummary 获取告警聚合摘要
func (api *API) getAlertSummary(c *fiber.Ctx) error {
	topN := 0
	if topStr := c.Query("top"); topStr != "" {
		parsed, err := strconv.Atoi(topStr)
		if err != nil {
			return utils.FailResponse(c, utils.StatusBadRequest, "无效的top参数")
		}
		topN = parsed
	}
	return utils.SuccessResponse(c, api.monitor.Evaluator().Summary(topN))
}

// getAlert 获取特定告警
func (api *API) getAlert(c *fiber.Ctx) error {
	id := c.Params("id")
	alert, exists := api.monitor.Evaluator().GetAlert(id)
	if !exists {
		return utils.FailResponse(c, utils.StatusNotFound, fmt.Sprintf("告警不存在: %s", id))
	}
	return utils.SuccessResponse(c, alert)
}

// acknowledgeAlert 确认告警
func (api *API) acknowledgeAlert(c *fiber.Ctx) error {
	id := c.Params("id")

	request := struct {
		Actor string `json:"actor"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	if !api.monitor.Evaluator().Acknowledge(id, request.Actor) {
		return utils.FailResponse(c, utils.StatusConflict, "告警不存在或状态不允许确认")
	}
	return utils.SuccessResponse(c, true)
}

// resolveAlert 手动解决告警
func (api *API) resolveAlert(c *fiber.Ctx) error {
	id := c.Params("id")

	request := struct {
		Actor string `json:"actor"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	if !api.monitor.Evaluator().Resolve(id, request.Actor) {
		return utils.FailResponse(c, utils.StatusConflict, "告警不存在或已解决")
	}
	return utils.SuccessResponse(c, true)
}

// 通知渠道处理函数

// getChannels 获取所有通知渠道
func (api *API) getChannels(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, api.monitor.Dispatcher().GetChannels())
}

// getChannel 获取特定通知渠道
func (api *API) getChannel(c *fiber.Ctx) error {
	id := c.Params("id")
	channel, err := api.monitor.Dispatcher().GetChannel(id)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, channel)
}

// createChannel 创建通知渠道
func (api *API) createChannel(c *fiber.Ctx) error {
	channel := new(notifier.Channel)
	if err := c.BodyParser(channel); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	if err := api.monitor.Dispatcher().AddChannel(channel); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, channel)
}

// updateChannel 更新通知渠道
func (api *API) updateChannel(c *fiber.Ctx) error {
	id := c.Params("id")
	channel := new(notifier.Channel)
	if err := c.BodyParser(channel); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	channel.ID = id

	if err := api.monitor.Dispatcher().UpdateChannel(channel); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, channel)
}

// deleteChannel 删除通知渠道
func (api *API) deleteChannel(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := api.monitor.Dispatcher().RemoveChannel(id); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, true)
}

// toggleChannel 切换通知渠道的启用状态
func (api *API) toggleChannel(c *fiber.Ctx) error {
	id := c.Params("id")

	request := struct {
		Enabled bool `json:"enabled"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	if err := api.monitor.Dispatcher().ToggleChannel(id, request.Enabled); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, true)
}

// testChannel 向渠道发送测试通知
func (api *API) testChannel(c *fiber.Ctx) error {
	id := c.Params("id")
	result, err := api.monitor.Dispatcher().TestChannel(id)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, result)
}

// getNotificationHistory 获取最近的通知历史
func (api *API) getNotificationHistory(c *fiber.Ctx) error {
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return utils.FailResponse(c, utils.StatusBadRequest, "无效的limit参数")
		}
		limit = parsed
	}
	return utils.SuccessResponse(c, api.monitor.Dispatcher().History(limit))
}

// 升级规则处理函数

// getEscalationRules 获取所有升级规则
func (api *API) getEscalationRules(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, api.monitor.EscalationMonitor().GetRules())
}

// createEscalationRule 创建升级规则
func (api *API) createEscalationRule(c *fiber.Ctx) error {
	rule := new(models.EscalationRule)
	if err := c.BodyParser(rule); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	if err := api.monitor.EscalationMonitor().AddRule(rule); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, rule)
}

// updateEscalationRule 更新升级规则
func (api *API) updateEscalationRule(c *fiber.Ctx) error {
	name := c.Params("name")
	rule := new(models.EscalationRule)
	if err := c.BodyParser(rule); err != nil {
		return utils.FailResponse(c, utils.StatusBadRequest, fmt.Sprintf("无法解析请求体: %v", err))
	}

	rule.Name = name

	if err := api.monitor.EscalationMonitor().UpdateRule(rule); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, rule)
}

// deleteEscalationRule 删除升级规则
func (api *API) deleteEscalationRule(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := api.monitor.EscalationMonitor().RemoveRule(name); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, true)
}

// 性能基准处理函数

// getBenchmarks 获取全部性能基准
func (api *API) getBenchmarks(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, api.monitor.Tracker().List())
}
