package alerting

import (
	"sort"
	"time"

	"github.com/xsxdot/clubmon/pkg/monitoring/models"
)

// DefaultTopAlerts 摘要中排名条目的默认数量
const DefaultTopAlerts = 5

// Summary 生成告警聚合摘要：活动告警按严重程度计数、
// 已解决告警按解决时间分桶、按发生次数排名的前topN条告警。
// topN小于等于0时使用默认值。
func (m *Manager) Summary(topN int) *models.AlertSummary {
	if topN <= 0 {
		topN = DefaultTopAlerts
	}

	now := time.Now()
	summary := &models.AlertSummary{
		ActiveBySeverity: make(map[models.AlertSeverity]int),
		GeneratedAt:      now,
	}

	// 分桶边界按日历计算：今日零点、本周一零点、本月一日零点
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	weekStart := dayStart.AddDate(0, 0, -(weekday - 1))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	m.mu.RLock()
	for _, alert := range m.alerts {
		switch alert.Status {
		case models.AlertStatusActive:
			summary.ActiveBySeverity[alert.Severity]++
		case models.AlertStatusResolved:
			if alert.ResolvedAt == nil {
				continue
			}
			resolved := *alert.ResolvedAt
			if !resolved.Before(monthStart) {
				summary.Resolved.ThisMonth++
			}
			if !resolved.Before(weekStart) {
				summary.Resolved.ThisWeek++
			}
			if !resolved.Before(dayStart) {
				summary.Resolved.Today++
			}
		}
	}

	entries := make([]models.TopAlertEntry, 0, len(m.occurrences))
	for title, occ := range m.occurrences {
		entries = append(entries, models.TopAlertEntry{
			Title:    title,
			Count:    occ.count,
			LastSeen: occ.lastSeen,
		})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}
	summary.TopAlerts = entries

	return summary
}
