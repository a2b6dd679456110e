// Package notifier 提供有界的通知历史记录
package notifier

import (
	"sync"
)

// history 有界的通知结果历史，成功记录按(告警, 渠道)建立索引，
// 供升级扫描去重使用
type history struct {
	mu      sync.RWMutex
	results []NotificationResult
	cap     int
	// succeeded 记录成功投递的(告警ID|渠道ID)组合的出现次数，
	// 环形淘汰时递减，归零后删除
	succeeded map[string]int
}

// newHistory 创建指定容量的历史记录
func newHistory(cap int) *history {
	return &history{
		cap:       cap,
		succeeded: make(map[string]int),
	}
}

// successKey 生成成功索引的键
func successKey(alertID, channelID string) string {
	return alertID + "|" + channelID
}

// record 追加一条通知结果，超出容量时淘汰最旧的记录
func (h *history) record(result NotificationResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.results) >= h.cap {
		oldest := h.results[0]
		copy(h.results, h.results[1:])
		h.results = h.results[:len(h.results)-1]

		if oldest.Success {
			key := successKey(oldest.AlertID, oldest.ChannelID)
			if h.succeeded[key] <= 1 {
				delete(h.succeeded, key)
			} else {
				h.succeeded[key]--
			}
		}
	}

	h.results = append(h.results, result)
	if result.Success {
		h.succeeded[successKey(result.AlertID, result.ChannelID)]++
	}
}

// hasSucceeded 检查(告警, 渠道)组合是否有成功记录
func (h *history) hasSucceeded(alertID, channelID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.succeeded[successKey(alertID, channelID)] > 0
}

// recent 返回最近的limit条记录，limit不大于0时返回全部
func (h *history) recent(limit int) []NotificationResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.results) {
		limit = len(h.results)
	}
	out := make([]NotificationResult, limit)
	copy(out, h.results[len(h.results)-limit:])
	return out
}
