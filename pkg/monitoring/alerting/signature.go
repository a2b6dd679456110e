// Package alerting 提供告警规则管理、评估与生命周期功能
package alerting

import (
	"sort"
	"strings"
)

// Signature 由规则ID与规范化的标签集合生成签名，
// 标签按键排序，与标签的书写顺序无关。
// 同一签名对应一条独立的冷却与连续失败跟踪轨道。
func Signature(ruleID string, tags map[string]string) string {
	if len(tags) == 0 {
		return ruleID
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(ruleID)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}
