package common

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"pumpfun-indexer-sol/internal/logic/core"
)

// 跳过原因
const (
	SkipUnknownDiscriminator = "unknown_discriminator"
	SkipTruncatedPayload     = "truncated_payload"
	SkipInvalidAccountIndex  = "invalid_account_index"
	SkipLogPatternMismatch   = "log_pattern_mismatch"
	SkipEventPayloadMissing  = "event_payload_missing"
	SkipAccountMismatch      = "account_mismatch"
	SkipPanic                = "panic"
	SkipOther                = "other"
)

// SkipStats 记录一次解析中被跳过的节点数量，按原因分类。
// 解析结果本身不包含失败信息，调用方通过它观察丢弃情况。
type SkipStats struct {
	counts map[string]int
}

func NewSkipStats() *SkipStats {
	return &SkipStats{counts: make(map[string]int)}
}

// Reason 将错误归类为跳过原因
func Reason(err error) string {
	switch {
	case errors.Is(err, core.ErrUnknownDiscriminator):
		return SkipUnknownDiscriminator
	case errors.Is(err, core.ErrTruncatedPayload):
		return SkipTruncatedPayload
	case errors.Is(err, core.ErrInvalidAccountIndex):
		return SkipInvalidAccountIndex
	case errors.Is(err, core.ErrLogPatternMismatch):
		return SkipLogPatternMismatch
	case errors.Is(err, core.ErrEventPayloadMissing):
		return SkipEventPayloadMissing
	case errors.Is(err, core.ErrAccountMismatch):
		return SkipAccountMismatch
	default:
		return SkipOther
	}
}

func (s *SkipStats) Add(err error) {
	if err == nil {
		return
	}
	s.counts[Reason(err)]++
}

func (s *SkipStats) AddReason(reason string) {
	s.counts[reason]++
}

func (s *SkipStats) Count(reason string) int {
	return s.counts[reason]
}

func (s *SkipStats) Total() int {
	total := 0
	for _, n := range s.counts {
		total += n
	}
	return total
}

// Merge 累加另一份统计，用于区块级汇总
func (s *SkipStats) Merge(other *SkipStats) {
	if other == nil {
		return
	}
	for k, v := range other.counts {
		s.counts[k] += v
	}
}

// Snapshot 返回计数副本
func (s *SkipStats) Snapshot() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// String 形如 "account_mismatch=1 unknown_discriminator=2"，用于日志
func (s *SkipStats) String() string {
	keys := make([]string, 0, len(s.counts))
	for k := range s.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.Itoa(s.counts[k]))
	}
	return sb.String()
}
