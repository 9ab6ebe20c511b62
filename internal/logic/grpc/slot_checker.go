package grpc

import (
	"context"
	"sort"
	"time"

	"pumpfun-indexer-sol/internal/pkg/logger"
)

// SlotRange 闭区间 [From, To]
type SlotRange struct {
	From     uint64
	To       uint64
	SubmitAt time.Time
}

// BlocksFetcher 返回 [from, to] 内实际产出的 block slot 列表
type BlocksFetcher func(ctx context.Context, from, to uint64) ([]uint64, error)

const (
	maxPendingRanges = 200
	maxRangeSize     = 10000           // 单次 getBlocks 的最大跨度
	delayBeforeCheck = 30 * time.Second // 等待 RPC 节点追上 confirmed 进度
)

// SlotChecker 对 gRPC 流中出现的 slot 断档做延迟复核：
// 被跳过的 slot 没有 block 属于正常空块；有 block 却没收到则为漏扫。
type SlotChecker struct {
	fetch     BlocksFetcher
	onMissing func(slot uint64)
	rangeCh   chan SlotRange
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSlotChecker fetch 一般为 rpc.RpcClient.GetBlocks 的包装；onMissing 可为 nil
func NewSlotChecker(fetch BlocksFetcher, onMissing func(slot uint64)) *SlotChecker {
	ctx, cancel := context.WithCancel(context.Background())
	return &SlotChecker{
		fetch:     fetch,
		onMissing: onMissing,
		rangeCh:   make(chan SlotRange, 300),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *SlotChecker) Start() {
	s.run()
}

func (s *SlotChecker) Stop() {
	s.cancel()
}

// Submit 提交一个待复核的 slot 区间（非阻塞，满了丢弃）
func (s *SlotChecker) Submit(from, to uint64) {
	if from > to {
		logger.Warnf("[SlotChecker] 非法区间: from=%d > to=%d", from, to)
		return
	}
	select {
	case s.rangeCh <- SlotRange{From: from, To: to, SubmitAt: time.Now()}:
	default:
		logger.Warnf("[SlotChecker] 队列已满，丢弃区间 [%d, %d]", from, to)
	}
}

func (s *SlotChecker) run() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var pending []SlotRange
	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("[SlotChecker] stopped")
			return

		case r := <-s.rangeCh:
			if len(pending) >= maxPendingRanges {
				logger.Warnf("[SlotChecker] 待检区间过多 (%d)，丢弃 [%d, %d]", len(pending), r.From, r.To)
				continue
			}
			pending = append(pending, r)

		case now := <-ticker.C:
			var ready []SlotRange
			ready, pending = splitReady(pending, now, delayBeforeCheck)
			if len(ready) > 0 {
				// 串行执行，防止 goroutine 累积
				s.checkSlotRanges(ready)
			}
		}
	}
}

// splitReady 按提交时间拆出已到期的区间
func splitReady(ranges []SlotRange, now time.Time, delay time.Duration) (ready, rest []SlotRange) {
	for _, r := range ranges {
		if now.Sub(r.SubmitAt) >= delay {
			ready = append(ready, r)
		} else {
			rest = append(rest, r)
		}
	}
	return ready, rest
}

func (s *SlotChecker) checkSlotRanges(ranges []SlotRange) {
	for _, r := range mergeRanges(ranges) {
		if s.ctx.Err() != nil {
			return
		}
		produced, err := s.fetchWithRetry(r.From, r.To, 3)
		if err != nil {
			logger.Warnf("[SlotChecker] getBlocks [%d, %d] 重试后仍失败: %v", r.From, r.To, err)
			continue
		}
		for _, slot := range producedSlots(r.From, r.To, produced) {
			logger.Errorf("[SlotChecker] slot %d 有出块但未收到，疑似漏扫", slot)
			if s.onMissing != nil {
				s.onMissing(slot)
			}
		}
	}
}

func (s *SlotChecker) fetchWithRetry(from, to uint64, maxRetries int) (blocks []uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[SlotChecker] getBlocks panic: %v", r)
			err = context.Canceled
		}
	}()

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(s.ctx, 6*time.Second)
		blocks, err = s.fetch(ctx, from, to)
		cancel()
		if err == nil || attempt >= maxRetries || s.ctx.Err() != nil {
			return blocks, err
		}
		time.Sleep(300 * time.Millisecond)
	}
}

// producedSlots 返回 [from, to] 内 RPC 确认已出块的 slot（即本应收到的 block）
func producedSlots(from, to uint64, blocks []uint64) []uint64 {
	var out []uint64
	for _, slot := range blocks {
		if slot >= from && slot <= to {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// mergeRanges 排序并合并重叠或相邻的区间，再按 maxRangeSize 切分，控制单次 RPC 查询规模
func mergeRanges(ranges []SlotRange) []SlotRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]SlotRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].From == sorted[j].From {
			return sorted[i].To < sorted[j].To
		}
		return sorted[i].From < sorted[j].From
	})

	merged := []SlotRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.From <= last.To+1 {
			if r.To > last.To {
				last.To = r.To
			}
			continue
		}
		merged = append(merged, r)
	}

	out := make([]SlotRange, 0, len(merged))
	for _, r := range merged {
		for from := r.From; ; from += maxRangeSize {
			to := from + maxRangeSize - 1
			if to >= r.To {
				out = append(out, SlotRange{From: from, To: r.To, SubmitAt: r.SubmitAt})
				break
			}
			out = append(out, SlotRange{From: from, To: to, SubmitAt: r.SubmitAt})
		}
	}
	return out
}
