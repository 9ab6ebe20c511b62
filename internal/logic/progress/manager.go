package progress

import (
	"context"
	"time"

	"pumpfun-indexer-sol/internal/pkg/logger"
)

// SlotStore 是进度存储的抽象，RedisProgressStore 为默认实现
type SlotStore interface {
	GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error)
	MarkSlotStatus(ctx context.Context, record *SlotRecord) error
}

// ProgressManager 控制 slot 判重与进度写入。store 为 nil 时所有 slot 都处理、不记录进度。
type ProgressManager struct {
	store           SlotStore
	recentThreshold time.Duration // 新 block 的判断阈值
	now             func() time.Time
}

func NewProgressManager(store SlotStore, recentThresholdSec int) *ProgressManager {
	if recentThresholdSec <= 0 {
		recentThresholdSec = 60
	}
	return &ProgressManager{
		store:           store,
		recentThreshold: time.Duration(recentThresholdSec) * time.Second,
		now:             time.Now,
	}
}

// ShouldProcessSlot 用于判断是否需要处理该 slot：
// - 如果 block 是"最近的"，直接处理（重连重放的旧块才需要判重）
// - 否则查 Redis，已处理或已判定无效的 slot 跳过
func (pm *ProgressManager) ShouldProcessSlot(ctx context.Context, slot uint64, blockTime int64) (bool, error) {
	if pm.store == nil {
		return true, nil
	}
	if blockTime > 0 && pm.now().Sub(time.Unix(blockTime, 0)) <= pm.recentThreshold {
		return true, nil
	}

	status, err := pm.store.GetSlotStatus(ctx, slot)
	if err != nil {
		return false, err
	}
	return status != SlotProcessed && status != SlotInvalid, nil
}

// MarkSlotStatus 标记某 slot 的处理状态（Pending 与 Unknown 不记录）
func (pm *ProgressManager) MarkSlotStatus(ctx context.Context, record *SlotRecord) error {
	if pm.store == nil {
		return nil
	}
	switch record.Status {
	case SlotProcessed, SlotInvalid:
	default:
		return nil
	}
	if err := pm.store.MarkSlotStatus(ctx, record); err != nil {
		logger.Warnf("[Progress] 记录 slot 状态失败: slot=%d, status=%s, source=%s, err=%v",
			record.Slot, record.Status, SourceName(record.Source), err)
		return err
	}
	return nil
}
