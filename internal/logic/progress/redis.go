package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProgressStore 管理 Redis 中的 slot 状态记录（幂等控制）
type RedisProgressStore struct {
	rdb *redis.Client
	ttl time.Duration
}

const (
	slotKeyPrefix = "progress:pumpfun:slot"
	latestSlotKey = "progress:pumpfun:latest"
	defaultTTL    = 7 * 24 * time.Hour
)

// NewRedisProgressStore 创建 Redis 判重管理器
func NewRedisProgressStore(rdb *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{rdb: rdb, ttl: defaultTTL}
}

func slotKey(slot uint64) string {
	return fmt.Sprintf("%s:%d", slotKeyPrefix, slot)
}

// parseStatus 容错解析 Redis 中的状态值
func parseStatus(val int) SlotStatus {
	switch SlotStatus(val) {
	case SlotProcessed, SlotInvalid, SlotPending:
		return SlotStatus(val)
	default:
		return SlotUnknown
	}
}

// GetSlotStatus 获取 slot 的状态（Unknown / Processed / Invalid / Pending）
func (r *RedisProgressStore) GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error) {
	val, err := r.rdb.Get(ctx, slotKey(slot)).Int()
	switch {
	case err == redis.Nil:
		return SlotUnknown, nil
	case err != nil:
		return SlotUnknown, fmt.Errorf("redis get error: %w", err)
	default:
		return parseStatus(val), nil
	}
}

// MarkSlotStatus 设置 slot 的状态，并在处理成功时推进最新 slot 水位
func (r *RedisProgressStore) MarkSlotStatus(ctx context.Context, record *SlotRecord) error {
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, slotKey(record.Slot), int(record.Status), r.ttl)
	if record.Status == SlotProcessed {
		// 仅当新 slot 更大时更新水位
		pipe.Eval(ctx, advanceLatestScript, []string{latestSlotKey}, record.Slot)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mark slot %d %s: %w", record.Slot, record.Status, err)
	}
	return nil
}

// LatestSlot 返回已处理的最大 slot，不存在时为 0
func (r *RedisProgressStore) LatestSlot(ctx context.Context) (uint64, error) {
	v, err := r.rdb.Get(ctx, latestSlotKey).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get latest slot: %w", err)
	}
	return v, nil
}

const advanceLatestScript = `
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local v = tonumber(ARGV[1])
if v > cur then
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`
