package dispatcher

import (
	"fmt"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/mq"
	"pumpfun-indexer-sol/internal/utils"
)

// BuildEventKafkaJobs 将解析出的事件构造成 KafkaJob，每个事件一条消息。
// 同一 mint 的事件落在同一分区，消息体为 utils.EncodeEvent 的输出。
// 构建后的 []*mq.KafkaJob 可直接传入 mq.SendKafkaJobs 发送。
func BuildEventKafkaJobs(topic string, partitions int, events []*core.Event) ([]*mq.KafkaJob, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if partitions <= 0 {
		partitions = 1
	}

	jobs := make([]*mq.KafkaJob, 0, len(events))
	for _, evt := range events {
		value, err := utils.EncodeEvent(evt)
		if err != nil {
			return nil, fmt.Errorf("encode event sig=%s idx=%s: %w", evt.Signature, evt.Idx, err)
		}
		mint := evt.Data.MintKey()
		jobs = append(jobs, &mq.KafkaJob{
			Topic:     topic,
			Partition: utils.PartitionForMint(mint, partitions),
			Key:       mint[:],
			Value:     value,
		})
	}
	return jobs, nil
}

// CountByType 统计各类事件数量，用于日志与监控
func CountByType(events []*core.Event) map[string]int {
	counts := make(map[string]int, 3)
	for _, evt := range events {
		counts[string(evt.Type)]++
	}
	return counts
}
