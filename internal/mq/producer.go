package mq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pumpfun-indexer-sol/internal/config"
	"pumpfun-indexer-sol/internal/utils"
	"pumpfun-indexer-sol/internal/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	defaultBatchSize = 32 * 1024
	defaultLingerMs  = 5
	metadataTimeout  = 10 * time.Second
)

// NewKafkaProducer 创建事件生产者；事件 topic 不存在时先按配置的分区数创建
func NewKafkaProducer(cfg config.KafkaProducerConfig) (*kafka.Producer, error) {
	if strings.TrimSpace(cfg.Brokers) == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if err := ensureTopic(cfg); err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(producerConfig(cfg, utils.GetLocalIP()))
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}

func ensureTopic(cfg config.KafkaProducerConfig) error {
	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cfg.Brokers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	meta, err := adminClient.GetMetadata(&cfg.Topic, false, int(metadataTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}
	if t, ok := meta.Topics[cfg.Topic]; ok && t.Error.Code() == kafka.ErrNoError {
		logger.Infof("[Kafka] topic 已存在: topic=%s, partitions=%d", cfg.Topic, len(t.Partitions))
		return nil
	}

	spec := topicSpec(cfg, len(meta.Brokers))
	logger.Infof("[Kafka] 创建 topic: topic=%s, partitions=%d, replication=%d",
		spec.Topic, spec.NumPartitions, spec.ReplicationFactor)

	ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
	defer cancel()
	results, err := adminClient.CreateTopics(ctx, []kafka.TopicSpecification{spec})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", cfg.Topic, err)
	}
	for _, r := range results {
		// 并发启动的实例可能已抢先创建
		if code := r.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %w", r.Topic, r.Error)
		}
	}
	return nil
}

// topicSpec 多 broker 时使用 2 副本
func topicSpec(cfg config.KafkaProducerConfig, brokerCount int) kafka.TopicSpecification {
	replication := 1
	if brokerCount > 1 {
		replication = 2
	}
	return kafka.TopicSpecification{
		Topic:             cfg.Topic,
		NumPartitions:     max(cfg.Partitions, 1),
		ReplicationFactor: replication,
	}
}

func producerConfig(cfg config.KafkaProducerConfig, host string) *kafka.ConfigMap {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	lingerMs := cfg.LingerMs
	if lingerMs < 0 {
		lingerMs = defaultLingerMs
	}

	return &kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         "pumpfun-indexer-" + host,

		// 幂等投递：同一 mint 的事件在分区内保持顺序
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5,

		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		"batch.size":        batchSize,
		"linger.ms":         lingerMs,
		"compression.type":  "lz4",
		"message.max.bytes": 1024 * 1024,
	}
}
