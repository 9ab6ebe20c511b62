package mq

import (
	"testing"

	"pumpfun-indexer-sol/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerConfig(t *testing.T) {
	cm := producerConfig(config.KafkaProducerConfig{Brokers: "b1:9092,b2:9092", LingerMs: -1}, "10.0.0.1")

	v, err := cm.Get("client.id", nil)
	require.NoError(t, err)
	assert.Equal(t, "pumpfun-indexer-10.0.0.1", v)

	v, _ = cm.Get("batch.size", nil)
	assert.Equal(t, defaultBatchSize, v)
	v, _ = cm.Get("linger.ms", nil)
	assert.Equal(t, defaultLingerMs, v)
	v, _ = cm.Get("enable.idempotence", nil)
	assert.Equal(t, true, v)

	cm = producerConfig(config.KafkaProducerConfig{Brokers: "b1:9092", BatchSize: 1024, LingerMs: 0}, "h")
	v, _ = cm.Get("batch.size", nil)
	assert.Equal(t, 1024, v)
	v, _ = cm.Get("linger.ms", nil)
	assert.Equal(t, 0, v)
}

func TestTopicSpec(t *testing.T) {
	spec := topicSpec(config.KafkaProducerConfig{Topic: "pumpfun-events", Partitions: 8}, 1)
	assert.Equal(t, "pumpfun-events", spec.Topic)
	assert.Equal(t, 8, spec.NumPartitions)
	assert.Equal(t, 1, spec.ReplicationFactor)

	spec = topicSpec(config.KafkaProducerConfig{Topic: "t"}, 3)
	assert.Equal(t, 1, spec.NumPartitions)
	assert.Equal(t, 2, spec.ReplicationFactor)
}

func TestNewKafkaProducerRequiresBrokers(t *testing.T) {
	_, err := NewKafkaProducer(config.KafkaProducerConfig{Brokers: "  "})
	assert.Error(t, err)
}
