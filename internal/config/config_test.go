package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grpc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
logger:
  format: json
  level: debug
kafka_producer:
  brokers: "127.0.0.1:9092"
rpc:
  endpoint: "https://rpc.example.com"
grpc:
  endpoint: "grpc.example.com:443"
  connect_timeout_sec: 20
`)
	c, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "json", c.LogConf.Format)
	assert.Equal(t, "127.0.0.1:9092", c.KafkaProducerConf.Brokers)
	assert.Equal(t, "pumpfun-events", c.KafkaProducerConf.Topic)
	assert.Equal(t, 8, c.KafkaProducerConf.Partitions)
	assert.Equal(t, "https://rpc.example.com", c.Rpc.Endpoint)
	assert.Equal(t, 5000, c.TimeConf.SlotDispatchTimeoutMs)
	assert.Equal(t, 60, c.ProgressConf.RecentThresholdSec)

	assert.Equal(t, "grpc.example.com:443", c.Grpc.Endpoint)
	assert.Equal(t, 20, c.Grpc.ConnectTimeoutSec, "显式配置不被覆盖")
	assert.Equal(t, 10, c.Grpc.StreamPingIntervalSec)
	assert.Equal(t, 64*1024*1024, c.Grpc.MaxCallRecvMsgSize)
	assert.Equal(t, 60, c.Grpc.BlockRecvTimeoutSec)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, "grpc: [unclosed"))
	assert.Error(t, err)
}

func TestLogConfigToLogOption(t *testing.T) {
	c := LogConfig{Format: "console", LogDir: "logs", Level: "warn", Compress: true}
	opt := c.ToLogOption()
	assert.Equal(t, "console", opt.Format)
	assert.Equal(t, "logs", opt.LogDir)
	assert.Equal(t, "warn", opt.Level)
	assert.True(t, opt.Compress)
}
