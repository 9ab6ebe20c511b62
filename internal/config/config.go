package config

import (
	"fmt"
	"os"

	"pumpfun-indexer-sol/internal/pkg/logger"

	"gopkg.in/yaml.v3"
)

// 同时带 json 与 yaml tag：go-zero conf.MustLoad 按 json tag 解析，LoadFile 按 yaml tag 解析。

type LogConfig struct {
	Format   string `json:"format,optional" yaml:"format"`     // 日志格式，支持 "console" 或 "json"
	LogDir   string `json:"log_dir,optional" yaml:"log_dir"`   // 日志目录（可为相对路径或绝对路径）
	Level    string `json:"level,optional" yaml:"level"`       // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress,optional" yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置
type KafkaProducerConfig struct {
	Brokers    string `json:"brokers" yaml:"brokers"`                       // Kafka broker 地址，多个用英文逗号分隔
	BatchSize  int    `json:"batch_size,optional" yaml:"batch_size"`        // 批处理大小（单位字节）
	LingerMs   int    `json:"linger_ms,optional" yaml:"linger_ms"`          // 批处理最大延迟（毫秒）
	Topic      string `json:"topic,default=pumpfun-events" yaml:"topic"`    // Pump.fun 事件 topic
	Partitions int    `json:"partitions,default=8" yaml:"partitions"`       // topic 分区数（按 mint 分区）
	Disabled   bool   `json:"disabled,optional" yaml:"disabled"`            // 仅解析不投递（调试用）
}

// TimeConfig 表示各种超时配置（单位：毫秒）
type TimeConfig struct {
	SlotDispatchTimeoutMs int `json:"slot_dispatch_timeout_ms,default=5000" yaml:"slot_dispatch_timeout_ms"` // 每个 slot 的处理最大耗时（Kafka + Redis）
	EventSendTimeoutMs    int `json:"event_send_timeout_ms,default=3000" yaml:"event_send_timeout_ms"`       // 单条事件发送到 Kafka 并等待 ack 的超时时间
}

// RpcConfig Solana JSON-RPC 节点
type RpcConfig struct {
	Endpoint string `json:"endpoint,optional" yaml:"endpoint"`
}

// AdminConfig 运维 HTTP 服务（/healthz、/metrics、/v1/decode）
type AdminConfig struct {
	Addr string `json:"addr,optional" yaml:"addr"` // 例如 ":9100"，为空时不启动
}

// GrpcStreamConfig gRPC 客户端连接相关配置
type GrpcStreamConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`            // gRPC 服务端地址
	XToken    string `json:"x_token,optional" yaml:"x_token"`     // x-token 认证
	Plaintext bool   `json:"plaintext,optional" yaml:"plaintext"` // 不使用 TLS（本地或内网节点）

	// 应用级逻辑心跳（ping）配置
	StreamPingIntervalSec int `json:"stream_ping_interval_sec,default=10" yaml:"stream_ping_interval_sec"` // 应用层 ping 心跳间隔（秒）

	// gRPC Keepalive 底层连接检测配置
	KeepalivePingIntervalSec int `json:"keepalive_ping_interval_sec,default=30" yaml:"keepalive_ping_interval_sec"` // 底层 keepalive 间隔（秒）
	KeepalivePingTimeoutSec  int `json:"keepalive_ping_timeout_sec,default=10" yaml:"keepalive_ping_timeout_sec"`   // 底层 keepalive 超时（秒）

	// gRPC 窗口大小调优（用于大数据流推送）
	InitialWindowSize     int `json:"initial_window_size,default=16777216" yaml:"initial_window_size"`           // 单流窗口大小（字节）
	InitialConnWindowSize int `json:"initial_conn_window_size,default=33554432" yaml:"initial_conn_window_size"` // 整体连接窗口大小（字节）

	// 消息体大小限制
	MaxCallSendMsgSize int `json:"max_call_send_msg_size,default=4194304" yaml:"max_call_send_msg_size"`   // 单条消息最大发送字节数
	MaxCallRecvMsgSize int `json:"max_call_recv_msg_size,default=67108864" yaml:"max_call_recv_msg_size"` // 单条消息最大接收字节数

	// 超时与重连策略
	ReconnectIntervalSec int `json:"reconnect_interval_sec,default=3" yaml:"reconnect_interval_sec"` // 重连最小间隔（秒）
	ConnectTimeoutSec    int `json:"connect_timeout_sec,default=10" yaml:"connect_timeout_sec"`       // 连接建立超时（秒）
	SendTimeoutSec       int `json:"send_timeout_sec,default=5" yaml:"send_timeout_sec"`              // 发送超时（秒）
	BlockRecvTimeoutSec  int `json:"block_recv_timeout_sec,default=60" yaml:"block_recv_timeout_sec"` // 超过该时长未收到 block 触发重连（秒）
	MaxLatencyWarnMs     int `json:"max_latency_warn_ms,default=3000" yaml:"max_latency_warn_ms"`     // 延迟告警阈值（毫秒）
	MaxLatencyDropMs     int `json:"max_latency_drop_ms,default=30000" yaml:"max_latency_drop_ms"`    // 延迟断连阈值（毫秒）
}

// GrpcConfig 是主配置结构体，用于驱动索引器服务
type GrpcConfig struct {
	LogConf           LogConfig           `json:"logger,optional" yaml:"logger"`                 // 日志配置
	KafkaProducerConf KafkaProducerConfig `json:"kafka_producer" yaml:"kafka_producer"`          // Kafka 生产者配置
	TimeConf          TimeConfig          `json:"time_conf,optional" yaml:"time_conf"`           // 时间相关配置
	Rpc               RpcConfig           `json:"rpc,optional" yaml:"rpc"`                       // RPC 节点（空块检测、按签名补拉）
	Admin             AdminConfig         `json:"admin,optional" yaml:"admin"`                   // 运维 HTTP 服务
	RedisAddr         string              `json:"redis_addr,optional" yaml:"redis_addr"`         // Redis 地址，为空时不记录进度
	ProgressConf      ProgressConfig      `json:"progress,optional" yaml:"progress"`             // 进度管理配置
	Grpc              GrpcStreamConfig    `json:"grpc" yaml:"grpc"`                              // gRPC 订阅配置
}

type ProgressConfig struct {
	RecentThresholdSec int `json:"recent_threshold_sec,default=60" yaml:"recent_threshold_sec"` // 判定为"近期 block"的时间阈值（秒）
}

// ApplyDefaults 为 yaml.v3 加载路径补齐 go-zero default tag 提供的默认值
func (c *GrpcConfig) ApplyDefaults() {
	setDefault := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	if c.KafkaProducerConf.Topic == "" {
		c.KafkaProducerConf.Topic = "pumpfun-events"
	}
	setDefault(&c.KafkaProducerConf.Partitions, 8)
	setDefault(&c.TimeConf.SlotDispatchTimeoutMs, 5000)
	setDefault(&c.TimeConf.EventSendTimeoutMs, 3000)
	setDefault(&c.ProgressConf.RecentThresholdSec, 60)

	g := &c.Grpc
	setDefault(&g.StreamPingIntervalSec, 10)
	setDefault(&g.KeepalivePingIntervalSec, 30)
	setDefault(&g.KeepalivePingTimeoutSec, 10)
	setDefault(&g.InitialWindowSize, 16*1024*1024)
	setDefault(&g.InitialConnWindowSize, 32*1024*1024)
	setDefault(&g.MaxCallSendMsgSize, 4*1024*1024)
	setDefault(&g.MaxCallRecvMsgSize, 64*1024*1024)
	setDefault(&g.ReconnectIntervalSec, 3)
	setDefault(&g.ConnectTimeoutSec, 10)
	setDefault(&g.SendTimeoutSec, 5)
	setDefault(&g.BlockRecvTimeoutSec, 60)
	setDefault(&g.MaxLatencyWarnMs, 3000)
	setDefault(&g.MaxLatencyDropMs, 30000)
}

// LoadFile 使用 yaml.v3 读取配置文件（一次性工具使用，不依赖 go-zero 的必填校验）
func LoadFile(path string) (*GrpcConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c GrpcConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.ApplyDefaults()
	return &c, nil
}
