package svc

import (
	"context"
	"time"

	"pumpfun-indexer-sol/internal/config"
	"pumpfun-indexer-sol/internal/logic/progress"
	"pumpfun-indexer-sol/internal/metrics"
	"pumpfun-indexer-sol/internal/mq"
	"pumpfun-indexer-sol/internal/pkg/logger"

	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// GrpcServiceContext 包含 GRPC 服务资源
type GrpcServiceContext struct {
	Config          config.GrpcConfig
	Producer        *kafka.Producer  // Disabled 时为 nil
	Redis           *redis.Client    // 未配置 RedisAddr 时为 nil
	RpcClient       *rpc.RpcClient   // 未配置 Rpc.Endpoint 时为 nil
	ProgressManager *progress.ProgressManager
	Metrics         *metrics.Metrics
}

// NewGrpcServiceContext 创建一个新的 GRPC 服务上下文
func NewGrpcServiceContext(c config.GrpcConfig) (*GrpcServiceContext, error) {
	sc := &GrpcServiceContext{
		Config:  c,
		Metrics: metrics.New(prometheus.NewRegistry()),
	}

	// 1. 初始化 Kafka 生产者
	if !c.KafkaProducerConf.Disabled {
		producer, err := mq.NewKafkaProducer(c.KafkaProducerConf)
		if err != nil {
			logger.Errorf("[Svc] Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		sc.Producer = producer
	} else {
		logger.Warnf("[Svc] Kafka 投递已关闭，仅解析事件")
	}

	// 2. 初始化 Redis 客户端（用于 slot 状态判重）
	var store progress.SlotStore
	if c.RedisAddr != "" {
		sc.Redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := sc.Redis.Ping(ctx).Err(); err != nil {
			sc.Close()
			logger.Errorf("[Svc] Redis 连接失败: addr=%s, err=%v", c.RedisAddr, err)
			return nil, err
		}
		store = progress.NewRedisProgressStore(sc.Redis)
	}

	// 3. 初始化进度管理器
	sc.ProgressManager = progress.NewProgressManager(store, c.ProgressConf.RecentThresholdSec)

	// 4. RPC 客户端（空块检测、按签名补拉）
	if c.Rpc.Endpoint != "" {
		client := rpc.NewRpcClient(c.Rpc.Endpoint)
		sc.RpcClient = &client
	}

	logger.Infof("[Svc] GRPC 服务上下文初始化完成: kafka=%v, redis=%v, rpc=%v",
		sc.Producer != nil, sc.Redis != nil, sc.RpcClient != nil)
	return sc, nil
}

// Close 关闭服务上下文中的资源
func (sc *GrpcServiceContext) Close() {
	if sc.Producer != nil {
		sc.Producer.Flush(5000)
		sc.Producer.Close()
	}
	if sc.Redis != nil {
		_ = sc.Redis.Close()
	}
}
