package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"pumpfun-indexer-sol/internal/config"
	"pumpfun-indexer-sol/internal/consts"
	"pumpfun-indexer-sol/internal/svc"
	"pumpfun-indexer-sol/internal/pkg/logger"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// GrpcStreamManager 维护 Yellowstone 区块订阅：断流、超时或延迟过大时自动重连，
// 收到的 block 按顺序写入 blockChan。
type GrpcStreamManager struct {
	mu         sync.Mutex
	conn       *grpc.ClientConn
	client     pb.GeyserClient
	stream     pb.Geyser_SubscribeClient
	stopped    bool
	attempts   int // 连续失败次数，订阅成功后清零
	connCancel context.CancelFunc

	blockChan chan *pb.SubscribeUpdateBlock
	programs  []string
	xToken    string

	reconnectInterval time.Duration
	pingInterval      time.Duration
	sendTimeout       time.Duration
	blockRecvTimeout  time.Duration
	maxLatencyWarn    time.Duration
	maxLatencyDrop    time.Duration // 0 表示不因延迟断连
}

func NewGrpcStreamManager(sc *svc.GrpcServiceContext, blockChan chan *pb.SubscribeUpdateBlock) (*GrpcStreamManager, error) {
	conf := sc.Config.Grpc

	dialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(conf.ConnectTimeoutSec)*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(dialCtx, conf.Endpoint, dialOptions(conf)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", conf.Endpoint, err)
	}

	return &GrpcStreamManager{
		conn:              conn,
		client:            pb.NewGeyserClient(conn),
		blockChan:         blockChan,
		programs:          consts.GrpcAccountInclude,
		xToken:            conf.XToken,
		reconnectInterval: time.Duration(conf.ReconnectIntervalSec) * time.Second,
		pingInterval:      time.Duration(conf.StreamPingIntervalSec) * time.Second,
		sendTimeout:       time.Duration(conf.SendTimeoutSec) * time.Second,
		blockRecvTimeout:  time.Duration(conf.BlockRecvTimeoutSec) * time.Second,
		maxLatencyWarn:    time.Duration(conf.MaxLatencyWarnMs) * time.Millisecond,
		maxLatencyDrop:    time.Duration(conf.MaxLatencyDropMs) * time.Millisecond,
	}, nil
}

func dialOptions(conf config.GrpcStreamConfig) []grpc.DialOption {
	creds := credentials.NewTLS(&tls.Config{InsecureSkipVerify: true})
	if conf.Plaintext {
		creds = insecure.NewCredentials()
	}
	return []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithInitialWindowSize(int32(conf.InitialWindowSize)),
		grpc.WithInitialConnWindowSize(int32(conf.InitialConnWindowSize)),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(conf.MaxCallSendMsgSize),
			grpc.MaxCallRecvMsgSize(conf.MaxCallRecvMsgSize),
		),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(conf.KeepalivePingIntervalSec) * time.Second,
			Timeout:             time.Duration(conf.KeepalivePingTimeoutSec) * time.Second,
			PermitWithoutStream: true,
		}),
	}
}

func (m *GrpcStreamManager) Start() {
	m.connectLoop()
}

func (m *GrpcStreamManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			logger.Warnf("[GrpcStream] 关闭连接失败: %v", err)
		}
	}
}

func (m *GrpcStreamManager) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// connectLoop 重试直到订阅成功或被 Stop
func (m *GrpcStreamManager) connectLoop() {
	for !m.isStopped() {
		if delay := backoffDelay(m.reconnectInterval, m.attempts); delay > 0 {
			time.Sleep(delay)
		}
		m.attempts++
		logger.Infof("[GrpcStream] 连接中, attempt=%d", m.attempts)
		err := m.subscribe()
		if err == nil {
			return
		}
		logger.Warnf("[GrpcStream] 订阅失败, 稍后重试: %v", err)
	}
}

// backoffDelay 首次立即连接；连续失败超过 3 次后间隔翻倍
func backoffDelay(base time.Duration, attempts int) time.Duration {
	switch {
	case attempts == 0:
		return 0
	case attempts > 3:
		return base * 2
	default:
		return base
	}
}

func buildSubscribeRequest(programs []string) *pb.SubscribeRequest {
	commitment := pb.CommitmentLevel_CONFIRMED
	return &pb.SubscribeRequest{
		Blocks: map[string]*pb.SubscribeRequestFilterBlocks{
			"pumpfun": {
				AccountInclude:      programs,
				IncludeTransactions: boolPtr(true), // 指令 + 日志
				IncludeAccounts:     boolPtr(false),
				IncludeEntries:      boolPtr(false),
			},
		},
		Commitment: &commitment,
	}
}

// subscribe 建立一次订阅，成功后启动接收与心跳协程
func (m *GrpcStreamManager) subscribe() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return errors.New("manager is stopped")
	}

	// 旧连接的协程随 context 一起退出
	if m.connCancel != nil {
		m.connCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.connCancel = cancel

	stream, err := m.client.Subscribe(metadata.AppendToOutgoingContext(ctx, "x-token", m.xToken))
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if err := sendWithTimeout(ctx, stream.Send, buildSubscribeRequest(m.programs), m.sendTimeout); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}

	m.stream = stream
	m.attempts = 0
	logger.Infof("[GrpcStream] 订阅建立成功: programs=%v", m.programs)

	go m.pingLoop(ctx, stream)
	go m.recvLoop(ctx, stream)
	return nil
}

func (m *GrpcStreamManager) recvLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	last := time.Now()
	for ctx.Err() == nil {
		update, err := stream.Recv()
		now := time.Now()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Warnf("[GrpcStream] 服务端关闭流 (EOF)，重连")
				m.reconnect()
				return
			}
			logger.Warnf("[GrpcStream] 流错误: %v", err)
			if m.reconnectIfStale(last, now) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		u, ok := update.GetUpdateOneof().(*pb.SubscribeUpdate_Block)
		if !ok {
			// pong 等非 block 消息
			if m.reconnectIfStale(last, now) {
				return
			}
			continue
		}

		block := u.Block
		latency := blockLatency(block, now)
		if m.maxLatencyWarn > 0 && latency > m.maxLatencyWarn {
			logger.Warnf("[GrpcStream] 区块延迟过高: slot=%d, latency=%v", block.GetSlot(), latency)
		}

		// 下游积压时阻塞等待，不丢块
		select {
		case m.blockChan <- block:
		case <-ctx.Done():
			return
		}
		last = now

		if m.maxLatencyDrop > 0 && latency > m.maxLatencyDrop {
			logger.Errorf("[GrpcStream] 延迟超过断连阈值，切换连接: slot=%d, latency=%v", block.GetSlot(), latency)
			m.reconnect()
			return
		}
	}
}

// blockLatency 接收时间与出块时间之差，区块不带时间戳时返回 0
func blockLatency(block *pb.SubscribeUpdateBlock, now time.Time) time.Duration {
	ts := block.GetBlockTime()
	if ts == nil || ts.GetTimestamp() <= 0 {
		return 0
	}
	return now.Sub(time.Unix(ts.GetTimestamp(), 0))
}

func sendWithTimeout[T any](ctx context.Context, send func(T) error, req T, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- send(req)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (m *GrpcStreamManager) pingLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	ping := &pb.SubscribeRequest{Ping: &pb.SubscribeRequestPing{Id: 1}}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 失败只记录，由 block 超时触发重连
			if err := sendWithTimeout(ctx, stream.Send, ping, m.sendTimeout); err != nil {
				logger.Warnf("[GrpcStream] ping 失败: %v", err)
			}
		}
	}
}

func (m *GrpcStreamManager) reconnectIfStale(last, now time.Time) bool {
	if m.blockRecvTimeout <= 0 || now.Sub(last) <= m.blockRecvTimeout {
		return false
	}
	logger.Warnf("[GrpcStream] %v 未收到 block，触发重连", m.blockRecvTimeout)
	m.reconnect()
	return true
}

func (m *GrpcStreamManager) reconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.mu.Unlock()

	go m.connectLoop()
}

func boolPtr(b bool) *bool {
	return &b
}
