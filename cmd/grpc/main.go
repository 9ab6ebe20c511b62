package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"pumpfun-indexer-sol/internal/admin"
	"pumpfun-indexer-sol/internal/config"
	"pumpfun-indexer-sol/internal/consts"
	"pumpfun-indexer-sol/internal/logic/eventparser"
	"pumpfun-indexer-sol/internal/logic/grpc"
	"pumpfun-indexer-sol/internal/svc"
	"pumpfun-indexer-sol/internal/pkg/logger"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/conf"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/grpc.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
		logger.Sync()
	}()

	flag.Parse()

	var c config.GrpcConfig
	conf.MustLoad(*configFile, &c)

	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		panic(err)
	}
	eventparser.Init()

	serviceContext, err := svc.NewGrpcServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	sg := zerosvc.NewServiceGroup()

	// 空块复核（需要 RPC 节点）
	var checker *grpc.SlotChecker
	if serviceContext.RpcClient != nil {
		client := serviceContext.RpcClient
		checker = grpc.NewSlotChecker(func(ctx context.Context, from, to uint64) ([]uint64, error) {
			resp, err := client.GetBlocks(ctx, from, to)
			if err != nil {
				return nil, err
			}
			return resp.Result, nil
		}, func(uint64) {
			serviceContext.Metrics.IncMissingSlot()
		})
		sg.Add(checker)
	}

	blockChan := make(chan *pb.SubscribeUpdateBlock, consts.BlockChanSize)
	sg.Add(grpc.NewBlockProcessor(serviceContext, blockChan, checker))

	grpcService, err := grpc.NewGrpcStreamManager(serviceContext, blockChan)
	if err != nil {
		panic(err)
	}
	sg.Add(grpcService)

	if c.Admin.Addr != "" {
		sg.Add(admin.NewServer(c.Admin.Addr, serviceContext.Metrics.Gatherer, serviceContext.RpcClient))
	}

	logger.Infof("Starting pumpfun grpc indexer, topic=%s", c.KafkaProducerConf.Topic)

	// 启动服务
	go sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Infof("Shutting down services...")
	sg.Stop()
}
