package grpc

import (
	"context"
	"errors"
	"sort"
	"time"

	"pumpfun-indexer-sol/internal/consts"
	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/dispatcher"
	"pumpfun-indexer-sol/internal/logic/eventparser"
	"pumpfun-indexer-sol/internal/logic/eventparser/common"
	"pumpfun-indexer-sol/internal/logic/progress"
	"pumpfun-indexer-sol/internal/logic/txadapter"
	"pumpfun-indexer-sol/internal/metrics"
	"pumpfun-indexer-sol/internal/mq"
	"pumpfun-indexer-sol/internal/svc"
	"pumpfun-indexer-sol/internal/types"
	"pumpfun-indexer-sol/internal/pkg/logger"
	"pumpfun-indexer-sol/pkg/utils"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

type BlockProcessor struct {
	blockChan chan *pb.SubscribeUpdateBlock // 接收 block 的 channel
	ctx       context.Context
	cancel    func(err error)

	producer     mq.Producer // nil 时只解析不投递
	topic        string
	partitions   int
	slotTimeout  time.Duration
	eventTimeout time.Duration

	progress *progress.ProgressManager
	metrics  *metrics.Metrics
	checker  *SlotChecker // 可为 nil

	lastSlot uint64
}

type parsedTxResult struct {
	txIndex uint64
	events  []*core.Event
	stats   *common.SkipStats
	err     error
}

func NewBlockProcessor(sc *svc.GrpcServiceContext, blockChan chan *pb.SubscribeUpdateBlock, checker *SlotChecker) *BlockProcessor {
	ctx, cancel := context.WithCancelCause(context.Background())
	p := &BlockProcessor{
		blockChan:    blockChan,
		ctx:          ctx,
		cancel:       cancel,
		topic:        sc.Config.KafkaProducerConf.Topic,
		partitions:   sc.Config.KafkaProducerConf.Partitions,
		slotTimeout:  time.Duration(sc.Config.TimeConf.SlotDispatchTimeoutMs) * time.Millisecond,
		eventTimeout: time.Duration(sc.Config.TimeConf.EventSendTimeoutMs) * time.Millisecond,
		progress:     sc.ProgressManager,
		metrics:      sc.Metrics,
		checker:      checker,
	}
	if sc.Producer != nil {
		p.producer = sc.Producer
	}
	return p
}

func (p *BlockProcessor) Start() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case block, ok := <-p.blockChan:
			if !ok {
				return
			}
			p.procBlock(block)
			if len(p.blockChan) > 10 {
				logger.Debugf("[BlockProcessor] block chan len: %d", len(p.blockChan))
			}
		}
	}
}

func (p *BlockProcessor) Stop() {
	p.cancel(errors.New("service stop"))
}

func (p *BlockProcessor) procBlock(block *pb.SubscribeUpdateBlock) {
	startTime := time.Now()
	slot := block.GetSlot()
	blockTime := block.GetBlockTime().GetTimestamp()

	p.trackSlotGap(slot)

	should, err := p.progress.ShouldProcessSlot(p.ctx, slot, blockTime)
	if err != nil {
		// 判重失败时宁可重复投递也不漏
		logger.Warnf("[BlockProcessor] 判重失败，继续处理: slot=%d, err=%v", slot, err)
	} else if !should {
		logger.Infof("[BlockProcessor] slot 已处理，跳过: slot=%d", slot)
		return
	}

	// 1. 过滤合法交易
	validTxs := make([]*pb.SubscribeUpdateTransactionInfo, 0, len(block.GetTransactions()))
	failedTxs := 0
	for _, tx := range block.GetTransactions() {
		switch {
		case !isValidGrpcTx(tx):
		case tx.GetMeta().GetErr() != nil:
			failedTxs++ // 执行失败的交易不产生事件
		default:
			validTxs = append(validTxs, tx)
		}
	}
	p.metrics.AddTx(metrics.TxFailed, failedTxs)

	// 2. 并发解析出所有事件
	txCtx := buildTxContext(block)
	results := utils.ParallelMap(validTxs, consts.CpuCount+2, func(tx *pb.SubscribeUpdateTransactionInfo) parsedTxResult {
		return parseTx(txCtx, tx)
	})
	events, stats, adaptErrs := collectResults(results)

	p.metrics.AddTx(metrics.TxAdaptError, adaptErrs)
	p.metrics.AddTx(metrics.TxParsed, len(validTxs)-adaptErrs)
	p.metrics.AddSkips(stats.Snapshot())
	p.metrics.AddEvents(dispatcher.CountByType(events))

	// 3. 投递 Kafka 并记录进度
	status := progress.SlotProcessed
	if err := p.dispatch(slot, events); err != nil {
		logger.Errorf("[BlockProcessor] 事件投递失败: slot=%d, err=%v", slot, err)
		status = progress.SlotPending
	}
	_ = p.progress.MarkSlotStatus(p.ctx, &progress.SlotRecord{
		Slot:       slot,
		Source:     progress.SourceGrpc,
		BlockTime:  blockTime,
		Status:     status,
		EventCount: len(events),
	})

	elapsed := time.Since(startTime)
	p.metrics.ObserveBlock(slot, elapsed.Seconds())
	logger.Infof("[BlockProcessor] slot=%d, 总tx=%d, 有效tx=%d, 失败tx=%d, 事件=%d, 跳过=%s, 耗时=%v",
		slot, len(block.GetTransactions()), len(validTxs), failedTxs, len(events), stats, elapsed)
}

func (p *BlockProcessor) dispatch(slot uint64, events []*core.Event) error {
	if p.producer == nil || len(events) == 0 {
		return nil
	}
	jobs, err := dispatcher.BuildEventKafkaJobs(p.topic, p.partitions, events)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.slotTimeout)
	defer cancel()
	_, failed := mq.SendKafkaJobs(ctx, p.producer, jobs, p.eventTimeout)
	if len(failed) > 0 {
		p.metrics.AddKafkaFailures(len(failed))
		return failed[0].Err
	}
	return nil
}

// trackSlotGap 收到的 slot 不连续时，把中间段交给 SlotChecker 复核
func (p *BlockProcessor) trackSlotGap(slot uint64) {
	last := p.lastSlot
	if slot > last {
		p.lastSlot = slot
	}
	if last == 0 || slot <= last+1 || p.checker == nil {
		return
	}
	p.checker.Submit(last+1, slot-1)
}

func parseTx(txCtx *core.TxContext, tx *pb.SubscribeUpdateTransactionInfo) parsedTxResult {
	adaptedTx, err := txadapter.AdaptGrpcTx(txCtx, tx)
	if err != nil {
		logger.Warnf("[BlockProcessor] 交易适配失败: slot=%d, txIndex=%d, err=%v", txCtx.Slot, tx.GetIndex(), err)
		return parsedTxResult{txIndex: tx.GetIndex(), err: err}
	}
	events, stats := eventparser.NewEventParser(adaptedTx).ProcessEventsWithStats()
	return parsedTxResult{txIndex: tx.GetIndex(), events: events, stats: stats}
}

// collectResults 按交易在区块中的顺序合并事件与跳过统计
func collectResults(results []parsedTxResult) ([]*core.Event, *common.SkipStats, int) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].txIndex < results[j].txIndex
	})

	stats := common.NewSkipStats()
	total := 0
	adaptErrs := 0
	for _, r := range results {
		total += len(r.events)
		if r.err != nil {
			adaptErrs++
		}
		if r.stats != nil {
			stats.Merge(r.stats)
		}
	}
	events := make([]*core.Event, 0, total)
	for _, r := range results {
		events = append(events, r.events...)
	}
	return events, stats, adaptErrs
}

func buildTxContext(block *pb.SubscribeUpdateBlock) *core.TxContext {
	// blockHash 解析失败只打日志，使用零值继续
	blockHash, err := types.HashFromBase58(block.GetBlockhash())
	if err != nil {
		logger.Errorf("[BlockProcessor] BlockHash 无法解析，将使用零值: slot=%d, blockhash=%s, err=%v",
			block.GetSlot(), block.GetBlockhash(), err)
	}
	return &core.TxContext{
		BlockTime:   block.GetBlockTime().GetTimestamp(),
		Slot:        block.GetSlot(),
		ParentSlot:  block.GetParentSlot(),
		BlockHeight: block.GetBlockHeight().GetBlockHeight(),
		BlockHash:   blockHash,
	}
}

func isValidGrpcTx(tx *pb.SubscribeUpdateTransactionInfo) bool {
	if tx == nil || // - nil transaction info
		tx.GetTransaction().GetMessage() == nil || // - missing Message field in transaction
		len(tx.GetTransaction().GetSignatures()) == 0 || // - missing transaction signature
		len(tx.GetTransaction().GetSignatures()[0]) != 64 || // - invalid transaction signature length
		tx.GetIsVote() || // - vote transaction skipped
		tx.GetMeta() == nil { // - missing transaction meta data
		return false
	}
	return true
}
