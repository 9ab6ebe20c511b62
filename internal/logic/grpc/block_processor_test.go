package grpc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pumpfun-indexer-sol/internal/consts"
	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/eventparser/common"
	pt "pumpfun-indexer-sol/internal/logic/eventparser/pumpfun/pumpfuntest"
	"pumpfun-indexer-sol/internal/logic/progress"
	"pumpfun-indexer-sol/internal/metrics"
	"pumpfun-indexer-sol/internal/utils"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProducer 立即回写 delivery report
type fakeProducer struct {
	mu         sync.Mutex
	produced   []*kafka.Message
	deliverErr error
}

func (p *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	p.mu.Lock()
	p.produced = append(p.produced, msg)
	p.mu.Unlock()
	report := *msg
	report.TopicPartition.Error = p.deliverErr
	deliveryChan <- &report
	return nil
}

// memStore 记录写入的 slot 状态
type memStore struct {
	mu      sync.Mutex
	records map[uint64]progress.SlotStatus
}

func (s *memStore) GetSlotStatus(_ context.Context, slot uint64) (progress.SlotStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[slot], nil
}

func (s *memStore) MarkSlotStatus(_ context.Context, r *progress.SlotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Slot] = r.Status
	return nil
}

func newTestProcessor(producer *fakeProducer, store *memStore) *BlockProcessor {
	var slotStore progress.SlotStore
	if store != nil {
		slotStore = store
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	p := &BlockProcessor{
		blockChan:    make(chan *pb.SubscribeUpdateBlock, 4),
		ctx:          ctx,
		cancel:       cancel,
		topic:        "pumpfun-events",
		partitions:   4,
		slotTimeout:  time.Second,
		eventTimeout: time.Second,
		progress:     progress.NewProgressManager(slotStore, 60),
		metrics:      metrics.New(prometheus.NewRegistry()),
	}
	if producer != nil {
		p.producer = producer
	}
	return p
}

func signature(b byte) []byte {
	sig := make([]byte, 64)
	sig[0] = b
	return sig
}

// pumpBuyTx 一笔 buy：主指令 0 为 buy，inner 0.0 为事件自调用
func pumpBuyTx(index uint64, sigByte byte) *pb.SubscribeUpdateTransactionInfo {
	mint, curve, user := pt.Key(1), pt.Key(2), pt.Key(3)
	accounts := pt.TradeAccounts(mint, curve, user)
	keys := make([][]byte, len(accounts))
	accIdx := make([]byte, len(accounts))
	for i := range accounts {
		keys[i] = append([]byte(nil), accounts[i][:]...)
		accIdx[i] = byte(i)
	}
	stack := uint32(2)
	sig := signature(sigByte)
	return &pb.SubscribeUpdateTransactionInfo{
		Signature: sig,
		Index:     index,
		Transaction: &pb.Transaction{
			Signatures: [][]byte{sig},
			Message: &pb.Message{
				Header:      &pb.MessageHeader{NumRequiredSignatures: 1},
				AccountKeys: keys,
				Instructions: []*pb.CompiledInstruction{{
					ProgramIdIndex: 11,
					Accounts:       accIdx,
					Data:           pt.IxData(pt.BuyIx, pt.TradeArgsLayout{Amount: 1000, SolBound: 1 << 40}),
				}},
			},
		},
		Meta: &pb.TransactionStatusMeta{
			InnerInstructions: []*pb.InnerInstructions{{
				Index: 0,
				Instructions: []*pb.InnerInstruction{{
					ProgramIdIndex: 11,
					Accounts:       []byte{10},
					Data: pt.CPIData(pt.TradeDisc, pt.TradeEventLayout{
						Mint: mint, SolAmount: 5000, TokenAmount: 1000, IsBuy: true, User: user,
					}),
					StackHeight: &stack,
				}},
			}},
		},
	}
}

func testBlock(slot uint64, txs ...*pb.SubscribeUpdateTransactionInfo) *pb.SubscribeUpdateBlock {
	return &pb.SubscribeUpdateBlock{
		Slot:         slot,
		BlockTime:    &pb.UnixTimestamp{Timestamp: 1_600_000_000},
		Blockhash:    consts.SystemProgramStr,
		Transactions: txs,
	}
}

func TestProcBlockDispatchesEvents(t *testing.T) {
	producer := &fakeProducer{}
	store := &memStore{records: map[uint64]progress.SlotStatus{}}
	p := newTestProcessor(producer, store)

	vote := pumpBuyTx(0, 0x10)
	vote.IsVote = true
	failed := pumpBuyTx(1, 0x11)
	failed.Meta.Err = &pb.TransactionError{Err: []byte{1}}

	p.procBlock(testBlock(500, pumpBuyTx(3, 0x13), vote, failed, pumpBuyTx(2, 0x12)))

	require.Len(t, producer.produced, 2)
	for _, msg := range producer.produced {
		ev, err := utils.DecodeEvent(msg.Value)
		require.NoError(t, err)
		assert.Equal(t, core.EventTypeTrade, ev.Type)
		assert.Equal(t, "0", ev.Idx)
		assert.Equal(t, uint64(500), ev.Slot)
	}
	assert.Equal(t, progress.SlotProcessed, store.records[500])

	expected := `
# HELP pumpfun_indexer_events_total Decoded Pump.fun events by type.
# TYPE pumpfun_indexer_events_total counter
pumpfun_indexer_events_total{type="TRADE"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(p.metrics.Gatherer, strings.NewReader(expected), "pumpfun_indexer_events_total"))

	// 旧块重放：已处理的 slot 跳过
	p.procBlock(testBlock(500, pumpBuyTx(2, 0x12)))
	assert.Len(t, producer.produced, 2)
}

func TestProcBlockDeliveryFailureLeavesSlotUnrecorded(t *testing.T) {
	producer := &fakeProducer{deliverErr: errors.New("broker down")}
	store := &memStore{records: map[uint64]progress.SlotStatus{}}
	p := newTestProcessor(producer, store)

	p.procBlock(testBlock(600, pumpBuyTx(0, 0x20)))

	assert.Len(t, producer.produced, 1)
	_, recorded := store.records[600]
	assert.False(t, recorded, "投递失败的 slot 不记录，重放时重新处理")
}

func TestProcBlockWithoutProducer(t *testing.T) {
	store := &memStore{records: map[uint64]progress.SlotStatus{}}
	p := newTestProcessor(nil, store)

	p.procBlock(testBlock(700, pumpBuyTx(0, 0x30)))
	assert.Equal(t, progress.SlotProcessed, store.records[700])
}

func TestCollectResultsOrdersByTxIndex(t *testing.T) {
	tx := &core.AdaptedTx{TxCtx: &core.TxContext{Slot: 1}}
	mk := func(idx uint16) *core.Event {
		return core.NewEvent(tx, core.Path{idx}, &core.TradeEvent{})
	}
	statsA := common.NewSkipStats()
	statsA.AddReason(common.SkipUnknownDiscriminator)
	statsB := common.NewSkipStats()
	statsB.AddReason(common.SkipUnknownDiscriminator)

	events, stats, adaptErrs := collectResults([]parsedTxResult{
		{txIndex: 9, events: []*core.Event{mk(5)}, stats: statsA},
		{txIndex: 4, err: core.ErrMalformedTransaction},
		{txIndex: 2, events: []*core.Event{mk(0), mk(1)}, stats: statsB},
	})

	require.Len(t, events, 3)
	assert.Equal(t, []string{"0", "1", "5"}, []string{events[0].Idx, events[1].Idx, events[2].Idx})
	assert.Equal(t, 2, stats.Total())
	assert.Equal(t, 1, adaptErrs)
}

func TestTrackSlotGap(t *testing.T) {
	checker := NewSlotChecker(nil, nil)
	defer checker.Stop()
	p := newTestProcessor(nil, nil)
	p.checker = checker

	p.trackSlotGap(100) // 首个 slot 不提交
	p.trackSlotGap(101)
	p.trackSlotGap(105)
	p.trackSlotGap(103) // 回退不提交

	require.Len(t, checker.rangeCh, 1)
	r := <-checker.rangeCh
	assert.Equal(t, uint64(102), r.From)
	assert.Equal(t, uint64(104), r.To)
	assert.Equal(t, uint64(105), p.lastSlot)
}

func TestIsValidGrpcTx(t *testing.T) {
	assert.True(t, isValidGrpcTx(pumpBuyTx(0, 1)))
	assert.False(t, isValidGrpcTx(nil))

	vote := pumpBuyTx(0, 1)
	vote.IsVote = true
	assert.False(t, isValidGrpcTx(vote))

	shortSig := pumpBuyTx(0, 1)
	shortSig.Transaction.Signatures = [][]byte{{1, 2}}
	assert.False(t, isValidGrpcTx(shortSig))

	noMeta := pumpBuyTx(0, 1)
	noMeta.Meta = nil
	assert.False(t, isValidGrpcTx(noMeta))
}

func TestBuildTxContext(t *testing.T) {
	block := testBlock(42)
	block.ParentSlot = 41
	block.BlockHeight = &pb.BlockHeight{BlockHeight: 40}

	txCtx := buildTxContext(block)
	assert.Equal(t, uint64(42), txCtx.Slot)
	assert.Equal(t, uint64(41), txCtx.ParentSlot)
	assert.Equal(t, uint64(40), txCtx.BlockHeight)
	assert.Equal(t, int64(1_600_000_000), txCtx.BlockTime)

	block.Blockhash = "not-base58-0OIl"
	assert.True(t, buildTxContext(block).BlockHash.Equals(buildTxContext(testBlock(1)).BlockHash))
}
