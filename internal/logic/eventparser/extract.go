package eventparser

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/eventparser/common"
	"pumpfun-indexer-sol/internal/logic/eventparser/pumpfun"
	"pumpfun-indexer-sol/internal/types"
	"pumpfun-indexer-sol/internal/pkg/logger"
)

// handlers 是 Solana ProgramID → 对应事件解析 handler 的路由表。
// 所有协议模块通过 RegisterHandlers 注册进该表，Init 之后只读。
var (
	handlers    = map[types.Pubkey]common.InstructionHandler{}
	logScanners []common.LogScanner
	initOnce    sync.Once
)

// Init 初始化所有 handler 注册器等解析所需状态，可重复调用
func Init() {
	initOnce.Do(func() {
		pumpfun.RegisterHandlers(handlers)
		pumpfun.RegisterLogScanners(&logScanners)
	})
}

// ParserState 解析器状态：NotStarted → Walking → Done
type ParserState int

const (
	StateNotStarted ParserState = iota
	StateWalking
	StateDone
)

func (s ParserState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateWalking:
		return "Walking"
	case StateDone:
		return "Done"
	default:
		return fmt.Sprintf("ParserState(%d)", int(s))
	}
}

// EventParser 对单笔交易执行一次完整解析，结果缓存后可重复读取。
// 不可跨 goroutine 共享；不同交易各自创建。
type EventParser struct {
	tx     *core.AdaptedTx
	state  ParserState
	events []*core.Event
	stats  *common.SkipStats
}

func NewEventParser(tx *core.AdaptedTx) *EventParser {
	Init()
	return &EventParser{tx: tx, state: StateNotStarted}
}

func (p *EventParser) State() ParserState {
	return p.state
}

// ProcessEvents 返回按树位置排序的事件列表。
// 单条指令或日志的解析失败只会被跳过，不影响其余事件；重复调用返回相同结果。
func (p *EventParser) ProcessEvents() []*core.Event {
	events, _ := p.ProcessEventsWithStats()
	return events
}

// ProcessEventsWithStats 同 ProcessEvents，额外返回跳过统计
func (p *EventParser) ProcessEventsWithStats() ([]*core.Event, *common.SkipStats) {
	if p.state == StateDone {
		return cloneEvents(p.events), p.stats
	}

	p.state = StateWalking
	ctx := common.BuildParserContext(p.tx)
	instrs := ctx.Tx.Instructions

	for i := range instrs {
		handler, ok := handlers[instrs[i].ProgramID]
		if !ok {
			continue
		}
		event, err := runHandler(ctx, handler, instrs, i)
		if err != nil {
			if errors.Is(err, errHandlerPanic) {
				ctx.Stats.AddReason(common.SkipPanic)
			} else {
				ctx.Stats.Add(err)
			}
			logger.Debugf("[EventParser] 跳过指令: idx=%s, err=%v, tx=%s", instrs[i].Path, err, ctx.TxHashString())
			continue
		}
		ctx.AddEvent(event)
	}

	for _, scan := range logScanners {
		runLogScanner(ctx, scan)
	}

	events := ctx.TakeEvents()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Path.Less(events[j].Path)
	})

	p.events = events
	p.stats = ctx.Stats
	p.state = StateDone
	return cloneEvents(events), p.stats
}

var errHandlerPanic = errors.New("handler panic")

func runHandler(
	ctx *common.ParserContext,
	handler common.InstructionHandler,
	instrs []*core.AdaptedInstruction,
	current int,
) (event *core.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[EventParser] panic: %v, idx=%s, tx=%s\nstack: %s", r, instrs[current].Path, ctx.TxHashString(), debug.Stack())
			event = nil
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
	}()
	return handler(ctx, instrs, current)
}

func runLogScanner(ctx *common.ParserContext, scan common.LogScanner) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[EventParser] log scanner panic: %v, tx=%s\nstack: %s", r, ctx.TxHashString(), debug.Stack())
			ctx.Stats.AddReason(common.SkipPanic)
		}
	}()
	scan(ctx)
}

// cloneEvents 复制外层切片，调用方可自由修改返回值而不影响缓存
func cloneEvents(events []*core.Event) []*core.Event {
	out := make([]*core.Event, len(events))
	copy(out, events)
	return out
}

// ExtractEventsFromTx 解析单笔交易的全部事件
func ExtractEventsFromTx(adaptedTx *core.AdaptedTx) []*core.Event {
	return NewEventParser(adaptedTx).ProcessEvents()
}
