package pumpfun

import (
	"fmt"

	"pumpfun-indexer-sol/internal/consts"
	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/eventparser/common"
	"pumpfun-indexer-sol/internal/types"
	"pumpfun-indexer-sol/internal/pkg/logger"
)

// extractStandaloneEvent 解析未被任何指令配对的 emit_cpi! 事件指令。
// 典型场景：与 buy 同时发出的 CompleteEvent，或由本解析器未识别的新指令发出的事件。
func extractStandaloneEvent(
	ctx *common.ParserContext,
	instrs []*core.AdaptedInstruction,
	current int,
) (*core.Event, error) {
	// 已由 create / buy / sell 配对消费
	if ctx.IsConsumed(current) {
		return nil, nil
	}

	ix := instrs[current]
	disc, payload, ok := splitEventCPI(ix.Data)
	if !ok {
		return nil, core.Truncated("eventDiscriminator", 16, len(ix.Data))
	}
	if len(ix.Accounts) == 0 || ix.Accounts[0] != consts.PumpFunEventAuthority {
		return nil, fmt.Errorf("%w: [Pumpfun:Event] event authority missing", core.ErrAccountMismatch)
	}

	var data core.EventData
	var err error
	switch disc {
	case CreateEventDisc:
		data, err = decodeCreateEvent(payload)
	case TradeEventDisc:
		data, err = decodeTradeEvent(payload)
	case CompleteEventDisc:
		data, err = decodeCompleteEvent(payload)
	default:
		return nil, unknownDiscriminator(disc)
	}
	if err != nil {
		return nil, fmt.Errorf("[Pumpfun:Event] %w", err)
	}

	ctx.MarkConsumed(current)
	return core.NewEvent(ctx.Tx, ix.Path, data), nil
}

// scanCompleteLogs 从 Pump.fun 输出的 "Program data:" 日志中提取 CompleteEvent。
// 事件路径为 [主指令数量, 日志行号]；与指令派生的同 mint Complete 事件重复时丢弃。
func scanCompleteLogs(ctx *common.ParserContext) {
	seen := make(map[types.Pubkey]struct{})
	for _, ev := range ctx.Events() {
		if c, ok := ev.Data.(*core.CompleteEvent); ok {
			seen[c.Mint] = struct{}{}
		}
	}

	for _, l := range ctx.UnconsumedLogs(consts.PumpFunProgram) {
		disc, payload, ok := splitLogEvent(l.Data)
		if !ok || disc != CompleteEventDisc {
			continue
		}
		event, err := decodeCompleteEvent(payload)
		if err != nil {
			logger.Debugf("[Pumpfun:Complete] 日志事件解析失败: line=%d, err=%v, tx=%s", l.Line, err, ctx.TxHashString())
			ctx.Stats.Add(err)
			continue
		}
		if _, dup := seen[event.Mint]; dup {
			continue
		}
		seen[event.Mint] = struct{}{}
		ctx.AddEvent(core.NewEvent(ctx.Tx, ctx.LogPath(l.Line), event))
	}
}
