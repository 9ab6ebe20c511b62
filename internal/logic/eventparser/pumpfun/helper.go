package pumpfun

import (
	"fmt"

	"pumpfun-indexer-sol/internal/consts"
	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/eventparser/common"
	"pumpfun-indexer-sol/internal/types"
)

// findEventInstruction 在当前指令之后、同一主指令分组内查找 emit_cpi! 事件指令。
// 要求：Pump.fun 程序发起、前缀为事件标签、事件类型为 disc、尚未被消费，且 match 返回 true。
// 找到时返回其下标，否则返回 -1。
func findEventInstruction(
	ctx *common.ParserContext,
	instrs []*core.AdaptedInstruction,
	current int,
	disc uint64,
	match func(payload []byte) bool,
) int {
	mainIx := instrs[current]
	for i := current + 1; i < len(instrs); i++ {
		ix := instrs[i]

		// 只处理当前主指令的 inner 指令
		if ix.IxIndex != mainIx.IxIndex {
			return -1
		}

		if ix.ProgramID != consts.PumpFunProgram || ctx.IsConsumed(i) {
			continue
		}

		eventDisc, payload, ok := splitEventCPI(ix.Data)
		if !ok || eventDisc != disc {
			continue
		}

		// Pump.fun 的事件指令以 eventAuthority 作为第 0 个账户
		if len(ix.Accounts) == 0 || ix.Accounts[0] != consts.PumpFunEventAuthority {
			continue
		}

		if match(payload) {
			return i
		}
	}
	return -1
}

// takeEventPayload 按优先级取得指令配对的事件载荷：
//  1. 同一分组内的 emit_cpi! 事件指令（标记为已消费）；
//  2. Pump.fun 输出的下一条未消费 "Program data:" 日志。
//
// 都找不到时返回 nil, false。
func takeEventPayload(
	ctx *common.ParserContext,
	instrs []*core.AdaptedInstruction,
	current int,
	disc uint64,
	match func(payload []byte) bool,
) ([]byte, bool) {
	if i := findEventInstruction(ctx, instrs, current, disc, match); i >= 0 {
		ctx.MarkConsumed(i)
		_, payload, _ := splitEventCPI(instrs[i].Data)
		return payload, true
	}

	l, idx := ctx.TakeLog(consts.PumpFunProgram, func(data []byte) bool {
		eventDisc, payload, ok := splitLogEvent(data)
		return ok && eventDisc == disc && match(payload)
	})
	if idx < 0 {
		return nil, false
	}
	_, payload, _ := splitLogEvent(l.Data)
	return payload, true
}

// checkSigner 主指令中的 user 必须是交易签名者；inner 调用可能由 PDA 签名，不做校验。
// 签名者列表未知（为空）时跳过。
func checkSigner(tx *core.AdaptedTx, ix *core.AdaptedInstruction, user types.Pubkey) error {
	if ix.IsInner() || len(tx.Signers) == 0 || tx.IsSigner(user) {
		return nil
	}
	return fmt.Errorf("%w: user=%s is not a signer", core.ErrAccountMismatch, user)
}
