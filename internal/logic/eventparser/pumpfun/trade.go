package pumpfun

import (
	"bytes"
	"fmt"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/eventparser/common"
	"pumpfun-indexer-sol/internal/pkg/logger"
)

// extractTradeEvent 解析 Pump.fun 的 buy / sell 指令，构造 TradeEvent。
// 成交数量只存在于事件载荷中（指令参数只带 SOL 上下限），无载荷时跳过。
// 示例交易：
// Sell: https://solscan.io/tx/3NCxJ1jNF1SHjjGKDxMhnzyqwSdEDoitPLzvEdfBZrTPXhxA21YkydApvP8rLzeM36Bpa2jWqnrgryhw9oqgBLpv
// Buy: https://solscan.io/tx/26N7CkAScr2msSTHNoEGtfwWkHwrsqRhwUPjh366SyYG5oY4CojjDQFZR8ZPN7nt5JEqqYBBvWndHxNQcf1mkBzz
//
// Pump.fun 交易账户结构：
//  0. Global 配置账户（不可变）
//  1. 手续费账户
//  2. 被交易代币的 Mint
//  3. Bonding Curve 主账户
//  4. Bonding Curve Vault（池子 TokenAccount）
//  5. 用户 Associated Token Account
//  6. 用户主账户（用户地址）
//  7. System Program
//  8. Token Program / Creator Vault
//  9. Creator Vault / Token Program
//  10. Event Authority (事件地址)
//  11. Pump.fun 程序账户
func extractTradeEvent(
	ctx *common.ParserContext,
	instrs []*core.AdaptedInstruction,
	current int,
	isBuy bool,
) (*core.Event, error) {
	ix := instrs[current]

	// 1. 提取关键账户
	mint, err := ix.Account(2)
	if err != nil {
		return nil, fmt.Errorf("[Pumpfun:Trade] mint: %w", err)
	}
	if _, err := ix.Account(3); err != nil {
		return nil, fmt.Errorf("[Pumpfun:Trade] bondingCurve: %w", err)
	}
	user, err := ix.Account(6)
	if err != nil {
		return nil, fmt.Errorf("[Pumpfun:Trade] user: %w", err)
	}

	// 2. 校验指令参数
	args, err := decodeTradeArgs(ix.Data[8:])
	if err != nil {
		return nil, fmt.Errorf("[Pumpfun:Trade] args: %w", err)
	}

	// 3. 提取并解析事件（按 mint 配对）
	payload, ok := takeEventPayload(ctx, instrs, current, TradeEventDisc, func(p []byte) bool {
		return len(p) >= 32 && bytes.Equal(p[:32], mint[:])
	})
	if !ok {
		return nil, fmt.Errorf("%w: [Pumpfun:Trade] mint=%s", core.ErrEventPayloadMissing, mint)
	}
	event, err := decodeTradeEvent(payload)
	if err != nil {
		return nil, fmt.Errorf("[Pumpfun:Trade] event: %w", err)
	}

	// 4. 校验方向
	if event.IsBuy != isBuy {
		return nil, fmt.Errorf("%w: [Pumpfun:Trade] direction expected isBuy=%v got=%v", core.ErrAccountMismatch, isBuy, event.IsBuy)
	}

	// 5. 校验用户地址一致性
	if event.User != user {
		return nil, fmt.Errorf("%w: [Pumpfun:Trade] user expected=%s got=%s", core.ErrAccountMismatch, user, event.User)
	}

	// 签名者校验放在配对之后，保证已配对的事件指令被消费
	if err := checkSigner(ctx.Tx, ix, user); err != nil {
		return nil, fmt.Errorf("[Pumpfun:Trade] %w", err)
	}

	// 6. SOL 金额与上下限不符只记录，不丢弃（滑点参数由程序自身校验）
	if isBuy && args.SolBound > 0 && event.SolAmount > args.SolBound {
		logger.Debugf("[Pumpfun:Trade] SOL 金额超出最大值: solAmount=%d, maxSolCost=%d, tx=%s",
			event.SolAmount, args.SolBound, ctx.TxHashString())
	}
	if !isBuy && event.SolAmount < args.SolBound {
		logger.Debugf("[Pumpfun:Trade] SOL 金额低于最小值: solAmount=%d, minSolOutput=%d, tx=%s",
			event.SolAmount, args.SolBound, ctx.TxHashString())
	}

	return core.NewEvent(ctx.Tx, ix.Path, event), nil
}
