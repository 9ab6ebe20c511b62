package pumpfun

import (
	"fmt"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/eventparser/common"
	"pumpfun-indexer-sol/internal/pkg/logger"
)

// extractCreateEvent 解析 Pump.fun 的 create 指令，构造 CreateEvent。
//
// Pump.fun - Create 指令账户布局：
//
// #0  - Mint                        // 新代币 Mint
// #1  - Mint Authority
// #2  - Bonding Curve               // Bonding Curve 状态账户
// #3  - Associated Bonding Curve    // Bonding Curve 持有的 token 账户
// #4  - Global
// #5  - Mpl Token Metadata
// #6  - Metadata
// #7  - User                        // 创建者（Signer）
// #8  - System Program
// #9  - Token Program
// #10 - Associated Token Program
// #11 - Rent
// #12 - Event Authority
// #13 - Pump.fun Program
func extractCreateEvent(
	ctx *common.ParserContext,
	instrs []*core.AdaptedInstruction,
	current int,
) (*core.Event, error) {
	ix := instrs[current]

	mint, err := ix.Account(0)
	if err != nil {
		return nil, fmt.Errorf("[Pumpfun:Create] mint: %w", err)
	}
	bondingCurve, err := ix.Account(2)
	if err != nil {
		return nil, fmt.Errorf("[Pumpfun:Create] bondingCurve: %w", err)
	}
	user, err := ix.Account(7)
	if err != nil {
		return nil, fmt.Errorf("[Pumpfun:Create] user: %w", err)
	}

	args, err := decodeCreateArgs(ix.Data[8:])
	if err != nil {
		return nil, fmt.Errorf("[Pumpfun:Create] args: %w", err)
	}

	// 优先使用事件载荷，旧版本无事件时退回指令参数
	var decoded *core.CreateEvent
	takeEventPayload(ctx, instrs, current, CreateEventDisc, func(p []byte) bool {
		ev, err := decodeCreateEvent(p)
		if err != nil || ev.Mint != mint {
			return false
		}
		decoded = ev
		return true
	})

	if decoded == nil {
		logger.Debugf("[Pumpfun:Create] 未找到事件载荷，使用指令参数: tx=%s, idx=%s", ctx.TxHashString(), ix.Path)
		decoded = &core.CreateEvent{
			Name:         args.Name,
			Symbol:       args.Symbol,
			URI:          args.URI,
			Mint:         mint,
			BondingCurve: bondingCurve,
			User:         user,
		}
	}

	if decoded.User != user {
		return nil, fmt.Errorf("%w: [Pumpfun:Create] user expected=%s got=%s", core.ErrAccountMismatch, user, decoded.User)
	}
	if decoded.BondingCurve != bondingCurve {
		return nil, fmt.Errorf("%w: [Pumpfun:Create] bondingCurve expected=%s got=%s", core.ErrAccountMismatch, bondingCurve, decoded.BondingCurve)
	}

	if err := checkSigner(ctx.Tx, ix, user); err != nil {
		return nil, fmt.Errorf("[Pumpfun:Create] %w", err)
	}

	return core.NewEvent(ctx.Tx, ix.Path, decoded), nil
}
