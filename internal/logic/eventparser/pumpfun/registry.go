package pumpfun

import (
	"encoding/binary"

	"pumpfun-indexer-sol/internal/consts"
	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/eventparser/common"
	"pumpfun-indexer-sol/internal/types"
)

// 指令 discriminator（Anchor sighash("global:<name>")，按大端读取）
const (
	Create  uint64 = 0x181ec828051c0777
	Buy     uint64 = 0x66063d1201daebea
	Sell    uint64 = 0x33e685a4017f83ad
	Migrate uint64 = 0x9beae792ec9ea21e

	Initialize            uint64 = 0xafaf6d1f0d989bed
	SetParams             uint64 = 0x1beab2349302bb8d
	Withdraw              uint64 = 0xb712469c946da122
	ExtendAccount         uint64 = 0xea66c2cb96483ee5
	CollectCreatorFee     uint64 = 0x1416567bc61cdb84
	UpdateGlobalAuthority uint64 = 0xe3b54ac4d01561d5
	SetCreator            uint64 = 0xfe94ff70cf8eaaa5
)

// Event 是 emit_cpi! 自调用指令的前缀标签，其后紧跟 8 字节事件 discriminator
const Event uint64 = 0xe445a52e51cb9a1d

// 事件 discriminator（sighash("event:<Name>")）
const (
	CreateEventDisc   uint64 = 0x1b72a94ddeeb6376
	TradeEventDisc    uint64 = 0xbddb7fd34ee661ee
	CompleteEventDisc uint64 = 0x5f72619cd42e9808
)

// 事件载荷最小长度
const (
	createEventMinLen   = 4 + 4 + 4 + 32*3
	tradeEventMinLen    = 32 + 8 + 8 + 1 + 32
	completeEventMinLen = 32*3 + 8
)

// ignoredInstructions 是已知但不产出事件的指令，不计入跳过统计
var ignoredInstructions = map[uint64]struct{}{
	Migrate:               {},
	Initialize:            {},
	SetParams:             {},
	Withdraw:              {},
	ExtendAccount:         {},
	CollectCreatorFee:     {},
	UpdateGlobalAuthority: {},
	SetCreator:            {},
}

// RegisterHandlers 注册 Pump.fun bonding curve Program 的指令解析器
func RegisterHandlers(m map[types.Pubkey]common.InstructionHandler) {
	m[consts.PumpFunProgram] = handleInstruction
}

// RegisterLogScanners 注册日志扫描器（仅能从日志观察到的 Complete 事件）
func RegisterLogScanners(scanners *[]common.LogScanner) {
	*scanners = append(*scanners, scanCompleteLogs)
}

func handleInstruction(
	ctx *common.ParserContext,
	instrs []*core.AdaptedInstruction,
	current int,
) (*core.Event, error) {
	ix := instrs[current]

	// 指令 data 至少应包含 8 字节方法 ID
	if len(ix.Data) < 8 {
		return nil, core.ErrUnknownDiscriminator
	}

	disc := binary.BigEndian.Uint64(ix.Data[:8])
	switch disc {
	case Create:
		return extractCreateEvent(ctx, instrs, current)
	case Buy:
		return extractTradeEvent(ctx, instrs, current, true)
	case Sell:
		return extractTradeEvent(ctx, instrs, current, false)
	case Event:
		return extractStandaloneEvent(ctx, instrs, current)
	default:
		if _, ok := ignoredInstructions[disc]; ok {
			return nil, nil
		}
		return nil, unknownDiscriminator(disc)
	}
}
