package pumpfun

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"

	"github.com/near/borsh-go"
)

// CreateEventLayout CreateEvent 的 Borsh 布局（新版协议在末尾追加的字段不读取）
type CreateEventLayout struct {
	Name         string
	Symbol       string
	URI          string
	Mint         types.Pubkey
	BondingCurve types.Pubkey
	User         types.Pubkey
}

// TradeEventLayout TradeEvent 的 Borsh 布局，只读取前 5 个字段。
// IsBuy 按单字节读取，非零即为买入。
type TradeEventLayout struct {
	Mint        types.Pubkey
	SolAmount   uint64
	TokenAmount uint64
	IsBuy       uint8
	User        types.Pubkey
}

type CompleteEventLayout struct {
	User         types.Pubkey
	Mint         types.Pubkey
	BondingCurve types.Pubkey
	Timestamp    int64
}

type createArgs struct {
	Name   string
	Symbol string
	URI    string
}

type tradeArgs struct {
	Amount   uint64 // token 数量
	SolBound uint64 // buy: maxSolCost，sell: minSolOutput
}

func checkMinLen(name string, payload []byte, minLen int) error {
	if len(payload) < minLen {
		return core.Truncated(name, minLen, len(payload))
	}
	return nil
}

var stringFields = [...]string{"name", "symbol", "uri"}

// checkStrings 依次校验开头的 u32 长度前缀字符串不越界。
// 在反序列化之前执行，避免按异常长度分配内存，同时给出出错字段名。
func checkStrings(payload []byte, fields ...string) error {
	off := 0
	for _, field := range fields {
		if len(payload)-off < 4 {
			return core.Truncated(field+".len", 4, len(payload)-off)
		}
		n := int64(binary.LittleEndian.Uint32(payload[off:]))
		off += 4
		if n > int64(len(payload)-off) {
			return core.Truncated(field, int(n), len(payload)-off)
		}
		off += int(n)
	}
	return nil
}

// checkUTF8 校验 name, symbol, uri 三个字符串字段
func checkUTF8(name, symbol, uri string) error {
	for i, s := range [...]string{name, symbol, uri} {
		if !utf8.ValidString(s) {
			return fmt.Errorf("%w: field=%s invalid utf-8", core.ErrTruncatedPayload, stringFields[i])
		}
	}
	return nil
}

func deserialize(name string, v any, payload []byte) error {
	if err := borsh.Deserialize(v, payload); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrTruncatedPayload, name, err)
	}
	return nil
}

// decodeCreateEvent 解析 CreateEvent：name, symbol, uri, mint, bondingCurve, user
func decodeCreateEvent(payload []byte) (*core.CreateEvent, error) {
	if err := checkMinLen("CreateEvent", payload, createEventMinLen); err != nil {
		return nil, err
	}
	if err := checkStrings(payload, stringFields[:]...); err != nil {
		return nil, err
	}
	var l CreateEventLayout
	if err := deserialize("CreateEvent", &l, payload); err != nil {
		return nil, err
	}
	if err := checkUTF8(l.Name, l.Symbol, l.URI); err != nil {
		return nil, err
	}
	return &core.CreateEvent{
		Name:         l.Name,
		Symbol:       l.Symbol,
		URI:          l.URI,
		Mint:         l.Mint,
		BondingCurve: l.BondingCurve,
		User:         l.User,
	}, nil
}

// decodeTradeEvent 解析 TradeEvent：mint, solAmount, tokenAmount, isBuy, user（其后字段忽略）
func decodeTradeEvent(payload []byte) (*core.TradeEvent, error) {
	if err := checkMinLen("TradeEvent", payload, tradeEventMinLen); err != nil {
		return nil, err
	}
	var l TradeEventLayout
	if err := deserialize("TradeEvent", &l, payload); err != nil {
		return nil, err
	}
	return &core.TradeEvent{
		Mint:        l.Mint,
		SolAmount:   l.SolAmount,
		TokenAmount: l.TokenAmount,
		IsBuy:       l.IsBuy != 0,
		User:        l.User,
	}, nil
}

// decodeCompleteEvent 解析 CompleteEvent：user, mint, bondingCurve, timestamp。
// timestamp 链上为 i64，负值按 0 处理。
func decodeCompleteEvent(payload []byte) (*core.CompleteEvent, error) {
	if err := checkMinLen("CompleteEvent", payload, completeEventMinLen); err != nil {
		return nil, err
	}
	var l CompleteEventLayout
	if err := deserialize("CompleteEvent", &l, payload); err != nil {
		return nil, err
	}
	ev := &core.CompleteEvent{
		User:         l.User,
		Mint:         l.Mint,
		BondingCurve: l.BondingCurve,
	}
	if l.Timestamp > 0 {
		ev.Timestamp = uint64(l.Timestamp)
	}
	return ev, nil
}

// decodeCreateArgs 解析 create 指令参数（不含 8 字节 discriminator）
func decodeCreateArgs(args []byte) (*createArgs, error) {
	if err := checkStrings(args, stringFields[:]...); err != nil {
		return nil, err
	}
	var a createArgs
	if err := deserialize("createArgs", &a, args); err != nil {
		return nil, err
	}
	if err := checkUTF8(a.Name, a.Symbol, a.URI); err != nil {
		return nil, err
	}
	return &a, nil
}

// decodeTradeArgs 解析 buy / sell 指令参数（不含 8 字节 discriminator）
func decodeTradeArgs(args []byte) (*tradeArgs, error) {
	if err := checkMinLen("tradeArgs", args, 16); err != nil {
		return nil, err
	}
	var a tradeArgs
	if err := deserialize("tradeArgs", &a, args); err != nil {
		return nil, err
	}
	return &a, nil
}

// splitEventCPI 拆分 emit_cpi! 指令数据：8 字节标签 + 8 字节事件 discriminator + 载荷
func splitEventCPI(data []byte) (uint64, []byte, bool) {
	if len(data) < 16 || binary.BigEndian.Uint64(data[:8]) != Event {
		return 0, nil, false
	}
	return binary.BigEndian.Uint64(data[8:16]), data[16:], true
}

// splitLogEvent 拆分 "Program data:" 载荷：8 字节事件 discriminator + 载荷
func splitLogEvent(data []byte) (uint64, []byte, bool) {
	if len(data) < 8 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint64(data[:8]), data[8:], true
}

func unknownDiscriminator(disc uint64) error {
	return fmt.Errorf("%w: 0x%016x", core.ErrUnknownDiscriminator, disc)
}
