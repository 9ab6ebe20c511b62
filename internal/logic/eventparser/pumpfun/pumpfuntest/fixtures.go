// Package pumpfuntest 构造 Pump.fun 指令、事件载荷与交易，供各层测试复用。
package pumpfuntest

import (
	"encoding/base64"
	"encoding/binary"
	"strconv"

	"pumpfun-indexer-sol/internal/consts"
	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"

	"github.com/near/borsh-go"
)

// 与 pumpfun 包中的 discriminator 一致
const (
	CreateIx   uint64 = 0x181ec828051c0777
	BuyIx      uint64 = 0x66063d1201daebea
	SellIx     uint64 = 0x33e685a4017f83ad
	MigrateIx  uint64 = 0x9beae792ec9ea21e
	EventTag   uint64 = 0xe445a52e51cb9a1d
	CreateDisc uint64 = 0x1b72a94ddeeb6376
	TradeDisc  uint64 = 0xbddb7fd34ee661ee
	DoneDisc   uint64 = 0x5f72619cd42e9808
)

// Key 返回 32 字节全为 b 的公钥
func Key(b byte) types.Pubkey {
	var p types.Pubkey
	for i := range p {
		p[i] = b
	}
	return p
}

// CreateEventLayout CreateEvent 的 Borsh 布局（含新版追加字段）
type CreateEventLayout struct {
	Name         string
	Symbol       string
	URI          string
	Mint         types.Pubkey
	BondingCurve types.Pubkey
	User         types.Pubkey
}

type TradeEventLayout struct {
	Mint                 types.Pubkey
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 types.Pubkey
	Timestamp            int64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
}

type CompleteEventLayout struct {
	User         types.Pubkey
	Mint         types.Pubkey
	BondingCurve types.Pubkey
	Timestamp    int64
}

type CreateArgsLayout struct {
	Name   string
	Symbol string
	URI    string
}

type TradeArgsLayout struct {
	Amount   uint64
	SolBound uint64
}

// Borsh 序列化，失败直接 panic（仅用于测试数据）
func Borsh(v any) []byte {
	b, err := borsh.Serialize(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Disc 大端写入的 8 字节 discriminator
func Disc(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// IxData 指令数据：discriminator + Borsh 参数
func IxData(disc uint64, args any) []byte {
	return concat(Disc(disc), Borsh(args))
}

// CPIData emit_cpi! 事件指令数据：标签 + 事件 discriminator + 载荷
func CPIData(eventDisc uint64, payload any) []byte {
	return concat(Disc(EventTag), Disc(eventDisc), Borsh(payload))
}

// LogData "Program data:" 日志行
func LogData(eventDisc uint64, payload any) string {
	return "Program data: " + base64.StdEncoding.EncodeToString(concat(Disc(eventDisc), Borsh(payload)))
}

func Invoke(program string, depth int) string {
	return "Program " + program + " invoke [" + strconv.Itoa(depth) + "]"
}

func Success(program string) string {
	return "Program " + program + " success"
}

// CreateAccounts create 指令账户：mint#0, bondingCurve#2, user#7，共 14 个
func CreateAccounts(mint, curve, user types.Pubkey) []types.Pubkey {
	accs := make([]types.Pubkey, 14)
	for i := range accs {
		accs[i] = Key(byte(0xE0 + i))
	}
	accs[0], accs[2], accs[7] = mint, curve, user
	accs[12], accs[13] = consts.PumpFunEventAuthority, consts.PumpFunProgram
	return accs
}

// TradeAccounts buy / sell 指令账户：mint#2, bondingCurve#3, user#6，共 12 个
func TradeAccounts(mint, curve, user types.Pubkey) []types.Pubkey {
	accs := make([]types.Pubkey, 12)
	for i := range accs {
		accs[i] = Key(byte(0xD0 + i))
	}
	accs[2], accs[3], accs[6] = mint, curve, user
	accs[10], accs[11] = consts.PumpFunEventAuthority, consts.PumpFunProgram
	return accs
}

// EventAccounts 事件自调用指令账户
func EventAccounts() []types.Pubkey {
	return []types.Pubkey{consts.PumpFunEventAuthority}
}

// TxBuilder 逐条追加主指令与 inner 指令，生成展平后的 AdaptedTx
type TxBuilder struct {
	tx    *core.AdaptedTx
	inner int
}

func NewTx(slot uint64, blockTime int64) *TxBuilder {
	var sig types.Signature
	sig[0] = 0x5A
	return &TxBuilder{tx: &core.AdaptedTx{
		TxCtx:     &core.TxContext{Slot: slot, BlockTime: blockTime},
		Signature: sig,
	}}
}

// Top 追加一条主指令
func (b *TxBuilder) Top(program types.Pubkey, accounts []types.Pubkey, data []byte) *TxBuilder {
	i := b.tx.TopLevelCount
	b.tx.Instructions = append(b.tx.Instructions, &core.AdaptedInstruction{
		IxIndex:     uint16(i),
		InnerIndex:  -1,
		StackHeight: 1,
		Path:        core.Path{uint16(i)},
		ProgramID:   program,
		Accounts:    accounts,
		Data:        data,
	})
	b.tx.TopLevelCount++
	b.inner = 0
	return b
}

// Inner 为最近一条主指令追加 inner 指令
func (b *TxBuilder) Inner(program types.Pubkey, accounts []types.Pubkey, data []byte) *TxBuilder {
	i := b.tx.TopLevelCount - 1
	b.tx.Instructions = append(b.tx.Instructions, &core.AdaptedInstruction{
		IxIndex:     uint16(i),
		InnerIndex:  int16(b.inner),
		StackHeight: 2,
		Path:        core.Path{uint16(i), uint16(b.inner)},
		ProgramID:   program,
		Accounts:    accounts,
		Data:        data,
	})
	b.inner++
	return b
}

// Signers 设置交易签名者
func (b *TxBuilder) Signers(keys ...types.Pubkey) *TxBuilder {
	b.tx.Signers = keys
	return b
}

func (b *TxBuilder) Logs(lines ...string) *TxBuilder {
	b.tx.LogMessages = append(b.tx.LogMessages, lines...)
	return b
}

func (b *TxBuilder) Build() *core.AdaptedTx {
	return b.tx
}
