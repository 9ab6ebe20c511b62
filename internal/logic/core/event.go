package core

import (
	"pumpfun-indexer-sol/internal/types"
)

// EventType 事件类别，序列化为 type 字段
type EventType string

const (
	EventTypeCreate   EventType = "CREATE"
	EventTypeTrade    EventType = "TRADE"
	EventTypeComplete EventType = "COMPLETE"
)

// Code 返回事件类别的数值编码，用于 MQ 消息前缀
func (t EventType) Code() uint32 {
	switch t {
	case EventTypeCreate:
		return 1
	case EventTypeTrade:
		return 2
	case EventTypeComplete:
		return 3
	default:
		return 0
	}
}

// EventData 是三类事件载荷的封闭联合，只有本包内的类型能实现它。
type EventData interface {
	EventType() EventType
	// MintKey 返回事件关联的 mint，用作 MQ 分区 key
	MintKey() types.Pubkey
	sealed()
}

// CreateEvent 代币创建
type CreateEvent struct {
	Name         string       `json:"name"`
	Symbol       string       `json:"symbol"`
	URI          string       `json:"uri"`
	Mint         types.Pubkey `json:"mint"`
	BondingCurve types.Pubkey `json:"bondingCurve"`
	User         types.Pubkey `json:"user"`
}

// TradeEvent bonding curve 上的买卖成交。
// SolAmount 单位 lamports，TokenAmount 为 token 最小单位，均为完整 64 位无符号整数。
type TradeEvent struct {
	Mint        types.Pubkey `json:"mint"`
	SolAmount   uint64       `json:"solAmount"`
	TokenAmount uint64       `json:"tokenAmount"`
	IsBuy       bool         `json:"isBuy"`
	User        types.Pubkey `json:"user"`
}

// CompleteEvent bonding curve 完成（达到毕业条件）。
// Timestamp 为协议上报的时间，可能与区块时间不同。
type CompleteEvent struct {
	User         types.Pubkey `json:"user"`
	Mint         types.Pubkey `json:"mint"`
	BondingCurve types.Pubkey `json:"bondingCurve"`
	Timestamp    uint64       `json:"timestamp"`
}

func (*CreateEvent) EventType() EventType   { return EventTypeCreate }
func (*TradeEvent) EventType() EventType    { return EventTypeTrade }
func (*CompleteEvent) EventType() EventType { return EventTypeComplete }

func (e *CreateEvent) MintKey() types.Pubkey   { return e.Mint }
func (e *TradeEvent) MintKey() types.Pubkey    { return e.Mint }
func (e *CompleteEvent) MintKey() types.Pubkey { return e.Mint }

func (*CreateEvent) sealed()   {}
func (*TradeEvent) sealed()    {}
func (*CompleteEvent) sealed() {}

// Event 是解析输出的唯一持久结构，返回后归调用方所有。
type Event struct {
	Type      EventType `json:"type"`
	Data      EventData `json:"data"`
	Slot      uint64    `json:"slot"`
	Timestamp uint64    `json:"timestamp"` // 区块时间（秒）
	Signature string    `json:"signature"`
	Idx       string    `json:"idx"` // Path 的点分形式
	Path      Path      `json:"-"`
}

// NewEvent 用交易公共字段与树位置构造事件
func NewEvent(tx *AdaptedTx, path Path, data EventData) *Event {
	return &Event{
		Type:      data.EventType(),
		Data:      data,
		Slot:      tx.Slot(),
		Timestamp: tx.BlockTime(),
		Signature: tx.SignatureString(),
		Idx:       path.String(),
		Path:      path,
	}
}
