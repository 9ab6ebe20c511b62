package utils

import (
	"encoding/binary"
	"errors"
	"fmt"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"

	"google.golang.org/protobuf/encoding/protowire"
)

// 消息体为 protobuf 编码，字段号见 etc/pumpfun_event.proto：
//
//	Event:         1 slot, 2 timestamp, 3 signature, 4 idx, 5 create | 6 trade | 7 complete
//	CreateEvent:   1 name, 2 symbol, 3 uri, 4 mint, 5 bonding_curve, 6 user
//	TradeEvent:    1 mint, 2 sol_amount, 3 token_amount, 4 is_buy, 5 user
//	CompleteEvent: 1 user, 2 mint, 3 bonding_curve, 4 timestamp
//
// 按字段号升序写出，零值字段省略（与 proto3 一致），u64 以 varint 保持精确。
const (
	fieldSlot      protowire.Number = 1
	fieldTimestamp protowire.Number = 2
	fieldSignature protowire.Number = 3
	fieldIdx       protowire.Number = 4
	fieldCreate    protowire.Number = 5
	fieldTrade     protowire.Number = 6
	fieldComplete  protowire.Number = 7
)

// EncodeEvent 将事件编码为带事件类型前缀的二进制数据：
// - 前 4 字节为事件类型编码（uint32，小端序，见 core.EventType.Code）
// - 后续为 protobuf 序列化数据
func EncodeEvent(event *core.Event) ([]byte, error) {
	const extraBuffer = 32

	if event == nil || event.Data == nil {
		return nil, errors.New("EncodeEvent: empty event")
	}

	var (
		field protowire.Number
		body  []byte
	)
	switch d := event.Data.(type) {
	case *core.CreateEvent:
		field, body = fieldCreate, appendCreate(nil, d)
	case *core.TradeEvent:
		field, body = fieldTrade, appendTrade(nil, d)
	case *core.CompleteEvent:
		field, body = fieldComplete, appendComplete(nil, d)
	default:
		return nil, fmt.Errorf("EncodeEvent: unsupported data %T", event.Data)
	}

	buf := make([]byte, 4, 4+64+len(event.Signature)+len(event.Idx)+len(body)+extraBuffer)
	binary.LittleEndian.PutUint32(buf[:4], event.Data.EventType().Code())

	buf = appendVarint(buf, fieldSlot, event.Slot)
	buf = appendVarint(buf, fieldTimestamp, event.Timestamp)
	buf = appendString(buf, fieldSignature, event.Signature)
	buf = appendString(buf, fieldIdx, event.Idx)
	buf = protowire.AppendTag(buf, field, protowire.BytesType)
	buf = protowire.AppendBytes(buf, body)
	return buf, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendPubkey(b []byte, num protowire.Number, pk types.Pubkey) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, pk[:])
}

func appendCreate(b []byte, e *core.CreateEvent) []byte {
	b = appendString(b, 1, e.Name)
	b = appendString(b, 2, e.Symbol)
	b = appendString(b, 3, e.URI)
	b = appendPubkey(b, 4, e.Mint)
	b = appendPubkey(b, 5, e.BondingCurve)
	return appendPubkey(b, 6, e.User)
}

func appendTrade(b []byte, e *core.TradeEvent) []byte {
	b = appendPubkey(b, 1, e.Mint)
	b = appendVarint(b, 2, e.SolAmount)
	b = appendVarint(b, 3, e.TokenAmount)
	b = appendBool(b, 4, e.IsBuy)
	return appendPubkey(b, 5, e.User)
}

func appendComplete(b []byte, e *core.CompleteEvent) []byte {
	b = appendPubkey(b, 1, e.User)
	b = appendPubkey(b, 2, e.Mint)
	b = appendPubkey(b, 3, e.BondingCurve)
	return appendVarint(b, 4, e.Timestamp)
}

// fieldVisitor 处理单个字段：varint 字段传入 v，bytes 字段传入 raw。未知字段不会回调。
type fieldVisitor func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error

// walkFields 逐个消费 protobuf 字段，未知类型按 wire 格式跳过
func walkFields(b []byte, visit fieldVisitor) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			if err := visit(num, typ, v, nil); err != nil {
				return err
			}
			b = b[m:]
		case protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			if err := visit(num, typ, 0, raw); err != nil {
				return err
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return nil
}

func toPubkey(num protowire.Number, raw []byte) (types.Pubkey, error) {
	var pk types.Pubkey
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("field %d: pubkey length %d", num, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func decodeCreate(b []byte) (*core.CreateEvent, error) {
	var e core.CreateEvent
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, _ uint64, raw []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		var err error
		switch num {
		case 1:
			e.Name = string(raw)
		case 2:
			e.Symbol = string(raw)
		case 3:
			e.URI = string(raw)
		case 4:
			e.Mint, err = toPubkey(num, raw)
		case 5:
			e.BondingCurve, err = toPubkey(num, raw)
		case 6:
			e.User, err = toPubkey(num, raw)
		}
		return err
	})
	return &e, err
}

func decodeTrade(b []byte) (*core.TradeEvent, error) {
	var e core.TradeEvent
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			e.Mint, err = toPubkey(num, raw)
		case num == 2 && typ == protowire.VarintType:
			e.SolAmount = v
		case num == 3 && typ == protowire.VarintType:
			e.TokenAmount = v
		case num == 4 && typ == protowire.VarintType:
			e.IsBuy = protowire.DecodeBool(v)
		case num == 5 && typ == protowire.BytesType:
			e.User, err = toPubkey(num, raw)
		}
		return err
	})
	return &e, err
}

func decodeComplete(b []byte) (*core.CompleteEvent, error) {
	var e core.CompleteEvent
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			e.User, err = toPubkey(num, raw)
		case num == 2 && typ == protowire.BytesType:
			e.Mint, err = toPubkey(num, raw)
		case num == 3 && typ == protowire.BytesType:
			e.BondingCurve, err = toPubkey(num, raw)
		case num == 4 && typ == protowire.VarintType:
			e.Timestamp = v
		}
		return err
	})
	return &e, err
}

// DecodeEvent 是 EncodeEvent 的逆过程，供下游消费者与测试使用
func DecodeEvent(buf []byte) (*core.Event, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("DecodeEvent: buffer too short (%d bytes)", len(buf))
	}
	code := binary.LittleEndian.Uint32(buf[:4])

	var (
		ev      core.Event
		payload []byte
		field   protowire.Number
	)
	err := walkFields(buf[4:], func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == fieldSlot && typ == protowire.VarintType:
			ev.Slot = v
		case num == fieldTimestamp && typ == protowire.VarintType:
			ev.Timestamp = v
		case num == fieldSignature && typ == protowire.BytesType:
			ev.Signature = string(raw)
		case num == fieldIdx && typ == protowire.BytesType:
			ev.Idx = string(raw)
		case num >= fieldCreate && num <= fieldComplete && typ == protowire.BytesType:
			if field != 0 {
				return fmt.Errorf("multiple event payloads (fields %d and %d)", field, num)
			}
			field, payload = num, raw
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("DecodeEvent: %w", err)
	}

	var (
		data     core.EventData
		dataErr  error
		wantCode uint32
	)
	switch field {
	case fieldCreate:
		data, dataErr = decodeCreate(payload)
		wantCode = core.EventTypeCreate.Code()
	case fieldTrade:
		data, dataErr = decodeTrade(payload)
		wantCode = core.EventTypeTrade.Code()
	case fieldComplete:
		data, dataErr = decodeComplete(payload)
		wantCode = core.EventTypeComplete.Code()
	default:
		return nil, fmt.Errorf("DecodeEvent: missing event payload (type prefix %d)", code)
	}
	if dataErr != nil {
		return nil, fmt.Errorf("DecodeEvent: data: %w", dataErr)
	}
	if wantCode != code {
		return nil, fmt.Errorf("DecodeEvent: type prefix %d does not match payload field %d", code, field)
	}

	path, err := core.ParsePath(ev.Idx)
	if err != nil {
		return nil, fmt.Errorf("DecodeEvent: idx %q: %w", ev.Idx, err)
	}
	ev.Type = data.EventType()
	ev.Data = data
	ev.Path = path
	return &ev, nil
}
