package decoder

import (
	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/logic/eventparser"
	"pumpfun-indexer-sol/internal/logic/txadapter"
)

// Result 单笔交易的解析结果
type Result struct {
	Signature string         `json:"signature"`
	Slot      uint64         `json:"slot"`
	Failed    bool           `json:"failed"` // 执行失败的交易不解析事件
	Events    []*core.Event  `json:"events"`
	Skipped   map[string]int `json:"skipped,omitempty"`
}

// DecodeRaw 适配并解析一笔 JSON-RPC 交易
func DecodeRaw(raw *txadapter.RawTransaction) (*Result, error) {
	tx, err := txadapter.AdaptRawTx(raw)
	if err != nil {
		return nil, err
	}
	return DecodeAdapted(tx, raw.Meta.Failed()), nil
}

// DecodeAdapted 解析已适配的交易；failed 为 true 时只返回交易标识
func DecodeAdapted(tx *core.AdaptedTx, failed bool) *Result {
	res := &Result{
		Signature: tx.SignatureString(),
		Slot:      tx.Slot(),
		Failed:    failed,
		Events:    []*core.Event{},
	}
	if failed {
		return res
	}

	events, stats := eventparser.NewEventParser(tx).ProcessEventsWithStats()
	res.Events = events
	if stats.Total() > 0 {
		res.Skipped = stats.Snapshot()
	}
	return res
}

// DecodeJSON 解析 getTransaction 响应体（完整响应或裸 result）
func DecodeJSON(data []byte) (*Result, error) {
	raw, err := txadapter.ParseRawTransactionJSON(data)
	if err != nil {
		return nil, err
	}
	return DecodeRaw(raw)
}
