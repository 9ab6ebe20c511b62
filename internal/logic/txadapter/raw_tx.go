package txadapter

import (
	"encoding/json"
	"fmt"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"

	"github.com/mr-tron/base58"
)

// RawTransaction 对应 JSON-RPC getTransaction（encoding=json，maxSupportedTransactionVersion=0）的 result。
type RawTransaction struct {
	Slot        uint64          `json:"slot"`
	BlockTime   *int64          `json:"blockTime,omitempty"`
	Version     json.RawMessage `json:"version,omitempty"`
	Transaction *RawTxBody      `json:"transaction"`
	Meta        *RawTxMeta      `json:"meta"`
}

type RawTxBody struct {
	Signatures []string    `json:"signatures"`
	Message    *RawMessage `json:"message"`
}

type RawMessage struct {
	AccountKeys     []string          `json:"accountKeys"`
	Header          RawMessageHeader  `json:"header"`
	Instructions    []*RawInstruction `json:"instructions"`
	RecentBlockhash string            `json:"recentBlockhash,omitempty"`
}

type RawMessageHeader struct {
	NumRequiredSignatures       int `json:"numRequiredSignatures"`
	NumReadonlySignedAccounts   int `json:"numReadonlySignedAccounts"`
	NumReadonlyUnsignedAccounts int `json:"numReadonlyUnsignedAccounts"`
}

// RawInstruction 的 Data 为 base58 编码
type RawInstruction struct {
	ProgramIDIndex int     `json:"programIdIndex"`
	Accounts       []int   `json:"accounts"`
	Data           string  `json:"data"`
	StackHeight    *uint32 `json:"stackHeight,omitempty"`
}

type RawInnerInstructions struct {
	Index        int               `json:"index"`
	Instructions []*RawInstruction `json:"instructions"`
}

type RawLoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

type RawTxMeta struct {
	Err               json.RawMessage         `json:"err,omitempty"`
	Fee               uint64                  `json:"fee"`
	InnerInstructions []*RawInnerInstructions `json:"innerInstructions"`
	LogMessages       []string                `json:"logMessages"`
	LoadedAddresses   *RawLoadedAddresses     `json:"loadedAddresses,omitempty"`
}

// Failed 交易执行失败（meta.err 非 null）
func (m *RawTxMeta) Failed() bool {
	if m == nil || len(m.Err) == 0 {
		return false
	}
	return string(m.Err) != "null"
}

// rpcEnvelope JSON-RPC 响应外层
type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ParseRawTransactionJSON 解析 getTransaction 的响应体。
// 同时接受完整的 {"jsonrpc","result","id"} 响应和裸 result 对象。
func ParseRawTransactionJSON(data []byte) (*RawTransaction, error) {
	var env rpcEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, core.Malformed("invalid json: %v", err)
	}
	if env.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", env.Error.Code, env.Error.Message)
	}

	body := data
	if env.JSONRPC != "" || len(env.Result) > 0 {
		if len(env.Result) == 0 || string(env.Result) == "null" {
			return nil, core.Malformed("rpc result is null")
		}
		body = env.Result
	}

	var raw RawTransaction
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, core.Malformed("invalid transaction json: %v", err)
	}
	return &raw, nil
}

func decodeRawInstruction(ix *RawInstruction) (compiledIx, error) {
	if ix == nil {
		return compiledIx{}, core.Malformed("nil instruction")
	}
	var data []byte
	if ix.Data != "" {
		decoded, err := base58.Decode(ix.Data)
		if err != nil {
			return compiledIx{}, core.Malformed("invalid base58 instruction data: %v", err)
		}
		data = decoded
	}
	var stackHeight uint32
	if ix.StackHeight != nil {
		stackHeight = *ix.StackHeight
	}
	return compiledIx{
		programIdx:  ix.ProgramIDIndex,
		accounts:    ix.Accounts,
		data:        data,
		stackHeight: stackHeight,
	}, nil
}

// AdaptRawTx 将 JSON-RPC 交易转换为内部 AdaptedTx 结构。
// 缺少 message / 账户表 / 指令列表 / 签名，或任何索引越界、编码非法，都返回 ErrMalformedTransaction，不产出部分结果。
func AdaptRawTx(raw *RawTransaction) (_ *core.AdaptedTx, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.Malformed("AdaptRawTx panic: %v", r)
		}
	}()

	if raw == nil || raw.Transaction == nil || raw.Transaction.Message == nil {
		return nil, core.Malformed("missing transaction message")
	}
	msg := raw.Transaction.Message
	if len(msg.AccountKeys) == 0 {
		return nil, core.Malformed("missing account keys")
	}
	if msg.Instructions == nil {
		return nil, core.Malformed("missing instruction list")
	}
	if len(raw.Transaction.Signatures) == 0 {
		return nil, core.Malformed("missing signature")
	}
	sig, err := types.SignatureFromBase58(raw.Transaction.Signatures[0])
	if err != nil {
		return nil, core.Malformed("invalid signature: %v", err)
	}

	var writable, readonly []string
	if raw.Meta != nil && raw.Meta.LoadedAddresses != nil {
		writable = raw.Meta.LoadedAddresses.Writable
		readonly = raw.Meta.LoadedAddresses.Readonly
	}
	accountKeys, err := buildFullAccountKeysBase58(msg.AccountKeys, writable, readonly)
	if err != nil {
		return nil, err
	}

	top := make([]compiledIx, 0, len(msg.Instructions))
	for i, ix := range msg.Instructions {
		c, err := decodeRawInstruction(ix)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		top = append(top, c)
	}

	var inners []innerGroup
	var logs []string
	if raw.Meta != nil {
		inners = make([]innerGroup, 0, len(raw.Meta.InnerInstructions))
		for _, g := range raw.Meta.InnerInstructions {
			if g == nil {
				continue
			}
			group := innerGroup{index: g.Index, ixs: make([]compiledIx, 0, len(g.Instructions))}
			for j, ix := range g.Instructions {
				c, err := decodeRawInstruction(ix)
				if err != nil {
					return nil, fmt.Errorf("inner instruction %d.%d: %w", g.Index, j, err)
				}
				group.ixs = append(group.ixs, c)
			}
			inners = append(inners, group)
		}
		logs = raw.Meta.LogMessages
	}

	instructions, err := buildAdaptedInstructions(top, inners, accountKeys)
	if err != nil {
		return nil, err
	}

	txCtx := &core.TxContext{Slot: raw.Slot}
	if raw.BlockTime != nil {
		txCtx.BlockTime = *raw.BlockTime
	}

	return &core.AdaptedTx{
		TxCtx:         txCtx,
		Signature:     sig,
		Signers:       buildSigners(accountKeys, msg.Header.NumRequiredSignatures),
		AccountKeys:   accountKeys,
		Instructions:  instructions,
		TopLevelCount: len(top),
		LogMessages:   logs,
	}, nil
}
