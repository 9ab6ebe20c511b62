package core

import (
	"pumpfun-indexer-sol/internal/types"
)

// TxContext 表示交易所属区块的上下文信息。
// gRPC 区块流按区块共享同一个 TxContext，RPC 单笔拉取时各自构造。
type TxContext struct {
	BlockTime   int64      // 区块时间戳（Unix 秒），0 表示未知
	Slot        uint64     // 当前 Slot（Solana 高度单位）
	ParentSlot  uint64     // 父 Slot（用于分叉检测和回滚）
	BlockHeight uint64     // 区块高度（辅助比对）
	BlockHash   types.Hash // 区块哈希（辅助去重与 fork 检测）
}

// AdaptedInstruction 表示一条主指令或 inner 指令，来源于 message.instructions 或 meta.innerInstructions。
// 所有指令在预处理阶段已展平（主指令在前，紧随其后是它自己的 inner 指令），
// 并补充了位置信息（IxIndex、InnerIndex、Path），以支持顺序遍历与事件定位。
type AdaptedInstruction struct {
	IxIndex     uint16         // 主指令索引（从 0 开始）
	InnerIndex  int16          // inner 指令在主指令中的序号（从 0 开始），主指令本身为 -1
	StackHeight uint32         // 运行时调用深度（主指令为 1），数据源未提供时为 0
	Path        Path           // 树上位置：主指令 [ix]，inner 指令 [ix, inner]
	ProgramID   types.Pubkey   // 指令对应的程序 ID
	Accounts    []types.Pubkey // 指令涉及的账户列表，保持原始顺序
	Data        []byte         // 指令原始数据，用于 handler 判断指令类型与解析参数
}

func (ix *AdaptedInstruction) IsInner() bool {
	return ix.InnerIndex >= 0
}

// Account 按位置读取账户，越界时返回 ErrInvalidAccountIndex
func (ix *AdaptedInstruction) Account(pos int) (types.Pubkey, error) {
	if pos < 0 || pos >= len(ix.Accounts) {
		return types.Pubkey{}, invalidAccountIndex(pos, len(ix.Accounts))
	}
	return ix.Accounts[pos], nil
}

// AdaptedTx 表示已解析的链上交易结构，包含上下文、指令与日志。
// 是事件解析流程的核心输入结构体，解析过程中只读。
type AdaptedTx struct {
	TxCtx     *TxContext      // 所属区块上下文（包含 Unix 时间、Slot 等元数据）
	TxIndex   uint32          // 当前交易在区块中的序号（RPC 来源时为 0）
	Signature types.Signature // 交易签名（第一个签名即交易 ID）
	Signers   []types.Pubkey  // 交易签名者列表（accountKeys 的前 N 个）

	// AccountKeys 完整账户表：message.accountKeys + ALT writable + ALT readonly
	AccountKeys []types.Pubkey

	// Instructions 表示交易中的所有指令（包括主指令和 inner 指令），已按深度优先顺序展平。
	Instructions []*AdaptedInstruction

	// TopLevelCount 主指令数量，日志派生事件的路径从这里开始编号
	TopLevelCount int

	// LogMessages 表示交易执行过程中产生的 Program 日志。
	// 部分协议版本的 Complete 事件只能从日志中观察到。
	LogMessages []string
}

func (tx *AdaptedTx) Slot() uint64 {
	if tx.TxCtx == nil {
		return 0
	}
	return tx.TxCtx.Slot
}

// BlockTime 返回非负的区块时间（秒），未知时为 0
func (tx *AdaptedTx) BlockTime() uint64 {
	if tx.TxCtx == nil || tx.TxCtx.BlockTime < 0 {
		return 0
	}
	return uint64(tx.TxCtx.BlockTime)
}

// IsSigner 判断账户是否为交易签名者
func (tx *AdaptedTx) IsSigner(pk types.Pubkey) bool {
	for _, s := range tx.Signers {
		if s == pk {
			return true
		}
	}
	return false
}

func (tx *AdaptedTx) SignatureString() string {
	return tx.Signature.String()
}
