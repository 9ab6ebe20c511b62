package txadapter

import (
	"fmt"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

func grpcCompiledIx(programIdx uint32, accounts []byte, data []byte, stackHeight uint32) compiledIx {
	// gRPC 中 accounts 每个字节即一个 accountIndex
	idx := make([]int, len(accounts))
	for i, a := range accounts {
		idx[i] = int(a)
	}
	return compiledIx{
		programIdx:  int(programIdx),
		accounts:    idx,
		data:        data,
		stackHeight: stackHeight,
	}
}

// AdaptGrpcTx 将 gRPC 推送的交易数据解析为内部 AdaptedTx 结构。
// 完整流程：
//  1. 构建 accountKeys（含 Address Lookup）；
//  2. 构建指令（主 + inner），补充 Path；
//  3. 返回 AdaptedTx；如 panic 会被 recover。
func AdaptGrpcTx(txCtx *core.TxContext, tx *pb.SubscribeUpdateTransactionInfo) (_ *core.AdaptedTx, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.Malformed("AdaptGrpcTx panic: %v", r)
		}
	}()

	msg := tx.GetTransaction().GetMessage()
	if msg == nil {
		return nil, core.Malformed("missing transaction message")
	}
	meta := tx.GetMeta()

	// 构造完整的账户 pubkey 列表（主账户 + Address Lookup 表中的 writable 和 readonly）
	accountKeys, err := buildFullAccountKeys(
		msg.GetAccountKeys(),
		meta.GetLoadedWritableAddresses(),
		meta.GetLoadedReadonlyAddresses(),
	)
	if err != nil {
		return nil, fmt.Errorf("buildFullAccountKeys error: %w", err)
	}

	// 基本健壮性校验：签名或账户列表为空时立即报错
	signatures := tx.GetTransaction().GetSignatures()
	if len(signatures) == 0 || len(accountKeys) == 0 {
		return nil, core.Malformed("missing signature or accountKeys")
	}
	sig, err := types.SignatureFromBytes(signatures[0])
	if err != nil {
		return nil, core.Malformed("invalid signature: %v", err)
	}

	rawInstructions := msg.GetInstructions()
	top := make([]compiledIx, 0, len(rawInstructions))
	for _, inst := range rawInstructions {
		top = append(top, grpcCompiledIx(inst.GetProgramIdIndex(), inst.GetAccounts(), inst.GetData(), 0))
	}

	rawInners := meta.GetInnerInstructions()
	inners := make([]innerGroup, 0, len(rawInners))
	for _, g := range rawInners {
		group := innerGroup{index: int(g.GetIndex()), ixs: make([]compiledIx, 0, len(g.GetInstructions()))}
		for _, inner := range g.GetInstructions() {
			group.ixs = append(group.ixs, grpcCompiledIx(
				inner.GetProgramIdIndex(), inner.GetAccounts(), inner.GetData(), inner.GetStackHeight(),
			))
		}
		inners = append(inners, group)
	}

	instructions, err := buildAdaptedInstructions(top, inners, accountKeys)
	if err != nil {
		return nil, err
	}

	// 获取 signer 数量（前 N 个 accountKeys 视为 signer）
	signerCount := int(msg.GetHeader().GetNumRequiredSignatures())

	return &core.AdaptedTx{
		TxCtx:         txCtx,
		TxIndex:       uint32(tx.GetIndex()),
		Signature:     sig,
		Signers:       buildSigners(accountKeys, signerCount),
		AccountKeys:   accountKeys,
		Instructions:  instructions,
		TopLevelCount: len(top),
		LogMessages:   meta.GetLogMessages(),
	}, nil
}
