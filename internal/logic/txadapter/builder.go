package txadapter

import (
	"fmt"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"
)

// compiledIx 是各数据源指令的统一中间表示：账户以 accountIndex 形式给出，尚未解析成 Pubkey。
type compiledIx struct {
	programIdx  int
	accounts    []int
	data        []byte
	stackHeight uint32
}

// innerGroup 对应 meta.innerInstructions 的一项，index 指向所属主指令。
type innerGroup struct {
	index int
	ixs   []compiledIx
}

// buildFullAccountKeys 构造交易中完整的账户 Pubkey 列表。
// 拼接 message.accountKeys 与 Address Lookup Table 中的 writable / readonly 地址，
// 顺序与链上 accountIndex 一致。
func buildFullAccountKeys(
	accountKeys, loadedWritable, loadedReadonly [][]byte,
) ([]types.Pubkey, error) {
	total := len(accountKeys) + len(loadedWritable) + len(loadedReadonly)
	pubkeys := make([]types.Pubkey, total)

	i := 0 // 写入索引
	for _, part := range []struct {
		name string
		keys [][]byte
	}{
		{"accountKeys", accountKeys},
		{"loadedWritable", loadedWritable},
		{"loadedReadonly", loadedReadonly},
	} {
		for _, b := range part.keys {
			if len(b) != 32 {
				return nil, core.Malformed("invalid pubkey in %s at index %d", part.name, i)
			}
			copy(pubkeys[i][:], b)
			i++
		}
	}
	return pubkeys, nil
}

// buildFullAccountKeysBase58 同 buildFullAccountKeys，输入为 JSON-RPC 的 base58 字符串
func buildFullAccountKeysBase58(
	accountKeys, loadedWritable, loadedReadonly []string,
) ([]types.Pubkey, error) {
	total := len(accountKeys) + len(loadedWritable) + len(loadedReadonly)
	pubkeys := make([]types.Pubkey, 0, total)
	for _, part := range [][]string{accountKeys, loadedWritable, loadedReadonly} {
		for _, s := range part {
			pk, err := types.TryPubkeyFromBase58(s)
			if err != nil {
				return nil, core.Malformed("invalid pubkey %q at index %d: %v", s, len(pubkeys), err)
			}
			pubkeys = append(pubkeys, pk)
		}
	}
	return pubkeys, nil
}

func resolveIx(ix compiledIx, accountKeys []types.Pubkey) (types.Pubkey, []types.Pubkey, error) {
	if ix.programIdx < 0 || ix.programIdx >= len(accountKeys) {
		return types.Pubkey{}, nil, core.Malformed("program index %d out of range (%d keys)", ix.programIdx, len(accountKeys))
	}
	accounts := make([]types.Pubkey, 0, len(ix.accounts))
	for _, idx := range ix.accounts {
		if idx < 0 || idx >= len(accountKeys) {
			return types.Pubkey{}, nil, core.Malformed("account index %d out of range (%d keys)", idx, len(accountKeys))
		}
		accounts = append(accounts, accountKeys[idx])
	}
	return accountKeys[ix.programIdx], accounts, nil
}

// buildAdaptedInstructions 扁平化主指令与 inner 指令，输出统一结构。
// 每条主指令之后紧跟它自己的 inner 指令：
//   - 主指令：Path=[i]，InnerIndex=-1，StackHeight 缺省为 1；
//   - inner 指令：Path=[i, j]，InnerIndex=j。
//
// inner 分组一般按主指令索引递增排列，这里按 index 归组，不依赖排列顺序。
func buildAdaptedInstructions(
	top []compiledIx,
	inners []innerGroup,
	accountKeys []types.Pubkey,
) ([]*core.AdaptedInstruction, error) {
	byIndex := make(map[int][]compiledIx, len(inners))
	innerCount := 0
	for _, g := range inners {
		if g.index < 0 || g.index >= len(top) {
			return nil, core.Malformed("inner group references instruction %d (%d top-level)", g.index, len(top))
		}
		byIndex[g.index] = append(byIndex[g.index], g.ixs...)
		innerCount += len(g.ixs)
	}

	instructions := make([]*core.AdaptedInstruction, 0, len(top)+innerCount)
	for i, ix := range top {
		programID, accounts, err := resolveIx(ix, accountKeys)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		stackHeight := ix.stackHeight
		if stackHeight == 0 {
			stackHeight = 1
		}
		instructions = append(instructions, &core.AdaptedInstruction{
			IxIndex:     uint16(i),
			InnerIndex:  -1,
			StackHeight: stackHeight,
			Path:        core.Path{uint16(i)},
			ProgramID:   programID,
			Accounts:    accounts,
			Data:        ix.data,
		})

		for j, inner := range byIndex[i] {
			programID, accounts, err := resolveIx(inner, accountKeys)
			if err != nil {
				return nil, fmt.Errorf("inner instruction %d.%d: %w", i, j, err)
			}
			instructions = append(instructions, &core.AdaptedInstruction{
				IxIndex:     uint16(i),
				InnerIndex:  int16(j),
				StackHeight: inner.stackHeight,
				Path:        core.Path{uint16(i), uint16(j)},
				ProgramID:   programID,
				Accounts:    accounts,
				Data:        inner.data,
			})
		}
	}
	return instructions, nil
}

func buildSigners(accountKeys []types.Pubkey, signerCount int) []types.Pubkey {
	if signerCount <= 0 || signerCount > len(accountKeys) {
		return nil
	}
	signers := make([]types.Pubkey, signerCount)
	copy(signers, accountKeys[:signerCount])
	return signers
}
