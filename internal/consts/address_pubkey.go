package consts

import (
	"pumpfun-indexer-sol/internal/types"
)

// 热路径上按 Pubkey 直接比较，避免反复 base58 解码
var (
	SystemProgram        = types.PubkeyFromBase58(SystemProgramStr)
	TokenProgram         = types.PubkeyFromBase58(TokenProgramStr)
	ComputeBudgetProgram = types.PubkeyFromBase58(ComputeBudgetProgramIdStr)

	PumpFunProgram        = types.PubkeyFromBase58(PumpFunProgramStr)
	PumpFunEventAuthority = types.PubkeyFromBase58(PumpFunEventAuthorityStr)
	PumpFunGlobal         = types.PubkeyFromBase58(PumpFunGlobalStr)
)
