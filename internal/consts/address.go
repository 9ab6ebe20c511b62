package consts

// Base58 地址常量
const (
	SystemProgramStr          = "11111111111111111111111111111111"
	TokenProgramStr           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	ComputeBudgetProgramIdStr = "ComputeBudget111111111111111111111111111111"

	// Pump.fun bonding curve 程序
	PumpFunProgramStr = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

	// Pump.fun 事件授权 PDA（emit_cpi 自调用时的第 0 个账户）
	PumpFunEventAuthorityStr = "Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1"

	// Pump.fun 全局配置账户
	PumpFunGlobalStr = "4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf"
)
