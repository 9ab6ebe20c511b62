package progress

// SlotStatus 表示 slot 的处理状态
type SlotStatus int

const (
	SlotUnknown   SlotStatus = 0 // Redis 不存在
	SlotProcessed SlotStatus = 1 // 已处理成功（事件已投递）
	SlotInvalid   SlotStatus = 2 // 明确结构错误、跳过
	SlotPending   SlotStatus = 3 // 正在处理，暂未完成
)

func (s SlotStatus) String() string {
	switch s {
	case SlotProcessed:
		return "processed"
	case SlotInvalid:
		return "invalid"
	case SlotPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Source 表示事件来源模块（grpc、rpc）
const (
	SourceUnknown int16 = 0
	SourceGrpc    int16 = 1
	SourceRpc     int16 = 2
)

func SourceName(src int16) string {
	switch src {
	case SourceGrpc:
		return "grpc"
	case SourceRpc:
		return "rpc"
	default:
		return "unknown"
	}
}

// SlotRecord 表示一条 slot 处理记录
type SlotRecord struct {
	Slot       uint64     // Solana slot
	Source     int16      // 来源：1=grpc, 2=rpc
	BlockTime  int64      // Unix timestamp（秒）
	Status     SlotStatus // 处理状态
	EventCount int        // 该 slot 投递的 Pump.fun 事件数
}
