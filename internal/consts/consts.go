package consts

import "runtime"

// CpuCount 表示逻辑 CPU 核心数，用于控制并发任务调度上限
var CpuCount = runtime.NumCPU()

// BlockChanSize gRPC 接收协程与区块处理协程之间的缓冲
const BlockChanSize = 200
