package common

import (
	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"
)

// ParserContext 是传入每个事件 handler 的解析上下文。
// 它包含当前交易的完整结构、已解析的程序日志、已消费指令集合与跳过统计，
// 仅在一次解析内有效，不跨交易共享。
type ParserContext struct {
	Tx *core.AdaptedTx // 原始交易上下文，包含 slot、指令、账户等

	Logs  []ProgramLog // 预扫描得到的 "Program data:" 载荷，按日志行顺序
	Stats *SkipStats   // 被跳过节点的原因计数

	consumedIxs  map[int]struct{} // 已被配对消费的指令（展平后的下标）
	consumedLogs map[int]struct{} // 已被配对消费的日志载荷（Logs 下标）
	events       []*core.Event
}

// InstructionHandler 定义了统一的事件指令解析函数签名。
//
// 参数：
//   - ctx:     当前解析上下文
//   - instrs:  当前交易中已展平的指令列表（含主指令与对应 inner 指令）
//   - current: 当前正在处理的指令索引（instrs[current]）
//
// 返回值：
//   - event: 若成功解析出事件，返回对应 *core.Event；指令无需产出事件时为 nil
//   - err:   解析失败的原因，调用方据此计入跳过统计
type InstructionHandler func(ctx *ParserContext, instrs []*core.AdaptedInstruction, current int) (*core.Event, error)

// LogScanner 在指令遍历结束后执行一次，用于提取只能从日志观察到的事件
type LogScanner func(ctx *ParserContext)

// BuildParserContext 构造事件解析上下文，并一次性预扫描程序日志。
func BuildParserContext(tx *core.AdaptedTx) *ParserContext {
	ctx := &ParserContext{
		Tx:           tx,
		Stats:        NewSkipStats(),
		consumedIxs:  make(map[int]struct{}),
		consumedLogs: make(map[int]struct{}),
		events:       make([]*core.Event, 0, 4),
	}
	logs, errs := ParseProgramLogs(tx.LogMessages)
	ctx.Logs = logs
	for _, err := range errs {
		ctx.Stats.Add(err)
	}
	return ctx
}

func (ctx *ParserContext) TxHashString() string {
	return ctx.Tx.SignatureString()
}

func (ctx *ParserContext) MarkConsumed(i int) {
	ctx.consumedIxs[i] = struct{}{}
}

func (ctx *ParserContext) IsConsumed(i int) bool {
	_, ok := ctx.consumedIxs[i]
	return ok
}

// TakeLog 按日志顺序查找第一条未消费、由 program 输出且满足 match 的载荷，找到后标记为已消费。
// 返回值为 ProgramLog 及其在 Logs 中的下标，未找到时下标为 -1。
func (ctx *ParserContext) TakeLog(program types.Pubkey, match func(data []byte) bool) (ProgramLog, int) {
	for i, l := range ctx.Logs {
		if _, used := ctx.consumedLogs[i]; used {
			continue
		}
		if l.Program != program {
			continue
		}
		if match(l.Data) {
			ctx.consumedLogs[i] = struct{}{}
			return l, i
		}
	}
	return ProgramLog{}, -1
}

// UnconsumedLogs 返回 program 输出且尚未被配对的日志载荷
func (ctx *ParserContext) UnconsumedLogs(program types.Pubkey) []ProgramLog {
	var out []ProgramLog
	for i, l := range ctx.Logs {
		if _, used := ctx.consumedLogs[i]; used {
			continue
		}
		if l.Program == program {
			out = append(out, l)
		}
	}
	return out
}

func (ctx *ParserContext) AddEvent(event *core.Event) {
	if event != nil {
		ctx.events = append(ctx.events, event)
	}
}

// Events 返回当前已收集的事件（只读视图）
func (ctx *ParserContext) Events() []*core.Event {
	return ctx.events
}

// TakeEvents 取走已收集的事件，调用后上下文不再持有它们
func (ctx *ParserContext) TakeEvents() []*core.Event {
	events := ctx.events
	ctx.events = nil
	return events
}

// LogPath 日志派生事件的树位置：[主指令数量, 日志行号]，保证排在所有指令事件之后
func (ctx *ParserContext) LogPath(line int) core.Path {
	return core.Path{uint16(ctx.Tx.TopLevelCount), uint16(line)}
}
