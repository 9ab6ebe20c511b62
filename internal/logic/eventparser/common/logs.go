package common

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"pumpfun-indexer-sol/internal/logic/core"
	"pumpfun-indexer-sol/internal/types"
)

// ProgramLog 是一条 "Program data: <base64>" 日志解码后的载荷，
// Program 为输出该日志时位于调用栈顶的程序。
type ProgramLog struct {
	Line    int          // 在 meta.logMessages 中的行号
	Program types.Pubkey // 栈顶程序
	Depth   int          // 调用深度（invoke [n] 中的 n）
	Data    []byte       // base64 解码后的原始字节（含 8 字节事件 discriminator）
}

const (
	programPrefix = "Program "
	dataPrefix    = "Program data: "
)

// 程序自由输出的日志行，内容不参与调用栈跟踪
var freeformPrefixes = []string{"Program log:", "Program return:", "Program consumption:"}

var (
	invokeRe  = regexp.MustCompile(`^Program (\S+) invoke \[(\d+)\]$`)
	successRe = regexp.MustCompile(`^Program (\S+) success$`)
	failedRe  = regexp.MustCompile(`^Program (\S+) failed: .*$`)
)

// ParseProgramLogs 顺序扫描交易日志，维护程序调用栈，返回所有 "Program data:" 载荷。
// 以下情况记为 ErrLogPatternMismatch 并跳过该行，不影响其余日志：
//   - "Program data:" 的 base64 内容非法，或输出时调用栈为空；
//   - invoke / success / failed 行的程序地址或深度无法解析；
//   - success / failed 行与栈顶程序不一致。
func ParseProgramLogs(lines []string) ([]ProgramLog, []error) {
	var (
		out   []ProgramLog
		errs  []error
		stack []types.Pubkey
	)

	mismatch := func(line int, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: line %d: %s", core.ErrLogPatternMismatch, line, fmt.Sprintf(format, args...)))
	}

	for i, line := range lines {
		if !strings.HasPrefix(line, programPrefix) {
			continue
		}

		if strings.HasPrefix(line, dataPrefix) {
			if len(stack) == 0 {
				mismatch(i, "program data outside of any invocation")
				continue
			}
			data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line[len(dataPrefix):]))
			if err != nil {
				mismatch(i, "invalid base64 payload: %v", err)
				continue
			}
			out = append(out, ProgramLog{
				Line:    i,
				Program: stack[len(stack)-1],
				Depth:   len(stack),
				Data:    data,
			})
			continue
		}

		if hasAnyPrefix(line, freeformPrefixes) {
			continue
		}

		switch {
		case strings.Contains(line, " invoke ["):
			m := invokeRe.FindStringSubmatch(line)
			if m == nil {
				mismatch(i, "malformed invoke line %q", line)
				continue
			}
			program, err := types.TryPubkeyFromBase58(m[1])
			if err != nil {
				mismatch(i, "invalid program id %q", m[1])
				continue
			}
			depth, err := strconv.Atoi(m[2])
			if err != nil || depth < 1 {
				mismatch(i, "invalid invoke depth %q", m[2])
				continue
			}
			// 深度与栈不一致时（日志被截断等）以日志中的深度为准
			if depth-1 < len(stack) {
				stack = stack[:depth-1]
			}
			stack = append(stack, program)

		case strings.HasSuffix(line, " success"):
			m := successRe.FindStringSubmatch(line)
			if m == nil {
				mismatch(i, "malformed success line %q", line)
				continue
			}
			stack = popProgram(stack, m[1], i, mismatch)

		case strings.Contains(line, " failed: "):
			m := failedRe.FindStringSubmatch(line)
			if m == nil {
				mismatch(i, "malformed failed line %q", line)
				continue
			}
			stack = popProgram(stack, m[1], i, mismatch)
		}
		// "consumed ... compute units" 等其余行不影响调用栈
	}
	return out, errs
}

func popProgram(stack []types.Pubkey, id string, line int, mismatch func(int, string, ...any)) []types.Pubkey {
	if len(stack) == 0 {
		mismatch(line, "return of %s with empty invoke stack", id)
		return stack
	}
	if stack[len(stack)-1].String() != id {
		mismatch(line, "return of %s while %s is on top", id, stack[len(stack)-1])
	}
	return stack[:len(stack)-1]
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
