package core

import (
	"errors"
	"fmt"
)

// 解析过程中的错误分类。
// 只有 ErrMalformedTransaction 会中止整笔交易的解析并返回给调用方，
// 其余均为单条指令/日志级别的失败，由解析器吞掉并计入跳过统计。
var (
	ErrMalformedTransaction = errors.New("malformed transaction")
	ErrUnknownDiscriminator = errors.New("unknown discriminator")
	ErrTruncatedPayload     = errors.New("truncated payload")
	ErrInvalidAccountIndex  = errors.New("invalid account index")
	ErrLogPatternMismatch   = errors.New("log pattern mismatch")
	ErrEventPayloadMissing  = errors.New("event payload missing")
	ErrAccountMismatch      = errors.New("account mismatch")
)

func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedTransaction, fmt.Sprintf(format, args...))
}

func Truncated(field string, need, have int) error {
	return fmt.Errorf("%w: field=%s need=%d have=%d", ErrTruncatedPayload, field, need, have)
}

func invalidAccountIndex(pos, total int) error {
	return fmt.Errorf("%w: pos=%d accounts=%d", ErrInvalidAccountIndex, pos, total)
}
