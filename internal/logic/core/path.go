package core

import (
	"strconv"
	"strings"
)

// Path 指令在交易指令树中的位置，例如 [0] 表示第一条主指令，[0 2] 表示它的第三条 inner 指令。
// 同一交易内唯一，按字典序比较即为事件的规范顺序。
type Path []uint16

// Compare 按字典序比较：a < b 返回 -1，相等返回 0，a > b 返回 1。
// 前缀较短者更小（主指令排在自己的 inner 指令之前）。
func (p Path) Compare(other Path) int {
	n := min(len(p), len(other))
	for i := 0; i < n; i++ {
		switch {
		case p[i] < other[i]:
			return -1
		case p[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(other):
		return -1
	case len(p) > len(other):
		return 1
	}
	return 0
}

func (p Path) Less(other Path) bool {
	return p.Compare(other) < 0
}

// String 渲染为点分形式，即事件的 idx 字段（"0"、"0.1"）
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(p) * 3)
	for i, v := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return sb.String()
}

// ParsePath 解析点分形式的 idx，主要用于测试与下游校验
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, strconv.ErrSyntax
	}
	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return nil, err
		}
		p = append(p, uint16(v))
	}
	return p, nil
}
