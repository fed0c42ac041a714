// Package diff 计算编辑类工具调用的行级差异
package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/infrastructure/config"
)

// truncatedMarker 截断时附在末尾的提示行
const truncatedMarker = "(diff truncated)"

// Engine 差异引擎，输出带双侧行号的统一行序列
type Engine struct {
	maxLines int
}

// NewEngine 创建差异引擎
func NewEngine(cfg *config.DiffConfig) *Engine {
	return &Engine{maxLines: cfg.MaxLines}
}

// Compare 逐行比较 before 与 after
// 两侧相同返回全 context 行；输出超过 maxLines 时截断并追加提示行
func (e *Engine) Compare(before, after string) []conversation.DiffLine {
	oldLines := splitLines(before)
	newLines := splitLines(after)

	matcher := difflib.NewMatcher(oldLines, newLines)

	var out []conversation.DiffLine
	oldNo, newNo := 1, 1
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2; i++ {
				out = append(out, conversation.DiffLine{
					Kind:      conversation.DiffContext,
					OldLineNo: oldNo,
					NewLineNo: newNo,
					Text:      oldLines[i],
				})
				oldNo++
				newNo++
			}
		case 'd':
			out = appendRemoved(out, oldLines[op.I1:op.I2], &oldNo)
		case 'i':
			out = appendAdded(out, newLines[op.J1:op.J2], &newNo)
		case 'r':
			// 替换展开为先删后增
			out = appendRemoved(out, oldLines[op.I1:op.I2], &oldNo)
			out = appendAdded(out, newLines[op.J1:op.J2], &newNo)
		}

		if e.maxLines > 0 && len(out) >= e.maxLines {
			out = out[:e.maxLines]
			out = append(out, conversation.DiffLine{
				Kind: conversation.DiffContext,
				Text: truncatedMarker,
			})
			return out
		}
	}
	return out
}

func appendRemoved(out []conversation.DiffLine, lines []string, oldNo *int) []conversation.DiffLine {
	for _, line := range lines {
		out = append(out, conversation.DiffLine{
			Kind:      conversation.DiffRemoved,
			OldLineNo: *oldNo,
			Text:      line,
		})
		*oldNo = *oldNo + 1
	}
	return out
}

func appendAdded(out []conversation.DiffLine, lines []string, newNo *int) []conversation.DiffLine {
	for _, line := range lines {
		out = append(out, conversation.DiffLine{
			Kind:      conversation.DiffAdded,
			NewLineNo: *newNo,
			Text:      line,
		})
		*newNo = *newNo + 1
	}
	return out
}

// splitLines 按行拆分，空串拆为空集
// 末尾换行不产生多余空行
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
