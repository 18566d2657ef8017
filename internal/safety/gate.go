package safety

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
)

// Violation 文本安全检查不通过。
// Source 区分是儿童输入还是模型回复，Reason 只进日志和落库，
// 不会直接念给孩子听。
type Violation struct {
	Source string // input / output
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("[%s] %s", v.Source, v.Reason)
}

// 基础敏感词，家长配置的禁止话题会在检查时并入。
var (
	baseInputForbidden = []string{
		"暴力", "打人", "杀人", "自杀", "自残", "恐怖", "鬼怪", "黄色", "色情", "毒品",
	}
	baseOutputForbidden = []string{
		"自杀", "自残", "杀死", "仇恨", "色情", "暴力", "伤害", "杀人", "毒品", "赌博",
	}
)

const defaultToyName = "小悠"

// Gate 文本安全门。输入侧命中只做标记（软失败），
// 输出侧统一走 SanitizeReply 收敛，保证回复永远可播。
type Gate struct {
	inputWords      []string
	outputWords     []string
	maxInputLength  int
	maxOutputLength int
}

// NewGate 创建安全门，长度上限取配置值。
func NewGate(maxInputLength, maxOutputLength int) *Gate {
	return &Gate{
		inputWords:      baseInputForbidden,
		outputWords:     baseOutputForbidden,
		maxInputLength:  maxInputLength,
		maxOutputLength: maxOutputLength,
	}
}

// CheckInput 检查儿童输入。空文本直接通过，由上层决定兜底文案；
// 超长或命中敏感词返回 Violation，nil 表示通过。
func (g *Gate) CheckInput(text string, extraForbidden []string) *Violation {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return nil
	}

	if n := utf8.RuneCountInString(normalized); n > g.maxInputLength {
		return g.violate("input", fmt.Sprintf("儿童输入过长（len=%d，限制=%d）", n, g.maxInputLength))
	}

	if hits := findForbidden(normalized, g.inputWords, extraForbidden); len(hits) > 0 {
		return g.violate("input", "儿童输入包含不适宜内容: "+strings.Join(hits, ","))
	}
	return nil
}

// CheckOutput 检查模型回复。空回复视为违规，方便上层走兜底话术。
func (g *Gate) CheckOutput(text string, extraForbidden []string) *Violation {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return g.violate("output", "模型回复为空")
	}

	if n := utf8.RuneCountInString(normalized); n > g.maxOutputLength {
		return g.violate("output", fmt.Sprintf("模型回复过长（len=%d，限制=%d）", n, g.maxOutputLength))
	}

	if hits := findForbidden(normalized, g.outputWords, extraForbidden); len(hits) > 0 {
		return g.violate("output", "模型回复包含不适宜内容: "+strings.Join(hits, ","))
	}
	return nil
}

// SanitizeReply 回复收敛的唯一入口：检查不通过时替换成固定的
// 引导话术，并返回命中的 Violation 供上层打风险标记。
// 无论输入什么，返回的文本都保证可以直接送 TTS。
func (g *Gate) SanitizeReply(toyName, text string, extraForbidden []string) (string, *Violation) {
	if v := g.CheckOutput(text, extraForbidden); v != nil {
		return RedirectScript(toyName), v
	}
	return strings.TrimSpace(text), nil
}

// RedirectScript 话题引导话术，用玩具自己的名字说出来。
func RedirectScript(toyName string) string {
	if strings.TrimSpace(toyName) == "" {
		toyName = defaultToyName
	}
	return fmt.Sprintf(
		"%s觉得这个话题有点不安全，我们先不聊这个哦。要不要跟%s说说你今天遇到的开心事情，或者聊聊你喜欢的玩具、动画片、游戏？",
		toyName, toyName,
	)
}

func (g *Gate) violate(source, reason string) *Violation {
	observability.RecordSafetyViolation(source)
	return &Violation{Source: source, Reason: reason}
}

func findForbidden(text string, base, extra []string) []string {
	lowered := strings.ToLower(text)
	var hits []string
	seen := make(map[string]bool)

	check := func(words []string) {
		for _, w := range words {
			w = strings.TrimSpace(w)
			if w == "" || seen[w] {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(w)) {
				hits = append(hits, w)
				seen[w] = true
			}
		}
	}
	check(base)
	check(extra)
	return hits
}
