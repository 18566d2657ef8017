package dialogue

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/yacciiyao/yoo-growth-buddy/internal/domain"
)

func testContext() domain.ChildContext {
	return domain.ChildContext{
		ChildID:         1,
		Age:             5,
		Gender:          "girl",
		Interests:       []string{"画画", "恐龙"},
		ForbiddenTopics: []string{"鬼故事"},
		ToyName:         "小悠",
		ToyPersona:      "活泼开朗的小伙伴",
	}
}

func TestBuildMessageShape(t *testing.T) {
	b := NewBuilder(6)

	var history []domain.Turn
	for i := 1; i <= 3; i++ {
		history = append(history, domain.Turn{
			Seq:       i,
			UserText:  fmt.Sprintf("问题%d", i),
			ReplyText: fmt.Sprintf("回答%d", i),
		})
	}

	messages := b.Build(testContext(), history, "今天天气怎么样")

	// system + 3轮历史(各2条) + 本轮 = 8
	if len(messages) != 8 {
		t.Fatalf("got %d messages, want 8", len(messages))
	}
	if messages[0].Role != schema.System {
		t.Fatalf("first message role = %s, want system", messages[0].Role)
	}
	if messages[1].Role != schema.User || messages[1].Content != "问题1" {
		t.Fatalf("unexpected second message: %+v", messages[1])
	}
	if messages[2].Role != schema.Assistant || messages[2].Content != "回答1" {
		t.Fatalf("unexpected third message: %+v", messages[2])
	}
	last := messages[len(messages)-1]
	if last.Role != schema.User || last.Content != "今天天气怎么样" {
		t.Fatalf("last message must be current input, got %+v", last)
	}
}

func TestBuildHistoryWindow(t *testing.T) {
	b := NewBuilder(6)

	var history []domain.Turn
	for i := 1; i <= 10; i++ {
		history = append(history, domain.Turn{
			Seq:       i,
			UserText:  fmt.Sprintf("问题%d", i),
			ReplyText: fmt.Sprintf("回答%d", i),
		})
	}

	messages := b.Build(testContext(), history, "新问题")

	// system + 6轮窗口(12条) + 本轮 = 14
	if len(messages) != 14 {
		t.Fatalf("got %d messages, want 14", len(messages))
	}
	// 窗口必须是最近的 6 轮，即从第 5 轮开始
	if messages[1].Content != "问题5" {
		t.Fatalf("window must keep the most recent turns, got %q first", messages[1].Content)
	}
	if messages[12].Content != "回答10" {
		t.Fatalf("window tail wrong, got %q", messages[12].Content)
	}
}

func TestSystemPromptContents(t *testing.T) {
	b := NewBuilder(6)
	messages := b.Build(testContext(), nil, "你好")

	prompt := messages[0].Content
	for _, want := range []string{"小悠", "活泼开朗的小伙伴", "5 岁", "画画, 恐龙", "鬼故事", "一定用中文回答"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSystemPromptDefaults(t *testing.T) {
	b := NewBuilder(6)
	cc := domain.ChildContext{ChildID: 2, Age: 4}

	messages := b.Build(cc, nil, "你好")
	prompt := messages[0].Content

	for _, want := range []string{"小悠", "温柔可爱小伙伴", "未知", "暂时未知", "无特别限制"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("default prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildSkipsEmptyHistoryText(t *testing.T) {
	b := NewBuilder(6)
	history := []domain.Turn{
		{Seq: 1, UserText: "只有问题没有回答", ReplyText: ""},
	}

	messages := b.Build(testContext(), history, "继续")
	// system + 1条历史 + 本轮 = 3
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
}
