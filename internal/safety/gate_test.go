package safety

import (
	"strings"
	"testing"
)

func newTestGate() *Gate {
	return NewGate(200, 400)
}

func TestCheckInput(t *testing.T) {
	g := newTestGate()

	if v := g.CheckInput("", nil); v != nil {
		t.Fatalf("empty input must pass, got %v", v)
	}
	if v := g.CheckInput("   ", nil); v != nil {
		t.Fatalf("blank input must pass, got %v", v)
	}
	if v := g.CheckInput("今天我和小朋友一起玩积木", nil); v != nil {
		t.Fatalf("benign input must pass, got %v", v)
	}

	v := g.CheckInput("我想看恐怖片", nil)
	if v == nil {
		t.Fatal("base forbidden word must be caught")
	}
	if v.Source != "input" || !strings.Contains(v.Reason, "恐怖") {
		t.Fatalf("unexpected violation: %+v", v)
	}

	// 家长自定义禁止话题
	if v := g.CheckInput("我们来聊聊恐龙吧", []string{"恐龙"}); v == nil {
		t.Fatal("parent forbidden topic must be caught")
	}
	if v := g.CheckInput("我们来聊聊恐龙吧", nil); v != nil {
		t.Fatalf("topic not forbidden for this child must pass, got %v", v)
	}

	long := strings.Repeat("啊", 201)
	v = g.CheckInput(long, nil)
	if v == nil || !strings.Contains(v.Reason, "过长") {
		t.Fatalf("overlong input must be caught, got %v", v)
	}
}

func TestCheckOutput(t *testing.T) {
	g := newTestGate()

	v := g.CheckOutput("", nil)
	if v == nil || v.Source != "output" {
		t.Fatalf("empty reply must violate, got %v", v)
	}

	if v := g.CheckOutput("我们一起数到十吧！", nil); v != nil {
		t.Fatalf("benign reply must pass, got %v", v)
	}

	if v := g.CheckOutput("这个游戏里可以杀死怪物", nil); v == nil {
		t.Fatal("forbidden word in reply must be caught")
	}

	long := strings.Repeat("好", 401)
	if v := g.CheckOutput(long, nil); v == nil {
		t.Fatal("overlong reply must be caught")
	}
}

func TestSanitizeReply(t *testing.T) {
	g := newTestGate()

	text, v := g.SanitizeReply("小悠", "  我们来唱首歌吧！ ", nil)
	if v != nil {
		t.Fatalf("benign reply must pass through, got %v", v)
	}
	if text != "我们来唱首歌吧！" {
		t.Fatalf("text = %q", text)
	}

	text, v = g.SanitizeReply("豆豆", "暴力解决问题最快", nil)
	if v == nil {
		t.Fatal("risky reply must be replaced")
	}
	if !strings.Contains(text, "豆豆觉得这个话题有点不安全") {
		t.Fatalf("redirect must use toy name, got %q", text)
	}

	// 空回复同样落到引导话术
	text, v = g.SanitizeReply("", "", nil)
	if v == nil {
		t.Fatal("empty reply must be replaced")
	}
	if !strings.Contains(text, "小悠") {
		t.Fatalf("redirect must fall back to default toy name, got %q", text)
	}

	// 家长禁止话题同样收敛
	text, v = g.SanitizeReply("小悠", "恐龙时代有很多霸王龙", []string{"恐龙"})
	if v == nil {
		t.Fatal("parent forbidden topic in reply must be replaced")
	}
	if strings.Contains(text, "恐龙") {
		t.Fatalf("sanitized text must not contain the topic, got %q", text)
	}
}
