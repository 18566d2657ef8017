package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/yacciiyao/yoo-growth-buddy/internal/config"
)

func TestDummyProviderEchoesLastUser(t *testing.T) {
	p := NewDummyProvider()

	reply, err := p.Chat(context.Background(), []*schema.Message{
		schema.SystemMessage("人设"),
		schema.UserMessage("第一句"),
		schema.AssistantMessage("回答", nil),
		schema.UserMessage("我今天画了一只猫"),
	}, Options{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.Contains(reply, "我今天画了一只猫") {
		t.Fatalf("dummy must echo the last user message, got %q", reply)
	}

	reply, err = p.Chat(context.Background(), []*schema.Message{schema.SystemMessage("人设")}, Options{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply == "" {
		t.Fatal("dummy must still answer without user messages")
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(NewDummyProvider())

	if _, err := r.Get("dummy"); err != nil {
		t.Fatalf("Get dummy: %v", err)
	}
	if _, err := r.Get("ark"); err == nil {
		t.Fatal("unregistered provider must error")
	}
	if got := r.Available(); len(got) != 1 || got[0] != "dummy" {
		t.Fatalf("Available = %v", got)
	}
}

func TestSelectorFallsBackToDummy(t *testing.T) {
	cfg := &config.Config{
		LLMDefaultProvider: "ark",
		LLMMaxTokens:       256,
		LLMTemperature:     0.8,
	}
	s := NewSelector(NewRegistry(NewDummyProvider()), cfg)

	p, opts, err := s.Select()
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Name() != "dummy" {
		t.Fatalf("expected fallback to dummy, got %s", p.Name())
	}
	if opts.MaxTokens != 256 || opts.Temperature != 0.8 {
		t.Fatalf("options not carried: %+v", opts)
	}
}

func TestSelectorEmptyRegistry(t *testing.T) {
	s := NewSelector(NewRegistry(), &config.Config{LLMDefaultProvider: "ark"})
	if _, _, err := s.Select(); err == nil {
		t.Fatal("empty registry must error")
	}
}
