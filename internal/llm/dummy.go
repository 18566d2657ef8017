package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// DummyProvider 本地调试用，不依赖任何外部服务。
// 复读最近一条用户消息，保证链路在没有真实模型时也能跑通。
type DummyProvider struct{}

func NewDummyProvider() *DummyProvider { return &DummyProvider{} }

func (p *DummyProvider) Name() string { return "dummy" }

func (p *DummyProvider) Chat(_ context.Context, messages []*schema.Message, _ Options) (string, error) {
	var lastUser string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == schema.User {
			lastUser = messages[i].Content
			break
		}
	}

	if strings.TrimSpace(lastUser) == "" {
		return "小悠在这里，随时可以听你说话。", nil
	}
	return fmt.Sprintf("小悠听到了，你刚才说的是「%s」。小悠觉得你很认真，也很愿意继续听你分享。", lastUser), nil
}
