package llm

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Options 单次生成参数。
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Provider 大模型提供方的统一抽象。
type Provider interface {
	Name() string
	Chat(ctx context.Context, messages []*schema.Message, opts Options) (string, error)
}
