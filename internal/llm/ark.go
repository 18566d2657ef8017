package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/yacciiyao/yoo-growth-buddy/internal/config"
	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
)

// ArkProvider 火山方舟（豆包）提供方。
type ArkProvider struct {
	chatModel model.BaseChatModel
	modelName string
}

// NewArkProvider 创建方舟提供方，凭证缺失时返回错误，
// 调用方据此决定是否回落到 dummy。
func NewArkProvider(ctx context.Context, cfg *config.Config) (*ArkProvider, error) {
	if strings.TrimSpace(cfg.ArkAPIKey) == "" || strings.TrimSpace(cfg.ArkModel) == "" {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL")
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL: cfg.ArkBaseURL,
		Region:  cfg.ArkRegion,
		APIKey:  cfg.ArkAPIKey,
		Model:   cfg.ArkModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}

	return &ArkProvider{chatModel: chatModel, modelName: cfg.ArkModel}, nil
}

func (p *ArkProvider) Name() string { return "ark" }

// Chat 同步生成一条回复。
func (p *ArkProvider) Chat(ctx context.Context, messages []*schema.Message, opts Options) (string, error) {
	start := time.Now()
	defer func() { observability.ObserveLLM(time.Since(start)) }()

	var genOpts []model.Option
	if opts.Temperature > 0 {
		genOpts = append(genOpts, model.WithTemperature(float32(opts.Temperature)))
	}
	if opts.MaxTokens > 0 {
		genOpts = append(genOpts, model.WithMaxTokens(opts.MaxTokens))
	}

	resp, err := p.chatModel.Generate(ctx, messages, genOpts...)
	if err != nil {
		return "", fmt.Errorf("ark chat failed: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
