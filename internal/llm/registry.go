package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yacciiyao/yoo-growth-buddy/internal/config"
	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
)

// Registry 管理可用 Provider 的注册表。
type Registry struct {
	providers map[string]Provider
}

// NewRegistry 用给定 provider 集合构建注册表。
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// BuildDefaultRegistry 构建默认注册表：dummy 始终可用，
// 方舟凭证齐全时再注册 ark。
func BuildDefaultRegistry(ctx context.Context, cfg *config.Config) *Registry {
	log := observability.ComponentLogger("llm")

	providers := []Provider{NewDummyProvider()}

	arkProvider, err := NewArkProvider(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("方舟 provider 未启用，仅保留 dummy")
	} else {
		providers = append(providers, arkProvider)
	}

	return NewRegistry(providers...)
}

// Get 按名称取 provider。
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("未注册的 LLM provider: %s", name)
	}
	return p, nil
}

// Available 返回已注册的 provider 名称，按字典序。
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Selector 按配置从注册表里选出本轮要用的 provider 和生成参数。
type Selector struct {
	registry    *Registry
	defaultName string
	opts        Options
}

// NewSelector 创建选择器。
func NewSelector(registry *Registry, cfg *config.Config) *Selector {
	return &Selector{
		registry:    registry,
		defaultName: strings.ToLower(strings.TrimSpace(cfg.LLMDefaultProvider)),
		opts: Options{
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		},
	}
}

// Select 选出可用的 provider：优先默认配置，缺席时回落 dummy，
// 再不行就取字典序第一个。
func (s *Selector) Select() (Provider, Options, error) {
	name := s.defaultName
	if name == "" {
		name = "dummy"
	}

	if p, err := s.registry.Get(name); err == nil {
		return p, s.opts, nil
	}
	if p, err := s.registry.Get("dummy"); err == nil {
		return p, s.opts, nil
	}

	available := s.registry.Available()
	if len(available) == 0 {
		return nil, Options{}, fmt.Errorf("没有可用的大模型 provider")
	}
	p, err := s.registry.Get(available[0])
	if err != nil {
		return nil, Options{}, err
	}
	return p, s.opts, nil
}
