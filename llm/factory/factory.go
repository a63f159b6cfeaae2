// Package factory 负责把 (provider, model) 配置解析为具体的 llm.Provider。
// 解析顺序：显式指定 → 模型名前缀推断 → 按用途的配置默认值；
// 无法识别的 provider 一律路由到 DummyProvider，保证离线可运行。
package factory

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satdecisions/satrag/llm"
	"github.com/satdecisions/satrag/llm/providers/anthropic"
	"github.com/satdecisions/satrag/llm/providers/deepseek"
	"github.com/satdecisions/satrag/llm/providers/openai"
)

// Purpose 区分聊天与论证构建两条生成链路的默认模型。
type Purpose int

const (
	PurposeChat Purpose = iota
	PurposeArguments
)

// Keys 保存各上游的 API 密钥与可选的 BaseURL 覆盖。
type Keys struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	DeepSeekKey      string
	DeepSeekBaseURL  string
	AnthropicKey     string
	AnthropicBaseURL string
}

// Defaults 保存按用途的 provider/model 默认值与降级目标。
type Defaults struct {
	ChatProvider      string
	ChatModel         string
	ArgumentsProvider string
	ArgumentsModel    string
	FallbackProvider  string
	FallbackModel     string
}

type Factory struct {
	keys     Keys
	defaults Defaults
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New 创建 Provider 工厂。rps <= 0 时不限流。
func New(keys Keys, defaults Defaults, rps float64, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Factory{keys: keys, defaults: defaults, limiter: limiter, logger: logger}
}

// inferProvider 根据模型名前缀推断 provider，识别不了时返回空串。
func inferProvider(model string) string {
	switch {
	case strings.HasPrefix(model, "claude-"):
		return "anthropic"
	case strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "text-davinci"):
		return "openai"
	case strings.HasPrefix(model, "deepseek-"):
		return "deepseek"
	default:
		return ""
	}
}

// Provider 解析出一个可用的 llm.Provider。
// 显式给出的模型名永远保留，缺失的 provider 按前缀推断后
// 再落到按用途的默认值；两者都缺时 model 也取用途默认。
// 只给 provider 不给 model 时由适配器自身的默认模型兜底。
func (f *Factory) Provider(provider, model string, purpose Purpose) llm.Provider {
	if provider == "" && model != "" {
		provider = inferProvider(model)
	}
	if provider == "" {
		switch purpose {
		case PurposeArguments:
			provider = f.defaults.ArgumentsProvider
			if model == "" {
				model = f.defaults.ArgumentsModel
			}
		default:
			provider = f.defaults.ChatProvider
			if model == "" {
				model = f.defaults.ChatModel
			}
		}
	}
	return f.build(provider, model)
}

// Fallback 返回降级目标 Provider。
func (f *Factory) Fallback() llm.Provider {
	return f.build(f.defaults.FallbackProvider, f.defaults.FallbackModel)
}

// FallbackModel 返回降级目标的模型名，供 token 统计重算使用。
func (f *Factory) FallbackModel() string {
	return f.defaults.FallbackModel
}

func (f *Factory) build(provider, model string) llm.Provider {
	switch strings.ToLower(provider) {
	case "openai":
		return openai.New(f.keys.OpenAIKey, model, f.keys.OpenAIBaseURL, f.limiter, f.logger)
	case "deepseek":
		return deepseek.New(f.keys.DeepSeekKey, model, f.keys.DeepSeekBaseURL, f.limiter, f.logger)
	case "anthropic":
		return anthropic.New(f.keys.AnthropicKey, model, f.keys.AnthropicBaseURL, f.limiter, f.logger)
	default:
		f.logger.Warn("unknown provider, using dummy",
			zap.String("provider", provider),
			zap.String("model", model))
		return llm.NewDummyProvider(model)
	}
}
