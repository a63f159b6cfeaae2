// Package openai 适配 OpenAI Chat Completions API。
package openai

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satdecisions/satrag/llm/providers/openaicompat"
)

const defaultBaseURL = "https://api.openai.com"

// New 创建 OpenAI Provider，model 为空时使用 gpt-4o。
func New(apiKey, model, baseURL string, limiter *rate.Limiter, logger *zap.Logger) *openaicompat.Provider {
	if model == "" {
		model = "gpt-4o"
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return openaicompat.New(openaicompat.Config{
		ProviderName: "openai",
		APIKey:       apiKey,
		BaseURL:      baseURL,
		Model:        model,
		Limiter:      limiter,
	}, logger)
}
