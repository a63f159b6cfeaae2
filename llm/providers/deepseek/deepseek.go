// Package deepseek 适配 DeepSeek Chat API（OpenAI 兼容）。
package deepseek

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satdecisions/satrag/llm/providers/openaicompat"
)

const defaultBaseURL = "https://api.deepseek.com"

// New 创建 DeepSeek Provider，model 为空时使用 deepseek-reasoner。
func New(apiKey, model, baseURL string, limiter *rate.Limiter, logger *zap.Logger) *openaicompat.Provider {
	if model == "" {
		model = "deepseek-reasoner"
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return openaicompat.New(openaicompat.Config{
		ProviderName: "deepseek",
		APIKey:       apiKey,
		BaseURL:      baseURL,
		Model:        model,
		EndpointPath: "/chat/completions",
		Limiter:      limiter,
	}, logger)
}
