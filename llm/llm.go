// Package llm 定义统一的大模型生成接口与错误模型。
// 各 Provider 适配器（openai/deepseek/anthropic）实现本包接口，
// 上层编排器只面向接口做降级与指标统计。
package llm

import "context"

// Options 控制单次生成的采样参数，零值字段使用 Provider 默认值。
type Options struct {
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ChunkFunc 按生成顺序接收流式输出的文本增量。
type ChunkFunc func(text string)

// Provider 定义统一的 LLM 适配接口。
// Name 返回 "provider/model" 形式的标识，用于日志与指标维度。
type Provider interface {
	// Generate 发起同步生成请求，返回完整文本。
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// GenerateStream 发起流式生成请求，增量通过 onChunk 回调交付。
	// 中途失败时会先通过回调送出一段错误文案，再返回对应的 *Error。
	GenerateStream(ctx context.Context, prompt string, opts Options, onChunk ChunkFunc) error

	// Name 返回 Provider 的唯一标识。
	Name() string
}
