package tokenizer

import (
	"strings"
	"sync"
)

// Tokenizer 是统一的 token 计数接口。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// 全局分词器注册表，按模型名前缀匹配。
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// RegisterTokenizer 为给定的模型名称（或前缀）注册分词器.
func RegisterTokenizer(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// lookup 先精确匹配，再取最长的前缀匹配（如 "gpt-4o-mini" 匹配 "gpt-4o"）。
func lookup(model string) (Tokenizer, bool) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, true
	}
	var (
		best    Tokenizer
		matched int
	)
	for prefix, t := range modelTokenizers {
		if strings.HasPrefix(model, prefix) && len(prefix) > matched {
			best, matched = t, len(prefix)
		}
	}
	return best, best != nil
}

// ForModel 返回模型对应的分词器。
// OpenAI 家族走 tiktoken；claude 与 deepseek 走按词估算；
// 其余模型退化为 len/4 估算器。计数只用于指标展示，永不失败。
func ForModel(model string) Tokenizer {
	if t, ok := lookup(model); ok {
		return t
	}
	switch {
	case strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "text-davinci"):
		return NewTiktokenTokenizer(model)
	case strings.HasPrefix(model, "claude"):
		return NewWordTokenizer(model, 1.3)
	case strings.HasPrefix(model, "deepseek"):
		return NewWordTokenizer(model, 1.2)
	default:
		return NewEstimatorTokenizer(model)
	}
}

// CountForModel 是编排层使用的便捷入口：尽力而为，出错时退回估算值。
func CountForModel(model, text string) int {
	n, err := ForModel(model).CountTokens(text)
	if err != nil {
		n, _ = NewEstimatorTokenizer(model).CountTokens(text)
	}
	return n
}
