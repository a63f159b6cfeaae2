// Package tokenizer 提供统一的 Token 计数接口，
// 支持 OpenAI 家族的 tiktoken 精确计数与其他模型的按词估算，
// 仅用于生成指标统计，不做请求预算裁剪。
package tokenizer
