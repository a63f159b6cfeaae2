// Package embedding 将文本映射为稠密向量，供检索层做相似度搜索。
// 默认模型为 e5-base-v2（768 维），遵循 e5 的 "query: " / "passage: "
// 前缀约定。
package embedding

import (
	"context"
	"strings"
)

// Provider 是统一的向量化接口，输出为普通 float64 切片。
type Provider interface {
	// Embed 向量化单段文本。
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch 批量向量化，结果与输入等长且顺序一致。
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimension 返回向量维度。
	Dimension() int
}

const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

// PrefixQuery 为查询文本添加 e5 前缀，已带前缀时原样返回。
func PrefixQuery(text string) string {
	if strings.HasPrefix(text, queryPrefix) || strings.HasPrefix(text, passagePrefix) {
		return text
	}
	return queryPrefix + text
}

// PrefixPassage 为文档文本添加 e5 前缀，已带前缀时原样返回。
func PrefixPassage(text string) string {
	if strings.HasPrefix(text, queryPrefix) || strings.HasPrefix(text, passagePrefix) {
		return text
	}
	return passagePrefix + text
}
