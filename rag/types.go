// Package rag 实现裁决语料的向量检索与交叉编码器重排。
// 语料分两级：satdata 表存整案（含理由摘要向量），reasons_chunks 表存
// 理由分块（含分块向量）。检索统一返回 Result 列表，相似度降序。
package rag

import "context"

// Kind 区分检索结果的粒度。
type Kind string

const (
	KindDocument Kind = "document"
	KindChunk    Kind = "chunk"
)

// Result 是一次检索命中，文档与分块共用同一结构。
type Result struct {
	ID         int64  `json:"id"`
	Kind       Kind   `json:"kind"`
	CaseID     int64  `json:"case_id,omitempty"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
	Title      string `json:"case_title"`
	Summary    string `json:"reasons_summary,omitempty"`
	Reasons    string `json:"reasons,omitempty"`
	ChunkText  string `json:"chunk_text,omitempty"`
	Citation   string `json:"citation_number,omitempty"`
	Topic      string `json:"case_topic,omitempty"`
	Catchwords string `json:"catchwords,omitempty"`
	CaseURL    string `json:"case_url,omitempty"`

	// Similarity = 1 - 归一化距离，由存储层计算。
	Similarity float64 `json:"similarity"`

	// RerankScore 为交叉编码器打分（未归一化 logit），仅重排后有效。
	RerankScore float64 `json:"rerank_score,omitempty"`
	Reranked    bool    `json:"reranked,omitempty"`
}

// Text 返回参与重排与提示词拼装的正文：
// 分块用 chunk_text，文档优先用理由摘要，避免整案全文截断。
func (r Result) Text() string {
	if r.Kind == KindChunk && r.ChunkText != "" {
		return r.ChunkText
	}
	if r.Summary != "" {
		return r.Summary
	}
	return r.Reasons
}

// VectorStore 是向量检索后端的统一接口。
// 两个方法都按相似度降序返回至多 limit 条结果。
type VectorStore interface {
	// SearchDocuments 检索整案，topic 为空时不过滤。
	SearchDocuments(ctx context.Context, embedding []float64, limit int, topic string) ([]Result, error)

	// SearchChunks 检索理由分块，caseID 为 0、topic 为空时对应过滤不生效。
	SearchChunks(ctx context.Context, embedding []float64, limit int, caseID int64, topic string) ([]Result, error)
}
