package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ====== 内存向量存储（用于测试和离线场景）======

type memoryEntry struct {
	result    Result
	embedding []float64
}

// MemoryStore 内存向量存储，余弦相似度全量扫描。
type MemoryStore struct {
	documents []memoryEntry
	chunks    []memoryEntry
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewMemoryStore 创建内存向量存储
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{logger: logger}
}

// AddDocument 添加整案及其摘要向量。
func (s *MemoryStore) AddDocument(doc Result, embedding []float64) error {
	if len(embedding) == 0 {
		return fmt.Errorf("document %d has no embedding", doc.ID)
	}
	doc.Kind = KindDocument

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, memoryEntry{result: doc, embedding: embedding})
	return nil
}

// AddChunk 添加理由分块及其向量。
func (s *MemoryStore) AddChunk(chunk Result, embedding []float64) error {
	if len(embedding) == 0 {
		return fmt.Errorf("chunk %d has no embedding", chunk.ID)
	}
	chunk.Kind = KindChunk

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, memoryEntry{result: chunk, embedding: embedding})
	return nil
}

func (s *MemoryStore) SearchDocuments(_ context.Context, embedding []float64, limit int, topic string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scan(s.documents, embedding, limit, func(r Result) bool {
		return topic == "" || r.Topic == topic
	}), nil
}

func (s *MemoryStore) SearchChunks(_ context.Context, embedding []float64, limit int, caseID int64, topic string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scan(s.chunks, embedding, limit, func(r Result) bool {
		if caseID != 0 && r.CaseID != caseID {
			return false
		}
		return topic == "" || r.Topic == topic
	}), nil
}

// scan 全量计算余弦相似度，过滤后按相似度降序截断。
func scan(entries []memoryEntry, embedding []float64, limit int, keep func(Result) bool) []Result {
	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		if !keep(e.result) {
			continue
		}
		r := e.result
		r.Similarity = cosineSimilarity(embedding, e.embedding)
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// cosineSimilarity 计算余弦相似度，维度不一致或零向量时返回 0。
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
