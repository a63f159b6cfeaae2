package rag

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/satdecisions/satrag/internal/metrics"
)

const (
	// DefaultLimit 为检索默认条数。
	DefaultLimit = 4

	// DefaultCandidateMultiplier 为重排时的超采样倍数。
	DefaultCandidateMultiplier = 2
)

// Service 封装检索策略：向量召回 + 可选的交叉编码器重排。
// 存储层故障降级为空结果，重排故障降级为相似度序，均不向调用方报错。
type Service struct {
	store      VectorStore
	reranker   CrossEncoder
	collector  *metrics.Collector
	logger     *zap.Logger
	multiplier int
}

// NewService 创建检索服务。reranker 与 collector 可为 nil。
func NewService(store VectorStore, reranker CrossEncoder, collector *metrics.Collector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		reranker:   reranker,
		collector:  collector,
		logger:     logger.With(zap.String("component", "retrieval")),
		multiplier: DefaultCandidateMultiplier,
	}
}

// WithCandidateMultiplier 覆盖超采样倍数，非法值回到默认。
func (s *Service) WithCandidateMultiplier(multiplier int) *Service {
	if multiplier < 1 {
		multiplier = DefaultCandidateMultiplier
	}
	s.multiplier = multiplier
	return s
}

// RetrieveDocuments 按相似度检索整案。存储层故障返回空列表。
func (s *Service) RetrieveDocuments(ctx context.Context, embedding []float64, limit int, topic string) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	start := time.Now()

	results, err := s.store.SearchDocuments(ctx, embedding, limit, topic)
	if err != nil {
		s.logger.Error("document retrieval failed", zap.Error(err))
		s.record("document", false, "error", start)
		return []Result{}
	}

	s.logger.Info("retrieved documents", zap.Int("count", len(results)))
	s.record("document", false, "ok", start)
	return results
}

// RetrieveChunks 按相似度检索理由分块。存储层故障返回空列表。
func (s *Service) RetrieveChunks(ctx context.Context, embedding []float64, limit int, caseID int64, topic string) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	start := time.Now()

	results, err := s.store.SearchChunks(ctx, embedding, limit, caseID, topic)
	if err != nil {
		s.logger.Error("chunk retrieval failed", zap.Error(err))
		s.record("chunk", false, "error", start)
		return []Result{}
	}

	s.logger.Info("retrieved chunks", zap.Int("count", len(results)))
	s.record("chunk", false, "ok", start)
	return results
}

// RetrieveDocumentsReranked 超采样 limit×multiplier 个候选，交叉编码器
// 打分后取前 limit 条。重排不可用或失败时返回相似度序的前 limit 条。
func (s *Service) RetrieveDocumentsReranked(ctx context.Context, embedding []float64, queryText string, limit int, topic string) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	start := time.Now()

	candidates, err := s.store.SearchDocuments(ctx, embedding, limit*s.multiplier, topic)
	if err != nil {
		s.logger.Error("document retrieval failed", zap.Error(err))
		s.record("document", true, "error", start)
		return []Result{}
	}

	results := s.rerank(ctx, "document", queryText, candidates, limit)
	s.record("document", true, "ok", start)
	return results
}

// RetrieveChunksReranked 是分块版本的重排检索。
func (s *Service) RetrieveChunksReranked(ctx context.Context, embedding []float64, queryText string, limit int, caseID int64, topic string) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	start := time.Now()

	candidates, err := s.store.SearchChunks(ctx, embedding, limit*s.multiplier, caseID, topic)
	if err != nil {
		s.logger.Error("chunk retrieval failed", zap.Error(err))
		s.record("chunk", true, "error", start)
		return []Result{}
	}

	results := s.rerank(ctx, "chunk", queryText, candidates, limit)
	s.record("chunk", true, "ok", start)
	return results
}

// rerank 打分并重排候选集，任何失败都退回相似度序。
func (s *Service) rerank(ctx context.Context, kind, queryText string, candidates []Result, limit int) []Result {
	if len(candidates) == 0 {
		return []Result{}
	}

	top := func(rs []Result) []Result {
		if len(rs) > limit {
			return rs[:limit]
		}
		return rs
	}

	if s.reranker == nil {
		return top(candidates)
	}

	pairs := make([]QueryDocPair, len(candidates))
	for i, c := range candidates {
		pairs[i] = QueryDocPair{Query: queryText, Doc: c.Text()}
	}

	scores, err := s.reranker.Score(ctx, pairs)
	if err != nil {
		s.logger.Warn("rerank failed, falling back to similarity order",
			zap.String("kind", kind),
			zap.Error(err))
		if s.collector != nil {
			s.collector.RecordRerankFallback(kind)
		}
		return top(candidates)
	}

	reranked := make([]Result, len(candidates))
	copy(reranked, candidates)
	for i := range reranked {
		reranked[i].RerankScore = scores[i]
		reranked[i].Reranked = true
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})

	s.logger.Info("reranked candidates",
		zap.String("kind", kind),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", min(limit, len(reranked))))

	return top(reranked)
}

func (s *Service) record(kind string, reranked bool, status string, start time.Time) {
	if s.collector != nil {
		s.collector.RecordRetrieval(kind, reranked, status, time.Since(start))
	}
}
