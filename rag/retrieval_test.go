package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStore struct {
	documents []Result
	chunks    []Result
	err       error

	lastDocLimit   int
	lastChunkLimit int
}

func (s *stubStore) SearchDocuments(_ context.Context, _ []float64, limit int, _ string) ([]Result, error) {
	s.lastDocLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	if len(s.documents) > limit {
		return s.documents[:limit], nil
	}
	return s.documents, nil
}

func (s *stubStore) SearchChunks(_ context.Context, _ []float64, limit int, _ int64, _ string) ([]Result, error) {
	s.lastChunkLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	if len(s.chunks) > limit {
		return s.chunks[:limit], nil
	}
	return s.chunks, nil
}

type stubEncoder struct {
	scores []float64
	err    error
	pairs  []QueryDocPair
}

func (e *stubEncoder) Score(_ context.Context, pairs []QueryDocPair) ([]float64, error) {
	e.pairs = pairs
	if e.err != nil {
		return nil, e.err
	}
	return e.scores[:len(pairs)], nil
}

func documents(n int) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = Result{
			ID:         int64(i + 1),
			Kind:       KindDocument,
			Summary:    fmt.Sprintf("summary %d", i+1),
			Similarity: 1.0 - float64(i)*0.1,
		}
	}
	return out
}

func TestService_RetrieveDocuments_StoreFailureYieldsEmpty(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	svc := NewService(store, nil, nil, zap.NewNop())

	results := svc.RetrieveDocuments(context.Background(), []float64{1}, 4, "")
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestService_RetrieveDocumentsReranked_OverFetchesAndReorders(t *testing.T) {
	store := &stubStore{documents: documents(6)}
	// Reverse the similarity order: the last candidate scores highest.
	encoder := &stubEncoder{scores: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}}
	svc := NewService(store, encoder, nil, zap.NewNop())

	results := svc.RetrieveDocumentsReranked(context.Background(), []float64{1}, "query", 3, "")

	// limit 3 with multiplier 2 over-fetches 6 candidates.
	assert.Equal(t, 6, store.lastDocLimit)
	require.Len(t, results, 3)

	assert.Equal(t, int64(6), results[0].ID)
	assert.Equal(t, int64(5), results[1].ID)
	assert.Equal(t, int64(4), results[2].ID)
	for _, r := range results {
		assert.True(t, r.Reranked)
	}
	// Rerank scores strictly descending.
	assert.Greater(t, results[0].RerankScore, results[1].RerankScore)
	assert.Greater(t, results[1].RerankScore, results[2].RerankScore)
}

func TestService_RetrieveDocumentsReranked_PairsUseDocumentText(t *testing.T) {
	store := &stubStore{documents: documents(2)}
	encoder := &stubEncoder{scores: []float64{0.2, 0.1}}
	svc := NewService(store, encoder, nil, zap.NewNop())

	svc.RetrieveDocumentsReranked(context.Background(), []float64{1}, "my query", 1, "")

	require.Len(t, encoder.pairs, 2)
	assert.Equal(t, "my query", encoder.pairs[0].Query)
	assert.Equal(t, "summary 1", encoder.pairs[0].Doc)
}

func TestService_RetrieveDocumentsReranked_RerankFailureFallsBack(t *testing.T) {
	store := &stubStore{documents: documents(6)}
	encoder := &stubEncoder{err: errors.New("rerank service down")}
	svc := NewService(store, encoder, nil, zap.NewNop())

	results := svc.RetrieveDocumentsReranked(context.Background(), []float64{1}, "query", 3, "")

	// Similarity order preserved, truncated to limit.
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Equal(t, int64(3), results[2].ID)
	for _, r := range results {
		assert.False(t, r.Reranked)
	}
}

func TestService_RetrieveDocumentsReranked_NilRerankerDegrades(t *testing.T) {
	store := &stubStore{documents: documents(6)}
	svc := NewService(store, nil, nil, zap.NewNop())

	results := svc.RetrieveDocumentsReranked(context.Background(), []float64{1}, "query", 3, "")
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestService_RetrieveChunksReranked_UsesChunkText(t *testing.T) {
	store := &stubStore{chunks: []Result{
		{ID: 1, Kind: KindChunk, ChunkText: "first chunk", Similarity: 0.9},
		{ID: 2, Kind: KindChunk, ChunkText: "second chunk", Similarity: 0.8},
	}}
	encoder := &stubEncoder{scores: []float64{-1.0, 2.5}}
	svc := NewService(store, encoder, nil, zap.NewNop())

	results := svc.RetrieveChunksReranked(context.Background(), []float64{1}, "q", 1, 0, "")

	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
	assert.Equal(t, "first chunk", encoder.pairs[0].Doc)
}

func TestService_DefaultLimit(t *testing.T) {
	store := &stubStore{documents: documents(2)}
	svc := NewService(store, nil, nil, zap.NewNop())

	svc.RetrieveDocuments(context.Background(), []float64{1}, 0, "")
	assert.Equal(t, DefaultLimit, store.lastDocLimit)

	svc.RetrieveDocumentsReranked(context.Background(), []float64{1}, "q", 0, "")
	assert.Equal(t, DefaultLimit*DefaultCandidateMultiplier, store.lastDocLimit)
}
