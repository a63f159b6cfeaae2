package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/satdecisions/satrag/internal/cache"
	"github.com/satdecisions/satrag/internal/metrics"
)

// CachedProvider 在 Provider 外包一层 Redis 缓存。
// 缓存故障只记日志，请求直接落到底层 Provider。
type CachedProvider struct {
	inner     Provider
	cache     *cache.Manager
	collector *metrics.Collector
	logger    *zap.Logger
}

func NewCachedProvider(inner Provider, manager *cache.Manager, collector *metrics.Collector, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		inner:     inner,
		cache:     manager,
		collector: collector,
		logger:    logger.With(zap.String("component", "embedding_cache")),
	}
}

func (p *CachedProvider) Dimension() int { return p.inner.Dimension() }

// cacheKey 以前缀后的文本哈希为键，避免键中出现原文。
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(PrefixQuery(text)))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	key := cacheKey(text)

	var vector []float64
	err := p.cache.GetJSON(ctx, key, &vector)
	if err == nil {
		if p.collector != nil {
			p.collector.RecordCacheHit("embedding")
		}
		return vector, nil
	}
	if !cache.IsCacheMiss(err) {
		p.logger.Warn("embedding cache read failed", zap.Error(err))
	} else if p.collector != nil {
		p.collector.RecordCacheMiss("embedding")
	}

	vector, err = p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := p.cache.SetJSON(ctx, key, vector, 0); err != nil {
		p.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vector, nil
}

// EmbedBatch 不走缓存，批量入库场景每条文本只会出现一次。
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	return p.inner.EmbedBatch(ctx, texts)
}
