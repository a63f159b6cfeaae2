// =============================================================================
// 🔧 引擎装配
// =============================================================================
// 从配置构建检索增强生成引擎的全部组件
// =============================================================================
package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satdecisions/satrag/chat"
	"github.com/satdecisions/satrag/config"
	"github.com/satdecisions/satrag/embedding"
	"github.com/satdecisions/satrag/generation"
	"github.com/satdecisions/satrag/internal/cache"
	"github.com/satdecisions/satrag/internal/database"
	"github.com/satdecisions/satrag/internal/metrics"
	"github.com/satdecisions/satrag/internal/telemetry"
	"github.com/satdecisions/satrag/llm"
	"github.com/satdecisions/satrag/llm/factory"
	"github.com/satdecisions/satrag/rag"
)

// engine 持有装配好的全套组件与需要在退出时关闭的资源。
type engine struct {
	cfg          *config.Config
	logger       *zap.Logger
	embedder     embedding.Provider
	retrieval    *rag.Service
	orchestrator *generation.Orchestrator
	chat         *chat.Service

	cacheManager *cache.Manager
	tracing      *telemetry.Providers
}

// newEngine 按配置优先级（默认值 < 文件 < 环境变量）加载配置并完成装配。
func newEngine(configPath string) (*engine, error) {
	loader := config.NewLoader().WithValidator((*config.Config).Validate)
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	eng := &engine{cfg: cfg, logger: logger}

	eng.tracing, err = telemetry.Init(telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRate:   cfg.Telemetry.SampleRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	collector := metrics.NewCollector("satrag", logger)

	db, err := database.Open(database.Config{
		DSN:             cfg.Database.DSN(),
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := rag.NewPgVectorStore(db, logger)

	var reranker rag.CrossEncoder
	if cfg.Reranker.Enabled {
		reranker = rag.SharedCrossEncoder(rag.RerankerConfig{
			BaseURL: cfg.Reranker.BaseURL,
			Model:   cfg.Reranker.Model,
			Timeout: cfg.Reranker.Timeout,
		}, logger)
	}

	eng.retrieval = rag.NewService(store, reranker, collector, logger).
		WithCandidateMultiplier(cfg.Retrieval.CandidateMultiplier)

	eng.embedder = embedding.NewHTTPProvider(embedding.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		MaxBatch:  cfg.Embedding.MaxBatch,
		Timeout:   cfg.Embedding.Timeout,
	}, logger)

	var history chat.HistoryStore
	if cfg.Embedding.CacheEnabled {
		eng.cacheManager, err = cache.NewManager(cache.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DefaultTTL:   cfg.Redis.DefaultTTL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		eng.embedder = embedding.NewCachedProvider(eng.embedder, eng.cacheManager, collector, logger)
		history = chat.NewRedisHistory(eng.cacheManager, 0)
	}

	providers := factory.New(
		factory.Keys{
			OpenAIKey:        cfg.LLM.OpenAIKey,
			OpenAIBaseURL:    cfg.LLM.OpenAIBaseURL,
			DeepSeekKey:      cfg.LLM.DeepSeekKey,
			DeepSeekBaseURL:  cfg.LLM.DeepSeekBaseURL,
			AnthropicKey:     cfg.LLM.AnthropicKey,
			AnthropicBaseURL: cfg.LLM.AnthropicBaseURL,
		},
		factory.Defaults{
			ChatProvider:      cfg.LLM.ChatProvider,
			ChatModel:         cfg.LLM.ChatModel,
			ArgumentsProvider: cfg.LLM.ArgumentsProvider,
			ArgumentsModel:    cfg.LLM.ArgumentsModel,
			FallbackProvider:  cfg.LLM.FallbackProvider,
			FallbackModel:     cfg.LLM.FallbackModel,
		},
		cfg.LLM.RequestsPerSecond,
		logger,
	)

	composer := generation.NewComposer(cfg.Retrieval.EffectiveContextThreshold())
	opts := llm.Options{
		Temperature: float32(cfg.LLM.Temperature),
		MaxTokens:   cfg.LLM.MaxTokens,
	}

	eng.orchestrator = generation.NewOrchestrator(providers, composer, collector, opts, logger)
	eng.chat = chat.NewService(eng.embedder, eng.retrieval, composer, providers, history,
		collector, cfg.LLM.EnableStreaming, opts, logger)

	return eng, nil
}

// Close 释放引擎占用的连接资源。
func (e *engine) Close() {
	if e.cacheManager != nil {
		if err := e.cacheManager.Close(); err != nil {
			e.logger.Warn("failed to close cache manager", zap.Error(err))
		}
	}
	if e.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.tracing.Shutdown(ctx); err != nil {
			e.logger.Warn("failed to shut down telemetry", zap.Error(err))
		}
	}
	e.logger.Sync()
}

func chatRequest(message, conversationID string) chat.Request {
	return chat.Request{Message: message, ConversationID: conversationID}
}
