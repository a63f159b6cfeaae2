// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 指标收集器
type Collector struct {
	// 检索指标
	retrievalsTotal   *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
	rerankFallbacks   *prometheus.CounterVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec
	llmFallbacksTotal  *prometheus.CounterVec

	// 推理链指标
	reasoningStepsTotal  *prometheus.CounterVec
	reasoningRunDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 检索指标
	c.retrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Total number of retrieval calls",
		},
		[]string{"kind", "reranked", "status"}, // kind: document, chunk
	)

	c.retrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	c.rerankFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_fallbacks_total",
			Help:      "Retrievals that fell back to similarity order after a rerank failure",
		},
		[]string{"kind"},
	)

	// LLM 指标
	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "type"}, // type: prompt, completion
	)

	c.llmFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_fallbacks_total",
			Help:      "Generation calls that switched to the fallback provider",
		},
		[]string{"from", "to"},
	)

	// 推理链指标
	c.reasoningStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_steps_total",
			Help:      "Total number of reasoning steps executed",
		},
		[]string{"step", "status"},
	)

	c.reasoningRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoning_run_duration_seconds",
			Help:      "Full reasoning-chain duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"}, // mode: single_call, multi_step
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordRetrieval 记录一次检索调用
func (c *Collector) RecordRetrieval(kind string, reranked bool, status string, duration time.Duration) {
	rerankedLabel := "false"
	if reranked {
		rerankedLabel = "true"
	}
	c.retrievalsTotal.WithLabelValues(kind, rerankedLabel, status).Inc()
	c.retrievalDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRerankFallback 记录一次重排失败降级
func (c *Collector) RecordRerankFallback(kind string) {
	c.rerankFallbacks.WithLabelValues(kind).Inc()
}

// RecordLLMRequest 记录 LLM 请求
func (c *Collector) RecordLLMRequest(provider, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, "completion").Add(float64(completionTokens))
}

// RecordLLMFallback 记录一次降级切换
func (c *Collector) RecordLLMFallback(from, to string) {
	c.llmFallbacksTotal.WithLabelValues(from, to).Inc()
}

// RecordReasoningStep 记录推理步骤执行
func (c *Collector) RecordReasoningStep(step, status string) {
	c.reasoningStepsTotal.WithLabelValues(step, status).Inc()
}

// RecordReasoningRun 记录完整推理链耗时
func (c *Collector) RecordReasoningRun(mode string, duration time.Duration) {
	c.reasoningRunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}
