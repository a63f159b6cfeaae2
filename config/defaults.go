// =============================================================================
// 📦 satrag 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Retrieval: DefaultRetrievalConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Reranker:  DefaultRerankerConfig(),
		LLM:       DefaultLLMConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		RelevanceThreshold:  0.5,
		ContextThreshold:    0, // 默认取 RelevanceThreshold 的一半
		CandidateMultiplier: 2,
	}
}

// DefaultEmbeddingConfig 返回默认向量化配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL:      "http://localhost:8080",
		Model:        "intfloat/e5-base-v2",
		Dimension:    768,
		MaxBatch:     32,
		Timeout:      30 * time.Second,
		CacheEnabled: false,
	}
}

// DefaultRerankerConfig 返回默认重排配置
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		Enabled: false,
		BaseURL: "http://localhost:8081",
		Model:   "cross-encoder/ms-marco-MiniLM-L-6-v2",
		Timeout: 30 * time.Second,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		ChatProvider:      "openai",
		ChatModel:         "gpt-4o",
		ArgumentsProvider: "deepseek",
		ArgumentsModel:    "deepseek-reasoner",
		FallbackProvider:  "anthropic",
		FallbackModel:     "claude-3-7-sonnet-20250219",
		Temperature:       0.2,
		MaxTokens:         4096,
		EnableStreaming:   true,
		RequestsPerSecond: 0,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "",
		Name:            "satdata",
		SSLMode:         "disable",
		MaxOpenConns:    50,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DefaultTTL:   24 * time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "satrag",
		SampleRate:   1.0,
	}
}
