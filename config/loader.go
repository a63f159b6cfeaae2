// =============================================================================
// 📦 satrag 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("SATRAG").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 satrag 的完整配置结构
type Config struct {
	// Retrieval 检索与相关性阈值配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Embedding 向量化服务配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Reranker 交叉编码器重排配置
	Reranker RerankerConfig `yaml:"reranker" env:"RERANKER"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Database PostgreSQL/pgvector 配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	// 文档被视为相关的最低相似度
	RelevanceThreshold float64 `yaml:"relevance_threshold" env:"RELEVANCE_THRESHOLD"`
	// 进入提示词上下文的最低相似度；0 表示取 RelevanceThreshold 的一半
	ContextThreshold float64 `yaml:"context_threshold" env:"CONTEXT_THRESHOLD"`
	// 重排前的超采样倍数
	CandidateMultiplier int `yaml:"candidate_multiplier" env:"CANDIDATE_MULTIPLIER"`
}

// EffectiveContextThreshold 返回实际生效的上下文阈值。
func (r RetrievalConfig) EffectiveContextThreshold() float64 {
	if r.ContextThreshold > 0 {
		return r.ContextThreshold
	}
	return r.RelevanceThreshold * 0.5
}

// EmbeddingConfig 向量化服务配置
type EmbeddingConfig struct {
	// 服务地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 向量维度
	Dimension int `yaml:"dimension" env:"DIMENSION"`
	// 单次请求的最大批量
	MaxBatch int `yaml:"max_batch" env:"MAX_BATCH"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 是否启用 Redis 向量缓存
	CacheEnabled bool `yaml:"cache_enabled" env:"CACHE_ENABLED"`
}

// RerankerConfig 重排服务配置
type RerankerConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 服务地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// 各上游 API Key
	OpenAIKey    string `yaml:"openai_key" env:"OPENAI_KEY"`
	DeepSeekKey  string `yaml:"deepseek_key" env:"DEEPSEEK_KEY"`
	AnthropicKey string `yaml:"anthropic_key" env:"ANTHROPIC_KEY"`
	// 各上游 BaseURL 覆盖（可选）
	OpenAIBaseURL    string `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	DeepSeekBaseURL  string `yaml:"deepseek_base_url" env:"DEEPSEEK_BASE_URL"`
	AnthropicBaseURL string `yaml:"anthropic_base_url" env:"ANTHROPIC_BASE_URL"`

	// 聊天链路的默认 provider/model
	ChatProvider string `yaml:"chat_provider" env:"CHAT_PROVIDER"`
	ChatModel    string `yaml:"chat_model" env:"CHAT_MODEL"`
	// 论证链路的默认 provider/model
	ArgumentsProvider string `yaml:"arguments_provider" env:"ARGUMENTS_PROVIDER"`
	ArgumentsModel    string `yaml:"arguments_model" env:"ARGUMENTS_MODEL"`
	// 降级目标
	FallbackProvider string `yaml:"fallback_provider" env:"FALLBACK_PROVIDER"`
	FallbackModel    string `yaml:"fallback_model" env:"FALLBACK_MODEL"`

	// 采样温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 单次生成的最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 是否启用流式输出
	EnableStreaming bool `yaml:"enable_streaming" env:"ENABLE_STREAMING"`
	// 全局限流（每秒请求数），0 表示不限流
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 空闲连接最大存活时间
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 缓存默认 TTL
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SATRAG",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Retrieval.RelevanceThreshold < 0 || c.Retrieval.RelevanceThreshold > 1 {
		errs = append(errs, "relevance_threshold must be between 0 and 1")
	}
	if c.Retrieval.ContextThreshold < 0 || c.Retrieval.ContextThreshold > 1 {
		errs = append(errs, "context_threshold must be between 0 and 1")
	}
	if c.Retrieval.CandidateMultiplier < 1 {
		errs = append(errs, "candidate_multiplier must be positive")
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, "embedding dimension must be positive")
	}
	if c.Embedding.MaxBatch <= 0 {
		errs = append(errs, "embedding max_batch must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, "max_tokens must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
