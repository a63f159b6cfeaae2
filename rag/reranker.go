package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satdecisions/satrag/internal/tlsutil"
)

// QueryDocPair 是交叉编码器的一个打分对。
type QueryDocPair struct {
	Query string `json:"query"`
	Doc   string `json:"doc"`
}

// CrossEncoder 对 (query, doc) 对打分，返回与 pairs 等长的未归一化分数。
type CrossEncoder interface {
	Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error)
}

// RerankerConfig 持有重排服务的连接配置。
type RerankerConfig struct {
	// BaseURL 指向 text-embeddings-inference 风格的 /rerank 服务。
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Model 仅用于标识，服务端已固定加载模型。
	Model string `yaml:"model" json:"model"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultRerankerConfig 返回 ms-marco-MiniLM 的默认配置。
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		BaseURL: "http://localhost:8081",
		Model:   "cross-encoder/ms-marco-MiniLM-L-6-v2",
		Timeout: 30 * time.Second,
	}
}

// HTTPCrossEncoder 通过 HTTP 调用交叉编码器服务。
type HTTPCrossEncoder struct {
	cfg    RerankerConfig
	client *http.Client
	logger *zap.Logger
}

func NewHTTPCrossEncoder(cfg RerankerConfig, logger *zap.Logger) *HTTPCrossEncoder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPCrossEncoder{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "reranker")),
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score 对打分对逐查询分组请求服务端，结果与 pairs 顺序对齐。
func (e *HTTPCrossEncoder) Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error) {
	if len(pairs) == 0 {
		return []float64{}, nil
	}

	scores := make([]float64, len(pairs))

	// 同一查询的对合并为一个请求
	byQuery := make(map[string][]int)
	order := make([]string, 0, 2)
	for i, pair := range pairs {
		if _, seen := byQuery[pair.Query]; !seen {
			order = append(order, pair.Query)
		}
		byQuery[pair.Query] = append(byQuery[pair.Query], i)
	}

	for _, query := range order {
		indices := byQuery[query]
		texts := make([]string, len(indices))
		for j, idx := range indices {
			texts[j] = pairs[idx].Doc
		}

		results, err := e.rerank(ctx, query, texts)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r.Index < 0 || r.Index >= len(indices) {
				return nil, fmt.Errorf("rerank result index %d out of range", r.Index)
			}
			scores[indices[r.Index]] = r.Score
		}
	}

	return scores, nil
}

func (e *HTTPCrossEncoder) rerank(ctx context.Context, query string, texts []string) ([]rerankResult, error) {
	payload, err := json.Marshal(rerankRequest{Query: query, Texts: texts, RawScores: true})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/rerank"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rerank call failed: status=%d body=%s", resp.StatusCode, body)
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("rerank response length mismatch: got %d, want %d", len(results), len(texts))
	}
	return results, nil
}

// 进程级共享实例，按需懒加载；模型名变化时重建。
var (
	sharedEncoderMu    sync.Mutex
	sharedEncoder      *HTTPCrossEncoder
	sharedEncoderModel string
)

// SharedCrossEncoder 返回进程级共享的交叉编码器实例。
func SharedCrossEncoder(cfg RerankerConfig, logger *zap.Logger) *HTTPCrossEncoder {
	sharedEncoderMu.Lock()
	defer sharedEncoderMu.Unlock()

	if sharedEncoder == nil || sharedEncoderModel != cfg.Model {
		sharedEncoder = NewHTTPCrossEncoder(cfg, logger)
		sharedEncoderModel = cfg.Model
	}
	return sharedEncoder
}
