package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satdecisions/satrag/internal/tlsutil"
)

// Config 持有嵌入服务的连接配置。
type Config struct {
	// BaseURL 指向 text-embeddings-inference 风格的服务。
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Model 仅用于日志与指标标识，服务端已固定加载模型。
	Model string `yaml:"model" json:"model"`

	// Dimension 为向量维度，须与服务端模型一致。
	Dimension int `yaml:"dimension" json:"dimension"`

	// MaxBatch 为单次请求的最大文本数，超出时拆分并发请求。
	MaxBatch int `yaml:"max_batch" json:"max_batch"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig 返回 e5-base-v2 的默认配置。
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8080",
		Model:     "intfloat/e5-base-v2",
		Dimension: 768,
		MaxBatch:  32,
		Timeout:   30 * time.Second,
	}
}

// HTTPProvider 通过 HTTP 调用嵌入服务。
type HTTPProvider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewHTTPProvider(cfg Config, logger *zap.Logger) *HTTPProvider {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 32
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "embedding")),
	}
}

func (p *HTTPProvider) Dimension() int { return p.cfg.Dimension }

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

// post 发送一批文本并解析向量矩阵。
func (p *HTTPProvider) post(ctx context.Context, texts []string) ([][]float64, error) {
	payload, err := json.Marshal(embedRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/embed"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embed call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embed call failed: status=%d body=%s", resp.StatusCode, body)
	}

	var vectors [][]float64
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed response length mismatch: got %d, want %d", len(vectors), len(texts))
	}
	return vectors, nil
}

// Embed 向量化单段查询文本。
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.post(ctx, []string{PrefixQuery(text)})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化。超过 MaxBatch 的输入拆分为多个并发请求，
// 结果按输入顺序拼接。
func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = PrefixQuery(t)
	}

	out := make([][]float64, len(prefixed))
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < len(prefixed); start += p.cfg.MaxBatch {
		end := start + p.cfg.MaxBatch
		if end > len(prefixed) {
			end = len(prefixed)
		}
		start, end := start, end
		g.Go(func() error {
			vectors, err := p.post(gctx, prefixed[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
