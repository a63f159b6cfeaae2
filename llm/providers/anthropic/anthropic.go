// =============================================================================
// Anthropic Claude Provider
// =============================================================================
// Claude 的 Messages API 与 OpenAI 兼容接口有几处关键差异：
// 1. 认证使用 x-api-key 请求头而非 Bearer Token
// 2. max_tokens 为必填字段
// 3. 流式事件为 event/data 对（content_block_delta 携带文本增量）
// =============================================================================

package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satdecisions/satrag/internal/tlsutil"
	"github.com/satdecisions/satrag/llm"
	"github.com/satdecisions/satrag/llm/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	defaultModel   = "claude-3-7-sonnet-20250219"

	// Claude 要求必须提供 max_tokens
	defaultMaxTokens = 4096
)

type claudeMessage struct {
	Role    string          `json:"role"` // user 或 assistant
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"` // text
	Text string `json:"text,omitempty"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Content    []claudeContent `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Usage      *claudeUsage    `json:"usage,omitempty"`
}

// 流式响应的事件类型
type claudeStreamEvent struct {
	Type  string       `json:"type"` // message_start, content_block_delta, message_stop...
	Index int          `json:"index,omitempty"`
	Delta *claudeDelta `json:"delta,omitempty"`
}

type claudeDelta struct {
	Type       string `json:"type"` // text_delta
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// Provider 适配 Anthropic Messages API。
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	limiter *rate.Limiter
	client  *http.Client
	logger  *zap.Logger
}

func New(apiKey, model, baseURL string, limiter *rate.Limiter, logger *zap.Logger) *Provider {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		limiter: limiter,
		client:  tlsutil.SecureHTTPClient(120 * time.Second),
		logger:  logger,
	}
}

func (p *Provider) Name() string { return "anthropic/" + p.model }

func (p *Provider) buildHeaders(req *http.Request) {
	// Claude 使用 x-api-key 认证
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
}

func (p *Provider) post(ctx context.Context, prompt string, opts llm.Options, stream bool) (*http.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, providers.MapTransportError(err, p.Name())
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	body := claudeRequest{
		Model: p.model,
		Messages: []claudeMessage{{
			Role:    "user",
			Content: []claudeContent{{Type: "text", Text: prompt}},
		}},
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
		Stream:      stream,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.baseURL, "/")+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.MapTransportError(err, p.Name())
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return resp, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	resp, err := p.post(ctx, prompt, opts, false)
	if err != nil {
		p.logger.Warn("completion failed", zap.String("provider", p.Name()), zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	var sb strings.Builder
	for _, c := range cr.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &llm.Error{
			Code: llm.ErrUpstreamError, Message: "empty completion response",
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	return sb.String(), nil
}

func (p *Provider) GenerateStream(ctx context.Context, prompt string, opts llm.Options, onChunk llm.ChunkFunc) error {
	resp, err := p.post(ctx, prompt, opts, true)
	if err != nil {
		p.logger.Warn("stream start failed", zap.String("provider", p.Name()), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if err := scanEvents(resp.Body, onChunk); err != nil {
		le := providers.MapTransportError(err, p.Name())
		onChunk("\n\n" + llm.ErrorText(le))
		return le
	}
	return nil
}

// scanEvents 解析 Claude SSE 流（event: <type>\ndata: <json> 对），
// 只转发 content_block_delta 的文本增量。
func scanEvents(body io.Reader, onChunk llm.ChunkFunc) error {
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "event:") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var event claudeStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return fmt.Errorf("decode stream event: %w", err)
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" {
				onChunk(event.Delta.Text)
			}
		case "message_stop":
			return nil
		}
	}
}
