// =============================================================================
// OpenAI-Compatible Provider Base
// =============================================================================
// Shared implementation for all OpenAI-compatible chat providers.
// OpenAI and DeepSeek embed this and only override what differs
// (name, base URL, default model, headers).
// =============================================================================

package openaicompat

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

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier for this provider (e.g., "openai", "deepseek").
	ProviderName string

	// APIKey is the authentication key for the provider's API.
	APIKey string

	// BaseURL is the base URL for the provider's API.
	BaseURL string

	// Model is the model requested on every call.
	Model string

	// Timeout is the HTTP client timeout. Defaults to 120s if zero;
	// reasoning models routinely take over a minute per step.
	Timeout time.Duration

	// EndpointPath is the chat completions endpoint path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// BuildHeaders is an optional function to set custom headers on each request.
	// If nil, the default "Authorization: Bearer <apiKey>" header is used.
	BuildHeaders func(req *http.Request, apiKey string)

	// RequestHook is an optional function to modify the request body before sending.
	RequestHook func(body *providers.OpenAICompatRequest)

	// Limiter optionally throttles outbound requests across calls.
	Limiter *rate.Limiter
}

// Provider is the base implementation for all OpenAI-compatible chat providers.
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: tlsutil.SecureHTTPClient(timeout),
		Logger: logger,
	}
}

// Name returns the "provider/model" identifier.
func (p *Provider) Name() string {
	return p.Cfg.ProviderName + "/" + p.Cfg.Model
}

// buildHeaders applies headers to the HTTP request.
func (p *Provider) buildHeaders(req *http.Request) {
	if p.Cfg.BuildHeaders != nil {
		p.Cfg.BuildHeaders(req, p.Cfg.APIKey)
		return
	}
	providers.BearerTokenHeaders(req, p.Cfg.APIKey)
}

func (p *Provider) endpoint() string {
	return strings.TrimRight(p.Cfg.BaseURL, "/") + p.Cfg.EndpointPath
}

func (p *Provider) wait(ctx context.Context) error {
	if p.Cfg.Limiter == nil {
		return nil
	}
	if err := p.Cfg.Limiter.Wait(ctx); err != nil {
		return providers.MapTransportError(err, p.Name())
	}
	return nil
}

// post marshals the body and performs the HTTP call; the caller owns the response.
func (p *Provider) post(ctx context.Context, body providers.OpenAICompatRequest) (*http.Response, error) {
	if p.Cfg.RequestHook != nil {
		p.Cfg.RequestHook(&body)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.Client.Do(httpReq)
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

func (p *Provider) request(prompt string, opts llm.Options, stream bool) providers.OpenAICompatRequest {
	return providers.OpenAICompatRequest{
		Model:       p.Cfg.Model,
		Messages:    []providers.OpenAICompatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      stream,
	}
}

// Generate 发起同步生成请求.
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}

	resp, err := p.post(ctx, p.request(prompt, opts, false))
	if err != nil {
		p.Logger.Warn("completion failed",
			zap.String("provider", p.Name()),
			zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	var oaResp providers.OpenAICompatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return "", &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	if len(oaResp.Choices) == 0 || oaResp.Choices[0].Message == nil {
		return "", &llm.Error{
			Code: llm.ErrUpstreamError, Message: "empty completion response",
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	return oaResp.Choices[0].Message.Content, nil
}

// GenerateStream 发起流式生成请求，增量按序交付给 onChunk。
// 中途失败时先通过回调送出错误文案，再返回对应的 *Error。
func (p *Provider) GenerateStream(ctx context.Context, prompt string, opts llm.Options, onChunk llm.ChunkFunc) error {
	if err := p.wait(ctx); err != nil {
		return err
	}

	resp, err := p.post(ctx, p.request(prompt, opts, true))
	if err != nil {
		p.Logger.Warn("stream start failed",
			zap.String("provider", p.Name()),
			zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if err := scanSSE(resp.Body, onChunk); err != nil {
		le := providers.MapTransportError(err, p.Name())
		onChunk("\n\n" + llm.ErrorText(le))
		return le
	}
	return nil
}

// scanSSE parses an OpenAI-style SSE stream and forwards content deltas.
func scanSSE(body io.Reader, onChunk llm.ChunkFunc) error {
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
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}

		var oaResp providers.OpenAICompatResponse
		if err := json.Unmarshal([]byte(data), &oaResp); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		for _, choice := range oaResp.Choices {
			if choice.Delta != nil && choice.Delta.Content != "" {
				onChunk(choice.Delta.Content)
			}
		}
	}
}
