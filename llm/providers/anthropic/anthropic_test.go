package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satdecisions/satrag/llm"
)

func newTestProvider(baseURL string) *Provider {
	return New("sk-ant-test", "claude-3-7-sonnet-20250219", baseURL, nil, zap.NewNop())
}

func TestGenerate(t *testing.T) {
	var captured claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(claudeResponse{
			Content: []claudeContent{
				{Type: "text", Text: "Dear "},
				{Type: "text", Text: "tribunal"},
			},
		})
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	out, err := p.Generate(context.Background(), "draft a letter", llm.Options{MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "Dear tribunal", out)

	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "draft a letter", captured.Messages[0].Content[0].Text)
	assert.Equal(t, 256, captured.MaxTokens)
}

func TestGenerateDefaultsMaxTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultMaxTokens, req.MaxTokens)

		json.NewEncoder(w).Encode(claudeResponse{Content: []claudeContent{{Type: "text", Text: "ok"}}})
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.Generate(context.Background(), "hi", llm.Options{})
	require.NoError(t, err)
}

func TestGenerateMapsOverloaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		fmt.Fprint(w, `{"error":{"message":"Overloaded"}}`)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.Generate(context.Background(), "hi", llm.Options{})

	le, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrModelOverloaded, le.Code)
	assert.True(t, le.Retryable)
	assert.Equal(t, "anthropic/claude-3-7-sonnet-20250219", le.Provider)
}

func TestGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, "data: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	var sb strings.Builder
	err := p.GenerateStream(context.Background(), "hi", llm.Options{}, func(text string) {
		sb.WriteString(text)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", sb.String())
}

func TestDefaultModelAndName(t *testing.T) {
	p := New("key", "", "", nil, nil)
	assert.Equal(t, "anthropic/"+defaultModel, p.Name())
}
