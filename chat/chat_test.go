package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satdecisions/satrag/generation"
	"github.com/satdecisions/satrag/llm"
	"github.com/satdecisions/satrag/llm/factory"
	"github.com/satdecisions/satrag/rag"
)

type stubEmbedder struct {
	vector []float64
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return s.vector, s.err
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, s.err
}

func (s *stubEmbedder) Dimension() int { return len(s.vector) }

type stubChatProvider struct {
	name      string
	output    string
	err       error
	chunks    []string
	streamErr error
	prompts   []string
	streamed  int
}

func (s *stubChatProvider) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

func (s *stubChatProvider) GenerateStream(_ context.Context, prompt string, _ llm.Options, onChunk llm.ChunkFunc) error {
	s.streamed++
	s.prompts = append(s.prompts, prompt)
	for _, c := range s.chunks {
		onChunk(c)
	}
	if s.streamErr != nil {
		onChunk("\n\n" + llm.ErrorText(s.streamErr))
		return s.streamErr
	}
	return nil
}

func (s *stubChatProvider) Name() string { return s.name }

type stubProviderSource struct{ provider llm.Provider }

func (s *stubProviderSource) Provider(_, _ string, _ factory.Purpose) llm.Provider { return s.provider }
func (s *stubProviderSource) Fallback() llm.Provider                               { return s.provider }
func (s *stubProviderSource) FallbackModel() string                                { return "gpt-4o" }

type memoryHistory struct {
	turns map[string][]generation.Turn
	err   error
}

func (m *memoryHistory) History(_ context.Context, id string) ([]generation.Turn, error) {
	return m.turns[id], m.err
}

func (m *memoryHistory) Append(_ context.Context, id string, turns ...generation.Turn) error {
	if m.err != nil {
		return m.err
	}
	if m.turns == nil {
		m.turns = make(map[string][]generation.Turn)
	}
	m.turns[id] = append(m.turns[id], turns...)
	return nil
}

func seededStore(t *testing.T) *rag.MemoryStore {
	t.Helper()
	store := rag.NewMemoryStore(zap.NewNop())
	require.NoError(t, store.AddDocument(rag.Result{
		ID:       1,
		Title:    "Smith v Jones",
		Citation: "2023 WASAT 123",
		CaseURL:  "https://sat.example.com/123",
		Summary:  "Termination notice held defective.",
	}, []float64{1, 0, 0}))
	require.NoError(t, store.AddChunk(rag.Result{
		ID:        2,
		CaseID:    1,
		Title:     "Smith v Jones",
		ChunkText: "The notice period fell short of the statutory minimum.",
	}, []float64{0.9, 0.1, 0}))
	return store
}

func newTestService(t *testing.T, provider llm.Provider, embedder *stubEmbedder, history HistoryStore, streaming bool) *Service {
	t.Helper()
	retrieval := rag.NewService(seededStore(t), nil, nil, zap.NewNop())
	composer := generation.NewComposer(0.25)
	return NewService(embedder, retrieval, composer, &stubProviderSource{provider: provider},
		history, nil, streaming, llm.Options{Temperature: 0.2}, zap.NewNop())
}

func TestRespondHappyPath(t *testing.T) {
	provider := &stubChatProvider{name: "openai/gpt-4o", output: "## Relevant Cases\nSee Smith v Jones."}
	svc := newTestService(t, provider, &stubEmbedder{vector: []float64{1, 0, 0}}, nil, false)

	resp := svc.Respond(context.Background(), Request{Message: "find cases about defective termination notices"}, nil)

	assert.Equal(t, "## Relevant Cases\nSee Smith v Jones.", resp.Answer)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, generation.LabelCaseSpecific, resp.Classification.Type)

	// 提示词要同时带上整案与片段上下文。
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "DOCUMENT 1 [Similarity:")
	assert.Contains(t, provider.prompts[0], "CHUNK 2 [Similarity:")
	assert.Contains(t, provider.prompts[0], "https://sat.example.com/123")
}

func TestRespondNoContextPolite(t *testing.T) {
	provider := &stubChatProvider{name: "openai/gpt-4o", output: "unused"}
	// 与语料正交的向量，相似度压到阈值之下。
	svc := newTestService(t, provider, &stubEmbedder{vector: []float64{0, 0, 1}}, nil, false)

	resp := svc.Respond(context.Background(), Request{Message: "quantum widgets"}, nil)

	assert.Contains(t, resp.Answer, "couldn't find any relevant legal cases")
	assert.Contains(t, resp.Answer, "quantum widgets")
	assert.Empty(t, provider.prompts, "no LLM call without relevant context")
}

func TestRespondEmbeddingFailureApologizes(t *testing.T) {
	provider := &stubChatProvider{name: "openai/gpt-4o", output: "unused"}
	svc := newTestService(t, provider, &stubEmbedder{err: errors.New("connection refused")}, nil, false)

	resp := svc.Respond(context.Background(), Request{Message: "anything"}, nil)

	assert.Contains(t, resp.Answer, "I apologize")
	assert.NotContains(t, resp.Answer, "connection refused")
	assert.NotEmpty(t, resp.ConversationID)
	assert.Empty(t, provider.prompts)
}

func TestRespondGenerationFailureApologizes(t *testing.T) {
	provider := &stubChatProvider{
		name: "openai/gpt-4o",
		err:  &llm.Error{Code: llm.ErrRateLimited, Message: "slow down", Provider: "openai/gpt-4o"},
	}
	svc := newTestService(t, provider, &stubEmbedder{vector: []float64{1, 0, 0}}, nil, false)

	resp := svc.Respond(context.Background(), Request{Message: "find cases about notices"}, nil)

	assert.Contains(t, resp.Answer, "I apologize")
	assert.NotContains(t, resp.Answer, "slow down")
}

func TestRespondUsesHistory(t *testing.T) {
	provider := &stubChatProvider{name: "openai/gpt-4o", output: "Second answer."}
	history := &memoryHistory{turns: map[string][]generation.Turn{
		"conv-1": {
			{Role: "user", Content: "find termination cases"},
			{Role: "assistant", Content: "Here is one."},
		},
	}}
	svc := newTestService(t, provider, &stubEmbedder{vector: []float64{1, 0, 0}}, history, false)

	resp := svc.Respond(context.Background(), Request{
		Message:        "show me more cases like that",
		ConversationID: "conv-1",
	}, nil)

	assert.Equal(t, "conv-1", resp.ConversationID)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "CONVERSATION HISTORY:")
	assert.Contains(t, provider.prompts[0], "User: find termination cases")

	// 本轮问答写回历史。
	turns := history.turns["conv-1"]
	require.Len(t, turns, 4)
	assert.Equal(t, "Second answer.", turns[3].Content)
}

func TestRespondStreaming(t *testing.T) {
	provider := &stubChatProvider{name: "openai/gpt-4o", chunks: []string{"## Cases\n", "Smith v Jones."}}
	svc := newTestService(t, provider, &stubEmbedder{vector: []float64{1, 0, 0}}, nil, true)

	var received strings.Builder
	resp := svc.Respond(context.Background(), Request{Message: "find cases about notices"},
		func(text string) { received.WriteString(text) })

	assert.Equal(t, 1, provider.streamed)
	assert.Equal(t, "## Cases\nSmith v Jones.", received.String())
	assert.Equal(t, "## Cases\nSmith v Jones.", resp.Answer)
}

func TestRespondStreamingDisabledFallsBackToSync(t *testing.T) {
	provider := &stubChatProvider{name: "openai/gpt-4o", output: "sync answer"}
	svc := newTestService(t, provider, &stubEmbedder{vector: []float64{1, 0, 0}}, nil, false)

	resp := svc.Respond(context.Background(), Request{Message: "find cases about notices"},
		func(string) { t.Fatal("chunk callback must not fire when streaming is disabled") })

	assert.Equal(t, 0, provider.streamed)
	assert.Equal(t, "sync answer", resp.Answer)
}

func TestRespondStreamFailureSuppressesErrorText(t *testing.T) {
	provider := &stubChatProvider{
		name:      "openai/gpt-4o",
		chunks:    []string{"partial "},
		streamErr: &llm.Error{Code: llm.ErrUpstreamTimeout, Message: "timeout", Provider: "openai/gpt-4o", Retryable: true},
	}
	svc := newTestService(t, provider, &stubEmbedder{vector: []float64{1, 0, 0}}, nil, true)

	var received strings.Builder
	resp := svc.Respond(context.Background(), Request{Message: "find cases about notices"},
		func(text string) { received.WriteString(text) })

	assert.Contains(t, resp.Answer, "I apologize")
	assert.NotContains(t, received.String(), "Error from openai/gpt-4o")
	assert.Contains(t, received.String(), "I apologize")
}
