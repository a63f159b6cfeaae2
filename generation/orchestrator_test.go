package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satdecisions/satrag/llm"
	"github.com/satdecisions/satrag/llm/factory"
	"github.com/satdecisions/satrag/rag"
)

// stubProvider 按固定脚本应答，记录收到的提示词。
type stubProvider struct {
	name      string
	output    string
	err       error
	chunks    []string
	streamErr error

	prompts       []string
	streamPrompts []string
}

func (s *stubProvider) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

func (s *stubProvider) GenerateStream(_ context.Context, prompt string, _ llm.Options, onChunk llm.ChunkFunc) error {
	s.streamPrompts = append(s.streamPrompts, prompt)
	for _, c := range s.chunks {
		onChunk(c)
	}
	if s.streamErr != nil {
		onChunk("\n\n" + llm.ErrorText(s.streamErr))
		return s.streamErr
	}
	return nil
}

func (s *stubProvider) Name() string { return s.name }

type stubSource struct {
	primary  llm.Provider
	fallback llm.Provider
}

func (s *stubSource) Provider(_, _ string, _ factory.Purpose) llm.Provider { return s.primary }
func (s *stubSource) Fallback() llm.Provider                               { return s.fallback }
func (s *stubSource) FallbackModel() string                                { return "claude-3-7-sonnet-20250219" }

func upstreamError(provider string) *llm.Error {
	return &llm.Error{
		Code:      llm.ErrUpstreamError,
		Message:   "boom",
		Provider:  provider,
		Retryable: true,
	}
}

func testItems() []rag.Result {
	return []rag.Result{{
		Kind:       rag.KindDocument,
		Title:      "Smith v Jones",
		Citation:   "2023 WASAT 123",
		CaseURL:    "https://sat.example.com/123",
		Summary:    "Lease terminated without the required notice period.",
		Similarity: 0.9,
	}}
}

func newTestOrchestrator(src ProviderSource) *Orchestrator {
	return NewOrchestrator(src, testComposer(), nil, llm.Options{Temperature: 0.2, MaxTokens: 512}, zap.NewNop())
}

func TestReasoningNoContextSkipsLLM(t *testing.T) {
	primary := &stubProvider{name: "openai/gpt-4o", output: "unused"}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: primary})

	var callbacks []ReasoningStep
	result := o.GenerateWithReasoning(context.Background(), Request{
		CaseContent: "facts",
		Items:       nil,
		OnStep:      func(step ReasoningStep) { callbacks = append(callbacks, step) },
	})

	assert.Equal(t, "No sufficiently relevant cases were found.", result.Error)
	assert.Empty(t, result.Steps)
	assert.Empty(t, primary.prompts, "no LLM call may happen without context")
	require.Len(t, callbacks, 1)
	assert.Equal(t, "Error", callbacks[0].Name)
}

func TestReasoningThreeStepChain(t *testing.T) {
	primary := &stubProvider{name: "deepseek/deepseek-reasoner", output: "analysis output"}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: primary})

	var seen []string
	result := o.GenerateWithReasoning(context.Background(), Request{
		CaseContent: "facts",
		Topic:       "tenancy",
		Items:       testItems(),
		OnStep:      func(step ReasoningStep) { seen = append(seen, step.Name) },
	})

	require.Len(t, result.Steps, 3)
	assert.Equal(t, "analysis output", result.FinalOutput)
	assert.Equal(t, []string{
		"Analyze Case & Compare",
		"Identify & Evaluate Arguments",
		"Formulate Final Arguments",
	}, seen)

	// 每步的提示词要能看到此前各步的累积输出。
	require.Len(t, primary.prompts, 3)
	assert.NotContains(t, primary.prompts[0], "STEP 1:")
	assert.Contains(t, primary.prompts[1], "STEP 1: Analyze Case & Compare\nanalysis output")
	assert.Contains(t, primary.prompts[2], "STEP 2: Identify & Evaluate Arguments")

	assert.Positive(t, result.TokenUsage.InputTokens)
	assert.Positive(t, result.TokenUsage.OutputTokens)
	assert.Equal(t, result.TokenUsage.InputTokens+result.TokenUsage.OutputTokens, result.TokenUsage.TotalTokens)
}

func TestReasoningLegacyFiveSteps(t *testing.T) {
	primary := &stubProvider{name: "openai/gpt-4o", output: "out"}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: primary})

	result := o.GenerateWithReasoning(context.Background(), Request{
		CaseContent: "facts",
		Items:       testItems(),
		Steps:       LegacyReasoningSteps,
	})

	require.Len(t, result.Steps, 5)
	assert.Equal(t, "Formulate Final Arguments", result.Steps[4].Name)
}

func TestReasoningFallbackOncePerStep(t *testing.T) {
	primary := &stubProvider{name: "deepseek/deepseek-reasoner", err: upstreamError("deepseek/deepseek-reasoner")}
	fallback := &stubProvider{name: "anthropic/claude-3-7-sonnet-20250219", output: "fallback output"}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: fallback})

	result := o.GenerateWithReasoning(context.Background(), Request{
		CaseContent: "facts",
		Items:       testItems(),
	})

	require.Len(t, result.Steps, 3)
	assert.Len(t, primary.prompts, 3)
	assert.Len(t, fallback.prompts, 3)
	for _, step := range result.Steps {
		assert.Equal(t, "fallback output", step.Output)
	}
	assert.Equal(t, "fallback output", result.FinalOutput)
}

func TestReasoningBothFailuresRecordErrorText(t *testing.T) {
	primary := &stubProvider{name: "deepseek/deepseek-reasoner", err: upstreamError("deepseek/deepseek-reasoner")}
	fallback := &stubProvider{name: "anthropic/claude-3-7-sonnet-20250219", err: upstreamError("anthropic/claude-3-7-sonnet-20250219")}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: fallback})

	result := o.GenerateWithReasoning(context.Background(), Request{
		CaseContent: "facts",
		Items:       testItems(),
	})

	// 链条不中断，错误文案成为该步输出。
	require.Len(t, result.Steps, 3)
	for _, step := range result.Steps {
		assert.Equal(t, "Error from anthropic/claude-3-7-sonnet-20250219: boom", step.Output)
	}
}

func TestReasoningStreamingEmptiesFinalOutput(t *testing.T) {
	primary := &stubProvider{
		name:   "openai/gpt-4o",
		output: "intermediate",
		chunks: []string{"## Key ", "Insights\n", "done"},
	}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: primary})

	var received strings.Builder
	result := o.GenerateWithReasoning(context.Background(), Request{
		CaseContent: "facts",
		Items:       testItems(),
		OnChunk:     func(text string) { received.WriteString(text) },
	})

	assert.Equal(t, "", result.FinalOutput)
	assert.Equal(t, "## Key Insights\ndone", received.String())

	// 前两步同步，最后一步流式。
	assert.Len(t, primary.prompts, 2)
	assert.Len(t, primary.streamPrompts, 1)

	require.Len(t, result.Steps, 3)
	assert.Equal(t, "## Key Insights\ndone", result.Steps[2].Output)
}

func TestReasoningStreamingFallbackSuppressesErrorChunk(t *testing.T) {
	primary := &stubProvider{
		name:      "deepseek/deepseek-reasoner",
		output:    "intermediate",
		chunks:    []string{"partial "},
		streamErr: upstreamError("deepseek/deepseek-reasoner"),
	}
	fallback := &stubProvider{
		name:   "anthropic/claude-3-7-sonnet-20250219",
		output: "intermediate",
		chunks: []string{"recovered output"},
	}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: fallback})

	var received strings.Builder
	o.GenerateWithReasoning(context.Background(), Request{
		CaseContent: "facts",
		Items:       testItems(),
		OnChunk:     func(text string) { received.WriteString(text) },
	})

	got := received.String()
	assert.Contains(t, got, "[Switching to backup model...]")
	assert.Contains(t, got, "recovered output")
	assert.NotContains(t, got, "Error from deepseek/deepseek-reasoner")
}

func TestSingleCallNoContext(t *testing.T) {
	primary := &stubProvider{name: "openai/gpt-4o", output: "unused"}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: primary})

	result := o.GenerateSingleCall(context.Background(), Request{CaseContent: "facts"})

	assert.Equal(t, "No sufficiently relevant cases were found.", result.Error)
	assert.Equal(t, "No sufficiently relevant cases were found to generate arguments.", result.FinalOutput)
	assert.Empty(t, primary.prompts)
}

func TestSingleCallHappyPath(t *testing.T) {
	primary := &stubProvider{name: "openai/gpt-4o", output: "LEGAL ANALYSIS: TENANCY"}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: primary})

	result := o.GenerateSingleCall(context.Background(), Request{
		CaseContent: "facts",
		Topic:       "tenancy",
		Items:       testItems(),
	})

	assert.Equal(t, "LEGAL ANALYSIS: TENANCY", result.FinalOutput)
	assert.Empty(t, result.Steps)
	require.Len(t, primary.prompts, 1)
	assert.Contains(t, primary.prompts[0], "STEP 1: ANALYZE CASE & COMPARE")
	assert.Positive(t, result.TokenUsage.TotalTokens)
}

func TestSingleCallFallback(t *testing.T) {
	primary := &stubProvider{name: "deepseek/deepseek-reasoner", err: upstreamError("deepseek/deepseek-reasoner")}
	fallback := &stubProvider{name: "anthropic/claude-3-7-sonnet-20250219", output: "rescued"}
	o := newTestOrchestrator(&stubSource{primary: primary, fallback: fallback})

	result := o.GenerateSingleCall(context.Background(), Request{
		CaseContent: "facts",
		Items:       testItems(),
	})

	assert.Equal(t, "rescued", result.FinalOutput)
	assert.Len(t, fallback.prompts, 1)
}

func TestUpstreamErrorIsTagged(t *testing.T) {
	err := upstreamError("deepseek/deepseek-reasoner")
	var tagged *llm.Error
	require.True(t, errors.As(error(err), &tagged))
	assert.Equal(t, "Error from deepseek/deepseek-reasoner: boom", llm.ErrorText(err))
}
