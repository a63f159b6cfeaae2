package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.retrievalsTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmTokensUsed)
	assert.NotNil(t, collector.reasoningStepsTotal)
}

func TestCollector_RecordRetrieval(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRetrieval("document", true, "ok", 20*time.Millisecond)
	collector.RecordRetrieval("chunk", false, "error", 5*time.Millisecond)

	count := testutil.CollectAndCount(collector.retrievalsTotal)
	assert.Equal(t, 2, count)
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLLMRequest("openai/gpt-4o", "ok", time.Second, 120, 45)

	assert.Greater(t, testutil.CollectAndCount(collector.llmRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.llmTokensUsed), 0)
}

func TestCollector_RecordLLMFallback(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLLMFallback("deepseek/deepseek-reasoner", "anthropic/claude-3-7-sonnet-20250219")

	assert.Equal(t, 1, testutil.CollectAndCount(collector.llmFallbacksTotal))
}

func TestCollector_RecordReasoning(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordReasoningStep("Analyze Case & Compare", "ok")
	collector.RecordReasoningRun("multi_step", 3*time.Second)

	assert.Equal(t, 1, testutil.CollectAndCount(collector.reasoningStepsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.reasoningRunDuration))
}
