// Package chat 实现面向对话的案例问答服务：
// 分类 → 向量化 → 检索 → 提示词拼装 → 生成。
// 对调用方永不报错，任何内部故障都降级为用户可读的致歉文案。
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satdecisions/satrag/embedding"
	"github.com/satdecisions/satrag/generation"
	"github.com/satdecisions/satrag/internal/metrics"
	"github.com/satdecisions/satrag/llm"
	"github.com/satdecisions/satrag/llm/factory"
	"github.com/satdecisions/satrag/llm/tokenizer"
	"github.com/satdecisions/satrag/rag"
)

const (
	// 单轮对话的检索规模：整案 3 条 + 片段 5 条。
	documentLimit = 3
	chunkLimit    = 5
)

// HistoryStore 是对话历史的外部存储。实现方自行决定持久化
// 方式与保留策略，本包只消费接口。
type HistoryStore interface {
	History(ctx context.Context, conversationID string) ([]generation.Turn, error)
	Append(ctx context.Context, conversationID string, turns ...generation.Turn) error
}

// Request 是一次对话请求。ConversationID 为空时由服务生成。
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Response 是一次对话应答。流式模式下 Answer 为完整收集文本，
// 增量已经由回调交付。
type Response struct {
	Answer         string                    `json:"answer"`
	ConversationID string                    `json:"conversation_id"`
	Classification generation.Classification `json:"classification"`
}

// Service 组合对话问答所需的各层组件。
type Service struct {
	embedder  embedding.Provider
	retrieval *rag.Service
	composer  *generation.Composer
	providers generation.ProviderSource
	history   HistoryStore
	collector *metrics.Collector
	logger    *zap.Logger
	streaming bool
	opts      llm.Options
}

// NewService 创建对话服务。history 与 collector 可为 nil。
func NewService(embedder embedding.Provider, retrieval *rag.Service, composer *generation.Composer,
	providers generation.ProviderSource, history HistoryStore, collector *metrics.Collector,
	streaming bool, opts llm.Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:  embedder,
		retrieval: retrieval,
		composer:  composer,
		providers: providers,
		history:   history,
		collector: collector,
		logger:    logger.With(zap.String("component", "chat")),
		streaming: streaming,
		opts:      opts,
	}
}

// Respond 处理一轮对话。onChunk 非 nil 且启用流式时增量交付。
// 内部故障不向上抛：返回致歉文案，细节只进日志。
func (s *Service) Respond(ctx context.Context, req Request, onChunk llm.ChunkFunc) Response {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	cls := generation.Classify(req.Message)
	s.logger.Info("query classified",
		zap.String("conversation_id", conversationID),
		zap.String("type", string(cls.Type)),
		zap.Float64("confidence", cls.Confidence))

	vector, err := s.embedder.Embed(ctx, req.Message)
	if err != nil {
		s.logger.Error("embedding failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return s.apologize(ctx, req.Message, conversationID, cls, onChunk)
	}

	items := s.retrieve(ctx, vector)
	contextText := s.composer.FormatContext(items)
	if !generation.HasContext(contextText) {
		answer := noContextAnswer(req.Message)
		s.deliver(answer, onChunk)
		s.remember(ctx, conversationID, req.Message, answer)
		return Response{Answer: answer, ConversationID: conversationID, Classification: cls}
	}

	turns := s.pastTurns(ctx, conversationID)
	prompt := s.composer.ComposeChat(req.Message, contextText, cls, turns)

	provider := s.providers.Provider("", "", factory.PurposeChat)
	answer, err := s.generate(ctx, provider, prompt, onChunk)
	if err != nil {
		s.logger.Error("generation failed",
			zap.String("conversation_id", conversationID),
			zap.String("provider", provider.Name()),
			zap.Error(err))
		return s.apologize(ctx, req.Message, conversationID, cls, onChunk)
	}

	s.remember(ctx, conversationID, req.Message, answer)
	return Response{Answer: answer, ConversationID: conversationID, Classification: cls}
}

// retrieve 召回整案与片段，按相似度归并为一个上下文列表。
func (s *Service) retrieve(ctx context.Context, vector []float64) []rag.Result {
	documents := s.retrieval.RetrieveDocuments(ctx, vector, documentLimit, "")
	chunks := s.retrieval.RetrieveChunks(ctx, vector, chunkLimit, 0, "")

	merged := make([]rag.Result, 0, len(documents)+len(chunks))
	merged = append(merged, documents...)
	merged = append(merged, chunks...)
	for i := 1; i < len(merged); i++ {
		for j := i; j > 0 && merged[j].Similarity > merged[j-1].Similarity; j-- {
			merged[j], merged[j-1] = merged[j-1], merged[j]
		}
	}
	return merged
}

func (s *Service) generate(ctx context.Context, provider llm.Provider, prompt string, onChunk llm.ChunkFunc) (string, error) {
	start := time.Now()
	answer, err := s.generateRaw(ctx, provider, prompt, onChunk)
	if s.collector != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.collector.RecordLLMRequest(provider.Name(), status, time.Since(start),
			tokenizer.CountForModel("gpt-4", prompt), tokenizer.CountForModel("gpt-4", answer))
	}
	return answer, err
}

func (s *Service) generateRaw(ctx context.Context, provider llm.Provider, prompt string, onChunk llm.ChunkFunc) (string, error) {
	if onChunk == nil || !s.streaming {
		return provider.Generate(ctx, prompt, s.opts)
	}
	// 延迟一拍转发：失败前的最后一个增量是错误文案，
	// 截掉它换成统一的致歉文案。
	var (
		collected []byte
		held      string
		haveHeld  bool
	)
	err := provider.GenerateStream(ctx, prompt, s.opts, func(text string) {
		collected = append(collected, text...)
		if haveHeld {
			onChunk(held)
		}
		held, haveHeld = text, true
	})
	if err == nil && haveHeld {
		onChunk(held)
	}
	return string(collected), err
}

// pastTurns 读取历史对话，store 缺失或出错时退化为空历史。
func (s *Service) pastTurns(ctx context.Context, conversationID string) []generation.Turn {
	if s.history == nil {
		return nil
	}
	turns, err := s.history.History(ctx, conversationID)
	if err != nil {
		s.logger.Warn("history lookup failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return nil
	}
	return turns
}

// remember 把本轮问答写回历史，失败只告警。
func (s *Service) remember(ctx context.Context, conversationID, message, answer string) {
	if s.history == nil {
		return
	}
	err := s.history.Append(ctx, conversationID,
		generation.Turn{Role: "user", Content: message},
		generation.Turn{Role: "assistant", Content: answer})
	if err != nil {
		s.logger.Warn("history append failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

func (s *Service) apologize(ctx context.Context, message, conversationID string, cls generation.Classification, onChunk llm.ChunkFunc) Response {
	answer := "I apologize, but something went wrong while processing your question. Please try again in a moment."
	s.deliver(answer, onChunk)
	s.remember(ctx, conversationID, message, answer)
	return Response{Answer: answer, ConversationID: conversationID, Classification: cls}
}

func (s *Service) deliver(answer string, onChunk llm.ChunkFunc) {
	if onChunk != nil && s.streaming {
		onChunk(answer)
	}
}

func noContextAnswer(query string) string {
	return "I'm sorry, but I couldn't find any relevant legal cases that match your query: '" + query + "'. " +
		"Could you try rephrasing your question or providing more specific details about the legal " +
		"issue you're interested in?"
}
