package generation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/satdecisions/satrag/internal/metrics"
	"github.com/satdecisions/satrag/llm"
	"github.com/satdecisions/satrag/llm/factory"
	"github.com/satdecisions/satrag/llm/tokenizer"
	"github.com/satdecisions/satrag/rag"
)

// Step 是推理链中的一步。
type Step struct {
	Name         string
	Instructions string
}

// OptimizedReasoningSteps 是默认的三步推理链。
var OptimizedReasoningSteps = []Step{
	{
		Name:         "Analyze Case & Compare",
		Instructions: "Analyze the provided CASE CONTENT in light of the SIMILAR CASES/CHUNKS. Identify the key **legal issues** and relevant **legal principles/rules** (including primary legislation sections like EO Act s.66V, s.66W, and relevant principles from precedents). Generate 3-4 key **insights** *specific* to applying these principles to the case facts, noting similarities/differences with precedents. For each insight, assess its strength (Strong, Moderate, Weak) based on Australian law/precedents. Use the EXACT format: '[Insight text]. Strength: [StrengthValue]'. Do not include extra formatting.",
	},
	{
		Name:         "Identify & Evaluate Arguments",
		Instructions: "Based on the issues and insights from Step 1, identify potential legal arguments. For each argument: **(1) State the relevant legal RULE** (cite specific legislation section AND key precedent principle). **(2) APPLY the rule by comparing the specific facts** of the input case content to the facts and outcomes of the cited precedents. **(3) Evaluate the argument's STRENGTH** (Strong/Moderate/Weak) considering how well the facts align with supportive precedents and potential counterarguments.",
	},
	{
		Name:         "Formulate Final Arguments",
		Instructions: "Review the analysis. **First, reiterate Key Insights and strengths.** Then, formulate the final arguments using a clear IRAC structure for each. For every argument: **(1) State the ISSUE.** **(2) State the applicable RULE** (cite specific legislation section AND key precedent). **(3) APPLY the rule by explicitly comparing the client's facts to the facts of the supporting/distinguishing precedents.** **(4) CONCLUDE on the argument and its assessed STRENGTH (Strong/Moderate/Weak).** Format using clear titles, 'Legal Reasoning' (covering Rule & Application), 'Supporting Cases' (list cited precedents), and 'Supporting Legislation'. Ensure citations directly support the Rule and Application analysis.",
	},
}

// LegacyReasoningSteps 是更细粒度的五步推理链，耗时更长，
// 保留给需要完整中间过程的调用方。
var LegacyReasoningSteps = []Step{
	{
		Name:         "Analyze Case Content",
		Instructions: "Analyze the given case content. Identify the key legal issues, facts, and any specific legal principles mentioned.",
	},
	{
		Name:         "Compare With Similar Cases",
		Instructions: "Compare the current case with the similar cases provided. Identify similarities and differences in legal principles, facts, and outcomes.",
	},
	{
		Name:         "Identify Potential Arguments",
		Instructions: "Based on the analysis and comparison, identify potential legal arguments that could be made. Consider both supporting and opposing arguments.",
	},
	{
		Name:         "Evaluate Argument Strength",
		Instructions: "Evaluate the strength of each identified argument. Consider legal precedent, factual support, and potential counterarguments.",
	},
	{
		Name:         "Formulate Final Arguments",
		Instructions: "Review the analysis from previous steps. Formulate the final arguments with clear titles, supporting cases, and assessed strength (Strong, Moderate, or Weak). **Crucially, first reiterate the Key Insights identified in the 'Analyze Case & Compare' step, including their strengths.** Format your response clearly, starting with a '## Key Insights' section, followed by a '## Key Arguments' section.",
	},
}

// noRelevantCasesError 是无可用上下文时的终态提示。
const (
	noRelevantCasesError  = "No sufficiently relevant cases were found."
	noRelevantCasesOutput = "No sufficiently relevant cases were found to generate arguments."
)

// StepMetrics 记录单步的 token 与耗时。
type StepMetrics struct {
	InputTokens   int           `json:"input_tokens"`
	OutputTokens  int           `json:"output_tokens"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// ReasoningStep 是一步推理的完整记录。
type ReasoningStep struct {
	Name         string      `json:"step"`
	Instructions string      `json:"instructions"`
	Output       string      `json:"output"`
	Metrics      StepMetrics `json:"metrics"`
}

// TokenUsage 汇总整次运行的 token 用量。
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// GenerationResult 是一次论证生成的结果。流式模式下
// FinalOutput 为空串，内容经由回调交付。
type GenerationResult struct {
	FinalOutput   string          `json:"final_output"`
	Steps         []ReasoningStep `json:"steps"`
	TokenUsage    TokenUsage      `json:"token_usage"`
	ExecutionTime time.Duration   `json:"execution_time"`
	Error         string          `json:"error,omitempty"`
}

// StepCallback 在每步完成后同步触发，再进入下一步。
type StepCallback func(step ReasoningStep)

// Request 描述一次论证生成。
type Request struct {
	CaseContent string
	Topic       string
	Model       string        // 可选，覆盖按用途的默认模型
	Items       []rag.Result  // 检索到的相似案例与片段
	Steps       []Step        // 为 nil 时使用 OptimizedReasoningSteps
	OnStep      StepCallback  // 可选的逐步通知
	OnChunk     llm.ChunkFunc // 非 nil 时最后一次 LLM 调用走流式
}

// ProviderSource 抽象 Provider 的解析来源，由 llm/factory 满足。
type ProviderSource interface {
	Provider(provider, model string, purpose factory.Purpose) llm.Provider
	Fallback() llm.Provider
	FallbackModel() string
}

// Orchestrator 驱动多步 / 单步的论证生成链路。
// 每步主模型失败后在降级模型上重试一次，仍失败则记录错误
// 文案并继续后续步骤，整条链永不中断。
type Orchestrator struct {
	factory   ProviderSource
	composer  *Composer
	collector *metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer
	opts      llm.Options
}

// NewOrchestrator 创建编排器。collector 可为 nil。
func NewOrchestrator(f ProviderSource, composer *Composer, collector *metrics.Collector, opts llm.Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		factory:   f,
		composer:  composer,
		collector: collector,
		logger:    logger.With(zap.String("component", "orchestrator")),
		tracer:    otel.Tracer("satrag/generation"),
		opts:      opts,
	}
}

// GenerateWithReasoning 按步执行推理链并返回完整结果。
// 无可用上下文时在任何 LLM 调用之前即返回终态结果。
func (o *Orchestrator) GenerateWithReasoning(ctx context.Context, req Request) GenerationResult {
	start := time.Now()
	steps := req.Steps
	if steps == nil {
		steps = OptimizedReasoningSteps
	}

	ctx, span := o.tracer.Start(ctx, "generation.reasoning",
		trace.WithAttributes(
			attribute.Int("steps", len(steps)),
			attribute.String("topic", req.Topic),
		))
	defer span.End()

	contextText := o.composer.FormatContext(req.Items)
	if !HasContext(contextText) {
		if req.OnStep != nil {
			req.OnStep(ReasoningStep{Name: "Error", Output: noRelevantCasesOutput})
		}
		return GenerationResult{Error: noRelevantCasesError, Steps: []ReasoningStep{}}
	}

	primary := o.factory.Provider("", req.Model, factory.PurposeArguments)
	countModel := req.Model
	if countModel == "" {
		countModel = "gpt-4"
	}

	result := GenerationResult{Steps: make([]ReasoningStep, 0, len(steps))}
	previous := ""

	for i, step := range steps {
		stepStart := time.Now()
		prompt := o.composer.ComposeStep(req.CaseContent, req.Topic, contextText, step.Name, step.Instructions, previous)

		inputTokens := tokenizer.CountForModel(countModel, prompt)
		result.TokenUsage.InputTokens += inputTokens

		streaming := req.OnChunk != nil && i == len(steps)-1
		output, outputTokens := o.generateStep(ctx, primary, prompt, countModel, step.Name, streaming, req.OnChunk)
		result.TokenUsage.OutputTokens += outputTokens

		record := ReasoningStep{
			Name:         step.Name,
			Instructions: step.Instructions,
			Output:       output,
			Metrics: StepMetrics{
				InputTokens:   inputTokens,
				OutputTokens:  outputTokens,
				ExecutionTime: time.Since(stepStart),
			},
		}
		result.Steps = append(result.Steps, record)
		previous += fmt.Sprintf("\n\nSTEP %d: %s\n%s", i+1, step.Name, output)

		if req.OnStep != nil {
			req.OnStep(record)
		}
	}

	if n := len(result.Steps); n > 0 {
		result.FinalOutput = result.Steps[n-1].Output
	}
	if req.OnChunk != nil {
		// 流式内容已经由回调交付。
		result.FinalOutput = ""
	}
	result.TokenUsage.TotalTokens = result.TokenUsage.InputTokens + result.TokenUsage.OutputTokens
	result.ExecutionTime = time.Since(start)

	if o.collector != nil {
		o.collector.RecordReasoningRun("multi_step", result.ExecutionTime)
	}
	o.logger.Info("reasoning chain completed",
		zap.Int("steps", len(result.Steps)),
		zap.Int("total_tokens", result.TokenUsage.TotalTokens),
		zap.Duration("elapsed", result.ExecutionTime))
	return result
}

// GenerateSingleCall 用一次调用完成三步推理，无逐步回调。
func (o *Orchestrator) GenerateSingleCall(ctx context.Context, req Request) GenerationResult {
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "generation.single_call",
		trace.WithAttributes(attribute.String("topic", req.Topic)))
	defer span.End()

	contextText := o.composer.FormatContext(req.Items)
	if !HasContext(contextText) {
		return GenerationResult{
			Error:       noRelevantCasesError,
			FinalOutput: noRelevantCasesOutput,
			Steps:       []ReasoningStep{},
		}
	}

	primary := o.factory.Provider("", req.Model, factory.PurposeArguments)
	countModel := req.Model
	if countModel == "" {
		countModel = "gpt-4"
	}

	prompt := o.composer.ComposeSingleCall(req.CaseContent, req.Topic, contextText)
	inputTokens := tokenizer.CountForModel(countModel, prompt)

	streaming := req.OnChunk != nil
	output, outputTokens := o.generateStep(ctx, primary, prompt, countModel, "single_call", streaming, req.OnChunk)

	result := GenerationResult{
		FinalOutput: output,
		Steps:       []ReasoningStep{},
		TokenUsage: TokenUsage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
		ExecutionTime: time.Since(start),
	}
	if streaming {
		result.FinalOutput = ""
	}

	if o.collector != nil {
		o.collector.RecordReasoningRun("single_call", result.ExecutionTime)
	}
	return result
}

// generateStep 执行一次带降级的生成。主模型失败后换降级模型
// 重试一次；两边都失败时把错误文案当作本步输出返回。
func (o *Orchestrator) generateStep(ctx context.Context, primary llm.Provider, prompt, countModel, stepName string, streaming bool, onChunk llm.ChunkFunc) (string, int) {
	ctx, span := o.tracer.Start(ctx, "generation.step",
		trace.WithAttributes(attribute.String("step", stepName)))
	defer span.End()

	output, err := o.generate(ctx, primary, prompt, streaming, onChunk)
	if err == nil {
		o.recordStep(stepName, "ok")
		return output, tokenizer.CountForModel(countModel, output)
	}

	fallback := o.factory.Fallback()
	o.logger.Warn("primary provider failed, falling back",
		zap.String("step", stepName),
		zap.String("primary", primary.Name()),
		zap.String("fallback", fallback.Name()),
		zap.Error(err))
	if o.collector != nil {
		o.collector.RecordLLMFallback(primary.Name(), fallback.Name())
	}
	if streaming && onChunk != nil {
		onChunk("\n[Switching to backup model...]\n")
	}

	output, ferr := o.generate(ctx, fallback, prompt, streaming, onChunk)
	if ferr == nil {
		o.recordStep(stepName, "fallback")
		return output, tokenizer.CountForModel(o.factory.FallbackModel(), output)
	}

	o.logger.Error("fallback provider also failed",
		zap.String("step", stepName),
		zap.Error(ferr))
	o.recordStep(stepName, "error")
	text := llm.ErrorText(ferr)
	return text, tokenizer.CountForModel(countModel, text)
}

// generate 在流式模式下对回调做一拍延迟转发：Provider 失败前
// 送出的最后一个增量是错误文案，延迟一拍可以在降级时把它从
// 用户流里截掉。
func (o *Orchestrator) generate(ctx context.Context, p llm.Provider, prompt string, streaming bool, onChunk llm.ChunkFunc) (string, error) {
	if !streaming || onChunk == nil {
		return p.Generate(ctx, prompt, o.opts)
	}
	var (
		collected []byte
		held      string
		haveHeld  bool
	)
	err := p.GenerateStream(ctx, prompt, o.opts, func(text string) {
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

func (o *Orchestrator) recordStep(step, status string) {
	if o.collector != nil {
		o.collector.RecordReasoningStep(step, status)
	}
}
