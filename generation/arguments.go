package generation

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/satdecisions/satrag/llm"
	"github.com/satdecisions/satrag/llm/factory"
)

// Argument 是解析后的单条法律论点。
type Argument struct {
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	SupportingCases []string `json:"supporting_cases"`
	Strength        string   `json:"strength"`
}

// insightsInstruction 附加在论证模板后，约束输出为带强度评估的洞见列表。
const insightsInstruction = `

Focus on generating KEY INSIGHTS only. For each insight, include an assessment of its strength (Strong, Moderate, or Weak) based on:
- Strong: Well-supported by multiple legal precedents, clear factual evidence, or established legal principles
- Moderate: Supported by some precedents or factual evidence, but with some limitations
- Weak: Limited supporting evidence, potentially contested, or based on relatively untested legal theories

Format your response as a list of insights, each with a strength assessment at the end like this:
1. [Insight text]. Strength: Strong
2. [Insight text]. Strength: Moderate
`

const argumentsInstruction = "\n\nFocus on generating LEGAL ARGUMENTS only. Format your response with clear argument titles."

// GenerateInsights 生成带强度评估的关键洞见列表。
// 主模型失败时在降级模型上重试一次。
func (o *Orchestrator) GenerateInsights(ctx context.Context, req Request) []string {
	contextText := o.composer.FormatContext(req.Items)
	if !HasContext(contextText) {
		return []string{"No sufficiently relevant cases were found to generate insights."}
	}

	prompt := o.composer.ComposeArguments(req.CaseContent, req.Topic, contextText) + insightsInstruction
	response := o.generateWithFallback(ctx, req.Model, prompt)
	return parseInsights(response)
}

// GenerateArguments 生成结构化论点列表。req.OnChunk 非 nil 时
// 走流式，解析基于收集到的完整文本。
func (o *Orchestrator) GenerateArguments(ctx context.Context, req Request) []Argument {
	contextText := o.composer.FormatContext(req.Items)
	if !HasContext(contextText) {
		return []Argument{{
			Title:           "Insufficient Similar Cases",
			Content:         "No sufficiently relevant cases were found to generate arguments.",
			SupportingCases: []string{},
			Strength:        "N/A",
		}}
	}

	prompt := o.composer.ComposeArguments(req.CaseContent, req.Topic, contextText) + argumentsInstruction

	var response string
	if req.OnChunk != nil {
		primary := o.factory.Provider("", req.Model, factory.PurposeArguments)
		out, err := o.generate(ctx, primary, prompt, true, req.OnChunk)
		if err != nil {
			fallback := o.factory.Fallback()
			o.logger.Warn("primary streaming failed, switching to backup",
				zap.String("primary", primary.Name()),
				zap.String("fallback", fallback.Name()),
				zap.Error(err))
			if o.collector != nil {
				o.collector.RecordLLMFallback(primary.Name(), fallback.Name())
			}
			req.OnChunk("\n[Switching to backup model...]\n")
			out, err = o.generate(ctx, fallback, prompt, true, req.OnChunk)
			if err != nil {
				o.logger.Error("backup streaming also failed", zap.Error(err))
			}
		}
		response = out
	} else {
		response = o.generateWithFallback(ctx, req.Model, prompt)
	}

	return parseArguments(response)
}

// generateWithFallback 同步生成，失败后换降级模型重试一次，
// 两边都失败时返回错误文案。
func (o *Orchestrator) generateWithFallback(ctx context.Context, model, prompt string) string {
	primary := o.factory.Provider("", model, factory.PurposeArguments)
	out, err := primary.Generate(ctx, prompt, o.opts)
	if err == nil {
		return out
	}

	fallback := o.factory.Fallback()
	o.logger.Warn("primary provider failed, retrying on fallback",
		zap.String("primary", primary.Name()),
		zap.String("fallback", fallback.Name()),
		zap.Error(err))
	if o.collector != nil {
		o.collector.RecordLLMFallback(primary.Name(), fallback.Name())
	}

	out, err = fallback.Generate(ctx, prompt, o.opts)
	if err != nil {
		o.logger.Error("fallback provider also failed", zap.Error(err))
		return llm.ErrorText(err)
	}
	return out
}

// parseInsights 从模型输出中提取洞见行。识别 "Key Insights"
// 一类的小节标题后，收编号行与列表行；撞到下一个小节标题停止。
// 什么都没解析出来时退化为取前五个非标题行。
func parseInsights(response string) []string {
	var insights []string
	inInsights := false

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)

		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "key insights") || strings.Contains(lower, "insights") {
			inInsights = true
			continue
		}
		if line == "" {
			continue
		}

		if inInsights && isListItem(line) {
			insights = append(insights, stripListMarker(line))
		}

		if inInsights && strings.HasSuffix(line, ":") && !strings.HasPrefix(line, "-") {
			break
		}
	}

	if len(insights) == 0 {
		for _, raw := range strings.Split(response, "\n") {
			line := strings.TrimSpace(raw)
			if line == "" || strings.HasSuffix(line, ":") {
				continue
			}
			insights = append(insights, line)
			if len(insights) == 5 {
				break
			}
		}
	}

	return insights
}

// parseArguments 把模型输出按标题行切成论点。标题行以冒号结尾
// 或全大写；正文里出现强度词就更新 Strength，出现判例引用就
// 归入 SupportingCases。
func parseArguments(response string) []Argument {
	var arguments []Argument
	var current *Argument

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") || isAllUpper(line) {
			if current != nil {
				arguments = append(arguments, *current)
			}
			current = &Argument{
				Title:           strings.TrimRight(line, ":"),
				SupportingCases: []string{},
				Strength:        "Medium",
			}
			continue
		}
		if current == nil {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "strong") || strings.Contains(lower, "moderate") || strings.Contains(lower, "weak"):
			for _, strength := range []string{"strong", "moderate", "weak"} {
				if strings.Contains(lower, strength) {
					current.Strength = capitalize(strength)
					break
				}
			}
		case strings.Contains(lower, "case") || strings.Contains(line, "v."):
			current.SupportingCases = append(current.SupportingCases, line)
		default:
			current.Content += line + " "
		}
	}

	if current != nil {
		arguments = append(arguments, *current)
	}

	if len(arguments) == 0 {
		content := response
		if len(content) > 1000 {
			content = content[:1000]
		}
		arguments = []Argument{{
			Title:           "Legal Argument",
			Content:         content,
			SupportingCases: []string{},
			Strength:        "Medium",
		}}
	}

	return arguments
}

func isListItem(line string) bool {
	r := []rune(line)[0]
	return unicode.IsDigit(r) || r == '•' || r == '-' || r == '*'
}

// stripListMarker 去掉行首的编号或列表符号。
func stripListMarker(line string) string {
	runes := []rune(line)
	switch {
	case unicode.IsDigit(runes[0]):
		if len(runes) >= 3 && (string(runes[1:3]) == ". " || string(runes[1:3]) == ") ") {
			return strings.TrimSpace(string(runes[3:]))
		}
		return line
	default:
		return strings.TrimSpace(string(runes[1:]))
	}
}

// isAllUpper 对应"标题全大写"的启发式：至少含一个字母，
// 且所有字母均为大写。
func isAllUpper(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
