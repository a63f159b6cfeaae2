package generation

import (
	"fmt"
	"strings"

	"github.com/satdecisions/satrag/rag"
)

// 上下文格式化的两个哨兵值。调用方在发起任何 LLM 调用前
// 必须用 HasContext 做闸门判断。
const (
	// NoDocumentsSentinel 表示检索结果为空。
	NoDocumentsSentinel = "No relevant documents found."
	// NoRelevantSentinel 表示有结果但都低于相关性阈值。
	NoRelevantSentinel = "No sufficiently relevant documents found."
)

// Turn 是一轮对话记录，Role 取 user/assistant。
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Composer 负责把检索结果与用户输入拼装成提示词。
// ContextThreshold 是进入上下文的最低相似度，低于它的结果被丢弃。
type Composer struct {
	ContextThreshold float64
}

// NewComposer 创建 Composer。threshold 应取配置里的 ContextThreshold
//（默认 RelevanceThreshold 的一半）。
func NewComposer(threshold float64) *Composer {
	return &Composer{ContextThreshold: threshold}
}

// HasContext 判断格式化结果是否包含可用上下文。
func HasContext(context string) bool {
	return context != NoDocumentsSentinel && context != NoRelevantSentinel
}

// FormatContext 把检索结果渲染为带相似度标注的文本块。
// 空输入与全部低于阈值分别返回对应哨兵值。URL 原样透传，
// 供模型生成 markdown 链接。
func (c *Composer) FormatContext(items []rag.Result) string {
	if len(items) == 0 {
		return NoDocumentsSentinel
	}

	relevant := make([]rag.Result, 0, len(items))
	for _, item := range items {
		if item.Similarity >= c.ContextThreshold {
			relevant = append(relevant, item)
		}
	}
	if len(relevant) == 0 {
		return NoRelevantSentinel
	}

	parts := make([]string, 0, len(relevant))
	for i, item := range relevant {
		title := item.Title
		if title == "" {
			title = "Unknown"
		}
		citation := item.Citation
		if citation == "" {
			citation = "N/A"
		}
		url := item.CaseURL
		if url == "" {
			url = "#"
		}

		if item.Kind == rag.KindChunk {
			content := item.Summary
			if content == "" {
				content = item.ChunkText
			}
			parts = append(parts, fmt.Sprintf(
				"CHUNK %d [Similarity: %.2f]:\nFrom case: %s\nCitation: %s\nCase URL: %s\nText: %s\n",
				i+1, item.Similarity, title, citation, url, content))
			continue
		}

		parts = append(parts, fmt.Sprintf(
			"DOCUMENT %d [Similarity: %.2f]:\nTitle: %s\nCitation: %s\nCase URL: %s\nContent: %s\nIMPORTANT: Use this exact URL in markdown links: %s\n",
			i+1, item.Similarity, title, citation, url, item.Summary, url))
	}

	return strings.Join(parts, "\n")
}

// ComposeChat 按查询分类拼装混合聊天提示词。历史对话按
// "Role: content" 逐行序列化，插在 USER QUERY 之前。
func (c *Composer) ComposeChat(query, context string, cls Classification, history []Turn) string {
	instruction, format := caseSpecificInstruction, caseSpecificFormat
	if cls.Type == LabelGeneral {
		instruction, format = generalInstruction, generalFormat
	}

	prompt := strings.NewReplacer(
		"{query}", query,
		"{context}", context,
		"{hybrid_instruction}", instruction,
		"{format_template}", format,
	).Replace(chatTemplate)

	if len(history) > 0 {
		var sb strings.Builder
		sb.WriteString("\nCONVERSATION HISTORY:\n")
		for _, turn := range history {
			sb.WriteString(capitalize(turn.Role))
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		}
		prompt = strings.Replace(prompt, "USER QUERY:", sb.String()+"\nUSER QUERY:", 1)
	}

	return prompt
}

// ComposeArguments 拼装四段式法律分析提示词。
func (c *Composer) ComposeArguments(content, topic, context string) string {
	return strings.NewReplacer(
		"{content}", content,
		"{topic}", topicOrDefault(topic),
		"{context}", context,
	).Replace(argumentsTemplate)
}

// ComposeStep 为多步推理中的一步拼装提示词。previousSteps
// 是此前各步输出的累积文本。
func (c *Composer) ComposeStep(content, topic, context, step, instructions, previousSteps string) string {
	return strings.NewReplacer(
		"{content}", content,
		"{topic}", topicOrDefault(topic),
		"{context}", context,
		"{step}", step,
		"{step_instructions}", instructions,
		"{previous_steps}", previousSteps,
	).Replace(stepTemplate)
}

// ComposeSingleCall 拼装单次调用的三步推理提示词。
func (c *Composer) ComposeSingleCall(content, topic, context string) string {
	return strings.NewReplacer(
		"{content}", content,
		"{topic}", topicOrDefault(topic),
		"{context}", context,
	).Replace(singleCallTemplate)
}

func topicOrDefault(topic string) string {
	if topic == "" {
		return "Not specified"
	}
	return topic
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
