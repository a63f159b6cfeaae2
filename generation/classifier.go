package generation

import (
	"math"
	"regexp"
	"strings"
)

// Label 表示查询分类结果。
type Label string

const (
	// LabelCaseSpecific 表示用户在找具体判例。
	LabelCaseSpecific Label = "case_specific"
	// LabelGeneral 表示用户在问一般性法律问题。
	LabelGeneral Label = "general"
)

// Classification 携带分类标签与置信度，置信度取值 [0.5, 0.95]。
type Classification struct {
	Type       Label   `json:"type"`
	Confidence float64 `json:"confidence"`
}

// 提示"找判例"的关键词。
var caseSpecificKeywords = []string{
	"case", "cases", "ruling", "rulings", "decision", "decisions",
	"precedent", "precedents", "judgment", "judgments", "verdict",
	"verdicts", "court", "courts", "judge", "judges", "tribunal",
	"find similar", "similar cases", "relevant cases", "find cases",
	"example cases", "show me cases", "search for cases", "what cases",
	"recent cases", "specific cases",
}

// 提示"问概念/流程"的关键词。
var generalKeywords = []string{
	"what is", "how to", "explain", "definition", "define", "meaning",
	"process", "procedure", "guidelines", "steps", "requirements",
	"overview", "summary", "introduction", "basics", "fundamental",
	"principles", "concept", "theory", "framework", "structure",
	"approach", "strategy", "advice", "help", "guidance", "tips",
}

// 判例类正则，命中一次计两分。
var caseSpecificPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(find|show|give|provide).*case`),
	regexp.MustCompile(`(previous|prior|past|similar).*case`),
	regexp.MustCompile(`case.*(about|related to|involving|concerning)`),
	regexp.MustCompile(`(example|instance).*(of|where)`),
	regexp.MustCompile(`v\.`),
	regexp.MustCompile(`\[\d{4}\]`),
	regexp.MustCompile(`\d{4}.*WASAT`),
}

// 一般问题类正则，同样两分权重。
var generalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(what|how|why|when|where|who).*(is|are|do|does|should|would|could|can)`),
	regexp.MustCompile(`explain.*(how|why|what)`),
	regexp.MustCompile(`(meaning|definition).*of`),
	regexp.MustCompile(`(steps|process|procedure).*(for|to|in)`),
}

// Classify 将查询分为 case_specific 或 general。
// 打分 = 关键词命中数 + 正则命中数×2；两边都为零时回落到
// (general, 0.5)；平分偏向 case_specific。置信度是两侧分差占
// 总分的比例，夹在 [0.5, 0.95] 之间。结果是纯函数，可缓存。
func Classify(query string) Classification {
	q := strings.ToLower(query)

	var caseScore, generalScore int
	for _, kw := range caseSpecificKeywords {
		if strings.Contains(q, kw) {
			caseScore++
		}
	}
	for _, kw := range generalKeywords {
		if strings.Contains(q, kw) {
			generalScore++
		}
	}
	for _, p := range caseSpecificPatterns {
		if p.MatchString(q) {
			caseScore += 2
		}
	}
	for _, p := range generalPatterns {
		if p.MatchString(q) {
			generalScore += 2
		}
	}

	if caseScore == 0 && generalScore == 0 {
		return Classification{Type: LabelGeneral, Confidence: 0.5}
	}

	total := float64(caseScore + generalScore)
	confidence := math.Abs(float64(caseScore)-float64(generalScore)) / total
	confidence = math.Min(0.95, math.Max(0.5, confidence))

	if caseScore >= generalScore {
		return Classification{Type: LabelCaseSpecific, Confidence: confidence}
	}
	return Classification{Type: LabelGeneral, Confidence: confidence}
}
