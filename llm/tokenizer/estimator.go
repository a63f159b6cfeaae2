package tokenizer

import "strings"

// WordTokenizer estimates token counts as word count times a model-specific
// multiplier. Claude tokenizes at roughly 1.3 tokens per English word and
// DeepSeek at roughly 1.2; good enough for usage metrics.
type WordTokenizer struct {
	model      string
	multiplier float64
}

func NewWordTokenizer(model string, multiplier float64) *WordTokenizer {
	if multiplier <= 0 {
		multiplier = 1.3
	}
	return &WordTokenizer{model: model, multiplier: multiplier}
}

func (w *WordTokenizer) CountTokens(text string) (int, error) {
	words := len(strings.Fields(text))
	return int(float64(words) * w.multiplier), nil
}

func (w *WordTokenizer) Name() string { return "words" }

// EstimatorTokenizer is the last-resort len/4 estimator for models with no
// known tokenization behavior.
type EstimatorTokenizer struct {
	model string
}

func NewEstimatorTokenizer(model string) *EstimatorTokenizer {
	return &EstimatorTokenizer{model: model}
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	return len(text) / 4, nil
}

func (e *EstimatorTokenizer) Name() string { return "estimator" }
