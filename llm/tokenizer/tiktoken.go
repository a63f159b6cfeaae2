package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 家族模型提供精确计数。
type TiktokenTokenizer struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// 模型名前缀到 tiktoken 编码的映射。
var modelEncodings = map[string]string{
	"gpt-4o":           "o200k_base",
	"gpt-4-turbo":      "cl100k_base",
	"gpt-4":            "cl100k_base",
	"gpt-3.5-turbo":    "cl100k_base",
	"text-davinci-003": "p50k_base",
}

// NewTiktokenTokenizer 为给定模型创建 tiktoken 计数器，
// 未知的 gpt 变体默认使用 cl100k_base。
// 取最长的匹配前缀，"gpt-4o" 不落到 "gpt-4" 的编码上。
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	encoding := "cl100k_base"
	matched := 0
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > matched {
			encoding = enc
			matched = len(prefix)
		}
	}
	return &TiktokenTokenizer{model: model, encoding: encoding}
}

// init lazily 初始化 tiktoken 编码（首次使用时可能下载数据）.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
