package llm

import "context"

// DummyProvider 返回固定格式的占位回复，永不失败。
// 未知 provider 配置会被工厂路由到这里，保证离线与测试场景可运行。
type DummyProvider struct {
	Model string
}

func NewDummyProvider(model string) *DummyProvider {
	if model == "" {
		model = "dummy"
	}
	return &DummyProvider{Model: model}
}

func (p *DummyProvider) Generate(_ context.Context, prompt string, _ Options) (string, error) {
	preview := prompt
	if len(preview) > 50 {
		preview = preview[:50] + "..."
	}
	return "This is a dummy response to: '" + preview + "'", nil
}

func (p *DummyProvider) GenerateStream(ctx context.Context, prompt string, opts Options, onChunk ChunkFunc) error {
	out, _ := p.Generate(ctx, prompt, opts)
	for len(out) > 0 {
		n := 10
		if n > len(out) {
			n = len(out)
		}
		onChunk(out[:n])
		out = out[n:]
	}
	return nil
}

func (p *DummyProvider) Name() string { return "dummy/" + p.Model }
