package chatengine

import (
	"context"

	"github.com/BaSui01/chatflow/types"
)

// SimpleChatEngine 不检索，直接用历史与消息对话
type SimpleChatEngine struct {
	*engine
}

var _ ChatEngine = (*SimpleChatEngine)(nil)

// NewSimpleChatEngine 创建无检索的对话引擎
func NewSimpleChatEngine(synth Synthesizer, opts ...Option) (*SimpleChatEngine, error) {
	e, err := newEngine(synth, buildOptions("simple", opts))
	if err != nil {
		return nil, err
	}
	e.prepare = func(_ context.Context, history []types.Message, message string) (*turnPlan, error) {
		return &turnPlan{
			prompt: assemblePrompt(e.promptSpec(PlacementNone, nil, history, message)),
		}, nil
	}
	return &SimpleChatEngine{engine: e}, nil
}
