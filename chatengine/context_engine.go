package chatengine

import (
	"context"

	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
)

// ContextChatEngine 用原始消息检索，上下文放入历史之前的系统消息
type ContextChatEngine struct {
	*engine
	retriever rag.Retriever
}

var _ ChatEngine = (*ContextChatEngine)(nil)

// NewContextChatEngine 创建基于原始消息检索的对话引擎
func NewContextChatEngine(retriever rag.Retriever, synth Synthesizer, opts ...Option) (*ContextChatEngine, error) {
	o := buildOptions("context", opts)
	if retriever == nil {
		return nil, newConfigurationError("%s: retriever is required", o.name)
	}
	e, err := newEngine(synth, o)
	if err != nil {
		return nil, err
	}

	ce := &ContextChatEngine{engine: e, retriever: retriever}
	e.prepare = func(ctx context.Context, history []types.Message, message string) (*turnPlan, error) {
		nodes, err := e.retrieve(ctx, retriever, message, 0)
		if err != nil {
			return nil, err
		}
		return &turnPlan{
			prompt:  assemblePrompt(e.promptSpec(PlacementSystem, nodes, history, message)),
			sources: nodes,
		}, nil
	}
	return ce, nil
}
