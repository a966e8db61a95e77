package chatengine

import (
	"context"

	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
)

// CondensePlusContextChatEngine 用压缩后的问题检索，上下文放入系统消息，
// 历史保持真实的对话轮次。
type CondensePlusContextChatEngine struct {
	*engine
	condenser *Condenser
	retriever rag.Retriever
}

var _ ChatEngine = (*CondensePlusContextChatEngine)(nil)

// NewCondensePlusContextChatEngine 创建压缩问题 + 系统上下文的对话引擎
func NewCondensePlusContextChatEngine(condenseLLM Completer, retriever rag.Retriever, synth Synthesizer, opts ...Option) (*CondensePlusContextChatEngine, error) {
	o := buildOptions("condense_plus_context", opts)
	if condenseLLM == nil {
		return nil, newConfigurationError("%s: condense model is required", o.name)
	}
	if retriever == nil {
		return nil, newConfigurationError("%s: retriever is required", o.name)
	}
	e, err := newEngine(synth, o)
	if err != nil {
		return nil, err
	}

	condenser := NewCondenser(condenseLLM, o.condenseRenderer, o.logger)
	e.prepare = func(ctx context.Context, history []types.Message, message string) (*turnPlan, error) {
		query, err := e.condense(ctx, condenser, history, message)
		if err != nil {
			return nil, err
		}
		nodes, err := e.retrieve(ctx, retriever, query, 0)
		if err != nil {
			return nil, err
		}
		return &turnPlan{
			prompt:         assemblePrompt(e.promptSpec(PlacementSystem, nodes, history, message)),
			sources:        nodes,
			condensedQuery: query,
		}, nil
	}
	return &CondensePlusContextChatEngine{engine: e, condenser: condenser, retriever: retriever}, nil
}
