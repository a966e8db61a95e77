package chatengine

import (
	"context"

	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
)

// CondenseQuestionChatEngine 先把追问压缩为独立问题再检索。
// 检索到的文本用 QA 模板包裹原始消息，作为最后一条用户消息；
// 压缩结果只用于检索，不写入历史。
type CondenseQuestionChatEngine struct {
	*engine
	condenser *Condenser
	retriever rag.Retriever
}

var _ ChatEngine = (*CondenseQuestionChatEngine)(nil)

// NewCondenseQuestionChatEngine 创建压缩问题检索的对话引擎
func NewCondenseQuestionChatEngine(condenseLLM Completer, retriever rag.Retriever, synth Synthesizer, opts ...Option) (*CondenseQuestionChatEngine, error) {
	o := buildOptions("condense_question", opts)
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
			prompt:         assemblePrompt(e.promptSpec(PlacementInline, nodes, history, message)),
			sources:        nodes,
			condensedQuery: query,
		}, nil
	}
	return &CondenseQuestionChatEngine{engine: e, condenser: condenser, retriever: retriever}, nil
}
