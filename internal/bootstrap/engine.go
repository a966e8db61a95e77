package bootstrap

import (
	"fmt"

	"github.com/BaSui01/chatflow/chatengine"
	"github.com/BaSui01/chatflow/chatengine/memory"
	"github.com/BaSui01/chatflow/config"
	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
	"go.uber.org/zap"
)

// Synthesizer 基于配置的 Provider 创建生成器
func (c *Components) Synthesizer() *chatengine.LLMSynthesizer {
	return chatengine.NewLLMSynthesizer(c.Provider, chatengine.LLMSynthesizerConfig{
		Model:       c.Config.LLM.Model,
		Temperature: float32(c.Config.LLM.Temperature),
		MaxTokens:   c.Config.LLM.MaxTokens,
	}, c.Logger)
}

// Memory 创建绑定到 sessionID 的对话历史
func (c *Components) Memory(sessionID string) *memory.Memory {
	return memory.New(
		memory.WithStore(c.Store),
		memory.WithSessionKey(sessionID),
		memory.WithTokenizer(c.Tokenizer),
		memory.WithLogger(c.Logger),
	)
}

func (c *Components) postprocessors() []rag.Postprocessor {
	var pps []rag.Postprocessor
	if c.Config.Engine.SimilarityCutoff > 0 {
		pps = append(pps, rag.SimilarityCutoff{Threshold: c.Config.Engine.SimilarityCutoff})
	}
	if c.Config.Engine.TopN > 0 {
		pps = append(pps, rag.TopN{N: c.Config.Engine.TopN})
	}
	return pps
}

func (c *Components) engineOptions(sessionID string) []chatengine.Option {
	ec := c.Config.Engine
	opts := []chatengine.Option{
		chatengine.WithName(ec.Mode),
		chatengine.WithMemory(c.Memory(sessionID)),
		chatengine.WithSystemPrompt(ec.SystemPrompt),
		chatengine.WithTopK(ec.TopK),
		chatengine.WithHistoryTokenLimit(ec.HistoryTokenLimit),
		chatengine.WithPostprocessors(c.postprocessors()...),
		chatengine.WithLogger(c.Logger.With(zap.String("session_id", sessionID))),
		chatengine.WithObserver(c.observer),
		chatengine.WithTracer(c.tracer),
	}
	if ec.ContextTemplate != "" {
		opts = append(opts, chatengine.WithContextTemplate(ec.ContextTemplate))
	}
	if ec.CondensePrompt != "" {
		opts = append(opts, chatengine.WithCondensePrompt(chatengine.CondenseTemplate(ec.CondensePrompt)))
	}
	return opts
}

// NewEngine 按 engine.mode 为会话创建独立的引擎，会话 ID 即历史存储的 key
func (c *Components) NewEngine(sessionID string) (chatengine.ChatEngine, error) {
	synth := c.Synthesizer()
	opts := c.engineOptions(sessionID)

	switch c.Config.Engine.Mode {
	case config.EngineModeSimple:
		return chatengine.NewSimpleChatEngine(synth, opts...)
	case config.EngineModeContext:
		return chatengine.NewContextChatEngine(c.Retriever, synth, opts...)
	case config.EngineModeCondenseQuestion:
		return chatengine.NewCondenseQuestionChatEngine(synth, c.Retriever, synth, opts...)
	case config.EngineModeCondensePlusContext:
		return chatengine.NewCondensePlusContextChatEngine(synth, c.Retriever, synth, opts...)
	case config.EngineModeFlow:
		steps, err := c.BuildFlow(synth)
		if err != nil {
			return nil, err
		}
		return chatengine.NewFlowChatEngine(steps, synth, opts...)
	default:
		return nil, types.NewError(types.ErrConfiguration, fmt.Sprintf("unknown engine mode %q", c.Config.Engine.Mode))
	}
}

// BuildFlow 按 engine.flow 构造步骤并做静态校验
func (c *Components) BuildFlow(condenseLLM chatengine.Completer) ([]chatengine.FlowStep, error) {
	return chatengine.BuildFlow(c.Config.Engine.Flow, chatengine.FlowDeps{
		CondenseLLM: condenseLLM,
		Retriever:   c.Retriever,
		Registry:    c.Steps,
	})
}
