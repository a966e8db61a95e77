package chatengine

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/chatflow/chatengine/memory"
	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ChatEngine 对话引擎的统一接口
type ChatEngine interface {
	// Chat 处理一个阻塞轮次
	Chat(ctx context.Context, message string) (*ChatResponse, error)

	// StreamChat 启动一个流式轮次
	StreamChat(ctx context.Context, message string) (*StreamingResponse, error)

	// Reset 清空历史，只能在空闲时调用
	Reset(ctx context.Context) error

	// History 返回当前历史
	History(ctx context.Context) ([]types.Message, error)

	// State 返回当前轮次状态
	State() TurnState

	// Name 返回引擎名
	Name() string
}

// turnPlan 准备阶段的产物，交给生成阶段使用
type turnPlan struct {
	prompt         []types.Message
	sources        rag.RetrievedContext
	condensedQuery string

	// wrapErr 包装生成阶段的错误，flow 用它把错误挂到 StepError 上
	wrapErr func(error) error
	// onComplete 在助手消息写入前调用
	onComplete func(text string)
}

func (p *turnPlan) wrap(err error) error {
	if p.wrapErr == nil || err == nil {
		return err
	}
	return p.wrapErr(err)
}

// prepareFunc 是各策略的差异部分：压缩、检索与提示词组装。
// history 是追加用户消息之前的快照。
type prepareFunc func(ctx context.Context, history []types.Message, message string) (*turnPlan, error)

// engine 轮次状态机，所有策略共享
type engine struct {
	opts        options
	synthesizer Synthesizer
	memory      *memory.Memory
	logger      *zap.Logger
	prepare     prepareFunc

	// execMu 忙标志：TryLock 失败即返回 ErrBusy，流式轮次在结束时释放
	execMu sync.Mutex

	stateMu sync.RWMutex
	state   TurnState
}

func newEngine(synth Synthesizer, opts options) (*engine, error) {
	if synth == nil {
		return nil, newConfigurationError("%s: synthesizer is required", opts.name)
	}
	if opts.topK <= 0 {
		return nil, newConfigurationError("%s: top_k must be positive, got %d", opts.name, opts.topK)
	}
	if opts.historyTokenLimit < 0 {
		return nil, newConfigurationError("%s: history token limit must not be negative", opts.name)
	}
	return &engine{
		opts:        opts,
		synthesizer: synth,
		memory:      opts.memory,
		logger:      opts.logger.With(zap.String("component", "chat_engine"), zap.String("engine", opts.name)),
		state:       StateIdle,
	}, nil
}

// Name 返回引擎名
func (e *engine) Name() string { return e.opts.name }

// State 返回当前轮次状态
func (e *engine) State() TurnState {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// transition 状态转换（带校验）。相同状态视为无操作。
func (e *engine) transition(to TurnState) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	from := e.state
	if from == to {
		return
	}
	if !CanTransition(from, to) {
		e.logger.Error("rejected state transition", zap.Error(ErrInvalidTransition{From: from, To: to}))
		return
	}
	e.state = to
	e.logger.Debug("state transition", zap.String("from", string(from)), zap.String("to", string(to)))
}

// History 返回当前历史
func (e *engine) History(ctx context.Context) ([]types.Message, error) {
	return e.memory.Messages(ctx)
}

// Memory 返回引擎的对话历史
func (e *engine) Memory() *memory.Memory { return e.memory }

// Reset 清空历史
func (e *engine) Reset(ctx context.Context) error {
	if !e.execMu.TryLock() {
		e.opts.observer.ObserveBusy(e.opts.name)
		return newBusyError(e.opts.name)
	}
	defer e.execMu.Unlock()

	if err := e.memory.Reset(ctx); err != nil {
		return err
	}
	e.logger.Info("history reset")
	return nil
}

// Chat 处理一个阻塞轮次
func (e *engine) Chat(ctx context.Context, message string) (*ChatResponse, error) {
	if !e.execMu.TryLock() {
		e.opts.observer.ObserveBusy(e.opts.name)
		return nil, newBusyError(e.opts.name)
	}
	defer e.execMu.Unlock()

	ctx, span := e.startTurnSpan(ctx, "chatengine.chat", false)
	start := time.Now()

	resp, err := e.chat(ctx, message)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		if types.IsErrorCode(err, types.ErrCancelled) {
			status = StatusCancelled
		}
	}
	e.endTurn(span, status, false, start, err)
	return resp, err
}

func (e *engine) chat(ctx context.Context, message string) (*ChatResponse, error) {
	plan, err := e.begin(ctx, message)
	if err != nil {
		return nil, e.fail(err)
	}

	var text string
	err = e.phase(ctx, StateSynthesizing, func(ctx context.Context) error {
		out, err := e.synthesizer.Complete(ctx, plan.prompt)
		if err != nil {
			return classifyError(ctx, types.ErrSynthesis, "synthesize response", err)
		}
		text = out
		return nil
	})
	if err != nil {
		return nil, e.fail(plan.wrap(err))
	}

	// 生成已成功，之后的取消不影响写入助手消息
	resp, err := e.complete(context.WithoutCancel(ctx), plan, text)
	if err != nil {
		return nil, e.fail(err)
	}
	e.transition(StateCompleted)
	e.transition(StateIdle)
	return resp, nil
}

// begin 快照历史、追加用户消息并执行策略的准备阶段。
// 用户消息一旦写入就不会回滚。
func (e *engine) begin(ctx context.Context, message string) (*turnPlan, error) {
	history, err := e.memory.Snapshot(ctx, e.opts.historyTokenLimit)
	if err != nil {
		return nil, err
	}
	if err := e.memory.Append(ctx, types.NewUserMessage(message)); err != nil {
		return nil, err
	}
	return e.prepare(ctx, history, message)
}

// complete 写入助手消息并构造响应
func (e *engine) complete(ctx context.Context, plan *turnPlan, text string) (*ChatResponse, error) {
	if plan.onComplete != nil {
		plan.onComplete(text)
	}
	if err := e.memory.Append(ctx, types.NewAssistantMessage(text)); err != nil {
		return nil, err
	}
	return &ChatResponse{
		Text:           text,
		Sources:        plan.sources.Clone(),
		CondensedQuery: plan.condensedQuery,
	}, nil
}

// fail 结束失败的轮次：取消直接回到 Idle，其余错误经 Failed 回到 Idle
func (e *engine) fail(err error) error {
	if types.IsErrorCode(err, types.ErrCancelled) {
		e.transition(StateIdle)
		e.logger.Info("turn cancelled", zap.Error(err))
		return err
	}
	e.transition(StateFailed)
	e.transition(StateIdle)
	e.logger.Warn("turn failed", zap.Error(err))
	return err
}

// phase 执行一个阶段：状态转换、span 与观测
func (e *engine) phase(ctx context.Context, state TurnState, fn func(ctx context.Context) error) error {
	e.transition(state)
	ctx, span := e.opts.tracer.Start(ctx, "chatengine."+string(state))
	start := time.Now()

	err := fn(ctx)

	e.opts.observer.ObservePhase(e.opts.name, state, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}

// condense 压缩阶段
func (e *engine) condense(ctx context.Context, c *Condenser, history []types.Message, message string) (string, error) {
	var out string
	err := e.phase(ctx, StateCondensing, func(ctx context.Context) error {
		q, err := c.Condense(ctx, history, message)
		out = q
		return err
	})
	return out, err
}

// retrieve 检索阶段，含后处理
func (e *engine) retrieve(ctx context.Context, r rag.Retriever, query string, topK int) (rag.RetrievedContext, error) {
	if topK <= 0 {
		topK = e.opts.topK
	}
	var nodes rag.RetrievedContext
	err := e.phase(ctx, StateRetrieving, func(ctx context.Context) error {
		got, err := r.Retrieve(ctx, query, topK)
		if err != nil {
			return classifyError(ctx, types.ErrRetrieval, "retrieve context", err)
		}
		got, err = rag.ApplyPostprocessors(ctx, query, got, e.opts.postprocessors...)
		if err != nil {
			return classifyError(ctx, types.ErrRetrieval, "postprocess nodes", err)
		}
		nodes = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.opts.observer.ObserveRetrieval(e.opts.name, len(nodes))
	e.logger.Debug("context retrieved", zap.String("query", query), zap.Int("nodes", len(nodes)))
	return nodes, nil
}

// promptSpec 返回带引擎模板的提示词输入
func (e *engine) promptSpec(placement ContextPlacement, nodes rag.RetrievedContext, history []types.Message, message string) promptSpec {
	return promptSpec{
		systemPrompt:    e.opts.systemPrompt,
		contextTemplate: e.opts.contextTemplate,
		qaTemplate:      e.opts.qaTemplate,
		placement:       placement,
		nodes:           nodes,
		history:         history,
		message:         message,
	}
}

func (e *engine) startTurnSpan(ctx context.Context, name string, streaming bool) (context.Context, trace.Span) {
	return e.opts.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("chatengine.name", e.opts.name),
		attribute.Bool("chatengine.streaming", streaming),
		attribute.String("chatengine.session", e.memory.SessionKey()),
	))
}

func (e *engine) endTurn(span trace.Span, status TurnStatus, streaming bool, start time.Time, err error) {
	duration := time.Since(start)
	e.opts.observer.ObserveTurn(e.opts.name, status, streaming, duration)

	span.SetAttributes(attribute.String("chatengine.status", string(status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	e.logger.Info("turn finished",
		zap.String("status", string(status)),
		zap.Bool("streaming", streaming),
		zap.Duration("duration", duration))
}

// StreamChat 启动一个流式轮次。
// 准备阶段的错误直接返回；生成阶段的错误由 Recv 返回。
func (e *engine) StreamChat(ctx context.Context, message string) (*StreamingResponse, error) {
	if !e.execMu.TryLock() {
		e.opts.observer.ObserveBusy(e.opts.name)
		return nil, newBusyError(e.opts.name)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	spanCtx, span := e.startTurnSpan(streamCtx, "chatengine.stream_chat", true)
	start := time.Now()

	abort := func(err error) (*StreamingResponse, error) {
		err = e.fail(err)
		status := StatusFailed
		if types.IsErrorCode(err, types.ErrCancelled) {
			status = StatusCancelled
		}
		e.endTurn(span, status, true, start, err)
		cancel()
		e.execMu.Unlock()
		return nil, err
	}

	plan, err := e.begin(spanCtx, message)
	if err != nil {
		return abort(err)
	}

	e.transition(StateSynthesizing)
	deltas, err := e.synthesizer.Stream(spanCtx, plan.prompt)
	if err != nil {
		return abort(plan.wrap(classifyError(spanCtx, types.ErrSynthesis, "start stream", err)))
	}
	e.transition(StateStreaming)

	return newStreamingResponse(e, streamCtx, cancel, spanCtx, span, start, plan, deltas), nil
}

// finishStream 流式轮次结束：状态归位并释放忙标志
func (e *engine) finishStream(status TurnStatus, span trace.Span, start time.Time, err error) {
	switch status {
	case StatusCompleted:
		e.transition(StateCompleted)
	case StatusFailed:
		e.transition(StateFailed)
		e.logger.Warn("stream failed", zap.Error(err))
	}
	e.transition(StateIdle)
	e.endTurn(span, status, true, start, err)
	e.execMu.Unlock()
}
