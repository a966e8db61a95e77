package chatengine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/BaSui01/chatflow/rag"
	"github.com/BaSui01/chatflow/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Capability 步骤能力标签
type Capability string

const (
	CapabilityCondense   Capability = "condense"
	CapabilityRetrieve   Capability = "retrieve"
	CapabilitySynthesize Capability = "synthesize"
	CapabilityCustom     Capability = "custom"
)

// StepFunc 自定义步骤的处理函数，通过 TurnContext.Set 写出结果
type StepFunc func(ctx context.Context, tc *TurnContext) error

// FlowStep flow 中的一个步骤。用 CondenseStep、RetrieveStep、
// SynthesizeStep、CustomStep 构造；构造引擎后不可修改。
type FlowStep struct {
	Name       string
	Capability Capability
	Inputs     []string
	Outputs    []string

	// When 为 nil 时总是执行
	When Predicate
	// WhenExpr 谓词表达式，构造引擎时解析；与 When 同时设置时两者都需为真
	WhenExpr string

	condenseLLM Completer
	retriever   rag.Retriever
	placement   ContextPlacement
	topK        int
	fn          StepFunc
}

// StepOption 步骤选项
type StepOption func(*FlowStep)

// Named 设置步骤名
func Named(name string) StepOption {
	return func(s *FlowStep) { s.Name = name }
}

// When 设置谓词
func When(p Predicate) StepOption {
	return func(s *FlowStep) { s.When = p }
}

// WhenExpr 设置谓词表达式
func WhenExpr(expr string) StepOption {
	return func(s *FlowStep) { s.WhenExpr = expr }
}

// QueryFrom 设置检索问题的来源字段：condensed_query（默认）或 message
func QueryFrom(field string) StepOption {
	return func(s *FlowStep) { s.Inputs = []string{field} }
}

// Inject 设置 retrieved_context 的注入方式，默认 system。
// 对 retrieve 步骤和产出 retrieved_context 的 custom 步骤有效。
func Inject(p ContextPlacement) StepOption {
	return func(s *FlowStep) { s.placement = p }
}

// StepTopK 覆盖引擎的 topK
func StepTopK(k int) StepOption {
	return func(s *FlowStep) { s.topK = k }
}

func newStep(name string, capability Capability, inputs, outputs []string, opts []StepOption) FlowStep {
	s := FlowStep{
		Name:       name,
		Capability: capability,
		Inputs:     inputs,
		Outputs:    outputs,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// CondenseStep 压缩步骤：message → condensed_query
func CondenseStep(condenseLLM Completer, opts ...StepOption) FlowStep {
	s := newStep(string(CapabilityCondense), CapabilityCondense,
		[]string{FieldMessage}, []string{FieldCondensedQuery}, opts)
	s.condenseLLM = condenseLLM
	return s
}

// RetrieveStep 检索步骤：condensed_query | message → retrieved_context
func RetrieveStep(retriever rag.Retriever, opts ...StepOption) FlowStep {
	s := FlowStep{placement: PlacementSystem}
	s.Name = string(CapabilityRetrieve)
	s.Capability = CapabilityRetrieve
	s.Inputs = []string{FieldCondensedQuery}
	s.Outputs = []string{FieldRetrievedContext}
	for _, opt := range opts {
		opt(&s)
	}
	s.retriever = retriever
	return s
}

// SynthesizeStep 生成步骤：message → prompt, response。必须是唯一且最后的步骤。
func SynthesizeStep(opts ...StepOption) FlowStep {
	return newStep(string(CapabilitySynthesize), CapabilitySynthesize,
		[]string{FieldMessage}, []string{FieldPrompt, FieldResponse}, opts)
}

// CustomStep 自定义步骤，inputs/outputs 可以是内置字段或自定义键。
// 写出 retrieved_context 时按 Inject 指定的方式（默认 system）放入提示词。
func CustomStep(name string, fn StepFunc, inputs, outputs []string, opts ...StepOption) FlowStep {
	s := FlowStep{
		Name:       name,
		Capability: CapabilityCustom,
		Inputs:     inputs,
		Outputs:    outputs,
		placement:  PlacementSystem,
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.fn = fn
	return s
}

// clone 复制 Inputs/Outputs，使步骤不与调用方共享切片
func (s FlowStep) clone() FlowStep {
	s.Inputs = slices.Clone(s.Inputs)
	s.Outputs = slices.Clone(s.Outputs)
	return s
}

// compiledStep 校验后的步骤
type compiledStep struct {
	FlowStep
	when      Predicate
	condenser *Condenser
}

// ValidateFlow 静态校验步骤列表，返回 ConfigurationError
func ValidateFlow(steps []FlowStep) error {
	_, err := compileFlow(steps, nil)
	return err
}

// compileFlow 校验步骤并解析谓词。
// 输入若没有任何前序步骤可能产出，直接报错；
// 若只由带谓词的前序步骤产出，留到运行时检查。
func compileFlow(steps []FlowStep, newCondenser func(Completer) *Condenser) ([]*compiledStep, error) {
	if len(steps) == 0 {
		return nil, newConfigurationError("flow has no steps")
	}

	producible := make(map[string]bool)
	for _, s := range steps {
		for _, out := range s.Outputs {
			producible[out] = true
		}
	}

	available := map[string]bool{FieldMessage: true, FieldHistory: true}
	names := make(map[string]bool, len(steps))
	compiled := make([]*compiledStep, 0, len(steps))

	for i, s := range steps {
		s = s.clone()
		if s.Name == "" {
			return nil, newConfigurationError("step %d has no name", i)
		}
		if names[s.Name] {
			return nil, newConfigurationError("duplicate step name %q", s.Name)
		}
		names[s.Name] = true

		if err := validateStep(s, i, len(steps)); err != nil {
			return nil, err
		}

		for _, in := range s.Inputs {
			if !available[in] {
				return nil, newConfigurationError("step %q requires %q but no earlier step produces it", s.Name, in)
			}
		}

		cs := &compiledStep{FlowStep: s, when: s.When}
		if s.WhenExpr != "" {
			pred, fields, err := parsePredicate(s.WhenExpr)
			if err != nil {
				return nil, newConfigurationError("step %q: invalid predicate %q: %v", s.Name, s.WhenExpr, err)
			}
			for _, f := range fields {
				if !builtinFields[f] && !producible[f] {
					return nil, newConfigurationError("step %q: predicate references unknown field %q", s.Name, f)
				}
			}
			if s.When != nil {
				fn := s.When
				cs.when = func(tc *TurnContext) bool { return fn(tc) && pred(tc) }
			} else {
				cs.when = pred
			}
		}
		if s.Capability == CapabilityCondense && newCondenser != nil {
			cs.condenser = newCondenser(s.condenseLLM)
		}
		compiled = append(compiled, cs)

		for _, out := range s.Outputs {
			available[out] = true
		}
	}
	return compiled, nil
}

func validateStep(s FlowStep, index, total int) error {
	last := index == total-1
	switch s.Capability {
	case CapabilityCondense:
		if s.condenseLLM == nil {
			return newConfigurationError("step %q: condense model is required", s.Name)
		}
	case CapabilityRetrieve:
		if s.retriever == nil {
			return newConfigurationError("step %q: retriever is required", s.Name)
		}
		if len(s.Inputs) != 1 || (s.Inputs[0] != FieldCondensedQuery && s.Inputs[0] != FieldMessage) {
			return newConfigurationError("step %q: retrieve input must be %s or %s", s.Name, FieldCondensedQuery, FieldMessage)
		}
		if err := validatePlacement(s); err != nil {
			return err
		}
		if s.topK < 0 {
			return newConfigurationError("step %q: top_k must not be negative", s.Name)
		}
	case CapabilitySynthesize:
		if !last {
			return newConfigurationError("step %q: synthesize must be the final step", s.Name)
		}
		if s.When != nil || s.WhenExpr != "" {
			return newConfigurationError("step %q: synthesize cannot be conditional", s.Name)
		}
	case CapabilityCustom:
		if s.fn == nil {
			return newConfigurationError("step %q: custom step requires a handler", s.Name)
		}
		for _, out := range s.Outputs {
			if engineOwnedFields[out] {
				return newConfigurationError("step %q: cannot produce engine-owned field %q", s.Name, out)
			}
		}
		if err := validatePlacement(s); err != nil {
			return err
		}
	default:
		return newConfigurationError("step %q: unknown capability %q", s.Name, s.Capability)
	}
	if last && s.Capability != CapabilitySynthesize {
		return newConfigurationError("flow must end with a synthesize step, got %q", s.Name)
	}
	return nil
}

func validatePlacement(s FlowStep) error {
	switch s.placement {
	case PlacementNone, PlacementSystem, PlacementInline:
		return nil
	}
	return newConfigurationError("step %q: unknown context placement %q", s.Name, s.placement)
}

// FlowChatEngine 按配置的步骤顺序处理轮次，遵守与固定策略相同的外部契约
type FlowChatEngine struct {
	*engine
	steps []*compiledStep
}

var _ ChatEngine = (*FlowChatEngine)(nil)

// NewFlowChatEngine 创建 flow 引擎，构造时完成静态校验
func NewFlowChatEngine(steps []FlowStep, synth Synthesizer, opts ...Option) (*FlowChatEngine, error) {
	o := buildOptions("flow", opts)
	compiled, err := compileFlow(steps, func(llm Completer) *Condenser {
		return NewCondenser(llm, o.condenseRenderer, o.logger)
	})
	if err != nil {
		return nil, err
	}
	e, err := newEngine(synth, o)
	if err != nil {
		return nil, err
	}

	fe := &FlowChatEngine{engine: e, steps: compiled}
	e.prepare = fe.run

	names := make([]string, len(compiled))
	for i, s := range compiled {
		names[i] = s.Name
	}
	e.logger.Info("flow chat engine built", zap.Strings("steps", names))
	return fe, nil
}

// Steps 返回步骤列表副本
func (fe *FlowChatEngine) Steps() []FlowStep {
	out := make([]FlowStep, len(fe.steps))
	for i, s := range fe.steps {
		out[i] = s.FlowStep.clone()
	}
	return out
}

// run 依次执行步骤，第一个失败的步骤终止流水线
func (fe *FlowChatEngine) run(ctx context.Context, history []types.Message, message string) (*turnPlan, error) {
	tc := newTurnContext(history, message)

	for _, s := range fe.steps {
		if s.when != nil && !s.when(tc) {
			fe.logger.Debug("step skipped", zap.String("step", s.Name))
			continue
		}
		for _, in := range s.Inputs {
			if !tc.provided(in) {
				return nil, fe.stepError(s, tc, newConfigurationError(
					"step %q: input %q is missing because its producer was skipped", s.Name, in))
			}
		}

		if err := fe.execute(ctx, s, tc); err != nil {
			return nil, fe.stepError(s, tc, err)
		}

		for _, out := range s.Outputs {
			if out == FieldResponse {
				continue
			}
			if !tc.provided(out) {
				return nil, fe.stepError(s, tc, newConfigurationError(
					"step %q did not produce declared output %q", s.Name, out))
			}
		}
	}

	synth := fe.steps[len(fe.steps)-1]
	return &turnPlan{
		prompt:         tc.Prompt,
		sources:        tc.RetrievedContext,
		condensedQuery: tc.CondensedQuery,
		wrapErr: func(err error) error {
			return fe.stepError(synth, tc, err)
		},
		onComplete: tc.setResponse,
	}, nil
}

func (fe *FlowChatEngine) execute(ctx context.Context, s *compiledStep, tc *TurnContext) error {
	switch s.Capability {
	case CapabilityCondense:
		q, err := fe.condense(ctx, s.condenser, tc.History, tc.Message)
		if err != nil {
			return err
		}
		tc.SetCondensedQuery(q)

	case CapabilityRetrieve:
		query := tc.CondensedQuery
		if s.Inputs[0] == FieldMessage {
			query = tc.Message
		}
		nodes, err := fe.retrieve(ctx, s.retriever, query, s.topK)
		if err != nil {
			return err
		}
		tc.SetRetrievedContext(nodes)
		tc.placement = s.placement

	case CapabilitySynthesize:
		tc.setPrompt(assemblePrompt(fe.promptSpec(tc.placement, tc.RetrievedContext, tc.History, tc.Message)))

	case CapabilityCustom:
		writes := tc.contextWrites
		err := fe.runCustom(ctx, s, tc)
		if tc.contextWrites != writes {
			tc.placement = s.placement
		}
		return err
	}
	return nil
}

func (fe *FlowChatEngine) runCustom(ctx context.Context, s *compiledStep, tc *TurnContext) error {
	ctx, span := fe.opts.tracer.Start(ctx, "chatengine.step."+s.Name,
		trace.WithAttributes(attribute.String("chatengine.step", s.Name)))
	defer span.End()

	err := s.fn(ctx, tc)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var typed *types.Error
	if ctx.Err() != nil && !errors.As(err, &typed) {
		return newCancelledError(err)
	}
	return err
}

func (fe *FlowChatEngine) stepError(s *compiledStep, tc *TurnContext, err error) error {
	var se *StepError
	if errors.As(err, &se) {
		return err
	}
	return &StepError{Step: s.Name, Capability: s.Capability, Turn: tc, Err: err}
}

// SimpleFlow 等价于 SimpleChatEngine
func SimpleFlow() []FlowStep {
	return []FlowStep{SynthesizeStep()}
}

// ContextFlow 等价于 ContextChatEngine
func ContextFlow(retriever rag.Retriever) []FlowStep {
	return []FlowStep{
		RetrieveStep(retriever, QueryFrom(FieldMessage), Inject(PlacementSystem)),
		SynthesizeStep(),
	}
}

// CondenseQuestionFlow 等价于 CondenseQuestionChatEngine
func CondenseQuestionFlow(condenseLLM Completer, retriever rag.Retriever) []FlowStep {
	return []FlowStep{
		CondenseStep(condenseLLM),
		RetrieveStep(retriever, Inject(PlacementInline)),
		SynthesizeStep(),
	}
}

// CondensePlusContextFlow 等价于 CondensePlusContextChatEngine
func CondensePlusContextFlow(condenseLLM Completer, retriever rag.Retriever) []FlowStep {
	return []FlowStep{
		CondenseStep(condenseLLM),
		RetrieveStep(retriever, Inject(PlacementSystem)),
		SynthesizeStep(),
	}
}

func (s FlowStep) String() string {
	if s.WhenExpr != "" {
		return fmt.Sprintf("%s(%s) when %s", s.Name, s.Capability, s.WhenExpr)
	}
	return fmt.Sprintf("%s(%s)", s.Name, s.Capability)
}
