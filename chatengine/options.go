package chatengine

import (
	"github.com/BaSui01/chatflow/chatengine/memory"
	"github.com/BaSui01/chatflow/rag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultTopK 默认检索节点数
const DefaultTopK = 2

const tracerName = "github.com/BaSui01/chatflow/chatengine"

type options struct {
	name              string
	memory            *memory.Memory
	systemPrompt      string
	contextTemplate   string
	qaTemplate        string
	condenseRenderer  CondensePromptRenderer
	topK              int
	historyTokenLimit int
	postprocessors    []rag.Postprocessor
	logger            *zap.Logger
	observer          TurnObserver
	tracer            trace.Tracer
}

// Option 引擎选项
type Option func(*options)

// WithName 设置引擎名，用于日志、指标与追踪
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMemory 设置对话历史，默认使用进程内存储
func WithMemory(m *memory.Memory) Option {
	return func(o *options) { o.memory = m }
}

// WithSystemPrompt 设置系统提示词
func WithSystemPrompt(prompt string) Option {
	return func(o *options) { o.systemPrompt = prompt }
}

// WithContextTemplate 设置系统消息中的上下文模板，变量 {context_str}
func WithContextTemplate(tmpl string) Option {
	return func(o *options) { o.contextTemplate = tmpl }
}

// WithQATemplate 设置用户消息内联上下文的模板，变量 {context_str} 与 {query_str}
func WithQATemplate(tmpl string) Option {
	return func(o *options) { o.qaTemplate = tmpl }
}

// WithCondensePrompt 设置压缩提示词渲染器
func WithCondensePrompt(render CondensePromptRenderer) Option {
	return func(o *options) { o.condenseRenderer = render }
}

// WithTopK 设置每次检索的节点数
func WithTopK(k int) Option {
	return func(o *options) { o.topK = k }
}

// WithHistoryTokenLimit 设置送入模型的历史 Token 上限，0 表示不限制
func WithHistoryTokenLimit(limit int) Option {
	return func(o *options) { o.historyTokenLimit = limit }
}

// WithPostprocessors 设置检索后处理器，按顺序执行
func WithPostprocessors(pps ...rag.Postprocessor) Option {
	return func(o *options) { o.postprocessors = append(o.postprocessors, pps...) }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver 设置轮次观察者（指标）
func WithObserver(obs TurnObserver) Option {
	return func(o *options) { o.observer = obs }
}

// WithTracer 设置 OpenTelemetry Tracer，默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func buildOptions(defaultName string, opts []Option) options {
	o := options{
		name:            defaultName,
		contextTemplate: DefaultContextTemplate,
		qaTemplate:      DefaultQATemplate,
		topK:            DefaultTopK,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.memory == nil {
		o.memory = memory.New(memory.WithLogger(o.logger))
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}
