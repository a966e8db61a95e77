package metrics

import (
	"strconv"
	"time"

	"github.com/BaSui01/chatflow/chatengine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 对话轮次指标
	turnsTotal     *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	phaseDuration  *prometheus.HistogramVec
	phaseErrors    *prometheus.CounterVec
	busyRejections *prometheus.CounterVec
	retrievedNodes *prometheus.HistogramVec

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	logger *zap.Logger
}

var _ chatengine.TurnObserver = (*Collector)(nil)

// NewCollector 创建指标收集器，reg 为 nil 时注册到默认 Registerer
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 对话轮次指标
	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Total number of finished chat turns",
		},
		[]string{"engine", "status", "streaming"},
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_turn_duration_seconds",
			Help:      "Chat turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"engine", "streaming"},
	)

	c.phaseDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_phase_duration_seconds",
			Help:      "Duration of condense, retrieve and synthesize phases in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"engine", "phase"},
	)

	c.phaseErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_phase_errors_total",
			Help:      "Total number of failed turn phases",
		},
		[]string{"engine", "phase"},
	)

	c.busyRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_busy_rejections_total",
			Help:      "Total number of calls rejected because a turn was in flight",
		},
		[]string{"engine"},
	)

	c.retrievedNodes = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_retrieved_nodes",
			Help:      "Number of context nodes kept after retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"engine"},
	)

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LLM 指标
	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "mode", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model", "mode"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 💬 对话轮次指标（chatengine.TurnObserver）
// =============================================================================

// ObserveTurn 记录一个结束的轮次
func (c *Collector) ObserveTurn(engine string, status chatengine.TurnStatus, streaming bool, duration time.Duration) {
	mode := strconv.FormatBool(streaming)
	c.turnsTotal.WithLabelValues(engine, string(status), mode).Inc()
	c.turnDuration.WithLabelValues(engine, mode).Observe(duration.Seconds())
}

// ObservePhase 记录一个阶段
func (c *Collector) ObservePhase(engine string, phase chatengine.TurnState, duration time.Duration, err error) {
	c.phaseDuration.WithLabelValues(engine, string(phase)).Observe(duration.Seconds())
	if err != nil {
		c.phaseErrors.WithLabelValues(engine, string(phase)).Inc()
	}
}

// ObserveBusy 记录一次忙拒绝
func (c *Collector) ObserveBusy(engine string) {
	c.busyRejections.WithLabelValues(engine).Inc()
}

// ObserveRetrieval 记录检索节点数
func (c *Collector) ObserveRetrieval(engine string, nodes int) {
	c.retrievedNodes.WithLabelValues(engine).Observe(float64(nodes))
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求，mode 为 completion 或 stream
func (c *Collector) RecordLLMRequest(provider, model, mode, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, mode, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model, mode).Observe(duration.Seconds())
	if promptTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
