package server

import (
	"context"
	"net/http"

	"github.com/BaSui01/chatflow/api/handlers"
	"github.com/BaSui01/chatflow/config"
	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/types"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouterDependencies 路由所需的处理器与横切组件
type RouterDependencies struct {
	Chat   *handlers.ChatHandler
	Health *handlers.HealthHandler
	Server config.ServerConfig
	// 以下可为 nil
	Collector *metrics.Collector
	Tracer    trace.Tracer
	Logger    *zap.Logger
}

// NewRouter 组装 API 路由。ctx 结束时停止限流器的后台清理。
func NewRouter(ctx context.Context, deps RouterDependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(
		RequestID(),
		chimw.RealIP,
		Recovery(logger),
		RequestLogger(logger),
		MetricsMiddleware(deps.Collector),
		OTelTracing(deps.Tracer),
		SecurityHeaders(),
		CORS(deps.Server.AllowedOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", nil)
	})

	r.Get("/health", deps.Health.HandleHealth)
	r.Get("/healthz", deps.Health.HandleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(
			APIKeyAuth(deps.Server.APIKeys, logger),
			RateLimiter(ctx, deps.Server.RateLimitRPS, deps.Server.RateLimitBurst, logger),
		)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", deps.Chat.HandleCreateSession)
			r.Get("/", deps.Chat.HandleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/chat", deps.Chat.HandleChat)
				r.Post("/chat/stream", deps.Chat.HandleStream)
				r.Get("/history", deps.Chat.HandleHistory)
				r.Delete("/history", deps.Chat.HandleReset)
			})
		})
	})

	return r
}

// MetricsHandler 独立端口上的 /metrics 路由
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
