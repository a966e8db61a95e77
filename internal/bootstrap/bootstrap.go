package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/chatflow/chatengine"
	"github.com/BaSui01/chatflow/chatengine/memory"
	"github.com/BaSui01/chatflow/config"
	"github.com/BaSui01/chatflow/internal/database"
	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/internal/telemetry"
	"github.com/BaSui01/chatflow/internal/tlsutil"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/providers"
	"github.com/BaSui01/chatflow/llm/providers/echo"
	"github.com/BaSui01/chatflow/llm/providers/openai"
	"github.com/BaSui01/chatflow/llm/tokenizer"
	"github.com/BaSui01/chatflow/rag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HealthCheck 外部依赖的就绪检查
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options 装配选项
type Options struct {
	// Registerer 为 nil 时使用默认 Registerer
	Registerer prometheus.Registerer
	// Steps flow 模式下自定义步骤的注册表
	Steps *chatengine.StepRegistry
	// Provider 非空时跳过按配置创建 Provider
	Provider llm.Provider
	// Embedder 非空时跳过按配置创建 Embedder
	Embedder rag.Embedder
	// DisableMetrics 不创建 Prometheus 收集器（交互式 chat 命令使用）
	DisableMetrics bool
}

// Components 运行时组件
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Provider  llm.Provider
	Retriever rag.Retriever
	Store     memory.ChatStore
	Tokenizer tokenizer.Tokenizer
	Collector *metrics.Collector
	Telemetry *telemetry.Providers
	Steps     *chatengine.StepRegistry
	Checks    []HealthCheck

	observer chatengine.TurnObserver
	tracer   trace.Tracer
	closers  []func() error
}

// Build 按配置装配组件。返回错误时已创建的资源会被释放。
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	comps := &Components{
		Config:    cfg,
		Logger:    logger,
		Tokenizer: tokenizer.ForModel(cfg.LLM.Model),
		Steps:     opts.Steps,
	}
	if comps.Steps == nil {
		comps.Steps = chatengine.NewStepRegistry()
	}

	ok := false
	defer func() {
		if !ok {
			_ = comps.Close()
		}
	}()

	if err := comps.initTelemetry(opts); err != nil {
		return nil, err
	}
	if err := comps.initProvider(opts); err != nil {
		return nil, err
	}
	if err := comps.initRetriever(ctx, opts); err != nil {
		return nil, err
	}
	if err := comps.initStore(ctx, opts); err != nil {
		return nil, err
	}

	logger.Info("components ready",
		zap.String("provider", comps.Provider.Name()),
		zap.String("engine_mode", cfg.Engine.Mode),
		zap.String("memory_backend", cfg.Memory.Backend),
		zap.Bool("retrieval", comps.Retriever != nil),
	)
	ok = true
	return comps, nil
}

func (c *Components) initTelemetry(opts Options) error {
	tp, err := telemetry.Init(c.Config.Telemetry, c.Logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	c.Telemetry = tp
	c.tracer = tp.Tracer()
	c.closers = append(c.closers, func() error { return tp.Shutdown(context.Background()) })

	var observers []chatengine.TurnObserver
	if !opts.DisableMetrics {
		c.Collector = metrics.NewCollector("chatflow", opts.Registerer, c.Logger)
		observers = append(observers, c.Collector)
	}
	if tp.Enabled() {
		rec, err := metrics.NewOTelRecorder(tp.Meter())
		if err != nil {
			return err
		}
		observers = append(observers, rec)
	}
	c.observer = chatengine.MultiObserver(observers...)
	return nil
}

func (c *Components) openaiConfig() openai.Config {
	llmCfg := c.Config.LLM
	return openai.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		EmbeddingModel: llmCfg.EmbeddingModel,
		HTTPClient:     tlsutil.HTTPClient(llmCfg.Timeout),
	}
}

func (c *Components) initProvider(opts Options) error {
	provider := opts.Provider
	if provider == nil {
		switch c.Config.LLM.Provider {
		case "openai":
			if c.Config.LLM.APIKey == "" && c.Config.LLM.BaseURL == "" {
				return errors.New("llm.api_key is required for the openai provider")
			}
			retryCfg := providers.DefaultRetryConfig()
			retryCfg.MaxRetries = c.Config.LLM.MaxRetries
			provider = providers.NewRetryProvider(openai.New(c.openaiConfig(), c.Logger), retryCfg, c.Logger)
		case "echo":
			provider = echo.New()
		default:
			return fmt.Errorf("unknown llm provider %q", c.Config.LLM.Provider)
		}
	}
	c.Provider = metrics.InstrumentProvider(provider, c.Collector)
	return nil
}

func (c *Components) initRetriever(ctx context.Context, opts Options) error {
	path := c.Config.Retrieval.DocumentsFile
	if path == "" {
		return nil
	}

	embedder := opts.Embedder
	if embedder == nil {
		if c.Config.LLM.Provider != "openai" {
			return fmt.Errorf("retrieval requires an embedding provider, %q has none", c.Config.LLM.Provider)
		}
		embedder = openai.NewEmbedder(c.openaiConfig(), c.Logger)
	}

	docs, err := rag.LoadDocumentsJSONL(path)
	if err != nil {
		return err
	}
	store := rag.NewInMemoryVectorStore(c.Logger)
	if err := store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("index documents: %w", err)
	}
	c.Retriever = rag.NewVectorRetriever(store, embedder, c.Logger)
	c.Logger.Info("documents indexed", zap.String("file", path), zap.Int("count", len(docs)))
	return nil
}

func (c *Components) initStore(ctx context.Context, opts Options) error {
	memCfg := c.Config.Memory
	switch memCfg.Backend {
	case "", "memory":
		c.Store = memory.NewInMemoryChatStore()

	case "redis":
		rc := c.Config.Redis
		redisOpts := &redis.Options{
			Addr:         rc.Addr,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
		}
		if rc.TLS {
			redisOpts.TLSConfig = tlsutil.ClientConfig(tlsutil.ServerNameFromAddr(rc.Addr))
		}
		client := redis.NewClient(redisOpts)
		c.closers = append(c.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", rc.Addr, err)
		}
		c.Store = memory.NewRedisChatStore(client, memory.RedisStoreConfig{
			KeyPrefix: memCfg.KeyPrefix,
			TTL:       memCfg.TTL,
		}, c.Logger)
		c.Checks = append(c.Checks, HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})

	case "sql":
		pm, err := database.Open(c.Config.Database, c.Logger)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, pm.Close)
		store, err := memory.NewSQLChatStore(pm.DB(), c.Logger)
		if err != nil {
			return err
		}
		c.Store = store
		c.Checks = append(c.Checks, HealthCheck{Name: "database", Check: pm.Ping})
		if !opts.DisableMetrics {
			reg := opts.Registerer
			if reg == nil {
				reg = prometheus.DefaultRegisterer
			}
			if err := reg.Register(pm.StatsCollector(c.Config.Database.Name)); err != nil {
				c.Logger.Warn("register database stats collector", zap.Error(err))
			}
		}

	default:
		return fmt.Errorf("unknown memory backend %q", memCfg.Backend)
	}
	return nil
}

// Close 逆序释放资源
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
