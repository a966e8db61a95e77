package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/chatflow/api/handlers"
	"github.com/BaSui01/chatflow/config"
	"github.com/BaSui01/chatflow/internal/bootstrap"
	"github.com/BaSui01/chatflow/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	// 非空时覆盖配置中的端口
	addr        string
	metricsAddr string
	// 监听配置文件变化
	watchConfig bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var so serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger, level, err := bootstrap.NewLeveledLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting chatflow",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
				zap.String("git_commit", GitCommit),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger, so, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer a.close()

			if so.watchConfig && root.configPath != "" {
				reloader, err := config.NewReloader(root.loader(), cfg, logger)
				if err != nil {
					return err
				}
				reloader.OnReload(logLevelReloader(level, logger))
				a.reloader = reloader
			}

			if err := a.run(ctx); err != nil {
				return err
			}
			logger.Info("chatflow stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&so.addr, "addr", "", "API listen address, overrides server.http_port")
	cmd.Flags().StringVar(&so.metricsAddr, "metrics-addr", "", "metrics listen address, overrides server.metrics_port")
	cmd.Flags().BoolVar(&so.watchConfig, "watch-config", true, "reload log.level when the config file changes")
	return cmd
}

// app serve 命令的运行时：组件、会话表与两个 HTTP 服务
type app struct {
	components *bootstrap.Components
	sessions   *handlers.SessionRegistry
	registry   *prometheus.Registry
	api        *server.Manager
	metrics    *server.Manager // MetricsPort 为 0 时为 nil
	reloader   *config.Reloader
	logger     *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, so serveOptions, opts bootstrap.Options) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opts.Registerer = reg

	c, err := bootstrap.Build(ctx, cfg, logger, opts)
	if err != nil {
		return nil, err
	}

	sessions := handlers.NewSessionRegistry(c.NewEngine, logger)
	health := handlers.NewHealthHandler(Version, sessions, logger)
	for _, chk := range c.Checks {
		health.RegisterCheck(handlers.NewFuncCheck(chk.Name, chk.Check))
	}

	router := server.NewRouter(ctx, server.RouterDependencies{
		Chat:      handlers.NewChatHandler(sessions, logger),
		Health:    health,
		Server:    cfg.Server,
		Collector: c.Collector,
		Tracer:    c.Telemetry.Tracer(),
		Logger:    logger,
	})

	a := &app{
		components: c,
		sessions:   sessions,
		registry:   reg,
		logger:     logger,
	}

	apiCfg := server.ConfigFromServer(cfg.Server, cfg.Server.HTTPPort)
	if so.addr != "" {
		apiCfg.Addr = so.addr
	}
	a.api = server.NewManager("api", router, apiCfg, logger)

	if cfg.Server.MetricsPort > 0 || so.metricsAddr != "" {
		metricsCfg := server.ConfigFromServer(cfg.Server, cfg.Server.MetricsPort)
		if so.metricsAddr != "" {
			metricsCfg.Addr = so.metricsAddr
		}
		a.metrics = server.NewManager("metrics", server.MetricsHandler(reg), metricsCfg, logger)
	}
	return a, nil
}

// run 阻塞到 ctx 取消或任一服务异常退出；一个服务失败会停止另一个
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.api.Run(gctx) })
	if a.metrics != nil {
		g.Go(func() error { return a.metrics.Run(gctx) })
	}
	if a.reloader != nil {
		g.Go(func() error { return a.reloader.Run(gctx) })
	}
	return g.Wait()
}

// logLevelReloader 日志级别即时生效，其他配置段的变化只提示需要重启
func logLevelReloader(level zap.AtomicLevel, logger *zap.Logger) config.ReloadCallback {
	return func(oldConfig, newConfig *config.Config) {
		for _, section := range config.ChangedSections(oldConfig, newConfig) {
			if section != "log" {
				logger.Warn("config section changed, restart to apply", zap.String("section", section))
			}
		}
		if oldConfig.Log.Level == newConfig.Log.Level {
			return
		}
		if err := level.UnmarshalText([]byte(newConfig.Log.Level)); err != nil {
			logger.Warn("ignoring invalid log level", zap.String("level", newConfig.Log.Level), zap.Error(err))
			return
		}
		logger.Info("log level changed", zap.String("level", newConfig.Log.Level))
	}
}

func (a *app) close() {
	if err := a.components.Close(); err != nil {
		a.logger.Warn("close components", zap.Error(err))
	}
}
