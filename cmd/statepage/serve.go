package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/config"
	"github.com/pitabwire/statepage/internal/observability"
	"github.com/pitabwire/statepage/internal/pages"
	"github.com/pitabwire/statepage/internal/render"
	"github.com/pitabwire/statepage/internal/server"
	"github.com/pitabwire/statepage/internal/session"
	"github.com/pitabwire/statepage/internal/transport"
)

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (defaults and environment only when empty)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "statepage", version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	var metrics *observability.Metrics
	var metricsHandler http.Handler
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(prometheus.DefaultRegisterer)
		metricsHandler = observability.Handler()
	}

	store, closeStore, err := session.New(ctx, cfg.Session, logger)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer closeStore()
	if p, ok := store.(session.Purger); ok {
		// Registered after closeStore so the purger is gone before the pool closes.
		stopPurger := server.StartPurger(ctx, p, cfg.Session.PurgeInterval, logger)
		defer stopPurger()
	}
	store = session.Instrument(store, metrics)

	engine := render.NewEngine(cfg.Templates, metrics)
	globals := server.NewGlobals()
	adapter := &transport.Adapter{
		Engine:       engine,
		Sessions:     store,
		Metrics:      metrics,
		Logger:       logger,
		Datastar:     cfg.Datastar,
		MaxFormBytes: cfg.Server.MaxFormBytes,
	}
	routes := pages.Routes(adapter, cfg.Auth, globals, logger)
	if err := engine.Check(templateNames(engine, routes)...); err != nil {
		logger.Warn("templates failed to compile", zap.Error(err))
	}

	handler := transport.New(transport.Dependencies{
		Config:         cfg,
		Logger:         logger,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		Ready: observability.ReadinessChecks{
			Templates:    engine,
			Stopping:     globals.StopRequested,
			SessionStore: store,
		},
		Stop:   globals.RequestStop,
		Routes: routes,
	})

	logger.Info("statepage starting",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("router", cfg.Server.Router),
		zap.String("session_driver", store.Driver()),
		zap.Int("pages", len(routes)),
	)
	runErr := server.New(cfg.Server, handler, globals, logger).Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("statepage stopped")
	return nil
}

// templateNames lists every template the routes render, including the
// Datastar fragments that exist.
func templateNames(engine *render.Engine, routes []transport.Route) []string {
	names := pages.Templates(routes)
	for _, n := range pages.Templates(routes) {
		if engine.Exists(n + transport.PatchTemplateSuffix) {
			names = append(names, n+transport.PatchTemplateSuffix)
		}
	}
	return names
}
