package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"salesdash/internal/config"
	"salesdash/internal/middleware"
	"salesdash/internal/observability"
	"salesdash/internal/server"
	"salesdash/internal/services"
	"salesdash/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	loadTimeout   = 30 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"data_file", cfg.Data.CSVFile,
	)

	store := services.NewStore(cfg.Data.CSVFile, cfg.Data.SyntheticRows, logger)

	loadCtx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	if err := store.Load(loadCtx); err != nil {
		cancel()
		logger.Error("failed to load sales data", "error", err)
		os.Exit(1)
	}
	cancel()

	metrics := observability.NewMetrics()
	metrics.DatasetRecords.Set(float64(len(store.Snapshot().Records)))

	agg := services.NewAggregator(store, cfg.Analytics.DefaultLimit)
	detector := services.NewDetector(store, cfg.Analytics)
	insights := services.NewInsightGenerator(store, agg, cfg.Analytics)

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.Data.WatchFile {
		go func() {
			if err := store.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
				logger.Warn("data file watcher stopped", "error", err)
			}
		}()
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(store, agg, detector, insights, metrics, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.Metrics(metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping data file watcher")
		stopWatch()
		return nil
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
