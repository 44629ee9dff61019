package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/searchstack/hybridd/internal/adapters/http"
	"github.com/searchstack/hybridd/internal/bootstrap"
	"github.com/searchstack/hybridd/internal/config"
	"github.com/searchstack/hybridd/internal/core/usecase"
	"github.com/searchstack/hybridd/internal/observability/logging"
	"github.com/searchstack/hybridd/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	backend := metrics.InstrumentBackend(app.Backend, serverMetrics, "api")
	searchUC := usecase.NewHybridSearchUseCase(backend, logger)
	router := httpadapter.NewRouter(
		app.Config,
		app.Profiles,
		searchUC,
		app.IngestUC,
		app.Repo,
		app.Embedder,
		serverMetrics,
	)
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", "error", err)
	}
}
