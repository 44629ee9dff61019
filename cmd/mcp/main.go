package main

import (
	"log/slog"
	"os"

	mcpadapter "github.com/searchstack/hybridd/internal/adapters/mcp"
	"github.com/searchstack/hybridd/internal/config"
	"github.com/searchstack/hybridd/internal/core/usecase"
	"github.com/searchstack/hybridd/internal/infrastructure/backend/vespa"
	"github.com/searchstack/hybridd/internal/infrastructure/embedding/ollama"
	"github.com/searchstack/hybridd/internal/infrastructure/resilience"
)

// The stdio transport owns stdout, so logs go to stderr.
func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("service", "mcp")

	profiles, err := config.LoadSearchProfiles(cfg.SearchProfilesFile)
	if err != nil {
		logger.Error("load search profiles failed", "error", err)
		os.Exit(1)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	embedder := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor)
	backend := vespa.New(cfg.VespaQueryURL, cfg.VespaDocumentURL, cfg.VespaNamespace, cfg.VespaDocType, executor)
	searchUC := usecase.NewHybridSearchUseCase(backend, logger)

	server := mcpadapter.NewServer(cfg, profiles, searchUC, embedder, logger)
	if err := server.Serve(); err != nil {
		logger.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}
