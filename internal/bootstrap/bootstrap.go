package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/searchstack/hybridd/internal/config"
	"github.com/searchstack/hybridd/internal/core/ports"
	"github.com/searchstack/hybridd/internal/core/usecase"
	"github.com/searchstack/hybridd/internal/infrastructure/backend/vespa"
	"github.com/searchstack/hybridd/internal/infrastructure/chunking"
	"github.com/searchstack/hybridd/internal/infrastructure/embedding/ollama"
	"github.com/searchstack/hybridd/internal/infrastructure/extractor"
	pdfextractor "github.com/searchstack/hybridd/internal/infrastructure/extractor/pdf"
	"github.com/searchstack/hybridd/internal/infrastructure/extractor/plaintext"
	"github.com/searchstack/hybridd/internal/infrastructure/extractor/spreadsheet"
	"github.com/searchstack/hybridd/internal/infrastructure/queue/nats"
	"github.com/searchstack/hybridd/internal/infrastructure/repository/postgres"
	"github.com/searchstack/hybridd/internal/infrastructure/resilience"
	"github.com/searchstack/hybridd/internal/infrastructure/storage/localfs"
)

type App struct {
	Config   config.Config
	Profiles config.SearchProfiles

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	Embedder ports.Embedder
	Backend  ports.BackendExecutor

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	SearchUC  ports.HybridSearcher

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	profiles, err := config.LoadSearchProfiles(cfg.SearchProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("load search profiles: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor)
	backend := vespa.New(cfg.VespaQueryURL, cfg.VespaDocumentURL, cfg.VespaNamespace, cfg.VespaDocType, executor)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(plaintext.NewExtractor(storage))
	extract.Register(pdfextractor.NewExtractor(storage), ".pdf")
	extract.Register(spreadsheet.NewExtractor(storage), ".xlsx", ".xlsm", ".xltx", ".xltm")

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extract, chunker, embedder, backend)
	searchUC := usecase.NewHybridSearchUseCase(backend, logger)

	return &App{
		Config:   cfg,
		Profiles: profiles,

		Queue:    queue,
		Repo:     repo,
		Embedder: embedder,
		Backend:  backend,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		SearchUC:  searchUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
