// Package app wires the application components together: database pool,
// knowledge store, extraction registry, analysis agent, embedder, indexing
// pipeline and search engine. It is the only package that knows how
// everything fits; commands consume the assembled App.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvid-labs/corpus/db"
	"github.com/corvid-labs/corpus/internal/analysis"
	"github.com/corvid-labs/corpus/internal/config"
	"github.com/corvid-labs/corpus/internal/extract"
	"github.com/corvid-labs/corpus/internal/ingest"
	"github.com/corvid-labs/corpus/internal/knowledge"
	"github.com/corvid-labs/corpus/internal/search"
)

// App holds the assembled components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Store    *knowledge.Store
	Pipeline *ingest.Pipeline
	Engine   *search.Engine
}

// New builds the application. Migrations run before the pool is handed out,
// so components never see a stale schema. The returned cleanup function
// closes the pool.
//
// The analysis agent and the embedder are both optional: a missing API key
// or disabled config degrades ingestion to extract-and-store and search to
// lexical-only, it never blocks startup.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := knowledge.Connect(ctx, cfg.PostgresURL())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	cleanup := pool.Close

	store := knowledge.NewStore(pool, logger)
	registry := extract.NewRegistry(logger)

	var (
		pipelineEmbedder ingest.Embedder
		searchEmbedder   search.Embedder
	)
	if cfg.EmbeddingEnabled {
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		ae := ingest.NewAIEmbedder(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel))
		pipelineEmbedder = ae
		searchEmbedder = ae
		logger.Debug("embedder initialized", "model", cfg.EmbedderModel)
	} else {
		logger.Info("embeddings disabled, search will be lexical-only")
	}

	var analyzer analysis.Analyzer
	if cfg.AnalysisModel != "" {
		ga, err := analysis.NewGeminiAnalyzer(ctx, cfg.AnalysisModel, cfg.AnalysisRequestsPerMin, logger)
		if err != nil {
			logger.Warn("analysis agent unavailable, indexing without enrichment", "error", err)
		} else {
			analyzer = ga
		}
	}

	pipeline := ingest.NewPipeline(registry, store, analyzer, pipelineEmbedder, ingest.Options{
		AnalysisTimeout: time.Duration(cfg.AnalysisTimeoutSeconds) * time.Second,
		TagFromTopics:   cfg.TagFromTopics,
	}, logger)

	engine := search.NewEngine(store, searchEmbedder, search.Options{
		SemanticWeight: float32(cfg.SemanticWeight),
		DefaultLimit:   int32(cfg.SearchLimit),
		MaxLimit:       config.MaxSearchLimit,
	}, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Pool:     pool,
		Store:    store,
		Pipeline: pipeline,
		Engine:   engine,
	}, cleanup, nil
}
