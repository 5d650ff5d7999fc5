package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"asset-orchestrator/internal/adapter/llm"
	"asset-orchestrator/internal/adapter/repository"
	"asset-orchestrator/internal/domain"
	"asset-orchestrator/internal/infra/config"
	"asset-orchestrator/internal/infra/httpclient"
	"asset-orchestrator/internal/ratelimit"
	"asset-orchestrator/internal/usecase"
	"asset-orchestrator/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	AssetRepo        domain.AssetRepository
	ConversationRepo domain.ConversationRepository
	JobRepo          domain.IngestJobRepository

	// Usecases
	SearchUsecase       usecase.SearchUsecase
	ConversationUsecase usecase.ConversationUsecase
	IngestUsecase       usecase.IngestAssetUsecase

	// Worker
	Worker *worker.IngestWorker

	embedderDimension int
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) *ApplicationComponents {
	// Repositories
	assetRepo := repository.NewAssetRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	jobRepo := repository.NewIngestJobRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	// Shared HTTP clients with connection pooling
	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.Embedder.TimeoutSeconds) * time.Second)
	generatorHTTP := httpclient.NewPooledClient(time.Duration(cfg.Generator.TimeoutSeconds) * time.Second)
	visionHTTP := httpclient.NewPooledClient(time.Duration(cfg.Vision.TimeoutSeconds) * time.Second)

	// External clients
	embedder := llm.NewOllamaEmbedder(cfg.Embedder.URL, cfg.Embedder.Model, cfg.Embedder.Dimension, embedderHTTP)
	generator := llm.NewOllamaGenerator(cfg.Generator.URL, cfg.Generator.Model, generatorHTTP)
	vision := llm.NewOllamaVision(cfg.Vision.URL, cfg.Vision.Model, visionHTTP)

	// Rate limiter
	limiter := ratelimit.New(
		cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute,
	)

	// Search usecase
	searchUsecase := usecase.NewSearchUsecase(
		limiter,
		embedder,
		assetRepo,
		usecase.NewXMLPromptBuilder(),
		generator,
		usecase.NewOutputValidator(),
		conversationRepo,
		usecase.SearchConfig{
			TopK: cfg.Search.TopK,
			Ranker: usecase.RankerConfig{
				Alpha:         cfg.Search.Alpha,
				RecencyWindow: time.Duration(cfg.Search.RecencyWindowDays) * 24 * time.Hour,
				TopN:          cfg.Search.TopN,
			},
			PromptVersion: cfg.Search.PromptVersion,
			MaxTokens:     cfg.Generator.MaxTokens,
			CacheSize:     cfg.Cache.Size,
			CacheTTL:      time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		},
		log,
	)

	conversationUsecase := usecase.NewConversationUsecase(conversationRepo)
	ingestUsecase := usecase.NewIngestAssetUsecase(jobRepo, assetRepo, txManager, vision, embedder, log)

	ingestWorker := worker.NewIngestWorker(jobRepo, ingestUsecase, log)

	return &ApplicationComponents{
		AssetRepo:           assetRepo,
		ConversationRepo:    conversationRepo,
		JobRepo:             jobRepo,
		SearchUsecase:       searchUsecase,
		ConversationUsecase: conversationUsecase,
		IngestUsecase:       ingestUsecase,
		Worker:              ingestWorker,
		embedderDimension:   cfg.Embedder.Dimension,
	}
}

// VerifyEmbeddingDimension checks that the configured embedder dimension
// matches the vector column in the database. A mismatch would make every
// insert or search fail, so the server refuses to start on one.
func (c *ApplicationComponents) VerifyEmbeddingDimension(ctx context.Context) error {
	dbDim, err := c.AssetRepo.EmbeddingDimension(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify embedding dimension: %w", err)
	}
	if dbDim != c.embedderDimension {
		return fmt.Errorf("embedding dimension mismatch: database column is %d, embedder configured for %d", dbDim, c.embedderDimension)
	}
	return nil
}
