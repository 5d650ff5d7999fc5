package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"asset-orchestrator/internal/domain"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// JobTypeIngestAsset is the queue job type for asset ingestion.
const JobTypeIngestAsset = "ingest_asset"

// IngestRequest carries one asset submission. ImageBase64 is optional when
// Description is supplied; Description is derived from the image otherwise.
type IngestRequest struct {
	ImageBase64 string            `json:"image_base64,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	AcquiredAt  time.Time         `json:"acquired_at"`
}

// IngestAssetUsecase handles the asynchronous ingestion workflow: submissions
// are queued, and the worker describes, embeds, and stores each asset.
type IngestAssetUsecase interface {
	// Enqueue validates the request and stores an ingestion job. Returns
	// the job ID for status correlation.
	Enqueue(ctx context.Context, req IngestRequest) (uuid.UUID, error)

	// Process executes one queued ingestion job end to end.
	Process(ctx context.Context, job *domain.IngestJob) error

	// Approve transitions a pending asset into the searchable set.
	Approve(ctx context.Context, assetID uuid.UUID) error
}

type ingestAssetUsecase struct {
	jobs      domain.IngestJobRepository
	assets    domain.AssetRepository
	txManager domain.TransactionManager
	describer domain.ImageDescriber
	embedder  domain.QueryEmbedder
	logger    *slog.Logger
}

func NewIngestAssetUsecase(
	jobs domain.IngestJobRepository,
	assets domain.AssetRepository,
	txManager domain.TransactionManager,
	describer domain.ImageDescriber,
	embedder domain.QueryEmbedder,
	logger *slog.Logger,
) IngestAssetUsecase {
	return &ingestAssetUsecase{
		jobs:      jobs,
		assets:    assets,
		txManager: txManager,
		describer: describer,
		embedder:  embedder,
		logger:    logger,
	}
}

func (u *ingestAssetUsecase) Enqueue(ctx context.Context, req IngestRequest) (uuid.UUID, error) {
	if strings.TrimSpace(req.Description) == "" && strings.TrimSpace(req.ImageBase64) == "" {
		return uuid.Nil, fmt.Errorf("either description or image_base64 is required")
	}
	if req.AcquiredAt.IsZero() {
		return uuid.Nil, fmt.Errorf("acquired_at is required")
	}

	now := time.Now()
	job := &domain.IngestJob{
		ID:      uuid.New(),
		JobType: JobTypeIngestAsset,
		Payload: map[string]interface{}{
			"image_base64": req.ImageBase64,
			"description":  req.Description,
			"metadata":     req.Metadata,
			"acquired_at":  req.AcquiredAt.Format(time.RFC3339),
		},
		Status:    "new",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := u.jobs.Enqueue(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue ingest job: %w", err)
	}

	u.logger.Info("ingest_job_enqueued", slog.String("job_id", job.ID.String()))
	return job.ID, nil
}

func (u *ingestAssetUsecase) Process(ctx context.Context, job *domain.IngestJob) error {
	req, err := requestFromPayload(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid job payload: %w", err)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description, err = u.describer.Describe(ctx, req.ImageBase64)
		if err != nil {
			return fmt.Errorf("failed to describe image: %w", err)
		}
	}

	vector, err := u.embedder.Embed(ctx, description)
	if err != nil {
		return fmt.Errorf("failed to embed description: %w", err)
	}

	now := time.Now()
	asset := &domain.Asset{
		ID:          uuid.New(),
		Description: description,
		Metadata:    req.Metadata,
		Status:      domain.AssetStatusPending,
		AcquiredAt:  req.AcquiredAt,
		Embedding:   pgvector.NewVector(vector),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		return u.assets.Insert(ctx, asset)
	})
	if err != nil {
		return fmt.Errorf("failed to store asset: %w", err)
	}

	u.logger.Info("asset_ingested",
		slog.String("job_id", job.ID.String()),
		slog.String("asset_id", asset.ID.String()))
	return nil
}

func (u *ingestAssetUsecase) Approve(ctx context.Context, assetID uuid.UUID) error {
	if err := u.assets.UpdateStatus(ctx, assetID, domain.AssetStatusApproved); err != nil {
		return err
	}
	u.logger.Info("asset_approved", slog.String("asset_id", assetID.String()))
	return nil
}

func requestFromPayload(payload map[string]interface{}) (IngestRequest, error) {
	var req IngestRequest
	if s, ok := payload["image_base64"].(string); ok {
		req.ImageBase64 = s
	}
	if s, ok := payload["description"].(string); ok {
		req.Description = s
	}
	if m, ok := payload["metadata"].(map[string]interface{}); ok {
		req.Metadata = make(map[string]string, len(m))
		for k, v := range m {
			if s, ok := v.(string); ok {
				req.Metadata[k] = s
			}
		}
	}
	raw, ok := payload["acquired_at"].(string)
	if !ok {
		return req, fmt.Errorf("acquired_at missing from payload")
	}
	acquiredAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return req, fmt.Errorf("acquired_at is not RFC3339: %w", err)
	}
	req.AcquiredAt = acquiredAt
	return req, nil
}
