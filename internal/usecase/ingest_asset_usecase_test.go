package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"asset-orchestrator/internal/domain"
	"asset-orchestrator/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJobRepo struct {
	enqueued []*domain.IngestJob
}

func (s *stubJobRepo) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	s.enqueued = append(s.enqueued, job)
	return nil
}

func (s *stubJobRepo) AcquireNextJob(ctx context.Context) (*domain.IngestJob, error) {
	return nil, nil
}

func (s *stubJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	return nil
}

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type capturingAssetRepo struct {
	stubAssetRepo
	inserted []*domain.Asset
	statuses map[uuid.UUID]string
}

func (c *capturingAssetRepo) Insert(ctx context.Context, asset *domain.Asset) error {
	c.inserted = append(c.inserted, asset)
	return nil
}

func (c *capturingAssetRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if c.statuses == nil {
		c.statuses = make(map[uuid.UUID]string)
	}
	c.statuses[id] = status
	return nil
}

type stubDescriber struct {
	description string
	calls       int
}

func (s *stubDescriber) Describe(ctx context.Context, imageBase64 string) (string, error) {
	s.calls++
	return s.description, nil
}

func newTestIngestUsecase(jobs *stubJobRepo, assets *capturingAssetRepo, describer *stubDescriber, embedder *stubEmbedder) usecase.IngestAssetUsecase {
	testLogger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return usecase.NewIngestAssetUsecase(jobs, assets, passthroughTxManager{}, describer, embedder, testLogger)
}

func TestIngestAssetUsecase_Enqueue(t *testing.T) {
	jobs := &stubJobRepo{}
	u := newTestIngestUsecase(jobs, &capturingAssetRepo{}, &stubDescriber{}, &stubEmbedder{})

	acquiredAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	jobID, err := u.Enqueue(context.Background(), usecase.IngestRequest{
		Description: "a lighthouse at dusk",
		AcquiredAt:  acquiredAt,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, jobID)

	require.Len(t, jobs.enqueued, 1)
	job := jobs.enqueued[0]
	assert.Equal(t, usecase.JobTypeIngestAsset, job.JobType)
	assert.Equal(t, "new", job.Status)
	assert.Equal(t, "a lighthouse at dusk", job.Payload["description"])
	assert.Equal(t, acquiredAt.Format(time.RFC3339), job.Payload["acquired_at"])
}

func TestIngestAssetUsecase_Enqueue_RejectsEmptySubmission(t *testing.T) {
	u := newTestIngestUsecase(&stubJobRepo{}, &capturingAssetRepo{}, &stubDescriber{}, &stubEmbedder{})

	_, err := u.Enqueue(context.Background(), usecase.IngestRequest{
		AcquiredAt: time.Now(),
	})
	assert.Error(t, err)

	_, err = u.Enqueue(context.Background(), usecase.IngestRequest{
		Description: "no timestamp",
	})
	assert.Error(t, err)
}

func TestIngestAssetUsecase_Process_WithDescription(t *testing.T) {
	assets := &capturingAssetRepo{}
	describer := &stubDescriber{description: "should not be used"}
	embedder := &stubEmbedder{vector: []float32{0.1, 0.2}}
	u := newTestIngestUsecase(&stubJobRepo{}, assets, describer, embedder)

	job := &domain.IngestJob{
		ID:      uuid.New(),
		JobType: usecase.JobTypeIngestAsset,
		Payload: map[string]interface{}{
			"description": "a lighthouse at dusk",
			"metadata":    map[string]interface{}{"camera": "X100V"},
			"acquired_at": "2026-01-15T10:00:00Z",
		},
	}

	require.NoError(t, u.Process(context.Background(), job))

	assert.Equal(t, 0, describer.calls, "vision model must not run when a description is supplied")
	require.Len(t, assets.inserted, 1)
	asset := assets.inserted[0]
	assert.Equal(t, "a lighthouse at dusk", asset.Description)
	assert.Equal(t, domain.AssetStatusPending, asset.Status)
	assert.Equal(t, map[string]string{"camera": "X100V"}, asset.Metadata)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), asset.AcquiredAt.UTC())
}

func TestIngestAssetUsecase_Process_DerivesDescriptionFromImage(t *testing.T) {
	assets := &capturingAssetRepo{}
	describer := &stubDescriber{description: "a red barn in a snowy field"}
	u := newTestIngestUsecase(&stubJobRepo{}, assets, describer, &stubEmbedder{vector: []float32{0.1}})

	job := &domain.IngestJob{
		ID:      uuid.New(),
		JobType: usecase.JobTypeIngestAsset,
		Payload: map[string]interface{}{
			"image_base64": "aGVsbG8=",
			"acquired_at":  "2026-01-15T10:00:00Z",
		},
	}

	require.NoError(t, u.Process(context.Background(), job))

	assert.Equal(t, 1, describer.calls)
	require.Len(t, assets.inserted, 1)
	assert.Equal(t, "a red barn in a snowy field", assets.inserted[0].Description)
}

func TestIngestAssetUsecase_Process_RejectsBadTimestamp(t *testing.T) {
	u := newTestIngestUsecase(&stubJobRepo{}, &capturingAssetRepo{}, &stubDescriber{}, &stubEmbedder{vector: []float32{0.1}})

	job := &domain.IngestJob{
		ID:      uuid.New(),
		JobType: usecase.JobTypeIngestAsset,
		Payload: map[string]interface{}{
			"description": "whatever",
			"acquired_at": "January 15th",
		},
	}

	assert.Error(t, u.Process(context.Background(), job))
}

func TestIngestAssetUsecase_Approve(t *testing.T) {
	assets := &capturingAssetRepo{}
	u := newTestIngestUsecase(&stubJobRepo{}, assets, &stubDescriber{}, &stubEmbedder{})

	assetID := uuid.New()
	require.NoError(t, u.Approve(context.Background(), assetID))
	assert.Equal(t, domain.AssetStatusApproved, assets.statuses[assetID])
}
