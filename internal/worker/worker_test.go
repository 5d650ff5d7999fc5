package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"asset-orchestrator/internal/domain"
	"asset-orchestrator/internal/usecase"
	"asset-orchestrator/internal/worker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeJobRepo struct {
	mu       sync.Mutex
	queue    []*domain.IngestJob
	statuses map[uuid.UUID]string
	errors   map[uuid.UUID]*string
}

func newFakeJobRepo(jobs ...*domain.IngestJob) *fakeJobRepo {
	return &fakeJobRepo{
		queue:    jobs,
		statuses: make(map[uuid.UUID]string),
		errors:   make(map[uuid.UUID]*string),
	}
}

func (f *fakeJobRepo) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, job)
	return nil
}

func (f *fakeJobRepo) AcquireNextJob(ctx context.Context) (*domain.IngestJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, nil
	}
	job := f.queue[0]
	f.queue = f.queue[1:]
	return job, nil
}

func (f *fakeJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	f.errors[id] = errorMessage
	return nil
}

func (f *fakeJobRepo) statusOf(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

type fakeIngestUsecase struct {
	processErr error
}

func (f *fakeIngestUsecase) Enqueue(ctx context.Context, req usecase.IngestRequest) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (f *fakeIngestUsecase) Process(ctx context.Context, job *domain.IngestJob) error {
	return f.processErr
}

func (f *fakeIngestUsecase) Approve(ctx context.Context, assetID uuid.UUID) error { return nil }

func waitForStatus(t *testing.T, repo *fakeJobRepo, id uuid.UUID) string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if status := repo.statusOf(id); status != "" {
			return status
		}
		select {
		case <-deadline:
			t.Fatal("job was never processed")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestIngestWorker_ProcessesQueuedJob(t *testing.T) {
	job := &domain.IngestJob{ID: uuid.New(), JobType: usecase.JobTypeIngestAsset, Status: "new"}
	repo := newFakeJobRepo(job)
	testLogger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	w := worker.NewIngestWorker(repo, &fakeIngestUsecase{}, testLogger)
	w.Start()
	defer w.Stop()

	assert.Equal(t, "completed", waitForStatus(t, repo, job.ID))
}

func TestIngestWorker_RecordsFailure(t *testing.T) {
	job := &domain.IngestJob{ID: uuid.New(), JobType: usecase.JobTypeIngestAsset, Status: "new"}
	repo := newFakeJobRepo(job)
	testLogger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	w := worker.NewIngestWorker(repo, &fakeIngestUsecase{processErr: errors.New("embedder down")}, testLogger)
	w.Start()
	defer w.Stop()

	assert.Equal(t, "failed", waitForStatus(t, repo, job.ID))

	repo.mu.Lock()
	errMsg := repo.errors[job.ID]
	repo.mu.Unlock()
	assert.NotNil(t, errMsg)
	assert.Contains(t, *errMsg, "embedder down")
}

func TestIngestWorker_UnknownJobTypeFails(t *testing.T) {
	job := &domain.IngestJob{ID: uuid.New(), JobType: "mystery", Status: "new"}
	repo := newFakeJobRepo(job)
	testLogger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	w := worker.NewIngestWorker(repo, &fakeIngestUsecase{}, testLogger)
	w.Start()
	defer w.Stop()

	assert.Equal(t, "failed", waitForStatus(t, repo, job.ID))
}
