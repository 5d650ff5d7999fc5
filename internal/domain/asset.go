package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ErrAssetNotFound is returned when an operation targets an asset that
// does not exist.
var ErrAssetNotFound = errors.New("asset not found")

// Asset statuses. Only approved assets are visible to search.
const (
	AssetStatusPending  = "pending"
	AssetStatusApproved = "approved"
	AssetStatusRejected = "rejected"
)

// Asset represents a single image record in the library.
type Asset struct {
	ID          uuid.UUID
	Description string
	Metadata    map[string]string
	Status      string
	AcquiredAt  time.Time
	Embedding   pgvector.Vector
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssetMatch couples an asset with the raw cosine-derived similarity score
// returned by the vector index. Scores are in [0,1].
type AssetMatch struct {
	Asset Asset
	Score float32
}

// AssetRepository defines the operations against the asset corpus.
type AssetRepository interface {
	// Insert stores a new asset record.
	Insert(ctx context.Context, asset *Asset) error

	// UpdateStatus transitions an asset's moderation status.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	// CountEligible returns the number of assets currently searchable.
	CountEligible(ctx context.Context) (int, error)

	// Search performs a vector similarity search restricted to approved
	// assets. Results are ordered by descending similarity.
	Search(ctx context.Context, queryVector []float32, topK int) ([]AssetMatch, error)

	// EmbeddingDimension reports the dimensionality of the index's
	// embedding column, for startup configuration checks.
	EmbeddingDimension(ctx context.Context) (int, error)
}
