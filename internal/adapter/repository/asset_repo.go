package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"asset-orchestrator/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type assetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(pool *pgxpool.Pool) domain.AssetRepository {
	return &assetRepository{pool: pool}
}

type dbExecutor interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *assetRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

func (r *assetRepository) Insert(ctx context.Context, asset *domain.Asset) error {
	query := `
		INSERT INTO assets (id, description, metadata, status, acquired_at, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	metadataBytes, err := json.Marshal(asset.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.getExecutor(ctx).Exec(ctx, query,
		asset.ID,
		asset.Description,
		metadataBytes,
		asset.Status,
		asset.AcquiredAt,
		asset.Embedding,
		asset.CreatedAt,
		asset.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

func (r *assetRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE assets
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	tag, err := r.getExecutor(ctx).Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update asset status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAssetNotFound
	}
	return nil
}

func (r *assetRepository) CountEligible(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM assets WHERE status = $1`

	var count int
	if err := r.getExecutor(ctx).QueryRow(ctx, query, domain.AssetStatusApproved).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count eligible assets: %w", err)
	}
	return count, nil
}

// Search performs cosine similarity search over approved assets. Score is
// 1 - cosine distance, so higher is more similar.
func (r *assetRepository) Search(ctx context.Context, queryVector []float32, topK int) ([]domain.AssetMatch, error) {
	query := `
		SELECT id, description, metadata, status, acquired_at, created_at, updated_at,
		       1 - (embedding <=> $1) AS score
		FROM assets
		WHERE status = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(queryVector), domain.AssetStatusApproved, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	defer rows.Close()

	var matches []domain.AssetMatch
	for rows.Next() {
		var m domain.AssetMatch
		var metadataBytes []byte
		if err := rows.Scan(
			&m.Asset.ID,
			&m.Asset.Description,
			&metadataBytes,
			&m.Asset.Status,
			&m.Asset.AcquiredAt,
			&m.Asset.CreatedAt,
			&m.Asset.UpdatedAt,
			&m.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan asset match: %w", err)
		}
		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &m.Asset.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return matches, nil
}

// EmbeddingDimension reads the declared dimension of the embedding column,
// used at startup to catch a schema/model mismatch before serving traffic.
func (r *assetRepository) EmbeddingDimension(ctx context.Context) (int, error) {
	query := `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'assets'::regclass
		  AND attname = 'embedding'
	`
	var dim int
	if err := r.pool.QueryRow(ctx, query).Scan(&dim); err != nil {
		return 0, fmt.Errorf("failed to read embedding column dimension: %w", err)
	}
	return dim, nil
}
