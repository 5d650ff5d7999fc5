package repository

import (
	"context"
	"fmt"
	"time"

	"asset-orchestrator/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(pool *pgxpool.Pool) domain.ConversationRepository {
	return &conversationRepository{pool: pool}
}

func (r *conversationRepository) Append(ctx context.Context, identity, role, text string) error {
	query := `
		INSERT INTO conversation_turns (id, identity, role, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, uuid.New(), identity, role, text, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}

func (r *conversationRepository) ListByIdentity(ctx context.Context, identity string, limit int) ([]domain.Turn, error) {
	query := `
		SELECT id, identity, role, text, created_at
		FROM conversation_turns
		WHERE identity = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		if err := rows.Scan(&t.ID, &t.Identity, &t.Role, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	// Reverse to chronological order so callers read oldest first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (r *conversationRepository) DeleteByIdentity(ctx context.Context, identity string) error {
	query := `DELETE FROM conversation_turns WHERE identity = $1`
	if _, err := r.pool.Exec(ctx, query, identity); err != nil {
		return fmt.Errorf("failed to delete conversation turns: %w", err)
	}
	return nil
}
