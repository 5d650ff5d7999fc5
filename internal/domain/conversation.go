package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry in an identity's conversation log.
type Turn struct {
	ID        uuid.UUID
	Identity  string
	Role      string
	Text      string
	CreatedAt time.Time
}

// ConversationRepository is the append-only per-identity conversation log.
// Append is best-effort from the pipeline's point of view: callers log
// failures and continue.
type ConversationRepository interface {
	Append(ctx context.Context, identity, role, text string) error
	ListByIdentity(ctx context.Context, identity string, limit int) ([]Turn, error)
	DeleteByIdentity(ctx context.Context, identity string) error
}
