package usecase

import (
	"context"

	"asset-orchestrator/internal/domain"
)

// DefaultHistoryLimit caps the number of turns returned per history request.
const DefaultHistoryLimit = 50

// ConversationUsecase exposes read and delete access to a caller's
// conversation history.
type ConversationUsecase interface {
	History(ctx context.Context, identity string, limit int) ([]domain.Turn, error)
	Clear(ctx context.Context, identity string) error
}

type conversationUsecase struct {
	conversations domain.ConversationRepository
}

func NewConversationUsecase(conversations domain.ConversationRepository) ConversationUsecase {
	return &conversationUsecase{conversations: conversations}
}

func (u *conversationUsecase) History(ctx context.Context, identity string, limit int) ([]domain.Turn, error) {
	if identity == "" {
		return nil, ErrNoIdentity
	}
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return u.conversations.ListByIdentity(ctx, identity, limit)
}

func (u *conversationUsecase) Clear(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrNoIdentity
	}
	return u.conversations.DeleteByIdentity(ctx, identity)
}
