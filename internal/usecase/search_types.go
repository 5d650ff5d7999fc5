package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TurnInput is one prior conversation turn supplied by the caller.
type TurnInput struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SearchInput encapsulates the parameters that drive a search request.
// Only the most recent user turn is used as the query.
type SearchInput struct {
	Identity string
	Turns    []TurnInput
}

// Candidate is the transient, per-request ranking input combining an asset
// record with the similarity score from the vector index.
type Candidate struct {
	AssetID     uuid.UUID
	Description string
	Metadata    map[string]string
	AcquiredAt  time.Time
	Similarity  float64
	Recency     float64
	Combined    float64
}

// ResultItem is one entry of the final ranked result surfaced to the caller.
type ResultItem struct {
	AssetID     uuid.UUID         `json:"asset_id"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	AcquiredAt  time.Time         `json:"acquired_at"`
	Score       float64           `json:"score"`
	Reason      string            `json:"reason,omitempty"`
}

// SearchOutput is the terminal result: a narrative message plus the items
// the generator selected from the ranked candidates.
type SearchOutput struct {
	Message string       `json:"message"`
	Items   []ResultItem `json:"items"`
	Debug   SearchDebug  `json:"debug"`
}

// SearchDebug surfaces metadata that aids troubleshooting.
type SearchDebug struct {
	SearchSetID   string `json:"search_set_id"`
	PromptVersion string `json:"prompt_version"`
	EligibleCount int    `json:"eligible_count"`
}

// ProgressEventKind tags the variants of the progress stream union.
type ProgressEventKind string

const (
	ProgressEventKindStatus ProgressEventKind = "status"
	ProgressEventKindResult ProgressEventKind = "result"
	ProgressEventKindError  ProgressEventKind = "error"
)

// ProgressEvent is one message in the per-request push stream. Status
// events carry Label, the result event carries Result, and the error event
// carries Detail. Exactly one result or error event terminates the stream.
type ProgressEvent struct {
	Kind   ProgressEventKind
	Label  string
	Result *SearchOutput
	Detail string
}

// SearchUsecase runs the retrieval-and-ranking pipeline for one request.
type SearchUsecase interface {
	// Stream validates and rate-limits the request, then runs the pipeline
	// asynchronously. A non-nil error is a pre-stream rejection; otherwise
	// the returned channel delivers zero or more status events followed by
	// exactly one terminal event, then closes.
	Stream(ctx context.Context, input SearchInput) (<-chan ProgressEvent, error)
}

// Pre-stream rejection errors.
var (
	ErrNoIdentity = errors.New("identity is required")
	ErrNoUserTurn = errors.New("at least one user turn is required")
)

// RateLimitError reports a request refused by the rate limiter, with the
// time at which the caller's window resets.
type RateLimitError struct {
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit of %d requests exceeded, retry after %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}
