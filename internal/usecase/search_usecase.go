package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"asset-orchestrator/internal/domain"
	"asset-orchestrator/internal/ratelimit"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Stage labels, emitted in pipeline order. The rate-limit decision happens
// before the stream opens and has no label.
const (
	stageEmbedding  = "embedding query"
	stageCounting   = "counting eligible assets"
	stageSearching  = "searching index"
	stageRanking    = "ranking results"
	stageGenerating = "generating response"
)

// genericFailureDetail is the only error detail callers ever see for a
// dependency fault; specifics stay in the logs.
const genericFailureDetail = "search failed, please try again later"

// SearchConfig carries the policy knobs for the search pipeline.
type SearchConfig struct {
	TopK          int
	Ranker        RankerConfig
	PromptVersion string
	MaxTokens     int
	CacheSize     int
	CacheTTL      time.Duration
}

type searchUsecase struct {
	limiter       *ratelimit.Limiter
	embedder      domain.QueryEmbedder
	assets        domain.AssetRepository
	promptBuilder PromptBuilder
	llmClient     domain.LLMClient
	validator     OutputValidator
	conversations domain.ConversationRepository
	cache         *expirable.LRU[string, *SearchOutput]
	cfg           SearchConfig
	logger        *slog.Logger
	now           func() time.Time
}

// SearchOption configures optional behavior of the search usecase.
type SearchOption func(*searchUsecase)

// WithClock overrides the ranking time source, for tests.
func WithClock(now func() time.Time) SearchOption {
	return func(u *searchUsecase) {
		u.now = now
	}
}

// NewSearchUsecase wires together the components of the search pipeline.
func NewSearchUsecase(
	limiter *ratelimit.Limiter,
	embedder domain.QueryEmbedder,
	assets domain.AssetRepository,
	promptBuilder PromptBuilder,
	llmClient domain.LLMClient,
	validator OutputValidator,
	conversations domain.ConversationRepository,
	cfg SearchConfig,
	logger *slog.Logger,
	opts ...SearchOption,
) SearchUsecase {
	u := &searchUsecase{
		limiter:       limiter,
		embedder:      embedder,
		assets:        assets,
		promptBuilder: promptBuilder,
		llmClient:     llmClient,
		validator:     validator,
		conversations: conversations,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
	if cfg.CacheSize > 0 {
		u.cache = expirable.NewLRU[string, *SearchOutput](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *searchUsecase) Stream(ctx context.Context, input SearchInput) (<-chan ProgressEvent, error) {
	if strings.TrimSpace(input.Identity) == "" {
		return nil, ErrNoIdentity
	}
	query, ok := latestUserTurn(input.Turns)
	if !ok {
		return nil, ErrNoUserTurn
	}

	// Rate-limit gate: pre-stream, no downstream stage runs on rejection.
	res := u.limiter.Check(input.Identity)
	if !res.Allowed {
		u.logger.Warn("search_rate_limited",
			slog.String("identity", input.Identity),
			slog.Int("limit", res.Limit),
			slog.Time("reset_at", res.ResetAt))
		return nil, &RateLimitError{Limit: res.Limit, ResetAt: res.ResetAt}
	}

	events := make(chan ProgressEvent, 8)
	go u.run(ctx, events, input.Identity, query)
	return events, nil
}

// run executes the pipeline stages in order and guarantees exactly one
// terminal event before the channel closes. Every stage failure converges
// here; stages never report errors through any other path.
func (u *searchUsecase) run(ctx context.Context, events chan<- ProgressEvent, identity, query string) {
	defer close(events)

	searchSetID := uuid.NewString()
	log := u.logger.With(
		slog.String("identity", identity),
		slog.String("search_set_id", searchSetID))

	// History must reflect the user's input even if the pipeline fails
	// past this point. Append failures are logged and absorbed.
	u.appendTurn(ctx, log, identity, domain.RoleUser, query)

	if u.cache != nil {
		if cached, ok := u.cache.Get(query); ok {
			log.Info("search_cache_hit")
			u.appendTurn(ctx, log, identity, domain.RoleAssistant, cached.Message)
			u.send(ctx, events, ProgressEvent{Kind: ProgressEventKindResult, Result: cached})
			return
		}
	}

	if !u.send(ctx, events, statusEvent(stageEmbedding)) {
		return
	}
	vector, err := u.embedder.Embed(ctx, query)
	if err != nil {
		u.fail(ctx, events, log, stageEmbedding, err)
		return
	}

	if !u.send(ctx, events, statusEvent(stageCounting)) {
		return
	}
	eligible, err := u.assets.CountEligible(ctx)
	if err != nil {
		u.fail(ctx, events, log, stageCounting, err)
		return
	}

	if !u.send(ctx, events, statusEvent(stageSearching)) {
		return
	}
	matches, err := u.assets.Search(ctx, vector, u.cfg.TopK)
	if err != nil {
		u.fail(ctx, events, log, stageSearching, err)
		return
	}

	if !u.send(ctx, events, statusEvent(stageRanking)) {
		return
	}
	candidates := u.toCandidates(matches, log)
	ranked := Rank(candidates, u.now(), u.cfg.Ranker)

	if !u.send(ctx, events, statusEvent(stageGenerating)) {
		return
	}
	output, err := u.generate(ctx, query, ranked)
	if err != nil {
		u.fail(ctx, events, log, stageGenerating, err)
		return
	}
	output.Debug = SearchDebug{
		SearchSetID:   searchSetID,
		PromptVersion: u.cfg.PromptVersion,
		EligibleCount: eligible,
	}

	if u.cache != nil {
		u.cache.Add(query, output)
	}

	// The assistant append is issued before the terminal event; its
	// completion is not ordered relative to the event's delivery.
	u.appendTurn(ctx, log, identity, domain.RoleAssistant, output.Message)

	log.Info("search_completed",
		slog.Int("eligible", eligible),
		slog.Int("matched", len(matches)),
		slog.Int("returned", len(output.Items)))

	u.send(ctx, events, ProgressEvent{Kind: ProgressEventKindResult, Result: output})
}

// generate runs the constrained model call and post-hoc validation, then
// hydrates the selected identifiers back into ranked-order result items.
func (u *searchUsecase) generate(ctx context.Context, query string, ranked []Candidate) (*SearchOutput, error) {
	messages, err := u.promptBuilder.Build(PromptInput{
		Query:         query,
		PromptVersion: u.cfg.PromptVersion,
		Candidates:    ranked,
	})
	if err != nil {
		return nil, err
	}

	resp, err := u.llmClient.Chat(ctx, messages, u.cfg.MaxTokens)
	if err != nil {
		return nil, err
	}

	parsed, err := u.validator.Validate(resp.Text, ranked)
	if err != nil {
		return nil, err
	}

	chosen := make(map[string]string, len(parsed.Items))
	for _, item := range parsed.Items {
		chosen[item.AssetID] = item.Reason
	}

	// Iterate the ranked slice so items stay a subsequence of it.
	items := make([]ResultItem, 0, len(parsed.Items))
	for _, cand := range ranked {
		reason, ok := chosen[cand.AssetID.String()]
		if !ok {
			continue
		}
		items = append(items, ResultItem{
			AssetID:     cand.AssetID,
			Description: cand.Description,
			Metadata:    cand.Metadata,
			AcquiredAt:  cand.AcquiredAt,
			Score:       cand.Combined,
			Reason:      reason,
		})
	}

	return &SearchOutput{
		Message: strings.TrimSpace(parsed.Message),
		Items:   items,
	}, nil
}

func (u *searchUsecase) toCandidates(matches []domain.AssetMatch, log *slog.Logger) []Candidate {
	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		if m.Asset.AcquiredAt.IsZero() {
			log.Warn("candidate_dropped_bad_timestamp", slog.String("asset_id", m.Asset.ID.String()))
			continue
		}
		candidates = append(candidates, Candidate{
			AssetID:     m.Asset.ID,
			Description: m.Asset.Description,
			Metadata:    m.Asset.Metadata,
			AcquiredAt:  m.Asset.AcquiredAt,
			Similarity:  float64(m.Score),
		})
	}
	return candidates
}

func (u *searchUsecase) appendTurn(ctx context.Context, log *slog.Logger, identity, role, text string) {
	if err := u.conversations.Append(ctx, identity, role, text); err != nil {
		log.Warn("conversation_append_failed",
			slog.String("role", role),
			slog.String("error", err.Error()))
	}
}

func (u *searchUsecase) fail(ctx context.Context, events chan<- ProgressEvent, log *slog.Logger, stage string, err error) {
	log.Error("search_stage_failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()))
	u.send(ctx, events, ProgressEvent{Kind: ProgressEventKindError, Detail: genericFailureDetail})
}

// send delivers an event unless the caller has gone away; writes after
// cancellation are suppressed rather than blocking or panicking.
func (u *searchUsecase) send(ctx context.Context, events chan<- ProgressEvent, event ProgressEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}

func statusEvent(label string) ProgressEvent {
	return ProgressEvent{Kind: ProgressEventKindStatus, Label: label}
}

// latestUserTurn extracts the text of the most recent user turn.
func latestUserTurn(turns []TurnInput) (string, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser && strings.TrimSpace(turns[i].Text) != "" {
			return turns[i].Text, true
		}
	}
	return "", false
}
