package assethttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"asset-orchestrator/internal/domain"
	"asset-orchestrator/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// identityHeader carries the caller identity, set by the edge proxy.
const identityHeader = "X-User-ID"

type Handler struct {
	searchUsecase       usecase.SearchUsecase
	conversationUsecase usecase.ConversationUsecase
	ingestUsecase       usecase.IngestAssetUsecase
}

func NewHandler(
	searchUsecase usecase.SearchUsecase,
	conversationUsecase usecase.ConversationUsecase,
	ingestUsecase usecase.IngestAssetUsecase,
) *Handler {
	return &Handler{
		searchUsecase:       searchUsecase,
		conversationUsecase: conversationUsecase,
		ingestUsecase:       ingestUsecase,
	}
}

type searchRequest struct {
	Turns []usecase.TurnInput `json:"turns"`
}

// SearchStream runs the search pipeline and streams progress as SSE.
// Rejections (missing identity, bad request, rate limit) are plain JSON
// errors issued before the stream opens.
// (POST /v1/assets/search)
func (h *Handler) SearchStream(ctx echo.Context) error {
	identity := ctx.Request().Header.Get(identityHeader)
	if identity == "" {
		return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "missing identity"})
	}

	var req searchRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	events, err := h.searchUsecase.Stream(ctx.Request().Context(), usecase.SearchInput{
		Identity: identity,
		Turns:    req.Turns,
	})
	if err != nil {
		var rateLimitErr *usecase.RateLimitError
		switch {
		case errors.As(err, &rateLimitErr):
			return ctx.JSON(http.StatusTooManyRequests, map[string]interface{}{
				"error":    "rate limit exceeded",
				"limit":    rateLimitErr.Limit,
				"reset_at": rateLimitErr.ResetAt.Format(time.RFC3339),
			})
		case errors.Is(err, usecase.ErrNoIdentity):
			return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		case errors.Is(err, usecase.ErrNoUserTurn):
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "search failed"})
		}
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	for event := range events {
		if err := writeSSE(resp, event); err != nil {
			return nil // client went away
		}
		resp.Flush()
	}
	return nil
}

func writeSSE(resp *echo.Response, event usecase.ProgressEvent) error {
	var payload interface{}
	switch event.Kind {
	case usecase.ProgressEventKindStatus:
		payload = map[string]string{"label": event.Label}
	case usecase.ProgressEventKindResult:
		payload = event.Result
	case usecase.ProgressEventKindError:
		payload = map[string]string{"detail": event.Detail}
	default:
		return fmt.Errorf("unknown event kind: %s", event.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event.Kind, data)
	return err
}

type historyTurn struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// History returns the caller's recent conversation turns, oldest first.
// (GET /v1/conversations)
func (h *Handler) History(ctx echo.Context) error {
	identity := ctx.Request().Header.Get(identityHeader)
	if identity == "" {
		return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "missing identity"})
	}

	limit := 0
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = parsed
	}

	turns, err := h.conversationUsecase.History(ctx.Request().Context(), identity, limit)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
	}

	out := make([]historyTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, historyTurn{
			ID:        t.ID,
			Role:      t.Role,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
		})
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{"turns": out})
}

// ClearHistory removes all conversation turns for the caller.
// (DELETE /v1/conversations)
func (h *Handler) ClearHistory(ctx echo.Context) error {
	identity := ctx.Request().Header.Get(identityHeader)
	if identity == "" {
		return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "missing identity"})
	}

	if err := h.conversationUsecase.Clear(ctx.Request().Context(), identity); err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to clear history"})
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Ingest enqueues an asset submission for background processing.
// (POST /internal/assets/ingest)
func (h *Handler) Ingest(ctx echo.Context) error {
	var req usecase.IngestRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	jobID, err := h.ingestUsecase.Enqueue(ctx.Request().Context(), req)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{"job_id": jobID.String(), "status": "queued"})
}

// Approve makes a pending asset searchable.
// (POST /internal/assets/:id/approve)
func (h *Handler) Approve(ctx echo.Context) error {
	assetID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid asset id"})
	}

	if err := h.ingestUsecase.Approve(ctx.Request().Context(), assetID); err != nil {
		if errors.Is(err, domain.ErrAssetNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "asset not found"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to approve asset"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"asset_id": assetID.String(), "status": domain.AssetStatusApproved})
}
