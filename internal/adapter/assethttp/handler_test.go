package assethttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"asset-orchestrator/internal/adapter/assethttp"
	"asset-orchestrator/internal/domain"
	"asset-orchestrator/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type stubSearchUsecase struct {
	events <-chan usecase.ProgressEvent
	err    error
}

func (s *stubSearchUsecase) Stream(ctx context.Context, input usecase.SearchInput) (<-chan usecase.ProgressEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

type stubConversationUsecase struct {
	turns []domain.Turn
}

func (s *stubConversationUsecase) History(ctx context.Context, identity string, limit int) ([]domain.Turn, error) {
	return s.turns, nil
}

func (s *stubConversationUsecase) Clear(ctx context.Context, identity string) error {
	return nil
}

type stubIngestUsecase struct {
	jobID      uuid.UUID
	enqueueErr error
	approveErr error
}

func (s *stubIngestUsecase) Enqueue(ctx context.Context, req usecase.IngestRequest) (uuid.UUID, error) {
	if s.enqueueErr != nil {
		return uuid.Nil, s.enqueueErr
	}
	return s.jobID, nil
}

func (s *stubIngestUsecase) Process(ctx context.Context, job *domain.IngestJob) error { return nil }

func (s *stubIngestUsecase) Approve(ctx context.Context, assetID uuid.UUID) error {
	return s.approveErr
}

func newSearchContext(e *echo.Echo, body string, identity string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/v1/assets/search", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set("X-User-ID", identity)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_SearchStream(t *testing.T) {
	e := echo.New()

	events := make(chan usecase.ProgressEvent, 3)
	events <- usecase.ProgressEvent{Kind: usecase.ProgressEventKindStatus, Label: "embedding query"}
	events <- usecase.ProgressEvent{Kind: usecase.ProgressEventKindStatus, Label: "searching index"}
	events <- usecase.ProgressEvent{
		Kind: usecase.ProgressEventKindResult,
		Result: &usecase.SearchOutput{
			Message: "one match",
			Items:   []usecase.ResultItem{{AssetID: uuid.New(), Score: 0.8}},
		},
	}
	close(events)

	handler := assethttp.NewHandler(&stubSearchUsecase{events: events}, &stubConversationUsecase{}, &stubIngestUsecase{})

	c, rec := newSearchContext(e, `{"turns":[{"role":"user","text":"sunset"}]}`, "user-1")
	if assert.NoError(t, handler.SearchStream(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

		response := rec.Body.String()
		assert.Contains(t, response, "event: status")
		assert.Contains(t, response, `"label":"embedding query"`)
		assert.Contains(t, response, "event: result")
		assert.Contains(t, response, `"message":"one match"`)
	}
}

func TestHandler_SearchStream_ErrorEvent(t *testing.T) {
	e := echo.New()

	events := make(chan usecase.ProgressEvent, 1)
	events <- usecase.ProgressEvent{Kind: usecase.ProgressEventKindError, Detail: "search failed, please try again later"}
	close(events)

	handler := assethttp.NewHandler(&stubSearchUsecase{events: events}, &stubConversationUsecase{}, &stubIngestUsecase{})

	c, rec := newSearchContext(e, `{"turns":[{"role":"user","text":"sunset"}]}`, "user-1")
	if assert.NoError(t, handler.SearchStream(c)) {
		response := rec.Body.String()
		assert.Contains(t, response, "event: error")
		assert.Contains(t, response, `"detail":"search failed, please try again later"`)
	}
}

func TestHandler_SearchStream_MissingIdentity(t *testing.T) {
	e := echo.New()
	handler := assethttp.NewHandler(&stubSearchUsecase{}, &stubConversationUsecase{}, &stubIngestUsecase{})

	c, rec := newSearchContext(e, `{"turns":[{"role":"user","text":"sunset"}]}`, "")
	if assert.NoError(t, handler.SearchStream(c)) {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestHandler_SearchStream_RateLimited(t *testing.T) {
	e := echo.New()
	resetAt := time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC)
	handler := assethttp.NewHandler(
		&stubSearchUsecase{err: &usecase.RateLimitError{Limit: 20, ResetAt: resetAt}},
		&stubConversationUsecase{},
		&stubIngestUsecase{},
	)

	c, rec := newSearchContext(e, `{"turns":[{"role":"user","text":"sunset"}]}`, "user-1")
	if assert.NoError(t, handler.SearchStream(c)) {
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, float64(20), resp["limit"])
		assert.Equal(t, "2026-05-01T13:00:00Z", resp["reset_at"])
	}
}

func TestHandler_SearchStream_NoUserTurn(t *testing.T) {
	e := echo.New()
	handler := assethttp.NewHandler(
		&stubSearchUsecase{err: usecase.ErrNoUserTurn},
		&stubConversationUsecase{},
		&stubIngestUsecase{},
	)

	c, rec := newSearchContext(e, `{"turns":[]}`, "user-1")
	if assert.NoError(t, handler.SearchStream(c)) {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestHandler_History(t *testing.T) {
	e := echo.New()
	handler := assethttp.NewHandler(&stubSearchUsecase{}, &stubConversationUsecase{
		turns: []domain.Turn{
			{ID: uuid.New(), Identity: "user-1", Role: domain.RoleUser, Text: "sunset", CreatedAt: time.Now()},
		},
	}, &stubIngestUsecase{})

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, handler.History(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"text":"sunset"`)
	}
}

func TestHandler_ClearHistory(t *testing.T) {
	e := echo.New()
	handler := assethttp.NewHandler(&stubSearchUsecase{}, &stubConversationUsecase{}, &stubIngestUsecase{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/conversations", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, handler.ClearHistory(c)) {
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestHandler_Ingest(t *testing.T) {
	e := echo.New()
	jobID := uuid.New()
	handler := assethttp.NewHandler(&stubSearchUsecase{}, &stubConversationUsecase{}, &stubIngestUsecase{jobID: jobID})

	body := `{"description":"a lighthouse at dusk","acquired_at":"2026-01-15T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/assets/ingest", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, handler.Ingest(c)) {
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), jobID.String())
	}
}

func TestHandler_Approve(t *testing.T) {
	e := echo.New()
	assetID := uuid.New()

	t.Run("success", func(t *testing.T) {
		handler := assethttp.NewHandler(&stubSearchUsecase{}, &stubConversationUsecase{}, &stubIngestUsecase{})

		req := httptest.NewRequest(http.MethodPost, "/internal/assets/"+assetID.String()+"/approve", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(assetID.String())

		if assert.NoError(t, handler.Approve(c)) {
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "approved")
		}
	})

	t.Run("not found", func(t *testing.T) {
		handler := assethttp.NewHandler(&stubSearchUsecase{}, &stubConversationUsecase{}, &stubIngestUsecase{approveErr: domain.ErrAssetNotFound})

		req := httptest.NewRequest(http.MethodPost, "/internal/assets/"+assetID.String()+"/approve", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(assetID.String())

		if assert.NoError(t, handler.Approve(c)) {
			assert.Equal(t, http.StatusNotFound, rec.Code)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		handler := assethttp.NewHandler(&stubSearchUsecase{}, &stubConversationUsecase{}, &stubIngestUsecase{})

		req := httptest.NewRequest(http.MethodPost, "/internal/assets/not-a-uuid/approve", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("not-a-uuid")

		if assert.NoError(t, handler.Approve(c)) {
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		}
	})
}
