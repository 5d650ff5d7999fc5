package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"asset-orchestrator/internal/domain"
)

// OllamaEmbedder turns text into a fixed-dimension vector via Ollama's
// embedding endpoint.
type OllamaEmbedder struct {
	BaseURL   string
	Model     string
	Dimension int
	Client    *http.Client
}

func NewOllamaEmbedder(baseURL, model string, dimension int, client *http.Client) *OllamaEmbedder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OllamaEmbedder{
		BaseURL:   baseURL,
		Model:     model,
		Dimension: dimension,
		Client:    client,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	reqBody := embedRequest{
		Model: e.Model,
		Input: []string{text},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		slog.Error("ollama_embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Error("ollama_embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("ollama returned status: %d", resp.StatusCode)
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respBody.Embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(respBody.Embeddings))
	}
	vector := respBody.Embeddings[0]
	if e.Dimension > 0 && len(vector) != e.Dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.Dimension, len(vector))
	}

	slog.Info("ollama_embed_completed",
		slog.String("model", e.Model),
		slog.Duration("elapsed", time.Since(start)),
	)

	return vector, nil
}

func (e *OllamaEmbedder) Version() string {
	return e.Model
}

var _ domain.QueryEmbedder = (*OllamaEmbedder)(nil)
