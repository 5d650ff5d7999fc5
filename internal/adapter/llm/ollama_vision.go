package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"asset-orchestrator/internal/domain"
)

const describePrompt = "Describe this image in two or three sentences. " +
	"Mention the main subject, the setting, and any distinctive colors or objects. " +
	"Write plain prose without preamble."

// OllamaVision produces a textual description for an image using a
// multimodal model behind Ollama's chat endpoint.
type OllamaVision struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaVision(baseURL, model string, client *http.Client) *OllamaVision {
	if client == nil {
		client = &http.Client{Timeout: 180 * time.Second}
	}
	return &OllamaVision{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  client,
	}
}

// Describe sends the base64-encoded image and returns the model's description.
func (v *OllamaVision) Describe(ctx context.Context, imageBase64 string) (string, error) {
	reqBody := chatRequest{
		Model: v.Model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: describePrompt,
			Images:  []string{imageBase64},
		}},
		Stream:    false,
		KeepAlive: -1,
	}

	chatResp, err := postChat(ctx, v.Client, v.BaseURL, reqBody)
	if err != nil {
		return "", err
	}

	description := strings.TrimSpace(chatResp.Message.Content)
	if description == "" {
		return "", errors.New("vision model returned an empty description")
	}
	return description, nil
}

var _ domain.ImageDescriber = (*OllamaVision)(nil)
