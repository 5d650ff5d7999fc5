package domain

import "context"

// Message is one chat message sent to the generative model.
type Message struct {
	Role    string
	Content string
}

// LLMResponse carries the model output and whether the generation finished.
type LLMResponse struct {
	Text string
	Done bool
}

// LLMClient defines the capability to send chat messages to a generative
// model and receive a structured textual response.
type LLMClient interface {
	Chat(ctx context.Context, messages []Message, maxTokens int) (*LLMResponse, error)
	Version() string
}

// ImageDescriber produces a textual description for an image, used by the
// ingestion workflow before embedding.
type ImageDescriber interface {
	Describe(ctx context.Context, imageBase64 string) (string, error)
}
