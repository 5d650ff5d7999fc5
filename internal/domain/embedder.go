package domain

import "context"

// QueryEmbedder converts free text into a fixed-length vector.
type QueryEmbedder interface {
	// Embed returns the embedding for a single non-empty text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Version identifies the embedding model in use.
	Version() string
}
