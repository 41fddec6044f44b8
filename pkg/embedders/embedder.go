// Package embedders provides text embedding providers behind a common
// interface, plus a two-tier cache wrapper.
package embedders

import "context"

// EmbedderProvider turns text into dense vectors.
type EmbedderProvider interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in input order. The result has one
	// vector per input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a search query. Providers whose models
	// distinguish query and document encodings apply the query form.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// GetDimension returns the output vector dimensionality.
	GetDimension() int

	// GetModelName returns the model identifier used for cache keys.
	GetModelName() string

	Close() error
}
