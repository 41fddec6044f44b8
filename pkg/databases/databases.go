// Package databases provides the vector index abstraction and its
// qdrant implementation.
package databases

import "context"

// SearchResult is one scored point returned from the index.
type SearchResult struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]interface{}
	Score    float32
}

// VectorStore is the vector index used for chunk embeddings.
//
// Filters use a small map language: a plain value means keyword
// equality; a nested map supports the operators `$in`, `$gt`, `$gte`,
// `$lt`, `$lte`. All conditions are ANDed.
type VectorStore interface {
	// EnsureCollection creates the named cosine collection if it does
	// not exist. Idempotent.
	EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error

	// Upsert writes points. ids, vectors, and payloads must be the same
	// length; empty input is a no-op.
	Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32, payloads []map[string]interface{}) error

	// Search returns at most limit results above scoreThreshold in
	// descending score order.
	Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}, scoreThreshold float32) ([]SearchResult, error)

	// Delete removes points by id.
	Delete(ctx context.Context, collection string, ids []string) error

	// DeleteByFilter removes every point matching the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error

	// Get retrieves points by id, with payloads.
	Get(ctx context.Context, collection string, ids []string) ([]SearchResult, error)

	// Count returns the number of points matching the filter (all
	// points when filter is nil).
	Count(ctx context.Context, collection string, filter map[string]interface{}) (uint64, error)

	Close() error
}
