// Package index defines the similarity-search capability the pipeline
// writes to and the workflow queries, plus an in-memory implementation.
package index

import "context"

// Metadata keys attached to every entry.
const (
	MetaSourceURL = "source_url"
	MetaTitle     = "title"
)

// Entry is one chunk to upsert. Writing an ID that already exists
// overwrites the stored entry, never duplicates it.
type Entry struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Match is a ranked query result.
type Match struct {
	ID       string
	Text     string
	Metadata map[string]string
	Score    float64
}

// Index is the vector index capability. Implementations are safe for
// concurrent use and treat every call as a cancelable boundary.
type Index interface {
	// Upsert writes entries, embedding their text. Deterministic ID reuse
	// overwrites.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns up to k matches for the text with similarity score of
	// at least threshold, best first.
	Query(ctx context.Context, text string, k int, threshold float64) ([]Match, error)

	// Delete removes entries by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error
}

// Embedder produces vectors for index content and queries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
