// Package store tracks per-source ingestion status and metadata.
package store

import (
	"context"
	"time"
)

// Status is the ingestion lifecycle state of a source.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Source is one ingested URL and its tracked state. The URL is the
// natural key; re-ingesting a URL overwrites the prior record.
type Source struct {
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	IngestedAt  *time.Time `json:"ingested_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`

	// ChunkIDs are the index entries written for this source, tracked so
	// deletion can remove them instead of orphaning them in the index.
	ChunkIDs   []string `json:"chunk_ids,omitempty"`
	ChunkCount int      `json:"chunk_count"`
}

// Store persists source records. Implementations must be safe for
// concurrent use; two concurrent writers of the same URL race
// last-write-wins.
type Store interface {
	// Upsert creates or replaces the record for src.URL.
	Upsert(ctx context.Context, src *Source) error

	// Get returns the record for url, or nil if unknown.
	Get(ctx context.Context, url string) (*Source, error)

	// List returns all records in insertion order.
	List(ctx context.Context) ([]Source, error)

	// Delete removes the record for url. Deleting an unknown URL is not
	// an error.
	Delete(ctx context.Context, url string) error
}
