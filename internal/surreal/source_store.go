package surreal

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/tgruber/sourceqa/internal/chunk"
	"github.com/tgruber/sourceqa/internal/store"
)

// SourceStore implements store.Store on the source table. Record IDs are
// derived from the URL so an upsert for a known URL overwrites in place.
type SourceStore struct {
	client *Client
}

var _ store.Store = (*SourceStore)(nil)

// NewSourceStore creates a SurrealDB-backed source store.
func NewSourceStore(client *Client) *SourceStore {
	return &SourceStore{client: client}
}

type sourceRow struct {
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	IngestedAt  *time.Time `json:"ingested_at,omitempty"`
	LastError   string     `json:"last_error"`
	ChunkIDs    []string   `json:"chunk_ids"`
}

func (s *SourceStore) Upsert(ctx context.Context, src *store.Source) error {
	chunkIDs := src.ChunkIDs
	if chunkIDs == nil {
		chunkIDs = []string{}
	}
	_, err := surrealdb.Query[any](ctx, s.client.db, `
		UPSERT type::record("source", $id) SET
			url = $url,
			description = $description,
			status = $status,
			ingested_at = $ingested_at,
			last_error = $last_error,
			chunk_ids = $chunk_ids
	`, map[string]any{
		"id":          chunk.SourceKey(src.URL),
		"url":         src.URL,
		"description": src.Description,
		"status":      string(src.Status),
		"ingested_at": src.IngestedAt,
		"last_error":  src.LastError,
		"chunk_ids":   chunkIDs,
	})
	if err != nil {
		return fmt.Errorf("upsert source: %w", wrapQueryError(err))
	}
	return nil
}

func (s *SourceStore) Get(ctx context.Context, url string) (*store.Source, error) {
	results, err := surrealdb.Query[[]sourceRow](ctx, s.client.db, `
		SELECT url, description, status, ingested_at, last_error, chunk_ids
		FROM type::record("source", $id)
	`, map[string]any{"id": chunk.SourceKey(url)})
	if err != nil {
		return nil, fmt.Errorf("get source: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	src := fromRow((*results)[0].Result[0])
	return &src, nil
}

func (s *SourceStore) List(ctx context.Context) ([]store.Source, error) {
	results, err := surrealdb.Query[[]sourceRow](ctx, s.client.db, `
		SELECT url, description, status, ingested_at, last_error, chunk_ids
		FROM source ORDER BY created ASC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", wrapQueryError(err))
	}

	var rows []sourceRow
	if results != nil && len(*results) > 0 {
		rows = (*results)[0].Result
	}
	out := make([]store.Source, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

func (s *SourceStore) Delete(ctx context.Context, url string) error {
	_, err := surrealdb.Query[any](ctx, s.client.db, `
		DELETE type::record("source", $id)
	`, map[string]any{"id": chunk.SourceKey(url)})
	if err != nil {
		return fmt.Errorf("delete source: %w", wrapQueryError(err))
	}
	return nil
}

func fromRow(r sourceRow) store.Source {
	return store.Source{
		URL:         r.URL,
		Description: r.Description,
		Status:      store.Status(r.Status),
		IngestedAt:  r.IngestedAt,
		LastError:   r.LastError,
		ChunkIDs:    r.ChunkIDs,
		ChunkCount:  len(r.ChunkIDs),
	}
}
