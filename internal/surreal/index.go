package surreal

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	"github.com/tgruber/sourceqa/internal/index"
)

// Index implements index.Index on the chunk table using the HNSW
// embedding index for nearest-neighbor search.
type Index struct {
	client   *Client
	embedder index.Embedder
}

var _ index.Index = (*Index)(nil)

// NewIndex creates a SurrealDB-backed index. Embeddings are computed
// client-side with the embedder and stored alongside the chunk text.
func NewIndex(client *Client, embedder index.Embedder) *Index {
	return &Index{client: client, embedder: embedder}
}

type chunkRow struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	SourceURL string  `json:"source_url"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
}

func (s *Index) Upsert(ctx context.Context, entries []index.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(entries))
	}

	for i, e := range entries {
		_, err := surrealdb.Query[any](ctx, s.client.db, `
			UPSERT type::record("chunk", $id) SET
				text = $text,
				source_url = $source_url,
				title = $title,
				embedding = $embedding,
				updated = time::now()
		`, map[string]any{
			"id":         e.ID,
			"text":       e.Text,
			"source_url": e.Metadata[index.MetaSourceURL],
			"title":      e.Metadata[index.MetaTitle],
			"embedding":  vectors[i],
		})
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", e.ID, wrapQueryError(err))
		}
	}
	return nil
}

func (s *Index) Query(ctx context.Context, text string, k int, threshold float64) ([]index.Match, error) {
	if k <= 0 {
		k = 4
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// HNSW KNN with ef=40 for recall; the similarity threshold is applied
	// on the exact cosine score below.
	sql := fmt.Sprintf(`
		SELECT meta::id(id) AS id, text, source_url, title,
		       vector::similarity::cosine(embedding, $emb) AS score
		FROM chunk
		WHERE embedding <|%d,40|> $emb
		ORDER BY score DESC
	`, k)

	results, err := surrealdb.Query[[]chunkRow](ctx, s.client.db, sql, map[string]any{"emb": vector})
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", wrapQueryError(err))
	}

	var rows []chunkRow
	if results != nil && len(*results) > 0 {
		rows = (*results)[0].Result
	}

	matches := make([]index.Match, 0, len(rows))
	for _, r := range rows {
		if r.Score < threshold {
			continue
		}
		matches = append(matches, index.Match{
			ID:   r.ID,
			Text: r.Text,
			Metadata: map[string]string{
				index.MetaSourceURL: r.SourceURL,
				index.MetaTitle:     r.Title,
			},
			Score: r.Score,
		})
	}
	return matches, nil
}

func (s *Index) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := surrealdb.Query[any](ctx, s.client.db, `
			DELETE type::record("chunk", $id)
		`, map[string]any{"id": id}); err != nil {
			return fmt.Errorf("delete chunk %s: %w", id, wrapQueryError(err))
		}
	}
	return nil
}

// CountBySource returns the number of chunks stored for a source URL.
// Used by integration tests and the stats endpoint.
func (s *Index) CountBySource(ctx context.Context, sourceURL string) (int, error) {
	type countRow struct {
		Count int `json:"count"`
	}
	results, err := surrealdb.Query[[]countRow](ctx, s.client.db, `
		SELECT count() AS count FROM chunk WHERE source_url = $url GROUP ALL
	`, map[string]any{"url": sourceURL})
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}
