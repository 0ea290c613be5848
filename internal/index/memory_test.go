package index

import (
	"context"
	"strings"
	"testing"
)

// stubEmbedder maps known words onto fixed axes so similarity is
// predictable without a real model.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 3)
	lower := strings.ToLower(text)
	if strings.Contains(lower, "cat") {
		v[0] = 1
	}
	if strings.Contains(lower, "dog") {
		v[1] = 1
	}
	if strings.Contains(lower, "fish") {
		v[2] = 1
	}
	return v, nil
}

func (s stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestMemory_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(stubEmbedder{})

	entries := []Entry{
		{ID: "a-0", Text: "cat facts", Metadata: map[string]string{MetaSourceURL: "https://a"}},
		{ID: "a-1", Text: "dog facts", Metadata: map[string]string{MetaSourceURL: "https://a"}},
	}
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}

	// Same IDs again: count must not grow.
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() after re-upsert = %d, want 2", idx.Len())
	}
}

func TestMemory_QueryRankingAndThreshold(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(stubEmbedder{})

	err := idx.Upsert(ctx, []Entry{
		{ID: "1", Text: "all about cat care"},
		{ID: "2", Text: "cat and dog together"},
		{ID: "3", Text: "fish tanks"},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := idx.Query(ctx, "cat", 10, 0.5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Query() = %d matches, want 2 (fish filtered by threshold)", len(matches))
	}
	if matches[0].ID != "1" {
		t.Errorf("best match = %q, want %q (exact axis beats mixed)", matches[0].ID, "1")
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not sorted: score[%d]=%f > score[%d]=%f", i, matches[i].Score, i-1, matches[i-1].Score)
		}
	}
}

func TestMemory_QueryLimit(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(stubEmbedder{})

	_ = idx.Upsert(ctx, []Entry{
		{ID: "1", Text: "cat one"},
		{ID: "2", Text: "cat two"},
		{ID: "3", Text: "cat three"},
	})

	matches, err := idx.Query(ctx, "cat", 2, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("Query() = %d matches, want k=2", len(matches))
	}
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(stubEmbedder{})

	_ = idx.Upsert(ctx, []Entry{
		{ID: "1", Text: "cat"},
		{ID: "2", Text: "dog"},
	})
	if err := idx.Delete(ctx, []string{"1", "unknown"}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("Len() after delete = %d, want 1", idx.Len())
	}
}
