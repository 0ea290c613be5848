package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force cosine-similarity index held in process. It is
// the default backend and the workhorse for tests; swap in the SurrealDB
// index for persistence.
type Memory struct {
	embedder Embedder

	mu      sync.RWMutex
	records map[string]record
}

type record struct {
	entry  Entry
	vector []float32
}

var _ Index = (*Memory)(nil)

// NewMemory creates an empty in-memory index backed by the embedder.
func NewMemory(embedder Embedder) *Memory {
	return &Memory{
		embedder: embedder,
		records:  make(map[string]record),
	}
}

func (m *Memory) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(entries))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range entries {
		m.records[e.ID] = record{entry: e, vector: vectors[i]}
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, text string, k int, threshold float64) ([]Match, error) {
	if k <= 0 {
		k = 4
	}

	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	m.mu.RLock()
	matches := make([]Match, 0, len(m.records))
	for _, r := range m.records {
		score := cosine(vector, r.vector)
		if score < threshold {
			continue
		}
		matches = append(matches, Match{
			ID:       r.entry.ID,
			Text:     r.entry.Text,
			Metadata: r.entry.Metadata,
			Score:    score,
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *Memory) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

// Len reports the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
