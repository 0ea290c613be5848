package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Suitable for single-node deployments and
// tests; pair with the SurrealDB store when the index is persistent.
type Memory struct {
	mu      sync.RWMutex
	sources map[string]Source
	order   []string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sources: make(map[string]Source)}
}

func (m *Memory) Upsert(_ context.Context, src *Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sources[src.URL]; !exists {
		m.order = append(m.order, src.URL)
	}
	m.sources[src.URL] = *src
	return nil
}

func (m *Memory) Get(_ context.Context, url string) (*Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[url]
	if !ok {
		return nil, nil
	}
	return &src, nil
}

func (m *Memory) List(_ context.Context) ([]Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Source, 0, len(m.order))
	for _, url := range m.order {
		out = append(out, m.sources[url])
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[url]; !ok {
		return nil
	}
	delete(m.sources, url)
	for i, u := range m.order {
		if u == url {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
