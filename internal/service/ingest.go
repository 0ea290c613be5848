// Package service implements the ingestion pipeline and the query
// service on top of the fetch, chunk, index and workflow packages.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tgruber/sourceqa/internal/chunk"
	"github.com/tgruber/sourceqa/internal/fetch"
	"github.com/tgruber/sourceqa/internal/index"
	"github.com/tgruber/sourceqa/internal/metrics"
	"github.com/tgruber/sourceqa/internal/store"
)

// IngestRequest names one URL to ingest.
type IngestRequest struct {
	URL         string
	Description string
}

// IngestSummary aggregates the outcome of a bulk ingestion.
type IngestSummary struct {
	Processed int
	Failed    int
	Chunks    int
	Errors    []string
}

// IngestOptions configures an IngestService.
type IngestOptions struct {
	BatchSize   int
	Concurrency int
	Logger      *slog.Logger
	Stats       *metrics.Collector
}

// IngestService runs the fetch, split, embed, index pipeline and tracks
// source state.
type IngestService struct {
	store       store.Store
	index       index.Index
	fetcher     fetch.Fetcher
	splitter    *chunk.Splitter
	batchSize   int
	concurrency int
	stats       *metrics.Collector
	log         *slog.Logger
}

// NewIngestService creates an ingestion service.
func NewIngestService(st store.Store, idx index.Index, fetcher fetch.Fetcher, splitter *chunk.Splitter, opts IngestOptions) *IngestService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stats == nil {
		opts.Stats = metrics.NewCollector()
	}
	return &IngestService{
		store:       st,
		index:       idx,
		fetcher:     fetcher,
		splitter:    splitter,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		stats:       opts.Stats,
		log:         opts.Logger,
	}
}

// Ingest fetches url, splits it into chunks and writes them to the index
// in sequential batches. The source record moves pending -> processed, or
// pending -> failed with the error recorded. A fetch failure leaves the
// index untouched. A batch failure stops the pipeline without rolling
// back batches already written.
func (s *IngestService) Ingest(ctx context.Context, url, description string) (*store.Source, error) {
	log := s.log.With("url", url)

	prior, err := s.store.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("load source record: %w", err)
	}

	src := &store.Source{
		URL:         url,
		Description: description,
		Status:      store.StatusPending,
	}
	if prior != nil {
		if description == "" {
			src.Description = prior.Description
		}
		// Carried so a failed re-ingest still knows which chunks exist.
		src.ChunkIDs = prior.ChunkIDs
		src.ChunkCount = len(prior.ChunkIDs)
	}
	if err := s.store.Upsert(ctx, src); err != nil {
		return nil, fmt.Errorf("record pending source: %w", err)
	}

	fetchStart := time.Now()
	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.stats.RecordError(metrics.OpFetch)
		return s.fail(ctx, src, fmt.Errorf("fetch source: %w", err))
	}
	s.stats.RecordTiming(metrics.OpFetch, time.Since(fetchStart))

	chunks := s.splitter.Split(url, page.Markdown)
	if len(chunks) == 0 {
		return s.fail(ctx, src, fetch.ErrEmptyContent)
	}
	log.Info("source fetched", "title", page.Title, "chunks", len(chunks))

	var written []string
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		entries := toEntries(chunks[start:end], page.Title)

		upsertStart := time.Now()
		if err := s.index.Upsert(ctx, entries); err != nil {
			s.stats.RecordError(metrics.OpIndexUpsert)
			var priorIDs []string
			if prior != nil {
				priorIDs = prior.ChunkIDs
			}
			src.ChunkIDs = unionIDs(priorIDs, written)
			src.ChunkCount = len(src.ChunkIDs)
			return s.fail(ctx, src, fmt.Errorf("index batch %d-%d: %w", start, end, err))
		}
		s.stats.RecordTiming(metrics.OpIndexUpsert, time.Since(upsertStart))

		for _, e := range entries {
			written = append(written, e.ID)
		}
	}

	// Re-ingesting a shrunken page leaves stale ordinals behind unless
	// they are removed explicitly.
	if prior != nil {
		if stale := staleIDs(prior.ChunkIDs, written); len(stale) > 0 {
			if err := s.index.Delete(ctx, stale); err != nil {
				log.Warn("failed to remove stale chunks", "count", len(stale), "error", err)
			}
		}
	}

	now := time.Now().UTC()
	src.Status = store.StatusProcessed
	src.IngestedAt = &now
	src.LastError = ""
	src.ChunkIDs = written
	src.ChunkCount = len(written)
	if err := s.store.Upsert(ctx, src); err != nil {
		return nil, fmt.Errorf("record processed source: %w", err)
	}

	log.Info("source ingested", "chunks", len(written))
	return src, nil
}

// IngestAll ingests several sources concurrently with a bounded worker
// pool. Batches within one source stay sequential.
func (s *IngestService) IngestAll(ctx context.Context, reqs []IngestRequest) IngestSummary {
	concurrency := min(s.concurrency, max(len(reqs), 1))

	var (
		processed atomic.Int32
		chunks    atomic.Int32
		errorsMu  sync.Mutex
		errs      []string
	)

	work := make(chan IngestRequest, len(reqs))
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for req := range work {
				if ctx.Err() != nil {
					return
				}
				src, err := s.Ingest(ctx, req.URL, req.Description)
				if err != nil {
					errorsMu.Lock()
					errs = append(errs, fmt.Sprintf("%s: %v", req.URL, err))
					errorsMu.Unlock()
					continue
				}
				processed.Add(1)
				chunks.Add(int32(len(src.ChunkIDs)))
				s.log.Debug("worker ingested source", "worker", workerID, "url", req.URL)
			}
		}(i)
	}

	for _, req := range reqs {
		work <- req
	}
	close(work)
	wg.Wait()

	summary := IngestSummary{
		Processed: int(processed.Load()),
		Failed:    len(errs),
		Chunks:    int(chunks.Load()),
		Errors:    errs,
	}
	s.log.Info("bulk ingestion complete",
		"processed", summary.Processed,
		"failed", summary.Failed,
		"chunks", summary.Chunks)
	return summary
}

// Delete removes a source's chunks from the index, then its record.
// Unknown URLs are a no-op.
func (s *IngestService) Delete(ctx context.Context, url string) error {
	src, err := s.store.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("load source record: %w", err)
	}
	if src == nil {
		return nil
	}
	if len(src.ChunkIDs) > 0 {
		if err := s.index.Delete(ctx, src.ChunkIDs); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
	}
	if err := s.store.Delete(ctx, url); err != nil {
		return fmt.Errorf("delete source record: %w", err)
	}
	s.log.Info("source deleted", "url", url, "chunks", len(src.ChunkIDs))
	return nil
}

// Sources lists all tracked sources in insertion order.
func (s *IngestService) Sources(ctx context.Context) ([]store.Source, error) {
	return s.store.List(ctx)
}

func (s *IngestService) fail(ctx context.Context, src *store.Source, cause error) (*store.Source, error) {
	src.Status = store.StatusFailed
	src.LastError = cause.Error()
	if err := s.store.Upsert(ctx, src); err != nil {
		s.log.Error("failed to record source failure", "url", src.URL, "error", err)
	}
	return src, cause
}

func toEntries(chunks []chunk.Chunk, title string) []index.Entry {
	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		meta := map[string]string{
			index.MetaSourceURL: c.SourceURL,
		}
		if title != "" {
			meta[index.MetaTitle] = title
		}
		entries[i] = index.Entry{
			ID:       c.ID,
			Text:     c.Text,
			Metadata: meta,
		}
	}
	return entries
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, id := range append(append([]string{}, a...), b...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func staleIDs(old, current []string) []string {
	keep := make(map[string]struct{}, len(current))
	for _, id := range current {
		keep[id] = struct{}{}
	}
	var stale []string
	for _, id := range old {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}
