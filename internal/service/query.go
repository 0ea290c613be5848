package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tgruber/sourceqa/internal/index"
	"github.com/tgruber/sourceqa/internal/metrics"
	"github.com/tgruber/sourceqa/internal/workflow"
)

// NoSourcesMarker is returned as the sole source when an answer was
// generated without any retrieved context.
const NoSourcesMarker = "no sources found"

// QueryResult is the answer to one question.
type QueryResult struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// AnswerEngine runs the agentic answering loop.
type AnswerEngine interface {
	Run(ctx context.Context, question string) (workflow.Result, error)
}

// QueryService answers questions via the workflow engine.
type QueryService struct {
	engine AnswerEngine
	stats  *metrics.Collector
	log    *slog.Logger
}

// NewQueryService creates a query service.
func NewQueryService(engine AnswerEngine, stats *metrics.Collector, log *slog.Logger) *QueryService {
	if stats == nil {
		stats = metrics.NewCollector()
	}
	if log == nil {
		log = slog.Default()
	}
	return &QueryService{engine: engine, stats: stats, log: log}
}

// Answer runs the workflow for question. Queries never depend on the
// source store state: with nothing ingested the generation step reports
// the missing context itself.
func (q *QueryService) Answer(ctx context.Context, question string) (QueryResult, error) {
	start := time.Now()
	res, err := q.engine.Run(ctx, question)
	if err != nil {
		q.stats.RecordError(metrics.OpWorkflow)
		return QueryResult{}, fmt.Errorf("answer question: %w", err)
	}
	q.stats.RecordTiming(metrics.OpWorkflow, time.Since(start))

	q.log.Info("question answered",
		"rewrites", res.Rewrites,
		"retrieved", res.Retrieved,
		"context_chunks", len(res.Context),
		"duration_ms", time.Since(start).Milliseconds())

	return QueryResult{
		Query:   question,
		Answer:  res.Answer,
		Sources: sourcesFromContext(res.Context),
	}, nil
}

// sourcesFromContext collects distinct source URLs from the retrieved
// chunks, preserving retrieval order.
func sourcesFromContext(matches []index.Match) []string {
	seen := make(map[string]struct{}, len(matches))
	var urls []string
	for _, m := range matches {
		url := m.Metadata[index.MetaSourceURL]
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		return []string{NoSourcesMarker}
	}
	return urls
}
