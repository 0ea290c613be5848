// Package cli provides the command-line interface for sourceqa.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tgruber/sourceqa/internal/chunk"
	"github.com/tgruber/sourceqa/internal/config"
	"github.com/tgruber/sourceqa/internal/fetch"
	"github.com/tgruber/sourceqa/internal/grader"
	"github.com/tgruber/sourceqa/internal/index"
	"github.com/tgruber/sourceqa/internal/llm"
	"github.com/tgruber/sourceqa/internal/metrics"
	"github.com/tgruber/sourceqa/internal/service"
	"github.com/tgruber/sourceqa/internal/store"
	"github.com/tgruber/sourceqa/internal/surreal"
	"github.com/tgruber/sourceqa/internal/workflow"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Loaded once in PersistentPreRunE
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
)

var rootCmd = &cobra.Command{
	Use:   "sourceqa",
	Short: "Agentic question answering over ingested web pages",
	Long: `Sourceqa ingests web pages into a vector index and answers questions
about them with an agentic retrieve-grade-rewrite loop.

Add sources, then ask questions; answers cite the pages they came from.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// app bundles the wired services a command works with.
type app struct {
	ingest *service.IngestService
	query  *service.QueryService
	stats  *metrics.Collector
	close  func(context.Context) error
}

// buildApp wires the full dependency graph from config: store and index
// backend, embedder, LLM, grader, workflow engine and the two services.
func buildApp(ctx context.Context) (*app, error) {
	stats := metrics.NewCollector()

	embedder, err := llm.NewEmbedder(cfg, stats)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	model, err := llm.NewModel(cfg, logger, stats)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}

	var (
		idx       index.Index
		sourceSt  store.Store
		closeFunc = func(context.Context) error { return nil }
	)
	switch cfg.IndexBackend {
	case config.IndexSurreal:
		client, err := surreal.NewClient(ctx, surreal.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to surrealdb: %w", err)
		}
		if err := client.InitSchema(ctx, embedder.Dimension()); err != nil {
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		idx = surreal.NewIndex(client, embedder)
		sourceSt = surreal.NewSourceStore(client)
		closeFunc = client.Close
	default:
		idx = index.NewMemory(embedder)
		sourceSt = store.NewMemory()
	}

	splitter, err := chunk.NewSplitter(cfg.ChunkTargetTokens, cfg.ChunkOverlapTokens)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewHTTPFetcher(fetch.Options{
		Timeout:    cfg.FetchTimeout,
		RatePerSec: cfg.FetchRatePerSec,
		UserAgent:  cfg.UserAgent,
		Logger:     logger,
	})

	ingest := service.NewIngestService(sourceSt, idx, fetcher, splitter, service.IngestOptions{
		BatchSize:   cfg.IngestBatchSize,
		Concurrency: cfg.IngestConcurrency,
		Logger:      logger,
		Stats:       stats,
	})

	engine := workflow.NewEngine(model, index.NewMeasured(idx, stats), grader.New(model, logger), workflow.Options{
		MaxRewrites: cfg.MaxRewrites,
		TopK:        cfg.TopK,
		Threshold:   cfg.ScoreThreshold,
		Logger:      logger,
	})
	query := service.NewQueryService(engine, stats, logger)

	return &app{
		ingest: ingest,
		query:  query,
		stats:  stats,
		close:  closeFunc,
	}, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(deleteCmd)
}
