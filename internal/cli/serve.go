package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tgruber/sourceqa/internal/server"
	"github.com/tgruber/sourceqa/internal/service"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server exposing source management and querying.

Seed sources from the configuration are ingested before the server
starts accepting requests.

Examples:
  sourceqa serve
  sourceqa serve --addr :9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close(ctx) //nolint:errcheck

	if len(cfg.SeedSources) > 0 {
		reqs := make([]service.IngestRequest, len(cfg.SeedSources))
		for i, seed := range cfg.SeedSources {
			reqs[i] = service.IngestRequest{URL: seed.URL, Description: seed.Description}
		}
		logger.Info("ingesting seed sources", "count", len(reqs))
		summary := application.ingest.IngestAll(ctx, reqs)
		if summary.Failed > 0 {
			logger.Warn("some seed sources failed", "failed", summary.Failed, "errors", summary.Errors)
		}
	}

	addr := cfg.HTTPAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := server.New(addr, application.ingest, application.query, application.stats, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
