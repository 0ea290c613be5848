package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tgruber/sourceqa/internal/service"
)

var ingestDescription string

var ingestCmd = &cobra.Command{
	Use:   "ingest <url>...",
	Short: "Fetch pages and add them to the index",
	Long: `Fetch one or more pages, split them into chunks and add them to the
vector index.

Examples:
  sourceqa ingest https://example.com/docs
  sourceqa ingest https://example.com/a https://example.com/b
  sourceqa ingest https://example.com/docs -d "product docs"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestDescription, "description", "d", "", "source description")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close(ctx) //nolint:errcheck

	if len(args) == 1 {
		src, err := application.ingest.Ingest(ctx, args[0], ingestDescription)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", args[0], err)
		}
		fmt.Printf("Ingested %s (%d chunks)\n", src.URL, len(src.ChunkIDs))
		return nil
	}

	reqs := make([]service.IngestRequest, len(args))
	for i, url := range args {
		reqs[i] = service.IngestRequest{URL: url, Description: ingestDescription}
	}
	summary := application.ingest.IngestAll(ctx, reqs)

	fmt.Printf("Ingested %d sources (%d chunks), %d failed\n", summary.Processed, summary.Chunks, summary.Failed)
	for _, e := range summary.Errors {
		fmt.Printf("  failed: %s\n", e)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d sources failed", summary.Failed, len(args))
	}
	return nil
}
