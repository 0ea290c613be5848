package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List tracked sources and their status",
	RunE:  runSources,
}

func runSources(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close(ctx) //nolint:errcheck

	sources, err := application.ingest.Sources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		fmt.Println("No sources tracked.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tSTATUS\tCHUNKS\tINGESTED\tERROR")
	for _, src := range sources {
		ingested := ""
		if src.IngestedAt != nil {
			ingested = src.IngestedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", src.URL, src.Status, src.ChunkCount, ingested, src.LastError)
	}
	return w.Flush()
}
