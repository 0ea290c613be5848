package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the ingested sources",
	Long: `Ask a question and get an answer grounded in the ingested pages.

The answer lists the source URLs it was generated from.

Examples:
  sourceqa ask "What is reward hacking?"
  sourceqa ask "How do diffusion models generate video?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.close(ctx) //nolint:errcheck

	result, err := application.query.Answer(ctx, args[0])
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}

	fmt.Println(result.Answer)
	fmt.Println()
	fmt.Println("Sources:")
	for _, src := range result.Sources {
		fmt.Printf("  - %s\n", src)
	}
	return nil
}
