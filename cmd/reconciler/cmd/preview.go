package cmd

import (
	"fmt"
	"os"

	"github.com/neumann-mlucas/BWGI/internal/parsers"

	"github.com/spf13/cobra"
)

var (
	previewLines      int
	previewBufferSize int
)

// previewCmd represents the preview command
var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Show the last lines of a ledger file",
	Long: `Preview reads a ledger file backwards and prints its last lines,
most recent first, without loading the whole file. Useful for checking
the layout and freshness of a large export before reconciling it.

Examples:
  reconciler preview ledgerA.csv
  reconciler preview ledgerA.csv --lines 50`,

	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().IntVarP(&previewLines, "lines", "n", 10, "number of lines to show")
	previewCmd.Flags().IntVar(&previewBufferSize, "buffer-size", parsers.DefaultPreviewBufferSize, "read chunk size in bytes")
}

func runPreview(cmd *cobra.Command, args []string) error {
	if previewLines < 1 {
		return fmt.Errorf("lines must be at least 1")
	}

	lines, err := parsers.ReadLastLines(args[0], previewLines, previewBufferSize)
	if err != nil {
		errorHandler := NewCLIErrorHandler()
		os.Exit(errorHandler.HandleError(err))
	}

	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}

	return nil
}
