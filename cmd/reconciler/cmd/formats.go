package cmd

import (
	"fmt"

	"github.com/neumann-mlucas/BWGI/internal/parsers"

	"github.com/spf13/cobra"
)

// formatsCmd represents the formats command
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the built-in ledger layout profiles",
	Long: `Formats lists the ledger layout profiles that can be selected with
the --profile flag. Custom profiles can be added with --profile-file.`,

	RunE: runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Built-in ledger profiles:\n")
	for _, name := range parsers.ListLedgerProfiles() {
		profile, err := parsers.GetLedgerProfile(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-10s %s\n", name, profile.Description)
	}

	return nil
}
