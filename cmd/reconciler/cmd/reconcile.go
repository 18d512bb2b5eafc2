package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	appconfig "github.com/neumann-mlucas/BWGI/cmd/reconciler/config"
	"github.com/neumann-mlucas/BWGI/internal/models"
	"github.com/neumann-mlucas/BWGI/internal/reconciler"
	"github.com/neumann-mlucas/BWGI/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	outputFormat         string
	outputFile           string
	profileName          string
	profileFile          string
	startDate            string
	endDate              string
	includeSummary       bool
	showProgress         bool
	strictParsing        bool
	maxParseErrors       int
	analyzeDiscrepancies bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile <ledgerA.csv> <ledgerB.csv>",
	Short: "Reconcile two ledger files",
	Long: `Reconcile compares two ledger files and reports, for every entry,
whether a matching entry exists in the opposite file.

Entries match when they agree on department, counterpart and value and
their dates are at most one calendar day apart. Each entry pairs with at
most one entry of the other file.

Examples:
  # Plain listing with FOUND/MISSING statuses
  reconciler reconcile ledgerA.csv ledgerB.csv

  # Full console report with summary sections
  reconciler reconcile ledgerA.csv ledgerB.csv --output-format console

  # JSON report to a file, restricted to December
  reconciler reconcile ledgerA.csv ledgerB.csv \
    --output-format json --output-file report.json \
    --start-date 2020-12-01 --end-date 2020-12-31

  # Semicolon-delimited exports, skipping malformed rows
  reconciler reconcile ledgerA.csv ledgerB.csv --profile semicolon --strict=false`,

	Args:    cobra.ExactArgs(2),
	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "text", "output format: text, console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().BoolVar(&includeSummary, "summary", true, "include summary sections in console and json output")

	// Input layout flags
	reconcileCmd.Flags().StringVarP(&profileName, "profile", "p", "standard", "ledger layout profile")
	reconcileCmd.Flags().StringVar(&profileFile, "profile-file", "", "YAML file with custom ledger profiles")

	// Date filtering flags
	reconcileCmd.Flags().StringVar(&startDate, "start-date", "", "filter start date (YYYY-MM-DD)")
	reconcileCmd.Flags().StringVar(&endDate, "end-date", "", "filter end date (YYYY-MM-DD)")

	// Parsing flags
	reconcileCmd.Flags().BoolVar(&strictParsing, "strict", true, "abort on the first malformed row")
	reconcileCmd.Flags().IntVar(&maxParseErrors, "max-parse-errors", 100, "malformed rows tolerated before aborting (tolerant mode)")

	// Analysis and UI flags
	reconcileCmd.Flags().BoolVar(&analyzeDiscrepancies, "analyze-discrepancies", true, "flag duplicate clusters and near-miss value pairs")
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("summary", reconcileCmd.Flags().Lookup("summary"))
	viper.BindPFlag("profile", reconcileCmd.Flags().Lookup("profile"))
	viper.BindPFlag("profile-file", reconcileCmd.Flags().Lookup("profile-file"))
	viper.BindPFlag("start-date", reconcileCmd.Flags().Lookup("start-date"))
	viper.BindPFlag("end-date", reconcileCmd.Flags().Lookup("end-date"))
	viper.BindPFlag("strict", reconcileCmd.Flags().Lookup("strict"))
	viper.BindPFlag("max-parse-errors", reconcileCmd.Flags().Lookup("max-parse-errors"))
	viper.BindPFlag("analyze-discrepancies", reconcileCmd.Flags().Lookup("analyze-discrepancies"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// viper values win so config files and RECONCILER_* variables can
	// override flag defaults
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	includeSummary = viper.GetBool("summary")
	profileName = viper.GetString("profile")
	profileFile = viper.GetString("profile-file")
	startDate = viper.GetString("start-date")
	endDate = viper.GetString("end-date")
	strictParsing = viper.GetBool("strict")
	maxParseErrors = viper.GetInt("max-parse-errors")
	analyzeDiscrepancies = viper.GetBool("analyze-discrepancies")
	showProgress = viper.GetBool("progress")

	for i, path := range args {
		if err := validateFileExists(path, fmt.Sprintf("ledger file %d", i+1)); err != nil {
			return err
		}
	}

	validFormats := map[string]bool{"text": true, "console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format %q, valid formats: text, console, json, csv", outputFormat)
	}

	if startDate != "" {
		if _, err := models.ParseDate(startDate); err != nil {
			return fmt.Errorf("invalid start date, use YYYY-MM-DD: %w", err)
		}
	}
	if endDate != "" {
		if _, err := models.ParseDate(endDate); err != nil {
			return fmt.Errorf("invalid end date, use YYYY-MM-DD: %w", err)
		}
	}
	if startDate != "" && endDate != "" {
		start, _ := models.ParseDate(startDate)
		end, _ := models.ParseDate(endDate)
		if start.After(end) {
			return fmt.Errorf("start date cannot be after end date")
		}
	}

	if maxParseErrors < 0 {
		return fmt.Errorf("max-parse-errors cannot be negative")
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	ledgerAPath, ledgerBPath := args[0], args[1]

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Ledger A: %s\n", ledgerAPath)
		fmt.Fprintf(os.Stderr, "Ledger B: %s\n", ledgerBPath)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	profile, err := appconfig.ResolveProfile(profileName, profileFile)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	parseConfig := appconfig.CreateParseConfig(strictParsing, maxParseErrors)
	serviceConfig := appconfig.CreateServiceConfig(parseConfig, analyzeDiscrepancies)

	service, err := reconciler.NewReconciliationService(serviceConfig)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	request := &reconciler.Request{
		LedgerAPath: ledgerAPath,
		LedgerBPath: ledgerBPath,
		Profile:     profile,
	}
	if startDate != "" {
		parsed, _ := models.ParseDate(startDate)
		request.StartDate = &parsed
	}
	if endDate != "" {
		parsed, _ := models.ParseDate(endDate)
		request.EndDate = &parsed
	}

	var result *reconciler.Result
	if showProgress {
		orchestrator, err := reconciler.NewOrchestrator(service)
		if err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
		orchestrator.AddProgressCallback(func(progress *reconciler.Progress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})

		result, err = orchestrator.Run(ctx, request)
		fmt.Fprintf(os.Stderr, "\n")
		if err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
	} else {
		result, err = service.ProcessReconciliation(ctx, request)
		if err != nil {
			os.Exit(errorHandler.HandleError(err))
		}
	}

	reportConfig, err := appconfig.CreateReportConfig(outputFormat, includeSummary)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	output := os.Stdout
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	if err := reportGenerator.GenerateReport(result, output); err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed in %v.\n", result.Summary.ProcessingDuration)
		fmt.Fprintf(os.Stderr, "Processed %d ledger A entries and %d ledger B entries.\n",
			result.Summary.TotalLedgerA, result.Summary.TotalLedgerB)
		fmt.Fprintf(os.Stderr, "Found %d matched pairs, %d unmatched in A, %d unmatched in B.\n",
			result.Summary.MatchedPairs, result.Summary.UnmatchedA, result.Summary.UnmatchedB)
		if len(result.Discrepancies) > 0 {
			fmt.Fprintf(os.Stderr, "Flagged %d discrepancies.\n", len(result.Discrepancies))
		}
	}

	return nil
}
