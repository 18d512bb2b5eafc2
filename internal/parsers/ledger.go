package parsers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/neumann-mlucas/BWGI/internal/models"
	"github.com/neumann-mlucas/BWGI/pkg/errors"
	"github.com/neumann-mlucas/BWGI/pkg/logger"
)

// LedgerParser parses ledger CSV files into transactions using a
// LedgerProfile for the row layout
type LedgerParser struct {
	*BaseParser
	profile *LedgerProfile
	logger  logger.Logger
}

// NewLedgerParser creates a LedgerParser for the given profile. A nil
// profile selects the standard layout, a nil config the default policy.
func NewLedgerParser(profile *LedgerProfile, config *ParseConfig) (*LedgerParser, error) {
	if profile == nil {
		profile = StandardLedgerProfile
	}

	if err := profile.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"ledger_profile",
			profile.Name,
			err,
		).WithSuggestion("Check the ledger profile definition")
	}

	baseParser := NewBaseParser(config)
	log := logger.GetGlobalLogger().WithComponent("ledger_parser")

	log.WithFields(logger.Fields{
		"profile":    profile.Name,
		"has_header": profile.HasHeader,
		"delimiter":  string(profile.Delimiter),
	}).Debug("Created ledger parser")

	return &LedgerParser{
		BaseParser: baseParser,
		profile:    profile,
		logger:     log,
	}, nil
}

// Profile returns the ledger profile the parser was built with
func (lp *LedgerParser) Profile() *LedgerProfile {
	return lp.profile
}

// ParseLedger parses a ledger CSV file into transactions
func (lp *LedgerParser) ParseLedger(filePath string) ([]*models.Transaction, *ParseStats, error) {
	return lp.ParseLedgerWithContext(context.Background(), filePath)
}

// ParseLedgerWithContext parses a ledger file with cancellation support.
// In strict mode the first malformed row aborts with an error; otherwise
// malformed rows are collected into the stats and skipped.
func (lp *LedgerParser) ParseLedgerWithContext(ctx context.Context, filePath string) ([]*models.Transaction, *ParseStats, error) {
	lp.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"profile":   lp.profile.Name,
		"operation": "parse_ledger",
	}).Info("Starting ledger parsing")

	file, reader, err := lp.OpenFile(filePath, lp.profile)
	if err != nil {
		lp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open ledger file")
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()
	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "parse_ledger",
		Logger:    lp.logger,
	})

	var entries []*models.Transaction
	headerHandled := !lp.profile.HasHeader && !lp.profile.AutoDetectHeader

	for {
		record, err := lp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			if parseCtx.IsCancelled() {
				lp.logger.Warn("Ledger parsing was cancelled")
				return entries, stats, err
			}

			lp.logger.WithError(err).WithField("line_number", parseCtx.LineNumber).Warn("Failed to read record")

			parseError := errors.ParseError(
				errors.CodeInvalidFormat,
				filePath,
				parseCtx.LineNumber,
				"record",
				"",
				err,
			)
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: parseError.Message,
				Err:     parseError,
			})

			if lp.Config().StrictMode {
				return nil, stats, parseError
			}
			if budgetErr := lp.checkErrorBudget(filePath, parseCtx, stats); budgetErr != nil {
				return entries, stats, budgetErr
			}
			continue
		}

		if !headerHandled {
			headerHandled = true
			if lp.isHeaderRow(record) {
				lp.logger.WithField("line_number", parseCtx.LineNumber).Debug("Skipping header row")
				continue
			}
		}

		stats.RecordsParsed++

		entry, parseErr := lp.parseLedgerRecord(record, parseCtx, filePath)
		if parseErr != nil {
			stats.AddError(parseErr)

			if lp.Config().StrictMode {
				lp.logger.WithError(parseErr.Err).WithField("line_number", parseCtx.LineNumber).Error("Aborting parse on malformed row")
				return nil, stats, parseErr.Err
			}
			if budgetErr := lp.checkErrorBudget(filePath, parseCtx, stats); budgetErr != nil {
				return entries, stats, budgetErr
			}
			continue
		}

		if err := entry.Validate(); err != nil {
			lp.logger.WithError(err).WithField("line_number", parseCtx.LineNumber).Warn("Transaction validation failed")

			validationError := errors.ValidationError(
				errors.CodeInvalidData,
				"transaction",
				entry.String(),
				err,
			)
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: validationError.Message,
				Err:     validationError,
			})

			if lp.Config().StrictMode {
				return nil, stats, validationError
			}
			if budgetErr := lp.checkErrorBudget(filePath, parseCtx, stats); budgetErr != nil {
				return entries, stats, budgetErr
			}
			continue
		}

		entries = append(entries, entry)
		stats.RecordsValid++
		progress.Increment()
	}

	progress.Complete()
	stats.TotalLines = parseCtx.LineNumber

	lp.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    stats.ErrorCount,
	}).Info("Ledger parsing completed")

	if len(stats.Errors) > 0 {
		lp.logger.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Encountered errors during parsing")
	}

	return entries, stats, nil
}

// isHeaderRow decides whether the first data-bearing row is a header.
// A declared header is always skipped; with auto-detection the row is a
// header when its date cell does not parse as a date.
func (lp *LedgerParser) isHeaderRow(record []string) bool {
	if lp.profile.HasHeader {
		return true
	}

	idx := lp.profile.Columns.Date
	if idx >= len(record) {
		return false
	}
	return !lp.profile.ParseRowDate(record[idx])
}

// checkErrorBudget aborts tolerant parsing once too many rows have failed
func (lp *LedgerParser) checkErrorBudget(filePath string, parseCtx *ParseContext, stats *ParseStats) error {
	maxErrors := lp.Config().MaxErrors
	if maxErrors <= 0 || stats.ErrorCount <= maxErrors {
		return nil
	}

	lp.logger.WithFields(logger.Fields{
		"file_path":   filePath,
		"error_count": stats.ErrorCount,
		"max_errors":  maxErrors,
	}).Error("Too many malformed rows, aborting parse")

	return errors.ParseError(
		errors.CodeTooManyErrors,
		filePath,
		parseCtx.LineNumber,
		"record",
		"",
		fmt.Errorf("%d malformed rows exceed the limit of %d", stats.ErrorCount, maxErrors),
	).WithSuggestion("Fix the ledger file or raise the error limit")
}

// parseLedgerRecord creates a Transaction from one CSV record using the
// profile's column positions
func (lp *LedgerParser) parseLedgerRecord(record []string, parseCtx *ParseContext, filePath string) (*models.Transaction, *ParseError) {
	dateStr, err := lp.FieldAt(record, parseCtx, lp.profile.Columns.Date, "date")
	if err != nil {
		return lp.recordError(parseCtx, "date", "", err)
	}

	var date time.Time
	if lp.profile.DateFormat != "" {
		date, err = models.ParseDateWithLayout(dateStr, lp.profile.DateFormat)
	} else {
		date, err = models.ParseDate(dateStr)
	}
	if err != nil {
		parseError := errors.ParseError(
			errors.CodeInvalidDate,
			filePath,
			parseCtx.LineNumber,
			"date",
			dateStr,
			err,
		).WithSuggestion("Use ISO dates like '2020-12-04'")
		return lp.recordError(parseCtx, "date", dateStr, parseError)
	}

	department, err := lp.FieldAt(record, parseCtx, lp.profile.Columns.Department, "department")
	if err != nil {
		return lp.recordError(parseCtx, "department", "", err)
	}
	if department == "" {
		parseError := errors.ParseError(
			errors.CodeMissingField,
			filePath,
			parseCtx.LineNumber,
			"department",
			"",
			fmt.Errorf("department cannot be empty"),
		).WithSuggestion("Every row needs a department")
		return lp.recordError(parseCtx, "department", "", parseError)
	}

	valueStr, err := lp.FieldAt(record, parseCtx, lp.profile.Columns.Value, "value")
	if err != nil {
		return lp.recordError(parseCtx, "value", "", err)
	}
	value, err := models.ParseValue(valueStr)
	if err != nil {
		parseError := errors.ParseError(
			errors.CodeInvalidAmount,
			filePath,
			parseCtx.LineNumber,
			"value",
			valueStr,
			err,
		).WithSuggestion("Use decimal amounts like '16.00'")
		return lp.recordError(parseCtx, "value", valueStr, parseError)
	}

	counterpart, err := lp.FieldAt(record, parseCtx, lp.profile.Columns.Counterpart, "counterpart")
	if err != nil {
		return lp.recordError(parseCtx, "counterpart", "", err)
	}
	if counterpart == "" {
		parseError := errors.ParseError(
			errors.CodeMissingField,
			filePath,
			parseCtx.LineNumber,
			"counterpart",
			"",
			fmt.Errorf("counterpart cannot be empty"),
		).WithSuggestion("Every row needs a counterpart")
		return lp.recordError(parseCtx, "counterpart", "", parseError)
	}

	return models.NewTransaction(date, department, counterpart, value), nil
}

// recordError packages a field failure as a ParseError for the stats
func (lp *LedgerParser) recordError(parseCtx *ParseContext, field, value string, err error) (*models.Transaction, *ParseError) {
	message := err.Error()
	if recErr, ok := err.(*errors.ReconcilerError); ok {
		message = recErr.Message
	}

	return nil, &ParseError{
		Line:    parseCtx.LineNumber,
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	}
}

// LedgerStreamCallback receives each batch of parsed transactions during
// streaming
type LedgerStreamCallback func([]*models.Transaction) error

// ParseLedgerStream parses a ledger file in batches, invoking the callback
// for each full batch
func (lp *LedgerParser) ParseLedgerStream(filePath string, batchSize int, callback LedgerStreamCallback) (*ParseStats, error) {
	return lp.ParseLedgerStreamWithContext(context.Background(), filePath, batchSize, callback)
}

// ParseLedgerStreamWithContext parses a ledger file in batches with
// cancellation support
func (lp *LedgerParser) ParseLedgerStreamWithContext(
	ctx context.Context,
	filePath string,
	batchSize int,
	callback LedgerStreamCallback,
) (*ParseStats, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	file, reader, err := lp.OpenFile(filePath, lp.profile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	batch := make([]*models.Transaction, 0, batchSize)
	headerHandled := !lp.profile.HasHeader && !lp.profile.AutoDetectHeader

	for {
		record, err := lp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				if len(batch) > 0 {
					if callbackErr := callback(batch); callbackErr != nil {
						return stats, fmt.Errorf("callback error: %w", callbackErr)
					}
				}
				break
			}
			if parseCtx.IsCancelled() {
				return stats, err
			}

			parseError := errors.ParseError(
				errors.CodeInvalidFormat,
				filePath,
				parseCtx.LineNumber,
				"record",
				"",
				err,
			)
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: parseError.Message,
				Err:     parseError,
			})

			if lp.Config().StrictMode {
				return stats, parseError
			}
			if budgetErr := lp.checkErrorBudget(filePath, parseCtx, stats); budgetErr != nil {
				return stats, budgetErr
			}
			continue
		}

		if !headerHandled {
			headerHandled = true
			if lp.isHeaderRow(record) {
				continue
			}
		}

		stats.RecordsParsed++

		entry, parseErr := lp.parseLedgerRecord(record, parseCtx, filePath)
		if parseErr != nil {
			stats.AddError(parseErr)

			if lp.Config().StrictMode {
				return stats, parseErr.Err
			}
			if budgetErr := lp.checkErrorBudget(filePath, parseCtx, stats); budgetErr != nil {
				return stats, budgetErr
			}
			continue
		}

		batch = append(batch, entry)
		stats.RecordsValid++

		if len(batch) >= batchSize {
			if err := callback(batch); err != nil {
				return stats, fmt.Errorf("callback error: %w", err)
			}
			batch = batch[:0]
		}
	}

	stats.TotalLines = parseCtx.LineNumber

	return stats, nil
}

// ValidateLedgerFile checks that a file opens and its leading rows parse
// under the parser's profile, without loading the whole ledger
func (lp *LedgerParser) ValidateLedgerFile(filePath string) error {
	lp.logger.WithField("file_path", filePath).Info("Validating ledger file format")

	file, reader, err := lp.OpenFile(filePath, lp.profile)
	if err != nil {
		lp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open file for validation")
		return err
	}
	defer file.Close()

	parseCtx := NewParseContext(context.Background())
	headerHandled := !lp.profile.HasHeader && !lp.profile.AutoDetectHeader

	recordCount := 0
	maxValidation := 10
	var validationErrors []error

	for recordCount < maxValidation {
		record, err := lp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}

			validationErrors = append(validationErrors, errors.ParseError(
				errors.CodeInvalidFormat,
				filePath,
				parseCtx.LineNumber,
				"record",
				"",
				err,
			))
			lp.logger.WithError(err).WithField("line_number", parseCtx.LineNumber).Warn("Failed to read record during validation")
			continue
		}

		if !headerHandled {
			headerHandled = true
			if lp.isHeaderRow(record) {
				continue
			}
		}

		recordCount++

		if _, parseErr := lp.parseLedgerRecord(record, parseCtx, filePath); parseErr != nil {
			validationErrors = append(validationErrors, parseErr.Err)
			lp.logger.WithError(parseErr.Err).WithField("line_number", parseCtx.LineNumber).Warn("Failed to parse record during validation")
		}
	}

	if recordCount == 0 {
		err := errors.ValidationError(
			errors.CodeEmptyFile,
			"data_records",
			0,
			nil,
		).WithSuggestion("Ensure the file contains at least one transaction row")

		lp.logger.WithField("file_path", filePath).Error("File contains no data records")
		return err
	}

	if len(validationErrors) > 0 {
		lp.logger.WithFields(logger.Fields{
			"file_path":      filePath,
			"error_count":    len(validationErrors),
			"records_tested": recordCount,
		}).Error("File validation failed with errors")

		return errors.ValidationError(
			errors.CodeInvalidData,
			"file_format",
			fmt.Sprintf("%d validation errors out of %d records tested", len(validationErrors), recordCount),
			validationErrors[0],
		).WithSuggestion("Fix the data format issues and try again")
	}

	lp.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"records_tested": recordCount,
	}).Info("Ledger file validation completed successfully")

	return nil
}
