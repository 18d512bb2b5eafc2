// Package parsers provides CSV parsing for ledger files.
//
// A ledger file is a CSV with one transaction per row, by default four
// positional columns [date, department, value, counterpart] and no header,
// matching the canonical export format. Other layouts are described by a
// LedgerProfile, which can remap column positions, switch delimiters,
// declare a header row, or pin a date format; profiles can also be loaded
// from a YAML file.
//
// Parser types:
//   - LedgerParser: parses a whole ledger file into memory
//   - StreamingLedgerParser: batch-wise parsing for very large ledgers
//   - ReverseLineReader: tail-style preview reading lines from the file end
//
// Parsing is strict by default: the first malformed row aborts with an
// error carrying file, line and field context. In tolerant mode malformed
// rows are collected into ParseStats and skipped, up to a configurable
// error budget.
//
// Example usage:
//
//	parser, err := parsers.NewLedgerParser(parsers.StandardLedgerProfile, nil)
//	entries, stats, err := parser.ParseLedger(ctx, "ledgerA.csv")
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/neumann-mlucas/BWGI/pkg/errors"
	"github.com/neumann-mlucas/BWGI/pkg/logger"
)

// ParseError represents an error that occurred while parsing one CSV field
type ParseError struct {
	Line    int
	Column  int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at line %d, column %d (%s='%s'): %s: %v",
			e.Line, e.Column, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("parse error at line %d, column %d (%s='%s'): %s",
		e.Line, e.Column, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseConfig holds policy configuration for CSV parsing, independent of
// the file layout described by a LedgerProfile
type ParseConfig struct {
	// StrictMode aborts on the first malformed row instead of skipping it
	StrictMode bool

	// MaxErrors caps collected row errors in tolerant mode; exceeding it
	// aborts the parse (0 means unlimited)
	MaxErrors int

	SkipEmptyRows    bool
	TrimLeadingSpace bool
	MaxFieldSize     int
	ValidateEncoding bool
}

// DefaultParseConfig returns the default parsing policy: strict, with
// empty-row skipping and UTF-8 validation enabled
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		StrictMode:       true,
		MaxErrors:        100,
		SkipEmptyRows:    true,
		TrimLeadingSpace: true,
		MaxFieldSize:     1000000, // 1MB per field
		ValidateEncoding: true,
	}
}

// BaseParser provides common CSV parsing functionality shared by the
// ledger parsers
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("base_parser")
	log.WithFields(logger.Fields{
		"strict_mode":       config.StrictMode,
		"max_errors":        config.MaxErrors,
		"validate_encoding": config.ValidateEncoding,
	}).Debug("Created base parser")

	return &BaseParser{
		config: config,
		logger: log,
	}
}

// Config returns the parser's policy configuration
func (bp *BaseParser) Config() *ParseConfig {
	return bp.config
}

// ParseContext holds state during one parsing operation
type ParseContext struct {
	LineNumber  int
	RecordCount int
	ErrorCount  int
	Errors      []*ParseError
	ctx         context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		Errors: make([]*ParseError, 0),
		ctx:    ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// AddError records a parsing error against the current line
func (pc *ParseContext) AddError(column int, field, value, message string, err error) {
	parseErr := &ParseError{
		Line:    pc.LineNumber,
		Column:  column,
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	}
	pc.Errors = append(pc.Errors, parseErr)
	pc.ErrorCount++
}

// OpenFile opens a ledger file and returns a csv.Reader configured for
// the given profile
func (bp *BaseParser) OpenFile(filePath string, profile *LedgerProfile) (*os.File, *csv.Reader, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening ledger file")

	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open ledger file")

		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}

		return nil, nil, errors.FileError(errors.CodeFileUnreadable, filePath, err)
	}

	if bp.config.ValidateEncoding {
		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			bp.logger.WithError(err).WithField("file_path", filePath).Error("File encoding validation failed")
			return nil, nil, err // already wrapped by validateEncoding
		}

		if _, err := file.Seek(0, 0); err != nil {
			file.Close()
			return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	reader := csv.NewReader(file)
	bp.configureReader(reader, profile)

	return file, reader, nil
}

// configureReader sets up the CSV reader for the profile's layout
func (bp *BaseParser) configureReader(reader *csv.Reader, profile *LedgerProfile) {
	reader.Comma = profile.Delimiter
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1 // row width is validated per record
}

// validateEncoding checks that the leading lines of the file are valid UTF-8
func (bp *BaseParser) validateEncoding(file *os.File, filePath string) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() && lineNum < 100 {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(
				errors.CodeEncodingError,
				filePath,
				lineNum,
				"encoding",
				"",
				fmt.Errorf("invalid UTF-8 encoding detected"),
			).WithSuggestion("Save the file in UTF-8 encoding and try again")
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	return nil
}

// ReadRecord reads the next non-empty CSV record, honoring cancellation
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			bp.logger.Debug("Record reading cancelled by context")
			return nil, errors.InternalError(
				errors.CodeOperationCancelled,
				"ledger_parsing",
				parseCtx.ctx.Err(),
			)
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err // normal end of file
			}

			bp.logger.WithError(err).WithField("line_number", parseCtx.LineNumber+1).Warn("Failed to read CSV record")
			return nil, err
		}

		parseCtx.LineNumber++

		if bp.config.SkipEmptyRows && bp.isEmptyRecord(record) {
			bp.logger.WithField("line_number", parseCtx.LineNumber).Debug("Skipping empty record")
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) > bp.config.MaxFieldSize {
					truncated := field[:50] + "..."
					parseCtx.AddError(i, fmt.Sprintf("field_%d", i), truncated,
						fmt.Sprintf("field exceeds maximum size of %d bytes", bp.config.MaxFieldSize), nil)

					return nil, errors.ParseError(
						errors.CodeFieldTooLarge,
						"",
						parseCtx.LineNumber,
						fmt.Sprintf("field_%d", i),
						truncated,
						fmt.Errorf("field size limit exceeded"),
					).WithSuggestion(fmt.Sprintf("Reduce field size to under %d bytes", bp.config.MaxFieldSize))
				}
			}
		}

		return record, nil
	}
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func (bp *BaseParser) isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// FieldAt safely retrieves the record field at the given column index
func (bp *BaseParser) FieldAt(record []string, parseCtx *ParseContext, index int, name string) (string, error) {
	if index < 0 || index >= len(record) {
		return "", errors.ParseError(
			errors.CodeMissingColumn,
			"",
			parseCtx.LineNumber,
			name,
			"",
			fmt.Errorf("column %d (%s) not present in record with %d fields", index, name, len(record)),
		).WithSuggestion("Check that every row has the columns the ledger profile expects")
	}

	return strings.TrimSpace(record[index]), nil
}

// ParseStats holds statistics about one parsing operation
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RecordsValid  int
	ErrorCount    int
	Errors        []*ParseError
}

// NewParseStats creates a new ParseStats instance
func NewParseStats() *ParseStats {
	return &ParseStats{
		Errors: make([]*ParseError, 0),
	}
}

// AddError adds an error to the parsing statistics
func (ps *ParseStats) AddError(err *ParseError) {
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors returns true if there were any parsing errors
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d valid), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, ps.ErrorCount)
}

// GetSampleErrors returns up to maxSamples error strings for reporting
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	if len(ps.Errors) == 0 {
		return nil
	}

	var samples []string
	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}

	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}

	return samples
}
