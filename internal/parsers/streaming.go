package parsers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neumann-mlucas/BWGI/internal/models"
)

// StreamingConfig holds configuration for batch-wise ledger parsing
type StreamingConfig struct {
	BatchSize        int  `json:"batch_size"`
	MaxConcurrency   int  `json:"max_concurrency"`
	ReportProgress   bool `json:"report_progress"`
	ProgressInterval int  `json:"progress_interval"`
}

// DefaultStreamingConfig returns sensible streaming defaults
func DefaultStreamingConfig() *StreamingConfig {
	return &StreamingConfig{
		BatchSize:        1000,
		MaxConcurrency:   4,
		ReportProgress:   false,
		ProgressInterval: 5000,
	}
}

// Validate checks the streaming configuration
func (sc *StreamingConfig) Validate() error {
	if sc.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", sc.BatchSize)
	}
	if sc.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", sc.MaxConcurrency)
	}
	if sc.ReportProgress && sc.ProgressInterval <= 0 {
		return fmt.Errorf("progress interval must be positive when progress reporting is on, got %d", sc.ProgressInterval)
	}
	return nil
}

// ProgressReport describes parsing progress for long-running operations.
// PercentComplete is only meaningful when EstimatedTotal is known.
type ProgressReport struct {
	ProcessedRecords int
	ValidRecords     int
	ErrorCount       int
	ElapsedTime      time.Duration
	EstimatedTotal   int
	PercentComplete  float64
}

// ProgressCallback is called periodically to report parsing progress
type ProgressCallback func(*ProgressReport)

// StreamingLedgerParser parses ledgers too large to hold comfortably in
// memory: transactions are delivered in batches and progress can be
// reported at configurable intervals.
type StreamingLedgerParser struct {
	*LedgerParser
	config *StreamingConfig
}

// NewStreamingLedgerParser creates a streaming parser for the given
// profile and streaming configuration
func NewStreamingLedgerParser(profile *LedgerProfile, parseConfig *ParseConfig, streamConfig *StreamingConfig) (*StreamingLedgerParser, error) {
	if streamConfig == nil {
		streamConfig = DefaultStreamingConfig()
	}

	if err := streamConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid streaming configuration: %w", err)
	}

	ledgerParser, err := NewLedgerParser(profile, parseConfig)
	if err != nil {
		return nil, err
	}

	return &StreamingLedgerParser{
		LedgerParser: ledgerParser,
		config:       streamConfig,
	}, nil
}

// ParseLedgerStreamAdvanced parses a ledger in batches with optional
// progress reporting
func (slp *StreamingLedgerParser) ParseLedgerStreamAdvanced(
	ctx context.Context,
	filePath string,
	callback LedgerStreamCallback,
	progressCallback ProgressCallback,
) (*ParseStats, error) {
	startTime := time.Now()

	var estimatedTotal int
	if slp.config.ReportProgress && progressCallback != nil {
		if total, err := slp.estimateRecordCount(filePath); err == nil {
			estimatedTotal = total
		}
	}

	validSoFar := 0
	lastReported := 0

	batchCallback := func(entries []*models.Transaction) error {
		select {
		case <-ctx.Done():
			return fmt.Errorf("processing cancelled: %w", ctx.Err())
		default:
		}

		if err := callback(entries); err != nil {
			return fmt.Errorf("user callback error: %w", err)
		}

		validSoFar += len(entries)

		if slp.config.ReportProgress && progressCallback != nil &&
			validSoFar-lastReported >= slp.config.ProgressInterval {
			lastReported = validSoFar

			var percentComplete float64
			if estimatedTotal > 0 {
				percentComplete = float64(validSoFar) / float64(estimatedTotal) * 100
			}

			progressCallback(&ProgressReport{
				ProcessedRecords: validSoFar,
				ValidRecords:     validSoFar,
				ElapsedTime:      time.Since(startTime),
				EstimatedTotal:   estimatedTotal,
				PercentComplete:  percentComplete,
			})
		}

		return nil
	}

	stats, err := slp.ParseLedgerStreamWithContext(ctx, filePath, slp.config.BatchSize, batchCallback)

	if stats != nil && slp.config.ReportProgress && progressCallback != nil {
		progressCallback(&ProgressReport{
			ProcessedRecords: stats.RecordsParsed,
			ValidRecords:     stats.RecordsValid,
			ErrorCount:       stats.ErrorCount,
			ElapsedTime:      time.Since(startTime),
			EstimatedTotal:   estimatedTotal,
			PercentComplete:  100.0,
		})
	}

	return stats, err
}

// estimateRecordCount counts the data rows in the file for progress
// estimation
func (slp *StreamingLedgerParser) estimateRecordCount(filePath string) (int, error) {
	file, reader, err := slp.OpenFile(filePath, slp.profile)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	parseCtx := NewParseContext(context.Background())

	count := 0
	for {
		if _, err := slp.ReadRecord(reader, parseCtx); err != nil {
			break
		}
		count++
	}

	if slp.profile.HasHeader && count > 0 {
		count--
	}

	return count, nil
}

// ConcurrentParser parses multiple ledger files concurrently with a
// bounded number of workers
type ConcurrentParser struct {
	maxConcurrency int
	semaphore      chan struct{}
}

// NewConcurrentParser creates a concurrent parser with the given worker
// bound
func NewConcurrentParser(maxConcurrency int) *ConcurrentParser {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	return &ConcurrentParser{
		maxConcurrency: maxConcurrency,
		semaphore:      make(chan struct{}, maxConcurrency),
	}
}

// ConcurrentParseResult holds the outcome of parsing one ledger file
type ConcurrentParseResult struct {
	FilePath string
	Entries  []*models.Transaction
	Stats    *ParseStats
	Error    error
}

// ParseLedgersConcurrently parses the given ledger files concurrently.
// Results arrive on the returned channel in completion order; the channel
// is closed once every file has been processed.
func (cp *ConcurrentParser) ParseLedgersConcurrently(
	ctx context.Context,
	files map[string]*LedgerProfile,
	config *ParseConfig,
) <-chan *ConcurrentParseResult {
	results := make(chan *ConcurrentParseResult, len(files))

	var wg sync.WaitGroup

	for filePath, profile := range files {
		wg.Add(1)

		go func(path string, prof *LedgerProfile) {
			defer wg.Done()

			cp.semaphore <- struct{}{}
			defer func() { <-cp.semaphore }()

			result := &ConcurrentParseResult{FilePath: path}

			parser, err := NewLedgerParser(prof, config)
			if err != nil {
				result.Error = fmt.Errorf("failed to create parser: %w", err)
				results <- result
				return
			}

			entries, stats, err := parser.ParseLedgerWithContext(ctx, path)
			result.Entries = entries
			result.Stats = stats
			result.Error = err

			results <- result
		}(filePath, profile)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
