package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/neumann-mlucas/BWGI/internal/matcher"
	"github.com/neumann-mlucas/BWGI/pkg/errors"
	"github.com/neumann-mlucas/BWGI/pkg/logger"

	"github.com/google/uuid"
)

// Orchestrator wraps a ReconciliationService with step-level progress
// reporting for interactive runs. It executes the same pipeline as
// ProcessReconciliation, notifying registered callbacks between steps.
type Orchestrator struct {
	service *ReconciliationService
	logger  logger.Logger

	progressCallbacks []ProgressCallback
	currentProgress   *Progress
	progressMutex     sync.RWMutex
}

// Progress is a snapshot of a running reconciliation
type Progress struct {
	TotalSteps         int           `json:"total_steps"`
	CompletedSteps     int           `json:"completed_steps"`
	CurrentStep        string        `json:"current_step"`
	PercentComplete    float64       `json:"percent_complete"`
	StartTime          time.Time     `json:"start_time"`
	ElapsedTime        time.Duration `json:"elapsed_time"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
}

// ProgressCallback receives progress snapshots as the pipeline advances
type ProgressCallback func(*Progress)

// pipelineSteps is the number of reported steps in an orchestrated run
const pipelineSteps = 6

// NewOrchestrator creates an orchestrator around the given service
func NewOrchestrator(service *ReconciliationService) (*Orchestrator, error) {
	if service == nil {
		return nil, errors.ValidationError(
			errors.CodeMissingField,
			"reconciliation_service",
			nil,
			nil,
		).WithSuggestion("Provide a valid ReconciliationService instance")
	}

	return &Orchestrator{
		service: service,
		logger:  logger.GetGlobalLogger().WithComponent("orchestrator"),
		currentProgress: &Progress{
			TotalSteps: pipelineSteps,
		},
	}, nil
}

// AddProgressCallback registers a callback for progress snapshots.
// Callbacks run synchronously on the pipeline goroutine and should
// return quickly.
func (o *Orchestrator) AddProgressCallback(callback ProgressCallback) {
	o.progressCallbacks = append(o.progressCallbacks, callback)
}

// GetProgress returns a copy of the most recent progress snapshot
func (o *Orchestrator) GetProgress() Progress {
	o.progressMutex.RLock()
	defer o.progressMutex.RUnlock()
	return *o.currentProgress
}

// Run executes the reconciliation pipeline with progress reporting.
// The result is identical to ReconciliationService.ProcessReconciliation
// on the same request.
func (o *Orchestrator) Run(ctx context.Context, request *Request) (*Result, error) {
	o.initializeProgress()
	startTime := time.Now()

	o.updateProgress("Validating request", 0)
	if err := request.Validate(); err != nil {
		o.logger.WithError(err).Error("Request validation failed")
		return nil, err
	}
	runID := uuid.New().String()

	o.updateProgress("Parsing ledgers", 1)
	parsingStart := time.Now()
	ledgerA, ledgerB, parseOutcome, err := o.service.parseLedgers(ctx, request)
	if err != nil {
		return nil, err
	}
	parsingTime := time.Since(parsingStart)

	o.updateProgress("Applying date filter", 2)
	ledgerA, ledgerB = o.service.filterByDateRange(ledgerA, ledgerB, request)

	o.updateProgress("Matching entries", 3)
	matchingStart := time.Now()
	engine := matcher.NewMatchingEngine()
	matchResult := engine.Reconcile(ledgerA, ledgerB)
	matchingTime := time.Since(matchingStart)

	o.updateProgress("Analyzing discrepancies", 4)
	var discrepancies []*Discrepancy
	if o.service.config.AnalyzeDiscrepancies {
		discrepancies = o.service.analyzeDiscrepancies(matchResult)
	}

	o.updateProgress("Assembling result", 5)
	result := o.service.assembleResult(runID, request, matchResult, discrepancies, assembleTimings{
		startedAt:    startTime,
		parsingTime:  parsingTime,
		matchingTime: matchingTime,
		parseErrors:  parseOutcome.errorCount,
	})

	o.updateProgress("Completed", pipelineSteps)
	return result, nil
}

func (o *Orchestrator) initializeProgress() {
	o.progressMutex.Lock()
	defer o.progressMutex.Unlock()

	o.currentProgress = &Progress{
		TotalSteps: pipelineSteps,
		StartTime:  time.Now(),
	}
}

func (o *Orchestrator) updateProgress(step string, completed int) {
	o.progressMutex.Lock()

	p := o.currentProgress
	p.CurrentStep = step
	p.CompletedSteps = completed
	p.ElapsedTime = time.Since(p.StartTime)
	p.PercentComplete = float64(completed) / float64(p.TotalSteps) * 100

	if completed > 0 && completed < p.TotalSteps {
		avgPerStep := p.ElapsedTime / time.Duration(completed)
		p.EstimatedRemaining = avgPerStep * time.Duration(p.TotalSteps-completed)
	} else {
		p.EstimatedRemaining = 0
	}

	snapshot := *p
	callbacks := o.progressCallbacks
	o.progressMutex.Unlock()

	for _, callback := range callbacks {
		callback(&snapshot)
	}
}
