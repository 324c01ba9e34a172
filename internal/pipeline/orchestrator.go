// Package pipeline drives one acquisition run: primary sweep, fallback
// evaluation, prioritization and deduplication, modeled as an explicit state
// machine rather than exception-driven control flow.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedleads/harvester/internal/contracts"
	"github.com/fedleads/harvester/internal/dedup"
	"github.com/fedleads/harvester/internal/relevance"
	"github.com/fedleads/harvester/internal/telemetry"
)

// State is the orchestrator's position in one run.
type State string

// Orchestrator states in transition order.
const (
	StateRunningPrimary    State = "running_primary"
	StateFallbackTriggered State = "fallback_triggered"
	StateRunningSecondary  State = "running_secondary"
	StateDone              State = "done"
)

// PrimarySource is the paginated opportunity-search provider.
type PrimarySource interface {
	Fetch(ctx context.Context, params PrimaryParams, tally *contracts.FailureTally, ids *contracts.IDSource) ([]contracts.NormalizedContract, error)
}

// PrimaryParams describe one primary sweep.
type PrimaryParams struct {
	RunID         string
	Regions       []string
	CategoryCodes []string
	LookbackDays  int
}

// SecondarySource is the bulk-award fallback provider. A nil result means
// "no data", never an error.
type SecondarySource interface {
	Fetch(ctx context.Context, runID, region string, lookbackDays int, ids *contracts.IDSource) []contracts.NormalizedContract
}

// Config holds the per-run knobs the caller supplies.
type Config struct {
	Regions                []string
	CategoryCodes          []string
	LookbackDays           int
	SecondaryLookbackDays  int
	MaxConsecutiveFailures int
	// CredentialPresent is false when no provider API key is configured; the
	// run then skips the primary sweep entirely.
	CredentialPresent bool
}

// RunState is the mutable state owned by exactly one run. It is never shared
// across concurrent runs.
type RunState struct {
	RunID     string
	State     State
	Tally     contracts.FailureTally
	IDs       contracts.IDSource
	Dedup     *dedup.Deduplicator
	Collected []contracts.NormalizedContract
}

// Report summarizes one finished run for the caller and the ops surface.
type Report struct {
	RunID         string                         `json:"run_id"`
	StartedAt     time.Time                      `json:"started_at"`
	FinishedAt    time.Time                      `json:"finished_at"`
	FellBack      bool                           `json:"fell_back"`
	PrimaryCount  int                            `json:"primary_count"`
	DedupDropped  int                            `json:"dedup_dropped"`
	Contracts     []contracts.NormalizedContract `json:"contracts"`
	StateTrace    []State                        `json:"state_trace"`
	CredentialErr string                         `json:"credential_error,omitempty"`
}

// Orchestrator runs the primary-then-fallback acquisition state machine.
type Orchestrator struct {
	primary    PrimarySource
	secondary  SecondarySource
	classifier *relevance.Classifier
	clock      contracts.Clock
	logger     *zap.Logger
}

// New builds an Orchestrator.
func New(primary PrimarySource, secondary SecondarySource, classifier *relevance.Classifier, clock contracts.Clock, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		primary:    primary,
		secondary:  secondary,
		classifier: classifier,
		clock:      clock,
		logger:     logger,
	}
}

// Acquire executes one run and returns the deduplicated, priority-ordered
// result. The returned error is non-nil only when the primary credentials
// were rejected and the fallback produced nothing, or the context ended.
func (o *Orchestrator) Acquire(ctx context.Context, cfg Config) (Report, error) {
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 3
	}

	run := &RunState{
		RunID: uuid.NewString(),
		State: StateRunningPrimary,
		Dedup: dedup.New(),
	}
	report := Report{
		RunID:     run.RunID,
		StartedAt: o.clock.Now(),
	}
	logger := o.logger.With(zap.String("run_id", run.RunID))

	var credErr error
	if cfg.CredentialPresent {
		report.StateTrace = append(report.StateTrace, StateRunningPrimary)
		credErr = o.runPrimary(ctx, cfg, run, logger)
		report.PrimaryCount = len(run.Collected)
	} else {
		logger.Warn("no primary credential configured, skipping primary sweep")
	}

	if o.shouldFallBack(cfg, run, credErr) {
		run.State = StateFallbackTriggered
		report.StateTrace = append(report.StateTrace, StateFallbackTriggered)
		report.FellBack = true
		telemetry.ObserveFallback()
		logger.Info("falling back to secondary provider",
			zap.Int("consecutive_failures", run.Tally.Consecutive()),
			zap.Bool("credential_error", credErr != nil),
		)

		run.State = StateRunningSecondary
		report.StateTrace = append(report.StateTrace, StateRunningSecondary)
		o.runSecondary(ctx, cfg, run)
	}

	run.State = StateDone
	report.StateTrace = append(report.StateTrace, StateDone)

	ordered := relevance.Order(run.Collected)
	final, dropped := run.Dedup.Filter(ordered)
	for i := 0; i < dropped; i++ {
		telemetry.ObserveDedupDrop()
	}

	report.Contracts = final
	report.DedupDropped = dropped
	report.FinishedAt = o.clock.Now()
	telemetry.ObserveRunDuration(report.FinishedAt.Sub(report.StartedAt))

	if credErr != nil {
		report.CredentialErr = credErr.Error()
		if len(final) == 0 {
			// no provider could be reached at all
			return report, credErr
		}
	}
	if err := ctx.Err(); err != nil && len(final) == 0 {
		return report, err
	}

	logger.Info("run complete",
		zap.Int("contracts", len(final)),
		zap.Int("dedup_dropped", dropped),
		zap.Bool("fell_back", report.FellBack),
	)
	return report, nil
}

func (o *Orchestrator) runPrimary(ctx context.Context, cfg Config, run *RunState, logger *zap.Logger) error {
	records, err := o.primary.Fetch(ctx, PrimaryParams{
		RunID:         run.RunID,
		Regions:       cfg.Regions,
		CategoryCodes: cfg.CategoryCodes,
		LookbackDays:  cfg.LookbackDays,
	}, &run.Tally, &run.IDs)

	for i := range records {
		o.classifier.ClassifyRecord(&records[i])
		telemetry.ObserveIngested(string(contracts.ProvenancePrimary), string(records[i].PriorityTier), 1)
	}
	run.Collected = append(run.Collected, records...)

	if err != nil {
		logger.Error("primary sweep aborted", zap.Error(err))
		return err
	}
	return nil
}

// shouldFallBack evaluates the RUNNING_PRIMARY -> FALLBACK_TRIGGERED edge:
// a credential rejection, a missing credential, or an empty sweep with the
// consecutive-failure budget spent.
func (o *Orchestrator) shouldFallBack(cfg Config, run *RunState, credErr error) bool {
	if !cfg.CredentialPresent || credErr != nil {
		return true
	}
	if len(run.Collected) > 0 {
		return false
	}
	return run.Tally.Consecutive() >= cfg.MaxConsecutiveFailures
}

func (o *Orchestrator) runSecondary(ctx context.Context, cfg Config, run *RunState) {
	region := ""
	if len(cfg.Regions) > 0 {
		region = cfg.Regions[0]
	}
	lookback := cfg.SecondaryLookbackDays
	if lookback <= 0 {
		lookback = 90
	}
	records := o.secondary.Fetch(ctx, run.RunID, region, lookback, &run.IDs)
	run.Collected = append(run.Collected, records...)
}
