// Package orchestrator implements C8: the run driver that sequences
// the screener's seven phases (Init, Market Context, Scan, Predict,
// Rank, Emit, Close), runs each phase's fan-out over a bounded worker
// pool, and records a domain.RunState checkpoint the whole way through.
// Grounded on the teacher's internal/application/pipeline.PipelineExecutor:
// the same named/timed/logged/short-circuiting step loop, generalized
// from a single crypto scan pass to this spec's phase graph and
// partial-failure policy (a phase degrades on partial loss, fails only
// on total loss, and only a Market Context or Scan failure aborts the
// run early).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
	logprogress "github.com/sawpanic/screener/internal/log"
	"github.com/sawpanic/screener/internal/providers"
	"github.com/sawpanic/screener/internal/regime"
)

// SeriesFetcher is the narrow slice of providers.Fetcher the
// orchestrator drives directly (market index history, per-symbol
// history during Predict).
type SeriesFetcher interface {
	GetSeries(ctx context.Context, symbol domain.Symbol, period domain.Period) (providers.FetchResult, error)
}

// QuoteFetcher supplies point-in-time quotes for the US indices the
// gap monitor blends.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol domain.Symbol) (domain.Quote, bool, error)
}

// RegimeDetector classifies market-wide volatility from a local
// index's trailing closes.
type RegimeDetector interface {
	Detect(prices []float64) regime.Result
}

// GapPredictor blends US index returns into a predicted local gap.
type GapPredictor interface {
	PredictGap(indices []domain.USIndexQuote) (pct, confidence float64)
}

// SentimentEngine resolves one symbol's aggregate sentiment, folding
// news retrieval and classification behind a single call so the
// orchestrator doesn't depend on internal/news or internal/sentiment
// directly.
type SentimentEngine interface {
	Sentiment(ctx context.Context, symbol domain.Symbol) (domain.AggregateSentiment, error)
}

// SymbolScanner scores one symbol (C5).
type SymbolScanner interface {
	ScanSymbol(ctx context.Context, sector string, symbol domain.Symbol) (domain.ScanResult, error)
}

// Predictor produces one symbol's ensemble prediction (C6).
type Predictor interface {
	Predict(ctx context.Context, symbol domain.Symbol, series domain.PriceSeries, snapshot domain.MarketSnapshot, sentiment domain.AggregateSentiment) domain.Prediction
}

// ReportEmitter writes the run's report artifacts (C9).
type ReportEmitter interface {
	Emit(ctx context.Context, state domain.RunState) ([]domain.RunArtifact, error)
}

// RunStore persists run-state checkpoints (C10).
type RunStore interface {
	SaveRunState(ctx context.Context, state domain.RunState) error
}

// Orchestrator wires every component into the seven-phase run.
type Orchestrator struct {
	cfg              config.Config
	fetcher          SeriesFetcher
	quotes           QuoteFetcher
	regime           RegimeDetector
	gap              GapPredictor
	sentiment        SentimentEngine
	scanner          SymbolScanner
	predictor        Predictor
	reporter         ReportEmitter
	store            RunStore
	localIndexSymbol domain.Symbol
	usIndexSymbols   map[string]domain.Symbol
	skipPredict      bool
}

// SetSkipPredict toggles the --skip-predict CLI override: Predict is
// recorded as skipped and Rank falls back to scan-only ordering
// (every opportunity carries a zero-value prediction).
func (o *Orchestrator) SetSkipPredict(skip bool) {
	o.skipPredict = skip
}

// New builds an Orchestrator. usIndexSymbols maps the gap config's
// weight keys (e.g. "sp500") to the fetchable quote symbol for that
// index (e.g. "^GSPC").
func New(
	cfg config.Config,
	fetcher SeriesFetcher,
	quotes QuoteFetcher,
	regimeDetector RegimeDetector,
	gap GapPredictor,
	sentiment SentimentEngine,
	scanner SymbolScanner,
	predictor Predictor,
	reporter ReportEmitter,
	store RunStore,
	localIndexSymbol domain.Symbol,
	usIndexSymbols map[string]domain.Symbol,
) *Orchestrator {
	return &Orchestrator{
		cfg:              cfg,
		fetcher:          fetcher,
		quotes:           quotes,
		regime:           regimeDetector,
		gap:              gap,
		sentiment:        sentiment,
		scanner:          scanner,
		predictor:        predictor,
		reporter:         reporter,
		store:            store,
		localIndexSymbol: localIndexSymbol,
		usIndexSymbols:   usIndexSymbols,
	}
}

// workingSet holds the transient, per-run intermediate data that
// doesn't belong in the persisted domain.RunState (per-sector scan
// results, per-symbol predictions) — only the final ranked
// opportunities survive into the checkpoint.
type workingSet struct {
	scans       map[string][]domain.ScanResult
	predictions map[domain.Symbol]domain.Prediction
}

type phaseFunc func(ctx context.Context, state *domain.RunState, work *workingSet) (status domain.PhaseStatus, succeeded, failed int, reason string, err error)

type phaseStep struct {
	phase domain.RunPhase
	label string
	fn    phaseFunc
}

// abortingPhases are the only phases whose total failure short-circuits
// the rest of the run (spec §4.8): losing market context or the whole
// scan universe leaves nothing for Predict/Rank to work with, but a
// failed Predict still lets Emit publish whatever Scan/Rank produced.
func abortingPhase(phase domain.RunPhase) bool {
	return phase == domain.PhaseMarketContext || phase == domain.PhaseScan
}

// Run drives the full seven-phase pipeline once, producing a
// terminal domain.RunState regardless of how the run ends. Every
// build persists whatever it reached, even on cancellation: Emit and
// Close always run, using a context detached from ctx's cancellation
// so a late Ctrl-C still leaves a readable report and checkpoint
// behind.
func (o *Orchestrator) Run(ctx context.Context) (domain.RunState, error) {
	state := domain.RunState{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	work := &workingSet{}

	steps := []phaseStep{
		{domain.PhaseInit, "Init", o.runInit},
		{domain.PhaseMarketContext, "Market Context", o.runMarketContext},
		{domain.PhaseScan, "Scan", o.runScan},
		{domain.PhasePredict, "Predict", o.runPredict},
		{domain.PhaseRank, "Rank", o.runRank},
		{domain.PhaseEmit, "Emit", o.runEmit},
		{domain.PhaseClose, "Close", o.runClose},
	}

	stepLogger := logprogress.NewStepLogger("screener run", stepLabels(steps))

	aborted := false
	abortReason := ""
	cancelled := false

	for _, step := range steps {
		runsRegardlessOfAbort := step.phase == domain.PhaseEmit || step.phase == domain.PhaseClose

		if step.phase == domain.PhasePredict && o.skipPredict {
			recordSkipped(&state, step.phase, "predict skipped via --skip-predict")
			stepLogger.StartStep(step.label)
			stepLogger.CompleteStep()
			continue
		}

		if ctx.Err() != nil && !runsRegardlessOfAbort {
			cancelled = true
		}
		if (cancelled || aborted) && !runsRegardlessOfAbort {
			reason := abortReason
			if cancelled {
				reason = "run cancelled"
			}
			recordSkipped(&state, step.phase, reason)
			stepLogger.StartStep(step.label)
			stepLogger.CompleteStep()
			continue
		}

		stepCtx := ctx
		if runsRegardlessOfAbort {
			stepCtx = detach(ctx)
		}

		stepLogger.StartStep(step.label)
		startedAt := time.Now().UTC()
		status, succeeded, failed, reason, err := step.fn(stepCtx, &state, work)
		finishedAt := time.Now().UTC()
		stepLogger.CompleteStep()

		state.Phases = append(state.Phases, domain.PhaseRecord{
			Phase:      step.phase,
			Status:     status,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Succeeded:  succeeded,
			Failed:     failed,
			Reason:     reason,
		})

		log.Info().
			Str("phase", string(step.phase)).
			Str("status", string(status)).
			Dur("duration", finishedAt.Sub(startedAt)).
			Int("succeeded", succeeded).
			Int("failed", failed).
			Msg("orchestrator: phase completed")

		if err != nil {
			log.Error().Err(err).Str("phase", string(step.phase)).Msg("orchestrator: phase error")
		}

		if status == domain.PhaseFailed && abortingPhase(step.phase) {
			aborted = true
			abortReason = reason
		}
	}

	state.Status = finalStatus(state.Phases, cancelled)
	state.FinishedAt = time.Now().UTC()

	var runErr error
	if state.Status == domain.RunFailed {
		runErr = fmt.Errorf("run %s failed: %s", state.RunID, abortReason)
		stepLogger.Fail(abortReason)
	} else {
		stepLogger.Finish()
	}
	return state, runErr
}

// detach keeps ctx's values but drops its cancellation/deadline, so
// Emit and Close can still run to completion after the parent
// context is cancelled (spec §4.8: a mid-run stop still leaves a
// readable report and checkpoint behind).
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func stepLabels(steps []phaseStep) []string {
	labels := make([]string, len(steps))
	for i, s := range steps {
		labels[i] = s.label
	}
	return labels
}

func recordSkipped(state *domain.RunState, phase domain.RunPhase, reason string) {
	now := time.Now().UTC()
	state.Phases = append(state.Phases, domain.PhaseRecord{
		Phase:      phase,
		Status:     domain.PhaseSkipped,
		StartedAt:  now,
		FinishedAt: now,
		Reason:     reason,
	})
}

// finalStatus derives the run's terminal status from its phase
// history: cancellation wins outright, then any failed phase, then
// any degraded phase, else a clean run.
func finalStatus(phases []domain.PhaseRecord, cancelled bool) domain.RunStatus {
	if cancelled {
		return domain.RunCancelled
	}
	degraded := false
	for _, p := range phases {
		if p.Status == domain.PhaseFailed {
			return domain.RunFailed
		}
		if p.Status == domain.PhaseDegraded {
			degraded = true
		}
	}
	if degraded {
		return domain.RunPartial
	}
	return domain.RunDone
}

func (o *Orchestrator) workers() int64 {
	if o.cfg.Orchestrator.Workers <= 0 {
		return 1
	}
	return int64(o.cfg.Orchestrator.Workers)
}
