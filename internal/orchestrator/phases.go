package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/gapmonitor"
	"github.com/sawpanic/screener/internal/ranker"
)

// runInit validates that there is a universe to work with before
// anything else spins up. An empty universe is a hard failure: every
// later phase is a no-op without it.
func (o *Orchestrator) runInit(ctx context.Context, state *domain.RunState, work *workingSet) (domain.PhaseStatus, int, int, string, error) {
	if len(o.cfg.Universe.Sectors) == 0 {
		return domain.PhaseFailed, 0, 0, "universe has no configured sectors", errors.New("empty universe")
	}
	return domain.PhaseOK, len(o.cfg.Universe.Sectors), 0, "", nil
}

// runMarketContext runs regime detection and the gap prediction
// concurrently (spec §4.8: these two don't depend on each other) and
// folds both into one domain.MarketSnapshot. Either side failing
// degrades the phase rather than failing it outright, unless both are
// unusable, in which case Scan/Predict would have nothing to key a
// sector-wide override on and the run aborts.
func (o *Orchestrator) runMarketContext(ctx context.Context, state *domain.RunState, work *workingSet) (domain.PhaseStatus, int, int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.PhaseTimeout("market_context", 60*time.Second))
	defer cancel()

	var localSeries domain.PriceSeries
	var localErr error
	var usIndices []domain.USIndexQuote

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := o.fetcher.GetSeries(gctx, o.localIndexSymbol, domain.Period6Months)
		localSeries = fetched.Series
		localErr = err
		return nil
	})
	g.Go(func() error {
		usIndices = o.fetchUSIndices(gctx)
		return nil
	})
	_ = g.Wait()

	snapshot := domain.MarketSnapshot{AsOf: time.Now().UTC(), USIndices: usIndices}
	var reasons []string
	degraded := false

	if localErr != nil || len(localSeries.Bars) == 0 {
		degraded = true
		reasons = append(reasons, "local index unavailable")
		snapshot.RegimeLabel = domain.RegimeUnknown
	} else {
		closes := closesOf(localSeries.Bars)
		snapshot.LocalIndex = indexChangeFrom(closes)
		result := o.regime.Detect(closes)
		snapshot.RegimeLabel = result.Label
		snapshot.CrashRisk = result.CrashRisk
		if result.Label == domain.RegimeUnknown {
			degraded = true
			reasons = append(reasons, "insufficient history for regime detection")
		}
	}

	gapPct, gapConfidence := o.gap.PredictGap(usIndices)
	snapshot.PredictedGapPct = gapPct
	snapshot.GapConfidence = gapConfidence
	if gapConfidence < 1 {
		degraded = true
		reasons = append(reasons, "one or more US indices unavailable")
	}

	snapshot.SentimentScore = gapmonitor.SentimentScore(usIndices, gapPct, gapConfidence, snapshot.LocalIndex)
	snapshot.SentimentBand = gapmonitor.SentimentBand(snapshot.SentimentScore, gapConfidence)
	snapshot.Degraded = degraded
	snapshot.DegradeReasons = reasons
	state.Snapshot = snapshot

	if localErr != nil && gapConfidence == 0 {
		return domain.PhaseFailed, 0, 1, "no local index and no usable US indices", fmt.Errorf("market context unusable: %w", localErr)
	}
	if degraded {
		return domain.PhaseDegraded, 1, 0, joinReasons(reasons), nil
	}
	return domain.PhaseOK, 1, 0, "", nil
}

func (o *Orchestrator) fetchUSIndices(ctx context.Context) []domain.USIndexQuote {
	names := make([]string, 0, len(o.usIndexSymbols))
	for name := range o.usIndexSymbols {
		names = append(names, name)
	}
	sort.Strings(names)

	indices := make([]domain.USIndexQuote, 0, len(names))
	for _, name := range names {
		sym := o.usIndexSymbols[name]
		quote, ok, err := o.quotes.GetQuote(ctx, sym)
		if err != nil || !ok || quote.PrevClose <= 0 {
			indices = append(indices, domain.USIndexQuote{Name: name, Unavailable: true})
			continue
		}
		indices = append(indices, domain.USIndexQuote{
			Name:       name,
			PriorClose: quote.PrevClose,
			ReturnPct:  (quote.Price - quote.PrevClose) / quote.PrevClose * 100,
		})
	}
	return indices
}

// runScan scores every sector's universe, sectors iterated serially
// but each sector's symbols fanned out across a bounded worker pool
// (spec §4.8/§5). A symbol fetch failure drops that symbol without
// aborting its sector; the whole phase only fails if not a single
// symbol scored anywhere.
func (o *Orchestrator) runScan(ctx context.Context, state *domain.RunState, work *workingSet) (domain.PhaseStatus, int, int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.PhaseTimeout("scan", 5*time.Minute))
	defer cancel()

	sectors := make([]string, 0, len(o.cfg.Universe.Sectors))
	for sector := range o.cfg.Universe.Sectors {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	work.scans = make(map[string][]domain.ScanResult, len(sectors))
	totalSucceeded, totalFailed := 0, 0

	for _, sector := range sectors {
		raw := o.cfg.Universe.Sectors[sector]
		symbols := make([]domain.Symbol, len(raw))
		for i, s := range raw {
			symbols[i] = domain.Symbol(s)
		}

		results, failed := o.scanSectorConcurrently(ctx, sector, symbols)
		ranked := rankSorted(results, o.cfg.Universe.TopNPerSector)
		work.scans[sector] = ranked

		totalSucceeded += len(results)
		totalFailed += failed
	}

	if totalSucceeded == 0 {
		return domain.PhaseFailed, 0, totalFailed, "no symbols scanned successfully across any sector", errors.New("scan phase produced zero results")
	}
	if totalFailed > 0 {
		return domain.PhaseDegraded, totalSucceeded, totalFailed, fmt.Sprintf("%d symbol fetches failed during scan", totalFailed), nil
	}
	return domain.PhaseOK, totalSucceeded, 0, "", nil
}

func (o *Orchestrator) scanSectorConcurrently(ctx context.Context, sector string, symbols []domain.Symbol) ([]domain.ScanResult, int) {
	sem := semaphore.NewWeighted(o.workers())
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var results []domain.ScanResult
	failed := 0

	for _, sym := range symbols {
		sym := sym
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			result, err := o.scanner.ScanSymbol(gctx, sector, sym)
			if err != nil {
				log.Warn().Err(err).Str("sector", sector).Str("symbol", string(sym)).Msg("orchestrator: scan dropped symbol")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			if result.Valid {
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, failed
}

func rankSorted(results []domain.ScanResult, topN int) []domain.ScanResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Symbol < results[j].Symbol
	})
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

// runPredict feeds every scanned symbol through the ensemble, bounded
// by the same worker pool size as Scan. A symbol's own data or
// sentiment fetch failing drops only that symbol's prediction; the
// phase fails outright only if nothing could be predicted at all.
func (o *Orchestrator) runPredict(ctx context.Context, state *domain.RunState, work *workingSet) (domain.PhaseStatus, int, int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.PhaseTimeout("predict", 5*time.Minute))
	defer cancel()

	all := flattenScans(work.scans)
	if len(all) == 0 {
		return domain.PhaseSkipped, 0, 0, "no scanned symbols to predict", nil
	}

	sem := semaphore.NewWeighted(o.workers())
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	predictions := make(map[domain.Symbol]domain.Prediction, len(all))
	failed := 0

	for _, scan := range all {
		scan := scan
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			symCtx, cancel := context.WithTimeout(gctx, 60*time.Second)
			defer cancel()

			fetched, err := o.fetcher.GetSeries(symCtx, scan.Symbol, domain.Period3Months)
			if err != nil {
				log.Warn().Err(err).Str("symbol", string(scan.Symbol)).Msg("orchestrator: predict dropped symbol, no price history")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			aggregate, err := o.sentiment.Sentiment(symCtx, scan.Symbol)
			if err != nil {
				log.Warn().Err(err).Str("symbol", string(scan.Symbol)).Msg("orchestrator: sentiment unavailable, predicting without news")
				aggregate = domain.AggregateSentiment{Symbol: scan.Symbol}
			}

			prediction := o.predictor.Predict(symCtx, scan.Symbol, fetched.Series, state.Snapshot, aggregate)
			mu.Lock()
			predictions[scan.Symbol] = prediction
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	work.predictions = predictions

	if len(predictions) == 0 {
		return domain.PhaseFailed, 0, len(all), "no predictions produced", errors.New("predict phase produced zero results")
	}
	if failed > 0 {
		return domain.PhaseDegraded, len(predictions), failed, fmt.Sprintf("%d symbols failed prediction", failed), nil
	}
	return domain.PhaseOK, len(predictions), 0, "", nil
}

// runRank combines scan and prediction into the final deterministic
// opportunity list (C7), purely in-process with no I/O.
func (o *Orchestrator) runRank(ctx context.Context, state *domain.RunState, work *workingSet) (domain.PhaseStatus, int, int, string, error) {
	all := flattenScans(work.scans)

	var opportunities []domain.Opportunity
	if o.skipPredict {
		opportunities = ranker.RankScanOnly(all, o.cfg.Orchestrator.TopOpportunities)
	} else {
		opportunities = ranker.Rank(all, work.predictions, o.cfg.Orchestrator.TopOpportunities)
	}
	state.Opportunities = opportunities

	if len(opportunities) == 0 {
		if len(all) == 0 {
			return domain.PhaseSkipped, 0, 0, "nothing scanned to rank", nil
		}
		return domain.PhaseDegraded, 0, 0, "no symbol had both a scan result and a prediction", nil
	}
	return domain.PhaseOK, len(opportunities), 0, "", nil
}

// runEmit writes the report artifacts for whatever the run reached.
// It always runs, even after an abort, so a failed run still leaves a
// readable (if partial) report behind.
func (o *Orchestrator) runEmit(ctx context.Context, state *domain.RunState, work *workingSet) (domain.PhaseStatus, int, int, string, error) {
	artifacts, err := o.reporter.Emit(ctx, *state)
	if err != nil {
		return domain.PhaseFailed, 0, 1, "report emission failed", fmt.Errorf("emit: %w", err)
	}
	state.Artifacts = artifacts
	return domain.PhaseOK, len(artifacts), 0, "", nil
}

// runClose persists the run's final checkpoint. It always runs so
// every run, however it ended, leaves a retrievable record.
func (o *Orchestrator) runClose(ctx context.Context, state *domain.RunState, work *workingSet) (domain.PhaseStatus, int, int, string, error) {
	if err := o.store.SaveRunState(ctx, *state); err != nil {
		return domain.PhaseFailed, 0, 1, "run-state persistence failed", fmt.Errorf("close: %w", err)
	}
	return domain.PhaseOK, 1, 0, "", nil
}

func flattenScans(bySector map[string][]domain.ScanResult) []domain.ScanResult {
	sectors := make([]string, 0, len(bySector))
	for sector := range bySector {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	var all []domain.ScanResult
	for _, sector := range sectors {
		all = append(all, bySector[sector]...)
	}
	return all
}

func closesOf(bars []domain.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func indexChangeFrom(closes []float64) domain.IndexChange {
	n := len(closes)
	if n == 0 {
		return domain.IndexChange{}
	}
	last := closes[n-1]
	pctBack := func(k int) float64 {
		if n <= k {
			return 0
		}
		prior := closes[n-1-k]
		if prior == 0 {
			return 0
		}
		return (last - prior) / prior * 100
	}
	return domain.IndexChange{
		Last:   last,
		Pct1D:  pctBack(1),
		Pct5D:  pctBack(5),
		Pct7D:  pctBack(7),
		Pct14D: pctBack(14),
	}
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}
