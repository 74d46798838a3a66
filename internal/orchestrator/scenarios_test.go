package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/regime"
)

// TestScenarioS1HappyPathBullishOvernight exercises spec S1 end to
// end: five ASX financials, a full 60-day local index history, and US
// indices all +0.5%. Every symbol should score, the snapshot should
// read CALM/NORMAL with a BUY-or-better sentiment band, and the run
// should finish DONE with a non-empty opportunity list.
func TestScenarioS1HappyPathBullishOvernight(t *testing.T) {
	financials := []domain.Symbol{"CBA.AX", "NAB.AX", "ANZ.AX", "WBC.AX", "MQG.AX"}

	fetcher := &fakeFetcher{series: map[domain.Symbol]domain.PriceSeries{
		"^AXJO": {Symbol: "^AXJO", Bars: validBars(100)},
	}, errs: map[domain.Symbol]error{}}
	for _, sym := range financials {
		fetcher.series[sym] = domain.PriceSeries{Symbol: sym, Bars: validBars(90)}
	}

	quotes := &fakeQuotes{quotes: map[domain.Symbol]domain.Quote{
		"^GSPC": {Symbol: "^GSPC", Price: 100.5, PrevClose: 100},
		"^DJI":  {Symbol: "^DJI", Price: 100.5, PrevClose: 100},
		"^IXIC": {Symbol: "^IXIC", Price: 100.5, PrevClose: 100},
	}}

	regimeFake := &fakeRegime{result: regime.Result{Label: domain.RegimeNormal, CrashRisk: 0.1}}
	gapFake := &fakeGap{pct: 0.325, confidence: 1.0}

	scanner := &fakeScanner{results: map[domain.Symbol]domain.ScanResult{}, errs: map[domain.Symbol]error{}}
	for i, sym := range financials {
		scanner.results[sym] = domain.ScanResult{Symbol: sym, Sector: "financials", Score: 70 + float64(i), Valid: true}
	}

	reporter := &fakeReporter{artifacts: []domain.RunArtifact{{Kind: "json", Path: "pipeline_state.json"}}}
	store := &fakeStore{}

	cfg := config.Config{
		Universe: config.UniverseConfig{
			Sectors:       map[string][]string{"financials": {"CBA.AX", "NAB.AX", "ANZ.AX", "WBC.AX", "MQG.AX"}},
			TopNPerSector: 10,
		},
		Gap: config.GapConfig{USWeights: map[string]float64{"sp500": 0.5, "dow": 0.3, "nasdaq": 0.2}},
		Orchestrator: config.OrchestratorConfig{
			Workers:          4,
			TopOpportunities: 10,
		},
	}

	o := New(
		cfg, fetcher, quotes, regimeFake, gapFake,
		&fakeSentiment{}, scanner, &fakePredictor{},
		reporter, store,
		"^AXJO", map[domain.Symbol]domain.Symbol{"sp500": "^GSPC", "dow": "^DJI", "nasdaq": "^IXIC"},
	)

	state, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunDone, state.Status)
	assert.Len(t, state.Opportunities, len(financials))
	assert.Contains(t, []domain.RegimeLabel{domain.RegimeCalm, domain.RegimeNormal}, state.Snapshot.RegimeLabel)
	assert.InDelta(t, 0.325, state.Snapshot.PredictedGapPct, 1e-9)
	assert.Contains(t, []domain.SentimentBand{domain.BandBuy, domain.BandStrongBuy}, state.Snapshot.SentimentBand)
	assert.NotEmpty(t, state.Opportunities)
}

// cancelOnSymbolScanner cancels the supplied context once a configured
// symbol is scanned, then behaves like fakeScanner for every call
// (including the triggering one, which still completes — spec S6:
// "current symbol finishes, no new symbol starts").
type cancelOnSymbolScanner struct {
	mu          sync.Mutex
	results     map[domain.Symbol]domain.ScanResult
	cancelAfter domain.Symbol
	cancel      context.CancelFunc
	fired       bool
}

func (s *cancelOnSymbolScanner) ScanSymbol(ctx context.Context, sector string, symbol domain.Symbol) (domain.ScanResult, error) {
	time.Sleep(5 * time.Millisecond)
	result := s.results[symbol]

	if symbol == s.cancelAfter {
		s.mu.Lock()
		if !s.fired {
			s.fired = true
			s.cancel()
		}
		s.mu.Unlock()
	}
	return result, nil
}

// TestScenarioS6CancellationMidScanJumpsToEmit exercises spec S6: a
// cancel signal delivered while scanning an interior sector finishes
// the in-flight symbol, starts nothing new, and the run still reaches
// Emit/Close with a CANCELLED status.
func TestScenarioS6CancellationMidScanJumpsToEmit(t *testing.T) {
	fetcher := &fakeFetcher{series: map[domain.Symbol]domain.PriceSeries{
		"^AXJO": {Symbol: "^AXJO", Bars: validBars(100)},
	}, errs: map[domain.Symbol]error{}}

	quotes := &fakeQuotes{quotes: map[domain.Symbol]domain.Quote{"^GSPC": {Symbol: "^GSPC", Price: 101, PrevClose: 100}}}
	regimeFake := &fakeRegime{result: regime.Result{Label: domain.RegimeNormal, CrashRisk: 0.1}}
	gapFake := &fakeGap{pct: 0.2, confidence: 1.0}

	ctx, cancel := context.WithCancel(context.Background())

	scanner := &cancelOnSymbolScanner{
		results: map[domain.Symbol]domain.ScanResult{
			"S1A": {Symbol: "S1A", Sector: "sector1", Score: 80, Valid: true},
			"S1B": {Symbol: "S1B", Sector: "sector1", Score: 75, Valid: true},
			"S2A": {Symbol: "S2A", Sector: "sector2", Score: 70, Valid: true},
			"S2B": {Symbol: "S2B", Sector: "sector2", Score: 65, Valid: true},
			"S3A": {Symbol: "S3A", Sector: "sector3", Score: 60, Valid: true},
			"S4A": {Symbol: "S4A", Sector: "sector4", Score: 55, Valid: true},
			"S5A": {Symbol: "S5A", Sector: "sector5", Score: 50, Valid: true},
		},
		cancelAfter: "S2A",
		cancel:      cancel,
	}

	reporter := &fakeReporter{}
	store := &fakeStore{}

	cfg := config.Config{
		Universe: config.UniverseConfig{
			Sectors: map[string][]string{
				"sector1": {"S1A", "S1B"},
				"sector2": {"S2A", "S2B"},
				"sector3": {"S3A"},
				"sector4": {"S4A"},
				"sector5": {"S5A"},
			},
			TopNPerSector: 10,
		},
		Gap:          config.GapConfig{USWeights: map[string]float64{"sp500": 1.0}},
		Orchestrator: config.OrchestratorConfig{Workers: 1, TopOpportunities: 10},
	}

	o := New(
		cfg, fetcher, quotes, regimeFake, gapFake,
		&fakeSentiment{}, scanner, &fakePredictor{},
		reporter, store,
		"^AXJO", map[domain.Symbol]domain.Symbol{"sp500": "^GSPC"},
	)

	state, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, state.Status)

	byPhase := make(map[domain.RunPhase]domain.PhaseRecord)
	for _, p := range state.Phases {
		byPhase[p.Phase] = p
	}
	assert.Equal(t, domain.PhaseSkipped, byPhase[domain.PhasePredict].Status)
	assert.Equal(t, domain.PhaseSkipped, byPhase[domain.PhaseRank].Status)
	assert.Equal(t, domain.PhaseOK, byPhase[domain.PhaseEmit].Status)
	assert.Equal(t, domain.PhaseOK, byPhase[domain.PhaseClose].Status)

	// sector1 (scanned before cancellation) completed in full; sector2's
	// in-flight symbol (S2A, the one that triggered cancel) finished,
	// but S2B never started since the worker pool's semaphore acquire
	// fails once the shared context is cancelled.
	require.NotNil(t, reporter.emitted)
	require.NotNil(t, store.saved)
	assert.Equal(t, domain.RunCancelled, store.saved.Status)
}
