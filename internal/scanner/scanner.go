package scanner

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/providers"
)

// SeriesFetcher is the subset of providers.Fetcher the scanner needs,
// kept as a narrow interface so tests can substitute a fake.
type SeriesFetcher interface {
	GetSeries(ctx context.Context, symbol domain.Symbol, period domain.Period) (providers.FetchResult, error)
}

// Scanner implements C5: per-symbol validation plus the 0-100 weighted
// composite of liquidity/momentum/RSI/volatility/volume-consistency
// sub-scores.
type Scanner struct {
	cfg     config.ScannerConfig
	fetcher SeriesFetcher
}

func NewScanner(cfg config.ScannerConfig, fetcher SeriesFetcher) *Scanner {
	return &Scanner{cfg: cfg, fetcher: fetcher}
}

// ScanSector scores every symbol in the sector and returns the top N by
// score. A fetch failure for one symbol drops that symbol and logs a
// warning; it never aborts the sector (spec §4.5).
func (s *Scanner) ScanSector(ctx context.Context, sector string, symbols []domain.Symbol, topN int) ([]domain.ScanResult, error) {
	results := make([]domain.ScanResult, 0, len(symbols))
	for _, sym := range symbols {
		result, err := s.scanSymbol(ctx, sector, sym)
		if err != nil {
			log.Warn().Err(err).Str("sector", sector).Str("symbol", string(sym)).Msg("scan: dropping symbol")
			continue
		}
		if result.Valid {
			results = append(results, result)
		}
	}
	return RankByScore(results, topN), nil
}

// ScanSymbol exposes the single-symbol scan so callers that need their
// own fan-out (the orchestrator's bounded worker pool, spec.md §4.8)
// can score symbols concurrently instead of going through ScanSector's
// sequential loop.
func (s *Scanner) ScanSymbol(ctx context.Context, sector string, symbol domain.Symbol) (domain.ScanResult, error) {
	return s.scanSymbol(ctx, sector, symbol)
}

// RankByScore sorts scan results by score descending with a symbol
// tie-break, then truncates to the top N. Shared by ScanSector and by
// any caller driving its own concurrent scan.
func RankByScore(results []domain.ScanResult, topN int) []domain.ScanResult {
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

// scanSymbol fetches one symbol's history, validates it and computes
// its composite score. A returned error means the data fetch itself
// failed (network/provider exhaustion); a failed validation instead
// yields Valid=false with Reasons populated, still counted as scanned.
func (s *Scanner) scanSymbol(ctx context.Context, sector string, symbol domain.Symbol) (domain.ScanResult, error) {
	fetched, err := s.fetcher.GetSeries(ctx, symbol, domain.Period3Months)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	result := domain.ScanResult{Symbol: symbol, Sector: sector}

	bars := fetched.Series.Bars
	if len(bars) == 0 {
		result.Reasons = append(result.Reasons, "no price history")
		return result, nil
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	validVol := make([]bool, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
		validVol[i] = b.VolumeValid
	}

	last := closes[len(closes)-1]
	result.Price = last

	if last <= 0 {
		result.Reasons = append(result.Reasons, "last close not positive")
		return result, nil
	}
	if last < s.cfg.MinPrice {
		result.Reasons = append(result.Reasons, fmt.Sprintf("last close %.2f below floor %.2f", last, s.cfg.MinPrice))
		return result, nil
	}

	volumeFloor := s.cfg.MinVolume
	if symbol.IsIndex() {
		volumeFloor = 0
	}
	meanVol, haveVol := meanVolume20(volumes, validVol)
	if !haveVol && volumeFloor > 0 {
		result.Reasons = append(result.Reasons, "insufficient volume history")
		return result, nil
	}
	if meanVol < volumeFloor {
		result.Reasons = append(result.Reasons, fmt.Sprintf("mean volume %.0f below floor %.0f", meanVol, volumeFloor))
		return result, nil
	}
	result.AvgVolume = meanVol

	ma20, have20 := sma(closes, 20)
	ma50, have50 := sma(closes, 50)
	rsi, haveRSI := rsi14(closes)
	vol, haveVol20 := volatility20(closes)
	consistency, haveConsistency := volumeConsistency20(volumes, validVol)

	if !have20 || !have50 || !haveRSI || !haveVol20 {
		result.Reasons = append(result.Reasons, "insufficient price history for indicators")
		return result, nil
	}
	if !haveConsistency {
		consistency = 0
	}

	result.MA20 = ma20
	result.MA50 = ma50
	result.RSI14 = rsi
	result.Volatility20 = vol

	result.Score = liquidityScore(meanVol, s.cfg.MinVolume) +
		momentumScore(last, ma20, ma50) +
		rsiScore(rsi) +
		volatilityScore(vol, s.cfg.VolatilityRef) +
		volumeConsistencyScore(consistency)
	result.Valid = true
	return result, nil
}
