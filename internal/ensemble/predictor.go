package ensemble

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/indicators"
)

// lstmFeatureWindow is the trailing number of days of features fed to
// the LSTM component, per spec §4.6.
const lstmFeatureWindow = 60

// Predictor implements C6: per-symbol direction/confidence prediction
// from four weighted components, with the sector-wide HIGH_VOL/
// crash-risk override applied uniformly across the whole sector.
type Predictor struct {
	weights    config.EnsembleWeights
	modelsPath string
}

func NewPredictor(weights config.EnsembleWeights, modelsPath string) *Predictor {
	return &Predictor{weights: weights, modelsPath: modelsPath}
}

// Predict combines the four ensemble components for one symbol. A
// fetch/data failure is the caller's responsibility (FETCH_DATA state);
// this function only runs once price data is already in hand, matching
// spec §4.6's `(FAIL|RUN_COMPONENTS) -> COMBINE -> DONE/FAILED` state
// machine with FETCH_DATA already resolved.
func (p *Predictor) Predict(ctx context.Context, symbol domain.Symbol, series domain.PriceSeries, snapshot domain.MarketSnapshot, sentiment domain.AggregateSentiment) domain.Prediction {
	if err := ctx.Err(); err != nil {
		return domain.Prediction{Symbol: symbol, Signal: domain.SignalHold, AsOf: time.Now()}
	}

	closes := make([]float64, len(series.Bars))
	for i, b := range series.Bars {
		closes[i] = b.Close
	}

	var price float64
	if len(closes) > 0 {
		price = closes[len(closes)-1]
	}

	components := domain.PredictionComponents{
		LSTM:      p.lstmComponent(symbol, closes),
		Trend:     p.trendComponentResult(closes, price),
		Technical: p.technicalComponentResult(closes, price),
		Sentiment: p.sentimentComponentResult(sentiment, snapshot),
	}

	direction, confidence := combine(&components, p.weights)
	signal := signalFromDirection(direction)

	if snapshot.RegimeLabel == domain.RegimeHighVol && snapshot.CrashRisk >= 0.6 {
		confidence *= 0.5
		if signal == domain.SignalBuy {
			signal = domain.SignalHold
		}
	}

	return domain.Prediction{
		Symbol:     symbol,
		Direction:  direction,
		Confidence: confidence,
		Signal:     signal,
		Components: components,
		AsOf:       time.Now(),
	}
}

func (p *Predictor) lstmComponent(symbol domain.Symbol, closes []float64) domain.ComponentResult {
	path := filepath.Join(p.modelsPath, string(symbol)+".json")
	model, err := LoadLinearModel(path)
	if err != nil {
		// Missing model artifact is a normal "no model for this symbol"
		// state, not a failure (spec §4.6/§9): absent, weight
		// redistributed pro-rata to the other components.
		return domain.ComponentResult{Present: false}
	}

	window := closes
	if len(window) > lstmFeatureWindow {
		window = window[len(window)-lstmFeatureWindow:]
	}
	features := make([][]float64, len(window))
	for i, c := range window {
		features[i] = []float64{c}
	}

	direction, confidence, err := model.Predict(features)
	if err != nil {
		log.Warn().Err(err).Str("symbol", string(symbol)).Msg("ensemble: lstm prediction failed")
		return domain.ComponentResult{Present: false, Err: err}
	}
	return domain.ComponentResult{Direction: direction, Confidence: confidence, Present: true}
}

func (p *Predictor) trendComponentResult(closes []float64, price float64) domain.ComponentResult {
	ma20, have20 := indicators.SMA(closes, 20)
	ma50, have50 := indicators.SMA(closes, 50)
	if !have20 || !have50 {
		return domain.ComponentResult{Present: false}
	}
	returns := indicators.DailyReturns(closes)
	returnStdev := 0.0
	if len(returns) > 0 {
		returnStdev = indicators.Stdev(returns)
	}
	direction, confidence := trendComponent(price, ma20, ma50, returnStdev)
	return domain.ComponentResult{Direction: direction, Confidence: confidence, Present: true}
}

func (p *Predictor) technicalComponentResult(closes []float64, price float64) domain.ComponentResult {
	rsi, haveRSI := indicators.RSI14(closes)
	macdValue, haveMACD := indicators.MACD(closes)
	if !haveRSI || !haveMACD {
		return domain.ComponentResult{Present: false}
	}
	direction, confidence := technicalComponent(rsi, macdValue, price)
	return domain.ComponentResult{Direction: direction, Confidence: confidence, Present: true}
}

func (p *Predictor) sentimentComponentResult(sentiment domain.AggregateSentiment, snapshot domain.MarketSnapshot) domain.ComponentResult {
	direction, confidence := sentimentComponent(
		sentiment.ArticleCount,
		sentiment.Direction,
		sentiment.Confidence,
		snapshot.PredictedGapPct,
		snapshot.GapConfidence,
	)
	return domain.ComponentResult{Direction: direction, Confidence: confidence, Present: true}
}

// combine applies the fixed ensemble weights with pro-rata
// redistribution onto present components (spec §4.6).
func combine(components *domain.PredictionComponents, weights config.EnsembleWeights) (direction, confidence float64) {
	totalPresentWeight := 0.0
	for _, c := range []struct {
		present bool
		weight  float64
	}{
		{components.LSTM.Present, weights.LSTM},
		{components.Trend.Present, weights.Trend},
		{components.Technical.Present, weights.Technical},
		{components.Sentiment.Present, weights.Sentiment},
	} {
		if c.present {
			totalPresentWeight += c.weight
		}
	}
	if totalPresentWeight <= 0 {
		return 0, 0
	}

	assignEffective := func(r *domain.ComponentResult, configWeight float64) float64 {
		if !r.Present {
			r.Weight = 0
			return 0
		}
		effective := configWeight / totalPresentWeight
		r.Weight = effective
		return effective
	}

	wLSTM := assignEffective(&components.LSTM, weights.LSTM)
	wTrend := assignEffective(&components.Trend, weights.Trend)
	wTechnical := assignEffective(&components.Technical, weights.Technical)
	wSentiment := assignEffective(&components.Sentiment, weights.Sentiment)

	direction = wLSTM*components.LSTM.Direction +
		wTrend*components.Trend.Direction +
		wTechnical*components.Technical.Direction +
		wSentiment*components.Sentiment.Direction

	confidence = wLSTM*components.LSTM.Confidence +
		wTrend*components.Trend.Confidence +
		wTechnical*components.Technical.Confidence +
		wSentiment*components.Sentiment.Confidence

	return direction, confidence
}

func signalFromDirection(direction float64) domain.Signal {
	switch {
	case direction >= 0.30:
		return domain.SignalBuy
	case direction <= -0.30:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}
