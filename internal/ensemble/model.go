// Package ensemble implements C6, the ensemble predictor: four
// components (LSTM, Trend, Technical, Sentiment) combined under fixed
// weights with pro-rata redistribution when a component is absent.
// Grounded on the teacher's internal/score/composite/unified.go
// fixed-weight multi-component combination.
package ensemble

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// Model is the LSTM component's abstraction: a trained artifact that
// turns a feature window into a direction/confidence pair. Spec §4.6/§6
// treat a missing model as a normal, weight-redistributed absence, not
// an error.
type Model interface {
	Predict(features [][]float64) (direction, confidence float64, err error)
}

// LinearModel is a tiny feed-forward/linear scorer standing in for the
// spec's "LSTM" component: no ML runtime appears in any example's
// go.mod, so the model artifact is a JSON-serialized weight vector
// applied as a dot product over the flattened feature window, squashed
// through tanh for direction and a separate confidence weight vector
// for confidence. This keeps the "model artifact, addressed by symbol,
// optional" contract without fabricating a dependency.
type LinearModel struct {
	DirectionWeights []float64 `json:"direction_weights"`
	DirectionBias    float64   `json:"direction_bias"`
	ConfidenceWeights []float64 `json:"confidence_weights"`
	ConfidenceBias   float64   `json:"confidence_bias"`
}

// LoadLinearModel reads a model artifact from disk. A missing file is
// reported via the returned error so callers can treat it as "no model
// for this symbol" rather than a hard failure.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	return &m, nil
}

// Predict flattens the feature window and applies the weight vectors.
func (m *LinearModel) Predict(features [][]float64) (direction, confidence float64, err error) {
	flat := flatten(features)
	if len(flat) != len(m.DirectionWeights) {
		return 0, 0, fmt.Errorf("feature width %d does not match model width %d", len(flat), len(m.DirectionWeights))
	}

	x := mat.NewVecDense(len(flat), flat)
	dw := mat.NewVecDense(len(m.DirectionWeights), m.DirectionWeights)
	dirRaw := mat.Dot(x, dw) + m.DirectionBias
	direction = tanh(dirRaw)

	if len(m.ConfidenceWeights) == len(flat) {
		cw := mat.NewVecDense(len(m.ConfidenceWeights), m.ConfidenceWeights)
		confRaw := mat.Dot(x, cw) + m.ConfidenceBias
		confidence = sigmoid(confRaw)
	} else {
		confidence = sigmoid(dirRaw)
	}
	return direction, confidence, nil
}

func flatten(features [][]float64) []float64 {
	var out []float64
	for _, row := range features {
		out = append(out, row...)
	}
	return out
}

func tanh(x float64) float64 {
	ePos, eNeg := expClamped(x), expClamped(-x)
	return (ePos - eNeg) / (ePos + eNeg)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + expClamped(-x))
}

func expClamped(x float64) float64 {
	if x > 40 {
		x = 40
	}
	if x < -40 {
		x = -40
	}
	return math.Exp(x)
}
