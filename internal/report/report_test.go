package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/screener/internal/domain"
)

func sampleState() domain.RunState {
	started := time.Date(2026, 7, 30, 6, 0, 0, 0, time.UTC)
	return domain.RunState{
		RunID:     "run-1",
		StartedAt: started,
		Status:    domain.RunDone,
		Snapshot: domain.MarketSnapshot{
			RegimeLabel:    domain.RegimeNormal,
			PredictedGapPct: 0.4,
			GapConfidence:  1.0,
			SentimentBand:  domain.BandBuy,
		},
		Opportunities: []domain.Opportunity{
			{
				Symbol: "AAA", Sector: "tech", ScanScore: 82.5, CombinedScore: 77.1, Rank: 1,
				Prediction:  domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.81},
				Explanation: "dominant=Trend",
			},
		},
	}
}

func TestEmitWritesAllThreeArtifacts(t *testing.T) {
	dir := t.TempDir()
	r := NewReporter(dir)

	artifacts, err := r.Emit(context.Background(), sampleState())
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	dateDir := filepath.Join(dir, "2026-07-30")
	for _, name := range []string{"pipeline_state.json", "opportunities.csv", "morning_report.html"} {
		path := filepath.Join(dateDir, name)
		data, err := os.ReadFile(path)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data)

		_, statErr := os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(statErr), "%s: leftover tmp file", name)
	}
}

func TestEmitRecordsMatchingSHA256(t *testing.T) {
	dir := t.TempDir()
	r := NewReporter(dir)

	artifacts, err := r.Emit(context.Background(), sampleState())
	require.NoError(t, err)

	for _, artifact := range artifacts {
		data, err := os.ReadFile(artifact.Path)
		require.NoError(t, err)
		sum := sha256.Sum256(data)
		assert.Equal(t, hex.EncodeToString(sum[:]), artifact.SHA256)
		assert.Equal(t, int64(len(data)), artifact.Bytes)
	}
}

func TestOpportunitiesCSVIncludesHeaderAndRow(t *testing.T) {
	data, err := opportunitiesCSV(sampleState().Opportunities)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "rank,symbol,sector")
	assert.Contains(t, content, "AAA")
	assert.Contains(t, content, "BUY")
}

func TestMorningReportHTMLEscapesAndIncludesOpportunity(t *testing.T) {
	state := sampleState()
	state.Opportunities[0].Explanation = "<script>x</script>"
	html, err := morningReportHTML(state)
	require.NoError(t, err)
	content := string(html)
	assert.Contains(t, content, "AAA")
	assert.Contains(t, content, "run-1")
	assert.Contains(t, content, "&lt;script&gt;")
	assert.NotContains(t, content, "<script>x")
}
