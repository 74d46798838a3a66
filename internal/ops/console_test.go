package ops

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/screener/internal/domain"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	w.Close()
	out, _ := io.ReadAll(r)
	return string(out)
}

func sampleState() domain.RunState {
	start := time.Date(2026, 7, 30, 6, 0, 0, 0, time.UTC)
	return domain.RunState{
		RunID:     "run-123",
		StartedAt: start,
		FinishedAt: start.Add(90 * time.Second),
		Status:    domain.RunPartial,
		Phases: []domain.PhaseRecord{
			{Phase: domain.PhaseInit, Status: domain.PhaseOK, Succeeded: 3},
			{Phase: domain.PhaseScan, Status: domain.PhaseDegraded, Succeeded: 40, Failed: 2, Reason: "2 symbol fetches failed during scan"},
			{Phase: domain.PhasePredict, Status: domain.PhaseSkipped, Reason: "predict skipped via --skip-predict"},
		},
		Opportunities: []domain.Opportunity{
			{Symbol: "CBA.AX", Sector: "financials", ScanScore: 82.5, CombinedScore: 75.1, Rank: 1, Explanation: "scan_score=82.5 (predict skipped)"},
			{Symbol: "BHP.AX", Sector: "materials", ScanScore: 79.0, CombinedScore: 71.0, Rank: 2, Explanation: "scan_score=79.0 (predict skipped)"},
		},
	}
}

func TestRenderConsoleIncludesRunIDAndStatus(t *testing.T) {
	out := captureStdout(t, func() {
		NewSummaryRenderer().RenderConsole(sampleState(), 10)
	})
	assert.Contains(t, out, "run-123")
	assert.Contains(t, out, "PARTIAL")
}

func TestRenderConsoleListsPhasesAndOpportunities(t *testing.T) {
	out := captureStdout(t, func() {
		NewSummaryRenderer().RenderConsole(sampleState(), 10)
	})
	assert.Contains(t, out, "scan")
	assert.Contains(t, out, "CBA.AX")
	assert.Contains(t, out, "BHP.AX")
}

func TestRenderConsoleTruncatesToTopN(t *testing.T) {
	out := captureStdout(t, func() {
		NewSummaryRenderer().RenderConsole(sampleState(), 1)
	})
	assert.Contains(t, out, "CBA.AX")
	assert.NotContains(t, out, "BHP.AX")
}

func TestRenderConsoleHandlesNoOpportunities(t *testing.T) {
	state := sampleState()
	state.Opportunities = nil
	out := captureStdout(t, func() {
		NewSummaryRenderer().RenderConsole(state, 10)
	})
	assert.Contains(t, out, "none ranked")
}
