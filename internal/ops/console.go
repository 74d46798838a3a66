// Package ops renders a human-readable console summary of one
// screener run, alongside the machine-readable artifacts C9 writes to
// disk. Grounded on the teacher's internal/ops.StatusRenderer: the same
// box-drawing table format, status icons and text-truncation helpers,
// swapped from CryptoRun's KPI/guard/emergency-switch vocabulary to
// this spec's phase/opportunity vocabulary.
package ops

import (
	"fmt"
	"strings"

	"github.com/sawpanic/screener/internal/domain"
)

// SummaryRenderer prints a run's phase outcomes and top opportunities
// to an io.Writer-like destination (os.Stdout in practice), for an
// operator watching a terminal rather than reading the JSON/CSV
// artifacts afterward.
type SummaryRenderer struct{}

func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{}
}

// RenderConsole prints the run header, the phase table, and up to
// topN ranked opportunities.
func (r *SummaryRenderer) RenderConsole(state domain.RunState, topN int) {
	fmt.Printf("%s Screener run %s\n", r.statusIcon(state.Status), state.RunID)
	fmt.Printf("Status: %-10s Started: %s Duration: %s\n\n",
		state.Status,
		state.StartedAt.Format("2006-01-02 15:04:05"),
		state.FinishedAt.Sub(state.StartedAt).Round(1e6),
	)

	r.renderPhaseTable(state.Phases)
	fmt.Println()
	r.renderOpportunitiesTable(state.Opportunities, topN)
}

func (r *SummaryRenderer) renderPhaseTable(phases []domain.PhaseRecord) {
	fmt.Println("PHASES")
	fmt.Println("┌──────────────────┬──────────┬───────────┬────────┬─────────────────────────────┐")
	fmt.Println("│ Phase            │ Status   │ Succeeded │ Failed │ Reason                      │")
	fmt.Println("├──────────────────┼──────────┼───────────┼────────┼─────────────────────────────┤")
	for _, p := range phases {
		fmt.Printf("│ %-16s │ %s%-7s │ %9d │ %6d │ %-27s │\n",
			r.truncate(string(p.Phase), 16),
			r.phaseIcon(p.Status), p.Status,
			p.Succeeded, p.Failed,
			r.truncate(p.Reason, 27),
		)
	}
	fmt.Println("└──────────────────┴──────────┴───────────┴────────┴─────────────────────────────┘")
}

func (r *SummaryRenderer) renderOpportunitiesTable(opportunities []domain.Opportunity, topN int) {
	if len(opportunities) == 0 {
		fmt.Println("OPPORTUNITIES: none ranked this run")
		return
	}
	if topN > 0 && len(opportunities) > topN {
		opportunities = opportunities[:topN]
	}

	fmt.Println("TOP OPPORTUNITIES")
	fmt.Println("┌──────┬────────────┬────────────┬───────┬────────┬──────────┬──────────────────────────┐")
	fmt.Println("│ Rank │ Symbol     │ Sector     │ Scan  │ Signal │ Combined │ Explanation              │")
	fmt.Println("├──────┼────────────┼────────────┼───────┼────────┼──────────┼──────────────────────────┤")
	for _, o := range opportunities {
		fmt.Printf("│ %4d │ %-10s │ %-10s │ %5.1f │ %-6s │ %8.1f │ %-24s │\n",
			o.Rank,
			r.truncate(string(o.Symbol), 10),
			r.truncate(o.Sector, 10),
			o.ScanScore,
			r.signalText(o.Prediction.Signal),
			o.CombinedScore,
			r.truncate(o.Explanation, 24),
		)
	}
	fmt.Println("└──────┴────────────┴────────────┴───────┴────────┴──────────┴──────────────────────────┘")
}

func (r *SummaryRenderer) signalText(signal domain.Signal) string {
	if signal == "" {
		return "-"
	}
	return string(signal)
}

func (r *SummaryRenderer) statusIcon(status domain.RunStatus) string {
	switch status {
	case domain.RunDone:
		return "✅"
	case domain.RunPartial:
		return "⚠️"
	case domain.RunCancelled:
		return "⏹️"
	case domain.RunFailed:
		return "🔴"
	default:
		return "❓"
	}
}

func (r *SummaryRenderer) phaseIcon(status domain.PhaseStatus) string {
	switch status {
	case domain.PhaseOK:
		return "✅"
	case domain.PhaseDegraded:
		return "⚠️ "
	case domain.PhaseFailed:
		return "🔴"
	case domain.PhaseSkipped:
		return "⏭️ "
	default:
		return "❓"
	}
}

func (r *SummaryRenderer) truncate(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}
	if maxLen < 3 {
		return text[:maxLen]
	}
	return text[:maxLen-3] + "..."
}
