// Package report implements C9: the morning-report emitter. Three
// artifacts per run — pipeline_state.json, opportunities.csv,
// morning_report.html — written under reports/<YYYY-MM-DD>/ with an
// atomic write-temp-then-rename per file and a SHA256 recorded on each
// domain.RunArtifact. Grounded on the teacher's
// internal/interfaces/output.Emitter (CSV via encoding/csv, JSON via
// encoding/json with indent) plus its own out/review-stage
// internal/atomicio.WriteFile temp-then-rename pattern, generalized
// from crypto scan candidates to this spec's ranked opportunities.
package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sawpanic/screener/internal/domain"
)

// Reporter writes a run's artifacts to disk under a date-stamped
// directory.
type Reporter struct {
	baseDir string
}

func NewReporter(baseDir string) *Reporter {
	return &Reporter{baseDir: baseDir}
}

// Emit writes all three report artifacts for one run and returns their
// recorded metadata. A failure on one artifact aborts the remaining
// ones — a half-written report is still reported as an error to the
// caller, which records the Emit phase as failed rather than OK.
func (r *Reporter) Emit(ctx context.Context, state domain.RunState) ([]domain.RunArtifact, error) {
	dir := filepath.Join(r.baseDir, state.StartedAt.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	artifacts := make([]domain.RunArtifact, 0, 3)

	stateJSON, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return artifacts, fmt.Errorf("marshal run state: %w", err)
	}
	artifact, err := writeArtifact(dir, "pipeline_state.json", "json", stateJSON)
	if err != nil {
		return artifacts, err
	}
	artifacts = append(artifacts, artifact)

	csvData, err := opportunitiesCSV(state.Opportunities)
	if err != nil {
		return artifacts, fmt.Errorf("build opportunities csv: %w", err)
	}
	artifact, err = writeArtifact(dir, "opportunities.csv", "csv", csvData)
	if err != nil {
		return artifacts, err
	}
	artifacts = append(artifacts, artifact)

	htmlData, err := morningReportHTML(state)
	if err != nil {
		return artifacts, fmt.Errorf("render morning report html: %w", err)
	}
	artifact, err = writeArtifact(dir, "morning_report.html", "html", htmlData)
	if err != nil {
		return artifacts, err
	}
	artifacts = append(artifacts, artifact)

	return artifacts, nil
}

func opportunitiesCSV(opportunities []domain.Opportunity) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"rank", "symbol", "sector", "scan_score", "combined_score", "signal", "confidence", "explanation"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, opp := range opportunities {
		record := []string{
			strconv.Itoa(opp.Rank),
			string(opp.Symbol),
			opp.Sector,
			strconv.FormatFloat(opp.ScanScore, 'f', 2, 64),
			strconv.FormatFloat(opp.CombinedScore, 'f', 2, 64),
			string(opp.Prediction.Signal),
			strconv.FormatFloat(opp.Prediction.Confidence, 'f', 2, 64),
			opp.Explanation,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var morningReportTemplate = template.Must(template.New("morning_report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Morning Report — {{.Run.RunID}}</title></head>
<body>
<h1>Morning Report</h1>
<p>Run {{.Run.RunID}} — status {{.Run.Status}} — started {{.Run.StartedAt}}</p>
<h2>Market Context</h2>
<ul>
<li>Regime: {{.Run.Snapshot.RegimeLabel}}</li>
<li>Crash risk: {{.Run.Snapshot.CrashRisk}}</li>
<li>Predicted gap: {{.Run.Snapshot.PredictedGapPct}}% (confidence {{.Run.Snapshot.GapConfidence}})</li>
<li>Sentiment band: {{.Run.Snapshot.SentimentBand}}</li>
</ul>
<h2>Opportunities</h2>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Rank</th><th>Symbol</th><th>Sector</th><th>Scan</th><th>Combined</th><th>Signal</th><th>Confidence</th><th>Explanation</th></tr>
{{range .Run.Opportunities}}<tr><td>{{.Rank}}</td><td>{{.Symbol}}</td><td>{{.Sector}}</td><td>{{printf "%.1f" .ScanScore}}</td><td>{{printf "%.1f" .CombinedScore}}</td><td>{{.Prediction.Signal}}</td><td>{{printf "%.2f" .Prediction.Confidence}}</td><td>{{.Explanation}}</td></tr>
{{end}}</table>
</body>
</html>
`))

func morningReportHTML(state domain.RunState) ([]byte, error) {
	var buf bytes.Buffer
	data := struct{ Run domain.RunState }{Run: state}
	if err := morningReportTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeArtifact writes data to name under dir using a temp-then-rename
// pattern (safe even if the process is killed mid-write) and records
// its size and SHA256.
func writeArtifact(dir, name, kind string, data []byte) (domain.RunArtifact, error) {
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.RunArtifact{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return domain.RunArtifact{}, fmt.Errorf("rename %s: %w", name, err)
	}

	sum := sha256.Sum256(data)
	return domain.RunArtifact{
		Kind:   kind,
		Path:   path,
		Bytes:  int64(len(data)),
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}
