package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/screener/internal/config"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
universe:
  sectors:
    financials: ["CBA.AX", "NAB.AX", "WBC.AX", "ANZ.AX", "MQG.AX", "BEN.AX"]
    materials: ["BHP.AX", "RIO.AX"]
fetcher:
  providers:
    - id: stooq
      rpm: 60
      burst: 60
ensemble:
  weights:
    lstm: 0.45
    trend: 0.25
    technical: 0.15
    sentiment: 0.15
persistence:
  cache_path: ` + filepath.Join(dir, "cache") + `
  runs_path: ` + filepath.Join(dir, "reports") + `
  models_path: ` + filepath.Join(dir, "models") + `
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRestrictSectorsFiltersToRequestedSubset(t *testing.T) {
	cfg := &config.Config{Universe: config.UniverseConfig{Sectors: map[string][]string{
		"financials": {"CBA.AX"},
		"materials":  {"BHP.AX"},
		"energy":     {"WDS.AX"},
	}}}

	require.NoError(t, restrictSectors(cfg, "financials, energy"))
	assert.Len(t, cfg.Universe.Sectors, 2)
	assert.Contains(t, cfg.Universe.Sectors, "financials")
	assert.Contains(t, cfg.Universe.Sectors, "energy")
	assert.NotContains(t, cfg.Universe.Sectors, "materials")
}

func TestRestrictSectorsRejectsUnknownSector(t *testing.T) {
	cfg := &config.Config{Universe: config.UniverseConfig{Sectors: map[string][]string{
		"financials": {"CBA.AX"},
	}}}

	err := restrictSectors(cfg, "utilities")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "utilities")
}

func TestApplyTestModeTrimsEachSectorToFive(t *testing.T) {
	cfg := &config.Config{Universe: config.UniverseConfig{Sectors: map[string][]string{
		"financials": {"CBA.AX", "NAB.AX", "WBC.AX", "ANZ.AX", "MQG.AX", "BEN.AX"},
		"materials":  {"BHP.AX", "RIO.AX"},
	}}}

	applyTestMode(cfg)
	assert.Len(t, cfg.Universe.Sectors["financials"], 5)
	assert.Len(t, cfg.Universe.Sectors["materials"], 2)
}

func TestBuildProviderChainRejectsUnknownProviderID(t *testing.T) {
	cfg := config.Config{Fetcher: config.FetcherConfig{Providers: []config.ProviderConfig{
		{ID: "not-a-real-provider", RPM: 60, Burst: 60},
	}}}
	_, err := buildProviderChain(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-real-provider")
}

func TestBuildProviderChainBuildsKnownProviders(t *testing.T) {
	cfg := config.Config{Fetcher: config.FetcherConfig{Providers: []config.ProviderConfig{
		{ID: "stooq", RPM: 60, Burst: 60},
		{ID: "yahoo", RPM: 60, Burst: 60},
		{ID: "quote-only", RPM: 60, Burst: 60},
	}}}
	chain, err := buildProviderChain(cfg)
	require.NoError(t, err)
	assert.Len(t, chain, 3)
}

func TestBuildNewsSourcesRejectsUnknownKind(t *testing.T) {
	cfg := config.Config{Sentiment: config.SentimentConfig{Sources: []config.NewsSourceConfig{
		{ID: "x", Kind: "carrier-pigeon", URL: "https://example.test"},
	}}}
	_, err := buildNewsSources(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestBuildNewsSourcesBuildsRSSAndJSONFeed(t *testing.T) {
	cfg := config.Config{Sentiment: config.SentimentConfig{Sources: []config.NewsSourceConfig{
		{ID: "asx-rss", Kind: "rss", URL: "https://example.test/feed.xml"},
		{ID: "per-symbol", Kind: "jsonfeed", URL: "https://example.test/%s.json"},
	}}}
	sources, err := buildNewsSources(cfg)
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestConfigValidateCommandAcceptsAGoodDocument(t *testing.T) {
	path := writeTestConfig(t)
	var out bytes.Buffer
	cmd := newConfigCommand()
	cmd.SetArgs([]string{"validate", "--config", path})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "config OK")
}

func TestConfigValidateCommandRejectsAMissingFile(t *testing.T) {
	cmd := newConfigCommand()
	cmd.SetArgs([]string{"validate", "--config", "/nonexistent/config.yaml"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	assert.Error(t, cmd.Execute())
}

func TestCacheStatsCommandReportsAnEmptyCache(t *testing.T) {
	path := writeTestConfig(t)
	var out bytes.Buffer
	cmd := newCacheCommand()
	cmd.SetArgs([]string{"stats", "--config", path})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "hit_ratio")
}

func TestVersionCommandPrintsAppNameAndVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := newVersionCommand()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), appName)
	assert.Contains(t, out.String(), version)
}

func TestRunReturnsUsageErrorExitCodeOnBadConfigPath(t *testing.T) {
	code := run([]string{"run", "--config", "/nonexistent/config.yaml"})
	assert.Equal(t, exitUsageError, code)
}

func TestRunReturnsUsageErrorExitCodeOnUnknownSector(t *testing.T) {
	path := writeTestConfig(t)
	code := run([]string{"run", "--config", path, "--sectors", "nonexistent-sector"})
	assert.Equal(t, exitUsageError, code)
}
