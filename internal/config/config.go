// Package config loads and validates the screener's structured
// configuration document (spec §4.10). The shape follows the teacher
// repo's provider-config pattern: a YAML struct tree with a Validate()
// method per level and sensible defaults applied after unmarshal.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Universe     UniverseConfig     `yaml:"universe"`
	Market       MarketConfig       `yaml:"market"`
	Fetcher      FetcherConfig      `yaml:"fetcher"`
	Sentiment    SentimentConfig    `yaml:"sentiment"`
	Regime       RegimeConfig       `yaml:"regime"`
	Gap          GapConfig          `yaml:"gap"`
	Scanner      ScannerConfig      `yaml:"scanner"`
	Ensemble     EnsembleConfig     `yaml:"ensemble"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Persistence  PersistenceConfig  `yaml:"persistence"`
}

// UniverseConfig maps sectors to their candidate symbols.
type UniverseConfig struct {
	Sectors        map[string][]string `yaml:"sectors"`
	TopNPerSector  int                 `yaml:"top_n_per_sector"`
}

// ProviderConfig configures one upstream data provider, grounded on
// the teacher's internal/config.ProviderConfig.
type ProviderConfig struct {
	ID             string `yaml:"id"`
	BaseURL        string `yaml:"base_url"`
	RPM            int    `yaml:"rpm"`
	Burst          int    `yaml:"burst"`
	DailyBudget    int    `yaml:"daily_budget"`
	MaxRetries     int    `yaml:"max_retries"`
}

// FetcherConfig configures C1.
type FetcherConfig struct {
	Providers        []ProviderConfig `yaml:"providers"`
	CacheTTLMinutes  int              `yaml:"cache_ttl_minutes"`
	QuoteTTLSeconds  int              `yaml:"quote_ttl_seconds"`
	MaxRetries       int              `yaml:"max_retries"`
	RequestTimeoutS  int              `yaml:"request_timeout_s"`
}

func (f FetcherConfig) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLMinutes) * time.Minute
}

func (f FetcherConfig) QuoteTTL() time.Duration {
	return time.Duration(f.QuoteTTLSeconds) * time.Second
}

func (f FetcherConfig) RequestTimeout() time.Duration {
	return time.Duration(f.RequestTimeoutS) * time.Second
}

// SentimentConfig configures C2.
type SentimentConfig struct {
	MaxArticles        int              `yaml:"max_articles"`
	CacheTTLMinutes    int              `yaml:"cache_ttl_minutes"`
	ModelID            string           `yaml:"model_id"`
	Sources            []NewsSourceConfig `yaml:"sources"`
}

func (s SentimentConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

// NewsSourceConfig configures one concrete C2 news feed adapter.
// Kind selects "rss" (a single shared feed, matched by symbol text) or
// "jsonfeed" (a per-symbol headlines endpoint templated with %s).
type NewsSourceConfig struct {
	ID              string `yaml:"id"`
	Kind            string `yaml:"kind"`
	URL             string `yaml:"url"`
	RequestTimeoutS int    `yaml:"request_timeout_s"`
}

func (s NewsSourceConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutS) * time.Second
}

// RegimeConfig configures C3.
type RegimeConfig struct {
	CalmThresholdPct    float64 `yaml:"calm_threshold_pct"`
	HighVolThresholdPct float64 `yaml:"high_vol_threshold_pct"`
	MinObservations     int     `yaml:"min_observations"`
}

// GapConfig configures C4.
type GapConfig struct {
	Correlation float64            `yaml:"correlation"`
	USWeights   map[string]float64 `yaml:"us_weights"`
}

// MarketConfig names the concrete index symbols C3/C4 pull through C1.
// USIndexSymbols keys must match GapConfig.USWeights keys.
type MarketConfig struct {
	LocalIndexSymbol string            `yaml:"local_index_symbol"`
	USIndexSymbols   map[string]string `yaml:"us_index_symbols"`
}

// ScannerConfig configures C5's validation floors and sub-score scaling.
type ScannerConfig struct {
	MinPrice          float64 `yaml:"min_price"`
	MinVolume         float64 `yaml:"min_volume"`
	VolatilityRef     float64 `yaml:"volatility_reference"`
}

// EnsembleConfig configures C6's fixed weights.
type EnsembleConfig struct {
	Weights EnsembleWeights `yaml:"weights"`
}

type EnsembleWeights struct {
	LSTM      float64 `yaml:"lstm"`
	Trend     float64 `yaml:"trend"`
	Technical float64 `yaml:"technical"`
	Sentiment float64 `yaml:"sentiment"`
}

// OrchestratorConfig configures C8.
type OrchestratorConfig struct {
	Workers          int            `yaml:"workers"`
	PhaseTimeoutsS   map[string]int `yaml:"phase_timeouts_s"`
	TopOpportunities int            `yaml:"top_opportunities"`
}

func (o OrchestratorConfig) PhaseTimeout(phase string, fallback time.Duration) time.Duration {
	if s, ok := o.PhaseTimeoutsS[phase]; ok && s > 0 {
		return time.Duration(s) * time.Second
	}
	return fallback
}

// PersistenceConfig configures C10's storage locations.
type PersistenceConfig struct {
	CachePath string `yaml:"cache_path"`
	RunsPath  string `yaml:"runs_path"`
	ModelsPath string `yaml:"models_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Load reads, parses, defaults and validates a config document from
// disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Universe.TopNPerSector == 0 {
		c.Universe.TopNPerSector = 10
	}
	if c.Fetcher.CacheTTLMinutes == 0 {
		c.Fetcher.CacheTTLMinutes = 240
	}
	if c.Fetcher.QuoteTTLSeconds == 0 {
		c.Fetcher.QuoteTTLSeconds = 60
	}
	if c.Fetcher.MaxRetries == 0 {
		c.Fetcher.MaxRetries = 6
	}
	if c.Fetcher.RequestTimeoutS == 0 {
		c.Fetcher.RequestTimeoutS = 30
	}
	for i := range c.Fetcher.Providers {
		p := &c.Fetcher.Providers[i]
		if p.RPM == 0 {
			p.RPM = 60
		}
		if p.Burst == 0 {
			p.Burst = p.RPM
		}
		if p.DailyBudget == 0 {
			p.DailyBudget = 5000
		}
		if p.MaxRetries == 0 {
			p.MaxRetries = c.Fetcher.MaxRetries
		}
	}
	if c.Sentiment.MaxArticles == 0 {
		c.Sentiment.MaxArticles = 10
	}
	if c.Sentiment.CacheTTLMinutes == 0 {
		c.Sentiment.CacheTTLMinutes = 15
	}
	if c.Sentiment.ModelID == "" {
		c.Sentiment.ModelID = "lexicon-v1"
	}
	for i := range c.Sentiment.Sources {
		if c.Sentiment.Sources[i].RequestTimeoutS == 0 {
			c.Sentiment.Sources[i].RequestTimeoutS = 15
		}
	}
	if c.Regime.CalmThresholdPct == 0 {
		c.Regime.CalmThresholdPct = 12
	}
	if c.Regime.HighVolThresholdPct == 0 {
		c.Regime.HighVolThresholdPct = 22
	}
	if c.Regime.MinObservations == 0 {
		c.Regime.MinObservations = 60
	}
	if c.Gap.Correlation == 0 {
		c.Gap.Correlation = 0.65
	}
	if len(c.Gap.USWeights) == 0 {
		c.Gap.USWeights = map[string]float64{"sp500": 1.0 / 3, "nasdaq": 1.0 / 3, "dow": 1.0 / 3}
	}
	if c.Market.LocalIndexSymbol == "" {
		c.Market.LocalIndexSymbol = "^AXJO"
	}
	if len(c.Market.USIndexSymbols) == 0 {
		c.Market.USIndexSymbols = map[string]string{"sp500": "^GSPC", "nasdaq": "^IXIC", "dow": "^DJI"}
	}
	if c.Scanner.MinPrice == 0 {
		c.Scanner.MinPrice = 1.0
	}
	if c.Scanner.MinVolume == 0 {
		c.Scanner.MinVolume = 100000
	}
	if c.Scanner.VolatilityRef == 0 {
		c.Scanner.VolatilityRef = 0.03
	}
	if c.Ensemble.Weights == (EnsembleWeights{}) {
		c.Ensemble.Weights = EnsembleWeights{LSTM: 0.45, Trend: 0.25, Technical: 0.15, Sentiment: 0.15}
	}
	if c.Orchestrator.Workers == 0 {
		c.Orchestrator.Workers = 2
	}
	if c.Orchestrator.TopOpportunities == 0 {
		c.Orchestrator.TopOpportunities = 20
	}
	if c.Persistence.CachePath == "" {
		c.Persistence.CachePath = "./cache"
	}
	if c.Persistence.RunsPath == "" {
		c.Persistence.RunsPath = "./reports"
	}
	if c.Persistence.ModelsPath == "" {
		c.Persistence.ModelsPath = "./models"
	}
	if home := os.Getenv("RUN_HOME"); home != "" {
		c.Persistence.CachePath = home + "/cache"
		c.Persistence.RunsPath = home + "/reports"
		c.Persistence.ModelsPath = home + "/models"
	}
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if len(c.Universe.Sectors) == 0 {
		return fmt.Errorf("universe.sectors is required")
	}
	if len(c.Fetcher.Providers) == 0 {
		return fmt.Errorf("fetcher.providers is required")
	}
	seen := make(map[string]bool)
	for _, p := range c.Fetcher.Providers {
		if p.ID == "" {
			return fmt.Errorf("fetcher.providers: provider id cannot be empty")
		}
		if seen[p.ID] {
			return fmt.Errorf("fetcher.providers: duplicate provider id %q", p.ID)
		}
		seen[p.ID] = true
		if p.RPM <= 0 {
			return fmt.Errorf("provider %s: rpm must be positive", p.ID)
		}
		if p.Burst < p.RPM/60+1 && p.Burst < 1 {
			return fmt.Errorf("provider %s: burst must be positive", p.ID)
		}
	}
	w := c.Ensemble.Weights
	sum := w.LSTM + w.Trend + w.Technical + w.Sentiment
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("ensemble.weights must sum to 1.0, got %.4f", sum)
	}
	if c.Regime.CalmThresholdPct >= c.Regime.HighVolThresholdPct {
		return fmt.Errorf("regime.calm_threshold_pct must be < high_vol_threshold_pct")
	}
	return nil
}
