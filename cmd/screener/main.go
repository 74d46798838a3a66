// Command screener is the screener's CLI entrypoint: it wires every
// component (C1-C12) into an Orchestrator and drives one run per
// invocation. Grounded on the teacher's cmd/cryptorun/main.go command
// tree, trimmed to this spec's single `run` verb plus the operational
// `config validate`/`cache stats`/`version` helpers spec §6 calls for
// instead of CryptoRun's interactive menu.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/screener/internal/cache"
	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/ensemble"
	"github.com/sawpanic/screener/internal/gapmonitor"
	"github.com/sawpanic/screener/internal/httpapi"
	"github.com/sawpanic/screener/internal/logging"
	"github.com/sawpanic/screener/internal/news"
	"github.com/sawpanic/screener/internal/ops"
	"github.com/sawpanic/screener/internal/orchestrator"
	"github.com/sawpanic/screener/internal/persistence"
	"github.com/sawpanic/screener/internal/providers"
	"github.com/sawpanic/screener/internal/regime"
	"github.com/sawpanic/screener/internal/report"
	"github.com/sawpanic/screener/internal/scanner"
	"github.com/sawpanic/screener/internal/sentiment"
)

const (
	appName = "screener"
	version = "v1.0.0"
)

// Exit codes per spec.md §6's table.
const (
	exitSuccess    = 0
	exitPartial    = 1
	exitAborted    = 2
	exitUsageError = 64
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run builds and executes the command tree, returning the process
// exit code rather than calling os.Exit directly so tests can drive it
// without killing the test binary.
func run(args []string) int {
	exitCode := exitSuccess

	root := &cobra.Command{
		Use:           appName,
		Short:         "ASX morning screener: overnight market context, sector scans and ranked opportunities",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := newRunCommand(&exitCode)
	root.AddCommand(runCmd)
	root.AddCommand(newConfigCommand())
	root.AddCommand(newCacheCommand())
	root.AddCommand(newVersionCommand())

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageError
	}
	return exitCode
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the screener version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
			return nil
		},
	}
}

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate the screener's configuration",
	}
	var configPath string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config document without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config OK: %s\n", configPath)
			return nil
		},
	}
	validateCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the config document")
	configCmd.AddCommand(validateCmd)
	return configCmd
}

func newCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the two-tier response cache",
	}
	var configPath string
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the in-process cache tier's hit ratio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			tiered, err := buildCache(*cfg)
			if err != nil {
				return err
			}
			stats := tiered.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "entries=%d hits=%d misses=%d evictions=%d hit_ratio=%.2f\n",
				stats.Entries, stats.Hits, stats.Misses, stats.Evictions, stats.HitRatio)
			return nil
		},
	}
	statsCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the config document")
	cacheCmd.AddCommand(statsCmd)
	return cacheCmd
}

// runFlags holds the run command's parsed flag overrides.
type runFlags struct {
	configPath  string
	sectors     string
	testMode    bool
	skipPredict bool
	runID       string
	logLevel    string
	serveHTTP   bool
}

func newRunCommand(exitCode *int) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full morning-screen pass: market context, scan, predict, rank, emit",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runScreen(cmd.Context(), flags)
			*exitCode = code
			return err
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "config.yaml", "path to the config document")
	cmd.Flags().StringVar(&flags.sectors, "sectors", "", "comma-separated subset of config sectors to scan (default: all)")
	cmd.Flags().BoolVar(&flags.testMode, "test-mode", false, "scan only the first 5 symbols per sector")
	cmd.Flags().BoolVar(&flags.skipPredict, "skip-predict", false, "run scan+rank without ensemble predictions")
	cmd.Flags().StringVar(&flags.runID, "run-id", "", "replace the autogenerated run id in the final log line and console summary (the persisted checkpoint and report artifacts keep the autogenerated id)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "debug|info|warn|error")
	cmd.Flags().BoolVar(&flags.serveHTTP, "serve", false, "also serve /healthz and /metrics for the duration of the run")

	return cmd
}

// runScreen performs the config/usage validation, wires every
// component, runs the orchestrator once, and maps the terminal
// domain.RunState to spec.md §6's exit code table. A returned non-nil
// error is a config/usage failure (exitUsageError); everything else is
// signaled purely through the returned exit code so a degraded or
// aborted run still prints its summary instead of cobra's usage error.
func runScreen(ctx context.Context, flags *runFlags) (int, error) {
	logging.Init(logging.Options{Level: flags.logLevel})

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return exitUsageError, err
	}

	if flags.sectors != "" {
		if err := restrictSectors(cfg, flags.sectors); err != nil {
			return exitUsageError, err
		}
	}
	if flags.testMode {
		applyTestMode(cfg)
	}

	orch, store, cleanup, err := buildOrchestrator(*cfg, flags.skipPredict)
	if err != nil {
		return exitUsageError, err
	}
	defer cleanup()

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var httpServer *httpapi.Server
	if flags.serveHTTP {
		httpServer, err = startHealthServer(store)
		if err != nil {
			log.Warn().Err(err).Msg("screener: http surface unavailable, continuing without it")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpapi.DefaultConfig().WriteTimeout)
				defer shutdownCancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()
		}
	}

	state, runErr := orch.Run(runCtx)
	if flags.runID != "" {
		state.RunID = flags.runID
	}

	log.Info().
		Str("run_id", state.RunID).
		Str("status", string(state.Status)).
		Int("opportunities", len(state.Opportunities)).
		Msg("screener: run complete")

	ops.NewSummaryRenderer().RenderConsole(state, cfg.Orchestrator.TopOpportunities)

	switch state.Status {
	case domain.RunDone:
		return exitSuccess, nil
	case domain.RunPartial:
		return exitPartial, nil
	case domain.RunFailed, domain.RunCancelled:
		return exitAborted, nil
	default:
		return exitAborted, runErr
	}
}

// restrictSectors filters cfg.Universe.Sectors down to the requested,
// comma-separated subset, failing loudly on an unknown sector name
// rather than silently scanning nothing for it.
func restrictSectors(cfg *config.Config, sectors string) error {
	wanted := strings.Split(sectors, ",")
	filtered := make(map[string][]string, len(wanted))
	for _, name := range wanted {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		symbols, ok := cfg.Universe.Sectors[name]
		if !ok {
			known := make([]string, 0, len(cfg.Universe.Sectors))
			for k := range cfg.Universe.Sectors {
				known = append(known, k)
			}
			sort.Strings(known)
			return fmt.Errorf("--sectors: unknown sector %q (configured: %s)", name, strings.Join(known, ", "))
		}
		filtered[name] = symbols
	}
	if len(filtered) == 0 {
		return fmt.Errorf("--sectors: no valid sector names given")
	}
	cfg.Universe.Sectors = filtered
	return nil
}

// applyTestMode trims every sector to its first 5 symbols (spec.md
// §6), preserving sector ordering but shrinking the scan universe for
// a fast smoke run.
func applyTestMode(cfg *config.Config) {
	const limit = 5
	for sector, symbols := range cfg.Universe.Sectors {
		if len(symbols) > limit {
			cfg.Universe.Sectors[sector] = symbols[:limit]
		}
	}
}

// buildOrchestrator constructs every component (C1-C10) from cfg and
// wires them into an Orchestrator, returning a cleanup func that closes
// whatever needs closing (the persistence store) regardless of how the
// run ends.
func buildOrchestrator(cfg config.Config, skipPredict bool) (*orchestrator.Orchestrator, *persistence.Store, func(), error) {
	tiered, err := buildCache(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build cache: %w", err)
	}

	chain, err := buildProviderChain(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build providers: %w", err)
	}
	fetcher := providers.NewFetcher(chain, tiered, cfg.Fetcher.CacheTTL(), cfg.Fetcher.QuoteTTL())

	sources, err := buildNewsSources(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build news sources: %w", err)
	}
	aggregator := news.NewAggregator(sources, cfg.Sentiment.MaxArticles)
	classifier := sentiment.NewClassifier(cfg.Sentiment.ModelID)
	sentimentPipeline := orchestrator.NewNewsSentimentPipeline(aggregator, classifier)

	regimeDetector := regime.NewDetector(cfg.Regime)
	gapMonitor := gapmonitor.NewMonitor(cfg.Gap)
	symbolScanner := scanner.NewScanner(cfg.Scanner, fetcher)
	predictor := ensemble.NewPredictor(cfg.Ensemble.Weights, cfg.Persistence.ModelsPath)
	reporter := report.NewReporter(cfg.Persistence.RunsPath)

	store, err := persistence.Open(cfg.Persistence)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open persistence store: %w", err)
	}

	localIndex := domain.Symbol(cfg.Market.LocalIndexSymbol)
	usIndices := make(map[string]domain.Symbol, len(cfg.Market.USIndexSymbols))
	for name, symbol := range cfg.Market.USIndexSymbols {
		usIndices[name] = domain.Symbol(symbol)
	}

	orch := orchestrator.New(
		cfg,
		fetcher,
		fetcher,
		regimeDetector,
		gapMonitor,
		sentimentPipeline,
		symbolScanner,
		predictor,
		reporter,
		store,
		localIndex,
		usIndices,
	)
	orch.SetSkipPredict(skipPredict)

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("screener: error closing persistence store")
		}
	}
	return orch, store, cleanup, nil
}

func buildCache(cfg config.Config) (*cache.Tiered, error) {
	redisAddr := os.Getenv("REDIS_ADDR")
	return cache.NewAuto(10000, redisAddr, cfg.Persistence.CachePath)
}

// buildProviderChain constructs the ordered failover chain from
// cfg.Fetcher.Providers, decorating each with its own rate limit,
// circuit breaker and daily budget (spec §4.1).
func buildProviderChain(cfg config.Config) ([]providers.Provider, error) {
	timeout := cfg.Fetcher.RequestTimeout()
	chain := make([]providers.Provider, 0, len(cfg.Fetcher.Providers))
	for _, p := range cfg.Fetcher.Providers {
		var base providers.Provider
		switch p.ID {
		case "stooq":
			base = providers.NewStooq(p.BaseURL, timeout)
		case "yahoo":
			base = providers.NewYahoo(p.BaseURL, timeout)
		case "quote-only":
			base = providers.NewQuoteOnly(p.BaseURL, timeout)
		default:
			return nil, fmt.Errorf("fetcher.providers: unknown provider id %q", p.ID)
		}
		chain = append(chain, providers.Decorate(base, p))
	}
	return chain, nil
}

// buildNewsSources constructs one news.Source per cfg.Sentiment.Sources
// entry. A "jsonfeed" source templates the configured URL with %s for
// the requested symbol; an "rss" source shares one feed URL across
// every symbol and relies on the RSS adapter's own symbol matching.
func buildNewsSources(cfg config.Config) ([]news.Source, error) {
	sources := make([]news.Source, 0, len(cfg.Sentiment.Sources))
	for _, s := range cfg.Sentiment.Sources {
		timeout := s.RequestTimeout()
		switch s.Kind {
		case "rss":
			sources = append(sources, news.NewRSS(s.ID, s.URL, timeout))
		case "jsonfeed":
			feedURL := s.URL
			sources = append(sources, news.NewJSONFeed(s.ID, func(symbol domain.Symbol) string {
				return fmt.Sprintf(feedURL, symbol)
			}, timeout))
		default:
			return nil, fmt.Errorf("sentiment.sources: unknown kind %q for source %q", s.Kind, s.ID)
		}
	}
	return sources, nil
}

// startHealthServer wires the persistence-backed health handler and a
// fresh metrics registry into an httpapi.Server and starts it in the
// background, for operators who want /healthz and /metrics available
// for the duration of a --serve run.
func startHealthServer(store httpapi.RunStatusProvider) (*httpapi.Server, error) {
	health := httpapi.NewHealthHandler(store, version, uuid.NewString())
	metrics := httpapi.NewMetricsRegistry(prometheus.NewRegistry())
	srv, err := httpapi.New(httpapi.DefaultConfig(), health, metrics)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Start(); err != nil {
			log.Warn().Err(err).Msg("screener: http server stopped")
		}
	}()
	return srv, nil
}
