package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// MetricsRegistry holds every Prometheus metric the screener exposes.
// Grounded on the teacher's MetricsRegistry (per-step duration
// histogram, cache hit/miss counters, a derived hit-ratio gauge),
// generalized from CryptoRun's websocket/regime-switch metrics to this
// spec's phase/provider/sector vocabulary.
type MetricsRegistry struct {
	gatherer prometheus.Gatherer

	PhaseDuration *prometheus.HistogramVec
	PhaseResults  *prometheus.CounterVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	CacheRatio  prometheus.Gauge

	ProviderFailovers *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec

	ScanSymbolsTotal   *prometheus.CounterVec
	OpportunitiesFound prometheus.Gauge
	RegimeLabel        prometheus.Gauge
	RunsTotal          *prometheus.CounterVec
}

// NewMetricsRegistry builds and registers every metric with the given
// registry (pass a fresh prometheus.NewRegistry() in production and in
// tests — a package-level default registry would panic on the second
// registration across repeated test runs or repeated Server restarts).
func NewMetricsRegistry(reg *prometheus.Registry) *MetricsRegistry {
	m := &MetricsRegistry{
		gatherer: reg,
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_phase_duration_seconds",
				Help:    "Duration of each orchestrator phase in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"phase", "status"},
		),
		PhaseResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_phase_results_total",
				Help: "Total phase executions by phase and terminal status",
			},
			[]string{"phase", "status"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "screener_cache_hits_total", Help: "Cache hits by tier"},
			[]string{"tier"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "screener_cache_misses_total", Help: "Cache misses by tier"},
			[]string{"tier"},
		),
		CacheRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "screener_cache_hit_ratio", Help: "Rolling cache hit ratio across tiers"},
		),
		ProviderFailovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "screener_provider_failovers_total", Help: "Failovers to the next provider in the chain"},
			[]string{"from_provider", "to_provider"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "screener_provider_errors_total", Help: "Provider errors by provider and kind"},
			[]string{"provider", "kind"},
		),
		ScanSymbolsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "screener_scan_symbols_total", Help: "Symbols scanned by sector and outcome"},
			[]string{"sector", "outcome"},
		),
		OpportunitiesFound: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "screener_opportunities_found", Help: "Opportunities ranked in the most recent run"},
		),
		RegimeLabel: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "screener_regime_label", Help: "Current market regime (0=unknown,1=calm,2=normal,3=high_vol)"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "screener_runs_total", Help: "Completed runs by terminal status"},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.PhaseDuration, m.PhaseResults,
		m.CacheHits, m.CacheMisses, m.CacheRatio,
		m.ProviderFailovers, m.ProviderErrors,
		m.ScanSymbolsTotal, m.OpportunitiesFound, m.RegimeLabel, m.RunsTotal,
	)
	return m
}

// PhaseTimer times one orchestrator phase execution.
type PhaseTimer struct {
	metrics *MetricsRegistry
	phase   string
	start   time.Time
}

func (m *MetricsRegistry) StartPhaseTimer(phase string) *PhaseTimer {
	return &PhaseTimer{metrics: m, phase: phase, start: time.Now()}
}

func (t *PhaseTimer) Stop(status string) {
	duration := time.Since(t.start)
	t.metrics.PhaseDuration.WithLabelValues(t.phase, status).Observe(duration.Seconds())
	t.metrics.PhaseResults.WithLabelValues(t.phase, status).Inc()
	log.Debug().Str("phase", t.phase).Str("status", status).Dur("duration", duration).Msg("httpapi: phase timer stopped")
}

func (m *MetricsRegistry) RecordCacheHit(tier string) {
	m.CacheHits.WithLabelValues(tier).Inc()
	m.refreshCacheRatio()
}

func (m *MetricsRegistry) RecordCacheMiss(tier string) {
	m.CacheMisses.WithLabelValues(tier).Inc()
	m.refreshCacheRatio()
}

func (m *MetricsRegistry) refreshCacheRatio() {
	hits := sumCounterVec(m.CacheHits)
	misses := sumCounterVec(m.CacheMisses)
	total := hits + misses
	if total > 0 {
		m.CacheRatio.Set(hits / total)
	}
}

func sumCounterVec(vec *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	vec.Collect(ch)
	close(ch)

	var total float64
	for metric := range ch {
		var pb dto.Metric
		if err := metric.Write(&pb); err == nil && pb.Counter != nil {
			total += pb.Counter.GetValue()
		}
	}
	return total
}

func (m *MetricsRegistry) RecordProviderFailover(from, to string) {
	m.ProviderFailovers.WithLabelValues(from, to).Inc()
}

func (m *MetricsRegistry) RecordProviderError(provider, kind string) {
	m.ProviderErrors.WithLabelValues(provider, kind).Inc()
}

func (m *MetricsRegistry) RecordScanSymbol(sector, outcome string) {
	m.ScanSymbolsTotal.WithLabelValues(sector, outcome).Inc()
}

func (m *MetricsRegistry) SetOpportunitiesFound(n int) {
	m.OpportunitiesFound.Set(float64(n))
}

func (m *MetricsRegistry) SetRegimeLabel(value float64) {
	m.RegimeLabel.Set(value)
}

func (m *MetricsRegistry) RecordRunCompleted(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// MetricsHandler exposes this registry's metrics in the Prometheus
// text exposition format.
func (m *MetricsRegistry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
