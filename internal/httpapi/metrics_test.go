package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRatioUpdatesAfterHitsAndMisses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsRegistry(reg)

	m.RecordCacheHit("l1")
	m.RecordCacheHit("l1")
	m.RecordCacheMiss("l1")

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var ratio float64
	for _, mf := range metricFamilies {
		if mf.GetName() == "screener_cache_hit_ratio" {
			ratio = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.InDelta(t, 2.0/3.0, ratio, 0.0001)
}

func TestMetricsHandlerServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsRegistry(reg)
	m.SetOpportunitiesFound(5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}
