package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerServesHealthzAndMetrics(t *testing.T) {
	health := NewHealthHandler(&fakeRunStatusProvider{}, "v1", "abc")
	metrics := NewMetricsRegistry(prometheus.NewRegistry())

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 19099

	srv, err := New(cfg, health, metrics)
	require.NoError(t, err)

	go srv.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	// Give the listener a moment to accept connections.
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + srv.Addr() + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsResp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestNewFailsWhenPortBusy(t *testing.T) {
	health := NewHealthHandler(&fakeRunStatusProvider{}, "v1", "abc")
	metrics := NewMetricsRegistry(prometheus.NewRegistry())

	cfg := DefaultConfig()
	cfg.Port = 19100

	first, err := New(cfg, health, metrics)
	require.NoError(t, err)
	go first.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		first.Shutdown(ctx)
	}()
	time.Sleep(50 * time.Millisecond)

	_, err = New(cfg, health, NewMetricsRegistry(prometheus.NewRegistry()))
	assert.Error(t, err)
}
