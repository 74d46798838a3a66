package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/sawpanic/screener/internal/domain"
)

// RunStatusProvider is satisfied by *persistence.Store — kept narrow
// so this package never imports persistence directly.
type RunStatusProvider interface {
	Latest(ctx context.Context) (*domain.RunState, error)
}

// HealthHandler serves /healthz, grounded on the teacher's
// HealthHandler (uptime, Go runtime stats, a status of
// healthy/degraded/unhealthy derived from the last observed run rather
// than from provider registry health, since that already lives inside
// the run's own MarketSnapshot.Degraded/ProviderFailovers fields).
type HealthHandler struct {
	store      RunStatusProvider
	startTime  time.Time
	version    string
	buildStamp string
}

func NewHealthHandler(store RunStatusProvider, version, buildStamp string) *HealthHandler {
	return &HealthHandler{store: store, startTime: time.Now(), version: version, buildStamp: buildStamp}
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status     string     `json:"status"`
	Timestamp  time.Time  `json:"timestamp"`
	Uptime     string     `json:"uptime"`
	Version    string     `json:"version"`
	BuildStamp string     `json:"build_stamp"`
	System     SystemInfo `json:"system"`
	LastRun    *LastRun   `json:"last_run,omitempty"`
}

type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAllocBytes uint64 `json:"mem_alloc_bytes"`
}

type LastRun struct {
	RunID             string            `json:"run_id"`
	Status            domain.RunStatus  `json:"status"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
	Opportunities     int               `json:"opportunities"`
	ProviderFailovers int               `json:"provider_failovers"`
	Reason            string            `json:"reason,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := h.gather(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	switch response.Status {
	case "unhealthy":
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *HealthHandler) gather(ctx context.Context) HealthResponse {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := HealthResponse{
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(h.startTime).String(),
		Version:    h.version,
		BuildStamp: h.buildStamp,
		System: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			MemAllocBytes: memStats.Alloc,
		},
		Status: "healthy",
	}

	state, err := h.store.Latest(ctx)
	if err != nil {
		response.Status = "unhealthy"
		return response
	}
	if state == nil {
		response.Status = "degraded" // no run has completed yet
		return response
	}

	response.LastRun = &LastRun{
		RunID:             state.RunID,
		Status:            state.Status,
		StartedAt:         state.StartedAt,
		FinishedAt:        state.FinishedAt,
		Opportunities:     len(state.Opportunities),
		ProviderFailovers: state.ProviderFailovers,
		Reason:            state.Reason,
	}

	switch state.Status {
	case domain.RunFailed:
		response.Status = "unhealthy"
	case domain.RunPartial, domain.RunCancelled:
		response.Status = "degraded"
	}
	return response
}
