package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/fheprop/pkg/metrics"
)

// StatsProvider reports service counters for /stats and /readyz.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

type readiness struct {
	Ready     bool `json:"ready"`
	Connected bool `json:"wallet_connected"`
}

// opsHandler serves the operator endpoints: metrics, counters and readiness.
type opsHandler struct {
	metrics http.Handler
	stats   StatsProvider
}

func newOpsHandler() *opsHandler {
	return &opsHandler{metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})}
}

func (h *opsHandler) snapshot() map[string]interface{} {
	if h.stats == nil {
		return map[string]interface{}{}
	}
	return h.stats.GetStats()
}

// handleMetrics handles GET /healthz with the Prometheus registry.
func (h *opsHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// handleStats handles GET /stats.
func (h *opsHandler) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

// handleReady handles GET /readyz. The service is ready once started; a
// disconnected wallet is reported but does not fail readiness.
func (h *opsHandler) handleReady(w http.ResponseWriter, _ *http.Request) {
	stats := h.snapshot()
	started, _ := stats["started"].(bool)
	connected, _ := stats["wallet_connected"].(bool)
	status := http.StatusOK
	if !started {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readiness{Ready: started, Connected: connected})
}
