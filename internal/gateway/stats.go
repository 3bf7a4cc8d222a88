// Package gateway - stats.go exposes aggregated metrics as JSON.
//
// GET /stats returns routing counters and quota usage.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/privrelay/offload-gateway/internal/monitoring"
	"github.com/privrelay/offload-gateway/internal/quota"
)

// StatsResponse is the JSON response for GET /stats.
type StatsResponse struct {
	monitoring.StatsSnapshot
	Quota quota.Usage `json:"quota"`
}

// handleHealth returns gateway health status.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}

	if _, err := g.guard.Snapshot(r.Context()); err != nil {
		health["status"] = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if health["status"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(health)
}

// handleStats returns aggregated metrics as JSON.
// Restricted to localhost to prevent external access to operational data.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	resp := StatsResponse{StatsSnapshot: g.metrics.Snapshot()}
	if usage, err := g.guard.Snapshot(r.Context()); err == nil {
		resp.Quota = usage
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
