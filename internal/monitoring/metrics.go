// Package monitoring - metrics.go provides simple counters.
//
// Lightweight in-memory counters for operational metrics. For production,
// export these to Prometheus or similar.
package monitoring

import (
	"fmt"
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	startedAt time.Time

	requests  atomic.Int64
	successes atomic.Int64

	localRoutes    atomic.Int64
	remoteRoutes   atomic.Int64
	loadPromotions atomic.Int64

	policyDenials   atomic.Int64
	quotaRejections atomic.Int64
	streamFallbacks atomic.Int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startedAt: time.Now()}
}

// RecordRequest records a completed request.
func (mc *MetricsCollector) RecordRequest(success bool) {
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// RecordRoute records which backend served a request and whether the
// load-aware override fired.
func (mc *MetricsCollector) RecordRoute(remote, loadAware bool) {
	if remote {
		mc.remoteRoutes.Add(1)
	} else {
		mc.localRoutes.Add(1)
	}
	if loadAware {
		mc.loadPromotions.Add(1)
	}
}

// RecordPolicyDenial records a policy gate denial.
func (mc *MetricsCollector) RecordPolicyDenial() { mc.policyDenials.Add(1) }

// RecordQuotaRejection records a remote call blocked by the cost guard.
func (mc *MetricsCollector) RecordQuotaRejection() { mc.quotaRejections.Add(1) }

// RecordStreamFallback records a remote stream failure served by the
// non-streaming fallback.
func (mc *MetricsCollector) RecordStreamFallback() { mc.streamFallbacks.Add(1) }

// StartedAt returns when the collector was created.
func (mc *MetricsCollector) StartedAt() time.Time { return mc.startedAt }

// RequestStats holds request count metrics.
type RequestStats struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// RoutingStats holds per-backend routing metrics.
type RoutingStats struct {
	Local          int64 `json:"local"`
	Remote         int64 `json:"remote"`
	LoadPromotions int64 `json:"load_promotions"`
}

// GuardStats holds admission-control metrics.
type GuardStats struct {
	PolicyDenials   int64 `json:"policy_denials"`
	QuotaRejections int64 `json:"quota_rejections"`
	StreamFallbacks int64 `json:"stream_fallbacks"`
}

// StatsSnapshot is the structured form served by the stats endpoint.
type StatsSnapshot struct {
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartedAt     string       `json:"started_at"`
	Requests      RequestStats `json:"requests"`
	Routing       RoutingStats `json:"routing"`
	Guards        GuardStats   `json:"guards"`
}

// Snapshot returns all metrics in a structured format.
func (mc *MetricsCollector) Snapshot() StatsSnapshot {
	uptime := time.Since(mc.startedAt)
	requests := mc.requests.Load()
	successes := mc.successes.Load()

	return StatsSnapshot{
		Uptime:        formatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		StartedAt:     mc.startedAt.Format(time.RFC3339),
		Requests: RequestStats{
			Total:      requests,
			Successful: successes,
			Failed:     requests - successes,
		},
		Routing: RoutingStats{
			Local:          mc.localRoutes.Load(),
			Remote:         mc.remoteRoutes.Load(),
			LoadPromotions: mc.loadPromotions.Load(),
		},
		Guards: GuardStats{
			PolicyDenials:   mc.policyDenials.Load(),
			QuotaRejections: mc.quotaRejections.Load(),
			StreamFallbacks: mc.streamFallbacks.Load(),
		},
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
