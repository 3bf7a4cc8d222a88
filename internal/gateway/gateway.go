// HTTP request handling for the offload gateway.
//
// DESIGN: Main request flow:
//   - handleChat():     Entry point for all chat requests
//   - routeRequest():   Policy gate + routing cascade
//   - serveLocal():     Passthrough to the local backend
//   - serveRemote():    Cost guard, redaction, envelope build, remote call
//
// Also includes health check, stats, and the live stats WebSocket feed.
package gateway

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/privrelay/offload-gateway/internal/backends"
	"github.com/privrelay/offload-gateway/internal/config"
	"github.com/privrelay/offload-gateway/internal/envelope"
	"github.com/privrelay/offload-gateway/internal/monitoring"
	"github.com/privrelay/offload-gateway/internal/quota"
	"github.com/privrelay/offload-gateway/internal/sysload"
)

// LocalBackend is the always-available inference service. The raw client
// body is forwarded as-is apart from model substitution.
type LocalBackend interface {
	Complete(ctx context.Context, rawBody []byte) (string, error)
	Stream(ctx context.Context, rawBody []byte) (<-chan backends.StreamEvent, error)
}

// RemoteBackend receives only validated envelopes, never raw client text.
type RemoteBackend interface {
	Complete(ctx context.Context, env envelope.Envelope) (string, error)
	Stream(ctx context.Context, env envelope.Envelope) (<-chan backends.StreamEvent, error)
}

// Gateway routes chat requests between the local and remote backends.
type Gateway struct {
	cfg     *config.Config
	local   LocalBackend
	remote  RemoteBackend
	guard   *quota.Guard
	sampler sysload.Sampler
	metrics *monitoring.MetricsCollector
	tracker *monitoring.Tracker
}

// New wires a Gateway from its dependencies. Pass a sysload.Fixed sampler
// in tests to make load-aware routing deterministic.
func New(cfg *config.Config, local LocalBackend, remote RemoteBackend, guard *quota.Guard, sampler sysload.Sampler, tracker *monitoring.Tracker) *Gateway {
	return &Gateway{
		cfg:     cfg,
		local:   local,
		remote:  remote,
		guard:   guard,
		sampler: sampler,
		metrics: monitoring.NewMetricsCollector(),
		tracker: tracker,
	}
}

// Routes returns the gateway's HTTP mux.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat", g.handleChat)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/stats", g.handleStats)
	mux.HandleFunc("/ws/stats", g.handleStatsFeed)
	return mux
}

// isLoopback reports whether the remote address is a loopback interface.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	host = strings.Trim(host, "[]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
