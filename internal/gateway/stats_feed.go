// Package gateway - stats_feed.go pushes live stats over a WebSocket.
//
// GET /ws/stats upgrades and then sends a stats snapshot every interval
// until the client goes away. Loopback only, same as /stats.
package gateway

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

const statsFeedInterval = 2 * time.Second

// handleStatsFeed streams stats snapshots to a dashboard client.
func (g *Gateway) handleStatsFeed(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("stats feed upgrade failed")
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	ctx := r.Context()
	ticker := time.NewTicker(statsFeedInterval)
	defer ticker.Stop()

	for {
		resp := StatsResponse{StatsSnapshot: g.metrics.Snapshot()}
		if usage, err := g.guard.Snapshot(ctx); err == nil {
			resp.Quota = usage
		}
		if err := wsjson.Write(ctx, conn, resp); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
