package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/privrelay/offload-gateway/internal/backends"
	"github.com/privrelay/offload-gateway/internal/config"
)

// translate converts backend-native events into the canonical chunk
// sequence. Deltas are re-emitted in arrival order, a stop event becomes
// the single final chunk, and unknown event kinds never appear (the
// backend clients drop them). When the native stream fails and a fallback
// is provided, the full fallback text is replayed as fixed-size chunks
// through the same channel, so the client-visible contract is identical.
// Passing a nil events channel runs the fallback immediately.
//
// Cancelling ctx stops forwarding; no final chunk is emitted in that case.
func (g *Gateway) translate(ctx context.Context, id, backend string, events <-chan backends.StreamEvent, fallback func(context.Context) (string, error)) <-chan StreamChunk {
	out := make(chan StreamChunk, 64)

	go func() {
		defer close(out)

		needFallback := events == nil
		if events != nil {
			delivered := 0
			for ev := range events {
				if ev.Err != nil {
					log.Warn().Err(ev.Err).Str("request_id", id).Int("deltas_before_error", delivered).
						Msg("stream failed, using non-streaming fallback")
					needFallback = true
					break
				}
				switch ev.Kind {
				case backends.EventDelta:
					delivered++
					if !send(ctx, out, StreamChunk{ID: id, Backend: backend, Delta: ev.Delta}) {
						return
					}
				case backends.EventStop:
					send(ctx, out, StreamChunk{ID: id, Backend: backend, Final: true})
					return
				}
			}
			if !needFallback {
				// Closed without stop or error: upstream saw our cancellation.
				return
			}
		}

		if fallback == nil {
			// Local failures are surfaced, never re-routed; terminate the
			// sequence so the client sees a well-formed stream.
			send(ctx, out, StreamChunk{ID: id, Backend: backend, Final: true})
			return
		}

		if g.metrics != nil {
			g.metrics.RecordStreamFallback()
		}
		text, err := fallback(ctx)
		if err != nil {
			log.Error().Err(err).Str("request_id", id).Msg("non-streaming fallback failed")
			send(ctx, out, StreamChunk{ID: id, Backend: backend, Final: true})
			return
		}
		for _, piece := range splitFixed(text, config.FallbackChunkSize) {
			if !send(ctx, out, StreamChunk{ID: id, Backend: backend, Delta: piece}) {
				return
			}
		}
		send(ctx, out, StreamChunk{ID: id, Backend: backend, Final: true})
	}()

	return out
}

func send(ctx context.Context, out chan<- StreamChunk, c StreamChunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// splitFixed splits text into size-byte pieces without breaking a UTF-8
// sequence mid-rune.
func splitFixed(s string, size int) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	return append(parts, s)
}

// streamChunks writes the chunk sequence to the client as SSE, flushing
// after every event. The [DONE] sentinel follows the final chunk.
func (g *Gateway) streamChunks(w http.ResponseWriter, chunks <-chan StreamChunk) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	for chunk := range chunks {
		data, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			log.Debug().Err(err).Msg("client disconnected")
			return
		}
		if ok {
			flusher.Flush()
		}
		if chunk.Final {
			_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
			if ok {
				flusher.Flush()
			}
			return
		}
	}
}
