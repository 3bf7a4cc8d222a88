package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privrelay/offload-gateway/internal/backends"
	"github.com/privrelay/offload-gateway/internal/config"
	"github.com/privrelay/offload-gateway/internal/monitoring"
	"github.com/privrelay/offload-gateway/internal/quota"
	"github.com/privrelay/offload-gateway/internal/sysload"
)

func newTestGateway(t *testing.T, cfg *config.Config, local LocalBackend, remote RemoteBackend, ratio float64) *Gateway {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	guard := quota.NewGuard(quota.NewMemoryStore(), cfg.Quota.DailyCeiling, cfg.Quota.MonthlyCeiling)
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{})
	require.NoError(t, err)
	return New(cfg, local, remote, guard, sysload.Fixed(ratio), tracker)
}

func eventsFrom(deltas []string, stop bool, errAfter error) <-chan backends.StreamEvent {
	ch := make(chan backends.StreamEvent, len(deltas)+1)
	for _, d := range deltas {
		ch <- backends.StreamEvent{Kind: backends.EventDelta, Delta: d}
	}
	if errAfter != nil {
		ch <- backends.StreamEvent{Err: errAfter}
	} else if stop {
		ch <- backends.StreamEvent{Kind: backends.EventStop}
	}
	close(ch)
	return ch
}

func collect(t *testing.T, chunks <-chan StreamChunk) []StreamChunk {
	t.Helper()
	var got []StreamChunk
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				return got
			}
			got = append(got, c)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for chunks")
		}
	}
}

func TestTranslateDeltasThenStop(t *testing.T) {
	g := newTestGateway(t, nil, nil, nil, 0)
	chunks := g.translate(context.Background(), "req", "local", eventsFrom([]string{"a", "b", "c"}, true, nil), nil)

	got := collect(t, chunks)
	require.Len(t, got, 4)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, got[i].Delta)
		assert.False(t, got[i].Final)
		assert.Equal(t, "local", got[i].Backend)
	}
	assert.True(t, got[3].Final)
	assert.Empty(t, got[3].Delta)
}

func TestTranslateStreamErrorFallsBack(t *testing.T) {
	g := newTestGateway(t, nil, nil, nil, 0)
	full := strings.Repeat("x", config.FallbackChunkSize+10)
	fallback := func(context.Context) (string, error) { return full, nil }

	events := eventsFrom([]string{"partial"}, false, errors.New("connection reset"))
	got := collect(t, g.translate(context.Background(), "req", "remote", events, fallback))

	// The partial delta was already forwarded, then the full text replays
	// in fixed-size pieces followed by exactly one final chunk.
	require.Len(t, got, 4)
	assert.Equal(t, "partial", got[0].Delta)
	assert.Equal(t, config.FallbackChunkSize, len(got[1].Delta))
	assert.Equal(t, 10, len(got[2].Delta))
	assert.True(t, got[3].Final)
}

func TestTranslateNilEventsRunsFallback(t *testing.T) {
	g := newTestGateway(t, nil, nil, nil, 0)
	fallback := func(context.Context) (string, error) { return "short answer", nil }

	got := collect(t, g.translate(context.Background(), "req", "remote", nil, fallback))
	require.Len(t, got, 2)
	assert.Equal(t, "short answer", got[0].Delta)
	assert.True(t, got[1].Final)
}

func TestTranslateFallbackFailureStillTerminates(t *testing.T) {
	g := newTestGateway(t, nil, nil, nil, 0)
	fallback := func(context.Context) (string, error) { return "", errors.New("remote down") }

	got := collect(t, g.translate(context.Background(), "req", "remote", nil, fallback))
	require.Len(t, got, 1)
	assert.True(t, got[0].Final)
}

func TestTranslateLocalErrorNoFallback(t *testing.T) {
	g := newTestGateway(t, nil, nil, nil, 0)
	events := eventsFrom([]string{"a"}, false, errors.New("local died"))

	got := collect(t, g.translate(context.Background(), "req", "local", events, nil))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Delta)
	assert.True(t, got[1].Final)
}

func TestTranslateCancelledEmitsNoFinal(t *testing.T) {
	g := newTestGateway(t, nil, nil, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())

	events := make(chan backends.StreamEvent)
	chunks := g.translate(ctx, "req", "local", events, nil)

	events <- backends.StreamEvent{Kind: backends.EventDelta, Delta: "a"}
	first := <-chunks
	assert.Equal(t, "a", first.Delta)

	cancel()
	close(events)

	for c := range chunks {
		assert.False(t, c.Final, "no final chunk after cancellation")
	}
}

func TestSplitFixed(t *testing.T) {
	assert.Nil(t, splitFixed("", 8))
	assert.Equal(t, []string{"abc"}, splitFixed("abc", 8))
	assert.Equal(t, []string{"abcd", "efgh", "i"}, splitFixed("abcdefghi", 4))

	// Multibyte runes are never split.
	parts := splitFixed(strings.Repeat("é", 5), 3)
	for _, p := range parts {
		assert.True(t, len(p) > 0)
		assert.Equal(t, p, string([]rune(p)), "each piece is valid UTF-8")
	}
	assert.Equal(t, strings.Repeat("é", 5), strings.Join(parts, ""))
}
