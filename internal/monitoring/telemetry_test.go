package monitoring

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	tracker, err := NewTracker(TelemetryConfig{Enabled: true, LogPath: path})
	require.NoError(t, err)

	tracker.RecordRequest(&RequestEvent{
		Timestamp: time.Now(), RequestID: "req-1", Route: "local",
		Reason: "default to local execution", StatusCode: 200, DurationMs: 12,
	})
	tracker.RecordRequest(&RequestEvent{
		Timestamp: time.Now(), RequestID: "req-2", Route: "remote",
		Reason: "deep reasoning requested", StatusCode: 200, DurationMs: 340,
	})
	require.NoError(t, tracker.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var routes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev RequestEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		routes = append(routes, ev.Route)
	}
	assert.Equal(t, []string{"local", "remote"}, routes)
}

func TestTrackerDisabledWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	tracker, err := NewTracker(TelemetryConfig{Enabled: false, LogPath: path})
	require.NoError(t, err)

	tracker.RecordRequest(&RequestEvent{RequestID: "req-1"})
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMetricsSnapshot(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordRequest(true)
	mc.RecordRequest(true)
	mc.RecordRequest(false)
	mc.RecordRoute(false, false)
	mc.RecordRoute(true, true)
	mc.RecordPolicyDenial()
	mc.RecordQuotaRejection()

	s := mc.Snapshot()
	assert.Equal(t, int64(3), s.Requests.Total)
	assert.Equal(t, int64(2), s.Requests.Successful)
	assert.Equal(t, int64(1), s.Requests.Failed)
	assert.Equal(t, int64(1), s.Routing.Local)
	assert.Equal(t, int64(1), s.Routing.Remote)
	assert.Equal(t, int64(1), s.Routing.LoadPromotions)
	assert.Equal(t, int64(1), s.Guards.PolicyDenials)
	assert.Equal(t, int64(1), s.Guards.QuotaRejections)
}

func TestEstimateTokensNonZero(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	assert.Greater(t, EstimateTokens("explain the scheduler in detail"), 0)
}
