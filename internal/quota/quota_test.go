package quota

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T, dayCeiling, monthCeiling int) *Guard {
	t.Helper()
	g := NewGuard(NewMemoryStore(), dayCeiling, monthCeiling)
	g.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestGuardDailyCeiling(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, 3, 100)

	for i := 0; i < 3; i++ {
		assert.NoError(t, g.AssertAllowed(ctx), "call %d should be admitted", i+1)
	}
	err := g.AssertAllowed(ctx)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Next day starts a fresh counter on the same store.
	g.now = func() time.Time { return time.Date(2026, 3, 16, 0, 0, 1, 0, time.UTC) }
	assert.NoError(t, g.AssertAllowed(ctx))
}

func TestGuardMonthlyCeiling(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, 100, 2)

	assert.NoError(t, g.AssertAllowed(ctx))

	// A new day within the same month still counts against the month.
	g.now = func() time.Time { return time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC) }
	assert.NoError(t, g.AssertAllowed(ctx))
	assert.ErrorIs(t, g.AssertAllowed(ctx), ErrQuotaExceeded)

	// Next month clears it.
	g.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	assert.NoError(t, g.AssertAllowed(ctx))
}

func TestGuardRejectionDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, 1, 100)

	assert.NoError(t, g.AssertAllowed(ctx))
	assert.ErrorIs(t, g.AssertAllowed(ctx), ErrQuotaExceeded)

	u, err := g.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Day)
	assert.Equal(t, 1, u.Month)
}

func TestGuardZeroCeilingDisablesLimit(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, 0, 0)
	for i := 0; i < 50; i++ {
		assert.NoError(t, g.AssertAllowed(ctx))
	}
}

func TestGuardConcurrentAdmission(t *testing.T) {
	ctx := context.Background()
	const ceiling = 10
	g := newTestGuard(t, ceiling, 1000)

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.AssertAllowed(ctx) == nil {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)
	assert.Equal(t, ceiling, len(admitted), "exactly the ceiling should be admitted")
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quota.db")

	s, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	day, month, err := s.Counts(ctx, "2026-03-15", "2026-03")
	require.NoError(t, err)
	assert.Zero(t, day)
	assert.Zero(t, month)

	require.NoError(t, s.Increment(ctx, "2026-03-15", "2026-03"))
	require.NoError(t, s.Increment(ctx, "2026-03-15", "2026-03"))
	require.NoError(t, s.Increment(ctx, "2026-03-16", "2026-03"))

	day, month, err = s.Counts(ctx, "2026-03-15", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, 2, day)
	assert.Equal(t, 3, month)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quota.db")

	s, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Increment(ctx, "2026-03-15", "2026-03"))
	require.NoError(t, s.Close())

	s2, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()
	day, month, err := s2.Counts(ctx, "2026-03-15", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, 1, day)
	assert.Equal(t, 1, month)
}
