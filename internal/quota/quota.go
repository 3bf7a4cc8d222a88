// Package quota enforces day and month ceilings on remote backend calls.
//
// The Guard is the single admission point for the remote path: a call that
// clears AssertAllowed has already been counted, so a later stream
// interruption does not roll the counter back. Check and increment run
// inside one critical section; two concurrent requests can never both read
// a count below the ceiling and both proceed.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned when either ceiling has been reached.
// It is fatal for the current remote attempt; there is no retry and no
// fallback to the remote backend.
var ErrQuotaExceeded = errors.New("quota exceeded")

const (
	dayKeyFormat   = "2006-01-02"
	monthKeyFormat = "2006-01"
)

// Store persists admitted-call counters keyed by calendar period.
// Missing periods read as zero.
type Store interface {
	Counts(ctx context.Context, dayKey, monthKey string) (day, month int, err error)
	Increment(ctx context.Context, dayKey, monthKey string) error
}

// Usage is a point-in-time snapshot of the counters against their ceilings.
type Usage struct {
	Day          int `json:"day"`
	Month        int `json:"month"`
	DayCeiling   int `json:"day_ceiling"`
	MonthCeiling int `json:"month_ceiling"`
}

// Guard gates remote invocations against the configured ceilings.
// A ceiling of zero or below disables that limit.
type Guard struct {
	mu           sync.Mutex
	store        Store
	dayCeiling   int
	monthCeiling int
	now          func() time.Time
}

func NewGuard(store Store, dayCeiling, monthCeiling int) *Guard {
	return &Guard{
		store:        store,
		dayCeiling:   dayCeiling,
		monthCeiling: monthCeiling,
		now:          time.Now,
	}
}

// AssertAllowed admits or rejects one remote call. On admission both
// counters are incremented and persisted before returning, so the call is
// counted even if it is later interrupted. Must be called strictly before
// any network traffic to the remote backend.
func (g *Guard) AssertAllowed(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	dayKey := now.Format(dayKeyFormat)
	monthKey := now.Format(monthKeyFormat)

	day, month, err := g.store.Counts(ctx, dayKey, monthKey)
	if err != nil {
		return fmt.Errorf("read quota counters: %w", err)
	}
	if g.dayCeiling > 0 && day >= g.dayCeiling {
		return fmt.Errorf("%w: daily limit %d reached", ErrQuotaExceeded, g.dayCeiling)
	}
	if g.monthCeiling > 0 && month >= g.monthCeiling {
		return fmt.Errorf("%w: monthly limit %d reached", ErrQuotaExceeded, g.monthCeiling)
	}
	if err := g.store.Increment(ctx, dayKey, monthKey); err != nil {
		return fmt.Errorf("persist quota counters: %w", err)
	}
	return nil
}

// Snapshot reports current usage without consuming quota.
func (g *Guard) Snapshot(ctx context.Context) (Usage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	day, month, err := g.store.Counts(ctx, now.Format(dayKeyFormat), now.Format(monthKeyFormat))
	if err != nil {
		return Usage{}, err
	}
	return Usage{Day: day, Month: month, DayCeiling: g.dayCeiling, MonthCeiling: g.monthCeiling}, nil
}
