package contracts

import (
	"context"
	"time"
)

// TimerSleeper is the production Sleeper. It waits on a timer and returns
// early when the context is canceled.
type TimerSleeper struct{}

// Sleep blocks for d or until ctx is done, whichever comes first.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// NopSleeper skips all waits. Used in tests to keep retry loops fast.
type NopSleeper struct{}

// Sleep returns immediately.
func (NopSleeper) Sleep(context.Context, time.Duration) {}
