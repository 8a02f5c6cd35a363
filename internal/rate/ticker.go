package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Ticker paces a loop at a fixed period without accumulating drift.
//
// Tick n is due at start + n*period, independent of how late earlier ticks
// were served. The first tick is due immediately. When the consumer falls
// behind, overdue ticks are returned back-to-back until it has caught up;
// each of them is counted as an underrun.
//
// Unlike time.Ticker, nothing runs in the background and no tick is ever
// dropped, so a consumer that draws one batch per tick sends exactly as many
// batches as ticks it waited for.
//
// # Thread Safety
//
// Ticker is safe for concurrent use, although a single pacing loop is the
// expected caller.
//
// # Example
//
//	t := rate.NewTicker(sched.TickPeriod)
//	for {
//	    if err := t.Wait(ctx); err != nil {
//	        return err // Context cancelled
//	    }
//	    // Send one batch
//	}
type Ticker struct {
	period time.Duration
	start  time.Time
	tick   int64 // index of the next tick to hand out
	mu     sync.Mutex

	// Metrics
	totalTicks    atomic.Int64
	underruns     atomic.Int64
	totalWaitTime atomic.Int64 // nanoseconds
}

// NewTicker creates a ticker with the given period. A non-positive period
// falls back to TimerResolution.
func NewTicker(period time.Duration) *Ticker {
	if period <= 0 {
		period = TimerResolution
	}
	return &Ticker{
		period: period,
		start:  time.Now(),
	}
}

// Next returns when the next tick is due and advances the ticker. A time in
// the past means the tick is overdue and should be served immediately.
func (t *Ticker) Next() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	due := t.start.Add(time.Duration(t.tick) * t.period)
	t.tick++
	t.totalTicks.Add(1)

	now := time.Now()
	if wait := due.Sub(now); wait > 0 {
		t.totalWaitTime.Add(int64(wait))
	} else if t.tick > 1 {
		t.underruns.Add(1)
	}

	return due
}

// Wait blocks until the next tick is due.
//
// Returns ctx.Err() if the context is done before the tick, or is already
// done when Wait is called.
func (t *Ticker) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wait := time.Until(t.Next())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stats returns statistics about the ticker's operation.
func (t *Ticker) Stats() TickerStats {
	t.mu.Lock()
	period := t.period
	t.mu.Unlock()

	return TickerStats{
		Period:        period,
		TotalTicks:    t.totalTicks.Load(),
		Underruns:     t.underruns.Load(),
		TotalWaitTime: time.Duration(t.totalWaitTime.Load()),
	}
}

// Reset re-anchors the schedule at now and clears the statistics.
func (t *Ticker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.start = time.Now()
	t.tick = 0
	t.totalTicks.Store(0)
	t.underruns.Store(0)
	t.totalWaitTime.Store(0)
}

// TickerStats contains statistics about a ticker.
type TickerStats struct {
	Period        time.Duration `json:"period"`
	TotalTicks    int64         `json:"totalTicks"`    // Ticks handed out
	Underruns     int64         `json:"underruns"`     // Ticks that were already overdue
	TotalWaitTime time.Duration `json:"totalWaitTime"` // Time callers were told to wait
}
