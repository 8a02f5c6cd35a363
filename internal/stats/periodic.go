// Package stats provides the shared counters of a run and the overlay that
// reports on them while the run is in progress.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPeriod is returned by WithPeriodic for a non-positive period.
var ErrInvalidPeriod = errors.New("period must be positive")

// Task is a unit of work that runs until it completes, fails, or its context
// is cancelled.
type Task func(ctx context.Context) error

// TimerError reports that the periodic side of WithPeriodic failed.
type TimerError struct {
	// Value is what the callback panicked with.
	Value any
}

func (e *TimerError) Error() string {
	return fmt.Sprintf("periodic callback failed: %v", e.Value)
}

// Unwrap returns the panic value if it was an error.
func (e *TimerError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// WithPeriodic runs work while calling callback once immediately and then
// once every period.
//
// It returns as soon as work returns or the callback fails. The other side is
// cancelled and waited for, so no goroutine started here outlives the call.
// When work succeeds, callback is invoked one final time after the periodic
// side has stopped; no invocation follows that one. When work fails its error
// is returned as is and the final invocation is skipped. A panic inside
// callback is returned as a *TimerError after work has been cancelled.
func WithPeriodic(ctx context.Context, work Task, period time.Duration, callback func()) error {
	if period <= 0 {
		return ErrInvalidPeriod
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workDone := make(chan error, 1)
	timerDone := make(chan error, 1)

	go func() {
		workDone <- work(ctx)
	}()
	go func() {
		timerDone <- runPeriodic(ctx, period, callback)
	}()

	var err error
	select {
	case err = <-workDone:
		cancel()
		if timerErr := <-timerDone; timerErr != nil && err == nil {
			err = timerErr
		}
	case timerErr := <-timerDone:
		cancel()
		err = <-workDone
		if timerErr != nil {
			// The periodic side only stops on its own by failing.
			return timerErr
		}
	}

	if err != nil {
		return err
	}
	return invoke(callback)
}

// runPeriodic invokes callback immediately and then on every tick until ctx
// is done. It returns nil on cancellation.
func runPeriodic(ctx context.Context, period time.Duration, callback func()) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	// The first invocation does not depend on ctx: work may already be done.
	for {
		if err := invoke(callback); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func invoke(callback func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TimerError{Value: r}
		}
	}()
	callback()
	return nil
}
