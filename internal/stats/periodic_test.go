package stats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithPeriodic_FinalInvocation(t *testing.T) {
	var calls atomic.Int64
	thirdFiring := make(chan struct{})
	var once sync.Once

	// Firings at 0, 20ms and 40ms; work returns right after the third one,
	// well before the next tick is due.
	callback := func() {
		if calls.Add(1) == 3 {
			once.Do(func() { close(thirdFiring) })
		}
	}

	work := func(ctx context.Context) error {
		<-thirdFiring
		return nil
	}

	if err := WithPeriodic(context.Background(), work, 20*time.Millisecond, callback); err != nil {
		t.Fatalf("WithPeriodic() error = %v", err)
	}

	final := calls.Load()
	if final != 4 {
		t.Errorf("calls = %d, want 3 periodic firings + 1", final)
	}

	time.Sleep(50 * time.Millisecond)
	if calls.Load() != final {
		t.Errorf("callback invoked %d more times after return", calls.Load()-final)
	}
}

func TestWithPeriodic_CounterAfterThreePeriods(t *testing.T) {
	var c Counter
	period := 10 * time.Millisecond

	work := func(ctx context.Context) error {
		time.Sleep(3*period + period/2)
		return nil
	}

	start := time.Now()
	if err := WithPeriodic(context.Background(), work, period, func() { c.Inc() }); err != nil {
		t.Fatalf("WithPeriodic() error = %v", err)
	}
	elapsed := time.Since(start)

	// Immediate firing, three periodic ones, then the final call.
	if got := c.Load(); got < 4 || got > 6 {
		t.Errorf("counter = %d, want about 5", got)
	}
	if elapsed > 3*period+period/2+20*time.Millisecond {
		t.Errorf("WithPeriodic() took %v, should finish with the primary task", elapsed)
	}
}

func TestWithPeriodic_ImmediateFiring(t *testing.T) {
	var c Counter
	fired := make(chan struct{})

	work := func(ctx context.Context) error {
		<-fired
		return nil
	}

	var once sync.Once
	err := WithPeriodic(context.Background(), work, time.Hour, func() {
		c.Inc()
		once.Do(func() { close(fired) })
	})
	if err != nil {
		t.Fatalf("WithPeriodic() error = %v", err)
	}
	if got := c.Load(); got != 2 {
		t.Errorf("counter = %d, want 2 (immediate + final)", got)
	}
}

func TestWithPeriodic_ImmediateFiringWhenWorkReturnsAtOnce(t *testing.T) {
	work := func(ctx context.Context) error { return nil }

	for i := 0; i < 5000; i++ {
		var c Counter
		if err := WithPeriodic(context.Background(), work, time.Hour, func() { c.Inc() }); err != nil {
			t.Fatalf("run %d: WithPeriodic() error = %v", i, err)
		}
		if got := c.Load(); got != 2 {
			t.Fatalf("run %d: counter = %d, want 2 (immediate + final)", i, got)
		}
	}
}

func TestWithPeriodic_WorkError(t *testing.T) {
	boom := errors.New("boom")
	var c Counter

	work := func(ctx context.Context) error {
		time.Sleep(15 * time.Millisecond)
		return boom
	}

	err := WithPeriodic(context.Background(), work, 5*time.Millisecond, func() { c.Inc() })
	if !errors.Is(err, boom) {
		t.Fatalf("WithPeriodic() error = %v, want %v", err, boom)
	}

	after := c.Load()
	time.Sleep(20 * time.Millisecond)
	if c.Load() != after {
		t.Errorf("callback kept firing after failure")
	}
}

func TestWithPeriodic_CallbackPanicCancelsWork(t *testing.T) {
	var calls atomic.Int64
	cancelled := make(chan struct{})

	work := func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}

	callback := func() {
		if calls.Add(1) == 2 {
			panic("clock error")
		}
	}

	err := WithPeriodic(context.Background(), work, 5*time.Millisecond, callback)

	var timerErr *TimerError
	if !errors.As(err, &timerErr) {
		t.Fatalf("WithPeriodic() error = %v, want *TimerError", err)
	}
	if timerErr.Value != "clock error" {
		t.Errorf("TimerError.Value = %v", timerErr.Value)
	}

	select {
	case <-cancelled:
	default:
		t.Error("work was not cancelled and joined before return")
	}
}

func TestWithPeriodic_PanicWithError(t *testing.T) {
	cause := errors.New("cause")
	work := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}

	err := WithPeriodic(context.Background(), work, time.Millisecond, func() { panic(cause) })
	if !errors.Is(err, cause) {
		t.Errorf("WithPeriodic() error = %v, want to wrap %v", err, cause)
	}
}

func TestWithPeriodic_FinalCallbackPanic(t *testing.T) {
	var calls atomic.Int64
	firstFiring := make(chan struct{})

	work := func(ctx context.Context) error {
		<-firstFiring
		return nil
	}

	err := WithPeriodic(context.Background(), work, time.Hour, func() {
		if calls.Add(1) == 1 {
			close(firstFiring)
			return
		}
		panic("final")
	})

	var timerErr *TimerError
	if !errors.As(err, &timerErr) {
		t.Errorf("WithPeriodic() error = %v, want *TimerError", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestWithPeriodic_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	work := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := WithPeriodic(ctx, work, time.Millisecond, func() {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithPeriodic() error = %v, want context.Canceled", err)
	}
}

func TestWithPeriodic_ParentCancelWorkSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var c Counter

	work := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := WithPeriodic(ctx, work, time.Hour, func() { c.Inc() }); err != nil {
		t.Fatalf("WithPeriodic() error = %v", err)
	}
	if got := c.Load(); got != 2 {
		t.Errorf("counter = %d, want 2 (immediate + final)", got)
	}
}

func TestWithPeriodic_InvalidPeriod(t *testing.T) {
	work := func(ctx context.Context) error {
		t.Error("work should not run")
		return nil
	}

	for _, p := range []time.Duration{0, -time.Second} {
		if err := WithPeriodic(context.Background(), work, p, func() {}); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("WithPeriodic(period=%v) error = %v, want ErrInvalidPeriod", p, err)
		}
	}
}

func TestCounter(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	if got := c.Load(); got != 8000 {
		t.Errorf("Load() = %d, want 8000", got)
	}
	if got := c.Add(5); got != 8005 {
		t.Errorf("Add(5) = %d, want 8005", got)
	}
}
