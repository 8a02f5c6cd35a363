// Package rate converts a requested send rate into a concrete timer schedule
// and paces a loop along it.
//
// # Compensation
//
// Timers cannot reliably fire faster than about once per millisecond. When
// the requested delay between datagrams is shorter than that, the schedule
// sends k datagrams per tick instead, with
//
//	k          = ceil(1ms / delay)
//	tickPeriod = delay * k
//
// so that the average rate over one tick is exactly the requested one.
//
// # Rounding
//
// Converting between delay and datagrams per second uses integer division
// and floors in both directions, so delay -> DPS -> delay is not guaranteed
// to reproduce the original delay: 600us becomes 1666 DPS, which becomes
// 600.24us.
package rate

import (
	"errors"
	"fmt"
	"time"
)

// Timer granularity below which compensation kicks in.
const TimerResolution = time.Millisecond

// ErrNonPositiveRate is returned for a zero delay or zero frequency.
var ErrNonPositiveRate = errors.New("rate must be strictly positive")

// Spec is a requested send rate: either a Delay or a Frequency.
type Spec interface {
	isSpec()
	String() string
}

// Delay is the time between two consecutive datagrams.
type Delay time.Duration

// Frequency is the number of datagrams per second.
type Frequency uint64

func (Delay) isSpec()     {}
func (Frequency) isSpec() {}

func (d Delay) String() string     { return "delay " + time.Duration(d).String() }
func (f Frequency) String() string { return fmt.Sprintf("%d datagrams/s", uint64(f)) }

// DPSFromDelay returns the number of datagrams per second for a delay,
// rounded down.
func DPSFromDelay(delay time.Duration) uint64 {
	if delay <= 0 {
		return 0
	}
	return uint64(time.Second) / uint64(delay)
}

// DelayFromDPS returns the delay between datagrams for a frequency, rounded
// down to the nanosecond.
func DelayFromDPS(dps uint64) time.Duration {
	if dps == 0 {
		return 0
	}
	return time.Duration(uint64(time.Second) / dps)
}

// Timing is a rate expressed both ways.
type Timing struct {
	Delay time.Duration
	DPS   uint64
}

// Resolve fills in the missing half of spec.
func Resolve(spec Spec) (Timing, error) {
	switch s := spec.(type) {
	case Delay:
		if s <= 0 {
			return Timing{}, ErrNonPositiveRate
		}
		d := time.Duration(s)
		return Timing{Delay: d, DPS: DPSFromDelay(d)}, nil
	case Frequency:
		if s == 0 {
			return Timing{}, ErrNonPositiveRate
		}
		d := DelayFromDPS(uint64(s))
		if d == 0 {
			return Timing{}, fmt.Errorf("frequency %d exceeds one datagram per nanosecond", uint64(s))
		}
		return Timing{Delay: d, DPS: uint64(s)}, nil
	case nil:
		return Timing{}, errors.New("no rate specified")
	default:
		return Timing{}, fmt.Errorf("unsupported rate spec %T", spec)
	}
}

// Schedule is the concrete plan a sender follows: one batch of BatchSize
// datagrams every TickPeriod.
type Schedule struct {
	Delay      time.Duration `json:"delay"`
	DPS        uint64        `json:"dps"`
	TickPeriod time.Duration `json:"tickPeriod"`
	BatchSize  int           `json:"batchSize"`
}

// Compensate builds the schedule for a raw delay.
func Compensate(delay time.Duration) Schedule {
	if delay <= 0 {
		return Schedule{}
	}
	if delay >= TimerResolution {
		return Schedule{
			Delay:      delay,
			DPS:        DPSFromDelay(delay),
			TickPeriod: delay,
			BatchSize:  1,
		}
	}

	k := (TimerResolution + delay - 1) / delay
	return Schedule{
		Delay:      delay,
		DPS:        DPSFromDelay(delay),
		TickPeriod: delay * k,
		BatchSize:  int(k),
	}
}

// NewSchedule resolves spec and compensates it.
func NewSchedule(spec Spec) (Schedule, error) {
	t, err := Resolve(spec)
	if err != nil {
		return Schedule{}, err
	}
	s := Compensate(t.Delay)
	// Keep the caller's frequency rather than the floored round trip.
	s.DPS = t.DPS
	return s, nil
}

// Compensated reports whether batching is simulating a delay finer than the
// timer resolution.
func (s Schedule) Compensated() bool {
	return s.BatchSize > 1
}

// Plan splits a total datagram count into whole batches and a trailing
// partial batch.
func (s Schedule) Plan(total uint64) (batches uint64, tail int) {
	if s.BatchSize <= 0 {
		return 0, 0
	}
	size := uint64(s.BatchSize)
	return total / size, int(total % size)
}

// Ticks returns the number of timer ticks needed to send total datagrams.
func (s Schedule) Ticks(total uint64) uint64 {
	batches, tail := s.Plan(total)
	if tail > 0 {
		batches++
	}
	return batches
}

// Duration estimates how long sending total datagrams takes. The first tick
// fires immediately.
func (s Schedule) Duration(total uint64) time.Duration {
	ticks := s.Ticks(total)
	if ticks == 0 {
		return 0
	}
	return time.Duration(ticks-1) * s.TickPeriod
}
