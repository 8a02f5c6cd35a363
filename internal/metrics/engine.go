// Package metrics collects datagram counts, volumes and per-datagram cost for
// one run of a sender or collector.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/udpstress/internal/stats"
)

// Engine collects and aggregates datagram metrics.
//
// The datagram count is a stats.Counter owned by the engine; the periodic
// reporter reads it through Counter while the loop increments it. Costs go
// into an HDR histogram in nanoseconds, and a background emitter closes one
// time bucket per BucketInterval.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters are atomic, the histogram is
// mutex protected, and the emitter runs in its own goroutine.
type Engine struct {
	costHist   *hdrhistogram.Histogram
	costHistMu sync.Mutex

	datagrams stats.Counter
	failed    stats.Counter
	dropped   stats.Counter
	bytes     stats.Counter

	bucketStore *TimeBucketStore

	phase   Phase
	phaseMu sync.RWMutex

	startTime time.Time
	endTime   time.Time
	timeMu    sync.RWMutex

	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once

	config EngineConfig
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
// Zero fields take their default.
func NewEngineWithConfig(config EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if config.BucketInterval <= 0 {
		config.BucketInterval = def.BucketInterval
	}
	if config.MaxBuckets <= 0 {
		config.MaxBuckets = def.MaxBuckets
	}
	if config.HistogramMin <= 0 {
		config.HistogramMin = def.HistogramMin
	}
	if config.HistogramMax <= config.HistogramMin {
		config.HistogramMax = def.HistogramMax
	}
	if config.HistogramSigFigs <= 0 {
		config.HistogramSigFigs = def.HistogramSigFigs
	}

	ctx, cancel := context.WithCancel(context.Background())

	engine := &Engine{
		costHist:      hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		bucketStore:   NewTimeBucketStore(config.MaxBuckets),
		phase:         PhaseInit,
		startTime:     time.Now(),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	engine.emitterWg.Add(1)
	go engine.runEmitter()

	return engine
}

// RecordDatagram records one handled datagram and the time it took.
func (e *Engine) RecordDatagram(cost time.Duration, bytes int) {
	v := int64(cost)
	if v < e.config.HistogramMin {
		v = e.config.HistogramMin
	}
	if v > e.config.HistogramMax {
		v = e.config.HistogramMax
	}

	// RecordValue is not thread-safe
	e.costHistMu.Lock()
	_ = e.costHist.RecordValue(v)
	e.costHistMu.Unlock()

	if bytes < 0 {
		bytes = 0
	}
	e.datagrams.Inc()
	e.bytes.Add(uint64(bytes))
	e.bucketStore.RecordDatagram(uint64(bytes))
}

// RecordFailure records a datagram that could not be sent or received.
func (e *Engine) RecordFailure() {
	e.failed.Inc()
	e.bucketStore.RecordFailure()
}

// RecordDrop records a received datagram that was discarded unprocessed.
func (e *Engine) RecordDrop() {
	e.dropped.Inc()
}

// Counter returns the shared datagram counter.
func (e *Engine) Counter() *stats.Counter {
	return &e.datagrams
}

// Datagrams returns the number of handled datagrams.
func (e *Engine) Datagrams() uint64 {
	return e.datagrams.Load()
}

// SetPhase updates the current phase.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()
	e.phase = phase
}

// GetPhase returns the current phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.phase
}

func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.bucketStore.CreateBucket(
		e.datagrams.Load(), e.failed.Load(), e.dropped.Load(), e.bytes.Load(),
		e.GetCostPercentiles(), e.GetPhase(),
	)
}

// GetCostPercentiles returns current cost percentiles.
func (e *Engine) GetCostPercentiles() CostPercentiles {
	e.costHistMu.Lock()
	defer e.costHistMu.Unlock()

	return CostPercentiles{
		Min: time.Duration(e.costHist.Min()),
		Max: time.Duration(e.costHist.Max()),
		P50: time.Duration(e.costHist.ValueAtQuantile(50)),
		P99: time.Duration(e.costHist.ValueAtQuantile(99)),
	}
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.costHistMu.Lock()
	cost := CostStats{
		Min:    time.Duration(e.costHist.Min()),
		Max:    time.Duration(e.costHist.Max()),
		Mean:   time.Duration(e.costHist.Mean()),
		StdDev: time.Duration(e.costHist.StdDev()),
		P50:    time.Duration(e.costHist.ValueAtQuantile(50)),
		P90:    time.Duration(e.costHist.ValueAtQuantile(90)),
		P99:    time.Duration(e.costHist.ValueAtQuantile(99)),
		Count:  e.costHist.TotalCount(),
	}
	e.costHistMu.Unlock()

	e.timeMu.RLock()
	start, end := e.startTime, e.endTime
	e.timeMu.RUnlock()
	if end.IsZero() {
		end = time.Now()
	}
	elapsed := end.Sub(start)

	datagrams := e.datagrams.Load()
	dps := 0.0
	if elapsed > 0 {
		dps = float64(datagrams) / elapsed.Seconds()
	}
	steady, _ := e.bucketStore.SteadyStateDPS()

	return &Snapshot{
		Datagrams:      datagrams,
		Failed:         e.failed.Load(),
		Dropped:        e.dropped.Load(),
		Bytes:          e.bytes.Load(),
		Cost:           cost,
		DPS:            dps,
		SteadyStateDPS: steady,
		CurrentPhase:   e.GetPhase(),
		Elapsed:        elapsed,
		StartTime:      start,
		Timestamp:      time.Now(),
	}
}

// GetTimeSeries returns all time-series buckets.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.bucketStore.GetBuckets()
}

// Stop stops the emitter, freezes the elapsed time and emits a final bucket.
// Calling Stop more than once has no further effect.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.emitterCancel()
		e.emitterWg.Wait()

		e.timeMu.Lock()
		e.endTime = time.Now()
		e.timeMu.Unlock()

		e.SetPhase(PhaseDone)
		e.emitBucket()
	})
}
