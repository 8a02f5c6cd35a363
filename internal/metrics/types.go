package metrics

import "time"

// Phase represents a phase of a run.
type Phase string

const (
	// PhaseInit is before the first datagram is handled
	PhaseInit Phase = "init"

	// PhaseRunning is while datagrams are being sent or received
	PhaseRunning Phase = "running"

	// PhaseDone indicates the run has completed
	PhaseDone Phase = "done"
)

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	// Datagrams is the number of datagrams handled: sent for a sender,
	// processed for a collector.
	Datagrams uint64 `json:"datagrams"`

	// Failed is the number of datagrams whose send or receive failed
	Failed uint64 `json:"failed"`

	// Dropped is the number of datagrams received but discarded because the
	// worker queue was full
	Dropped uint64 `json:"dropped"`

	// Bytes is the total payload volume of handled datagrams
	Bytes uint64 `json:"bytes"`

	// Cost contains statistics of the time spent per datagram
	Cost CostStats `json:"cost"`

	// DPS is the achieved datagrams per second
	DPS float64 `json:"dps"`

	// SteadyStateDPS is the average over full buckets of the running phase
	SteadyStateDPS float64 `json:"steadyStateDps"`

	// CurrentPhase is the current phase of the run
	CurrentPhase Phase `json:"currentPhase"`

	// Elapsed is the time elapsed since the engine started
	Elapsed time.Duration `json:"elapsed"`

	StartTime time.Time `json:"startTime"`
	Timestamp time.Time `json:"timestamp"`
}

// CostStats contains per-datagram cost statistics.
type CostStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// CostPercentiles holds the cost percentiles copied into each bucket.
type CostPercentiles struct {
	Min time.Duration
	Max time.Duration
	P50 time.Duration
	P99 time.Duration
}

// TimeBucket represents metrics for one bucket interval.
//
// Each bucket carries cumulative totals as well as the deltas of its own
// interval.
type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`

	// Cumulative counters
	TotalDatagrams uint64 `json:"totalDatagrams"`
	TotalFailed    uint64 `json:"totalFailed"`
	TotalDropped   uint64 `json:"totalDropped"`
	TotalBytes     uint64 `json:"totalBytes"`

	// Interval metrics
	IntervalDatagrams uint64  `json:"intervalDatagrams"`
	IntervalFailed    uint64  `json:"intervalFailed"`
	IntervalBytes     uint64  `json:"intervalBytes"`
	IntervalDPS       float64 `json:"intervalDps"`

	CostMin time.Duration `json:"costMin"`
	CostMax time.Duration `json:"costMax"`
	CostP50 time.Duration `json:"costP50"`
	CostP99 time.Duration `json:"costP99"`

	Phase Phase `json:"phase"`
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// BucketInterval is the interval for time-series buckets (default: 1s)
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int

	// HistogramMin is the minimum recordable cost in nanoseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable cost in nanoseconds (default: 10s)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     int64(10 * time.Second),
		HistogramSigFigs: 3,
	}
}
