package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimeBucketStore stores time-bucketed metrics in a ring buffer.
//
// Buckets are emitted even when no datagram was handled during the interval,
// so the series has no gaps. Once the buffer is full the oldest bucket is
// overwritten.
type TimeBucketStore struct {
	buckets    []*TimeBucket
	head       int // Next write position
	count      int
	maxBuckets int
	mu         sync.RWMutex

	lastBucketTime time.Time

	// Current interval accumulator (lock-free updates)
	currentDatagrams atomic.Uint64
	currentFailed    atomic.Uint64
	currentBytes     atomic.Uint64
}

// NewTimeBucketStore creates a store retaining at most maxBuckets buckets.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600 // One hour of 1s buckets
	}

	return &TimeBucketStore{
		buckets:        make([]*TimeBucket, maxBuckets),
		maxBuckets:     maxBuckets,
		lastBucketTime: time.Now(),
	}
}

// RecordDatagram adds one handled datagram to the current interval.
func (tbs *TimeBucketStore) RecordDatagram(bytes uint64) {
	tbs.currentDatagrams.Add(1)
	tbs.currentBytes.Add(bytes)
}

// RecordFailure adds one failed datagram to the current interval.
func (tbs *TimeBucketStore) RecordFailure() {
	tbs.currentFailed.Add(1)
}

// CreateBucket closes the current interval and appends it as a bucket.
func (tbs *TimeBucketStore) CreateBucket(
	totalDatagrams, totalFailed, totalDropped, totalBytes uint64,
	costs CostPercentiles,
	phase Phase,
) *TimeBucket {
	tbs.mu.Lock()
	defer tbs.mu.Unlock()

	now := time.Now()

	intervalDatagrams := tbs.currentDatagrams.Swap(0)
	intervalFailed := tbs.currentFailed.Swap(0)
	intervalBytes := tbs.currentBytes.Swap(0)

	intervalDuration := now.Sub(tbs.lastBucketTime).Seconds()
	if intervalDuration <= 0 {
		intervalDuration = 1.0
	}

	bucket := &TimeBucket{
		Timestamp:         now,
		TotalDatagrams:    totalDatagrams,
		TotalFailed:       totalFailed,
		TotalDropped:      totalDropped,
		TotalBytes:        totalBytes,
		IntervalDatagrams: intervalDatagrams,
		IntervalFailed:    intervalFailed,
		IntervalBytes:     intervalBytes,
		IntervalDPS:       float64(intervalDatagrams) / intervalDuration,
		CostMin:           costs.Min,
		CostMax:           costs.Max,
		CostP50:           costs.P50,
		CostP99:           costs.P99,
		Phase:             phase,
	}

	tbs.buckets[tbs.head] = bucket
	tbs.head = (tbs.head + 1) % tbs.maxBuckets
	if tbs.count < tbs.maxBuckets {
		tbs.count++
	}

	tbs.lastBucketTime = now

	return bucket
}

// GetBuckets returns all buckets in chronological order.
func (tbs *TimeBucketStore) GetBuckets() []*TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, tbs.count)

	if tbs.count < tbs.maxBuckets {
		copy(result, tbs.buckets[:tbs.count])
	} else {
		// Buffer is full, oldest bucket sits at head
		for i := 0; i < tbs.count; i++ {
			result[i] = tbs.buckets[(tbs.head+i)%tbs.maxBuckets]
		}
	}

	return result
}

// SteadyStateDPS averages the interval rate over the running-phase buckets.
// It returns the average and the number of buckets it was computed from.
func (tbs *TimeBucketStore) SteadyStateDPS() (float64, int) {
	var sum float64
	n := 0
	for _, b := range tbs.GetBuckets() {
		if b.Phase != PhaseRunning {
			continue
		}
		sum += b.IntervalDPS
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
