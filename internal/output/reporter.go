package output

import (
	"io"
	"sync"
	"time"

	"github.com/wesleyorama2/udpstress/internal/metrics"
)

// SnapshotSource is anything that can report current metrics.
type SnapshotSource interface {
	GetSnapshot() *metrics.Snapshot
}

// Reporter prints one report line per call. It remembers the previous call
// so each line carries the interval delta. Safe for concurrent use.
type Reporter struct {
	w    io.Writer
	f    *Formatter
	role Role
	src  SnapshotSource

	mu        sync.Mutex
	lastCount uint64
	lastBytes uint64
	lastAt    time.Time
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer, f *Formatter, role Role, src SnapshotSource) *Reporter {
	return &Reporter{w: w, f: f, role: role, src: src}
}

// Report prints the current total. It has the signature expected by
// stats.WithPeriodic; a write error panics so the overlay surfaces it.
func (r *Reporter) Report() {
	iv := r.next(r.src.GetSnapshot())
	if _, err := io.WriteString(r.w, r.f.FormatReport(r.role, iv)); err != nil {
		panic(err)
	}
}

func (r *Reporter) next(snap *metrics.Snapshot) Interval {
	r.mu.Lock()
	defer r.mu.Unlock()

	iv := Interval{Total: snap.Datagrams}
	if !r.lastAt.IsZero() {
		iv.Duration = snap.Timestamp.Sub(r.lastAt)
		if snap.Datagrams >= r.lastCount {
			iv.Count = snap.Datagrams - r.lastCount
		}
		if snap.Bytes >= r.lastBytes {
			iv.Bytes = snap.Bytes - r.lastBytes
		}
	}

	r.lastCount = snap.Datagrams
	r.lastBytes = snap.Bytes
	r.lastAt = snap.Timestamp
	return iv
}
