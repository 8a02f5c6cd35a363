// Package payload builds the sample pool a sender cycles through.
package payload

import (
	"bytes"
	"errors"
)

// DefaultSize is the payload size samples are bloated to when none is given.
const DefaultSize = 420

// ErrNoSamples is returned when a source yields no usable sample.
var ErrNoSamples = errors.New("no samples")

var defaultPhrases = []string{
	"heey", "what's up?", "me too",
	"how was your weekend?", "awesome, dude!",
	"weather sucks", "when is old-wife's summer?",
	"nevermind", "alright, it's late",
	"see you", "bye",
}

// Defaults returns the built-in phrases bloated to size.
func Defaults(size int) [][]byte {
	pool, _ := FromStrings(defaultPhrases, size)
	return pool
}

// FromStrings bloats every non-empty sample to size. Empty strings are
// skipped.
func FromStrings(samples []string, size int) ([][]byte, error) {
	pool := make([][]byte, 0, len(samples))
	for _, s := range samples {
		if s == "" {
			continue
		}
		pool = append(pool, Bloat([]byte(s), size))
	}
	if len(pool) == 0 {
		return nil, ErrNoSamples
	}
	return pool, nil
}

// Bloat repeats sample until it is at least size bytes long. The sample is
// repeated a whole number of times and never truncated, so the result may
// exceed size. Samples already at least size bytes are returned unchanged.
func Bloat(sample []byte, size int) []byte {
	if len(sample) == 0 || len(sample) >= size {
		return sample
	}
	times := (size + len(sample) - 1) / len(sample)
	return bytes.Repeat(sample, times)
}

// Stats summarizes a sample pool.
type Stats struct {
	Samples  int
	MinBytes int
	MaxBytes int
	Total    int
}

// Summarize returns size statistics for pool.
func Summarize(pool [][]byte) Stats {
	var s Stats
	for i, p := range pool {
		n := len(p)
		if i == 0 || n < s.MinBytes {
			s.MinBytes = n
		}
		if n > s.MaxBytes {
			s.MaxBytes = n
		}
		s.Total += n
	}
	s.Samples = len(pool)
	return s
}
