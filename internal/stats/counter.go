package stats

import "sync/atomic"

// Counter is a monotonically increasing count shared between a work loop and
// the goroutine reporting on it. The zero value is ready to use.
type Counter struct {
	v atomic.Uint64
}

// Inc adds one and returns the new value.
func (c *Counter) Inc() uint64 {
	return c.v.Add(1)
}

// Add adds n and returns the new value.
func (c *Counter) Add(n uint64) uint64 {
	return c.v.Add(n)
}

// Load returns the current value without resetting it.
func (c *Counter) Load() uint64 {
	return c.v.Load()
}
