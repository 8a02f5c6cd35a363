// Package batch turns a finite pool of samples into a stream of equal-size
// batches.
//
// The pool is replicated just enough times that its length becomes the least
// common multiple of the pool size and the batch size. One pass over that
// expanded pool therefore yields a whole number of batches, and every
// original sample appears the same number of times in it:
//
//	s := batch.New([]int{1, 2, 3, 4, 5}, 3, false)
//	s.Next() // [1 2 3]
//	s.Next() // [4 5 1]
//	s.Next() // [2 3 4]
//	s.Next() // [5 1 2]
//	s.Next() // [3 4 5]
//	s.Next() // nil, false
package batch

// MaxExpandedLen is the largest expanded pool ExpandedLen accepts.
const MaxExpandedLen = 1 << 22

// Source yields batches until it reports false.
type Source[T any] interface {
	Next() ([]T, bool)
}

// Sampler is a cyclic batch sampler. It is not safe for concurrent use; it
// is owned by the loop that drives it.
type Sampler[T any] struct {
	elements []T
	offset   int
	total    int
	size     int
	loop     bool
}

// New builds a sampler over pool producing batches of size elements.
//
// With loop set the sampler wraps around forever; otherwise it stops after
// one pass over the expanded pool. An empty pool or a non-positive size
// yields a sampler whose first draw already reports end of sequence.
//
// The expanded pool is allocated up front; callers taking pool and size from
// user input check them with ExpandedLen first.
func New[T any](pool []T, size int, loop bool) *Sampler[T] {
	if size <= 0 || len(pool) == 0 {
		return &Sampler[T]{}
	}

	total := lcm(len(pool), size)
	repeat := total / len(pool)

	elements := make([]T, 0, total)
	for i := 0; i < repeat; i++ {
		elements = append(elements, pool...)
	}

	return &Sampler[T]{
		elements: elements,
		total:    total,
		size:     size,
		loop:     loop,
	}
}

// Next returns the next batch. The returned slice aliases the sampler's
// storage but has its capacity clipped, so appending to it never writes
// into the pool.
func (s *Sampler[T]) Next() ([]T, bool) {
	if s.offset >= s.total {
		if !s.loop || s.total == 0 {
			return nil, false
		}
		s.offset = 0
	}

	from, to := s.offset, s.offset+s.size
	s.offset = to
	return s.elements[from:to:to], true
}

// BatchSize returns the number of elements in every batch.
func (s *Sampler[T]) BatchSize() int {
	return s.size
}

// BatchesPerCycle returns how many batches one pass over the expanded pool
// yields.
func (s *Sampler[T]) BatchesPerCycle() int {
	if s.size == 0 {
		return 0
	}
	return s.total / s.size
}

// ExpandedLen returns the length of the pool New builds for poolLen samples
// and batches of size elements. ok is false when that length would exceed
// MaxExpandedLen.
func ExpandedLen(poolLen, size int) (n int, ok bool) {
	if poolLen <= 0 || size <= 0 {
		return 0, true
	}
	q := poolLen / gcd(poolLen, size)
	if q > MaxExpandedLen/size {
		return 0, false
	}
	return q * size, true
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}
