package batch

// Bounded truncates another source to a fixed number of batches, optionally
// followed by one shorter tail batch.
type Bounded[T any] struct {
	src       Source[T]
	remaining uint64
	tail      int
}

// Take bounds src to at most n batches.
func Take[T any](src Source[T], n uint64) *Bounded[T] {
	return &Bounded[T]{src: src, remaining: n}
}

// TakeWithTail bounds src to n full batches and then one batch cut down to
// tail elements. A non-positive tail means no tail batch.
func TakeWithTail[T any](src Source[T], n uint64, tail int) *Bounded[T] {
	b := Take(src, n)
	if tail > 0 {
		b.tail = tail
	}
	return b
}

// Next implements Source.
func (b *Bounded[T]) Next() ([]T, bool) {
	if b.remaining > 0 {
		batch, ok := b.src.Next()
		if !ok {
			b.remaining, b.tail = 0, 0
			return nil, false
		}
		b.remaining--
		return batch, true
	}

	if b.tail > 0 {
		batch, ok := b.src.Next()
		tail := b.tail
		b.tail = 0
		if !ok {
			return nil, false
		}
		if tail < len(batch) {
			batch = batch[:tail:tail]
		}
		return batch, true
	}

	return nil, false
}
