// internal/metrics/ring.go
package metrics

// Ring is a fixed-capacity FIFO buffer. Pushing onto a full ring evicts the oldest element.
// Ring is not safe for concurrent use; owners guard it with their own lock.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing returns an empty ring holding at most capacity elements. Capacity below one is treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting and returning the oldest element when the ring is full.
func (r *Ring[T]) Push(v T) (evicted T, didEvict bool) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return evicted, false
	}
	evicted = r.buf[r.start]
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return evicted, true
}

// Len reports the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}

// UpdateLast replaces the newest element in place.
func (r *Ring[T]) UpdateLast(fn func(*T)) bool {
	if r.size == 0 {
		return false
	}
	fn(&r.buf[(r.start+r.size-1)%len(r.buf)])
	return true
}

// Items returns the contents oldest first in a freshly allocated slice.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
