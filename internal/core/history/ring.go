// Package history provides the bounded append-only buffers the pipeline
// components use for their histories.
package history

// Ring keeps the most recent entries up to a fixed capacity, dropping the
// oldest first. It is not safe for concurrent use; owners guard it.
type Ring[T any] struct {
	capacity int
	items    []T
}

// NewRing creates a ring with the given capacity (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		capacity: capacity,
		items:    make([]T, 0, capacity),
	}
}

// Push appends an entry, evicting the oldest when full.
func (r *Ring[T]) Push(v T) {
	if len(r.items) >= r.capacity {
		// Shift elements left, drop oldest
		copy(r.items, r.items[1:])
		r.items[len(r.items)-1] = v
		return
	}
	r.items = append(r.items, v)
}

// Items returns a copy of the entries, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns a copy of the newest n entries, oldest first.
func (r *Ring[T]) Last(n int) []T {
	if n > len(r.items) {
		n = len(r.items)
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, r.items[len(r.items)-n:])
	return out
}

// Newest returns the most recent entry.
func (r *Ring[T]) Newest() (T, bool) {
	var zero T
	if len(r.items) == 0 {
		return zero, false
	}
	return r.items[len(r.items)-1], true
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int { return len(r.items) }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return r.capacity }

// Reset clears all entries.
func (r *Ring[T]) Reset() {
	r.items = r.items[:0]
}
