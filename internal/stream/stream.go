// Package stream holds the small stateful operators the pipeline and the row
// bridge are built from. None of the operators are safe for concurrent use on
// their own; callers hold their own lock. Broadcaster is the exception.
package stream

// Distinct remembers every key it has seen. It never forgets.
type Distinct[K comparable] struct {
	seen map[K]struct{}
}

// NewDistinct returns an empty Distinct.
func NewDistinct[K comparable]() *Distinct[K] {
	return &Distinct[K]{seen: make(map[K]struct{})}
}

// First reports whether k is new and records it.
func (d *Distinct[K]) First(k K) bool {
	if _, ok := d.seen[k]; ok {
		return false
	}
	d.seen[k] = struct{}{}
	return true
}

// Len returns the number of distinct keys seen.
func (d *Distinct[K]) Len() int {
	return len(d.seen)
}

// Changed suppresses consecutive duplicates.
type Changed[T comparable] struct {
	last T
	set  bool
}

// Next reports whether v differs from the previous value and records it.
func (c *Changed[T]) Next(v T) bool {
	if c.set && c.last == v {
		return false
	}
	c.last = v
	c.set = true
	return true
}

// Last returns the most recent value, if any.
func (c *Changed[T]) Last() (T, bool) {
	return c.last, c.set
}

// Pairwise pairs each value with its predecessor. The first value has none.
type Pairwise[T any] struct {
	prev T
	has  bool
}

// Next records v and returns the value it replaces. ok is false for the very
// first value.
func (p *Pairwise[T]) Next(v T) (prev T, ok bool) {
	prev, ok = p.prev, p.has
	p.prev = v
	p.has = true
	return prev, ok
}
