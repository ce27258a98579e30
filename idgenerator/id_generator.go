// Package idgenerator hands out monotonically increasing numeric identifiers.
// The acceptor uses it to number client sessions.
package idgenerator

import "sync/atomic"

// Unsigned is the set of identifier types an IdGenerator can produce.
type Unsigned interface {
	~uint32 | ~uint64
}

// IdGenerator generates increasing IDs of type T in a concurrency-safe
// manner. The first call to Id returns start+1 so that the zero value can
// be reserved to mean "unassigned". IDs wrap around at the maximum of T.
type IdGenerator[T Unsigned] struct {
	id atomic.Uint64
}

// NewIdGenerator creates an IdGenerator whose first Id is start+1.
//
// Parameters:
//   - start: The value to initialize the counter to
//
// Returns:
//   - A new IdGenerator instance
func NewIdGenerator[T Unsigned](start T) *IdGenerator[T] {
	gen := &IdGenerator[T]{}
	gen.id.Store(uint64(start))
	return gen
}

// Id returns the next ID. It is safe for concurrent use.
func (g *IdGenerator[T]) Id() T {
	return T(g.id.Add(1))
}
