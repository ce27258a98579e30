// Package safeset provides a thread-safe generic set. The task group uses it
// to keep the names of background tasks that are still running.
package safeset

import "sync"

// SafeSet is a thread-safe set of comparable values.
type SafeSet[T comparable] struct {
	mu sync.RWMutex
	m  map[T]struct{}
}

// NewSafeSet creates an empty SafeSet.
func NewSafeSet[T comparable]() *SafeSet[T] {
	return &SafeSet[T]{m: make(map[T]struct{})}
}

// Add inserts value. It reports whether the value was newly added.
func (s *SafeSet[T]) Add(value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[value]; ok {
		return false
	}

	s.m[value] = struct{}{}
	return true
}

// Remove deletes value from the set.
func (s *SafeSet[T]) Remove(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, value)
}

// Values returns a snapshot of the elements in unspecified order.
func (s *SafeSet[T]) Values() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]T, 0, len(s.m))
	for k := range s.m {
		values = append(values, k)
	}

	return values
}
