// Package kv provides a generic thread-safe key-value table.
package kv

import (
	"errors"
	"sync"
)

// ErrMissing is returned by Update when the key is not present.
var ErrMissing = errors.New("kv: key not found")

// Store is a thread-safe generic key-value table. Iteration helpers return
// values in insertion order so callers get stable, creation-ordered listings.
type Store[K comparable, V any] struct {
	mu    sync.RWMutex
	data  map[K]V
	order []K
}

// New creates a new key-value store.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		data: make(map[K]V),
	}
}

// Get retrieves a value by key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

// Set stores a value by key, replacing any existing value.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		s.order = append(s.order, key)
	}
	s.data[key] = value
}

// Update applies fn to the current value for key under the write lock and
// stores the result. fn errors abort the update and are returned unchanged.
func (s *Store[K, V]) Update(key K, fn func(V) (V, error)) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[key]
	if !ok {
		var zero V
		return zero, ErrMissing
	}

	next, err := fn(cur)
	if err != nil {
		var zero V
		return zero, err
	}
	s.data[key] = next
	return next, nil
}

// Delete removes a key from the store.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Filter returns, in insertion order, every value for which keep returns true.
// A nil keep returns all values.
func (s *Store[K, V]) Filter(keep func(V) bool) []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.order))
	for _, k := range s.order {
		v := s.data[k]
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Clear removes all entries from the store.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[K]V)
	s.order = nil
}

// Len returns the number of items in the store.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
