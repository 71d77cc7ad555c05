// Package memory provides in-process backends with no durability.
package memory

import (
	"iter"
	"maps"
	"slices"
	"sync"

	"jdbm/internal/backend"
)

// Store is a map-backed backend. It is the semantic reference for every
// other engine.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ backend.Backend = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// Open is the registry factory for the "memory" variant. Params are ignored.
func Open(backend.Params) (backend.Backend, error) {
	return New(), nil
}

func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", backend.ErrNotFound
	}
	return v, nil
}

func (s *Store) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

// Keys snapshots the key set at call time, so callers may mutate the store
// while ranging.
func (s *Store) Keys() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.RLock()
		keys := slices.Collect(maps.Keys(s.data))
		s.mu.RUnlock()
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Close drops the contents. The store must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
	return nil
}
