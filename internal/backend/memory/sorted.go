package memory

import (
	"iter"
	"sync"

	"github.com/google/btree"

	"jdbm/internal/backend"
)

const sortedDegree = 32

// item is a key/value pair ordered by key.
type item struct {
	key   string
	value string
}

func lessItem(a, b item) bool { return a.key < b.key }

// Sorted is an in-memory backend on a B-tree. Keys are enumerated in
// ascending order, which makes dumps and shell output stable.
type Sorted struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[item]
}

var _ backend.Backend = (*Sorted)(nil)

// NewSorted creates an empty B-tree backend.
func NewSorted() *Sorted {
	return &Sorted{tree: btree.NewG(sortedDegree, lessItem)}
}

// OpenSorted is the registry factory for the "sorted" variant.
func OpenSorted(backend.Params) (backend.Backend, error) {
	return NewSorted(), nil
}

func (s *Sorted) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.tree.Get(item{key: key})
	if !ok {
		return "", backend.ErrNotFound
	}
	return it.value, nil
}

func (s *Sorted) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(item{key: key, value: value})
	return nil
}

func (s *Sorted) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(item{key: key})
	return nil
}

func (s *Sorted) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Has(item{key: key}), nil
}

func (s *Sorted) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len(), nil
}

// Keys enumerates a copy-on-write clone of the tree, so the caller may
// mutate the backend while ranging.
func (s *Sorted) Keys() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		snap := s.tree.Clone()
		s.mu.Unlock()
		snap.Ascend(func(it item) bool {
			return yield(it.key, nil)
		})
	}
}

func (s *Sorted) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Clear(false)
	return nil
}
