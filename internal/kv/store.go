// Package kv implements the journaling key-value store: every mutation is
// appended to the journal before it reaches the backend, and the backend
// can be rebuilt from the journal at any time.
package kv

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"go.uber.org/multierr"

	"jdbm/internal/backend"
	"jdbm/internal/journal"
	"jdbm/internal/logging"
	"jdbm/internal/metrics"
)

var logger = logging.For("kv")

var (
	// ErrNotFound is returned by Get for absent keys.
	ErrNotFound = backend.ErrNotFound
	// ErrInvalidKey is returned by Put and Delete, before anything is
	// journaled, for keys the backend cannot store.
	ErrInvalidKey = backend.ErrInvalidKey
	// ErrBackend marks a backend failure. When returned from Put or Delete
	// the mutation is already journaled and RestoreFromJournal will apply it.
	ErrBackend = errors.New("backend failure")
	// ErrJournal marks a journal failure. When returned from Put or Delete
	// the backend was not touched.
	ErrJournal = errors.New("journal failure")
)

// Store composes one Backend and one Journal for its whole lifetime.
//
// Mutations hold an exclusive lock across the journal append and the
// backend apply; reads share a lock, so no reader sees a journaled record
// that has not reached the backend yet.
type Store struct {
	mu      sync.RWMutex
	backend backend.Backend
	journal journal.Journal
	metrics *metrics.Metrics
}

// Option customises a Store built with New.
type Option func(*Store)

// WithMetrics records store activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New wraps an already open backend and journal. The Store takes ownership
// of both and closes them in Close.
func New(b backend.Backend, j journal.Journal, opts ...Option) *Store {
	s := &Store{backend: b, journal: j}
	for _, o := range opts {
		o(s)
	}
	s.refreshKeys()
	return s
}

// Put journals a PUT record and then writes the backend.
func (s *Store) Put(key, value string) error {
	if err := backend.ValidateKey(s.backend, key); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.journal.Append(journal.NewPut(key, value)); err != nil {
		s.metrics.ObserveAppendError()
		return fmt.Errorf("%w: put %q: %w", ErrJournal, key, err)
	}
	if err := s.backend.Put(key, value); err != nil {
		s.metrics.ObserveBackendError("put")
		logger.Error("backend put failed after journal append", "key", key, "err", err)
		return fmt.Errorf("%w: put %q: %w", ErrBackend, key, err)
	}
	s.refreshKeys()
	return nil
}

// Delete journals a DELETE record and then removes the key from the
// backend. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if err := backend.ValidateKey(s.backend, key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.journal.Append(journal.NewDelete(key)); err != nil {
		s.metrics.ObserveAppendError()
		return fmt.Errorf("%w: delete %q: %w", ErrJournal, key, err)
	}
	if err := s.backend.Delete(key); err != nil {
		s.metrics.ObserveBackendError("delete")
		logger.Error("backend delete failed after journal append", "key", key, "err", err)
		return fmt.Errorf("%w: delete %q: %w", ErrBackend, key, err)
	}
	s.refreshKeys()
	return nil
}

// Get returns the value for key, or an error wrapping ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := s.backend.Get(key)
	if errors.Is(err, backend.ErrNotFound) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: get %q: %w", ErrBackend, key, err)
	}
	return v, nil
}

// Exists reports whether key is present in the backend.
func (s *Store) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ok, err := s.backend.Exists(key)
	if err != nil {
		return false, fmt.Errorf("%w: exists %q: %w", ErrBackend, key, err)
	}
	return ok, nil
}

// Len returns the number of keys in the backend.
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.backend.Count()
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrBackend, err)
	}
	return n, nil
}

// Keys yields every key present when ranging starts. The key set is read
// under the shared lock and then released, so the loop body may mutate the
// store.
func (s *Store) Keys() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.RLock()
		keys, err := backend.CollectKeys(s.backend.Keys())
		s.mu.RUnlock()
		if err != nil {
			yield("", fmt.Errorf("%w: keys: %w", ErrBackend, err))
			return
		}
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Clear deletes every backend key. With journaling the journal is emptied
// too; without it the journal keeps its history, which simulates a backend
// that lost its data and can be rebuilt with RestoreFromJournal.
//
// The backend is emptied first: if clearing the journal then fails, a
// restore still recovers the old state.
func (s *Store) Clear(journaling bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.clearBackend()
	if err != nil {
		return err
	}
	if journaling {
		if err := s.journal.Clear(); err != nil {
			return fmt.Errorf("%w: clear: %w", ErrJournal, err)
		}
	}
	s.refreshKeys()
	logger.Info("store cleared", "keys", n, "journal_cleared", journaling)
	return nil
}

// RestoreFromJournal rebuilds the backend as the state implied by the
// journal: the backend is emptied and every record is replayed in order.
// The journal itself is left as it is, so restoring twice gives the same
// result as restoring once.
//
// Records whose key this backend cannot store are skipped with a warning.
// Such records can only come from a journal written through another backend.
func (s *Store) RestoreFromJournal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.clearBackend(); err != nil {
		return err
	}
	applied, skipped := 0, 0
	for rec, err := range s.journal.ReadAll() {
		if err != nil {
			return fmt.Errorf("%w: restore stopped after %d records: %w", ErrJournal, applied, err)
		}
		if err := backend.ValidateKey(s.backend, rec.Key); err != nil {
			logger.Warn("skipping journal record the backend cannot store", "seq", rec.Seq, "err", err)
			skipped++
			continue
		}
		if err := s.apply(rec); err != nil {
			return fmt.Errorf("%w: restore record %d: %w", ErrBackend, rec.Seq, err)
		}
		s.metrics.ObserveReplay(rec.Op.String())
		applied++
	}
	s.metrics.ObserveRestore()
	s.refreshKeys()
	logger.Info("restored from journal", "records", applied, "skipped", skipped)
	return nil
}

// DumpJournal writes the journal's records to w, one per line.
func (s *Store) DumpJournal(w io.Writer) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := journal.Dump(w, s.journal)
	if err != nil {
		return n, fmt.Errorf("%w: dump: %w", ErrJournal, err)
	}
	return n, nil
}

// Journal returns the store's journal for inspection. Callers must not
// mutate it.
func (s *Store) Journal() journal.Journal {
	return s.journal
}

// Close releases the journal and the backend. Both are closed even if one
// fails.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return multierr.Combine(s.journal.Close(), s.backend.Close())
}

func (s *Store) apply(rec journal.Record) error {
	switch rec.Op {
	case journal.OpPut:
		return s.backend.Put(rec.Key, rec.Value)
	case journal.OpDelete:
		return s.backend.Delete(rec.Key)
	default:
		return fmt.Errorf("%w: %s", journal.ErrInvalidRecord, rec.Op)
	}
}

// clearBackend deletes every key; the key set is snapshotted first.
// Caller holds s.mu.
func (s *Store) clearBackend() (int, error) {
	keys, err := backend.CollectKeys(s.backend.Keys())
	if err != nil {
		return 0, fmt.Errorf("%w: listing keys: %w", ErrBackend, err)
	}
	for _, k := range keys {
		if err := s.backend.Delete(k); err != nil {
			s.metrics.ObserveBackendError("delete")
			return 0, fmt.Errorf("%w: delete %q: %w", ErrBackend, k, err)
		}
	}
	return len(keys), nil
}

// refreshKeys updates the key gauge. Counting can be linear in the backend
// size, so it only runs when metrics are on.
func (s *Store) refreshKeys() {
	if s.metrics == nil {
		return
	}
	n, err := s.backend.Count()
	if err != nil {
		logger.Warn("counting keys for metrics", "err", err)
		return
	}
	s.metrics.SetKeys(n)
}
