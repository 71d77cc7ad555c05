package journal

import (
	"iter"
	"slices"
	"sync"
)

// Memory is a Journal held in process memory. Nothing survives the process;
// it exists for tests and throwaway stores.
type Memory struct {
	mu      sync.Mutex
	records []Record
	seq     Sequence
	closed  bool
}

var _ Journal = (*Memory)(nil)

// NewMemory returns an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(r Record) (Record, error) {
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Record{}, ErrClosed
	}
	r.Seq = m.seq.Next()
	m.records = append(m.records, r)
	m.seq.SetFloor(r.Seq)
	return r, nil
}

// ReadAll snapshots the records when ranging starts.
func (m *Memory) ReadAll() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			yield(Record{}, ErrClosed)
			return
		}
		snap := slices.Clone(m.records)
		m.mu.Unlock()
		for _, r := range snap {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.records = nil
	m.seq.Reset()
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of records held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
