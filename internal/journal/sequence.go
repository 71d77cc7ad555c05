package journal

import "sync/atomic"

// Sequence numbers journal records. It is monotonic between resets and
// safe for concurrent use.
type Sequence struct {
	counter atomic.Uint64
}

// Next returns the value the next record will carry, without advancing.
func (s *Sequence) Next() uint64 {
	return s.counter.Load() + 1
}

// Current returns the sequence number of the last committed record, or 0.
func (s *Sequence) Current() uint64 {
	return s.counter.Load()
}

// SetFloor ensures the sequence is at least floor. Lower values are ignored.
// Used to commit an append and to resume after reopening a journal.
func (s *Sequence) SetFloor(floor uint64) {
	for {
		current := s.counter.Load()
		if current >= floor {
			return
		}
		if s.counter.CompareAndSwap(current, floor) {
			return
		}
	}
}

// Reset rewinds the sequence to zero. Only Clear calls it.
func (s *Sequence) Reset() {
	s.counter.Store(0)
}
