// Package journal implements the durable, append-only mutation log that the
// journaling store writes before touching its backend.
//
// A journal is a sequence of records in append order. It can be appended
// to, read back from the start any number of times, and truncated to empty
// atomically. It is never rewritten in place.
package journal

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"jdbm/internal/logging"
)

var logger = logging.For("journal")

// Journal is the log the store writes ahead of the backend.
type Journal interface {
	// Append stores r as the new last record and returns it with its
	// sequence number set. The record is durable when Append returns nil.
	Append(r Record) (Record, error)
	// ReadAll yields every stored record in append order. Each range over
	// the returned sequence starts again from the first record.
	// A decoding failure is yielded as an error wrapping ErrCorrupt and
	// ends the sequence.
	ReadAll() iter.Seq2[Record, error]
	// Clear truncates the journal to empty. Either the whole log is gone
	// or an error is returned and the log is unchanged.
	Clear() error
	Close() error
}

// SyncMode controls whether appends are fsynced.
type SyncMode string

const (
	SyncAlways SyncMode = "always" // fsync after every append
	SyncNone   SyncMode = "none"   // leave flushing to the OS; benchmarks and tests only
)

// ParseSyncMode maps a config string to a SyncMode. Empty means always.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SyncAlways:
		return SyncAlways, nil
	case SyncNone:
		return SyncNone, nil
	default:
		return "", fmt.Errorf("unknown journal sync mode %q", s)
	}
}

// Collect drains a journal into a slice. Intended for tests and tooling;
// restore consumes ReadAll lazily.
func Collect(j Journal) ([]Record, error) {
	var out []Record
	for r, err := range j.ReadAll() {
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Dump writes one line per record to w and returns the number of records.
func Dump(w io.Writer, j Journal) (int, error) {
	n := 0
	for r, err := range j.ReadAll() {
		if err != nil {
			return n, err
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\n", r.Seq, r); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
