package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt reports a journal that cannot be decoded. Recovery must stop
	// rather than replay past it.
	ErrCorrupt = errors.New("journal corrupt")
	// ErrClosed is returned by operations on a closed journal.
	ErrClosed = errors.New("journal closed")
	// ErrInvalidRecord is returned by Append for records that break the
	// PUT-has-value / DELETE-has-none rule.
	ErrInvalidRecord = errors.New("invalid journal record")
)

// Op is the mutation a record describes.
type Op uint8

const (
	OpPut    Op = 1
	OpDelete Op = 2
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Record is one logged mutation. Seq is assigned by the journal on append
// and is strictly increasing within one journal generation.
type Record struct {
	Seq      uint64
	Op       Op
	Key      string
	Value    string
	HasValue bool
}

// NewPut returns a PUT record.
func NewPut(key, value string) Record {
	return Record{Op: OpPut, Key: key, Value: value, HasValue: true}
}

// NewDelete returns a DELETE record.
func NewDelete(key string) Record {
	return Record{Op: OpDelete, Key: key}
}

// Validate checks the value-presence invariant.
func (r Record) Validate() error {
	switch r.Op {
	case OpPut:
		if !r.HasValue {
			return fmt.Errorf("%w: put %q without value", ErrInvalidRecord, r.Key)
		}
	case OpDelete:
		if r.HasValue || r.Value != "" {
			return fmt.Errorf("%w: delete %q with value", ErrInvalidRecord, r.Key)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidRecord, r.Op)
	}
	return nil
}

// String renders the record the way the journal dump prints it:
// "+ key value" for puts and "- key" for deletes.
func (r Record) String() string {
	if r.Op == OpDelete {
		return fmt.Sprintf("- %q", r.Key)
	}
	return fmt.Sprintf("+ %q %q", r.Key, r.Value)
}
