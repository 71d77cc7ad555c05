package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"jdbm/internal/backend"
	"jdbm/internal/backend/builtin"
	"jdbm/internal/journal"
	"jdbm/internal/metrics"
)

// ErrNoJournalPath is returned by Open when neither a journal path nor a
// backend path to derive one from is given.
var ErrNoJournalPath = errors.New("journal path or backend path required")

// JournalSuffix is appended to Options.Path when JournalPath is empty.
const JournalSuffix = ".journal"

// Options selects and configures the backend and journal for Open.
// Path and BackendOptions are passed to the backend untouched.
type Options struct {
	Backend        string // variant name; defaults to "memory"
	Path           string
	BackendOptions map[string]string

	JournalPath string
	Codec       journal.Codec
	SyncMode    journal.SyncMode
	// Makedirs creates the parent directories of Path and JournalPath.
	Makedirs bool

	// Registry resolves Backend; nil means the built-in variants.
	Registry *backend.Registry
	Metrics  *metrics.Metrics
}

// ResolvedJournalPath returns JournalPath, or Path plus JournalSuffix.
func (o Options) ResolvedJournalPath() (string, error) {
	if o.JournalPath != "" {
		return o.JournalPath, nil
	}
	if o.Path != "" {
		return o.Path + JournalSuffix, nil
	}
	return "", ErrNoJournalPath
}

// Open opens the configured backend and the file journal and returns a
// Store owning both. Nothing stays open if Open fails.
//
// Open does not restore: a persistent backend already holds its state, and
// callers of a volatile backend decide when to call RestoreFromJournal.
func Open(o Options) (*Store, error) {
	jpath, err := o.ResolvedJournalPath()
	if err != nil {
		return nil, err
	}
	reg := o.Registry
	if reg == nil {
		reg = builtin.Registry()
	}
	name := o.Backend
	if name == "" {
		name = builtin.Memory
	}

	if o.Makedirs && o.Path != "" {
		if err := os.MkdirAll(filepath.Dir(o.Path), 0755); err != nil {
			return nil, fmt.Errorf("creating backend directory: %w", err)
		}
	}
	b, err := reg.Open(name, backend.Params{Path: o.Path, Options: o.BackendOptions})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	j, err := journal.Open(jpath, journal.Options{
		Codec:    o.Codec,
		SyncMode: o.SyncMode,
		Makedirs: o.Makedirs,
		Metrics:  o.Metrics,
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("%w: %w", ErrJournal, err), b.Close())
	}

	logger.Info("store opened", "backend", name, "path", o.Path, "journal", jpath)
	return New(b, j, WithMetrics(o.Metrics)), nil
}
