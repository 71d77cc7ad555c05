// Package backend defines the capability set a key-value engine must offer
// to sit underneath the journaling store, and a registry that resolves
// engines by name.
package backend

import (
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrUnknownBackend is returned by Registry.Open for an unregistered name.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrPathRequired is returned by persistent engines opened without a path.
	ErrPathRequired = errors.New("backend path required")
	// ErrInvalidKey is returned by ValidateKey for keys an engine cannot store.
	ErrInvalidKey = errors.New("invalid key")
)

// Backend is the narrow key-value capability set used by the journaling
// store. Implementations know nothing about journaling.
//
// Delete of an absent key must succeed: replay relies on it.
type Backend interface {
	Get(key string) (string, error)
	Put(key, value string) error
	Delete(key string) error
	Exists(key string) (bool, error)
	Count() (int, error)
	// Keys yields every present key exactly once, in no particular order.
	// Each call starts a fresh enumeration.
	Keys() iter.Seq2[string, error]
	Close() error
}

// KeyValidator is implemented by engines that restrict keys beyond the
// rules every engine shares.
type KeyValidator interface {
	ValidateKey(key string) error
}

// ValidateKey reports whether b can store key. The empty key is rejected by
// every engine, so all variants accept the same key set for the keys a
// journal can hold.
func ValidateKey(b Backend, key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if v, ok := b.(KeyValidator); ok {
		return v.ValidateKey(key)
	}
	return nil
}

// Params carries engine-specific connection parameters. The registry passes
// them through untouched.
type Params struct {
	Path    string
	Options map[string]string
}

// Option returns Options[name], or def when unset.
func (p Params) Option(name, def string) string {
	if v, ok := p.Options[name]; ok && v != "" {
		return v
	}
	return def
}

// CollectKeys drains a key sequence into a slice.
func CollectKeys(seq iter.Seq2[string, error]) ([]string, error) {
	var keys []string
	for k, err := range seq {
		if err != nil {
			return keys, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
