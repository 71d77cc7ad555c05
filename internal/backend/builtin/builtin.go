// Package builtin wires the shipped backend variants into a registry.
package builtin

import (
	"jdbm/internal/backend"
	"jdbm/internal/backend/bolt"
	"jdbm/internal/backend/memory"
)

// Variant names accepted by Registry().Open.
const (
	Memory = "memory"
	Sorted = "sorted"
	Bolt   = "bolt"
)

// Registry returns a new registry holding every built-in variant.
// Each call returns an independent registry.
func Registry() *backend.Registry {
	r := backend.NewRegistry()
	r.Register(Memory, memory.Open)
	r.Register(Sorted, memory.OpenSorted)
	r.Register(Bolt, bolt.Factory)
	return r
}
