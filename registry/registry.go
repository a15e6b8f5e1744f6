// Package registry maps string identifiers to factories for one abstract
// capability (turbulence closure, source term, refinement criterion, ...).
//
// A registry is populated once by an explicit startup call, optionally sealed,
// and then only read. Lookups of unknown identifiers never fall back to a
// default; they return an *UnknownVariantError naming every registered entry.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownVariant is matched by every *UnknownVariantError.
var ErrUnknownVariant = errors.New("registry: unknown variant")

// UnknownVariantError reports a lookup of an unregistered identifier.
type UnknownVariantError struct {
	Capability string
	Name       string
	Registered []string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("%s: unknown variant %q (registered: %s)",
		e.Capability, e.Name, strings.Join(e.Registered, ", "))
}

func (e *UnknownVariantError) Is(target error) bool {
	return target == ErrUnknownVariant
}

// Factory builds an owned instance of T from constructor arguments A.
type Factory[T any, A any] func(args A) (T, error)

// Registry is a name -> factory map for one capability.
type Registry[T any, A any] struct {
	capability string

	mu        sync.RWMutex
	factories map[string]Factory[T, A]
	sealed    bool
}

// New creates an empty registry for the named capability.
func New[T any, A any](capability string) *Registry[T, A] {
	return &Registry[T, A]{
		capability: capability,
		factories:  make(map[string]Factory[T, A]),
	}
}

// Capability returns the capability name used in diagnostics.
func (r *Registry[T, A]) Capability() string { return r.capability }

// Register associates name with factory. Duplicate names, empty names, nil
// factories and registration after Seal are programming errors and panic.
func (r *Registry[T, A]) Register(name string, factory Factory[T, A]) {
	if name == "" {
		panic(fmt.Sprintf("%s: cannot register an empty identifier", r.capability))
	}
	if factory == nil {
		panic(fmt.Sprintf("%s: nil factory for %q", r.capability, name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic(fmt.Sprintf("%s: registry sealed, cannot register %q", r.capability, name))
	}
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("%s: duplicate registration of %q", r.capability, name))
	}
	r.factories[name] = factory
}

// Create builds the instance registered under name.
func (r *Registry[T, A]) Create(name string, args A) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, &UnknownVariantError{
			Capability: r.capability,
			Name:       name,
			Registered: r.Names(),
		}
	}
	obj, err := factory(args)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.capability, name, err)
	}
	return obj, nil
}

// Contains reports whether name is registered.
func (r *Registry[T, A]) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered identifiers in sorted order.
func (r *Registry[T, A]) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Seal forbids further registration.
func (r *Registry[T, A]) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry[T, A]) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
