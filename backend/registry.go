// Package backend maps fully-qualified backend names to factory singletons.
//
// Backends register a constructor under a well-known name from an init
// function; the constructor runs at most once, on first lookup. This lets
// out-of-tree backends be selected by name through configuration without the
// resolver knowing about them.
package backend

import (
	stderrors "errors"
	"fmt"
	"sort"
	"sync"

	"github.com/23skdu/arrowmem/allocator"
	"github.com/23skdu/arrowmem/internal/errors"
	"github.com/23skdu/arrowmem/internal/metrics"
)

// ErrBackendResolution is matched by every error returned when a name cannot
// be turned into a usable factory.
var ErrBackendResolution = stderrors.New("backend resolution failed")

type entry[T any] struct {
	ctor  func() T
	once  sync.Once
	value T
	fault string
	// result is the metrics label for a failed construction.
	result string
}

type table[T comparable] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]*entry[T]
}

func newTable[T comparable](kind string) *table[T] {
	return &table[T]{kind: kind, entries: make(map[string]*entry[T])}
}

func (t *table[T]) register(name string, ctor func() T) {
	if name == "" || ctor == nil {
		panic(fmt.Sprintf("backend: invalid %s registration %q", t.kind, name))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.entries[name]; dup {
		panic(fmt.Sprintf("backend: %s %q registered twice", t.kind, name))
	}
	t.entries[name] = &entry[T]{ctor: ctor}
}

func (t *table[T]) lookup(name string) (T, error) {
	var zero T

	t.mu.RLock()
	e, ok := t.entries[name]
	t.mu.RUnlock()
	if !ok {
		metrics.BackendLookupsTotal.WithLabelValues(t.kind, "not_found").Inc()
		return zero, resolutionError(name, "no backend registered under this name")
	}

	e.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				e.fault = fmt.Sprintf("factory constructor failed: %v", r)
				e.result = "panic"
			}
		}()
		e.value = e.ctor()
		if e.value == zero {
			e.fault = "backend exposes no " + t.kind
			e.result = "missing_factory"
		}
	})

	if e.fault != "" {
		metrics.BackendLookupsTotal.WithLabelValues(t.kind, e.result).Inc()
		return zero, resolutionError(name, e.fault)
	}
	metrics.BackendLookupsTotal.WithLabelValues(t.kind, "found").Inc()
	return e.value, nil
}

func (t *table[T]) names() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.entries))
	for name := range t.entries {
		out = append(out, name)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

func resolutionError(name, reason string) error {
	return errors.WrapResolutionError(ErrBackendResolution, "locate",
		fmt.Sprintf("unable to instantiate allocation manager for %s: %s", name, reason)).
		WithContext("name", name)
}

var (
	allocatorFactories = newTable[allocator.Factory]("allocator factory")
	managerFactories   = newTable[allocator.ManagerFactory]("manager factory")
)

// RegisterAllocatorFactory registers the constructor of a root allocator
// factory singleton. It panics on an empty name, a nil constructor or a
// duplicate name.
func RegisterAllocatorFactory(name string, ctor func() allocator.Factory) {
	allocatorFactories.register(name, ctor)
}

// RegisterManagerFactory registers the constructor of a manager factory singleton.
func RegisterManagerFactory(name string, ctor func() allocator.ManagerFactory) {
	managerFactories.register(name, ctor)
}

// AllocatorFactoryByName returns the singleton registered under name.
func AllocatorFactoryByName(name string) (allocator.Factory, error) {
	return allocatorFactories.lookup(name)
}

// ManagerFactoryByName returns the singleton registered under name.
func ManagerFactoryByName(name string) (allocator.ManagerFactory, error) {
	return managerFactories.lookup(name)
}

// AllocatorFactoryNames lists registered allocator factory names.
func AllocatorFactoryNames() []string { return allocatorFactories.names() }

// ManagerFactoryNames lists registered manager factory names.
func ManagerFactoryNames() []string { return managerFactories.names() }
