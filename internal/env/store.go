// Package env implements the engine's variable namespaces: a
// case-insensitive key/value store with case-preserving name
// materialization, and the local-scope stack driven by tree
// indentation.
package env

import (
	"strings"
	"sync"
)

// entry pairs the case-preserving display form of a name with its
// current value, so that a later consumer (the script header builder)
// can materialize the name as a program identifier.
type entry struct {
	display string
	value   interface{}
}

// Store is a single variable namespace. Keys are canonicalized by
// trimming, collapsing interior whitespace, and case-folding; the
// case-preserving (but still whitespace-collapsed) form is kept
// alongside the value under the same canonical key.
//
// A Store used as the Runner's shared persistent namespace must be
// created with NewSharedStore so concurrent RunInstances serialize
// their reads and writes; per-branch global and per-scope local
// stores are owned by a single instance and use NewStore.
type Store struct {
	mu      sync.RWMutex
	shared  bool
	entries map[string]entry
}

// NewStore creates an unshared namespace, owned by a single goroutine.
func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

// NewSharedStore creates a namespace safe for concurrent access by
// several RunInstances, such as the Runner's persistent store.
func NewSharedStore() *Store {
	s := NewStore()
	s.shared = true
	return s
}

func canonicalKey(name string) string {
	return strings.ToLower(displayKey(name))
}

func displayKey(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Get returns the value bound to name and whether it is set.
func (s *Store) Get(name string) (interface{}, bool) {
	if s.shared {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	e, ok := s.entries[canonicalKey(name)]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set binds name to value, recording both the canonical lookup key
// and the case-preserving display form.
func (s *Store) Set(name string, value interface{}) {
	if s.shared {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	s.entries[canonicalKey(name)] = entry{display: displayKey(name), value: value}
}

// DisplayName returns the case-preserving form a name was last set
// under, for use as a program identifier.
func (s *Store) DisplayName(name string) (string, bool) {
	if s.shared {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	e, ok := s.entries[canonicalKey(name)]
	if !ok {
		return "", false
	}
	return e.display, true
}

// Has reports whether name is currently bound.
func (s *Store) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns the display name and value of every binding in the
// store. Order is unspecified.
func (s *Store) Names() []NamedValue {
	if s.shared {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	out := make([]NamedValue, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, NamedValue{Display: e.display, Value: e.value})
	}
	return out
}

// NamedValue is a display-name/value pair, used to build the
// expression-block header and to copy bindings between frames.
type NamedValue struct {
	Display string
	Value   interface{}
}
