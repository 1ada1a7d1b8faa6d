package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownVariable is matched by every UnknownVariableError.
var ErrUnknownVariable = errors.New("unknown variable")

// UnknownVariableError reports one or more keys that were referenced before
// anything was stored under them.
type UnknownVariableError struct {
	Keys []string
}

func (e *UnknownVariableError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("unknown variable %q", e.Keys[0])
	}
	quoted := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	return "unknown variables " + strings.Join(quoted, ", ")
}

func (e *UnknownVariableError) Is(target error) bool {
	return target == ErrUnknownVariable
}

// Store is a key/value table shared by all specs of a suite run.
type Store struct {
	mu   sync.RWMutex
	vars map[string]any
}

func New() *Store {
	return &Store{
		vars: make(map[string]any),
	}
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[key] = value
}

// SetAll stores every entry of values.
func (s *Store) SetAll(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.vars[k] = v
	}
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return nil, &UnknownVariableError{Keys: []string{key}}
	}
	return v, nil
}

func (s *Store) Lookup(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[key]
	return v, ok
}

func (s *Store) Has(key string) bool {
	_, ok := s.Lookup(key)
	return ok
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vars, key)
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.vars))
	for k := range s.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the table.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}
