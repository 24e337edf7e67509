// Package middleware implements spec.md §4.7: an ordered interceptor
// stack wrapping the Core Store Adapter, leveled low→high (low = innermost,
// closest to storage). A middleware's Create returns a storeapi.Store that
// may override any subset of the adapter's methods; Go embedding gives the
// "unspecified methods pass through" behavior for free, the way the
// teacher's DBLogger embeds logger.Logger and only adds SQL-specific
// methods (see base/db_logger.go, adapted here as the reference logging
// middleware in logging.go).
package middleware

import (
	"sort"
	"sync"

	"github.com/latticedb/lattice/storeapi"
)

// DefaultLevel is the level a Middleware gets when it doesn't set one.
const DefaultLevel = 10

// Middleware declares one interceptor, per spec.md §4.7: a named, leveled
// factory that wraps the next-lower layer of the stack.
type Middleware struct {
	Stack string // always "dbcore" per spec.md, kept for symmetry with the source's declaration shape
	Name  string
	Level int
	Create func(down storeapi.Store) storeapi.Store
}

func (m Middleware) level() int {
	if m.Level == 0 {
		return DefaultLevel
	}
	return m.Level
}

// Passthrough embeds a storeapi.Store so a concrete middleware can declare
// a struct type that overrides only the methods it cares about and inherit
// the rest, mirroring "create returns a partial core; unspecified methods
// pass through" without the source's dynamic method-table patching.
type Passthrough struct {
	storeapi.Store
}

// TxPassthrough is Passthrough's counterpart for the transaction a
// middleware's overridden Begin returns.
type TxPassthrough struct {
	storeapi.Tx
}

// Stack holds the registered middlewares and composes them into one
// storeapi.Store over a base backend. Registering a middleware with an
// existing name replaces the previous one, per spec.md §4.7.
type Stack struct {
	mu  sync.Mutex
	set map[string]Middleware
}

// NewStack returns an empty Stack.
func NewStack() *Stack {
	return &Stack{set: make(map[string]Middleware)}
}

// Register adds or replaces the middleware under m.Name.
func (s *Stack) Register(m Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set[m.Name] = m
}

// Unregister removes the named middleware, if present.
func (s *Stack) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, name)
}

// Names returns the currently registered middleware names, in no
// particular order.
func (s *Stack) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.set))
	for name := range s.set {
		out = append(out, name)
	}
	return out
}

// Compose folds the registered middlewares ascending by level (lowest
// first) over base, so the lowest-level middleware wraps the backend
// directly and the highest-level middleware ends up outermost —
// intercepting every call first, per spec.md §4.7. Called again on every
// open and on every Register/Unregister while open (the database
// orchestrator is responsible for re-composing and swapping the live
// Store it hands out).
func (s *Stack) Compose(base storeapi.Store) storeapi.Store {
	s.mu.Lock()
	ordered := make([]Middleware, 0, len(s.set))
	for _, m := range s.set {
		ordered = append(ordered, m)
	}
	s.mu.Unlock()

	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].level() < ordered[j].level() })

	out := base
	for _, m := range ordered {
		out = m.Create(out)
	}
	return out
}
