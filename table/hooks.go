package table

import (
	"sync"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/storeapi"
)

// CreatingHook runs before a record is written for the first time. key is
// nil when the primary key is not yet known (auto-increment, assigned by
// the backend during the mutate call).
type CreatingHook func(key *keyrange.Key, obj storeapi.Record) error

// ReadingHook may transform a record on its way out of the store. It
// receives the original object and returns a replacement, or (nil, false)
// to leave it unchanged.
type ReadingHook func(obj storeapi.Record) (storeapi.Record, bool)

// UpdatingHook runs before an existing record is modified.
type UpdatingHook func(changes storeapi.Record, key keyrange.Key, obj storeapi.Record) error

// DeletingHook runs before a record is removed.
type DeletingHook func(key keyrange.Key, obj storeapi.Record) error

// Hooks is one table's mutable handler registries, per spec.md §5 "Hooks":
// a small vector of function values per hook kind, run in registration
// order. A thrown (returned non-nil error) handler aborts the operation
// and skips subsequent handlers in the same registry. Shared across every
// Table instance bound to this table name, regardless of which
// transaction created that instance — registering a handler is a
// table-level, not a transaction-level, act.
type Hooks struct {
	mu       sync.Mutex
	creating []CreatingHook
	reading  []ReadingHook
	updating []UpdatingHook
	deleting []DeletingHook
}

// NewHooks returns an empty registry set.
func NewHooks() *Hooks { return &Hooks{} }

func (h *Hooks) OnCreating(fn CreatingHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.creating = append(h.creating, fn)
}

func (h *Hooks) OnReading(fn ReadingHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reading = append(h.reading, fn)
}

func (h *Hooks) OnUpdating(fn UpdatingHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updating = append(h.updating, fn)
}

func (h *Hooks) OnDeleting(fn DeletingHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleting = append(h.deleting, fn)
}

// ApplyReading runs the reading-hook chain over obj. Exported so an
// executor built outside this package (latticedb's per-call implicit
// transactions) can apply the same hook chain table.Table itself uses.
func (h *Hooks) ApplyReading(obj storeapi.Record) storeapi.Record { return h.runReading(obj) }

func (h *Hooks) hasDeleting() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.deleting) > 0
}

func (h *Hooks) runCreating(key *keyrange.Key, obj storeapi.Record) error {
	h.mu.Lock()
	handlers := append([]CreatingHook{}, h.creating...)
	h.mu.Unlock()
	for _, fn := range handlers {
		if err := fn(key, obj); err != nil {
			return err
		}
	}
	return nil
}

// runReading folds over every registered transform, each receiving the
// original object; the last one that returns ok=true wins, per spec.md §5.
func (h *Hooks) runReading(obj storeapi.Record) storeapi.Record {
	h.mu.Lock()
	handlers := append([]ReadingHook{}, h.reading...)
	h.mu.Unlock()
	out := obj
	for _, fn := range handlers {
		if transformed, ok := fn(obj); ok {
			out = transformed
		}
	}
	return out
}

func (h *Hooks) runUpdating(changes storeapi.Record, key keyrange.Key, obj storeapi.Record) error {
	h.mu.Lock()
	handlers := append([]UpdatingHook{}, h.updating...)
	h.mu.Unlock()
	for _, fn := range handlers {
		if err := fn(changes, key, obj); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) runDeleting(key keyrange.Key, obj storeapi.Record) error {
	h.mu.Lock()
	handlers := append([]DeletingHook{}, h.deleting...)
	h.mu.Unlock()
	for _, fn := range handlers {
		if err := fn(key, obj); err != nil {
			return err
		}
	}
	return nil
}
