// Package storeapi defines the Core Store Adapter: the narrow contract a
// backend must satisfy (get/getMany/count/query/openCursor/mutate/begin)
// so the rest of the engine never depends on a concrete storage engine.
// Concrete backends (boltstore, sqlitestore) register a Factory under a
// name here, mirroring the registry's driver-factory pattern.
package storeapi

import (
	"context"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/schema"
)

// Record is one stored row: an opaque value keyed by its primary key.
type Record = map[string]any

// Durability is a hint forwarded to the backend; a backend that cannot
// honor a stricter level than its default MAY silently downgrade it.
type Durability int

const (
	DurabilityDefault Durability = iota
	DurabilityRelaxed
	DurabilityStrict
)

// CursorAlgorithm is the 4-way step-function contract from spec.md §4.5:
// given the current index key, it reports whether to collect this record,
// skip it, stop the cursor entirely, or jump straight to another key.
type StepOutcome int

const (
	StepCollect StepOutcome = iota
	StepSkip
	StepStop
	StepJump
)

type Step struct {
	Outcome StepOutcome
	JumpKey keyrange.Key
}

type CursorAlgorithm func(indexKey keyrange.Key) Step

// QueryRequest describes one query() call against an index.
type QueryRequest struct {
	Table     string
	Index     string // empty ⇒ primary-key scan
	Range     keyrange.KeyRange
	Values    bool // true ⇒ return records, false ⇒ primary keys
	Reverse   bool
	Unique    bool // drop consecutive duplicate index keys
	Limit     *int
	Offset    *int
	Algorithm CursorAlgorithm
	Raw       bool // bypass read hooks (hooks live above this layer)
	Filter    func(primaryKey keyrange.Key, rec Record) bool
}

// QueryResult is the result of a query() or count() call.
type QueryResult struct {
	Records     []Record       // populated when Values is true
	PrimaryKeys []keyrange.Key // populated when Values is false
}

// Cursor is a live, positioned iterator opened by OpenCursor. Backends
// that cannot offer a standalone cursor (distinct from Query) may
// implement it by buffering — see sqlitestore for the SQL-emulated form.
type Cursor interface {
	Valid() bool
	Key() keyrange.Key
	PrimaryKey() keyrange.Key
	Value() (Record, error)
	Next() error
	Close() error
}

// MutateKind tags a MutateRequest variant.
type MutateKind int

const (
	MutateAdd MutateKind = iota
	MutatePut
	MutateDelete
	MutateDeleteRange
)

// MutateRequest describes one mutate() call. Values/Keys are aligned by
// index for add/put; Keys alone is used for delete; Range alone for
// deleteRange.
type MutateRequest struct {
	Kind   MutateKind
	Table  string
	Values []Record
	Keys   []keyrange.Key // explicit keys (outbound primary key, or put())
	Range  keyrange.KeyRange
}

// MutateResult mirrors spec.md §4.3's { numFailures, results?, failures?,
// lastResult? }: bulk mutations (N>1) report per-item results/failures
// instead of propagating the first error.
type MutateResult struct {
	NumFailures int
	Results     []keyrange.Key // assigned/confirmed primary key per success
	Failures    map[int]error  // index → error, for bulk mutations
	LastResult  keyrange.Key
}

// Tx is one backend transaction over a declared set of tables.
type Tx interface {
	Writable() bool
	Get(ctx context.Context, table string, key keyrange.Key) (Record, bool, error)
	GetMany(ctx context.Context, table string, keys []keyrange.Key) ([]Record, error)
	Count(ctx context.Context, req QueryRequest) (int64, error)
	Query(ctx context.Context, req QueryRequest) (QueryResult, error)
	OpenCursor(ctx context.Context, req QueryRequest) (Cursor, error)
	Mutate(ctx context.Context, req MutateRequest) (MutateResult, error)
	Commit() error
	Rollback() error
}

// Store is a backend's top-level handle: it owns the schema at its
// current version and mints transactions over it.
type Store interface {
	// Begin opens a transaction covering tables, in the given mode.
	Begin(ctx context.Context, tables []string, writable bool, durability Durability) (Tx, error)
	// ApplySchema materializes schema changes (see schema.Diff) against
	// the backend's physical layout: bucket/table creation, index
	// bucket/table creation, etc. Called by the orchestrator during open,
	// before the upgrade transaction begins; the backend applies the
	// changes in a transaction of its own.
	ApplySchema(ctx context.Context, changes []schema.Change, full schema.DatabaseSchema) error
	// Capabilities reports which optional capabilities (§6) this backend
	// supports, for feature detection by the executor.
	Capabilities() Capabilities
	Close() error
	// Delete drops the backing store entirely (files, buckets, ...).
	Delete() error
}

// Capabilities is a feature-detection bundle per spec.md §6.
type Capabilities struct {
	BulkGetRange bool // supports the plain-range fast path (rule 1 of §4.3)
	EarlyCommit  bool
	Durability   bool
}

// Factory constructs a Store from a DSN-like path/name.
type Factory func(path string) (Store, error)
