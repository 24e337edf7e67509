// Package latticedb implements the Database Orchestrator of spec.md §4.8:
// the db.Version(n).Stores(...).Upgrade(fn) DSL, Open's migration runner,
// the middleware stack, event emission, and the explicit/implicit
// transaction surface table.Table is vended through. Grounded on the
// teacher's migration.Manager (coordinating a migrator, a history table,
// and a differ behind one Open-like entry point — see
// _examples/rediwo-redi-orm/migration/manager.go) generalized from SQL DDL
// execution to the Core Store Adapter's schema.Change primitives.
package latticedb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/logger"
	"github.com/latticedb/lattice/middleware"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
	"github.com/latticedb/lattice/table"
	"github.com/latticedb/lattice/txctx"
)

// DB is one named database: a set of versioned schema declarations bound
// to a backend, opened once and then handed out as table.Table facades
// either inside an explicit Transaction or implicitly per call.
type DB struct {
	name    string
	backend string
	path    string
	log     logger.Logger
	durability storeapi.Durability

	mu       sync.RWMutex
	versions []*versionDef

	mwStack *middleware.Stack
	bus     *EventBus

	hooksMu sync.Mutex
	hooks   map[string]*table.Hooks

	openMu  sync.RWMutex
	opened  bool
	store   storeapi.Store // raw backend, pre-middleware
	active  storeapi.Store // middleware-composed, what transactions Begin against
	dbSchema schema.DatabaseSchema
	dbVersion int
}

// Option configures a DB at construction time, mirroring the teacher's
// functional-options Config pattern.
type Option func(*DB)

// WithBackend selects the registered storeapi backend name ("bolt" by
// default, "sqlite" also ships with this module).
func WithBackend(name string) Option { return func(d *DB) { d.backend = name } }

// WithPath overrides the backend's DSN-like open path (defaults to
// name+".lattice").
func WithPath(path string) Option { return func(d *DB) { d.path = path } }

// WithLogger overrides the default logger.
func WithLogger(l logger.Logger) Option { return func(d *DB) { d.log = l } }

// WithDurability sets the durability hint forwarded to the backend on
// every transaction this DB begins.
func WithDurability(level storeapi.Durability) Option {
	return func(d *DB) { d.durability = level }
}

// New declares (but does not open) a database named name.
func New(name string, opts ...Option) *DB {
	d := &DB{
		name:    name,
		backend: "bolt",
		path:    name + ".lattice",
		log:     logger.New(name),
		mwStack: middleware.NewStack(),
		bus:     NewEventBus(),
		hooks:   make(map[string]*table.Hooks),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Version declares (or re-opens, if called twice with the same number)
// version n's builder, per spec.md §4.8.
func (d *DB) Version(n int) *VersionBuilder {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range d.versions {
		if v.number == n {
			return &VersionBuilder{db: d, def: v}
		}
	}
	def := &versionDef{number: n, stores: map[string]string{}}
	d.versions = append(d.versions, def)
	return &VersionBuilder{db: d, def: def}
}

// RegisterMiddleware adds or replaces a middleware by name, re-composing
// the live store immediately if the database is already open.
func (d *DB) RegisterMiddleware(m middleware.Middleware) {
	d.mwStack.Register(m)
	d.recompose()
}

// UnregisterMiddleware removes a middleware by name, re-composing the live
// store immediately if the database is already open.
func (d *DB) UnregisterMiddleware(name string) {
	d.mwStack.Unregister(name)
	d.recompose()
}

func (d *DB) recompose() {
	d.openMu.Lock()
	defer d.openMu.Unlock()
	if d.opened {
		d.active = d.mwStack.Compose(d.store)
	}
}

// On subscribes fn to kind, per spec.md §6's event set.
func (d *DB) On(kind EventKind, fn Handler) { d.bus.On(kind, fn) }

// hooksFor returns the shared hook registry for table name, creating one
// on first use. Shared across every transaction's Table() call for that
// name, per spec.md §4.9.
func (d *DB) hooksFor(name string) *table.Hooks {
	d.hooksMu.Lock()
	defer d.hooksMu.Unlock()
	h, ok := d.hooks[name]
	if !ok {
		h = table.NewHooks()
		d.hooks[name] = h
	}
	return h
}

// Open applies the schema diff between the persisted snapshot and the
// highest declared version, runs any intervening versions' upgrade
// callbacks inside the upgrade transaction, and persists the new snapshot
// atomically with it, per spec.md §4.8/§4.10.
func (d *DB) Open(ctx context.Context) error {
	d.mu.RLock()
	if len(d.versions) == 0 {
		d.mu.RUnlock()
		return lerr.New(lerr.KindSchema, "no versions declared")
	}
	versions := append([]*versionDef{}, d.versions...)
	d.mu.RUnlock()
	sort.Slice(versions, func(i, j int) bool { return versions[i].number < versions[j].number })
	latest := versions[len(versions)-1]

	newUserSchema, err := schema.ParseDatabase(latest.stores)
	if err != nil {
		return err
	}

	store, err := storeapi.Open(d.backend, d.path)
	if err != nil {
		return err
	}

	// Bootstrap the reserved meta table before anything else can be read
	// or written through it.
	metaOnly := schema.DatabaseSchema{metaTable: metaSchema}
	if err := store.ApplySchema(ctx, schema.Diff(schema.DatabaseSchema{}, metaOnly), metaOnly); err != nil {
		store.Close()
		return err
	}

	allTables := tableNames(newUserSchema)
	rtx, err := store.Begin(ctx, []string{metaTable}, false, d.durability)
	if err != nil {
		store.Close()
		return err
	}

	st, err := loadMetaState(ctx, rtx)
	rtx.Rollback()
	if err != nil {
		store.Close()
		return err
	}

	changes := schema.Diff(st.Schema, newUserSchema)
	for _, ch := range changes {
		if ch.Type == schema.ChangePrimaryKey {
			store.Close()
			return lerr.New(lerr.KindSchema, fmt.Sprintf("table %q: primary key cannot be changed between versions", ch.TableName))
		}
	}

	// The schema is applied before the upgrade transaction begins: the
	// backend materializes it in its own transaction, and a transaction
	// only sees the tables that existed when it began.
	if err := store.ApplySchema(ctx, changes, withMeta(newUserSchema)); err != nil {
		store.Close()
		return err
	}

	btx, err := store.Begin(ctx, append(allTables, metaTable), true, d.durability)
	if err != nil {
		store.Close()
		return err
	}

	tctx := txctx.New(btx, newUserSchema, txctx.ReadWrite, d.durability)
	upgradeTx := &Tx{db: d, ctx: tctx}
	for _, v := range versions {
		if v.number <= st.Version || v.number > latest.number {
			continue
		}
		if v.upgrade != nil {
			if err := v.upgrade(upgradeTx); err != nil {
				tctx.Abort()
				store.Close()
				return err
			}
		}
	}

	if err := storeMetaState(ctx, btx, metaState{Version: latest.number, Schema: newUserSchema}); err != nil {
		tctx.Abort()
		store.Close()
		return err
	}
	if err := tctx.Commit(); err != nil {
		store.Close()
		return err
	}

	d.openMu.Lock()
	d.store = store
	d.dbSchema = newUserSchema
	d.dbVersion = latest.number
	d.active = d.mwStack.Compose(store)
	d.opened = true
	d.openMu.Unlock()

	if st.Version == 0 {
		return d.bus.emit(EventReady, nil)
	} else if st.Version != latest.number {
		return d.bus.emit(EventVersionChange, VersionChangeInfo{OldVersion: st.Version, NewVersion: latest.number})
	}
	return d.bus.emit(EventReady, nil)
}

func tableNames(s schema.DatabaseSchema) []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	return out
}

// Close releases the backend handle and emits EventClose.
func (d *DB) Close() error {
	d.openMu.Lock()
	defer d.openMu.Unlock()
	if !d.opened {
		return nil
	}
	err := d.store.Close()
	d.opened = false
	return errors.Join(err, d.bus.emit(EventClose, nil))
}

// Delete removes the backing store entirely. The database must be closed
// first.
func (d *DB) Delete() error {
	d.openMu.RLock()
	store := d.store
	opened := d.opened
	d.openMu.RUnlock()
	if opened {
		return lerr.New(lerr.KindInvalidState, "cannot delete an open database")
	}
	if store == nil {
		return nil
	}
	return store.Delete()
}

func (d *DB) activeStore() (storeapi.Store, error) {
	d.openMu.RLock()
	defer d.openMu.RUnlock()
	if !d.opened {
		return nil, lerr.New(lerr.KindDatabaseClosed, "database is not open")
	}
	return d.active, nil
}

func (d *DB) userSchema() schema.DatabaseSchema {
	d.openMu.RLock()
	defer d.openMu.RUnlock()
	return d.dbSchema
}

func (d *DB) tableSchema(name string) (schema.TableSchema, bool) {
	d.openMu.RLock()
	defer d.openMu.RUnlock()
	ts, ok := d.dbSchema[name]
	return ts, ok
}

// CurrentVersion reports the currently-open schema version, or 0 if
// unopened.
func (d *DB) CurrentVersion() int {
	d.openMu.RLock()
	defer d.openMu.RUnlock()
	return d.dbVersion
}

// Transaction opens one explicit, backend-level transaction covering
// tables, runs fn, and commits on success or rolls back on error or
// panic-free return of a non-nil error, per spec.md §4.6.
func (d *DB) Transaction(ctx context.Context, mode txctx.Mode, tables []string, fn func(ctx context.Context, tx *Tx) error) error {
	store, err := d.activeStore()
	if err != nil {
		return err
	}
	btx, err := store.Begin(ctx, tables, mode == txctx.ReadWrite, d.durability)
	if err != nil {
		return err
	}
	tctx := txctx.New(btx, d.userSchema(), mode, d.durability)
	tx := &Tx{db: d, ctx: tctx}
	cerr := fn(ctx, tx)
	return tctx.Finish(cerr)
}

// withImplicitTx opens a one-shot transaction over tables, runs fn, and
// commits/aborts around that single call, per spec.md §5's implicit
// transaction rule.
func (d *DB) withImplicitTx(ctx context.Context, tables []string, mode txctx.Mode, fn func(tx *Tx) error) error {
	store, err := d.activeStore()
	if err != nil {
		return err
	}
	btx, err := store.Begin(ctx, tables, mode == txctx.ReadWrite, d.durability)
	if err != nil {
		return err
	}
	tctx := txctx.New(btx, d.userSchema(), mode, d.durability)
	tx := &Tx{db: d, ctx: tctx}
	cerr := fn(tx)
	return tctx.Finish(cerr)
}

// Table vends an implicit-transaction facade for name: every method call
// on the returned ImplicitTable opens and commits its own transaction.
// Use Transaction for several calls that must be atomic together.
func (d *DB) Table(name string) *ImplicitTable {
	return &ImplicitTable{db: d, name: name}
}
