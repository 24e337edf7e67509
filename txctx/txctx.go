// Package txctx implements the Transaction Context of spec.md §4.6: a
// scoped handle over one backend transaction covering a declared set of
// tables, offering table(name) binding, abort()/commit() hints, and a
// durability level. The implicit one-shot transaction rule (a table call
// made outside an explicit transaction opens and commits its own
// transaction around that single call) is built on this type by
// latticedb (DB.Table and its ImplicitTable), not here. The shared
// tx+schema+mode struct threaded through every bound table mirrors the
// teacher's TransactionUtils holding a *sql.Tx alongside its owning db.
package txctx

import (
	"context"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
)

// Mode selects read-only or read-write access for a transaction.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// state tracks a Context's lifecycle so operations after abort/commit
// surface a TransactionInactive error instead of silently reusing a
// finished backend transaction.
type state int

const (
	active state = iota
	aborting
	committing
	done
)

// Context is the TransactionContext passed into database.transaction's
// callback, and the implicit one reused for a single table call.
type Context struct {
	tx         storeapi.Tx
	schema     schema.DatabaseSchema
	mode       Mode
	durability storeapi.Durability
	state      state
}

// New wraps an already-opened storeapi.Tx.
func New(tx storeapi.Tx, full schema.DatabaseSchema, mode Mode, durability storeapi.Durability) *Context {
	return &Context{tx: tx, schema: full, mode: mode, durability: durability}
}

// Mode reports the context's access mode.
func (c *Context) Mode() Mode { return c.mode }

// Durability reports the durability hint forwarded to the backend.
func (c *Context) Durability() storeapi.Durability { return c.durability }

// Bind returns an Executor-shaped binding for table name over this
// context, for the table package to build its facade on top of.
func (c *Context) Bind(name string) (*Binding, error) {
	ts, ok := c.schema[name]
	if !ok {
		return nil, lerr.New(lerr.KindInvalidTable, "invalid table: "+name)
	}
	return &Binding{ctx: c, table: name, ts: ts}, nil
}

// checkActive reports a TransactionInactive error once the context has
// been aborted or committed, per spec.md §5's cancellation rule.
func (c *Context) checkActive() error {
	if c.state != active {
		return lerr.New(lerr.KindTransactionInactive, "transaction is no longer active")
	}
	return nil
}

// Abort requests a backend rollback. Safe to call once; a later no-op
// Commit call after Abort is still allowed to be a no-op.
func (c *Context) Abort() error {
	if c.state == done {
		return nil
	}
	c.state = aborting
	err := c.tx.Rollback()
	c.state = done
	return err
}

// Commit hints an early commit; safe to call multiple times and after
// completion (no-op), per spec.md §4.6.
func (c *Context) Commit() error {
	if c.state == done {
		return nil
	}
	c.state = committing
	err := c.tx.Commit()
	c.state = done
	return err
}

// Finish commits if the callback returned nil, aborts otherwise — the
// commit-on-success/abort-on-throw rule database.transaction implements.
func (c *Context) Finish(callbackErr error) error {
	if c.state == done {
		return callbackErr
	}
	if callbackErr != nil {
		_ = c.Abort()
		return callbackErr
	}
	return c.Commit()
}

// Binding implements query.Executor over one table bound to a Context.
type Binding struct {
	ctx   *Context
	table string
	ts    schema.TableSchema
}

func (b *Binding) TableName() string { return b.table }

func (b *Binding) PrimaryKeyPath() []string { return b.ts.PrimaryKey.KeyPath }

func (b *Binding) Outbound() bool { return b.ts.PrimaryKey.Outbound }

func (b *Binding) Query(ctx context.Context, req storeapi.QueryRequest) (storeapi.QueryResult, error) {
	if err := b.ctx.checkActive(); err != nil {
		return storeapi.QueryResult{}, err
	}
	return b.ctx.tx.Query(ctx, req)
}

func (b *Binding) Count(ctx context.Context, req storeapi.QueryRequest) (int64, error) {
	if err := b.ctx.checkActive(); err != nil {
		return 0, err
	}
	return b.ctx.tx.Count(ctx, req)
}

func (b *Binding) Get(ctx context.Context, key keyrange.Key) (storeapi.Record, bool, error) {
	if err := b.ctx.checkActive(); err != nil {
		return nil, false, err
	}
	return b.ctx.tx.Get(ctx, b.table, key)
}

func (b *Binding) GetMany(ctx context.Context, keys []keyrange.Key) ([]storeapi.Record, error) {
	if err := b.ctx.checkActive(); err != nil {
		return nil, err
	}
	return b.ctx.tx.GetMany(ctx, b.table, keys)
}

func (b *Binding) Mutate(ctx context.Context, req storeapi.MutateRequest) (storeapi.MutateResult, error) {
	if err := b.ctx.checkActive(); err != nil {
		return storeapi.MutateResult{}, err
	}
	if b.ctx.mode != ReadWrite {
		return storeapi.MutateResult{}, lerr.New(lerr.KindReadOnly, "transaction is read-only")
	}
	return b.ctx.tx.Mutate(ctx, req)
}

// IndexSpec exposes the table's schema to the table package without it
// importing the schema package directly for every lookup.
func (b *Binding) IndexSpec(name string) (schema.IndexSpec, bool) { return b.ts.IndexByName(name) }

func (b *Binding) TableSchema() schema.TableSchema { return b.ts }

func (b *Binding) RawTx(ctx context.Context) (storeapi.Tx, error) {
	if err := b.ctx.checkActive(); err != nil {
		return nil, err
	}
	return b.ctx.tx, nil
}
