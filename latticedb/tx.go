package latticedb

import (
	"github.com/latticedb/lattice/table"
	"github.com/latticedb/lattice/txctx"
)

// Tx is the handle a DB.Transaction callback receives: a bound
// transaction context plus the ability to vend table.Table facades over
// it, per spec.md §4.6.
type Tx struct {
	db  *DB
	ctx *txctx.Context
}

// UpgradeContext is the handle an UpgradeFunc receives; identical in
// shape to Tx since the upgrade transaction is an ordinary read-write
// transaction over every declared table.
type UpgradeContext = Tx

// Table binds name to this transaction, sharing the hook registry every
// other Table for this name (in any transaction) uses.
func (t *Tx) Table(name string) (*table.Table, error) {
	bound, err := t.ctx.Bind(name)
	if err != nil {
		return nil, err
	}
	return table.New(bound, t.db.hooksFor(name)), nil
}

// Abort requests an early rollback; Finish (called automatically when the
// callback returns) still no-ops safely afterward.
func (t *Tx) Abort() error { return t.ctx.Abort() }

// Commit requests an early commit; see txctx.Context.Commit.
func (t *Tx) Commit() error { return t.ctx.Commit() }

// Mode reports read-only vs. read-write.
func (t *Tx) Mode() txctx.Mode { return t.ctx.Mode() }
