package latticedb

import (
	"context"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/query"
	"github.com/latticedb/lattice/storeapi"
	"github.com/latticedb/lattice/txctx"
)

// ImplicitTable is the facade DB.Table(name) returns: it carries no open
// transaction of its own. Every CRUD method opens, uses, and
// commits/aborts its own one-shot transaction; every query entry point
// returns a query.Collection bound to a lazyExecutor that does the same
// around each primitive call a terminal operation eventually issues.
type ImplicitTable struct {
	db   *DB
	name string
}

func (it *ImplicitTable) rw(ctx context.Context, fn func(tx *Tx) error) error {
	return it.db.withImplicitTx(ctx, []string{it.name}, txctx.ReadWrite, fn)
}

func (it *ImplicitTable) ro(ctx context.Context, fn func(tx *Tx) error) error {
	return it.db.withImplicitTx(ctx, []string{it.name}, txctx.ReadOnly, fn)
}

func (it *ImplicitTable) Get(ctx context.Context, key keyrange.Key) (storeapi.Record, bool, error) {
	var rec storeapi.Record
	var ok bool
	err := it.ro(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		rec, ok, err = tbl.Get(ctx, key)
		return err
	})
	return rec, ok, err
}

func (it *ImplicitTable) GetMany(ctx context.Context, keys []keyrange.Key) ([]storeapi.Record, error) {
	var out []storeapi.Record
	err := it.ro(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		out, err = tbl.GetMany(ctx, keys)
		return err
	})
	return out, err
}

func (it *ImplicitTable) Add(ctx context.Context, rec storeapi.Record, key ...keyrange.Key) (keyrange.Key, error) {
	var out keyrange.Key
	err := it.rw(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		out, err = tbl.Add(ctx, rec, key...)
		return err
	})
	return out, err
}

func (it *ImplicitTable) Put(ctx context.Context, rec storeapi.Record, key ...keyrange.Key) (keyrange.Key, error) {
	var out keyrange.Key
	err := it.rw(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		out, err = tbl.Put(ctx, rec, key...)
		return err
	})
	return out, err
}

func (it *ImplicitTable) Update(ctx context.Context, key keyrange.Key, changes storeapi.Record) (int, error) {
	var out int
	err := it.rw(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		out, err = tbl.Update(ctx, key, changes)
		return err
	})
	return out, err
}

func (it *ImplicitTable) Upsert(ctx context.Context, key keyrange.Key, changes storeapi.Record) error {
	return it.rw(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		return tbl.Upsert(ctx, key, changes)
	})
}

func (it *ImplicitTable) Delete(ctx context.Context, key keyrange.Key) error {
	return it.rw(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		return tbl.Delete(ctx, key)
	})
}

func (it *ImplicitTable) BulkAdd(ctx context.Context, recs []storeapi.Record, keys ...[]keyrange.Key) ([]keyrange.Key, error) {
	var out []keyrange.Key
	err := it.rw(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		out, err = tbl.BulkAdd(ctx, recs, keys...)
		return err
	})
	return out, err
}

func (it *ImplicitTable) BulkPut(ctx context.Context, recs []storeapi.Record, keys ...[]keyrange.Key) ([]keyrange.Key, error) {
	var out []keyrange.Key
	err := it.rw(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		out, err = tbl.BulkPut(ctx, recs, keys...)
		return err
	})
	return out, err
}

func (it *ImplicitTable) BulkDelete(ctx context.Context, keys []keyrange.Key) error {
	return it.rw(ctx, func(tx *Tx) error {
		tbl, err := tx.Table(it.name)
		if err != nil {
			return err
		}
		return tbl.BulkDelete(ctx, keys)
	})
}

// Where opens a WhereClause over a lazyExecutor: the scan itself runs as
// its own one-shot transaction when a terminal operation executes it.
func (it *ImplicitTable) Where(index string) query.WhereClause {
	return query.NewWhereClause(&lazyExecutor{db: it.db, name: it.name}, index)
}

func (it *ImplicitTable) OrderBy(index string) query.Collection { return it.Where(index).All() }

func (it *ImplicitTable) Filter(pred func(storeapi.Record) bool) query.Collection {
	return it.ToCollection().Filter(func(_ keyrange.Key, rec storeapi.Record) bool { return pred(rec) })
}

func (it *ImplicitTable) ToCollection() query.Collection { return it.Where("").All() }

// lazyExecutor implements query.Executor without holding any transaction
// open between calls; each Query/Count/Mutate call is its own implicit
// transaction, per spec.md §5.
type lazyExecutor struct {
	db   *DB
	name string
}

func (e *lazyExecutor) TableName() string { return e.name }

func (e *lazyExecutor) PrimaryKeyPath() []string {
	ts, _ := e.db.tableSchema(e.name)
	return ts.PrimaryKey.KeyPath
}

func (e *lazyExecutor) Outbound() bool {
	ts, _ := e.db.tableSchema(e.name)
	return ts.PrimaryKey.Outbound
}

func (e *lazyExecutor) Count(ctx context.Context, req storeapi.QueryRequest) (int64, error) {
	var out int64
	err := e.db.withImplicitTx(ctx, []string{e.name}, txctx.ReadOnly, func(tx *Tx) error {
		b, err := tx.ctx.Bind(e.name)
		if err != nil {
			return err
		}
		out, err = b.Count(ctx, req)
		return err
	})
	return out, err
}

func (e *lazyExecutor) Query(ctx context.Context, req storeapi.QueryRequest) (storeapi.QueryResult, error) {
	var out storeapi.QueryResult
	err := e.db.withImplicitTx(ctx, []string{e.name}, txctx.ReadOnly, func(tx *Tx) error {
		b, err := tx.ctx.Bind(e.name)
		if err != nil {
			return err
		}
		out, err = b.Query(ctx, req)
		return err
	})
	if err == nil && !req.Raw && len(out.Records) > 0 {
		hooks := e.db.hooksFor(e.name)
		for i, r := range out.Records {
			out.Records[i] = hooks.ApplyReading(r)
		}
	}
	return out, err
}

func (e *lazyExecutor) Mutate(ctx context.Context, req storeapi.MutateRequest) (storeapi.MutateResult, error) {
	var out storeapi.MutateResult
	err := e.db.withImplicitTx(ctx, []string{e.name}, txctx.ReadWrite, func(tx *Tx) error {
		b, err := tx.ctx.Bind(e.name)
		if err != nil {
			return err
		}
		out, err = b.Mutate(ctx, req)
		return err
	})
	return out, err
}
