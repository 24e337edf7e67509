// Package table implements the Table Facade of spec.md §2/§4.9: the CRUD
// surface (get/add/put/update/upsert/delete and bulk variants) plus the
// where/orderBy/filter/toCollection query entry points, with per-table
// hook registries. Grounded on the teacher's ModelQueryImpl/Model pairing
// (models/model.go) — a thin struct bound to one transaction-scoped
// executor, with every query method handed off to a builder package.
package table

import (
	"context"
	"strconv"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/query"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
	"github.com/latticedb/lattice/txctx"
)

// Table is the per-transaction facade bound to one table name.
type Table struct {
	bound    *txctx.Binding
	hooks    *Hooks
	onChange OnChange
}

// New binds a Table to a *txctx.Binding, sharing hooks across every Table
// instance ever vended for this table name (see latticedb.DB.tableHooks).
func New(bound *txctx.Binding, hooks *Hooks) *Table {
	return &Table{bound: bound, hooks: hooks}
}

// Hooks exposes the shared per-table hook registries for registration.
func (t *Table) Hooks() *Hooks { return t.hooks }

func (t *Table) Name() string               { return t.bound.TableName() }
func (t *Table) Schema() schema.TableSchema { return t.bound.TableSchema() }

// hookedExecutor adapts *txctx.Binding into query.Executor, applying the
// reading hook to every record a Query call returns (unless the request
// is raw). Embedding mirrors the same "override a subset, inherit the
// rest" idiom middleware.Passthrough uses over storeapi.Store.
type hookedExecutor struct {
	*txctx.Binding
	hooks *Hooks
}

func (e *hookedExecutor) Query(ctx context.Context, req storeapi.QueryRequest) (storeapi.QueryResult, error) {
	res, err := e.Binding.Query(ctx, req)
	if err != nil || req.Raw || len(res.Records) == 0 {
		return res, err
	}
	out := make([]storeapi.Record, len(res.Records))
	for i, r := range res.Records {
		out[i] = e.hooks.runReading(r)
	}
	res.Records = out
	return res, nil
}

func (t *Table) exec() query.Executor {
	return &hookedExecutor{Binding: t.bound, hooks: t.hooks}
}

// Where opens a WhereClause over the named index (empty ⇒ primary key).
func (t *Table) Where(index string) query.WhereClause {
	return query.NewWhereClause(t.exec(), index)
}

// OrderBy returns the full index range, ascending, per spec.md §2's Table
// Facade query entry points.
func (t *Table) OrderBy(index string) query.Collection {
	return t.Where(index).All()
}

// Filter returns a primary-key full scan with pred ANDed in.
func (t *Table) Filter(pred func(storeapi.Record) bool) query.Collection {
	return t.ToCollection().Filter(func(_ keyrange.Key, rec storeapi.Record) bool { return pred(rec) })
}

// ToCollection is an unfiltered primary-key full scan.
func (t *Table) ToCollection() query.Collection {
	return t.Where("").All()
}

// Get reads one record by primary key, applying the reading hook.
func (t *Table) Get(ctx context.Context, key keyrange.Key) (storeapi.Record, bool, error) {
	rec, ok, err := t.bound.Get(ctx, key)
	if err != nil || !ok {
		return rec, ok, err
	}
	return t.hooks.runReading(rec), true, nil
}

// GetMany reads keys in order, preserving absent entries as nil.
func (t *Table) GetMany(ctx context.Context, keys []keyrange.Key) ([]storeapi.Record, error) {
	recs, err := t.bound.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]storeapi.Record, len(recs))
	for i, r := range recs {
		if r != nil {
			out[i] = t.hooks.runReading(r)
		}
	}
	return out, nil
}

// Add inserts a new record, rejecting an existing key. key is required
// only for outbound-primary-key tables, per spec.md §4.3's "outbound keys
// are returned separately and never embedded".
func (t *Table) Add(ctx context.Context, rec storeapi.Record, key ...keyrange.Key) (keyrange.Key, error) {
	return t.write(ctx, storeapi.MutateAdd, rec, key)
}

// Put inserts or overwrites a record wholesale.
func (t *Table) Put(ctx context.Context, rec storeapi.Record, key ...keyrange.Key) (keyrange.Key, error) {
	return t.write(ctx, storeapi.MutatePut, rec, key)
}

func (t *Table) write(ctx context.Context, kind storeapi.MutateKind, rec storeapi.Record, keys []keyrange.Key) (keyrange.Key, error) {
	var keyPtr *keyrange.Key
	if len(keys) > 0 {
		keyPtr = &keys[0]
	}
	if err := t.hooks.runCreating(keyPtr, rec); err != nil {
		return nil, err
	}
	req := storeapi.MutateRequest{Kind: kind, Table: t.bound.TableName(), Values: []storeapi.Record{rec}}
	if len(keys) > 0 {
		req.Keys = keys
	}
	res, err := t.bound.Mutate(ctx, req)
	if err != nil {
		return nil, err
	}
	t.emit(res.LastResult, changeKindOf(kind), rec, nil)
	return res.LastResult, nil
}

func changeKindOf(kind storeapi.MutateKind) ChangeKind {
	if kind == storeapi.MutateAdd {
		return Created
	}
	return Updated
}

// BulkAdd/BulkPut mirror Add/Put for N>1 records, surfacing a single
// Constraint error enumerating failed indices on any failure (spec.md §7),
// instead of propagating the first error the way the single-record form
// does.
func (t *Table) BulkAdd(ctx context.Context, recs []storeapi.Record, keys ...[]keyrange.Key) ([]keyrange.Key, error) {
	return t.bulkWrite(ctx, storeapi.MutateAdd, recs, keys)
}

func (t *Table) BulkPut(ctx context.Context, recs []storeapi.Record, keys ...[]keyrange.Key) ([]keyrange.Key, error) {
	return t.bulkWrite(ctx, storeapi.MutatePut, recs, keys)
}

func (t *Table) bulkWrite(ctx context.Context, kind storeapi.MutateKind, recs []storeapi.Record, keysArg [][]keyrange.Key) ([]keyrange.Key, error) {
	for _, rec := range recs {
		if err := t.hooks.runCreating(nil, rec); err != nil {
			return nil, err
		}
	}
	req := storeapi.MutateRequest{Kind: kind, Table: t.bound.TableName(), Values: recs}
	if len(keysArg) > 0 {
		req.Keys = keysArg[0]
	}
	res, err := t.bound.Mutate(ctx, req)
	if err != nil {
		return nil, err
	}
	if t.onChange != nil {
		changeKind := changeKindOf(kind)
		result := 0
		for i, rec := range recs {
			if _, failed := res.Failures[i]; failed {
				continue
			}
			t.emit(res.Results[result], changeKind, rec, nil)
			result++
		}
	}
	if res.NumFailures > 0 {
		return res.Results, lerr.New(lerr.KindConstraint, constraintIndicesMessage(res.Failures))
	}
	return res.Results, nil
}

// Update merges changes into the record at key and writes it back.
// Returns 0 (not an error) if key does not exist, per spec.md §7.
func (t *Table) Update(ctx context.Context, key keyrange.Key, changes storeapi.Record) (int, error) {
	rec, ok, err := t.bound.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if err := t.hooks.runUpdating(changes, key, rec); err != nil {
		return 0, err
	}
	merged := cloneRecord(rec)
	for k, v := range changes {
		merged[k] = v
	}
	if _, err := t.bound.Mutate(ctx, storeapi.MutateRequest{
		Kind: storeapi.MutatePut, Table: t.bound.TableName(), Values: []storeapi.Record{merged}, Keys: []keyrange.Key{key},
	}); err != nil {
		return 0, err
	}
	t.emit(key, Updated, merged, rec)
	return 1, nil
}

// Upsert merges changes into the record at key if it exists, else inserts
// changes as a new record under key.
func (t *Table) Upsert(ctx context.Context, key keyrange.Key, changes storeapi.Record) error {
	rec, ok, err := t.bound.Get(ctx, key)
	if err != nil {
		return err
	}
	var merged storeapi.Record
	if ok {
		if err := t.hooks.runUpdating(changes, key, rec); err != nil {
			return err
		}
		merged = cloneRecord(rec)
		for k, v := range changes {
			merged[k] = v
		}
	} else {
		merged = cloneRecord(changes)
		if err := t.hooks.runCreating(&key, merged); err != nil {
			return err
		}
	}
	if _, err := t.bound.Mutate(ctx, storeapi.MutateRequest{
		Kind: storeapi.MutatePut, Table: t.bound.TableName(), Values: []storeapi.Record{merged}, Keys: []keyrange.Key{key},
	}); err != nil {
		return err
	}
	kind := Updated
	var oldObj storeapi.Record
	if !ok {
		kind = Created
	} else {
		oldObj = rec
	}
	t.emit(key, kind, merged, oldObj)
	return nil
}

// Delete removes the record at key. Deleting an absent key is not an
// error, per spec.md §7.
func (t *Table) Delete(ctx context.Context, key keyrange.Key) error {
	var oldObj storeapi.Record
	if t.hooks.hasDeleting() || t.onChange != nil {
		rec, ok, err := t.bound.Get(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			if t.hooks.hasDeleting() {
				if err := t.hooks.runDeleting(key, rec); err != nil {
					return err
				}
			}
			oldObj = rec
		}
	}
	if _, err := t.bound.Mutate(ctx, storeapi.MutateRequest{Kind: storeapi.MutateDelete, Table: t.bound.TableName(), Keys: []keyrange.Key{key}}); err != nil {
		return err
	}
	if oldObj != nil {
		t.emit(key, Deleted, nil, oldObj)
	}
	return nil
}

// BulkDelete removes every key in keys, surfacing a single Constraint
// error enumerating failed indices on any failure.
func (t *Table) BulkDelete(ctx context.Context, keys []keyrange.Key) error {
	var olds []storeapi.Record
	if t.hooks.hasDeleting() || t.onChange != nil {
		recs, err := t.bound.GetMany(ctx, keys)
		if err != nil {
			return err
		}
		if t.hooks.hasDeleting() {
			for i, rec := range recs {
				if rec != nil {
					if err := t.hooks.runDeleting(keys[i], rec); err != nil {
						return err
					}
				}
			}
		}
		olds = recs
	}
	res, err := t.bound.Mutate(ctx, storeapi.MutateRequest{Kind: storeapi.MutateDelete, Table: t.bound.TableName(), Keys: keys})
	if err != nil {
		return err
	}
	if t.onChange != nil {
		for i, key := range keys {
			if _, failed := res.Failures[i]; failed {
				continue
			}
			var oldObj storeapi.Record
			if i < len(olds) {
				oldObj = olds[i]
			}
			if oldObj != nil {
				t.emit(key, Deleted, nil, oldObj)
			}
		}
	}
	if res.NumFailures > 0 {
		return lerr.New(lerr.KindConstraint, constraintIndicesMessage(res.Failures))
	}
	return nil
}

func cloneRecord(rec storeapi.Record) storeapi.Record {
	out := make(storeapi.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func constraintIndicesMessage(failures map[int]error) string {
	msg := "bulk mutation failed at indices:"
	for i := range failures {
		msg += " " + strconv.Itoa(i)
	}
	return msg
}
