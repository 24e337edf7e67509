package corebase

import (
	"context"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
)

// Mutate implements storeapi.Tx.Mutate: add/put/delete/deleteRange, with
// spec.md §4.3's bulk-failure semantics (a single-item mutation propagates
// its error directly; a bulk one, N>1, reports per-index failures instead).
func (t *Tx) Mutate(ctx context.Context, req storeapi.MutateRequest) (storeapi.MutateResult, error) {
	if !t.raw.Writable() {
		return storeapi.MutateResult{}, lerr.New(lerr.KindReadOnly, "transaction is read-only")
	}
	ts, err := t.tableSchema(req.Table)
	if err != nil {
		return storeapi.MutateResult{}, err
	}

	switch req.Kind {
	case storeapi.MutateDeleteRange:
		return t.mutateDeleteRange(ctx, req, ts)
	case storeapi.MutateDelete:
		return t.mutateDelete(ctx, req, ts)
	default:
		return t.mutateWrite(ctx, req, ts)
	}
}

// mutateWrite handles Add and Put: N records, one result/failure per item.
func (t *Tx) mutateWrite(ctx context.Context, req storeapi.MutateRequest, ts schema.TableSchema) (storeapi.MutateResult, error) {
	bulk := len(req.Values) > 1
	result := storeapi.MutateResult{Failures: map[int]error{}}

	for i, rec := range req.Values {
		var explicitKey keyrange.Key
		if ts.PrimaryKey.Outbound && i < len(req.Keys) {
			explicitKey = req.Keys[i]
		}
		pk, err := t.writeOne(ctx, req.Table, ts, rec, req.Kind == storeapi.MutateAdd, explicitKey)
		if err != nil {
			if !bulk {
				return storeapi.MutateResult{}, err
			}
			result.NumFailures++
			result.Failures[i] = err
			continue
		}
		result.Results = append(result.Results, pk)
		result.LastResult = pk
	}
	if len(result.Failures) == 0 {
		result.Failures = nil
	}
	return result, nil
}

// writeOne stores a single record: resolving/assigning its primary key,
// enforcing unique-index constraints, and maintaining every secondary
// index's bucket entries. explicitKey is the caller-supplied key for an
// outbound primary key (schema.IndexSpec.Outbound — e.g. a table defined
// as ",name"); it is nil for an inbound primary key, where the key instead
// lives inside rec itself.
func (t *Tx) writeOne(ctx context.Context, table string, ts schema.TableSchema, rec storeapi.Record, isAdd bool, explicitKey keyrange.Key) (keyrange.Key, error) {
	bucket, err := t.raw.Bucket(table)
	if err != nil {
		return nil, err
	}

	var pk keyrange.Key
	if ts.PrimaryKey.Outbound {
		if explicitKey == nil {
			return nil, lerr.New(lerr.KindData, "record is missing its primary key")
		}
		pk = explicitKey
	} else {
		found, ok, err := primaryKeyOf(rec, ts.PrimaryKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			if !ts.PrimaryKey.AutoIncrement || len(ts.PrimaryKey.KeyPath) == 0 {
				return nil, lerr.New(lerr.KindData, "record is missing its primary key")
			}
			seq, err := bucket.NextSequence()
			if err != nil {
				return nil, err
			}
			found = int64(seq)
			setFieldValue(rec, ts.PrimaryKey.KeyPath[0], found)
		}
		pk = found
	}

	rawKey := keyrange.Encode(pk)
	existing, existed, err := bucket.Get(rawKey)
	if err != nil {
		return nil, err
	}
	if isAdd && existed {
		return nil, lerr.New(lerr.KindConstraint, "a record already exists for this key")
	}

	var oldRec storeapi.Record
	if existed {
		oldRec, err = decodeRecord(existing)
		if err != nil {
			return nil, err
		}
	}

	if err := t.checkUniqueIndexes(table, ts, rec, pk, oldRec); err != nil {
		return nil, err
	}

	payload, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := bucket.Put(rawKey, payload); err != nil {
		return nil, err
	}

	if err := t.reindex(table, ts, pk, oldRec, rec); err != nil {
		return nil, err
	}
	return pk, nil
}

// checkUniqueIndexes rejects the write if any Unique secondary index's new
// value already belongs to a different primary key.
func (t *Tx) checkUniqueIndexes(table string, ts schema.TableSchema, rec storeapi.Record, pk keyrange.Key, oldRec storeapi.Record) error {
	for _, idx := range ts.Indexes {
		if !idx.Unique {
			continue
		}
		newVal, ok, err := indexKeyOf(rec, idx)
		if err != nil || !ok {
			if err != nil {
				return err
			}
			continue
		}
		if oldRec != nil {
			if oldVal, ok2, _ := indexKeyOf(oldRec, idx); ok2 && keyrange.Equal(oldVal, newVal) {
				continue // value unchanged, no new collision introduced
			}
		}
		ib, err := t.raw.IndexBucket(table, idx.Name)
		if err != nil {
			return err
		}
		cur, err := ib.Cursor(false)
		if err != nil {
			return err
		}
		prefix := keyrange.Encode(newVal)
		collides := false
		if cur.Seek(prefix) && len(cur.Key()) >= len(prefix) && string(cur.Key()[:len(prefix)]) == string(prefix) {
			_, existingPK, err := splitIndexBucketKey(cur.Key(), indexArity(idx), primaryArity(ts.PrimaryKey))
			if err == nil && !keyrange.Equal(existingPK, pk) {
				collides = true
			}
		}
		cur.Close()
		if collides {
			return lerr.New(lerr.KindConstraint, "unique index constraint violated: "+idx.Name)
		}
	}
	return nil
}

// reindex removes oldRec's stale secondary-index entries and writes rec's
// current ones. oldRec is nil for a fresh insert.
func (t *Tx) reindex(table string, ts schema.TableSchema, pk keyrange.Key, oldRec, rec storeapi.Record) error {
	for _, idx := range ts.Indexes {
		ib, err := t.raw.IndexBucket(table, idx.Name)
		if err != nil {
			return err
		}
		if oldRec != nil {
			if oldVal, ok, err := indexKeyOf(oldRec, idx); err == nil && ok {
				if err := ib.Delete(indexBucketKey(oldVal, pk)); err != nil {
					return err
				}
			}
		}
		newVal, ok, err := indexKeyOf(rec, idx)
		if err != nil {
			return err
		}
		if ok {
			if err := ib.Put(indexBucketKey(newVal, pk), nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// mutateDelete handles Delete: an explicit list of primary keys.
func (t *Tx) mutateDelete(ctx context.Context, req storeapi.MutateRequest, ts schema.TableSchema) (storeapi.MutateResult, error) {
	bulk := len(req.Keys) > 1
	result := storeapi.MutateResult{Failures: map[int]error{}}

	for i, pk := range req.Keys {
		err := t.deleteOne(req.Table, ts, pk)
		if err != nil {
			if !bulk {
				return storeapi.MutateResult{}, err
			}
			result.NumFailures++
			result.Failures[i] = err
			continue
		}
		result.Results = append(result.Results, pk)
		result.LastResult = pk
	}
	if len(result.Failures) == 0 {
		result.Failures = nil
	}
	return result, nil
}

func (t *Tx) deleteOne(table string, ts schema.TableSchema, pk keyrange.Key) error {
	bucket, err := t.raw.Bucket(table)
	if err != nil {
		return err
	}
	rawKey := keyrange.Encode(pk)
	existing, ok, err := bucket.Get(rawKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil // deleting an absent key is a silent no-op per spec.md §4.3
	}
	oldRec, err := decodeRecord(existing)
	if err != nil {
		return err
	}
	if err := bucket.Delete(rawKey); err != nil {
		return err
	}
	return t.reindex(table, ts, pk, oldRec, nil)
}

// mutateDeleteRange clears every record whose primary key falls in
// req.Range; an unbounded (All) range clears the entire table.
func (t *Tx) mutateDeleteRange(ctx context.Context, req storeapi.MutateRequest, ts schema.TableSchema) (storeapi.MutateResult, error) {
	qreq := storeapi.QueryRequest{Table: req.Table, Range: req.Range, Values: false}
	res, err := t.Query(ctx, qreq)
	if err != nil {
		return storeapi.MutateResult{}, err
	}
	for _, pk := range res.PrimaryKeys {
		if err := t.deleteOne(req.Table, ts, pk); err != nil {
			return storeapi.MutateResult{}, err
		}
	}
	return storeapi.MutateResult{Results: res.PrimaryKeys}, nil
}
