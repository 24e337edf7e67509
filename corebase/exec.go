package corebase

import (
	"context"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
)

// Tx adapts a RawTx into the full storeapi.Tx contract, implementing the
// §4.3 execution rules once for every backend.
type Tx struct {
	raw    RawTx
	schema schema.DatabaseSchema
}

// NewTx wraps raw for tables described by full.
func NewTx(raw RawTx, full schema.DatabaseSchema) *Tx {
	return &Tx{raw: raw, schema: full}
}

func (t *Tx) Writable() bool  { return t.raw.Writable() }
func (t *Tx) Commit() error   { return t.raw.Commit() }
func (t *Tx) Rollback() error { return t.raw.Rollback() }

func (t *Tx) tableSchema(table string) (schema.TableSchema, error) {
	ts, ok := t.schema[table]
	if !ok {
		return schema.TableSchema{}, errInvalidTable(table)
	}
	return ts, nil
}

// Get implements storeapi.Tx.Get: a direct primary-bucket lookup.
func (t *Tx) Get(ctx context.Context, table string, key keyrange.Key) (storeapi.Record, bool, error) {
	bucket, err := t.raw.Bucket(table)
	if err != nil {
		return nil, false, err
	}
	raw, ok, err := bucket.Get(keyrange.Encode(key))
	if err != nil || !ok {
		return nil, ok, err
	}
	rec, err := decodeRecord(raw)
	return rec, true, err
}

// GetMany implements storeapi.Tx.GetMany, preserving input order and
// absent entries as nil, per spec.md §4.3.
func (t *Tx) GetMany(ctx context.Context, table string, keys []keyrange.Key) ([]storeapi.Record, error) {
	out := make([]storeapi.Record, len(keys))
	for i, k := range keys {
		rec, ok, err := t.Get(ctx, table, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = rec
		}
	}
	return out, nil
}

// Count implements storeapi.Tx.Count.
func (t *Tx) Count(ctx context.Context, req storeapi.QueryRequest) (int64, error) {
	req.Values = false
	req.Limit = nil
	req.Offset = nil
	res, err := t.Query(ctx, req)
	if err != nil {
		return 0, err
	}
	return int64(len(res.PrimaryKeys)), nil
}

// bucketFor resolves the raw bucket a request targets: the primary bucket
// for an empty Index, or that index's own bucket.
func (t *Tx) bucketFor(req storeapi.QueryRequest) (RawBucket, error) {
	if req.Index == "" {
		return t.raw.Bucket(req.Table)
	}
	return t.raw.IndexBucket(req.Table, req.Index)
}

// Query implements storeapi.Tx.Query: dispatches among the AnyOf and
// generic cursor-loop execution rules of spec.md §4.3.
func (t *Tx) Query(ctx context.Context, req storeapi.QueryRequest) (storeapi.QueryResult, error) {
	ts, err := t.tableSchema(req.Table)
	if err != nil {
		return storeapi.QueryResult{}, err
	}
	idx := ts.PrimaryKey
	if req.Index != "" {
		var ok bool
		idx, ok = ts.IndexByName(req.Index)
		if !ok {
			return storeapi.QueryResult{}, errInvalidTable(req.Table + "." + req.Index)
		}
	}

	if req.Range.Kind == keyrange.AnyOfKind && req.Algorithm == nil {
		return t.queryAnyOf(ctx, req, ts, idx)
	}
	return t.queryCursor(ctx, req, ts, idx)
}

// queryAnyOf executes rule 2: a sequence of point queries in the
// canonical (input) order, concatenated, honoring limit by early exit.
func (t *Tx) queryAnyOf(ctx context.Context, req storeapi.QueryRequest, ts schema.TableSchema, idx schema.IndexSpec) (storeapi.QueryResult, error) {
	var result storeapi.QueryResult
	limit := -1
	if req.Limit != nil {
		limit = *req.Limit
	}
	for _, v := range req.Range.Values {
		if limit == 0 {
			break
		}
		pointReq := req
		pointReq.Range = keyrange.EqualRange(v)
		pointReq.Limit = nil
		sub, err := t.queryCursor(ctx, pointReq, ts, idx)
		if err != nil {
			return storeapi.QueryResult{}, err
		}
		if req.Values {
			for _, r := range sub.Records {
				if limit == 0 {
					break
				}
				result.Records = append(result.Records, r)
				if limit > 0 {
					limit--
				}
			}
		} else {
			for _, k := range sub.PrimaryKeys {
				if limit == 0 {
					break
				}
				result.PrimaryKeys = append(result.PrimaryKeys, k)
				if limit > 0 {
					limit--
				}
			}
		}
	}
	return result, nil
}

// queryCursor executes rules 3-5 by draining an iterator fully.
func (t *Tx) queryCursor(ctx context.Context, req storeapi.QueryRequest, ts schema.TableSchema, idx schema.IndexSpec) (storeapi.QueryResult, error) {
	it, err := t.newIterator(req, ts, idx)
	if err != nil {
		return storeapi.QueryResult{}, err
	}
	defer it.Close()

	var result storeapi.QueryResult
	for {
		ok, err := it.advance(ctx)
		if err != nil {
			return storeapi.QueryResult{}, err
		}
		if !ok {
			break
		}
		if req.Values {
			rec, err := it.record()
			if err != nil {
				return storeapi.QueryResult{}, err
			}
			result.Records = append(result.Records, rec)
		} else {
			result.PrimaryKeys = append(result.PrimaryKeys, it.curPrimary)
		}
	}
	return result, nil
}

// recordAt fetches the full record for primaryKey: directly from the
// cursor's value for a primary-bucket scan, or via a second lookup in the
// primary bucket for a secondary-index scan.
func (t *Tx) recordAt(table string, isSecondary bool, primaryKey keyrange.Key, cur RawCursor) (storeapi.Record, error) {
	if !isSecondary {
		return decodeRecord(cur.Value())
	}
	rec, ok, err := t.Get(context.Background(), table, primaryKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lerr.New(lerr.KindData, "dangling index entry")
	}
	return rec, nil
}

// OpenCursor implements storeapi.Tx.OpenCursor: a live, steppable iterator
// over req, surfacing one collected entry at a time rather than buffering
// the whole result (spec.md §4.5's CursorAlgorithm is driven this way so a
// caller can react to each step without materializing the full scan).
func (t *Tx) OpenCursor(ctx context.Context, req storeapi.QueryRequest) (storeapi.Cursor, error) {
	ts, err := t.tableSchema(req.Table)
	if err != nil {
		return nil, err
	}
	idx := ts.PrimaryKey
	if req.Index != "" {
		var ok bool
		idx, ok = ts.IndexByName(req.Index)
		if !ok {
			return nil, errInvalidTable(req.Table + "." + req.Index)
		}
	}
	it, err := t.newIterator(req, ts, idx)
	if err != nil {
		return nil, err
	}
	c := &liveCursor{ctx: ctx, it: it}
	ok, err := c.it.advance(ctx)
	if err != nil {
		it.Close()
		return nil, err
	}
	c.valid = ok
	return c, nil
}

// liveCursor adapts iterator to storeapi.Cursor's pull-one-at-a-time shape.
type liveCursor struct {
	ctx   context.Context
	it    *iterator
	valid bool
}

func (c *liveCursor) Valid() bool { return c.valid }

func (c *liveCursor) Key() keyrange.Key                { return c.it.curIndexKey }
func (c *liveCursor) PrimaryKey() keyrange.Key         { return c.it.curPrimary }
func (c *liveCursor) Value() (storeapi.Record, error)  { return c.it.record() }

func (c *liveCursor) Next() error {
	ok, err := c.it.advance(c.ctx)
	if err != nil {
		return err
	}
	c.valid = ok
	return nil
}

func (c *liveCursor) Close() error { return c.it.Close() }

// openRawCursor opens a RawCursor positioned at the start of req.Range in
// the scan direction. Positioning is coarse (it seeks to the range's own
// reference value when one exists); membership and the stop condition are
// both decided precisely afterward by keyrange.KeyRange.Contains and
// pastRange, since a raw byte prefix alone cannot express index-bucket
// half-open boundaries for compound or case-spanning ranges.
func (t *Tx) openRawCursor(req storeapi.QueryRequest, ts schema.TableSchema, idx schema.IndexSpec) (RawCursor, error) {
	bucket, err := t.bucketFor(req)
	if err != nil {
		return nil, err
	}
	cur, err := bucket.Cursor(req.Reverse)
	if err != nil {
		return nil, err
	}

	seed, ok := seedValue(req.Range, req.Reverse)
	if !ok {
		if req.Reverse {
			cur.Last()
		} else {
			cur.First()
		}
		return cur, nil
	}
	// RawCursor.Seek already honors direction: forward finds the first key
	// >= seed, reverse finds the first key <= seed. A false return means
	// no key exists on that side of seed, which the subsequent Valid()
	// check in the cursor loop correctly reports as an empty scan.
	target := keyrange.Encode(seed)
	if req.Reverse && req.Index != "" {
		// Index bucket keys are Encode(value) followed by the encoded
		// primary key, whose tag byte is below 0xFF; seeking to
		// Encode(seed)+0xFF lands on the last entry for seed rather than
		// before all of them.
		target = append(target, 0xFF)
	}
	cur.Seek(target)
	return cur, nil
}

// seedValue picks the range's own reference value to seek the cursor to
// before the per-key Contains/pastRange checks take over.
func seedValue(r keyrange.KeyRange, reverse bool) (keyrange.Key, bool) {
	switch r.Kind {
	case keyrange.EqualKind:
		return r.Value, true
	case keyrange.RangeKind:
		if !reverse && r.HasLower {
			return r.Lower, true
		}
		if reverse && r.HasUpper {
			return r.Upper, true
		}
		return nil, false
	default:
		return nil, false
	}
}

// pastRange reports whether indexKey has moved beyond the scan direction's
// terminal edge of r, so the cursor loop can stop instead of scanning the
// entire remaining keyspace.
func pastRange(r keyrange.KeyRange, indexKey keyrange.Key, reverse bool) bool {
	switch r.Kind {
	case keyrange.EqualKind:
		c := keyrange.Compare(indexKey, r.Value)
		if reverse {
			return c < 0
		}
		return c > 0
	case keyrange.RangeKind:
		if !reverse && r.HasUpper {
			c := keyrange.Compare(indexKey, r.Upper)
			return c > 0 || (c == 0 && r.UpperOpen)
		}
		if reverse && r.HasLower {
			c := keyrange.Compare(indexKey, r.Lower)
			return c < 0 || (c == 0 && r.LowerOpen)
		}
		return false
	default:
		return false
	}
}
