package corebase

import (
	"context"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/schema"
	"github.com/latticedb/lattice/storeapi"
)

// iterator holds the shared cursor-walk state §4.3's query/count/openCursor
// rules all drive: it applies the CursorAlgorithm/Range membership check,
// the NotEqual and Unique filters, and offset skipping, yielding one
// collected (indexKey, primaryKey) pair per advance() call. Query buffers
// every yielded pair; Cursor surfaces them one at a time.
type iterator struct {
	tx          *Tx
	req         storeapi.QueryRequest
	raw         RawCursor
	isSecondary bool
	arity       int
	pkArity     int
	offset      int
	limit       int // -1 means unbounded
	haveLast    bool
	lastKey     keyrange.Key
	done        bool

	curIndexKey keyrange.Key
	curPrimary  keyrange.Key
}

func (t *Tx) newIterator(req storeapi.QueryRequest, ts schema.TableSchema, idx schema.IndexSpec) (*iterator, error) {
	raw, err := t.openRawCursor(req, ts, idx)
	if err != nil {
		return nil, err
	}
	arity := indexArity(idx)
	if req.Index == "" {
		arity = primaryArity(ts.PrimaryKey)
	}
	offset := 0
	if req.Offset != nil {
		offset = *req.Offset
	}
	limit := -1
	if req.Limit != nil {
		limit = *req.Limit
	}
	return &iterator{
		tx:          t,
		req:         req,
		raw:         raw,
		isSecondary: req.Index != "",
		arity:       arity,
		pkArity:     primaryArity(ts.PrimaryKey),
		offset:      offset,
		limit:       limit,
	}, nil
}

func (it *iterator) Close() error { return it.raw.Close() }

// advance walks the raw cursor forward until it yields a record that
// survives every filtering stage, or the scan is exhausted. It returns
// false once there is nothing more to yield, ever (limit reached or
// cursor exhausted).
func (it *iterator) advance(ctx context.Context) (bool, error) {
	if it.done {
		return false, nil
	}
	if it.limit == 0 {
		it.done = true
		return false, nil
	}

	for it.raw.Valid() {
		if ctx.Err() != nil {
			return false, lerr.Wrap(lerr.KindAbort, "query aborted", ctx.Err())
		}

		var indexKey, primaryKey keyrange.Key
		var err error
		if it.isSecondary {
			indexKey, primaryKey, err = splitIndexBucketKey(it.raw.Key(), it.arity, it.pkArity)
		} else {
			indexKey, _, err = keyrange.Decode(it.raw.Key())
			primaryKey = indexKey
		}
		if err != nil {
			return false, err
		}

		if it.req.Algorithm != nil {
			step := it.req.Algorithm(indexKey)
			switch step.Outcome {
			case storeapi.StepStop:
				it.done = true
				return false, nil
			case storeapi.StepSkip:
				if !advanceRaw(it.raw, it.req.Reverse) {
					it.done = true
					return false, nil
				}
				continue
			case storeapi.StepJump:
				if !it.raw.Seek(keyrange.Encode(step.JumpKey)) {
					it.done = true
					return false, nil
				}
				continue
			}
		} else {
			if !it.req.Range.Contains(indexKey) {
				if pastRange(it.req.Range, indexKey, it.req.Reverse) {
					it.done = true
					return false, nil
				}
				if !advanceRaw(it.raw, it.req.Reverse) {
					it.done = true
					return false, nil
				}
				continue
			}
			if it.req.Range.Kind == keyrange.NotEqualKind && keyrange.Equal(indexKey, it.req.Range.Value) {
				if !advanceRaw(it.raw, it.req.Reverse) {
					it.done = true
					return false, nil
				}
				continue
			}
		}

		if it.req.Unique && it.haveLast && keyrange.Equal(indexKey, it.lastKey) {
			if !advanceRaw(it.raw, it.req.Reverse) {
				it.done = true
				return false, nil
			}
			continue
		}
		it.haveLast, it.lastKey = true, indexKey

		if it.req.Algorithm == nil && it.req.Filter != nil {
			rec, err := it.tx.recordAt(it.req.Table, it.isSecondary, primaryKey, it.raw)
			if err != nil {
				return false, err
			}
			if !it.req.Filter(primaryKey, rec) {
				if !advanceRaw(it.raw, it.req.Reverse) {
					it.done = true
					return false, nil
				}
				continue
			}
		}

		if it.offset > 0 {
			it.offset--
			if !advanceRaw(it.raw, it.req.Reverse) {
				it.done = true
				return false, nil
			}
			continue
		}

		it.curIndexKey, it.curPrimary = indexKey, primaryKey
		if it.limit > 0 {
			it.limit--
		}
		return true, nil
	}
	it.done = true
	return false, nil
}

func advanceRaw(cur RawCursor, reverse bool) bool {
	if reverse {
		return cur.Prev()
	}
	return cur.Next()
}

func (it *iterator) record() (storeapi.Record, error) {
	return it.tx.recordAt(it.req.Table, it.isSecondary, it.curPrimary, it.raw)
}
