package query

import (
	"context"
	"sort"

	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/storeapi"
)

// primaryKeyOf extracts rec's primary key via path (single property or an
// ordered compound path), for collections whose plan only returned values.
func primaryKeyOf(rec storeapi.Record, path []string) (keyrange.Key, bool) {
	if len(path) == 0 {
		return nil, false
	}
	if len(path) == 1 {
		v, ok := rec[path[0]]
		return v, ok
	}
	parts := make([]keyrange.Key, 0, len(path))
	for _, p := range path {
		v, ok := rec[p]
		if !ok {
			return nil, false
		}
		parts = append(parts, v)
	}
	return keyrange.Key(parts), true
}

// ToArray executes the main context, then each or-context, deduplicating
// the union by primary key and applying the outer limit to the union.
func (c Collection) ToArray(ctx context.Context) ([]storeapi.Record, error) {
	recs, err := c.execMain(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]storeapi.Record, 0, len(recs))
	for _, r := range recs {
		pk, ok := primaryKeyOf(r, c.exec.PrimaryKeyPath())
		key := ""
		if ok {
			key = keySortKey(pk)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, r)
	}
	for _, sub := range c.or {
		subRecs, err := sub.execMain(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range subRecs {
			pk, ok := primaryKeyOf(r, c.exec.PrimaryKeyPath())
			if ok {
				key := keySortKey(pk)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			out = append(out, r)
		}
	}
	if c.limit != nil && len(out) > *c.limit {
		out = out[:*c.limit]
	}
	return out, nil
}

// execMain runs the plan, applying the in-memory filter/until and
// offset/limit policy of spec.md §4.4 when the backend wasn't asked to.
func (c Collection) execMain(ctx context.Context) ([]storeapi.Record, error) {
	req := c.request(true)
	res, err := c.exec.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	recs := res.Records
	applyInMemory := c.algorithm == nil && (c.filter != nil || c.until != nil)
	if !applyInMemory {
		return recs, nil
	}

	out := make([]storeapi.Record, 0, len(recs))
	for _, r := range recs {
		var pk keyrange.Key
		if p, ok := primaryKeyOf(r, c.exec.PrimaryKeyPath()); ok {
			pk = p
		}
		if c.until != nil && !c.until(pk, r) {
			break
		}
		if c.filter != nil && !c.filter(pk, r) {
			continue
		}
		out = append(out, r)
	}
	if c.offset != nil {
		if *c.offset >= len(out) {
			out = nil
		} else {
			out = out[*c.offset:]
		}
	}
	if c.limit != nil && len(out) > *c.limit {
		out = out[:*c.limit]
	}
	return out, nil
}

// PrimaryKeys implements the `primaryKeys`/`keys` terminal: a fast path
// (no filter/until/or) requests values=false directly; otherwise it
// materializes values and extracts keys by key-path, then applies
// or-merge + limit.
func (c Collection) PrimaryKeys(ctx context.Context) ([]keyrange.Key, error) {
	if c.filter == nil && c.until == nil && len(c.or) == 0 {
		req := c.request(false)
		res, err := c.exec.Query(ctx, req)
		if err != nil {
			return nil, err
		}
		return res.PrimaryKeys, nil
	}
	recs, err := c.ToArray(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]keyrange.Key, 0, len(recs))
	for _, r := range recs {
		if pk, ok := primaryKeyOf(r, c.exec.PrimaryKeyPath()); ok {
			out = append(out, pk)
		}
	}
	return out, nil
}

// Keys is an alias for PrimaryKeys.
func (c Collection) Keys(ctx context.Context) ([]keyrange.Key, error) { return c.PrimaryKeys(ctx) }

// EachPrimaryKey/EachKey are iteration aliases over PrimaryKeys.
func (c Collection) EachPrimaryKey(ctx context.Context, fn func(keyrange.Key) error) error {
	keys, err := c.PrimaryKeys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}
func (c Collection) EachKey(ctx context.Context, fn func(keyrange.Key) error) error {
	return c.EachPrimaryKey(ctx, fn)
}

// Each is the `each` terminal of spec.md §2 component 8: it drives
// ToArray's same plan-then-post-filter path and calls fn once per record
// instead of collecting a slice, mirroring how EachPrimaryKey wraps
// PrimaryKeys.
func (c Collection) Each(ctx context.Context, fn func(storeapi.Record) error) error {
	recs, err := c.ToArray(ctx)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// First/Last apply limit(1) to the current (or reversed) context.
func (c Collection) First(ctx context.Context) (storeapi.Record, bool, error) {
	recs, err := c.Limit(1).ToArray(ctx)
	if err != nil || len(recs) == 0 {
		return nil, false, err
	}
	return recs[0], true, nil
}

func (c Collection) Last(ctx context.Context) (storeapi.Record, bool, error) {
	recs, err := c.Reverse().Limit(1).ToArray(ctx)
	if err != nil || len(recs) == 0 {
		return nil, false, err
	}
	return recs[0], true, nil
}

// Count materializes and counts when a filter/until/or is set; otherwise
// it delegates straight to the backend's count.
func (c Collection) Count(ctx context.Context) (int64, error) {
	if c.filter != nil || c.until != nil || len(c.or) > 0 {
		recs, err := c.ToArray(ctx)
		if err != nil {
			return 0, err
		}
		return int64(len(recs)), nil
	}
	return c.exec.Count(ctx, c.request(false))
}

// SortBy materializes the collection then stable-sorts by the projection
// at keyPath, using keyrange's order-compare.
func (c Collection) SortBy(ctx context.Context, keyPath string) ([]storeapi.Record, error) {
	recs, err := c.ToArray(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return keyrange.Compare(recs[i][keyPath], recs[j][keyPath]) < 0
	})
	return recs, nil
}

// Modify reads matching records, merges changes into each (object-merge,
// or a function that may mutate in place or return a partial), and issues
// a bulk put with the original primary keys. Refused on or-contexts or
// outbound-key tables, per spec.md §4.4/§7.
func (c Collection) Modify(ctx context.Context, changes storeapi.Record, fn func(storeapi.Record) storeapi.Record) (int, error) {
	if len(c.or) > 0 {
		return 0, errOrContextsRefused
	}
	if c.exec.Outbound() {
		return 0, errOutboundRefused
	}
	recs, err := c.ToArray(ctx)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	keys := make([]keyrange.Key, 0, len(recs))
	values := make([]storeapi.Record, 0, len(recs))
	for _, r := range recs {
		pk, ok := primaryKeyOf(r, c.exec.PrimaryKeyPath())
		if !ok {
			continue
		}
		merged := mergeRecord(r, changes, fn)
		keys = append(keys, pk)
		values = append(values, merged)
	}
	res, err := c.exec.Mutate(ctx, storeapi.MutateRequest{
		Kind: storeapi.MutatePut, Table: c.exec.TableName(), Values: values, Keys: keys,
	})
	if err != nil {
		return 0, err
	}
	if res.NumFailures > 0 {
		return len(values) - res.NumFailures, lerr.New(lerr.KindConstraint, "modify failed for one or more records")
	}
	return len(values), nil
}

func mergeRecord(orig, changes storeapi.Record, fn func(storeapi.Record) storeapi.Record) storeapi.Record {
	if fn != nil {
		clone := cloneRecord(orig)
		result := fn(clone)
		if result != nil {
			return result
		}
		return clone
	}
	merged := cloneRecord(orig)
	for k, v := range changes {
		merged[k] = v
	}
	return merged
}

func cloneRecord(rec storeapi.Record) storeapi.Record {
	out := make(storeapi.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// Delete refuses on or-contexts. An unfiltered, non-indexed plan maps to
// deleteRange after a pre-count; otherwise it reads values, extracts
// keys, and issues a bulk delete (refused on outbound tables with a
// filter or index, since there is no key to look values up by).
func (c Collection) Delete(ctx context.Context) (int, error) {
	if len(c.or) > 0 {
		return 0, errOrContextsRefused
	}
	unfiltered := c.filter == nil && c.until == nil && c.algorithm == nil
	if unfiltered && c.index == "" {
		count, err := c.exec.Count(ctx, c.request(false))
		if err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, nil
		}
		_, err = c.exec.Mutate(ctx, storeapi.MutateRequest{
			Kind: storeapi.MutateDeleteRange, Table: c.exec.TableName(), Range: c.rng,
		})
		if err != nil {
			return 0, err
		}
		return int(count), nil
	}
	if c.exec.Outbound() && (c.filter != nil || c.until != nil || c.algorithm != nil || c.index != "") {
		return 0, errOutboundRefused
	}
	recs, err := c.ToArray(ctx)
	if err != nil {
		return 0, err
	}
	keys := make([]keyrange.Key, 0, len(recs))
	for _, r := range recs {
		if pk, ok := primaryKeyOf(r, c.exec.PrimaryKeyPath()); ok {
			keys = append(keys, pk)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	res, err := c.exec.Mutate(ctx, storeapi.MutateRequest{Kind: storeapi.MutateDelete, Table: c.exec.TableName(), Keys: keys})
	if err != nil {
		return 0, err
	}
	return len(keys) - res.NumFailures, nil
}
