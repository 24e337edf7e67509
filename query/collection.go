// Package query implements the Where-Clause and Collection pipeline of
// spec.md §4.4: predicate builders that compile to a keyrange.KeyRange (or
// a ciplan cursor algorithm for the case-insensitive variants), and a
// Collection that accumulates transformations before a terminal op drives
// the Core Store Adapter. The clone-with-modification builder shape is
// grounded on the teacher's query/model_query.go Where/Limit/clone idiom,
// generalized from SQL predicates to KeyRange predicates.
package query

import (
	"context"

	"github.com/latticedb/lattice/ciplan"
	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/lerr"
	"github.com/latticedb/lattice/storeapi"
)

// Executor is the narrow surface Collection needs from its owning table:
// enough to run a query/count/mutate against one backend transaction
// without this package depending on the table or txctx packages.
type Executor interface {
	TableName() string
	PrimaryKeyPath() []string
	Outbound() bool
	Query(ctx context.Context, req storeapi.QueryRequest) (storeapi.QueryResult, error)
	Count(ctx context.Context, req storeapi.QueryRequest) (int64, error)
	Mutate(ctx context.Context, req storeapi.MutateRequest) (storeapi.MutateResult, error)
}

// RecordFilter is a user predicate evaluated against the full record,
// after the range/algorithm stage has already narrowed the scan.
type RecordFilter func(primaryKey keyrange.Key, rec storeapi.Record) bool

// Collection is an immutable, clone-with-modification query builder.
// Every transformation method returns a new Collection; the receiver is
// left untouched, the same way the teacher's model query clones itself
// before mutating a field.
type Collection struct {
	exec      Executor
	index     string
	rng       keyrange.KeyRange
	reverse   bool
	algorithm storeapi.CursorAlgorithm
	filter    RecordFilter
	until     RecordFilter
	limit     *int
	offset    *int
	raw       bool
	unique    bool
	or        []Collection
}

func newCollection(exec Executor, index string, rng keyrange.KeyRange) Collection {
	return Collection{exec: exec, index: index, rng: rng}
}

// clone returns a shallow copy; or is copied into a new slice, so appending
// to the copy's or-set (see Or) never touches the receiver's.
func (c Collection) clone() Collection {
	out := c
	if c.or != nil {
		out.or = append([]Collection{}, c.or...)
	}
	return out
}

// Filter (spec.md's `and`/`filter`) ANDs an additional record-level
// predicate onto the collection. On a collection that carries a cursor
// algorithm (the ignore-case predicates) the algorithm owns all filtering
// and this predicate is not applied.
func (c Collection) Filter(f RecordFilter) Collection {
	out := c.clone()
	if out.filter == nil {
		out.filter = f
	} else {
		prev := out.filter
		out.filter = func(pk keyrange.Key, rec storeapi.Record) bool { return prev(pk, rec) && f(pk, rec) }
	}
	return out
}

// And is an alias for Filter, matching spec.md's `and/filter` pairing.
func (c Collection) And(f RecordFilter) Collection { return c.Filter(f) }

// Until stops the scan (not merely filters) the first time f reports
// false, short-circuiting further cursor advances.
func (c Collection) Until(f RecordFilter) Collection {
	out := c.clone()
	out.until = f
	return out
}

// Limit caps the number of results.
func (c Collection) Limit(n int) Collection {
	out := c.clone()
	out.limit = &n
	return out
}

// Offset skips the first n matching results.
func (c Collection) Offset(n int) Collection {
	out := c.clone()
	out.offset = &n
	return out
}

// Reverse (and its alias Desc) walks the index backward.
func (c Collection) Reverse() Collection {
	out := c.clone()
	out.reverse = !out.reverse
	return out
}
func (c Collection) Desc() Collection { return c.Reverse() }

// Raw bypasses read hooks; hooks live above this layer (the table facade),
// so here Raw is recorded for the caller to inspect, not acted on.
func (c Collection) Raw() Collection {
	out := c.clone()
	out.raw = true
	return out
}

// Unique sets CollectionContext's unique-keys flag (spec.md §3): the
// cursor loop drops consecutive duplicate index keys (§4.3 rule 4),
// emulating a backend "unique" cursor direction that may not exist.
func (c Collection) Unique() Collection {
	out := c.clone()
	out.unique = true
	return out
}

// Or starts a new OrClause whose predicates build a sibling context that
// toArray/primaryKeys union with the receiver's own results.
func (c Collection) Or(index string) *OrClause {
	return &OrClause{base: c, wc: WhereClause{exec: c.exec, index: index}}
}

// OrClause appends the next predicate's Collection to the base's or-set.
type OrClause struct {
	base Collection
	wc   WhereClause
}

func (o *OrClause) build(rng keyrange.KeyRange) Collection {
	sub := newCollection(o.wc.exec, o.wc.index, rng)
	out := o.base.clone()
	out.or = append(out.or, sub)
	return out
}

func (o *OrClause) buildAlgorithm(rng keyrange.KeyRange, alg storeapi.CursorAlgorithm) Collection {
	sub := newCollection(o.wc.exec, o.wc.index, rng)
	sub.algorithm = alg
	out := o.base.clone()
	out.or = append(out.or, sub)
	return out
}

// buildFiltered is build's twin for predicates that narrow with a
// RecordFilter on top of (or instead of) a KeyRange — AnyOf/NoneOf/
// StartsWithAnyOf and their ignore-case variants all need the filter to
// apply to the or-sub-context only, not to the accumulated base.
func (o *OrClause) buildFiltered(rng keyrange.KeyRange, f RecordFilter) Collection {
	sub := newCollection(o.wc.exec, o.wc.index, rng)
	sub.filter = f
	out := o.base.clone()
	out.or = append(out.or, sub)
	return out
}

// index exposes the clause's bound index name to predicate methods that
// need it to build a RecordFilter (e.g. NoneOf, StartsWithAnyOf).
func (o *OrClause) index() string { return o.wc.index }

// Equals plans an Equal(v) point lookup for the or-context.
func (o *OrClause) Equals(v keyrange.Key) Collection { return o.build(keyrange.EqualRange(v)) }

// NotEqual plans a full-range scan filtered to exclude v.
func (o *OrClause) NotEqual(v keyrange.Key) Collection { return o.build(keyrange.NotEqualRange(v)) }

// AnyOf mirrors WhereClause.AnyOf: empty is always-false, a singleton
// delegates to Equals.
func (o *OrClause) AnyOf(vs []keyrange.Key) Collection {
	if len(vs) == 0 {
		return o.buildFiltered(keyrange.Unbounded(), alwaysFalseFilter())
	}
	if len(vs) == 1 {
		return o.Equals(vs[0])
	}
	return o.build(keyrange.AnyOf(vs))
}

// NoneOf mirrors WhereClause.NoneOf.
func (o *OrClause) NoneOf(vs []keyrange.Key) Collection {
	return o.buildFiltered(keyrange.Unbounded(), noneOfFilter(o.index(), vs))
}

// Above/AboveOrEqual/Below/BelowOrEqual mirror WhereClause's one-sided
// range builders.
func (o *OrClause) Above(v keyrange.Key) Collection        { return o.build(keyrange.Above(v, true)) }
func (o *OrClause) AboveOrEqual(v keyrange.Key) Collection { return o.build(keyrange.Above(v, false)) }
func (o *OrClause) Below(v keyrange.Key) Collection        { return o.build(keyrange.Below(v, true)) }
func (o *OrClause) BelowOrEqual(v keyrange.Key) Collection { return o.build(keyrange.Below(v, false)) }

// Between mirrors WhereClause.Between.
func (o *OrClause) Between(lo, hi keyrange.Key, includeLo, includeHi bool) (Collection, error) {
	rng, err := keyrange.Between(lo, hi, includeLo, includeHi)
	if err != nil {
		return Collection{}, err
	}
	return o.build(rng), nil
}

// StartsWith mirrors WhereClause.StartsWith.
func (o *OrClause) StartsWith(prefix string) Collection {
	return o.build(keyrange.StartsWith(prefix))
}

// StartsWithAnyOf mirrors WhereClause.StartsWithAnyOf.
func (o *OrClause) StartsWithAnyOf(prefixes []string) Collection {
	if len(prefixes) == 1 {
		return o.StartsWith(prefixes[0])
	}
	lo, hi := spanningBounds(prefixes)
	rng := keyrange.Unbounded()
	if lo != "" || hi != "" {
		if between, err := keyrange.Between(lo, hi, true, true); err == nil {
			rng = between
		}
	}
	return o.buildFiltered(rng, startsWithAnyOfFilter(o.index(), prefixes))
}

// InAnyRange mirrors WhereClause.InAnyRange.
func (o *OrClause) InAnyRange(bounds []RangeBound, includeLo, includeHi bool) (Collection, error) {
	ranges, err := buildRanges(bounds, includeLo, includeHi)
	if err != nil {
		return Collection{}, err
	}
	if len(ranges) == 1 {
		return o.build(ranges[0]), nil
	}
	return o.buildFiltered(keyrange.Unbounded(), inAnyRangeFilter(o.index(), ranges)), nil
}

// EqualsIgnoreCase mirrors WhereClause.EqualsIgnoreCase.
func (o *OrClause) EqualsIgnoreCase(v string) (Collection, error) {
	return o.ignoreCase([]string{v}, ciplan.ModeEquals)
}

// StartsWithIgnoreCase mirrors WhereClause.StartsWithIgnoreCase.
func (o *OrClause) StartsWithIgnoreCase(p string) (Collection, error) {
	return o.ignoreCase([]string{p}, ciplan.ModeStartsWith)
}

// AnyOfIgnoreCase mirrors WhereClause.AnyOfIgnoreCase.
func (o *OrClause) AnyOfIgnoreCase(vs []string) (Collection, error) {
	for _, v := range vs {
		if v == "" {
			return o.buildFiltered(keyrange.Unbounded(), anyOfIgnoreCaseFilter(o.index(), vs)), nil
		}
	}
	return o.ignoreCase(vs, ciplan.ModeEquals)
}

// StartsWithAnyOfIgnoreCase mirrors WhereClause.StartsWithAnyOfIgnoreCase.
func (o *OrClause) StartsWithAnyOfIgnoreCase(prefixes []string) Collection {
	return o.buildFiltered(keyrange.Unbounded(), startsWithAnyOfIgnoreCaseFilter(o.index(), prefixes))
}

// ignoreCase plans a ciplan algorithm over needles and wires it into the
// or-sub-context via buildAlgorithm, the method this type previously left
// dead.
func (o *OrClause) ignoreCase(needles []string, mode ciplan.Mode) (Collection, error) {
	rng, alg, err := planIgnoreCase(needles, mode, false)
	if err != nil {
		return Collection{}, err
	}
	return o.buildAlgorithm(rng, alg), nil
}

func (c Collection) request(values bool) storeapi.QueryRequest {
	req := storeapi.QueryRequest{
		Table:     c.exec.TableName(),
		Index:     c.index,
		Range:     c.rng,
		Values:    values,
		Reverse:   c.reverse,
		Unique:    c.unique,
		Algorithm: c.algorithm,
		Raw:       c.raw,
	}
	// Post-processing policy (§4.4): filter/until present ⇒ apply
	// offset/limit in memory instead of forwarding to the backend, unless
	// a cursor algorithm already owns all filtering.
	if c.algorithm != nil || (c.filter == nil && c.until == nil) {
		req.Limit = c.limit
		req.Offset = c.offset
	}
	return req
}

// keySortKey gives a stable, order-preserving string form of a key for
// primary-key deduplication (order of dedup doesn't matter, only identity).
func keySortKey(k keyrange.Key) string {
	return string(keyrange.Encode(k))
}

var errOrContextsRefused = lerr.New(lerr.KindInvalidState, "operation does not support or-contexts")
var errOutboundRefused = lerr.New(lerr.KindInvalidState, "operation refused on an outbound-key table")
