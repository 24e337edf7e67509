package query

import (
	"strings"

	"github.com/latticedb/lattice/ciplan"
	"github.com/latticedb/lattice/keyrange"
	"github.com/latticedb/lattice/storeapi"
)

// WhereClause is opened by table.Where(indexName) and exposes the
// predicate → KeyRange/algorithm table of spec.md §4.4.
type WhereClause struct {
	exec  Executor
	index string
}

// NewWhereClause is called by the table package to open a clause bound to
// one index (empty name selects the primary key).
func NewWhereClause(exec Executor, index string) WhereClause {
	return WhereClause{exec: exec, index: index}
}

func (w WhereClause) new(rng keyrange.KeyRange) Collection {
	return newCollection(w.exec, w.index, rng)
}

// All plans an unbounded scan of the clause's index, ascending. Used
// directly by table.Table's OrderBy/ToCollection entry points, which have
// no predicate to apply.
func (w WhereClause) All() Collection { return w.new(keyrange.Unbounded()) }

// Equals plans an Equal(v) point lookup.
func (w WhereClause) Equals(v keyrange.Key) Collection { return w.new(keyrange.EqualRange(v)) }

// NotEqual plans a full-range scan filtered to exclude v (executed as a
// cursor + filter, spec.md §4.3 rule 3).
func (w WhereClause) NotEqual(v keyrange.Key) Collection {
	return w.new(keyrange.NotEqualRange(v))
}

// AnyOf plans AnyOf(unique(vs)); an empty set is an always-false filter, a
// singleton delegates to Equals.
func (w WhereClause) AnyOf(vs []keyrange.Key) Collection {
	if len(vs) == 0 {
		return w.new(keyrange.Unbounded()).Filter(alwaysFalseFilter())
	}
	if len(vs) == 1 {
		return w.Equals(vs[0])
	}
	return w.new(keyrange.AnyOf(vs))
}

// NoneOf plans All + a filter excluding vs (order-compared, so it also
// covers compound keys via keyrange.Equal).
func (w WhereClause) NoneOf(vs []keyrange.Key) Collection {
	return w.new(keyrange.Unbounded()).Filter(noneOfFilter(w.index, vs))
}

// noneOfFilter excludes any record whose index value order-compares equal
// to one of vs; a record with no value at all for index passes (there is
// nothing to exclude it on).
func noneOfFilter(index string, vs []keyrange.Key) RecordFilter {
	return func(_ keyrange.Key, rec storeapi.Record) bool {
		v, ok := rec[index]
		if !ok {
			return true
		}
		for _, excluded := range vs {
			if keyrange.Equal(v, excluded) {
				return false
			}
		}
		return true
	}
}

// alwaysFalseFilter is the always-empty-result predicate used for an
// AnyOf/AnyOfIgnoreCase call with no candidates.
func alwaysFalseFilter() RecordFilter {
	return func(keyrange.Key, storeapi.Record) bool { return false }
}

// Above/AboveOrEqual plan Range{lower: v, upper: absent}.
func (w WhereClause) Above(v keyrange.Key) Collection   { return w.new(keyrange.Above(v, true)) }
func (w WhereClause) AboveOrEqual(v keyrange.Key) Collection { return w.new(keyrange.Above(v, false)) }

// Below/BelowOrEqual plan Range{upper: v, lower: absent}.
func (w WhereClause) Below(v keyrange.Key) Collection   { return w.new(keyrange.Below(v, true)) }
func (w WhereClause) BelowOrEqual(v keyrange.Key) Collection { return w.new(keyrange.Below(v, false)) }

// Between plans a two-sided range honoring the requested inclusivity.
func (w WhereClause) Between(lo, hi keyrange.Key, includeLo, includeHi bool) (Collection, error) {
	rng, err := keyrange.Between(lo, hi, includeLo, includeHi)
	if err != nil {
		return Collection{}, err
	}
	return w.new(rng), nil
}

// StartsWith plans Range [p, nextAfter(p)); an empty prefix is All.
func (w WhereClause) StartsWith(prefix string) Collection {
	return w.new(keyrange.StartsWith(prefix))
}

// StartsWithAnyOf plans a range spanning all prefixes plus a filter; a
// single prefix delegates to StartsWith.
func (w WhereClause) StartsWithAnyOf(prefixes []string) Collection {
	if len(prefixes) == 1 {
		return w.StartsWith(prefixes[0])
	}
	lo, hi := spanningBounds(prefixes)
	rng := keyrange.Unbounded()
	if lo != "" || hi != "" {
		if between, err := keyrange.Between(lo, hi, true, true); err == nil {
			rng = between
		}
	}
	return w.new(rng).Filter(startsWithAnyOfFilter(w.index, prefixes))
}

// startsWithAnyOfFilter matches a record whose string index value starts
// with any one of prefixes, case-sensitively.
func startsWithAnyOfFilter(index string, prefixes []string) RecordFilter {
	return func(_ keyrange.Key, rec storeapi.Record) bool {
		v, ok := rec[index].(string)
		if !ok {
			return false
		}
		for _, p := range prefixes {
			if strings.HasPrefix(v, p) {
				return true
			}
		}
		return false
	}
}

func spanningBounds(prefixes []string) (lo, hi string) {
	for i, p := range prefixes {
		next, ok := keyrange.NextStringAfter(p)
		if !ok {
			next = p + keyrange.HighSentinel
		}
		if i == 0 || p < lo {
			lo = p
		}
		if i == 0 || next > hi {
			hi = next
		}
	}
	return lo, hi
}

// EqualsIgnoreCase plans a ciplan cursor algorithm scoped to [upper(v),
// lower(v)] inclusive of both ends.
func (w WhereClause) EqualsIgnoreCase(v string) (Collection, error) {
	return w.ignoreCase([]string{v}, ciplan.ModeEquals, false)
}

// StartsWithIgnoreCase plans a ciplan algorithm scoped to
// [upper(p), lower(p)+sentinel].
func (w WhereClause) StartsWithIgnoreCase(p string) (Collection, error) {
	return w.ignoreCase([]string{p}, ciplan.ModeStartsWith, false)
}

// AnyOfIgnoreCase plans a ciplan algorithm spanning every needle; if any
// needle is empty the whole predicate falls back to All + a filter that
// compares the index value case-insensitively against every needle.
func (w WhereClause) AnyOfIgnoreCase(vs []string) (Collection, error) {
	for _, v := range vs {
		if v == "" {
			return w.new(keyrange.Unbounded()).Filter(anyOfIgnoreCaseFilter(w.index, vs)), nil
		}
	}
	return w.ignoreCase(vs, ciplan.ModeEquals, false)
}

// anyOfIgnoreCaseFilter matches a record whose string index value equals
// any one of vs, compared case-insensitively.
func anyOfIgnoreCaseFilter(index string, vs []string) RecordFilter {
	return func(_ keyrange.Key, rec storeapi.Record) bool {
		v, ok := rec[index].(string)
		if !ok {
			return false
		}
		lv := strings.ToLower(v)
		for _, n := range vs {
			if lv == strings.ToLower(n) {
				return true
			}
		}
		return false
	}
}

// StartsWithAnyOfIgnoreCase plans All + filter; range narrowing is
// permitted as an optimization but not required, so this always takes the
// simple, always-correct path.
func (w WhereClause) StartsWithAnyOfIgnoreCase(prefixes []string) Collection {
	return w.new(keyrange.Unbounded()).Filter(startsWithAnyOfIgnoreCaseFilter(w.index, prefixes))
}

// startsWithAnyOfIgnoreCaseFilter is startsWithAnyOfFilter's case-folded twin.
func startsWithAnyOfIgnoreCaseFilter(index string, prefixes []string) RecordFilter {
	return func(_ keyrange.Key, rec storeapi.Record) bool {
		v, ok := rec[index].(string)
		if !ok {
			return false
		}
		lv := strings.ToLower(v)
		for _, p := range prefixes {
			if strings.HasPrefix(lv, strings.ToLower(p)) {
				return true
			}
		}
		return false
	}
}

// RangeBound is one (lo, hi) pair of spec.md's `inAnyRange(rs, incLo,
// incHi)`: a raw pair of bounds, with includeLo/includeHi applied
// uniformly across every pair by the caller, the same way Between applies
// them to a single pair.
type RangeBound struct {
	Lo, Hi keyrange.Key
}

// InAnyRange plans Between(lo, hi, includeLo, includeHi) for a single
// bound, or All + filter using the equivalent KeyRange.Contains for
// several. includeLo/includeHi are applied to every bound, matching
// Between's own inclusivity contract, rather than being accepted and
// discarded.
func (w WhereClause) InAnyRange(bounds []RangeBound, includeLo, includeHi bool) (Collection, error) {
	ranges, err := buildRanges(bounds, includeLo, includeHi)
	if err != nil {
		return Collection{}, err
	}
	if len(ranges) == 1 {
		return w.new(ranges[0]), nil
	}
	return w.new(keyrange.Unbounded()).Filter(inAnyRangeFilter(w.index, ranges)), nil
}

func buildRanges(bounds []RangeBound, includeLo, includeHi bool) ([]keyrange.KeyRange, error) {
	ranges := make([]keyrange.KeyRange, 0, len(bounds))
	for _, b := range bounds {
		rng, err := keyrange.Between(b.Lo, b.Hi, includeLo, includeHi)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, rng)
	}
	return ranges, nil
}

// inAnyRangeFilter matches a record whose index value falls inside any one
// of ranges.
func inAnyRangeFilter(index string, ranges []keyrange.KeyRange) RecordFilter {
	return func(_ keyrange.Key, rec storeapi.Record) bool {
		v, ok := rec[index]
		if !ok {
			return false
		}
		for _, r := range ranges {
			if r.Contains(v) {
				return true
			}
		}
		return false
	}
}

// ignoreCase builds a ciplan.Planner over needles and adapts its Next
// step function into a storeapi.CursorAlgorithm, per spec.md §4.5.
func (w WhereClause) ignoreCase(needles []string, mode ciplan.Mode, reverse bool) (Collection, error) {
	rng, alg, err := planIgnoreCase(needles, mode, reverse)
	if err != nil {
		return Collection{}, err
	}
	c := w.new(rng)
	c.algorithm = alg
	c.reverse = reverse
	return c, nil
}

// planIgnoreCase is ignoreCase's Executor-free core, factored out so
// OrClause can build the same scoped-range-plus-algorithm pair without
// going through a WhereClause.
func planIgnoreCase(needles []string, mode ciplan.Mode, reverse bool) (keyrange.KeyRange, storeapi.CursorAlgorithm, error) {
	planner, err := ciplan.Plan(needles, mode, reverse)
	if err != nil {
		return keyrange.KeyRange{}, nil, err
	}
	lo, hi := planner.Bounds()
	rng, err := keyrange.Between(lo, hi, true, true)
	if err != nil {
		return keyrange.KeyRange{}, nil, err
	}
	return rng, adaptPlanner(planner), nil
}

// adaptPlanner wraps a ciplan.Planner's Next into the storeapi
// CursorAlgorithm contract; it requires the index key to be a string.
func adaptPlanner(planner *ciplan.Planner) storeapi.CursorAlgorithm {
	return func(indexKey keyrange.Key) storeapi.Step {
		s, ok := indexKey.(string)
		if !ok {
			return storeapi.Step{Outcome: storeapi.StepStop}
		}
		step := planner.Next(s)
		switch step.Outcome {
		case ciplan.Collect:
			return storeapi.Step{Outcome: storeapi.StepCollect}
		case ciplan.Skip:
			return storeapi.Step{Outcome: storeapi.StepSkip}
		case ciplan.Jump:
			return storeapi.Step{Outcome: storeapi.StepJump, JumpKey: step.JumpKey}
		default:
			return storeapi.Step{Outcome: storeapi.StepStop}
		}
	}
}
