package keyrange

import "github.com/latticedb/lattice/lerr"

// Kind tags the KeyRange variant (spec.md §3).
type Kind int

const (
	All Kind = iota
	EqualKind
	RangeKind
	AnyOfKind
	NotEqualKind
)

// KeyRange is the tagged union describing key constraints independently of
// any backend, per spec.md §3.
type KeyRange struct {
	Kind Kind

	// EqualKind / NotEqualKind
	Value Key

	// RangeKind
	Lower      Key
	Upper      Key
	LowerOpen  bool
	UpperOpen  bool
	HasLower   bool
	HasUpper   bool

	// AnyOfKind
	Values []Key
}

// Unbounded is the All range.
func Unbounded() KeyRange { return KeyRange{Kind: All} }

// EqualRange constructs an Equal{value} range.
func EqualRange(v Key) KeyRange { return KeyRange{Kind: EqualKind, Value: v} }

// NotEqualRange constructs a NotEqual{value} range; the executor expands
// this into a full scan plus filter (spec.md §4.3 rule 3).
func NotEqualRange(v Key) KeyRange { return KeyRange{Kind: NotEqualKind, Value: v} }

// Above builds Range{lower: v, upper: absent}.
func Above(v Key, open bool) KeyRange {
	return KeyRange{Kind: RangeKind, Lower: v, HasLower: true, LowerOpen: open}
}

// Below builds Range{upper: v, lower: absent}.
func Below(v Key, open bool) KeyRange {
	return KeyRange{Kind: RangeKind, Upper: v, HasUpper: true, UpperOpen: open}
}

// Between builds Range{lower, upper} honoring the open/closed endpoints
// requested. It validates lower <= upper per spec.md §3's invariant
// without panicking, returning an error when lower sorts above upper.
func Between(lo, hi Key, includeLo, includeHi bool) (KeyRange, error) {
	if Compare(lo, hi) > 0 {
		return KeyRange{}, lerr.New(lerr.KindData, "range lower bound must be <= upper bound")
	}
	return KeyRange{
		Kind: RangeKind, Lower: lo, Upper: hi, HasLower: true, HasUpper: true,
		LowerOpen: !includeLo, UpperOpen: !includeHi,
	}, nil
}

// AnyOf builds AnyOf{values} after deduplicating by order-equality,
// preserving first-seen order (spec.md §3's "AnyOf values are deduplicated
// by the executor").
func AnyOf(vs []Key) KeyRange {
	return KeyRange{Kind: AnyOfKind, Values: dedup(vs)}
}

func dedup(vs []Key) []Key {
	out := make([]Key, 0, len(vs))
	for _, v := range vs {
		seen := false
		for _, o := range out {
			if Equal(v, o) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, v)
		}
	}
	return out
}

// StartsWith compiles a string prefix into Range [prefix, nextAfter(prefix))
// per spec.md §4.2. An empty prefix is the unbounded range.
func StartsWith(prefix string) KeyRange {
	if prefix == "" {
		return Unbounded()
	}
	next, ok := NextStringAfter(prefix)
	if !ok {
		return Above(prefix, false)
	}
	r, _ := Between(prefix, next, true, false)
	return r
}

// Contains reports whether k satisfies r, used by the executor for
// NotEqual/AnyOf post-filtering and by post-processing code paths that
// need to re-check a bound in memory.
func (r KeyRange) Contains(k Key) bool {
	switch r.Kind {
	case All:
		return true
	case EqualKind:
		return Equal(k, r.Value)
	case NotEqualKind:
		return !Equal(k, r.Value)
	case AnyOfKind:
		for _, v := range r.Values {
			if Equal(k, v) {
				return true
			}
		}
		return false
	case RangeKind:
		if r.HasLower {
			c := Compare(k, r.Lower)
			if c < 0 || (c == 0 && r.LowerOpen) {
				return false
			}
		}
		if r.HasUpper {
			c := Compare(k, r.Upper)
			if c > 0 || (c == 0 && r.UpperOpen) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
