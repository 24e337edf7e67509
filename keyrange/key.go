// Package keyrange defines the backend-independent key and key-range model:
// the total order over keys, the tagged KeyRange union, and the
// order-preserving byte encoding both shipped backends use for storage.
package keyrange

import (
	"bytes"
	"fmt"
	"math"
	"time"
	"unicode"

	"github.com/latticedb/lattice/lerr"
)

// Key is a value drawn from the backend's total order: int64, float64,
// string, bool, time.Time, []byte, or []Key for a compound key.
type Key = any

// NewKey validates v as a legal Key, rejecting NaN floats and unsupported
// Go types.
func NewKey(v any) (Key, error) {
	switch t := v.(type) {
	case int64, string, bool, time.Time, []byte:
		return t, nil
	case float64:
		if math.IsNaN(t) {
			return nil, lerr.New(lerr.KindData, "NaN is not a valid key")
		}
		return t, nil
	case int:
		return int64(t), nil
	case []Key:
		if len(t) < 1 {
			return nil, lerr.New(lerr.KindData, "compound key must have at least one component")
		}
		out := make([]Key, len(t))
		for i, c := range t {
			v, err := NewKey(c)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, lerr.New(lerr.KindData, fmt.Sprintf("unsupported key type %T", v))
	}
}

// typeRank orders the type tags so values of different kinds still compare
// deterministically (numbers < strings < bools < timestamps < byte arrays <
// compound keys).
func typeRank(k Key) int {
	switch k.(type) {
	case int64, float64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	case time.Time:
		return 3
	case []byte:
		return 4
	case []Key:
		return 5
	default:
		return 6
	}
}

func numVal(k Key) float64 {
	switch t := k.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}

// Compare implements the backend's total order over keys. It is the
// order-comparison primitive spec.md §3 requires the engine to expose.
func Compare(a, b Key) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case int64, float64:
		bn := numVal(b)
		an := numVal(av)
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case string:
		return compareString(av, b.(string))
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case time.Time:
		return av.Compare(b.(time.Time))
	case []byte:
		return bytes.Compare(av, b.([]byte))
	case []Key:
		bv := b.([]Key)
		n := len(av)
		if len(bv) < n {
			n = len(bv)
		}
		for i := 0; i < n; i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(av) < len(bv):
			return -1
		case len(av) > len(bv):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func compareString(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Equal reports whether a and b order-compare equal.
func Equal(a, b Key) bool { return Compare(a, b) == 0 }

// NextStringAfter computes the lexicographically smallest string strictly
// greater than every string with prefix p, by incrementing the last code
// unit by one. When the last unit is already the maximum rune value the
// range degenerates and callers should fall back to an above-or-equal
// range (see keyrange.StartsWith).
func NextStringAfter(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	runes := []rune(p)
	last := runes[len(runes)-1]
	if last == unicode.MaxRune {
		return "", false
	}
	runes[len(runes)-1] = last + 1
	return string(runes), true
}

// HighSentinel is appended to a lowercase bound to make a startsWith range
// upper-inclusive of every string sharing that prefix, regardless of case.
const HighSentinel = "\U0010FFFF"
