// Package ciplan implements the case-insensitive cursor-jump planner of
// spec.md §4.5: given needle(s) and a direction, it produces range bounds
// and a step function that skips non-matching keys by jumping the cursor
// straight to the next key that could possibly match, instead of visiting
// every key in the bounded range.
//
// Case folding is rune by rune (strings.ToUpper/ToLower on the needle,
// unicode.ToLower per key rune): upper/lower-casing a needle is assumed to
// produce a same-length, rune-for-rune mapping. This keeps the planner
// allocation-light and deterministic per spec.md §4.5's requirement, at
// the cost of not handling length-changing Unicode case folds (e.g. German
// ß); see DESIGN.md's "Known simplifications".
package ciplan

import (
	"sort"
	"strings"
	"unicode"

	"github.com/latticedb/lattice/lerr"
)

// Mode selects whether a needle must match a key exactly or as a prefix.
type Mode int

const (
	ModeEquals Mode = iota
	ModeStartsWith
)

// Outcome is the 4-way cursor-algorithm contract from DESIGN NOTES §9:
// collect, skip, stop, or jump to a specific key.
type Outcome int

const (
	Collect Outcome = iota
	Skip
	Stop
	Jump
)

// Step is the result of one planner step.
type Step struct {
	Outcome Outcome
	JumpKey string // valid when Outcome == Jump
}

type needle struct {
	upper     []rune
	lower     []rune
	exhausted bool
}

// Planner drives the case-insensitive cursor jump for one query.
type Planner struct {
	needles []needle
	mode    Mode
	reverse bool
}

// Plan builds a Planner over needles (none may be empty — callers fall
// back to an unbounded scan + filter for an empty needle per spec.md
// §4.4's anyOfIgnoreCase / startsWithAnyOfIgnoreCase rules).
func Plan(needles []string, mode Mode, reverse bool) (*Planner, error) {
	if len(needles) == 0 {
		return nil, lerr.New(lerr.KindData, "ciplan: at least one needle is required")
	}
	p := &Planner{mode: mode, reverse: reverse}
	for _, n := range needles {
		if n == "" {
			return nil, lerr.New(lerr.KindData, "ciplan: empty needle is not supported, fall back to a filtered scan")
		}
		p.needles = append(p.needles, needle{upper: []rune(strings.ToUpper(n)), lower: []rune(strings.ToLower(n))})
	}
	return p, nil
}

// Bounds returns the inclusive lower and upper string bounds covering
// every needle: the uppercase form of the smallest needle, and the
// lowercase form of the largest needle (plus a trailing high sentinel rune
// for ModeStartsWith, so the upper bound covers any suffix).
func (p *Planner) Bounds() (lower, upper string) {
	lowers := make([]string, len(p.needles))
	uppers := make([]string, len(p.needles))
	for i, n := range p.needles {
		lowers[i] = string(n.lower)
		uppers[i] = string(n.upper)
	}
	sort.Strings(lowers)
	sort.Strings(uppers)
	lower = uppers[0]
	upper = lowers[len(lowers)-1]
	if p.mode == ModeStartsWith {
		upper += keyrangeHighSentinel
	}
	return lower, upper
}

// keyrangeHighSentinel mirrors keyrange.HighSentinel without importing
// keyrange, to keep this package storage-agnostic.
const keyrangeHighSentinel = "\U0010FFFF"

// Next advances the planner's view of current: callers call this once per
// cursor position with the key under the cursor.
func (p *Planner) Next(current string) Step {
	cur := []rune(current)

	for i := range p.needles {
		if p.needles[i].exhausted {
			continue
		}
		if p.matches(cur, p.needles[i]) {
			return Step{Outcome: Collect}
		}
	}

	var best string
	haveBest := false
	for i := range p.needles {
		n := &p.needles[i]
		if n.exhausted {
			continue
		}
		jump, ok := p.jumpFor(cur, *n)
		if !ok {
			n.exhausted = true
			continue
		}
		if !haveBest || p.better(jump, best) {
			best = jump
			haveBest = true
		}
	}

	if !haveBest {
		return Step{Outcome: Stop}
	}
	return Step{Outcome: Jump, JumpKey: best}
}

// better reports whether candidate is closer to being visited next than
// best, given the iteration direction.
func (p *Planner) better(candidate, best string) bool {
	if p.reverse {
		return candidate > best
	}
	return candidate < best
}

// matches reports whether cur case-insensitively satisfies n under the
// configured Mode.
func (p *Planner) matches(cur []rune, n needle) bool {
	switch p.mode {
	case ModeEquals:
		if len(cur) != len(n.lower) {
			return false
		}
		return runesEqualFold(cur, n.lower)
	case ModeStartsWith:
		if len(cur) < len(n.lower) {
			return false
		}
		return runesEqualFold(cur[:len(n.lower)], n.lower)
	default:
		return false
	}
}

func runesEqualFold(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if unicode.ToLower(a[i]) != unicode.ToLower(b[i]) {
			return false
		}
	}
	return true
}

// jumpFor computes the smallest (forward) or largest (reverse) key that is
// "ahead of" cur in iteration direction and could still match n. A bump at
// the first mismatching position is not always achievable — cur's character
// there can exceed (forward) or fall below (reverse) both of the needle's
// case variants — in which case the planner must back off to the nearest
// earlier position that still has headroom to move and re-fill everything
// after it, the same way incrementing a mixed-radix number carries left.
func (p *Planner) jumpFor(cur []rune, n needle) (string, bool) {
	if p.reverse {
		return jumpReverse(cur, n)
	}
	return jumpForward(cur, n)
}

func jumpForward(cur []rune, n needle) (string, bool) {
	L := len(n.lower)
	limit := L
	if len(cur) < limit {
		limit = len(cur)
	}

	mismatchAt := -1
	for i := 0; i < limit; i++ {
		if unicode.ToLower(cur[i]) != n.lower[i] {
			mismatchAt = i
			break
		}
	}

	if mismatchAt == -1 {
		switch {
		case len(cur) < L:
			// cur is a strict case-insensitive prefix of the needle: keep
			// it exactly (any extension of it already sorts ahead of cur)
			// and fill the remainder with the smallest case form.
			out := append(append([]rune{}, cur...), n.upper[len(cur):]...)
			return string(out), true
		case len(cur) == L:
			// Equal length with no mismatch is a hit; matches() already
			// caught it. Unreachable, handled defensively.
			return "", false
		default:
			// cur extends past the needle with a fully valid prefix combo;
			// jump to that combo's successor in the case lattice.
			combo := append([]rune{}, cur[:L]...)
			for pos := L - 1; pos >= 0; pos-- {
				upperChar, lowerChar := sortedPair(n.upper[pos], n.lower[pos])
				if combo[pos] == upperChar && upperChar != lowerChar {
					out := append(append([]rune{}, combo[:pos]...), lowerChar)
					return string(append(out, n.upper[pos+1:]...)), true
				}
			}
			return "", false
		}
	}

	for pos := mismatchAt; pos >= 0; pos-- {
		upperChar, lowerChar := sortedPair(n.upper[pos], n.lower[pos])
		if pos == mismatchAt {
			curChar := cur[pos]
			var bumpChar rune
			switch {
			case curChar < upperChar:
				bumpChar = upperChar
			case curChar < lowerChar:
				bumpChar = lowerChar
			default:
				continue // no headroom here, back off further
			}
			out := append(append([]rune{}, cur[:pos]...), bumpChar)
			return string(append(out, n.upper[pos+1:]...)), true
		}
		if cur[pos] == upperChar && upperChar != lowerChar {
			out := append(append([]rune{}, cur[:pos]...), lowerChar)
			return string(append(out, n.upper[pos+1:]...)), true
		}
	}
	return "", false
}

func jumpReverse(cur []rune, n needle) (string, bool) {
	L := len(n.lower)
	limit := L
	if len(cur) < limit {
		limit = len(cur)
	}

	mismatchAt := -1
	for i := 0; i < limit; i++ {
		if unicode.ToLower(cur[i]) != n.lower[i] {
			mismatchAt = i
			break
		}
	}

	if mismatchAt == -1 {
		switch {
		case len(cur) < L:
			// Any extension of cur sorts ahead of it, which is the wrong
			// direction for a reverse scan: back off to the latest pinned
			// position in cur that can still move down, and maximize the
			// remainder.
			for pos := len(cur) - 1; pos >= 0; pos-- {
				upperChar, lowerChar := sortedPair(n.upper[pos], n.lower[pos])
				if cur[pos] == lowerChar && upperChar != lowerChar {
					out := append(append([]rune{}, cur[:pos]...), upperChar)
					return string(append(out, n.lower[pos+1:]...)), true
				}
			}
			return "", false
		case len(cur) == L:
			return "", false // unreachable, see jumpForward
		default:
			// cur's own matching prefix already sorts below cur (it is a
			// strict prefix of it) and is itself a valid combo: it is the
			// largest reachable key not exceeding cur.
			return string(cur[:L]), true
		}
	}

	for pos := mismatchAt; pos >= 0; pos-- {
		upperChar, lowerChar := sortedPair(n.upper[pos], n.lower[pos])
		if pos == mismatchAt {
			curChar := cur[pos]
			var bumpChar rune
			switch {
			case curChar > lowerChar:
				bumpChar = lowerChar
			case curChar > upperChar:
				bumpChar = upperChar
			default:
				continue
			}
			out := append(append([]rune{}, cur[:pos]...), bumpChar)
			return string(append(out, n.lower[pos+1:]...)), true
		}
		if cur[pos] == lowerChar && upperChar != lowerChar {
			out := append(append([]rune{}, cur[:pos]...), upperChar)
			return string(append(out, n.lower[pos+1:]...)), true
		}
	}
	return "", false
}

// sortedPair returns a and b in (smaller, larger) order; case-fold pairs
// are not always alphabetically ordered the same way across scripts.
func sortedPair(a, b rune) (rune, rune) {
	if a > b {
		return b, a
	}
	return a, b
}
