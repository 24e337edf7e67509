package ciplan

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_RejectsEmptyNeedles(t *testing.T) {
	_, err := Plan(nil, ModeEquals, false)
	assert.Error(t, err)

	_, err = Plan([]string{"a", ""}, ModeEquals, false)
	assert.Error(t, err)
}

func TestBounds_Equals(t *testing.T) {
	p, err := Plan([]string{"bob", "Alice"}, ModeEquals, false)
	require.NoError(t, err)

	lower, upper := p.Bounds()
	assert.Equal(t, "ALICE", lower)
	assert.Equal(t, "bob", upper)
}

func TestBounds_StartsWithAppendsSentinel(t *testing.T) {
	p, err := Plan([]string{"al"}, ModeStartsWith, false)
	require.NoError(t, err)

	lower, upper := p.Bounds()
	assert.Equal(t, "AL", lower)
	assert.Equal(t, "al"+keyrangeHighSentinel, upper)
}

// walk drives a planner across a sorted slice of candidate keys and
// records, for every key actually visited under the cursor, whether it was
// collected, and how many keys were skipped via a jump versus a plain
// single-step advance.
func walk(p *Planner, keys []string) (collected []string, jumps int) {
	idx := 0
	for idx < len(keys) {
		step := p.Next(keys[idx])
		switch step.Outcome {
		case Collect:
			collected = append(collected, keys[idx])
			idx++
		case Skip:
			idx++
		case Stop:
			return collected, jumps
		case Jump:
			jumps++
			// emulate a cursor seek: advance to the first key >= JumpKey
			// (forward) or <= JumpKey (reverse).
			next := idx
			for next < len(keys) {
				if !p.reverse && keys[next] >= step.JumpKey {
					break
				}
				if p.reverse && keys[next] <= step.JumpKey {
					break
				}
				next++
			}
			if next == idx {
				// jump target doesn't move the cursor forward; avoid
				// spinning in the test harness.
				next++
			}
			idx = next
		}
	}
	return collected, jumps
}

func TestNext_EqualsIgnoreCase_Forward(t *testing.T) {
	names := []string{"Alice", "ALICE", "alice", "bob"}
	sort.Strings(names)

	p, err := Plan([]string{"alice"}, ModeEquals, false)
	require.NoError(t, err)

	collected, _ := walk(p, names)
	assert.ElementsMatch(t, []string{"Alice", "ALICE", "alice"}, collected)
}

func TestNext_EqualsIgnoreCase_Reverse(t *testing.T) {
	names := []string{"Alice", "ALICE", "alice", "bob"}
	sort.Strings(names)
	reversed := make([]string, len(names))
	for i, n := range names {
		reversed[len(names)-1-i] = n
	}

	p, err := Plan([]string{"alice"}, ModeEquals, true)
	require.NoError(t, err)

	collected, _ := walk(p, reversed)
	assert.ElementsMatch(t, []string{"Alice", "ALICE", "alice"}, collected)
}

func TestNext_StartsWithIgnoreCase(t *testing.T) {
	keys := []string{"Alabama", "ALASKA", "albany", "Bob", "zzz"}
	sort.Strings(keys)

	p, err := Plan([]string{"AL"}, ModeStartsWith, false)
	require.NoError(t, err)

	collected, _ := walk(p, keys)
	assert.ElementsMatch(t, []string{"Alabama", "ALASKA", "albany"}, collected)
}

func TestNext_MultipleNeedles(t *testing.T) {
	keys := []string{"ALICE", "BOB", "bob", "carol", "dave", "eve"}
	sort.Strings(keys)

	p, err := Plan([]string{"bob", "eve"}, ModeEquals, false)
	require.NoError(t, err)

	collected, _ := walk(p, keys)
	assert.ElementsMatch(t, []string{"BOB", "bob", "eve"}, collected)
}

func TestNext_StopsPastUpperBound(t *testing.T) {
	p, err := Plan([]string{"bob"}, ModeEquals, false)
	require.NoError(t, err)

	// Jump straight to a key already past the needle's entire case range.
	step := p.Next("zzzzzz")
	assert.Equal(t, Stop, step.Outcome)
}

func TestNext_ReverseStopsBelowLowerBound(t *testing.T) {
	p, err := Plan([]string{"bob"}, ModeEquals, true)
	require.NoError(t, err)

	// "AAA" sorts below both case forms of "bob" ('A' < 'B' < 'b' in
	// ASCII), so there is nothing left to reach scanning downward.
	step := p.Next("AAA")
	assert.Equal(t, Stop, step.Outcome)
}

func TestJumpForward_SkipsNonMatchingRun(t *testing.T) {
	p, err := Plan([]string{"alice"}, ModeEquals, false)
	require.NoError(t, err)

	step := p.Next("AAA")
	require.Equal(t, Jump, step.Outcome)
	assert.GreaterOrEqual(t, step.JumpKey, "AAA")
	assert.LessOrEqual(t, step.JumpKey, "ALICE")
}

func TestJumpForward_BacktracksWhenMismatchExceedsBothCaseForms(t *testing.T) {
	// needle "bc": cur's second character ('z') exceeds both "C" and "c",
	// but the pinned first character ('B') still has headroom to move up
	// to 'b', so the planner must back off instead of reporting exhausted.
	p, err := Plan([]string{"bc"}, ModeEquals, false)
	require.NoError(t, err)

	step := p.Next("Bz")
	require.Equal(t, Jump, step.Outcome)
	assert.Greater(t, step.JumpKey, "Bz")
	assert.LessOrEqual(t, step.JumpKey, "bc")
}

func TestJumpForward_ExhaustedWhenNoHeadroomRemains(t *testing.T) {
	// "bz" already exceeds the needle's entire case range ["bc".. the max
	// combo sorts below any key starting 'b' followed by something > 'c'
	// in both case forms), and the pinned first character is already at
	// its maximum ('b'), so there is nowhere left to back off to.
	p, err := Plan([]string{"bc"}, ModeEquals, false)
	require.NoError(t, err)

	step := p.Next("bz")
	assert.Equal(t, Stop, step.Outcome)
}

func TestJumpForward_ShortPrefixKeepsCurPrefix(t *testing.T) {
	// cur="Al" matches the needle "alice" case-insensitively on its own
	// length but sorts above the needle's bare uppercase form "ALICE"
	// (comparing position 1, 'l' > 'L'); the minimal jump must preserve
	// cur's own prefix rather than resetting to "ALICE".
	p, err := Plan([]string{"alice"}, ModeEquals, false)
	require.NoError(t, err)

	step := p.Next("Al")
	require.Equal(t, Jump, step.Outcome)
	assert.Greater(t, step.JumpKey, "Al")
	assert.Equal(t, "AlICE", step.JumpKey)
}

func TestJumpReverse_LongerCurReturnsOwnPrefix(t *testing.T) {
	p, err := Plan([]string{"abc"}, ModeEquals, true)
	require.NoError(t, err)

	step := p.Next("Abcd")
	require.Equal(t, Jump, step.Outcome)
	assert.Equal(t, "Abc", step.JumpKey)
	assert.Less(t, step.JumpKey, "Abcd")
}

func TestJumpReverse_ShortPrefixBacksOffToPinnedPosition(t *testing.T) {
	// cur="Al" is a prefix of "alice" with no mismatch, but any extension
	// of cur sorts above it, which is the wrong direction for reverse: the
	// planner backs off to the last pinned position with room to move
	// down ('l' at index 1, lowered to 'L') rather than reporting
	// exhausted.
	p, err := Plan([]string{"alice"}, ModeEquals, true)
	require.NoError(t, err)

	step := p.Next("Al")
	require.Equal(t, Jump, step.Outcome)
	assert.Equal(t, "ALice", step.JumpKey)
	assert.Less(t, step.JumpKey, "Al")
}
