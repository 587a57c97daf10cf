package chunking

import (
	"slices"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// splitSize is the size of the leading groups cut from an oversized group.
// Cutting 8 at a time from a group of more than 10 always leaves at least 3.
const splitSize = 8

// Normalize repairs candidate groups so every group holds between
// domain.MinChunkVerses and domain.MaxChunkVerses verses.
//
// Groups must already be sanitized (see Sanitize). The pass is single and
// iterative: a group that is too small becomes the carry and is prepended to
// the next group; a group that is too large is cut into leading groups of 8.
// A carry left after the last group is merged into the previous group, or
// completed by borrowing from its tail, or as a last resort merged and
// re-split. No verse number is ever dropped or duplicated.
func Normalize(groups [][]int) [][]int {
	var out [][]int
	var carry []int

	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		cur := make([]int, 0, len(carry)+len(g))
		cur = append(cur, carry...)
		cur = append(cur, g...)
		slices.Sort(cur)
		carry = nil

		var rest []int
		out, rest = appendSplit(out, cur)
		if len(rest) < domain.MinChunkVerses {
			carry = rest
			continue
		}
		out = append(out, rest)
	}

	if len(carry) == 0 {
		return out
	}
	return resolveCarry(out, carry)
}

// appendSplit cuts leading groups of splitSize off g while it exceeds the
// maximum and returns the remainder.
func appendSplit(out [][]int, g []int) ([][]int, []int) {
	for len(g) > domain.MaxChunkVerses {
		out = append(out, slices.Clone(g[:splitSize]))
		g = g[splitSize:]
	}
	return out, slices.Clone(g)
}

// resolveCarry places a trailing group of fewer than the minimum verses.
func resolveCarry(out [][]int, carry []int) [][]int {
	if len(out) == 0 {
		// The whole chapter is shorter than a chunk.
		return [][]int{carry}
	}

	last := len(out) - 1
	prev := out[last]

	if len(prev)+len(carry) <= domain.MaxChunkVerses {
		out[last] = mergeSorted(prev, carry)
		return out
	}

	need := domain.MinChunkVerses - len(carry)
	if len(prev)-need >= domain.MinChunkVerses {
		cut := len(prev) - need
		completed := mergeSorted(prev[cut:], carry)
		out[last] = prev[:cut]
		return append(out, completed)
	}

	merged := mergeSorted(prev, carry)
	out, rest := appendSplit(out[:last], merged)
	return append(out, rest)
}

func mergeSorted(a, b []int) []int {
	m := make([]int, 0, len(a)+len(b))
	m = append(m, a...)
	m = append(m, b...)
	slices.Sort(m)
	return m
}
