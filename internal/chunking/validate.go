package chunking

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// Validate checks groups against a chapter's verse numbers:
//   - every verse appears in exactly one group (coverage)
//   - each group is ascending and contiguous in chapter order
//   - each group holds MinChunkVerses..MaxChunkVerses verses, unless the
//     chapter itself is shorter than MinChunkVerses, in which case the only
//     valid result is a single group of all its verses
//
// Failures wrap domain.ErrInvalidChunking.
func Validate(groups [][]int, verseNumbers []int) error {
	if len(verseNumbers) == 0 {
		return fmt.Errorf("%w: chapter has no verses", domain.ErrInvalidChunking)
	}

	position := make(map[int]int, len(verseNumbers))
	for i, n := range sortedUnique(verseNumbers) {
		position[n] = i
	}
	if len(position) != len(verseNumbers) {
		return fmt.Errorf("%w: duplicate verse numbers in chapter", domain.ErrInvalidChunking)
	}

	short := len(verseNumbers) < domain.MinChunkVerses
	if short && len(groups) != 1 {
		return fmt.Errorf("%w: short chapter must be one chunk, got %d", domain.ErrInvalidChunking, len(groups))
	}

	seen := make(map[int]bool, len(verseNumbers))
	for i, g := range groups {
		if !short && (len(g) < domain.MinChunkVerses || len(g) > domain.MaxChunkVerses) {
			return fmt.Errorf("%w: chunk %d has %d verses", domain.ErrInvalidChunking, i, len(g))
		}
		for j, n := range g {
			pos, ok := position[n]
			if !ok {
				return fmt.Errorf("%w: chunk %d references unknown verse %d", domain.ErrInvalidChunking, i, n)
			}
			if seen[n] {
				return fmt.Errorf("%w: verse %d appears twice", domain.ErrInvalidChunking, n)
			}
			seen[n] = true
			if j > 0 && pos != position[g[j-1]]+1 {
				return fmt.Errorf("%w: chunk %d is not contiguous at verse %d", domain.ErrInvalidChunking, i, n)
			}
		}
	}

	if len(seen) != len(verseNumbers) {
		return fmt.Errorf("%w: %d of %d verses covered", domain.ErrInvalidChunking, len(seen), len(verseNumbers))
	}
	return nil
}

// ValidatePlans validates plans for one chapter and checks that each plan's
// combined text matches the authoritative verse text.
func ValidatePlans(plans []domain.ChunkPlan, verses []domain.RawVerse) error {
	text := make(map[int]string, len(verses))
	numbers := make([]int, len(verses))
	for i, v := range verses {
		text[v.Verse] = v.Text
		numbers[i] = v.Verse
	}

	groups := make([][]int, len(plans))
	for i, p := range plans {
		groups[i] = p.VerseNumbers
	}
	if err := Validate(groups, numbers); err != nil {
		return err
	}

	for i, p := range plans {
		if want := combine(p.VerseNumbers, text); p.CombinedText != want {
			return fmt.Errorf("%w: chunk %d combined text does not match its verses", domain.ErrInvalidChunking, i)
		}
	}
	return nil
}

// Plans turns validated groups into chunk plans, regenerating each combined
// text from the authoritative verse text.
func Plans(chapter int, groups [][]int, verses []domain.RawVerse, method domain.ChunkMethod) []domain.ChunkPlan {
	text := make(map[int]string, len(verses))
	for _, v := range verses {
		text[v.Verse] = v.Text
	}

	plans := make([]domain.ChunkPlan, len(groups))
	for i, g := range groups {
		plans[i] = domain.ChunkPlan{
			Chapter:      chapter,
			VerseNumbers: slices.Clone(g),
			CombinedText: combine(g, text),
			Method:       method,
		}
	}
	return plans
}

func combine(numbers []int, text map[int]string) string {
	texts := make([]string, len(numbers))
	for i, n := range numbers {
		texts[i] = text[n]
	}
	return domain.JoinVerseText(texts)
}

func sortedUnique(nums []int) []int {
	out := slices.Clone(nums)
	slices.Sort(out)
	return slices.Compact(out)
}
