package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// sentence returns text of exactly length characters that starts with opener
// and ends with a full stop.
func sentence(opener string, length int) string {
	return opener + " " + strings.Repeat("a", length-len(opener)-2) + "."
}

func chapter(texts ...string) []domain.RawVerse {
	verses := make([]domain.RawVerse, len(texts))
	for i, t := range texts {
		verses[i] = domain.RawVerse{Book: "Genesis", Chapter: 1, Verse: i + 1, Text: t}
	}
	return verses
}

func repeatText(n int, text string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = text
	}
	return out
}

func TestHeuristic_TrailingPairMergesIntoPrevious(t *testing.T) {
	texts := repeatText(5, sentence("In", 70))
	texts = append(texts, sentence("And", 70), sentence("In", 70))

	groups := Heuristic(chapter(texts...))

	assert.Equal(t, [][]int{seq(1, 7)}, groups)
}

func TestHeuristic_NaturalBoundary(t *testing.T) {
	texts := repeatText(5, sentence("In", 70))
	texts = append(texts, sentence("Behold", 70))
	texts = append(texts, repeatText(3, sentence("In", 70))...)

	groups := Heuristic(chapter(texts...))

	assert.Equal(t, [][]int{seq(1, 5), seq(6, 9)}, groups)
}

func TestHeuristic_NoBoundaryWithoutTerminalPunctuation(t *testing.T) {
	open := strings.TrimSuffix(sentence("In", 70), ".") + ","
	texts := repeatText(5, open)
	texts = append(texts, sentence("And", 70), sentence("In", 70))

	groups := Heuristic(chapter(texts...))

	assert.Equal(t, [][]int{seq(1, 7)}, groups)
}

func TestHeuristic_VerseCap(t *testing.T) {
	groups := Heuristic(chapter(repeatText(23, "short one")...))

	assert.Equal(t, []int{10, 10, 3}, sizes(groups))
}

func TestHeuristic_CharacterCapNeedsMinimumVerses(t *testing.T) {
	groups := Heuristic(chapter(repeatText(7, sentence("In", 250))...))

	assert.Equal(t, [][]int{seq(1, 3), seq(4, 7)}, groups)
}

func TestHeuristic_FinalMergeOverCapIsResplit(t *testing.T) {
	groups := Heuristic(chapter(repeatText(11, "short one")...))

	assert.Equal(t, [][]int{seq(1, 8), seq(9, 11)}, groups)
}

func TestHeuristic_CoverageAndSize(t *testing.T) {
	for _, n := range []int{1, 2, 3, 10, 11, 23} {
		for _, length := range []int{12, 90, 280, 700} {
			verses := chapter(repeatText(n, sentence("And", length))...)

			groups := Heuristic(verses)

			require.NoError(t, Validate(groups, seq(1, n)), "n=%d length=%d groups=%v", n, length, sizes(groups))
		}
	}
}

func TestEndsSentence(t *testing.T) {
	assert.True(t, endsSentence("And it was so."))
	assert.True(t, endsSentence(`And God said, "Let there be light."`))
	assert.True(t, endsSentence("Who is this?  "))
	assert.False(t, endsSentence("And the earth was without form,"))
	assert.False(t, endsSentence(""))
}

func TestOpensNewThought(t *testing.T) {
	assert.True(t, opensNewThought("And God saw the light"))
	assert.True(t, opensNewThought("¶ Now the serpent"))
	assert.True(t, opensNewThought("THEREFORE shall a man"))
	assert.False(t, opensNewThought("In the beginning"))
	assert.False(t, opensNewThought(""))
}
