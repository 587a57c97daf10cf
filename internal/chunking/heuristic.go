package chunking

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// Heuristic size targets, in characters of combined text.
const (
	TargetMinChars = 300
	TargetMaxChars = 600
)

// newThoughtWords open a new unit of thought when they start a verse.
var newThoughtWords = map[string]bool{
	"and":       true,
	"but":       true,
	"then":      true,
	"for":       true,
	"so":        true,
	"thus":      true,
	"therefore": true,
	"behold":    true,
	"now":       true,
}

// Heuristic groups verses greedily without calling out to any service.
//
// A buffer is flushed before the next verse when the verse cap is reached,
// when the character cap would be exceeded by a buffer that already holds the
// minimum verse count, or at a natural boundary: the buffer meets both minimum
// targets, its last verse ends a sentence and the next verse opens with a
// new-thought word. A final chunk under the minimum is merged into the one
// before it. Verses must be in chapter order.
func Heuristic(verses []domain.RawVerse) [][]int {
	var groups [][]int
	var buf []int
	chars := 0
	lastText := ""

	for _, v := range verses {
		if len(buf) > 0 {
			full := len(buf) >= domain.MaxChunkVerses
			tooLong := len(buf) >= domain.MinChunkVerses && chars+1+len(v.Text) > TargetMaxChars
			boundary := len(buf) >= domain.MinChunkVerses && chars >= TargetMinChars &&
				endsSentence(lastText) && opensNewThought(v.Text)
			if full || tooLong || boundary {
				groups = append(groups, buf)
				buf, chars = nil, 0
			}
		}
		if len(buf) > 0 {
			chars++
		}
		buf = append(buf, v.Verse)
		chars += len(v.Text)
		lastText = v.Text
	}
	if len(buf) > 0 {
		groups = append(groups, buf)
	}

	n := len(groups)
	if n >= 2 && len(groups[n-1]) < domain.MinChunkVerses {
		merged := append(groups[n-2], groups[n-1]...)
		var rest []int
		groups, rest = appendSplit(groups[:n-2], merged)
		groups = append(groups, rest)
	}
	return groups
}

func endsSentence(text string) bool {
	text = strings.TrimRightFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(`"'’”)]`, r)
	})
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func opensNewThought(text string) bool {
	word := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	return len(word) > 0 && newThoughtWords[strings.ToLower(word[0])]
}
