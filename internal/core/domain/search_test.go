package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope_Resolve(t *testing.T) {
	s := Scope{Testament: TestamentOld}.Resolve()
	assert.Equal(t, 1, s.SeqMin)
	assert.Equal(t, 39, s.SeqMax)
	assert.Empty(t, s.Testament)

	narrowed := Scope{Testament: TestamentNew, SeqMin: 45, SeqMax: 100}.Resolve()
	assert.Equal(t, 45, narrowed.SeqMin)
	assert.Equal(t, 66, narrowed.SeqMax)

	plain := Scope{SeqMin: 3, SeqMax: 7, Testament: "unknown"}.Resolve()
	assert.Equal(t, 3, plain.SeqMin)
	assert.Equal(t, 7, plain.SeqMax)
}

func TestScope_Matches(t *testing.T) {
	oldTestament := Scope{SeqMin: 1, SeqMax: 39}

	assert.True(t, oldTestament.Matches("b1", "w1", 1))
	assert.True(t, oldTestament.Matches("b39", "w1", 39))
	assert.False(t, oldTestament.Matches("b40", "w1", 40))
	assert.False(t, oldTestament.Matches("b66", "w1", 66))

	byBook := Scope{BookID: "b1"}
	assert.True(t, byBook.Matches("b1", "w1", 1))
	assert.False(t, byBook.Matches("b2", "w1", 2))

	byWork := Scope{WorkID: "w2"}
	assert.False(t, byWork.Matches("b1", "w1", 1))
	assert.True(t, byWork.Matches("b1", "w2", 1))

	assert.True(t, Scope{}.Matches("any", "any", 12))
	assert.True(t, Scope{}.IsZero())
	assert.False(t, Scope{Testament: TestamentNew}.IsZero())
}

func TestSearchOptions_WithDefaults(t *testing.T) {
	opts := SearchOptions{Diversity: 3, Scope: Scope{Testament: TestamentNew}}.WithDefaults()

	assert.Equal(t, DefaultSearchLimit, opts.Limit)
	assert.Equal(t, DefaultVersesPerCard, opts.VersesPerCard)
	assert.InDelta(t, DefaultLexicalWeight, opts.LexicalWeight, 1e-9)
	assert.InDelta(t, 1.0, opts.Diversity, 1e-9)
	assert.Equal(t, 40, opts.Scope.SeqMin)
	assert.Equal(t, 66, opts.Scope.SeqMax)
}

func TestVerseInfo_Reference(t *testing.T) {
	v := VerseInfo{Verse: Verse{Chapter: 1, Number: 3}, BookTitle: "Genesis"}
	assert.Equal(t, "Genesis 1:3", v.Reference())

	intro := VerseInfo{BookTitle: "Romans"}
	assert.Equal(t, "Romans (introduction)", intro.Reference())
}

func TestChapterTitle(t *testing.T) {
	assert.Equal(t, "Psalms 23", ChapterTitle("Psalms", 23))
	assert.Equal(t, "Psalms Introduction", ChapterTitle("Psalms", 0))
}

func TestJoinVerseText(t *testing.T) {
	got := JoinVerseText([]string{" In the beginning ", "", "And the earth"})
	assert.Equal(t, "In the beginning And the earth", got)
}

func TestSortScored(t *testing.T) {
	hits := []ScoredID{{"b", 0.5}, {"a", 0.5}, {"c", 0.9}, {"d", 0.1}}

	got := SortScored(hits, 3)

	assert.Equal(t, []ScoredID{{"c", 0.9}, {"a", 0.5}, {"b", 0.5}}, got)
	assert.Len(t, SortScored([]ScoredID{{"x", 1}}, 0), 1)
}
