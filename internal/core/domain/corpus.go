package domain

import (
	"fmt"
	"strings"
)

// Default hierarchy labels used when ingestion is not given explicit names.
const (
	DefaultTradition = "KJV"
	DefaultSource    = "KJV Source"
	DefaultWork      = "Holy Bible"
)

// Tradition is the root of the corpus hierarchy (e.g. a confessional or textual tradition).
type Tradition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Source is a provider of works within a tradition.
type Source struct {
	ID          string `json:"id"`
	TraditionID string `json:"tradition_id"`
	Name        string `json:"name"`
}

// Work is a named collection of books, such as one Bible translation.
type Work struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
}

// Book is an ordered sub-unit of a work.
// Seq is the canonical sequence number used for range filters.
type Book struct {
	ID     string `json:"id"`
	WorkID string `json:"work_id"`
	Title  string `json:"title"`
	Seq    int    `json:"seq"`
}

// Chapter groups verses for display. Chapter 0 holds a book's introduction.
type Chapter struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ChapterTitle returns the display title for a chapter of the given book.
func ChapterTitle(book string, number int) string {
	if number == 0 {
		return book + " Introduction"
	}
	return fmt.Sprintf("%s %d", book, number)
}

// Verse is one numbered unit of immutable source text.
// Its natural key is (BookID, Chapter, Number).
type Verse struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id"`
	ChapterID string `json:"chapter_id"`
	ChunkID   string `json:"chunk_id"`
	Chapter   int    `json:"chapter"`
	Number    int    `json:"number"`
	Text      string `json:"text"`
}

// VerseInfo is a verse with the book context needed for filtering and display.
type VerseInfo struct {
	Verse
	BookTitle    string `json:"book_title"`
	BookSeq      int    `json:"book_seq"`
	WorkID       string `json:"work_id"`
	ChapterTitle string `json:"chapter_title"`
}

// Reference returns a human-readable reference such as "Genesis 1:3".
func (v VerseInfo) Reference() string {
	if v.Chapter == 0 {
		return v.BookTitle + " (introduction)"
	}
	return fmt.Sprintf("%s %d:%d", v.BookTitle, v.Chapter, v.Number)
}

// RawVerse is one parsed record before chunking or persistence.
// Chapter 0 verse 0 carries a book's introduction text.
type RawVerse struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

// IsIntro reports whether the record is a synthetic book introduction.
func (r RawVerse) IsIntro() bool {
	return r.Chapter == 0 && r.Verse == 0
}

// JoinVerseText space-joins verse texts, trimming each one.
// Every chunk's combined text is produced by this function.
func JoinVerseText(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
