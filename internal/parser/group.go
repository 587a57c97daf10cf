package parser

import (
	"sort"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// BookVerses is the parsed content of one book.
type BookVerses struct {
	Title  string
	Seq    int
	Verses []domain.RawVerse
}

// ChapterVerses is the parsed content of one chapter, ordered by verse number.
type ChapterVerses struct {
	Number int
	Verses []domain.RawVerse
}

// VerseNumbers returns the chapter's verse numbers in order.
func (c ChapterVerses) VerseNumbers() []int {
	nums := make([]int, len(c.Verses))
	for i, v := range c.Verses {
		nums[i] = v.Verse
	}
	return nums
}

// TextByVerse maps verse number to text.
func (c ChapterVerses) TextByVerse() map[int]string {
	m := make(map[int]string, len(c.Verses))
	for _, v := range c.Verses {
		m[v.Verse] = v.Text
	}
	return m
}

// GroupByBook groups verses by book in canonical order, keeping only books
// that are present. A repeated (chapter, verse) keeps its first occurrence.
func GroupByBook(verses []domain.RawVerse) []BookVerses {
	index := make(map[string]int)
	var books []BookVerses
	seen := make(map[string]map[[2]int]bool)

	for _, v := range verses {
		i, ok := index[v.Book]
		if !ok {
			i = len(books)
			index[v.Book] = i
			books = append(books, BookVerses{Title: v.Book, Seq: domain.BookSeq(v.Book)})
			seen[v.Book] = make(map[[2]int]bool)
		}
		key := [2]int{v.Chapter, v.Verse}
		if seen[v.Book][key] {
			continue
		}
		seen[v.Book][key] = true
		books[i].Verses = append(books[i].Verses, v)
	}

	sort.SliceStable(books, func(a, b int) bool { return books[a].Seq < books[b].Seq })
	return books
}

// Chapters splits the book into chapters in ascending order.
// Chapter 0 holds the introduction when present.
func (b BookVerses) Chapters() []ChapterVerses {
	byNumber := make(map[int][]domain.RawVerse)
	for _, v := range b.Verses {
		byNumber[v.Chapter] = append(byNumber[v.Chapter], v)
	}

	chapters := make([]ChapterVerses, 0, len(byNumber))
	for n, vs := range byNumber {
		sort.SliceStable(vs, func(i, j int) bool { return vs[i].Verse < vs[j].Verse })
		chapters = append(chapters, ChapterVerses{Number: n, Verses: vs})
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })
	return chapters
}

// FilterBooks applies the single-book filter and the start-at cursor.
// Empty arguments disable the corresponding filter. Unknown names fail with
// domain.ErrUnknownBook.
func FilterBooks(books []BookVerses, only, startAt string) ([]BookVerses, error) {
	var onlySeq, startSeq int
	if only != "" {
		b, ok := domain.LookupBook(only)
		if !ok {
			return nil, &UnknownBookError{Name: only}
		}
		onlySeq = b.Seq
	}
	if startAt != "" {
		b, ok := domain.LookupBook(startAt)
		if !ok {
			return nil, &UnknownBookError{Name: startAt}
		}
		startSeq = b.Seq
	}

	out := make([]BookVerses, 0, len(books))
	for _, b := range books {
		if onlySeq != 0 && b.Seq != onlySeq {
			continue
		}
		if startSeq != 0 && b.Seq < startSeq {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// UnknownBookError names a book filter that did not resolve.
type UnknownBookError struct {
	Name string
}

func (e *UnknownBookError) Error() string {
	return "unknown book " + `"` + e.Name + `"`
}

// Unwrap lets errors.Is match domain.ErrUnknownBook.
func (e *UnknownBookError) Unwrap() error {
	return domain.ErrUnknownBook
}
