// Package parser turns raw scripture text into ordered verse records.
//
// The parser is a pure function of its input. It recognises book headings,
// chapter headings and several verse-line shapes, joins soft-wrapped lines
// onto the open verse, and records text that precedes a book's first verse
// as a synthetic introduction at chapter 0, verse 0.
package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

var (
	// 01:001:001 text (book, chapter, verse)
	numberedVerseRe = regexp.MustCompile(`^(\d{2}):(\d{3}):(\d{3})(?:\s+(.*))?$`)
	// BOOK 01 Genesis
	numberedBookRe = regexp.MustCompile(`(?i)^BOOK\s+(\d{1,2})\s+(.+)$`)
	// CHAPTER 3, Chapter 3., PSALM 23
	chapterRe = regexp.MustCompile(`(?i)^(?:CHAPTER|PSALM)\s+(\d+)\.?$`)
	// 1 Samuel 3:4 text, 12 Genesis 1:1 text
	bookVerseRe = regexp.MustCompile(`^(.*?\D)\s*(\d+):(\d+)(?:\s+(.*))?$`)
	// 3:16 text
	colonVerseRe = regexp.MustCompile(`^(\d+):(\d+)(?:\s+(.*))?$`)
	// 16 text (only after a chapter is known or inferable)
	simpleVerseRe = regexp.MustCompile(`^(\d+)\s+(.+)$`)
	// leading row number before a book name
	leadingNumberRe = regexp.MustCompile(`^\d+\s+`)
)

// state is the pending-buffer state of the machine.
type state int

const (
	stateIdle  state = iota // no open verse
	stateVerse              // a verse is accumulating text
	stateIntro              // a book introduction is accumulating text
)

func (s state) String() string {
	switch s {
	case stateVerse:
		return "verse-open"
	case stateIntro:
		return "book-intro-open"
	default:
		return "no-open-verse"
	}
}

// shape is the verse-line numbering seen in the current chapter.
type shape int

const (
	shapeUnknown shape = iota
	shapeSimple        // chapter header or "<n> text" lines
	shapeColon         // "<ch>:<v> text" lines
)

// Option configures a parse.
type Option func(*machine)

// WithBook starts parsing inside the given book, for inputs that carry no
// book heading. Unknown titles are ignored.
func WithBook(title string) Option {
	return func(m *machine) {
		if b, ok := domain.LookupBook(title); ok {
			m.book = b.Title
		}
	}
}

// Parse parses raw text. It fails with domain.ErrEmptyCorpus when no verse is found.
func Parse(data []byte, opts ...Option) ([]domain.RawVerse, error) {
	return ParseReader(bytes.NewReader(data), opts...)
}

// ParseReader parses raw text from r.
func ParseReader(r io.Reader, opts ...Option) ([]domain.RawVerse, error) {
	m := &machine{}
	for _, opt := range opts {
		opt(m)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		m.feed(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	m.flush()

	if m.verses == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	return m.out, nil
}

// machine holds the parse state. Every transition that starts a new unit
// (verse, chapter, book, end of input) flushes the pending buffer first.
type machine struct {
	state         state
	book          string
	chapter       int
	lastVerse     int
	bookHasVerses bool
	introDone     bool
	shape         shape

	pending domain.RawVerse
	text    []string

	out    []domain.RawVerse
	verses int
}

func (m *machine) feed(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}

	if g := numberedVerseRe.FindStringSubmatch(line); g != nil {
		seq := atoi(g[1])
		if b, ok := bookBySeq(seq); ok {
			m.enterBook(b)
			m.openVerse(atoi(g[2]), atoi(g[3]), g[4])
			m.shape = shapeColon
			return
		}
	}

	if g := numberedBookRe.FindStringSubmatch(line); g != nil {
		if b, ok := bookBySeq(atoi(g[1])); ok {
			m.enterBook(b)
			return
		}
		if b, ok := domain.LookupBook(g[2]); ok {
			m.enterBook(b.Title)
			return
		}
	}

	if g := chapterRe.FindStringSubmatch(line); g != nil && m.book != "" {
		m.flush()
		m.chapter = atoi(g[1])
		m.lastVerse = 0
		m.shape = shapeSimple
		return
	}

	if g := bookVerseRe.FindStringSubmatch(line); g != nil {
		if b, ok := resolveBookPrefix(g[1]); ok {
			m.enterBook(b)
			m.openVerse(atoi(g[2]), atoi(g[3]), g[4])
			m.shape = shapeColon
			return
		}
	}

	if g := colonVerseRe.FindStringSubmatch(line); g != nil && m.book != "" {
		m.openVerse(atoi(g[1]), atoi(g[2]), g[3])
		m.shape = shapeColon
		return
	}

	// "1 Samuel" is a heading, not verse 1 of the open book.
	if b, ok := domain.LookupBook(line); ok {
		m.enterBook(b.Title)
		return
	}

	if g := simpleVerseRe.FindStringSubmatch(line); g != nil && m.book != "" {
		if n := atoi(g[1]); m.acceptsSimpleVerse(n) {
			chapter := m.chapter
			switch {
			case chapter == 0:
				chapter = 1
			case n == 1 && m.lastVerse > 1:
				chapter++
			}
			m.openVerse(chapter, n, g[2])
			m.shape = shapeSimple
			return
		}
	}

	if b, ok := domain.MatchBookHeading(line); ok {
		if b.Title != m.book {
			m.enterBook(b.Title)
		}
		return
	}

	m.appendText(line)
}

// acceptsSimpleVerse guards "<n> <text>" lines: the chapter must not be
// numbered "<ch>:<v>" and the number must continue the chapter's numbering or
// restart it, otherwise the line is wrapped text.
func (m *machine) acceptsSimpleVerse(n int) bool {
	if m.shape == shapeColon {
		return false
	}
	return n == 1 || n == m.lastVerse+1
}

func (m *machine) enterBook(title string) {
	if title == m.book {
		return
	}
	m.flush()
	m.book = title
	m.chapter = 0
	m.lastVerse = 0
	m.bookHasVerses = false
	m.introDone = false
	m.shape = shapeUnknown
}

func (m *machine) openVerse(chapter, verse int, text string) {
	m.flush()
	m.chapter = chapter
	m.lastVerse = verse
	m.bookHasVerses = true
	m.state = stateVerse
	m.pending = domain.RawVerse{Book: m.book, Chapter: chapter, Verse: verse}
	m.text = m.text[:0]
	if t := strings.TrimSpace(text); t != "" {
		m.text = append(m.text, t)
	}
}

func (m *machine) appendText(line string) {
	switch m.state {
	case stateVerse, stateIntro:
		m.text = append(m.text, line)
	case stateIdle:
		if m.book == "" || m.bookHasVerses || m.introDone {
			return
		}
		m.state = stateIntro
		m.pending = domain.RawVerse{Book: m.book}
		m.text = append(m.text[:0], line)
	}
}

func (m *machine) flush() {
	switch m.state {
	case stateVerse:
		m.pending.Text = collapse(m.text)
		m.out = append(m.out, m.pending)
		m.verses++
	case stateIntro:
		if text := collapse(m.text); text != "" {
			m.pending.Text = text
			m.out = append(m.out, m.pending)
		}
		m.introDone = true
	}
	m.state = stateIdle
	m.pending = domain.RawVerse{}
	m.text = m.text[:0]
}

// resolveBookPrefix resolves the text before "<ch>:<v>" to a book, trying the
// whole prefix first ("1 Samuel") and then without a leading row number.
func resolveBookPrefix(prefix string) (string, bool) {
	prefix = strings.TrimSpace(prefix)
	if b, ok := domain.LookupBook(prefix); ok {
		return b.Title, true
	}
	if rest := leadingNumberRe.ReplaceAllString(prefix, ""); rest != prefix {
		if b, ok := domain.LookupBook(rest); ok {
			return b.Title, true
		}
	}
	return "", false
}

func bookBySeq(seq int) (string, bool) {
	books := domain.CanonicalBooks()
	if seq < 1 || seq > len(books) {
		return "", false
	}
	return books[seq-1].Title, true
}

// collapse joins wrapped lines with single spaces.
func collapse(lines []string) string {
	return strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
