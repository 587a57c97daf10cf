package domain

import (
	"fmt"
	"strings"
)

// ParseTestament accepts "old", "new", "ot" and "nt" in any case.
// An empty string means no restriction.
func ParseTestament(s string) (Testament, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t := Testament(strings.ToLower(s))
	if _, _, ok := t.SeqRange(); !ok {
		return "", fmt.Errorf("%w: testament must be old or new, got %q", ErrInvalidInput, s)
	}
	return t, nil
}

// ParseExclusions reads a comma-separated list of "chapter", "book" and "work".
func ParseExclusions(s string) (Exclusions, error) {
	var ex Exclusions
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "chapter":
			ex.SameChapter = true
		case "book":
			ex.SameBook = true
		case "work":
			ex.SameWork = true
		default:
			return Exclusions{}, fmt.Errorf("%w: unknown exclusion %q", ErrInvalidInput, part)
		}
	}
	return ex, nil
}

// WithBook narrows the scope to one canonical book through its sequence number,
// so the same name selects the book in every work.
func (s Scope) WithBook(name string) (Scope, error) {
	if strings.TrimSpace(name) == "" {
		return s, nil
	}
	b, ok := LookupBook(name)
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownBook, name)
	}
	s.SeqMin, s.SeqMax = b.Seq, b.Seq
	return s, nil
}

// NewScope assembles a scope from request parameters. A book name overrides
// the sequence range; the testament is folded in by Resolve.
func NewScope(book, workID string, seqMin, seqMax int, testament string) (Scope, error) {
	if seqMin < 0 || seqMax < 0 || (seqMax > 0 && seqMin > seqMax) {
		return Scope{}, fmt.Errorf("%w: invalid sequence range %d..%d", ErrInvalidInput, seqMin, seqMax)
	}
	t, err := ParseTestament(testament)
	if err != nil {
		return Scope{}, err
	}
	s := Scope{WorkID: strings.TrimSpace(workID), SeqMin: seqMin, SeqMax: seqMax, Testament: t}
	return s.WithBook(book)
}
