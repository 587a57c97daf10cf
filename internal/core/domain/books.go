package domain

import (
	"regexp"
	"strings"
	"unicode"
)

// CanonicalBook is one entry of the fixed book catalogue.
type CanonicalBook struct {
	Title   string
	Seq     int
	Aliases []string
}

// Testament is the legacy shorthand for a fixed book-sequence range.
type Testament string

// Supported testament shorthands.
const (
	TestamentOld Testament = "old"
	TestamentNew Testament = "new"
)

// Sequence bounds of the two testaments.
const (
	OldTestamentFirst = 1
	OldTestamentLast  = 39
	NewTestamentFirst = 40
	NewTestamentLast  = 66
)

// SeqRange returns the inclusive sequence range for the testament.
func (t Testament) SeqRange() (lo, hi int, ok bool) {
	switch Testament(strings.ToLower(string(t))) {
	case TestamentOld, "ot":
		return OldTestamentFirst, OldTestamentLast, true
	case TestamentNew, "nt":
		return NewTestamentFirst, NewTestamentLast, true
	default:
		return 0, 0, false
	}
}

var canonicalBooks = []CanonicalBook{
	{"Genesis", 1, nil},
	{"Exodus", 2, nil},
	{"Leviticus", 3, nil},
	{"Numbers", 4, nil},
	{"Deuteronomy", 5, nil},
	{"Joshua", 6, nil},
	{"Judges", 7, nil},
	{"Ruth", 8, nil},
	{"1 Samuel", 9, []string{"First Book of Samuel"}},
	{"2 Samuel", 10, []string{"Second Book of Samuel"}},
	{"1 Kings", 11, []string{"First Book of Kings", "First Book of the Kings", "Third Book of the Kings"}},
	{"2 Kings", 12, []string{"Second Book of Kings", "Second Book of the Kings", "Fourth Book of the Kings"}},
	{"1 Chronicles", 13, []string{"First Book of Chronicles", "First Book of the Chronicles"}},
	{"2 Chronicles", 14, []string{"Second Book of Chronicles", "Second Book of the Chronicles"}},
	{"Ezra", 15, nil},
	{"Nehemiah", 16, nil},
	{"Esther", 17, nil},
	{"Job", 18, nil},
	{"Psalms", 19, []string{"Book of Psalms"}},
	{"Proverbs", 20, nil},
	{"Ecclesiastes", 21, []string{"Ecclesiastes or the Preacher"}},
	{"Song of Solomon", 22, []string{"Canticles", "Song of Songs"}},
	{"Isaiah", 23, nil},
	{"Jeremiah", 24, nil},
	{"Lamentations", 25, nil},
	{"Ezekiel", 26, nil},
	{"Daniel", 27, nil},
	{"Hosea", 28, nil},
	{"Joel", 29, nil},
	{"Amos", 30, nil},
	{"Obadiah", 31, nil},
	{"Jonah", 32, nil},
	{"Micah", 33, nil},
	{"Nahum", 34, nil},
	{"Habakkuk", 35, nil},
	{"Zephaniah", 36, nil},
	{"Haggai", 37, nil},
	{"Zechariah", 38, nil},
	{"Malachi", 39, nil},
	{"Matthew", 40, nil},
	{"Mark", 41, nil},
	{"Luke", 42, nil},
	{"John", 43, nil},
	{"Acts", 44, []string{"Acts of the Apostles"}},
	{"Romans", 45, nil},
	{"1 Corinthians", 46, []string{"First Epistle of Paul the Apostle to the Corinthians"}},
	{"2 Corinthians", 47, []string{"Second Epistle of Paul the Apostle to the Corinthians"}},
	{"Galatians", 48, nil},
	{"Ephesians", 49, nil},
	{"Philippians", 50, nil},
	{"Colossians", 51, nil},
	{"1 Thessalonians", 52, []string{"First Epistle to the Thessalonians"}},
	{"2 Thessalonians", 53, []string{"Second Epistle to the Thessalonians"}},
	{"1 Timothy", 54, []string{"First Epistle to Timothy"}},
	{"2 Timothy", 55, []string{"Second Epistle to Timothy"}},
	{"Titus", 56, nil},
	{"Philemon", 57, nil},
	{"Hebrews", 58, nil},
	{"James", 59, nil},
	{"1 Peter", 60, []string{"First Epistle General of Peter"}},
	{"2 Peter", 61, []string{"Second Epistle General of Peter"}},
	{"1 John", 62, []string{"First Epistle General of John"}},
	{"2 John", 63, []string{"Second Epistle of John"}},
	{"3 John", 64, []string{"Third Epistle of John"}},
	{"Jude", 65, nil},
	{"Revelation", 66, []string{"Revelation of St. John", "Revelation of St. John the Divine", "Apocalypse"}},
}

// bookKeys maps every normalized title and alias to its catalogue index.
var bookKeys = func() map[string]int {
	keys := make(map[string]int, len(canonicalBooks)*2)
	for i, b := range canonicalBooks {
		keys[NormalizeTitle(b.Title)] = i
		for _, a := range b.Aliases {
			keys[NormalizeTitle(a)] = i
		}
	}
	return keys
}()

// CanonicalBooks returns the catalogue in canonical order.
func CanonicalBooks() []CanonicalBook {
	out := make([]CanonicalBook, len(canonicalBooks))
	copy(out, canonicalBooks)
	return out
}

// LookupBook resolves a book name after normalization.
// Only exact title or alias matches are accepted.
func LookupBook(name string) (CanonicalBook, bool) {
	i, ok := bookKeys[NormalizeTitle(name)]
	if !ok {
		return CanonicalBook{}, false
	}
	return canonicalBooks[i], true
}

// BookSeq returns the canonical sequence number of a book, or 0 when unknown.
func BookSeq(name string) int {
	if b, ok := LookupBook(name); ok {
		return b.Seq
	}
	return 0
}

// MatchBookHeading resolves a header line to a book.
// Exact matches win. Lines without lowercase letters may also match a title or
// alias appearing as a whole-word phrase (e.g. "THE FIRST BOOK OF MOSES, CALLED GENESIS");
// the earliest phrase wins, ties going to the longest.
func MatchBookHeading(line string) (CanonicalBook, bool) {
	if b, ok := LookupBook(line); ok {
		return b, true
	}
	if strings.IndexFunc(line, unicode.IsLower) >= 0 {
		return CanonicalBook{}, false
	}

	padded := " " + NormalizeTitle(line) + " "
	best, bestPos, bestLen := -1, len(padded), 0
	for key, i := range bookKeys {
		pos := strings.Index(padded, " "+key+" ")
		if pos < 0 {
			continue
		}
		if pos < bestPos || (pos == bestPos && len(key) > bestLen) {
			best, bestPos, bestLen = i, pos, len(key)
		}
	}
	if best < 0 {
		return CanonicalBook{}, false
	}
	return canonicalBooks[best], true
}

var (
	trailingParenRe = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	titlePunctRe    = regexp.MustCompile(`[\-:,;'"’.]+`)
)

var spelledNumbers = map[string]string{
	"first": "1", "second": "2", "third": "3", "fourth": "4",
	"one": "1", "two": "2", "three": "3", "four": "4",
	"i": "1", "ii": "2", "iii": "3",
}

// NormalizeTitle folds a book title for comparison: case-fold, strip trailing
// parentheticals, drop punctuation, collapse whitespace, and map spelled-out
// small numbers (and leading roman numerals) to digits.
func NormalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for {
		stripped := trailingParenRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = titlePunctRe.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	for i, f := range fields {
		d, ok := spelledNumbers[f]
		if !ok {
			continue
		}
		// Roman numerals only count as numbers in leading position ("I Samuel").
		if strings.Trim(f, "i") == "" && i != 0 {
			continue
		}
		fields[i] = d
	}
	return strings.Join(fields, " ")
}

// SanitizeName turns a book title into a file-system-safe artifact key.
func SanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
