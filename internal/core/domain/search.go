package domain

import "sort"

// Retrieval defaults.
const (
	DefaultSearchLimit    = 10
	DefaultVersesPerCard  = 3
	DefaultLexicalWeight  = 0.15
	DefaultFuzzyThreshold = 0.3
)

// Scope restricts retrieval to part of the corpus.
// Zero values mean "no restriction".
type Scope struct {
	BookID    string    `json:"book_id,omitempty"`
	WorkID    string    `json:"work_id,omitempty"`
	SeqMin    int       `json:"seq_min,omitempty"`
	SeqMax    int       `json:"seq_max,omitempty"`
	Testament Testament `json:"testament,omitempty"`
}

// Resolve folds the testament shorthand into the sequence range.
// An explicit range narrows the testament range rather than replacing it.
func (s Scope) Resolve() Scope {
	lo, hi, ok := s.Testament.SeqRange()
	if !ok {
		s.Testament = ""
		return s
	}
	if s.SeqMin < lo {
		s.SeqMin = lo
	}
	if s.SeqMax == 0 || s.SeqMax > hi {
		s.SeqMax = hi
	}
	s.Testament = ""
	return s
}

// IsZero reports whether the scope restricts nothing.
func (s Scope) IsZero() bool {
	r := s.Resolve()
	return r.BookID == "" && r.WorkID == "" && r.SeqMin == 0 && r.SeqMax == 0
}

// Matches reports whether a book with the given identity falls inside the scope.
func (s Scope) Matches(bookID, workID string, seq int) bool {
	r := s.Resolve()
	if r.BookID != "" && r.BookID != bookID {
		return false
	}
	if r.WorkID != "" && r.WorkID != workID {
		return false
	}
	if r.SeqMin > 0 && seq < r.SeqMin {
		return false
	}
	if r.SeqMax > 0 && seq > r.SeqMax {
		return false
	}
	return true
}

// Exclusions drop candidates that share a location with the source item
// in similarity-by-item mode.
type Exclusions struct {
	SameChapter bool `json:"same_chapter,omitempty"`
	SameBook    bool `json:"same_book,omitempty"`
	SameWork    bool `json:"same_work,omitempty"`
}

// SearchOptions configures a retrieval request.
type SearchOptions struct {
	// Limit is the number of cards to return.
	Limit int

	// VersesPerCard caps the verses shown per card. The pinned verse is always kept.
	VersesPerCard int

	// Lexical enables blending fuzzy text similarity into verse scores.
	Lexical bool

	// LexicalWeight scales the lexical boost. Zero means DefaultLexicalWeight.
	LexicalWeight float64

	// Expand averages the query embedding with an LLM restatement of the query.
	Expand bool

	// Diversity enables MMR selection when > 0; the value is lambda. Zero
	// takes the configured default and DiversityOff (any negative value)
	// disables MMR even when a default is configured.
	Diversity float64

	// PinVerseID guarantees the verse's chunk appears first in the results.
	PinVerseID string

	// Scope restricts candidates.
	Scope Scope

	// Exclude applies only to similarity-by-item requests.
	Exclude Exclusions
}

// DiversityOff disables MMR selection for one request.
const DiversityOff = -1.0

// WithDefaults fills unset fields with their defaults.
func (o SearchOptions) WithDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultSearchLimit
	}
	if o.VersesPerCard <= 0 {
		o.VersesPerCard = DefaultVersesPerCard
	}
	if o.LexicalWeight <= 0 {
		o.LexicalWeight = DefaultLexicalWeight
	}
	if o.Diversity > 1 {
		o.Diversity = 1
	}
	o.Scope = o.Scope.Resolve()
	return o
}

// ScoredVerse is one verse with the scores that ranked it.
type ScoredVerse struct {
	Verse      VerseInfo `json:"verse"`
	Similarity float64   `json:"similarity"`
	Lexical    float64   `json:"lexical"`
	Score      float64   `json:"score"`
}

// Card is one chunk in a ranked result list, with its best verses.
type Card struct {
	Chunk      ChunkInfo     `json:"chunk"`
	Similarity float64       `json:"similarity"`
	Score      float64       `json:"score"`
	Pinned     bool          `json:"pinned,omitempty"`
	Verses     []ScoredVerse `json:"verses"`
}

// SearchResult is the response to a search or similarity request.
type SearchResult struct {
	Query   string `json:"query,omitempty"`
	Cards   []Card `json:"cards"`
	Summary string `json:"summary,omitempty"`
}

// LexicalTarget selects what lexical-only search matches against.
type LexicalTarget string

// Lexical-only targets.
const (
	LexicalTargetVerses   LexicalTarget = "verses"
	LexicalTargetChapters LexicalTarget = "chapters"
)

// LexicalStage names the layer that produced lexical-only results.
type LexicalStage string

// Lexical-only stages in the order they are attempted.
const (
	LexicalStageFuzzy     LexicalStage = "fuzzy"
	LexicalStagePhrase    LexicalStage = "phrase"
	LexicalStageAnyWord   LexicalStage = "any_word"
	LexicalStageChunk     LexicalStage = "chunk_text"
	LexicalStageFirstWord LexicalStage = "first_word"
)

// LexicalOptions configures lexical-only search.
type LexicalOptions struct {
	Target LexicalTarget
	Limit  int
	Scope  Scope
}

// LexicalHit is a single lexical-only match enriched with display context.
type LexicalHit struct {
	Reference string        `json:"reference"`
	Score     float64       `json:"score"`
	Stage     LexicalStage  `json:"stage"`
	Verse     *VerseInfo    `json:"verse,omitempty"`
	Chapter   *ChapterMatch `json:"chapter,omitempty"`
}

// ChapterMatch is a chapter found by title similarity.
type ChapterMatch struct {
	Chapter
	BookTitle string  `json:"book_title"`
	BookSeq   int     `json:"book_seq"`
	WorkID    string  `json:"work_id"`
	Score     float64 `json:"score"`
}

// ScoredID is an index hit: an entity id with its similarity.
type ScoredID struct {
	ID    string
	Score float64
}

// SortScored orders hits by descending score, then ascending ID, and keeps at
// most limit of them. A limit of zero or less keeps all.
func SortScored(hits []ScoredID, limit int) []ScoredID {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
