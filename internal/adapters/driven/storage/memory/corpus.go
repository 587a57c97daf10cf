package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// Ensure CorpusStore implements the interfaces.
var (
	_ driven.CorpusStore  = (*CorpusStore)(nil)
	_ driven.CorpusReader = (*CorpusStore)(nil)
	_ driven.SearchIndex  = (*CorpusStore)(nil)
)

type verseKey struct {
	bookID  string
	chapter int
	number  int
}

// CorpusStore is an in-memory corpus store, reader and search index.
// It backs dry runs and tests; nothing is persisted.
type CorpusStore struct {
	mu sync.RWMutex

	traditions map[string]domain.Tradition
	sources    map[string]domain.Source
	works      map[string]domain.Work
	books      map[string]domain.Book
	chapters   map[string]domain.Chapter

	chunks      map[string]domain.Chunk
	chunkByHash map[string]string

	verses     map[string]domain.Verse
	verseByKey map[verseKey]string

	dims int
}

// NewCorpusStore creates an empty in-memory corpus store.
func NewCorpusStore() *CorpusStore {
	return &CorpusStore{
		traditions:  make(map[string]domain.Tradition),
		sources:     make(map[string]domain.Source),
		works:       make(map[string]domain.Work),
		books:       make(map[string]domain.Book),
		chapters:    make(map[string]domain.Chapter),
		chunks:      make(map[string]domain.Chunk),
		chunkByHash: make(map[string]string),
		verses:      make(map[string]domain.Verse),
		verseByKey:  make(map[verseKey]string),
	}
}

// Dimensions returns the embedding size recorded by the first chunk, or 0.
func (s *CorpusStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// ChunkCount returns the number of stored chunks.
func (s *CorpusStore) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// VerseCount returns the number of stored verses.
func (s *CorpusStore) VerseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.verses)
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

// ==================== Hierarchy ====================

// FindTradition looks a tradition up by name.
func (s *CorpusStore) FindTradition(_ context.Context, name string) (*domain.Tradition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.traditions {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

// InsertTradition stores a new tradition.
func (s *CorpusStore) InsertTradition(_ context.Context, t *domain.Tradition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.traditions {
		if existing.Name == t.Name {
			return domain.ErrAlreadyExists
		}
	}
	ensureID(&t.ID)
	s.traditions[t.ID] = *t
	return nil
}

// FindSource looks a source up by (tradition, name).
func (s *CorpusStore) FindSource(_ context.Context, traditionID, name string) (*domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, src := range s.sources {
		if src.TraditionID == traditionID && src.Name == name {
			return &src, nil
		}
	}
	return nil, domain.ErrNotFound
}

// InsertSource stores a new source.
func (s *CorpusStore) InsertSource(_ context.Context, src *domain.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sources {
		if existing.TraditionID == src.TraditionID && existing.Name == src.Name {
			return domain.ErrAlreadyExists
		}
	}
	ensureID(&src.ID)
	s.sources[src.ID] = *src
	return nil
}

// FindWork looks a work up by (source, name).
func (s *CorpusStore) FindWork(_ context.Context, sourceID, name string) (*domain.Work, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.works {
		if w.SourceID == sourceID && w.Name == name {
			return &w, nil
		}
	}
	return nil, domain.ErrNotFound
}

// InsertWork stores a new work.
func (s *CorpusStore) InsertWork(_ context.Context, w *domain.Work) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.works {
		if existing.SourceID == w.SourceID && existing.Name == w.Name {
			return domain.ErrAlreadyExists
		}
	}
	ensureID(&w.ID)
	s.works[w.ID] = *w
	return nil
}

// FindBook looks a book up by (work, title).
func (s *CorpusStore) FindBook(_ context.Context, workID, title string) (*domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.books {
		if b.WorkID == workID && b.Title == title {
			return &b, nil
		}
	}
	return nil, domain.ErrNotFound
}

// InsertBook stores a new book.
func (s *CorpusStore) InsertBook(_ context.Context, b *domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.books {
		if existing.WorkID == b.WorkID && existing.Title == b.Title {
			return domain.ErrAlreadyExists
		}
	}
	ensureID(&b.ID)
	s.books[b.ID] = *b
	return nil
}

// FindChapter looks a chapter up by (book, number).
func (s *CorpusStore) FindChapter(_ context.Context, bookID string, number int) (*domain.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chapters {
		if c.BookID == bookID && c.Number == number {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// InsertChapter stores a new chapter.
func (s *CorpusStore) InsertChapter(_ context.Context, c *domain.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.chapters {
		if existing.BookID == c.BookID && existing.Number == c.Number {
			return domain.ErrAlreadyExists
		}
	}
	ensureID(&c.ID)
	s.chapters[c.ID] = *c
	return nil
}

// ==================== Chunks and verses ====================

// FindChunkByHash looks a chunk up by its idempotency hash.
func (s *CorpusStore) FindChunkByHash(_ context.Context, hash string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.chunkByHash[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := cloneChunk(s.chunks[id])
	return &c, nil
}

// InsertChunk stores a new chunk.
func (s *CorpusStore) InsertChunk(_ context.Context, c *domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunkByHash[c.Hash]; ok {
		return domain.ErrAlreadyExists
	}
	if err := s.checkDims(len(c.Embedding)); err != nil {
		return err
	}
	ensureID(&c.ID)
	s.chunks[c.ID] = cloneChunk(*c)
	s.chunkByHash[c.Hash] = c.ID
	return nil
}

// ReplaceChunk overwrites the chunk stored under c.Hash, keeping its ID.
func (s *CorpusStore) ReplaceChunk(_ context.Context, c *domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.chunkByHash[c.Hash]
	if !ok {
		return domain.ErrNotFound
	}
	if err := s.checkDims(len(c.Embedding)); err != nil {
		return err
	}
	c.ID = id
	s.chunks[id] = cloneChunk(*c)
	return nil
}

// checkDims records the dimensionality on first use (caller must hold lock).
func (s *CorpusStore) checkDims(n int) error {
	if n == 0 {
		return nil
	}
	if s.dims == 0 {
		s.dims = n
		return nil
	}
	if n != s.dims {
		return domain.ErrDimensionMismatch
	}
	return nil
}

// UpsertVerse inserts or updates a verse on its natural key.
func (s *CorpusStore) UpsertVerse(_ context.Context, v *domain.Verse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := verseKey{bookID: v.BookID, chapter: v.Chapter, number: v.Number}
	if id, ok := s.verseByKey[key]; ok {
		v.ID = id
	} else {
		ensureID(&v.ID)
		s.verseByKey[key] = v.ID
	}
	s.verses[v.ID] = *v
	return nil
}

func cloneChunk(c domain.Chunk) domain.Chunk {
	c.Chapters = slices.Clone(c.Chapters)
	c.VerseNumbers = slices.Clone(c.VerseNumbers)
	c.Embedding = slices.Clone(c.Embedding)
	return c
}

// ==================== Reader ====================

// Chunks returns chunks with book context.
func (s *CorpusStore) Chunks(_ context.Context, ids []string) ([]domain.ChunkInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChunkInfo, 0, len(ids))
	for _, id := range ids {
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		out = append(out, s.chunkInfo(c))
	}
	return out, nil
}

// ChunkVerses returns verses grouped by owning chunk.
func (s *CorpusStore) ChunkVerses(_ context.Context, chunkIDs []string) (map[string][]domain.VerseInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		want[id] = true
	}

	out := make(map[string][]domain.VerseInfo)
	for _, v := range s.verses {
		if want[v.ChunkID] {
			out[v.ChunkID] = append(out[v.ChunkID], s.verseInfo(v))
		}
	}
	for _, vs := range out {
		sort.Slice(vs, func(i, j int) bool {
			if vs[i].Chapter != vs[j].Chapter {
				return vs[i].Chapter < vs[j].Chapter
			}
			return vs[i].Number < vs[j].Number
		})
	}
	return out, nil
}

// Verse returns one verse with context.
func (s *CorpusStore) Verse(_ context.Context, id string) (*domain.VerseInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	info := s.verseInfo(v)
	return &info, nil
}

// Verses returns verses with context in the order of ids.
func (s *CorpusStore) Verses(_ context.Context, ids []string) ([]domain.VerseInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.VerseInfo, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.verses[id]; ok {
			out = append(out, s.verseInfo(v))
		}
	}
	return out, nil
}

// VerseByReference resolves a human reference to a verse.
func (s *CorpusStore) VerseByReference(_ context.Context, workID, book string, chapter, verse int) (*domain.VerseInfo, error) {
	title := book
	if b, ok := domain.LookupBook(book); ok {
		title = b.Title
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.books {
		if b.Title != title || (workID != "" && b.WorkID != workID) {
			continue
		}
		id, ok := s.verseByKey[verseKey{bookID: b.ID, chapter: chapter, number: verse}]
		if !ok {
			continue
		}
		info := s.verseInfo(s.verses[id])
		return &info, nil
	}
	return nil, domain.ErrNotFound
}

func (s *CorpusStore) chunkInfo(c domain.Chunk) domain.ChunkInfo {
	b := s.books[c.BookID]
	return domain.ChunkInfo{
		Chunk:     cloneChunk(c),
		BookTitle: b.Title,
		BookSeq:   b.Seq,
		WorkID:    b.WorkID,
	}
}

func (s *CorpusStore) verseInfo(v domain.Verse) domain.VerseInfo {
	b := s.books[v.BookID]
	info := domain.VerseInfo{
		Verse:     v,
		BookTitle: b.Title,
		BookSeq:   b.Seq,
		WorkID:    b.WorkID,
	}
	if c, ok := s.chapters[v.ChapterID]; ok {
		info.ChapterTitle = c.Title
	} else {
		info.ChapterTitle = domain.ChapterTitle(b.Title, v.Chapter)
	}
	return info
}

func (s *CorpusStore) inScope(bookID string, scope domain.Scope) bool {
	b := s.books[bookID]
	return scope.Matches(b.ID, b.WorkID, b.Seq)
}
