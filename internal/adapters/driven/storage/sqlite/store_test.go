package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

type seeded struct {
	store             *Store
	workID            string
	genesis, john     domain.Book
	genChapter        domain.Chapter
	genChunk, joChunk domain.Chunk
	genVerses         []domain.Verse
}

// seed stores Genesis 1:1-3 and John 1:1-3 as one chunk each.
func seed(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	s := setupTestStore(t)
	cs := s.CorpusStore()

	trad := &domain.Tradition{Name: domain.DefaultTradition}
	require.NoError(t, cs.InsertTradition(ctx, trad))
	src := &domain.Source{TraditionID: trad.ID, Name: domain.DefaultSource}
	require.NoError(t, cs.InsertSource(ctx, src))
	work := &domain.Work{SourceID: src.ID, Name: domain.DefaultWork}
	require.NoError(t, cs.InsertWork(ctx, work))

	gen := &domain.Book{WorkID: work.ID, Title: "Genesis", Seq: 1}
	require.NoError(t, cs.InsertBook(ctx, gen))
	john := &domain.Book{WorkID: work.ID, Title: "John", Seq: 43}
	require.NoError(t, cs.InsertBook(ctx, john))

	genCh := &domain.Chapter{BookID: gen.ID, Number: 1, Title: "Genesis 1"}
	require.NoError(t, cs.InsertChapter(ctx, genCh))
	johnCh := &domain.Chapter{BookID: john.ID, Number: 1, Title: "John 1"}
	require.NoError(t, cs.InsertChapter(ctx, johnCh))

	genChunk := &domain.Chunk{BookID: gen.ID, Hash: "h-gen", Chapters: []int{1}, VerseNumbers: []int{1, 2, 3},
		CombinedText: "In the beginning God created the heaven and the earth. And the earth was without form. And God said, Let there be light.",
		Embedding:    []float32{1, 0, 0}}
	require.NoError(t, cs.InsertChunk(ctx, genChunk))
	johnChunk := &domain.Chunk{BookID: john.ID, Hash: "h-john", Chapters: []int{1}, VerseNumbers: []int{1, 2, 3},
		CombinedText: "In the beginning was the Word. The same was in the beginning with God. All things were made by him.",
		Embedding:    []float32{0.8, 0.6, 0}}
	require.NoError(t, cs.InsertChunk(ctx, johnChunk))

	genTexts := []string{
		"In the beginning God created the heaven and the earth.",
		"And the earth was without form.",
		"And God said, Let there be light.",
	}
	var genVerses []domain.Verse
	for i, text := range genTexts {
		v := &domain.Verse{BookID: gen.ID, ChapterID: genCh.ID, ChunkID: genChunk.ID, Chapter: 1, Number: i + 1, Text: text}
		require.NoError(t, cs.UpsertVerse(ctx, v))
		genVerses = append(genVerses, *v)
	}
	johnTexts := []string{
		"In the beginning was the Word.",
		"The same was in the beginning with God.",
		"All things were made by him.",
	}
	for i, text := range johnTexts {
		v := &domain.Verse{BookID: john.ID, ChapterID: johnCh.ID, ChunkID: johnChunk.ID, Chapter: 1, Number: i + 1, Text: text}
		require.NoError(t, cs.UpsertVerse(ctx, v))
	}

	return seeded{
		store: s, workID: work.ID, genesis: *gen, john: *john, genChapter: *genCh,
		genChunk: *genChunk, joChunk: *johnChunk, genVerses: genVerses,
	}
}

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()
	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(tempDir, "corpus.db"), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b")
	store, err := NewStore(nested)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStore_MigrationsRecorded(t *testing.T) {
	tempDir := t.TempDir()
	store, err := NewStore(tempDir)
	require.NoError(t, err)

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
	require.NoError(t, store.Close())

	// Reopening must not re-run the corpus migration.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()
	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store := setupTestStore(t)

	var enabled int
	require.NoError(t, store.db.QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)
}

func TestStore_InterfaceGetters(t *testing.T) {
	store := setupTestStore(t)

	assert.NotNil(t, store.CorpusStore())
	assert.NotNil(t, store.CorpusReader())
	assert.NotNil(t, store.SearchIndex())
}

func TestCorpusStore_HierarchyFindOrInsert(t *testing.T) {
	ctx := context.Background()
	cs := setupTestStore(t).CorpusStore()

	_, err := cs.FindTradition(ctx, "KJV")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	trad := &domain.Tradition{Name: "KJV"}
	require.NoError(t, cs.InsertTradition(ctx, trad))
	assert.NotEmpty(t, trad.ID)
	assert.ErrorIs(t, cs.InsertTradition(ctx, &domain.Tradition{Name: "KJV"}), domain.ErrAlreadyExists)

	found, err := cs.FindTradition(ctx, "KJV")
	require.NoError(t, err)
	assert.Equal(t, trad.ID, found.ID)

	src := &domain.Source{TraditionID: trad.ID, Name: "src"}
	require.NoError(t, cs.InsertSource(ctx, src))
	work := &domain.Work{SourceID: src.ID, Name: "work"}
	require.NoError(t, cs.InsertWork(ctx, work))
	gotWork, err := cs.FindWork(ctx, src.ID, "work")
	require.NoError(t, err)
	assert.Equal(t, work.ID, gotWork.ID)

	book := &domain.Book{WorkID: work.ID, Title: "Genesis", Seq: 1}
	require.NoError(t, cs.InsertBook(ctx, book))
	assert.ErrorIs(t, cs.InsertBook(ctx, &domain.Book{WorkID: work.ID, Title: "Genesis", Seq: 1}), domain.ErrAlreadyExists)
	gotBook, err := cs.FindBook(ctx, work.ID, "Genesis")
	require.NoError(t, err)
	assert.Equal(t, 1, gotBook.Seq)

	ch := &domain.Chapter{BookID: book.ID, Number: 1, Title: "Genesis 1"}
	require.NoError(t, cs.InsertChapter(ctx, ch))
	assert.ErrorIs(t, cs.InsertChapter(ctx, &domain.Chapter{BookID: book.ID, Number: 1, Title: "x"}), domain.ErrAlreadyExists)
	gotCh, err := cs.FindChapter(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, gotCh.ID)
}

func TestCorpusStore_ChunkIdempotency(t *testing.T) {
	ctx := context.Background()
	sd := seed(t)
	cs := sd.store.CorpusStore()

	dup := &domain.Chunk{BookID: sd.genesis.ID, Hash: "h-gen", Chapters: []int{1}, VerseNumbers: []int{1}, Embedding: []float32{0, 1, 0}}
	assert.ErrorIs(t, cs.InsertChunk(ctx, dup), domain.ErrAlreadyExists)

	found, err := cs.FindChunkByHash(ctx, "h-gen")
	require.NoError(t, err)
	assert.Equal(t, sd.genChunk.ID, found.ID)
	assert.Equal(t, []int{1}, found.Chapters)
	assert.Equal(t, []int{1, 2, 3}, found.VerseNumbers)
	assert.Equal(t, []float32{1, 0, 0}, found.Embedding)

	repl := &domain.Chunk{BookID: sd.genesis.ID, Hash: "h-gen", Chapters: []int{1}, VerseNumbers: []int{1, 2, 3},
		CombinedText: "replaced", Embedding: []float32{0, 0, 1}}
	require.NoError(t, cs.ReplaceChunk(ctx, repl))
	assert.Equal(t, sd.genChunk.ID, repl.ID)

	found, err = cs.FindChunkByHash(ctx, "h-gen")
	require.NoError(t, err)
	assert.Equal(t, "replaced", found.CombinedText)
	assert.Equal(t, []float32{0, 0, 1}, found.Embedding)

	assert.ErrorIs(t, cs.ReplaceChunk(ctx, &domain.Chunk{Hash: "missing", Embedding: []float32{1, 0, 0}}), domain.ErrNotFound)
	_, err = cs.FindChunkByHash(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCorpusStore_DimensionGuard(t *testing.T) {
	ctx := context.Background()
	sd := seed(t)
	cs := sd.store.CorpusStore()

	dims, err := sd.store.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dims)

	err = cs.InsertChunk(ctx, &domain.Chunk{BookID: sd.genesis.ID, Hash: "h-bad", Embedding: []float32{1, 2}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = sd.store.SearchIndex().NearestChunks(ctx, []float32{1}, 5, domain.Scope{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCorpusStore_DimensionsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	cs := store.CorpusStore()
	trad := &domain.Tradition{Name: "t"}
	require.NoError(t, cs.InsertTradition(ctx, trad))
	src := &domain.Source{TraditionID: trad.ID, Name: "s"}
	require.NoError(t, cs.InsertSource(ctx, src))
	work := &domain.Work{SourceID: src.ID, Name: "w"}
	require.NoError(t, cs.InsertWork(ctx, work))
	book := &domain.Book{WorkID: work.ID, Title: "Ruth", Seq: 8}
	require.NoError(t, cs.InsertBook(ctx, book))
	require.NoError(t, cs.InsertChunk(ctx, &domain.Chunk{BookID: book.ID, Hash: "a", Embedding: []float32{1, 2, 3, 4}}))
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()
	dims, err := store.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)
}

func TestCorpusStore_UpsertVerseKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	sd := seed(t)
	cs := sd.store.CorpusStore()

	again := &domain.Verse{BookID: sd.genesis.ID, ChapterID: sd.genChapter.ID, ChunkID: sd.joChunk.ID,
		Chapter: 1, Number: 1, Text: "rewritten"}
	require.NoError(t, cs.UpsertVerse(ctx, again))
	assert.Equal(t, sd.genVerses[0].ID, again.ID)

	got, err := sd.store.CorpusReader().Verse(ctx, again.ID)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", got.Text)
	assert.Equal(t, sd.joChunk.ID, got.ChunkID)
}

func TestCorpusReader(t *testing.T) {
	ctx := context.Background()
	sd := seed(t)
	r := sd.store.CorpusReader()

	chunks, err := r.Chunks(ctx, []string{sd.joChunk.ID, "missing", sd.genChunk.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "John", chunks[0].BookTitle)
	assert.Equal(t, 43, chunks[0].BookSeq)
	assert.Equal(t, sd.workID, chunks[1].WorkID)
	assert.Len(t, chunks[1].Embedding, 3)

	byChunk, err := r.ChunkVerses(ctx, []string{sd.genChunk.ID})
	require.NoError(t, err)
	require.Len(t, byChunk[sd.genChunk.ID], 3)
	assert.Equal(t, 1, byChunk[sd.genChunk.ID][0].Number)
	assert.Equal(t, "Genesis 1", byChunk[sd.genChunk.ID][0].ChapterTitle)

	_, err = r.Verse(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	v, err := r.VerseByReference(ctx, "", "gen", 1, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, v)

	v, err = r.VerseByReference(ctx, sd.workID, "genesis", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Genesis 1:2", v.Reference())

	v, err = r.VerseByReference(ctx, "", "GENESIS", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, sd.genVerses[2].ID, v.ID)

	vs, err := r.Verses(ctx, []string{sd.genVerses[2].ID, sd.genVerses[0].ID})
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, []int{3, 1}, []int{vs[0].Number, vs[1].Number})
}

func TestSearchIndex_NearestChunks(t *testing.T) {
	ctx := context.Background()
	sd := seed(t)
	idx := sd.store.SearchIndex()

	hits, err := idx.NearestChunks(ctx, []float32{0, 1, 0}, 10, domain.Scope{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, sd.joChunk.ID, hits[0].ID)
	assert.InDelta(t, 0.6, hits[0].Score, 1e-6)

	hits, err = idx.NearestChunks(ctx, []float32{0, 1, 0}, 10, domain.Scope{Testament: domain.TestamentOld})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, sd.genChunk.ID, hits[0].ID)

	hits, err = idx.NearestChunks(ctx, []float32{0, 1, 0}, 1, domain.Scope{WorkID: sd.workID})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	sim, err := idx.ChunkSimilarity(ctx, []float32{1, 0, 0}, sd.joChunk.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, sim, 1e-6)

	_, err = idx.ChunkSimilarity(ctx, []float32{1, 0, 0}, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearchIndex_TextSearch(t *testing.T) {
	ctx := context.Background()
	sd := seed(t)
	idx := sd.store.SearchIndex()

	scores, err := idx.TextSimilarity(ctx, "let there be light", []string{sd.genVerses[0].ID, sd.genVerses[2].ID})
	require.NoError(t, err)
	assert.Greater(t, scores[sd.genVerses[2].ID], scores[sd.genVerses[0].ID])

	fuzzy, err := idx.FuzzyVerses(ctx, "beginning", 10, domain.Scope{})
	require.NoError(t, err)
	assert.Len(t, fuzzy, 3)

	fuzzy, err = idx.FuzzyVerses(ctx, "beginning", 10, domain.Scope{BookID: sd.john.ID})
	require.NoError(t, err)
	assert.Len(t, fuzzy, 2)

	phrase, err := idx.PhraseVerses(ctx, "WITHOUT FORM", 10, domain.Scope{})
	require.NoError(t, err)
	require.Len(t, phrase, 1)
	assert.Equal(t, sd.genVerses[1].ID, phrase[0].ID)

	words, err := idx.AnyWordVerses(ctx, []string{"light", "word"}, 10, domain.Scope{})
	require.NoError(t, err)
	assert.Len(t, words, 2)
	assert.InDelta(t, 0.5, words[0].Score, 1e-9)

	chunks, err := idx.ChunksContaining(ctx, "made by him", 10, domain.Scope{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, sd.joChunk.ID, chunks[0].ID)

	chapters, err := idx.FuzzyChapters(ctx, "john 1", 10, domain.Scope{})
	require.NoError(t, err)
	require.NotEmpty(t, chapters)
	assert.Equal(t, "John", chapters[0].BookTitle)

	empty, err := idx.FuzzyVerses(ctx, "  ", 10, domain.Scope{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFloat32Blob(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestScopeClause(t *testing.T) {
	where, args := scopeClause(domain.Scope{Testament: domain.TestamentNew, BookID: "b"})
	assert.Equal(t, " AND b.id = ? AND b.seq >= ? AND b.seq <= ?", where)
	assert.Equal(t, []any{"b", 40, 66}, args)

	where, args = scopeClause(domain.Scope{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}
