package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

func TestChunkCache_SaveAndLoad(t *testing.T) {
	cache := NewChunkCache(t.TempDir())
	plans := []domain.ChunkPlan{
		{Chapter: 3, VerseNumbers: []int{1, 2, 3}, CombinedText: "a b c", Method: domain.ChunkMethodSemantic},
		{Chapter: 3, VerseNumbers: []int{4, 5, 6}, CombinedText: "d e f", Method: domain.ChunkMethodSemantic},
	}

	require.NoError(t, cache.Save("1 Samuel", 3, plans))
	assert.FileExists(t, filepath.Join(cache.Dir(), "1_samuel", "chapter_003.json"))

	got, ok, err := cache.Load("1 Samuel", 3, []int{6, 5, 4, 3, 2, 1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, plans, got)
}

func TestChunkCache_Miss(t *testing.T) {
	cache := NewChunkCache(t.TempDir())

	_, ok, err := cache.Load("Genesis", 1, []int{1, 2, 3})

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChunkCache_CoverageMismatch(t *testing.T) {
	cache := NewChunkCache(t.TempDir())
	require.NoError(t, cache.Save("Genesis", 1, []domain.ChunkPlan{
		{Chapter: 1, VerseNumbers: []int{1, 2, 3}},
	}))

	tests := []struct {
		name   string
		verses []int
	}{
		{name: "verse added", verses: []int{1, 2, 3, 4}},
		{name: "verse removed", verses: []int{1, 2}},
		{name: "verse renumbered", verses: []int{1, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := cache.Load("Genesis", 1, tt.verses)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestChunkCache_DuplicateVersesRejected(t *testing.T) {
	cache := NewChunkCache(t.TempDir())
	require.NoError(t, cache.Save("Genesis", 1, []domain.ChunkPlan{
		{Chapter: 1, VerseNumbers: []int{1, 2}},
		{Chapter: 1, VerseNumbers: []int{2, 3}},
	}))

	_, ok, err := cache.Load("Genesis", 1, []int{1, 2, 3, 4})

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChunkCache_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	cache := NewChunkCache(dir)
	path := filepath.Join(dir, "genesis", "chapter_001.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, ok, err := cache.Load("Genesis", 1, []int{1})

	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSnapshots_WriteVerses(t *testing.T) {
	snaps := NewSnapshots(t.TempDir())
	verses := []domain.RawVerse{
		{Book: "Genesis", Chapter: 1, Verse: 2, Text: "And the earth"},
		{Book: "Genesis", Chapter: 0, Verse: 0, Text: "Intro"},
		{Book: "Genesis", Chapter: 1, Verse: 1, Text: "In the beginning"},
	}

	require.NoError(t, snaps.WriteVerses("Genesis", verses))

	data, err := os.ReadFile(snaps.VersesPath("Genesis"))
	require.NoError(t, err)
	var got BookSnapshot
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "Genesis", got.Book)
	assert.Equal(t, 1, got.Order)
	require.Len(t, got.Chapters, 2)
	assert.Equal(t, 0, got.Chapters[0].Number)
	assert.Equal(t, []VerseSnapshot{{1, "In the beginning"}, {2, "And the earth"}}, got.Chapters[1].Verses)
}

func TestSnapshots_WriteChunks(t *testing.T) {
	snaps := NewSnapshots(t.TempDir())
	chunks := []driven.ChunkSnapshot{{
		Hash: "abc",
		Plan: domain.ChunkPlan{Chapter: 1, VerseNumbers: []int{1, 2, 3}, CombinedText: "x y z", Method: domain.ChunkMethodHeuristic},
	}}

	require.NoError(t, snaps.WriteChunks("Song of Solomon", chunks))

	data, err := os.ReadFile(filepath.Join(filepath.Dir(snaps.ChunksPath("x")), "song_of_solomon.json"))
	require.NoError(t, err)
	var got ChunkFile
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 22, got.Order)
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, "abc", got.Chunks[0].Hash)
	assert.Equal(t, domain.ChunkMethodHeuristic, got.Chunks[0].Method)
}
