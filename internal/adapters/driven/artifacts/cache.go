package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

// Ensure ChunkCache implements the interface.
var _ driven.ChunkCache = (*ChunkCache)(nil)

// ChunkCache stores validated chunk boundaries at
// <dir>/<book>/chapter_<nnn>.json.
type ChunkCache struct {
	dir string
}

// cachedChapter is the file format of one cache entry.
type cachedChapter struct {
	Book    string             `json:"book"`
	Chapter int                `json:"chapter"`
	Chunks  []domain.ChunkPlan `json:"chunks"`
}

// NewChunkCache creates a cache rooted at dir. The directory is created on
// first save.
func NewChunkCache(dir string) *ChunkCache {
	return &ChunkCache{dir: dir}
}

// Dir returns the cache root.
func (c *ChunkCache) Dir() string {
	return c.dir
}

// Load returns the cached plans when their verse numbers cover exactly the
// given verse numbers. A missing file is a miss, not an error.
func (c *ChunkCache) Load(book string, chapter int, verseNumbers []int) ([]domain.ChunkPlan, bool, error) {
	data, err := os.ReadFile(c.path(book, chapter))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read chunk cache: %w", err)
	}

	var entry cachedChapter
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decode chunk cache %s: %w", c.path(book, chapter), err)
	}
	if entry.Chapter != chapter || !covers(entry.Chunks, verseNumbers) {
		return nil, false, nil
	}
	return entry.Chunks, true, nil
}

// Save overwrites the cache entry for the chapter.
func (c *ChunkCache) Save(book string, chapter int, plans []domain.ChunkPlan) error {
	path := c.path(book, chapter)
	entry := cachedChapter{Book: book, Chapter: chapter, Chunks: plans}
	if err := writeJSON(path, entry); err != nil {
		return fmt.Errorf("write chunk cache: %w", err)
	}
	return nil
}

func (c *ChunkCache) path(book string, chapter int) string {
	return filepath.Join(c.dir, domain.SanitizeName(book), fmt.Sprintf("chapter_%03d.json", chapter))
}

// covers reports whether the plans' verse numbers equal want as sets, with
// no verse appearing twice.
func covers(plans []domain.ChunkPlan, want []int) bool {
	var got []int
	for _, p := range plans {
		got = append(got, p.VerseNumbers...)
	}
	if len(got) != len(want) {
		return false
	}
	got = slices.Clone(got)
	want = slices.Clone(want)
	slices.Sort(got)
	slices.Sort(want)
	return slices.Equal(got, want) && len(slices.Compact(got)) == len(want)
}

// writeJSON writes v as indented JSON, replacing path atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
