package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verselens-cli/internal/core/ports/driven"
)

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewPromptStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".verselens", "prompts"), store.Dir())
	_, err = os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(err), "constructor must not touch the disk")
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptChunkSuggest)
	require.NoError(t, err)

	for _, f := range []string{"query_expand.txt", "chunk_suggest.txt", "summarise.txt", "README.md"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected file %s to exist", f)
	}
}

func TestPromptStore_Defaults(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	chunk, err := store.Load(driven.PromptChunkSuggest)
	require.NoError(t, err)
	assert.Contains(t, chunk, `"verse_numbers"`)
	assert.NotContains(t, chunk, "%s")

	expand, err := store.Load(driven.PromptQueryExpand)
	require.NoError(t, err)
	assert.NotContains(t, expand, "%s")

	summary, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	rendered := fmt.Sprintf(summary, "faith and works")
	assert.Contains(t, rendered, "faith and works")
	assert.NotContains(t, rendered, "%!")
}

func TestPromptStore_Load_CustomContentTrimmed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "query_expand.txt"), []byte("\n  Restate it.  \n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptQueryExpand)
	require.NoError(t, err)
	assert.Equal(t, "Restate it.", prompt)

	raw, err := os.ReadFile(filepath.Join(dir, "query_expand.txt"))
	require.NoError(t, err)
	assert.Equal(t, "\n  Restate it.  \n", string(raw), "existing files are never overwritten")
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "summarise.txt")))
	store.Reload()

	prompt, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptSummarise], prompt)
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nonexistent_prompt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent_prompt")
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	first, err := store.Load(driven.PromptQueryExpand)
	require.NoError(t, err)

	path := filepath.Join(dir, "query_expand.txt")
	require.NoError(t, os.WriteFile(path, []byte("edited"), 0600))

	cached, err := store.Load(driven.PromptQueryExpand)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptQueryExpand)
	require.NoError(t, err)
	assert.Equal(t, "edited", fresh)
}

func TestPromptStore_InitFailureUsesDefaults(t *testing.T) {
	store, err := NewPromptStore("/dev/null/prompts")
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptChunkSuggest)
	require.NoError(t, err)
	assert.Equal(t, defaultPrompts[driven.PromptChunkSuggest], prompt)

	_, err = store.Load("other")
	assert.Error(t, err)
}

func TestPromptStore_ConcurrentLoads(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := store.Load(driven.PromptChunkSuggest)
			assert.NoError(t, err)
			assert.NotEmpty(t, p)
		}()
	}
	wg.Wait()
}
