package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("storage.backend", "sqlite"))
	require.NoError(t, store.Set("storage.backend", "postgres"))

	val, ok := store.Get("storage.backend")
	assert.True(t, ok)
	assert.Equal(t, "postgres", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("s", "text"))
	require.NoError(t, store.Set("i", 7))
	require.NoError(t, store.Set("i64", int64(8)))
	require.NoError(t, store.Set("f", 0.25))
	require.NoError(t, store.Set("b", true))
	require.NoError(t, store.Set("d", "750ms"))
	require.NoError(t, store.Set("bad", "soon"))

	assert.Equal(t, "text", store.GetString("s"))
	assert.Equal(t, "", store.GetString("i"))

	assert.Equal(t, 7, store.GetInt("i"))
	assert.Equal(t, 8, store.GetInt("i64"))
	assert.Equal(t, 0, store.GetInt("s"))

	assert.InDelta(t, 0.25, store.GetFloat("f"), 1e-9)
	assert.InDelta(t, 7.0, store.GetFloat("i"), 1e-9)
	assert.Zero(t, store.GetFloat("missing"))

	assert.True(t, store.GetBool("b"))
	assert.False(t, store.GetBool("s"))

	assert.Equal(t, 750*time.Millisecond, store.GetDuration("d"))
	assert.Zero(t, store.GetDuration("bad"))
	assert.Zero(t, store.GetDuration("i"))
}

func TestConfigStore_SaveLoadPath(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("k", "v"))

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, "v", store.GetString("k"))
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key%d", n), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			_ = store.GetInt(fmt.Sprintf("key%d", n))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		assert.Equal(t, i, store.GetInt(fmt.Sprintf("key%d", i)))
	}
}
