package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*LinkCache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "seen_links.json")
	return NewLinkCache(path, nil), path
}

func TestLinkCacheMissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	cache, path := newTestCache(t)

	stats := cache.Stats()
	assert.Equal(t, 0, stats.TotalLinks)
	assert.False(t, stats.Exists)
	assert.Equal(t, path, stats.Location)
	assert.True(t, cache.IsNew("https://example.org/a"))
}

func TestLinkCacheCorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen_links.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	cache := NewLinkCache(path, nil)

	assert.Equal(t, 0, cache.Stats().TotalLinks)
	assert.True(t, cache.Stats().Exists)
}

func TestLinkCacheMarkAsSeenIsIdempotent(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	cache.MarkAsSeen("https://example.org/a")
	once := cache.Stats().TotalLinks

	cache.MarkAsSeen("https://example.org/a")

	assert.Equal(t, 1, once)
	assert.Equal(t, once, cache.Stats().TotalLinks)
	assert.False(t, cache.IsNew("https://example.org/a"))
}

func TestLinkCacheMarkMultipleAsSeen(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	cache.MarkAsSeen("a")
	cache.MarkMultipleAsSeen([]string{"a", "b", "c", "b"})

	assert.Equal(t, 3, cache.Stats().TotalLinks)
}

func TestLinkCacheFilterNewLinksPreservesOrder(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	cache.MarkMultipleAsSeen([]string{"b", "d"})

	got := cache.FilterNewLinks([]string{"e", "b", "a", "d", "c"})

	assert.Equal(t, []string{"e", "a", "c"}, got)
	assert.True(t, cache.IsNew("e"), "filter must not mark links")
	assert.Equal(t, 2, cache.Stats().TotalLinks)
}

func TestLinkCacheClaimCapsAndMarks(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	cache.MarkAsSeen("b")

	got, fresh := cache.Claim([]string{"a", "b", "c", "d", "e"}, 2)

	assert.Equal(t, []string{"a", "c"}, got)
	assert.Equal(t, 4, fresh)
	assert.False(t, cache.IsNew("a"))
	assert.False(t, cache.IsNew("c"))
	assert.True(t, cache.IsNew("d"))

	again, fresh := cache.Claim([]string{"a", "c", "d"}, 5)
	assert.Equal(t, []string{"d"}, again)
	assert.Equal(t, 1, fresh)
}

func TestLinkCacheReloadForgetsUnpersistedLinks(t *testing.T) {
	t.Parallel()

	cache, path := newTestCache(t)
	cache.MarkAsSeen("kept")
	require.NoError(t, cache.Persist())

	claimed, _ := cache.Claim([]string{"lost"}, 5)
	require.Equal(t, []string{"lost"}, claimed)

	cache.Reload()

	assert.False(t, cache.IsNew("kept"))
	assert.True(t, cache.IsNew("lost"))
	assert.Equal(t, 1, cache.Stats().TotalLinks)

	require.NoError(t, cache.Delete())
	cache.MarkAsSeen("memory-only")
	cache.Reload()
	assert.Equal(t, 0, cache.Stats().TotalLinks)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLinkCachePersistReloadRoundTrip(t *testing.T) {
	t.Parallel()

	cache, path := newTestCache(t)
	cache.now = func() time.Time { return time.Date(2025, time.March, 1, 20, 0, 0, 0, time.UTC) }
	links := []string{"https://lore.kernel.org/lkml/1/", "https://www.phoronix.com/news/x", "https://news.itsfoss.com/y"}
	cache.MarkMultipleAsSeen(links)

	require.NoError(t, cache.Persist())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk cacheFile
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.ElementsMatch(t, links, onDisk.SeenLinks)
	assert.Equal(t, "2025-03-01T20:00:00Z", onDisk.LastUpdated)

	reloaded := NewLinkCache(path, nil)
	assert.Equal(t, len(links), reloaded.Stats().TotalLinks)
	for _, link := range links {
		assert.False(t, reloaded.IsNew(link), link)
	}
}

func TestLinkCachePersistLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	cache, path := newTestCache(t)
	cache.MarkAsSeen("a")
	require.NoError(t, cache.Persist())
	require.NoError(t, cache.Persist())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "seen_links.json", entries[0].Name())
}

func TestLinkCacheClearPersistsEmptySet(t *testing.T) {
	t.Parallel()

	cache, path := newTestCache(t)
	cache.MarkMultipleAsSeen([]string{"a", "b"})
	require.NoError(t, cache.Persist())

	require.NoError(t, cache.Clear())

	assert.Equal(t, 0, cache.Stats().TotalLinks)
	assert.Equal(t, 0, NewLinkCache(path, nil).Stats().TotalLinks)
}

func TestLinkCacheDeleteRemovesFile(t *testing.T) {
	t.Parallel()

	cache, path := newTestCache(t)
	cache.MarkAsSeen("a")
	require.NoError(t, cache.Persist())

	require.NoError(t, cache.Delete())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, cache.Stats().TotalLinks)
	assert.False(t, cache.Stats().Exists)

	require.NoError(t, cache.Delete(), "deleting a missing file is not an error")
}
