package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"TuxLetter/internal/ports"
)

// cacheFile is the on-disk shape of the link cache.
type cacheFile struct {
	SeenLinks   []string `json:"seenLinks"`
	LastUpdated string   `json:"lastUpdated"`
}

// LinkCache is a JSON-file backed set of links processed by earlier runs.
// One instance is shared by every scanner of a run.
type LinkCache struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]struct{}
}

var _ ports.LinkCache = (*LinkCache)(nil)

// NewLinkCache loads the cache stored at path. A missing file starts an empty
// cache; an unreadable or corrupt one also starts empty and is logged as degraded.
func NewLinkCache(path string, log *slog.Logger) *LinkCache {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := &LinkCache{
		path:   path,
		logger: log,
		now:    time.Now,
		seen:   map[string]struct{}{},
	}
	c.load()
	return c
}

func (c *LinkCache) load() {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Info("cache file not found, starting empty", "cache_file", c.path)
		return
	}
	if err != nil {
		c.logger.Warn("cache unreadable, starting empty", "cache_file", c.path, "error", err)
		return
	}

	var data cacheFile
	if err := json.Unmarshal(raw, &data); err != nil {
		c.logger.Warn("cache corrupt, starting empty", "cache_file", c.path, "error", err)
		return
	}

	for _, link := range data.SeenLinks {
		c.seen[link] = struct{}{}
	}
	c.logger.Info("cache loaded", "total_links", len(c.seen), "last_updated", data.LastUpdated)
}

// Reload drops the in-memory set and reads the file again, so links claimed
// by a run that never persisted are offered again.
func (c *LinkCache) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = map[string]struct{}{}
	c.load()
}

// IsNew reports whether link has not been seen yet.
func (c *LinkCache) IsNew(link string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isNewLocked(link)
}

func (c *LinkCache) isNewLocked(link string) bool {
	_, ok := c.seen[link]
	return !ok
}

// MarkAsSeen records link. Marking a known link is a no-op.
func (c *LinkCache) MarkAsSeen(link string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isNewLocked(link) {
		c.seen[link] = struct{}{}
		c.logger.Debug("link marked as seen", "link", link)
	}
}

// MarkMultipleAsSeen records every link in links.
func (c *LinkCache) MarkMultipleAsSeen(links []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, link := range links {
		if c.isNewLocked(link) {
			c.seen[link] = struct{}{}
			added++
		}
	}
	if added > 0 {
		c.logger.Info("links marked as seen", "new_links", added, "total_links", len(links))
	}
}

// FilterNewLinks returns the links not seen yet, in input order. It does not
// mark anything.
func (c *LinkCache) FilterNewLinks(links []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filterLocked(links)
}

func (c *LinkCache) filterLocked(links []string) []string {
	fresh := make([]string, 0, len(links))
	for _, link := range links {
		if c.isNewLocked(link) {
			fresh = append(fresh, link)
		}
	}
	c.logger.Debug("links filtered",
		"total_links", len(links),
		"new_links", len(fresh),
		"skipped_links", len(links)-len(fresh))
	return fresh
}

// Claim picks at most limit new links from links, marks them seen and returns
// them in input order together with the number of new links before the cap.
// The filter and the mark happen under one lock so that concurrent scanners
// never claim the same link twice. limit <= 0 means no cap.
func (c *LinkCache) Claim(links []string, limit int) ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	claimed := c.filterLocked(links)
	fresh := len(claimed)
	if limit > 0 && len(claimed) > limit {
		claimed = claimed[:limit]
	}
	for _, link := range claimed {
		c.seen[link] = struct{}{}
	}
	return claimed, fresh
}

// Persist writes the whole set to disk through a temp file and a rename.
func (c *LinkCache) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.saveLocked(); err != nil {
		c.logger.Error("cache save failed", "cache_file", c.path, "error", err)
		return err
	}
	c.logger.Info("cache saved", "total_links", len(c.seen), "cache_file", c.path)
	return nil
}

func (c *LinkCache) saveLocked() error {
	links := make([]string, 0, len(c.seen))
	for link := range c.seen {
		links = append(links, link)
	}
	sort.Strings(links)

	payload, err := json.MarshalIndent(cacheFile{
		SeenLinks:   links,
		LastUpdated: c.now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".seen_links-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

// Clear forgets every link and persists the empty set.
func (c *LinkCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen = map[string]struct{}{}
	if err := c.saveLocked(); err != nil {
		c.logger.Error("cache save failed", "cache_file", c.path, "error", err)
		return err
	}
	c.logger.Info("cache cleared")
	return nil
}

// Delete removes the cache file and forgets every link.
func (c *LinkCache) Delete() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path)
	switch {
	case err == nil:
		c.logger.Info("cache file removed", "cache_file", c.path)
	case errors.Is(err, fs.ErrNotExist):
		c.logger.Info("cache file does not exist", "cache_file", c.path)
	default:
		c.logger.Error("cache file removal failed", "cache_file", c.path, "error", err)
		return fmt.Errorf("remove cache file: %w", err)
	}

	c.seen = map[string]struct{}{}
	return nil
}

// Stats reports the in-memory size and whether the file exists.
func (c *LinkCache) Stats() ports.CacheStats {
	c.mu.Lock()
	total := len(c.seen)
	c.mu.Unlock()

	_, err := os.Stat(c.path)
	return ports.CacheStats{
		TotalLinks: total,
		Exists:     err == nil,
		Location:   c.path,
	}
}
