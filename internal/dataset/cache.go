package dataset

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/ironsheep/labelme-tools-mcp/internal/logger"
)

// DefaultListingTTL is how long a directory listing stays valid.
const DefaultListingTTL = 30 * time.Second

type listing struct {
	root    string
	files   []string
	expires time.Time
}

// ListingCache memoizes FindJSONFiles results per directory. Entries expire
// after a TTL and can be dropped explicitly with Invalidate. When Watch has
// been called, filesystem changes under a cached directory invalidate it
// immediately.
type ListingCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]listing
	watcher *fsnotify.Watcher
	watched map[string]bool
}

// NewListingCache creates a cache. A non-positive ttl uses DefaultListingTTL.
func NewListingCache(ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = DefaultListingTTL
	}
	return &ListingCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]listing),
	}
}

func listingKey(root string, exclude []string) string {
	parts := make([]string, 0, len(exclude)+1)
	parts = append(parts, CanonicalKey(root))
	for _, e := range exclude {
		parts = append(parts, CanonicalKey(e))
	}
	return strings.Join(parts, "\x00")
}

// JSONFiles returns the JSON files under root, from the cache when a fresh
// listing exists. The returned slice is a copy.
func (c *ListingCache) JSONFiles(root string, exclude ...string) []string {
	key := listingKey(root, exclude)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return append([]string(nil), e.files...)
	}
	c.mu.Unlock()

	files := FindJSONFiles(root, exclude...)

	c.mu.Lock()
	c.pruneLocked()
	c.entries[key] = listing{
		root:    CanonicalKey(root),
		files:   files,
		expires: c.now().Add(c.ttl),
	}
	c.watchLocked(root, files)
	c.mu.Unlock()

	return append([]string(nil), files...)
}

// pruneLocked drops expired listings. Keys include the exclusions, which
// differ per conversion run.
func (c *ListingCache) pruneLocked() {
	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, key)
		}
	}
}

// Invalidate drops every listing whose root is dir or contains dir.
func (c *ListingCache) Invalidate(dir string) {
	target := CanonicalKey(dir)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(target)
}

func (c *ListingCache) invalidateLocked(target string) {
	for key, e := range c.entries {
		if target == e.root || strings.HasPrefix(target, e.root+string(filepath.Separator)) {
			delete(c.entries, key)
		}
	}
}

// Clear drops all listings.
func (c *ListingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]listing)
}

// Len returns the number of cached listings, fresh or not.
func (c *ListingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Watch starts invalidating listings on filesystem events. Directories are
// registered as they are listed; fsnotify is not recursive, so every directory
// holding a listed file is added individually.
func (c *ListingCache) Watch() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	c.watcher = w
	c.watched = make(map[string]bool)
	for _, e := range c.entries {
		c.watchLocked(e.root, e.files)
	}
	go c.watchLoop(w)
	return nil
}

func (c *ListingCache) watchLocked(root string, files []string) {
	if c.watcher == nil {
		return
	}
	dirs := map[string]bool{CanonicalKey(root): true}
	for _, f := range files {
		dirs[CanonicalKey(filepath.Dir(f))] = true
	}
	for d := range dirs {
		if c.watched[d] {
			continue
		}
		if err := c.watcher.Add(d); err != nil {
			logger.Debugw("Listing cache cannot watch directory", logger.FieldDir, d, logger.FieldError, err)
			continue
		}
		c.watched[d] = true
	}
}

func (c *ListingCache) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			logger.Debugw("Listing cache invalidated",
				logger.FieldFile, event.Name,
				"op", event.Op.String())
			c.mu.Lock()
			c.invalidateLocked(CanonicalKey(filepath.Dir(event.Name)))
			c.mu.Unlock()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warnw("Listing cache watcher error", logger.FieldError, err)
		}
	}
}

// Close stops watching. The cache keeps working without invalidation events.
func (c *ListingCache) Close() error {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.watched = nil
	c.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}
