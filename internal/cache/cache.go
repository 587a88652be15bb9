// Package cache implements the authoritative in-memory store for typed
// resources. It keeps two structures that must never diverge: the
// primary key→entry map and the tag→key-set index used for secondary
// lookup. Expiration is lazy: an expired entry is removed only when a
// read or scan observes it, never by a background sweeper.
package cache

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stashd/stash/internal/logging"
	"github.com/stashd/stash/internal/metrics"
	"github.com/stashd/stash/internal/persistence"
	"github.com/stashd/stash/internal/resource"
)

// ErrNoPersistence is returned by Save when the cache was built without
// a snapshot store.
var ErrNoPersistence = errors.New("cache: no persistence store configured")

// SetOptions controls TTL and tagging for a single Set call.
type SetOptions struct {
	// TTL is how long the entry stays live, measured from the Set call.
	// Zero or negative means the entry never expires.
	TTL time.Duration

	// Tags are secondary lookup labels. They replace, not merge with,
	// any tags a previous entry under the same key carried.
	Tags []string
}

// Options configures a Cache.
type Options struct {
	// Logger receives operational and malformed-call logs. Defaults to
	// the shared operational logger.
	Logger *slog.Logger

	// Store enables Save/Restore. Nil leaves the cache memory-only.
	Store *persistence.Store
}

// Cache is a process-local resource cache keyed by (type, id) with
// secondary lookup by tag. All methods are safe for concurrent use; a
// single mutex covers both indices so no caller can observe one updated
// without the other.
type Cache struct {
	logger *slog.Logger
	store  *persistence.Store
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]resource.Entry
	tags    map[string]map[string]struct{} // tag -> set of primary keys
}

// New creates an empty cache.
func New(opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Op()
	}
	return &Cache{
		logger:  logger,
		store:   opts.Store,
		now:     time.Now,
		entries: make(map[string]resource.Entry),
		tags:    make(map[string]map[string]struct{}),
	}
}

// Set stores value under (resourceType, id), replacing any previous
// entry wholesale: tags and TTL are overwritten, never merged. A call
// with a missing type or id is logged and dropped rather than allowed
// to crash a caller that ignores the return path.
func (c *Cache) Set(resourceType, id string, value any, opts SetOptions) {
	if resourceType == "" || id == "" {
		c.logger.Error("cache set dropped: resource missing type or id",
			"type", resourceType, "id", id)
		return
	}

	entry := resource.Entry{Value: value, Tags: opts.Tags}
	if opts.TTL > 0 {
		entry.ExpiresAt = c.now().Add(opts.TTL)
	}

	key := resource.Key(resourceType, id)
	c.mu.Lock()
	c.putLocked(key, entry)
	c.mu.Unlock()

	metrics.RecordSet()
	c.logger.Debug("cache set", "key", key, "ttl", opts.TTL, "tags", opts.Tags)
}

// Get returns the stored value for (resourceType, id). It reports false
// when the key is absent, the arguments are malformed, or the entry has
// expired; in the last case the entry and its tag memberships are
// evicted as a side effect.
func (c *Cache) Get(resourceType, id string) (any, bool) {
	if resourceType == "" || id == "" {
		c.logger.Error("cache get dropped: resource missing type or id",
			"type", resourceType, "id", id)
		metrics.RecordMiss("malformed")
		return nil, false
	}

	key := resource.Key(resourceType, id)
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		metrics.RecordMiss("missing")
		return nil, false
	}
	if entry.Expired(c.now()) {
		c.removeLocked(key)
		c.mu.Unlock()
		metrics.RecordMiss("expired")
		metrics.RecordEvictions(1)
		c.logger.Debug("cache entry expired", "key", key)
		return nil, false
	}
	c.mu.Unlock()

	metrics.RecordHit()
	return entry.Value, true
}

// Delete removes the entry for (resourceType, id) and every tag
// membership pointing at it. Deleting an absent key is a no-op.
func (c *Cache) Delete(resourceType, id string) {
	key := resource.Key(resourceType, id)
	c.mu.Lock()
	_, ok := c.entries[key]
	c.removeLocked(key)
	c.mu.Unlock()

	if ok {
		metrics.RecordDeletes(1)
		c.logger.Debug("cache delete", "key", key)
	}
}

// ClearType removes every entry whose key was derived from
// resourceType, along with their tag memberships.
func (c *Cache) ClearType(resourceType string) {
	c.mu.Lock()
	var keys []string
	for key := range c.entries {
		if resource.TypeOf(key) == resourceType {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		c.removeLocked(key)
	}
	c.mu.Unlock()

	metrics.RecordDeletes(len(keys))
	c.logger.Debug("cache clear by type", "type", resourceType, "removed", len(keys))
}

// GetByTag returns the non-expired values currently tagged tag,
// optionally filtered to one resource type ("" matches all). Expired
// entries met during the scan are evicted. Result order is unspecified.
func (c *Cache) GetByTag(tag, resourceType string) []any {
	now := c.now()
	evicted := 0

	c.mu.Lock()
	set := c.tags[tag]
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}

	var out []any
	for _, key := range keys {
		entry, ok := c.entries[key]
		if !ok {
			continue
		}
		if entry.Expired(now) {
			c.removeLocked(key)
			evicted++
			continue
		}
		if resourceType != "" && resource.TypeOf(key) != resourceType {
			continue
		}
		out = append(out, entry.Value)
	}
	c.mu.Unlock()

	metrics.RecordEvictions(evicted)
	return out
}

// ClearTag deletes every entry currently tagged tag (the entries
// themselves, not just the memberships), then drops the tag from the
// index.
func (c *Cache) ClearTag(tag string) {
	c.mu.Lock()
	set := c.tags[tag]
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	for _, key := range keys {
		c.removeLocked(key)
	}
	delete(c.tags, tag)
	c.mu.Unlock()

	metrics.RecordDeletes(len(keys))
	c.logger.Debug("cache clear by tag", "tag", tag, "removed", len(keys))
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save hands a copy of the current entries to the persistence store.
// The copy is taken under the lock; file I/O runs outside it so disk
// latency never blocks cache reads or writes.
func (c *Cache) Save() error {
	if c.store == nil {
		return ErrNoPersistence
	}

	c.mu.Lock()
	entries := make(map[string]resource.Entry, len(c.entries))
	for key, entry := range c.entries {
		entries[key] = entry
	}
	c.mu.Unlock()

	return c.store.Save(entries)
}

// Restore replaces the cache contents with the store's snapshot,
// rebuilding the tag index from the restored entries. Without a store
// it leaves the cache untouched and returns zero stats.
func (c *Cache) Restore() persistence.RestoreStats {
	if c.store == nil {
		return persistence.RestoreStats{}
	}

	// I/O first, outside the lock.
	entries, stats := c.store.Restore()

	c.mu.Lock()
	c.entries = make(map[string]resource.Entry, len(entries))
	c.tags = make(map[string]map[string]struct{})
	for key, entry := range entries {
		c.putLocked(key, entry)
	}
	c.mu.Unlock()

	return stats
}

// putLocked installs entry under key and rewrites the tag index so the
// key's memberships are exactly entry.Tags. Every public write path
// funnels through here or removeLocked; there is no other mutation
// route, which is what keeps the two indices consistent.
func (c *Cache) putLocked(key string, entry resource.Entry) {
	if prev, ok := c.entries[key]; ok {
		c.dropTagsLocked(key, prev.Tags)
	}
	c.entries[key] = entry
	for _, tag := range entry.Tags {
		set := c.tags[tag]
		if set == nil {
			set = make(map[string]struct{})
			c.tags[tag] = set
		}
		set[key] = struct{}{}
	}
}

// removeLocked deletes key and every tag membership pointing at it.
// No-op when the key is absent.
func (c *Cache) removeLocked(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.dropTagsLocked(key, entry.Tags)
}

// dropTagsLocked removes key from each tag's set, dropping tags whose
// sets become empty so the index never holds dead tags.
func (c *Cache) dropTagsLocked(key string, tags []string) {
	for _, tag := range tags {
		set := c.tags[tag]
		delete(set, key)
		if len(set) == 0 {
			delete(c.tags, tag)
		}
	}
}
