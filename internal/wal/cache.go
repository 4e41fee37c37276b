package wal

import "sync"

// MetaCache caches segment footers by segment key so repeated scan passes
// over a slow partition do not reopen the same files. Entries are dropped
// when the segment is deleted.
type MetaCache struct {
	mu    sync.RWMutex
	metas map[string]FileMeta
}

// NewMetaCache creates an empty cache.
func NewMetaCache() *MetaCache {
	return &MetaCache{metas: make(map[string]FileMeta)}
}

// Get returns the cached footer for a segment key, if present.
func (c *MetaCache) Get(key string) (FileMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.metas[key]
	return meta, ok
}

// Set records a footer for a segment key.
func (c *MetaCache) Set(key string, meta FileMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metas[key] = meta
}

// Delete removes a segment's cached footer.
func (c *MetaCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metas, key)
}

// Len returns the number of cached entries.
func (c *MetaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metas)
}
