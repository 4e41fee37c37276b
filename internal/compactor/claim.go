package compactor

import "sync"

// ClaimSet tracks segment keys currently owned by the engine, either
// because a merge is in flight or because deletion is still pending.
// Both the grouper and the deletion coordinator mutate it, so every
// check-then-insert goes through TryAdd under one lock.
type ClaimSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewClaimSet creates an empty ClaimSet.
func NewClaimSet() *ClaimSet {
	return &ClaimSet{keys: make(map[string]struct{})}
}

// TryAdd claims a key. Returns false when the key is already claimed.
func (c *ClaimSet) TryAdd(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.keys[key]; exists {
		return false
	}
	c.keys[key] = struct{}{}
	return true
}

// Remove releases a claim. Removing an unclaimed key is a no-op.
func (c *ClaimSet) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
}

// Contains reports whether a key is claimed.
func (c *ClaimSet) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.keys[key]
	return exists
}

// Len returns the number of claimed keys.
func (c *ClaimSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}
