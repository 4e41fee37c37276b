// Package locks exposes the reader leases queries take on WAL segments.
// The compactor never deletes a segment while a lease exists; it defers
// the delete as a pending-delete record instead.
package locks

import (
	"context"
	"fmt"
	"sync"

	"github.com/tessera-io/tessera/internal/metadata"
	"github.com/tessera-io/tessera/internal/metadata/keys"
)

// Registry answers whether a segment is currently held by a reader.
type Registry interface {
	IsLocked(ctx context.Context, segmentKey string) (bool, error)
}

// MetaRegistry checks reader leases in the metadata store. Leases are
// written as ephemeral keys by the query path, so a crashed reader's
// lease disappears with its session.
type MetaRegistry struct {
	meta metadata.Store
}

// NewMetaRegistry creates a lease registry over the metadata store.
func NewMetaRegistry(meta metadata.Store) *MetaRegistry {
	return &MetaRegistry{meta: meta}
}

func (r *MetaRegistry) IsLocked(ctx context.Context, segmentKey string) (bool, error) {
	result, err := r.meta.Get(ctx, keys.ReadLock(segmentKey))
	if err != nil {
		return false, fmt.Errorf("locks: check %s: %w", segmentKey, err)
	}
	return result.Exists, nil
}

var _ Registry = (*MetaRegistry)(nil)

// MockRegistry is an in-memory Registry for testing.
type MockRegistry struct {
	mu     sync.RWMutex
	locked map[string]bool

	// FailWith, when set, is returned by every IsLocked call.
	FailWith error
}

// NewMockRegistry creates an empty MockRegistry.
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{locked: make(map[string]bool)}
}

// SetLocked marks a segment as held or released.
func (r *MockRegistry) SetLocked(segmentKey string, locked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if locked {
		r.locked[segmentKey] = true
	} else {
		delete(r.locked, segmentKey)
	}
}

func (r *MockRegistry) IsLocked(ctx context.Context, segmentKey string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailWith != nil {
		return false, r.FailWith
	}
	return r.locked[segmentKey], nil
}

var _ Registry = (*MockRegistry)(nil)
