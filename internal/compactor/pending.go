package compactor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tessera-io/tessera/internal/metadata"
	"github.com/tessera-io/tessera/internal/metadata/keys"
)

// PendingDelete is one deferred segment deletion, persisted so retries
// survive restarts.
type PendingDelete struct {
	Org     string `json:"org"`
	Account string `json:"account"`
	Key     string `json:"key"`
	AddedAt int64  `json:"added_at_ms"`
}

// PendingStore persists deferred deletions in the metadata store.
type PendingStore struct {
	meta metadata.Store
	now  func() time.Time
}

// NewPendingStore creates a PendingStore.
func NewPendingStore(meta metadata.Store) *PendingStore {
	return &PendingStore{meta: meta, now: time.Now}
}

// Add records a deferred deletion. Re-adding an existing key overwrites it.
func (s *PendingStore) Add(ctx context.Context, rec PendingDelete) error {
	if rec.AddedAt == 0 {
		rec.AddedAt = s.now().UnixMilli()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("compactor: encode pending delete: %w", err)
	}
	if _, err := s.meta.Put(ctx, keys.PendingDelete(rec.Key), raw); err != nil {
		return fmt.Errorf("compactor: add pending delete %s: %w", rec.Key, err)
	}
	return nil
}

// List returns all deferred deletions.
func (s *PendingStore) List(ctx context.Context) ([]PendingDelete, error) {
	kvs, err := s.meta.List(ctx, keys.PendingDeletePrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("compactor: list pending deletes: %w", err)
	}
	records := make([]PendingDelete, 0, len(kvs))
	for _, kv := range kvs {
		var rec PendingDelete
		if err := json.Unmarshal(kv.Value, &rec); err != nil {
			return nil, fmt.Errorf("compactor: decode pending delete %s: %w", kv.Key, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Remove drops a deferred deletion once the segment is gone.
func (s *PendingStore) Remove(ctx context.Context, segmentKey string) error {
	if err := s.meta.Delete(ctx, keys.PendingDelete(segmentKey)); err != nil {
		return fmt.Errorf("compactor: remove pending delete %s: %w", segmentKey, err)
	}
	return nil
}

// RemovingMarkers records segments mid-delete so a crash between the
// file unlink and the claim release can be detected and finished on the
// next start.
type RemovingMarkers struct {
	meta metadata.Store
}

// NewRemovingMarkers creates a RemovingMarkers store.
func NewRemovingMarkers(meta metadata.Store) *RemovingMarkers {
	return &RemovingMarkers{meta: meta}
}

// Add marks a segment as being deleted.
func (m *RemovingMarkers) Add(ctx context.Context, segmentKey string) error {
	if _, err := m.meta.Put(ctx, keys.Removing(segmentKey), []byte("1")); err != nil {
		return fmt.Errorf("compactor: mark removing %s: %w", segmentKey, err)
	}
	return nil
}

// Remove clears a segment's removing marker.
func (m *RemovingMarkers) Remove(ctx context.Context, segmentKey string) error {
	if err := m.meta.Delete(ctx, keys.Removing(segmentKey)); err != nil {
		return fmt.Errorf("compactor: clear removing %s: %w", segmentKey, err)
	}
	return nil
}

// List returns the segment keys of all markers.
func (m *RemovingMarkers) List(ctx context.Context) ([]string, error) {
	kvs, err := m.meta.List(ctx, keys.RemovingPrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("compactor: list removing markers: %w", err)
	}
	out := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		key, err := keys.Unescape(kv.Key[len(keys.RemovingPrefix):])
		if err != nil {
			return nil, fmt.Errorf("compactor: bad removing marker %s: %w", kv.Key, err)
		}
		out = append(out, key)
	}
	return out, nil
}
