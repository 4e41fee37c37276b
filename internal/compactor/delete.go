package compactor

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tessera-io/tessera/internal/locks"
	"github.com/tessera-io/tessera/internal/logging"
	"github.com/tessera-io/tessera/internal/metrics"
	"github.com/tessera-io/tessera/internal/wal"
)

// Coordinator deletes consumed WAL segments safely. A segment held by a
// reader lease is deferred to the durable pending-delete list instead of
// being removed, and retried by Sweep until the lease clears.
type Coordinator struct {
	root       string
	claims     *ClaimSet
	cache      *wal.MetaCache
	locks      locks.Registry
	pending    *PendingStore
	removing   *RemovingMarkers
	accountFor func(key string) string
	metrics    *metrics.CompactorMetrics
	log        *logging.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(
	root string,
	claims *ClaimSet,
	cache *wal.MetaCache,
	lockReg locks.Registry,
	pending *PendingStore,
	removing *RemovingMarkers,
	accountFor func(key string) string,
	m *metrics.CompactorMetrics,
	log *logging.Logger,
) *Coordinator {
	return &Coordinator{
		root:       root,
		claims:     claims,
		cache:      cache,
		locks:      lockReg,
		pending:    pending,
		removing:   removing,
		accountFor: accountFor,
		metrics:    m,
		log:        log.WithComponent("deleter"),
	}
}

// Delete removes one consumed segment, or defers it when a reader still
// holds it. The claim is released only when the file is actually gone.
func (c *Coordinator) Delete(ctx context.Context, seg Segment, reason string) error {
	locked, err := c.locks.IsLocked(ctx, seg.Key)
	if err != nil {
		// Cannot prove the segment is free, so treat it as held.
		c.log.Warn("lock check failed, deferring delete", map[string]any{
			"key":   seg.Key,
			"error": err.Error(),
		})
		locked = true
	}
	if locked {
		return c.deferDelete(ctx, seg)
	}

	if err := c.removing.Add(ctx, seg.Key); err != nil {
		return err
	}
	if err := os.Remove(seg.Path); err != nil && !os.IsNotExist(err) {
		c.log.Warn("file delete failed, deferring", map[string]any{
			"key":   seg.Key,
			"error": err.Error(),
		})
		if err := c.removing.Remove(ctx, seg.Key); err != nil {
			c.log.Warn("failed to clear removing marker", map[string]any{"key": seg.Key})
		}
		return c.deferDelete(ctx, seg)
	}

	c.cache.Delete(seg.Key)
	c.claims.Remove(seg.Key)
	if err := c.removing.Remove(ctx, seg.Key); err != nil {
		// The file is gone and the claim released; a stale marker is
		// cleaned up by the next Recover.
		c.log.Warn("failed to clear removing marker", map[string]any{"key": seg.Key})
	}
	c.metrics.DeletedSegments.WithLabelValues(reason).Inc()
	return nil
}

// DeleteGroup deletes every segment in a group, continuing past
// individual failures.
func (c *Coordinator) DeleteGroup(ctx context.Context, segments []Segment, reason string) {
	for _, seg := range segments {
		if err := c.Delete(ctx, seg, reason); err != nil {
			c.log.Error("segment delete failed", map[string]any{
				"key":   seg.Key,
				"error": err.Error(),
			})
		}
	}
}

// deferDelete records the segment on the pending-delete list. The claim
// is kept so future scans skip the segment until the sweep frees it.
func (c *Coordinator) deferDelete(ctx context.Context, seg Segment) error {
	return c.pending.Add(ctx, PendingDelete{
		Org:     seg.Partition.Org,
		Account: c.accountFor(seg.Key),
		Key:     seg.Key,
	})
}

// Sweep retries every pending delete whose reader lease has cleared.
// Returns the number of entries still pending.
func (c *Coordinator) Sweep(ctx context.Context) (int, error) {
	records, err := c.pending.List(ctx)
	if err != nil {
		return 0, err
	}

	remaining := 0
	for _, rec := range records {
		locked, err := c.locks.IsLocked(ctx, rec.Key)
		if err != nil || locked {
			remaining++
			continue
		}

		path := filepath.Join(c.root, filepath.FromSlash(rec.Key))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.log.Warn("pending delete retry failed", map[string]any{
				"key":   rec.Key,
				"error": err.Error(),
			})
			remaining++
			continue
		}
		if err := c.pending.Remove(ctx, rec.Key); err != nil {
			c.log.Warn("failed to drop pending record", map[string]any{"key": rec.Key})
			remaining++
			continue
		}
		c.cache.Delete(rec.Key)
		c.claims.Remove(rec.Key)
		c.metrics.DeletedSegments.WithLabelValues(metrics.ReasonPending).Inc()
	}

	c.metrics.PendingDeletes.Set(float64(remaining))
	return remaining, nil
}

// Recover runs once at startup: it seeds the claim set from the durable
// pending-delete list so a restarted process does not re-merge segments
// an earlier run already consumed, and finishes any delete interrupted
// mid-flight, as witnessed by a leftover removing marker.
func (c *Coordinator) Recover(ctx context.Context) error {
	records, err := c.pending.List(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		c.claims.TryAdd(rec.Key)
	}

	markers, err := c.removing.List(ctx)
	if err != nil {
		return err
	}
	for _, key := range markers {
		path := filepath.Join(c.root, filepath.FromSlash(key))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.log.Warn("crash recovery delete failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		c.cache.Delete(key)
		c.claims.Remove(key)
		if err := c.removing.Remove(ctx, key); err != nil {
			c.log.Warn("failed to clear removing marker", map[string]any{"key": key})
		}
		c.log.Info("finished interrupted delete", map[string]any{"key": key})
	}
	return nil
}
