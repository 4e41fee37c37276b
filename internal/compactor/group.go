package compactor

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/tessera-io/tessera/internal/logging"
	"github.com/tessera-io/tessera/internal/metrics"
	"github.com/tessera-io/tessera/internal/wal"
)

// Segment is one WAL segment discovered by a scan pass.
type Segment struct {
	// Key is the segment's logical key, relative to the WAL root.
	Key string

	// Path is the absolute on-disk path.
	Path string

	// Partition is derived from the key.
	Partition wal.PartitionKey

	// Meta is the footer read from the segment file.
	Meta wal.FileMeta
}

// Group is an ordered set of segments sharing one partition.
type Group struct {
	Partition wal.PartitionKey
	Segments  []Segment
}

// Grouper turns raw scan batches into claimed, partitioned merge groups.
type Grouper struct {
	root    string
	claims  *ClaimSet
	cache   *wal.MetaCache
	metrics *metrics.CompactorMetrics
	log     *logging.Logger
}

// NewGrouper creates a Grouper.
func NewGrouper(root string, claims *ClaimSet, cache *wal.MetaCache, m *metrics.CompactorMetrics, log *logging.Logger) *Grouper {
	return &Grouper{
		root:    root,
		claims:  claims,
		cache:   cache,
		metrics: m,
		log:     log.WithComponent("grouper"),
	}
}

// Group processes one batch of paths: reads footers, drops corrupt
// segments, claims the rest and buckets them by partition. Groups come
// back in first-seen order.
func (g *Grouper) Group(ctx context.Context, paths []string) []Group {
	byPartition := make(map[wal.PartitionKey]int)
	var groups []Group

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		rel, err := filepath.Rel(g.root, path)
		if err != nil {
			g.log.Warn("path outside wal root", map[string]any{"path": path})
			continue
		}
		key := filepath.ToSlash(rel)

		if g.claims.Contains(key) {
			continue
		}

		partition, err := wal.ParseSegmentKey(key)
		if err != nil {
			g.log.Warn("skipping unrecognized segment", map[string]any{"key": key})
			continue
		}

		meta, ok := g.cache.Get(key)
		if !ok {
			meta, err = wal.ReadSegmentMeta(path)
			if errors.Is(err, wal.ErrCorruptFooter) {
				// Nothing recoverable in it. Remove straight away so it
				// never enters a merge group or the claim set.
				g.log.Warn("deleting corrupt segment", map[string]any{"key": key})
				if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
					g.log.Error("failed to delete corrupt segment", map[string]any{
						"key":   key,
						"error": rmErr.Error(),
					})
					continue
				}
				g.cache.Delete(key)
				g.metrics.DeletedSegments.WithLabelValues(metrics.ReasonCorrupt).Inc()
				continue
			}
			if err != nil {
				// Likely deleted out from under us between walk and read.
				g.log.Debug("skipping unreadable segment", map[string]any{
					"key":   key,
					"error": err.Error(),
				})
				continue
			}
			g.cache.Set(key, meta)
		}

		if !g.claims.TryAdd(key) {
			continue
		}

		segment := Segment{Key: key, Path: path, Partition: partition, Meta: meta}
		idx, exists := byPartition[partition]
		if !exists {
			byPartition[partition] = len(groups)
			groups = append(groups, Group{Partition: partition})
			idx = len(groups) - 1
		}
		groups[idx].Segments = append(groups[idx].Segments, segment)
	}

	return groups
}
