package compactor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tessera-io/tessera/internal/metrics"
	"github.com/tessera-io/tessera/internal/wal"
)

func testMetrics() *metrics.CompactorMetrics {
	return metrics.NewCompactorMetricsWithRegistry(prometheus.NewRegistry())
}

// writeSegmentFile writes a real sealed segment under root at key.
func writeSegmentFile(t *testing.T, root, key string, rows []map[string]any, fields []string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	var minTs, maxTs int64
	for _, row := range rows {
		ts, _ := row[wal.TimestampColumn].(int64)
		if minTs == 0 || ts < minTs {
			minTs = ts
		}
		if ts > maxTs {
			maxTs = ts
		}
	}
	meta := wal.FileMeta{
		MinTs:          minTs,
		MaxTs:          maxTs,
		Records:        int64(len(rows)),
		OriginalSize:   int64(len(rows)) * 100,
		CompressedSize: int64(len(rows)) * 25,
	}
	if err := wal.WriteSegment(path, fields, nil, rows, meta); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGrouperGroupsByPartition(t *testing.T) {
	root := t.TempDir()
	claims := NewClaimSet()
	cache := wal.NewMetaCache()
	g := NewGrouper(root, claims, cache, testMetrics(), testLogger())

	// Two workers, same partition; one other partition.
	keys := []string{
		"files/acme/logs/nginx/2026/08/30/12/0/seg-a.parquet",
		"files/acme/logs/nginx/2026/08/30/12/1/seg-b.parquet",
		"files/globex/logs/app/2026/08/30/12/0/seg-c.parquet",
	}
	var paths []string
	for _, key := range keys {
		paths = append(paths, writeSegmentFile(t, root, key,
			[]map[string]any{{wal.TimestampColumn: int64(1000), "msg": "x"}}, []string{"msg"}))
	}

	groups := g.Group(context.Background(), paths)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if len(groups[0].Segments) != 2 {
		t.Errorf("first group has %d segments, want 2 (worker id must not split partitions)", len(groups[0].Segments))
	}
	for _, key := range keys {
		if !claims.Contains(key) {
			t.Errorf("segment %q not claimed", key)
		}
	}
	if cache.Len() != 3 {
		t.Errorf("cache has %d entries, want 3", cache.Len())
	}
}

func TestGrouperSkipsClaimedSegments(t *testing.T) {
	root := t.TempDir()
	claims := NewClaimSet()
	g := NewGrouper(root, claims, wal.NewMetaCache(), testMetrics(), testLogger())

	key := "files/acme/logs/nginx/2026/08/30/12/0/seg-a.parquet"
	path := writeSegmentFile(t, root, key,
		[]map[string]any{{wal.TimestampColumn: int64(1000), "msg": "x"}}, []string{"msg"})

	claims.TryAdd(key)
	groups := g.Group(context.Background(), []string{path})
	if len(groups) != 0 {
		t.Errorf("claimed segment was regrouped: %d groups", len(groups))
	}
}

func TestGrouperDeletesCorruptSegment(t *testing.T) {
	root := t.TempDir()
	claims := NewClaimSet()
	g := NewGrouper(root, claims, wal.NewMetaCache(), testMetrics(), testLogger())

	key := "files/acme/logs/nginx/2026/08/30/12/0/seg-bad.parquet"
	path := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("definitely not parquet"), 0o644); err != nil {
		t.Fatal(err)
	}

	groups := g.Group(context.Background(), []string{path})
	if len(groups) != 0 {
		t.Errorf("corrupt segment entered a merge group")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt segment still on disk")
	}
	if claims.Contains(key) {
		t.Error("corrupt segment was claimed")
	}
}
