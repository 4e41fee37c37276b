package wal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestSegment(t *testing.T, dir, name string, fields []string, rows []map[string]any, meta FileMeta) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := WriteSegment(path, fields, nil, rows, meta); err != nil {
		t.Fatalf("WriteSegment() error = %v", err)
	}
	return path
}

func TestSegmentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fields := []string{"level", "msg"}
	rows := []map[string]any{
		{TimestampColumn: int64(1000), "level": "info", "msg": "started"},
		{TimestampColumn: int64(2000), "level": "warn", "msg": "slow"},
	}
	meta := FileMeta{MinTs: 1000, MaxTs: 2000, Records: 2, OriginalSize: 64, CompressedSize: 32}

	path := writeTestSegment(t, dir, "seg.parquet", fields, rows, meta)

	got, err := ReadSegmentMeta(path)
	if err != nil {
		t.Fatalf("ReadSegmentMeta() error = %v", err)
	}
	if got != meta {
		t.Errorf("footer = %+v, want %+v", got, meta)
	}

	names, err := ReadSegmentFields(path)
	if err != nil {
		t.Fatalf("ReadSegmentFields() error = %v", err)
	}
	want := map[string]bool{TimestampColumn: true, "level": true, "msg": true}
	if len(names) != len(want) {
		t.Fatalf("fields = %v", names)
	}
	for _, name := range names {
		if !want[name] {
			t.Errorf("unexpected field %q", name)
		}
	}

	back, err := ReadSegmentRows(path)
	if err != nil {
		t.Fatalf("ReadSegmentRows() error = %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("rows = %d, want 2", len(back))
	}
}

func TestReadSegmentMetaCorrupt(t *testing.T) {
	dir := t.TempDir()

	// Not Parquet at all.
	junk := filepath.Join(dir, "junk.parquet")
	if err := os.WriteFile(junk, []byte("not parquet"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSegmentMeta(junk); !errors.Is(err, ErrCorruptFooter) {
		t.Errorf("ReadSegmentMeta(junk) = %v, want ErrCorruptFooter", err)
	}

	// A properly sealed segment is still accepted.
	sealed := writeTestSegment(t, dir, "sealed.parquet", []string{"msg"},
		[]map[string]any{{TimestampColumn: int64(1), "msg": "x"}}, FileMeta{MinTs: 1, MaxTs: 1, Records: 1, OriginalSize: 1, CompressedSize: 1})
	if _, err := ReadSegmentMeta(sealed); err != nil {
		t.Errorf("sealed segment rejected: %v", err)
	}
}

func TestFileMetaIsZero(t *testing.T) {
	if !(FileMeta{}).IsZero() {
		t.Error("zero FileMeta not detected")
	}
	if (FileMeta{Records: 1}).IsZero() {
		t.Error("non-zero FileMeta reported zero")
	}
}
