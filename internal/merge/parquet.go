package merge

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/tessera-io/tessera/internal/wal"
)

// ParquetMerger implements Service using the shared segment codec.
// Rows from all inputs are concatenated, projected onto the requested
// schema and re-sorted by event time before writing.
type ParquetMerger struct{}

// NewParquetMerger creates a ParquetMerger.
func NewParquetMerger() *ParquetMerger {
	return &ParquetMerger{}
}

func (m *ParquetMerger) Merge(ctx context.Context, req Request) ([]Result, error) {
	if len(req.Inputs) == 0 {
		return nil, ErrNoInputs
	}

	keep := make(map[string]struct{}, len(req.Fields))
	for _, name := range req.Fields {
		keep[name] = struct{}{}
	}
	keep[wal.TimestampColumn] = struct{}{}

	var rows []map[string]any
	for _, input := range req.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segRows, err := wal.ReadSegmentRows(input)
		if err != nil {
			return nil, fmt.Errorf("merge: read %s: %w", input, err)
		}
		for _, row := range segRows {
			rows = append(rows, project(row, keep))
		}
	}
	if len(rows) == 0 {
		return nil, ErrEmptyOutput
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rowTs(rows[i]) < rowTs(rows[j])
	})

	meta := wal.FileMeta{
		MinTs:        rowTs(rows[0]),
		MaxTs:        rowTs(rows[len(rows)-1]),
		Records:      int64(len(rows)),
		OriginalSize: req.OriginalSize,
	}
	if err := wal.WriteSegment(req.OutputPath, req.Fields, req.BloomFields, rows, meta); err != nil {
		return nil, fmt.Errorf("merge: write %s: %w", req.OutputPath, err)
	}

	// The compressed size is only known once the file exists, so the
	// embedded footer leaves it zero and the result carries the exact
	// measured size. The file list is the authoritative record of it.
	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("merge: stat %s: %w", req.OutputPath, err)
	}
	meta.CompressedSize = info.Size()

	return []Result{{Path: req.OutputPath, Meta: meta}}, nil
}

func project(row map[string]any, keep map[string]struct{}) map[string]any {
	out := make(map[string]any, len(keep))
	for name := range keep {
		if value, ok := row[name]; ok {
			out[name] = value
		}
	}
	return out
}

func rowTs(row map[string]any) int64 {
	ts, _ := row[wal.TimestampColumn].(int64)
	return ts
}

var _ Service = (*ParquetMerger)(nil)
