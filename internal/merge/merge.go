// Package merge turns a batch of WAL segments into one larger sorted
// Parquet file. The planner in the compactor decides what to merge; this
// package only executes the merge.
package merge

import (
	"context"
	"errors"

	"github.com/tessera-io/tessera/internal/wal"
)

// Common errors returned by Merge.
var (
	// ErrNoInputs is returned when a merge request carries no segments.
	ErrNoInputs = errors.New("merge: no input segments")

	// ErrEmptyOutput is returned when the merged rows collapse to nothing,
	// which indicates corrupt inputs rather than a valid empty file.
	ErrEmptyOutput = errors.New("merge: merged output has no records")
)

// Request describes one merge job. Inputs are local segment paths; the
// output is written to OutputPath.
type Request struct {
	// Inputs are the local paths of the segments to merge, oldest first.
	Inputs []string

	// Fields is the output schema, already projected by the caller to the
	// stream's defined-schema fields when those are set. Columns found in
	// inputs but absent here are dropped.
	Fields []string

	// BloomFields lists columns that get bloom filters in the output.
	BloomFields []string

	// OutputPath is where the merged file is written.
	OutputPath string

	// OriginalSize is the summed original size of the inputs, carried
	// into the output footer.
	OriginalSize int64
}

// Result describes one written output file.
type Result struct {
	Path string
	Meta wal.FileMeta
}

// Service merges segments. Implementations must write output files whose
// footers are non-zero and whose rows are sorted by event time.
type Service interface {
	// Merge executes a merge job. A correct plan produces exactly one
	// output file; callers must treat any other count as fatal.
	Merge(ctx context.Context, req Request) ([]Result, error)
}
