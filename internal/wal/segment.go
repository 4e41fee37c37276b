// Package wal defines the on-disk WAL segment layout the compactor
// consumes: segment keys, partition derivation, footer metadata and the
// Parquet segment codec shared with the ingestion writers.
//
// Segment keys are relative to the WAL root and follow
//
//	files/<org>/<stream-type>/<stream>/<YYYY>/<MM>/<DD>/<HH>/<worker>/<name>.parquet
//
// where <worker> is the numeric id of the ingestion worker that wrote
// the segment. Partition identity deliberately excludes the worker id
// so segments written by parallel workers merge into the same group.
package wal

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// TimestampColumn is the required event-time column present in every segment.
const TimestampColumn = "_timestamp"

// OriginalColumn holds the raw ingested record when a stream is configured
// to keep it.
const OriginalColumn = "_original"

// ErrBadSegmentKey is returned when a segment key does not match the
// expected directory layout.
var ErrBadSegmentKey = errors.New("wal: malformed segment key")

// PartitionKey identifies one merge partition:
// everything in the segment key except the worker id and file name.
type PartitionKey struct {
	Org        string
	StreamType string
	Stream     string
	DateHour   string // "YYYY/MM/DD/HH"
}

// String renders the partition key as a path prefix.
func (k PartitionKey) String() string {
	return "files/" + k.Org + "/" + k.StreamType + "/" + k.Stream + "/" + k.DateHour
}

// Date parses the partition's date bucket. The hour component is dropped.
func (k PartitionKey) Date() (time.Time, error) {
	parts := strings.Split(k.DateHour, "/")
	if len(parts) != 4 {
		return time.Time{}, fmt.Errorf("%w: bad date bucket %q", ErrBadSegmentKey, k.DateHour)
	}
	t, err := time.Parse("2006/01/02", parts[0]+"/"+parts[1]+"/"+parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date bucket %q", ErrBadSegmentKey, k.DateHour)
	}
	return t, nil
}

// ParseSegmentKey derives the partition key from a segment key, stripping
// the worker-id path component.
func ParseSegmentKey(key string) (PartitionKey, error) {
	parts := strings.Split(path.Clean(key), "/")
	// files/org/type/stream/YYYY/MM/DD/HH/worker/name
	if len(parts) != 10 || parts[0] != "files" {
		return PartitionKey{}, fmt.Errorf("%w: %q", ErrBadSegmentKey, key)
	}
	if _, err := strconv.Atoi(parts[8]); err != nil {
		return PartitionKey{}, fmt.Errorf("%w: non-numeric worker id in %q", ErrBadSegmentKey, key)
	}
	return PartitionKey{
		Org:        parts[1],
		StreamType: parts[2],
		Stream:     parts[3],
		DateHour:   strings.Join(parts[4:8], "/"),
	}, nil
}

// SegmentName returns the file name component of a segment key.
func SegmentName(key string) string {
	return path.Base(key)
}

// MergedKey derives the deterministic storage key for a merged file from
// its partition and the name of the anchor (oldest) input segment.
func MergedKey(k PartitionKey, anchorName string) string {
	return k.String() + "/" + anchorName
}
