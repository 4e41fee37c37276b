package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// MetaKey is the Parquet key-value metadata entry holding the segment footer.
const MetaKey = "tessera:meta"

// ErrCorruptFooter marks a segment whose footer metadata is missing or
// unparseable. Such segments carry no recoverable data and are deleted
// rather than merged.
var ErrCorruptFooter = errors.New("wal: corrupt segment footer")

// FileMeta is the footer every writer embeds in a segment and every merged
// file carries in the file list. Timestamps are unix microseconds.
type FileMeta struct {
	MinTs          int64 `json:"min_ts"`
	MaxTs          int64 `json:"max_ts"`
	Records        int64 `json:"records"`
	OriginalSize   int64 `json:"original_size"`
	CompressedSize int64 `json:"compressed_size"`
	IndexSize      int64 `json:"index_size,omitempty"`
}

// IsZero reports whether the footer is entirely unset. A zero footer on a
// non-empty file means the writer crashed before sealing it.
func (m FileMeta) IsZero() bool {
	return m == FileMeta{}
}

// ReadSegmentMeta opens a segment file and extracts its footer metadata.
// Returns ErrCorruptFooter when the file is not valid Parquet, the footer
// entry is absent, or the footer is zero.
func ReadSegmentMeta(path string) (FileMeta, error) {
	f, err := openParquet(path)
	if err != nil {
		return FileMeta{}, err
	}
	defer f.close()

	raw, ok := f.file.Lookup(MetaKey)
	if !ok {
		return FileMeta{}, fmt.Errorf("%w: %s: no %s entry", ErrCorruptFooter, path, MetaKey)
	}
	var meta FileMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return FileMeta{}, fmt.Errorf("%w: %s: %v", ErrCorruptFooter, path, err)
	}
	if meta.IsZero() {
		return FileMeta{}, fmt.Errorf("%w: %s: zero footer", ErrCorruptFooter, path)
	}
	return meta, nil
}

// ReadSegmentFields returns the leaf column names of a segment's schema.
func ReadSegmentFields(path string) ([]string, error) {
	f, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer f.close()

	fields := f.file.Schema().Fields()
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name())
	}
	return names, nil
}

type parquetHandle struct {
	osFile *os.File
	file   *parquet.File
}

func (h *parquetHandle) close() error {
	return h.osFile.Close()
}

func openParquet(path string) (*parquetHandle, error) {
	osFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := osFile.Stat()
	if err != nil {
		osFile.Close()
		return nil, err
	}
	pf, err := parquet.OpenFile(osFile, info.Size())
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptFooter, path, err)
	}
	return &parquetHandle{osFile: osFile, file: pf}, nil
}
