package wal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// ContentType is the MIME type used when uploading segment files.
const ContentType = "application/x-parquet"

// BuildSchema constructs the Parquet schema for a set of field names.
// Every field except the timestamp column is an optional UTF8 string;
// the timestamp column is a required int64. The timestamp column is added
// whether or not it appears in fields.
func BuildSchema(fields []string) *parquet.Schema {
	group := parquet.Group{
		TimestampColumn: parquet.Int(64),
	}
	for _, name := range fields {
		if name == TimestampColumn {
			continue
		}
		group[name] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema("segment", group)
}

// UnionFields merges several field-name sets into one sorted, deduplicated
// slice. Used to derive the schema of a merged file from its inputs.
func UnionFields(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, name := range set {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// WriteSegment writes rows to path as a sealed segment: schema derived
// from fields, footer metadata embedded, bloom filters built for the
// given columns. The ingestion workers and the merge engine share this
// writer so segments and merged files stay byte-compatible.
func WriteSegment(path string, fields []string, bloomFields []string, rows []map[string]any, meta FileMeta) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("wal: marshal footer: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	opts := []parquet.WriterOption{
		BuildSchema(fields),
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(MetaKey, string(metaJSON)),
	}
	if len(bloomFields) > 0 {
		filters := make([]parquet.BloomFilterColumn, 0, len(bloomFields))
		for _, name := range bloomFields {
			filters = append(filters, parquet.SplitBlockFilter(10, name))
		}
		opts = append(opts, parquet.BloomFilters(filters...))
	}

	w := parquet.NewGenericWriter[map[string]any](f, opts...)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("wal: write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("wal: close writer: %w", err)
	}
	return f.Close()
}

// ReadSegmentRows reads every row of a segment into generic maps.
func ReadSegmentRows(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("wal: open segment: %w", err)
	}

	// The generic reader cannot derive a schema from a map row type, so
	// read with the schema recorded in the file itself.
	reader := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer reader.Close()

	var out []map[string]any
	batch := make([]map[string]any, 256)
	for i := range batch {
		batch[i] = make(map[string]any)
	}
	for {
		n, err := reader.Read(batch)
		for i := 0; i < n; i++ {
			out = append(out, batch[i])
			batch[i] = make(map[string]any)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("wal: read rows: %w", err)
		}
	}
}
