// Package stream exposes per-stream schemas and settings to the rest of
// the system. Schemas are owned by the ingestion path; the compactor only
// reads them, so this package is a thin read-side view over the metadata
// store.
package stream

import (
	"context"
	"errors"
)

// ErrStreamNotFound is returned when no schema exists for a stream.
var ErrStreamNotFound = errors.New("stream: stream not found")

// Settings holds per-stream tuning that overrides service defaults.
// Zero values mean "use the default".
type Settings struct {
	// RetentionDays bounds how long data in this stream is kept.
	RetentionDays int `json:"retention_days,omitempty"`

	// FieldLimit caps the number of distinct fields a merged file may carry.
	FieldLimit int `json:"field_limit,omitempty"`

	// DefinedSchemaFields, when non-empty, restricts merged files to these
	// fields; extra fields found in segments are dropped.
	DefinedSchemaFields []string `json:"defined_schema_fields,omitempty"`

	// BloomFilterFields lists columns that get bloom filters in merged files.
	BloomFilterFields []string `json:"bloom_filter_fields,omitempty"`

	// FullTextSearchFields lists columns indexed for full-text search.
	FullTextSearchFields []string `json:"full_text_search_fields,omitempty"`

	// IndexFields lists additional columns to include in the inverted index.
	IndexFields []string `json:"index_fields,omitempty"`

	// IndexAllValues indexes every column of the merged file, ignoring the
	// per-field lists above.
	IndexAllValues bool `json:"index_all_values,omitempty"`

	// StoreOriginal keeps the raw ingested record column in merged files.
	// When false the column is dropped during merge.
	StoreOriginal bool `json:"store_original,omitempty"`
}

// Schema is the stored schema record for one stream.
type Schema struct {
	Org        string   `json:"org"`
	StreamType string   `json:"stream_type"`
	Stream     string   `json:"stream"`
	Fields     []string `json:"fields"`
	Settings   Settings `json:"settings"`
	UpdatedAt  int64    `json:"updated_at_ms"`
}

// Store provides read access to stream schemas and lifecycle state.
type Store interface {
	// LatestSchema returns the current schema for a stream.
	// Returns ErrStreamNotFound if the stream has never been written.
	LatestSchema(ctx context.Context, org, streamType, stream string) (Schema, error)

	// IsDeleting reports whether the stream is marked for deletion.
	// Data belonging to a deleting stream is dropped instead of merged.
	IsDeleting(ctx context.Context, org, streamType, stream string) (bool, error)
}
