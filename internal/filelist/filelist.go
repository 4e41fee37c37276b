// Package filelist maintains the durable index of merged files. Queries
// discover data through this index, so a merged file must be recorded
// here before its input segments may be deleted.
package filelist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tessera-io/tessera/internal/metadata"
	"github.com/tessera-io/tessera/internal/metadata/keys"
	"github.com/tessera-io/tessera/internal/wal"
)

// Entry is one merged file in the index.
type Entry struct {
	// Account is the storage account holding the file.
	Account string `json:"account"`

	// Key is the object key within the account.
	Key string `json:"key"`

	// Meta carries the file's footer statistics.
	Meta wal.FileMeta `json:"meta"`

	// Deleted tombstones the entry without removing it, so queries in
	// flight during retention deletes see a consistent index.
	Deleted bool `json:"deleted,omitempty"`

	// RecordedAt is when the entry was written, unix milliseconds.
	RecordedAt int64 `json:"recorded_at_ms"`
}

// Index records merged files durably.
type Index interface {
	// Record adds an entry for a merged file. Recording the same key twice
	// overwrites the previous entry; re-recording after a crash between
	// record and input deletion must succeed.
	Record(ctx context.Context, entry Entry) error

	// Exists reports whether a non-tombstoned entry exists for the key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns entries whose file key starts with prefix.
	List(ctx context.Context, prefix string) ([]Entry, error)
}

// MetaIndex implements Index over the metadata store.
type MetaIndex struct {
	meta metadata.Store
	now  func() time.Time
}

// NewMetaIndex creates a file-list index backed by the metadata store.
func NewMetaIndex(meta metadata.Store) *MetaIndex {
	return &MetaIndex{meta: meta, now: time.Now}
}

func (i *MetaIndex) Record(ctx context.Context, entry Entry) error {
	if entry.Key == "" {
		return fmt.Errorf("filelist: entry has empty key")
	}
	if entry.RecordedAt == 0 {
		entry.RecordedAt = i.now().UnixMilli()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("filelist: encode entry: %w", err)
	}
	if _, err := i.meta.Put(ctx, keys.FileList(entry.Key), raw); err != nil {
		return fmt.Errorf("filelist: record %s: %w", entry.Key, err)
	}
	return nil
}

func (i *MetaIndex) Exists(ctx context.Context, key string) (bool, error) {
	result, err := i.meta.Get(ctx, keys.FileList(key))
	if err != nil {
		return false, fmt.Errorf("filelist: get %s: %w", key, err)
	}
	if !result.Exists {
		return false, nil
	}
	var entry Entry
	if err := json.Unmarshal(result.Value, &entry); err != nil {
		return false, fmt.Errorf("filelist: decode %s: %w", key, err)
	}
	return !entry.Deleted, nil
}

func (i *MetaIndex) List(ctx context.Context, prefix string) ([]Entry, error) {
	kvs, err := i.meta.List(ctx, keys.FileListPrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("filelist: list: %w", err)
	}
	var entries []Entry
	for _, kv := range kvs {
		var entry Entry
		if err := json.Unmarshal(kv.Value, &entry); err != nil {
			return nil, fmt.Errorf("filelist: decode %s: %w", kv.Key, err)
		}
		if strings.HasPrefix(entry.Key, prefix) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

var _ Index = (*MetaIndex)(nil)
