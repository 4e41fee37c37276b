package filelist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-io/tessera/internal/metadata"
	"github.com/tessera-io/tessera/internal/wal"
)

func TestRecordAndExists(t *testing.T) {
	ctx := context.Background()
	index := NewMetaIndex(metadata.NewMockStore())

	key := "files/acme/logs/nginx/2026/08/30/12/seg-0001.parquet"
	exists, err := index.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists, "Exists before Record")

	entry := Entry{
		Account: "default",
		Key:     key,
		Meta:    wal.FileMeta{MinTs: 1, MaxTs: 9, Records: 100, OriginalSize: 4096, CompressedSize: 1024},
	}
	require.NoError(t, index.Record(ctx, entry))

	exists, err = index.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists, "Exists after Record")

	// Recording again after a crash between record and input deletion
	// must succeed.
	assert.NoError(t, index.Record(ctx, entry))
}

func TestRecordRejectsEmptyKey(t *testing.T) {
	index := NewMetaIndex(metadata.NewMockStore())
	assert.Error(t, index.Record(context.Background(), Entry{Account: "default"}))
}

func TestTombstoneHidesEntry(t *testing.T) {
	ctx := context.Background()
	index := NewMetaIndex(metadata.NewMockStore())

	key := "files/acme/logs/nginx/2026/08/30/12/seg-0001.parquet"
	require.NoError(t, index.Record(ctx, Entry{Account: "default", Key: key, Deleted: true}))

	exists, err := index.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists, "tombstoned entry visible")
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	index := NewMetaIndex(metadata.NewMockStore())

	keys := []string{
		"files/acme/logs/nginx/2026/08/30/11/seg-a.parquet",
		"files/acme/logs/nginx/2026/08/30/12/seg-b.parquet",
		"files/globex/logs/app/2026/08/30/12/seg-c.parquet",
	}
	for _, key := range keys {
		require.NoError(t, index.Record(ctx, Entry{Account: "default", Key: key}))
	}

	entries, err := index.List(ctx, "files/acme/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Contains(t, entry.Key, "files/acme/")
	}
}
