package fts

import (
	"context"
	"testing"

	"github.com/tessera-io/tessera/internal/objectstore"
)

func TestParseCodec(t *testing.T) {
	for _, name := range []string{"none", "snappy", "lz4", "zstd", ""} {
		codec, err := ParseCodec(name)
		if err != nil {
			t.Errorf("ParseCodec(%q) error = %v", name, err)
			continue
		}
		out, err := codec.Compress([]byte("hello hello hello hello"))
		if err != nil {
			t.Errorf("%s Compress() error = %v", name, err)
		}
		if len(out) == 0 {
			t.Errorf("%s Compress() returned empty output", name)
		}
	}

	if _, err := ParseCodec("brotli"); err == nil {
		t.Error("ParseCodec(brotli) accepted unknown codec")
	}
}

func TestBuilderUpload(t *testing.T) {
	ctx := context.Background()
	codec, err := ParseCodec("snappy")
	if err != nil {
		t.Fatal(err)
	}
	builder := NewBuilder(codec)
	store := objectstore.NewMockStore()

	rows := []map[string]any{
		{"_timestamp": int64(1), "msg": "connection refused by upstream"},
		{"_timestamp": int64(2), "msg": "Connection established"},
		{"_timestamp": int64(3), "msg": nil},
	}

	size, err := builder.Upload(ctx, store, "files/acme/logs/nginx/2026/08/30/12/seg-a.parquet", rows, []string{"msg"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if size <= 0 {
		t.Errorf("Upload() size = %d, want > 0", size)
	}

	meta, err := store.Head(ctx, "files/acme/logs/nginx/2026/08/30/12/seg-a.parquet"+IndexSuffix)
	if err != nil {
		t.Fatalf("index object missing: %v", err)
	}
	if meta.Size != size {
		t.Errorf("stored size = %d, reported size = %d", meta.Size, size)
	}
}

func TestBuilderUploadSkipsWhenNoFields(t *testing.T) {
	codec, _ := ParseCodec("none")
	builder := NewBuilder(codec)
	store := objectstore.NewMockStore()

	size, err := builder.Upload(context.Background(), store, "files/x.parquet",
		[]map[string]any{{"msg": "hello"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if size != 0 || store.Len() != 0 {
		t.Errorf("Upload() with no fields wrote an index: size=%d objects=%d", size, store.Len())
	}
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("GET /api/v1/users?id=42 HTTP/1.1")
	want := map[string]bool{"get": true, "api": true, "v1": true, "users": true, "id": true, "42": true, "http": true, "1": true}
	for _, token := range tokens {
		if !want[token] {
			t.Errorf("unexpected token %q", token)
		}
	}
	if len(tokens) == 0 {
		t.Fatal("tokenize returned nothing")
	}
}
