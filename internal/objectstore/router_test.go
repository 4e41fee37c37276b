package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestNewRouterRequiresAccounts(t *testing.T) {
	if _, err := NewRouter(nil); !errors.Is(err, ErrNoAccounts) {
		t.Errorf("NewRouter(nil) = %v, want ErrNoAccounts", err)
	}
}

func TestRouterDeterministic(t *testing.T) {
	stores := map[string]Store{
		"default": NewMockStore(),
		"cold":    NewMockStore(),
		"archive": NewMockStore(),
	}
	r, err := NewRouter(stores)
	if err != nil {
		t.Fatal(err)
	}

	keys := []string{
		"files/acme/logs/app/2026/08/30/12/seg-0001.parquet",
		"files/acme/logs/app/2026/08/30/12/seg-0002.parquet",
		"files/globex/metrics/cpu/2026/08/30/13/seg-9999.parquet",
	}
	for _, key := range keys {
		first := r.AccountFor(key)
		for i := 0; i < 10; i++ {
			if got := r.AccountFor(key); got != first {
				t.Fatalf("AccountFor(%q) not deterministic: %q vs %q", key, first, got)
			}
		}
		if _, err := r.Store(first); err != nil {
			t.Errorf("Store(%q) error = %v", first, err)
		}
		if r.StoreFor(key) == nil {
			t.Errorf("StoreFor(%q) = nil", key)
		}
	}
}

func TestRouterUnknownAccount(t *testing.T) {
	r, err := NewRouter(map[string]Store{"default": NewMockStore()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Store("nope"); !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("Store(nope) = %v, want ErrUnknownAccount", err)
	}
}

func TestMockStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()

	payload := []byte("parquet-bytes")
	if err := store.Put(ctx, "files/a.parquet", bytes.NewReader(payload), int64(len(payload)), "application/x-parquet"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	meta, err := store.Head(ctx, "files/a.parquet")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if meta.Size != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", meta.Size, len(payload))
	}

	rc, err := store.Get(ctx, "files/a.parquet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, payload) {
		t.Errorf("Get() = %q, want %q", got, payload)
	}

	if _, err := store.Get(ctx, "files/missing.parquet"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}

	// Delete is idempotent.
	if err := store.Delete(ctx, "files/a.parquet"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "files/a.parquet"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}
