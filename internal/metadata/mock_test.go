package metadata

import (
	"context"
	"errors"
	"testing"
)

func TestMockStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()

	v, err := store.Put(ctx, "/a", []byte("one"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if v != 1 {
		t.Errorf("first Put version = %d, want 1", v)
	}

	got, err := store.Get(ctx, "/a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Exists || string(got.Value) != "one" {
		t.Errorf("Get() = %+v", got)
	}

	if err := store.Delete(ctx, "/a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err = store.Get(ctx, "/a")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if got.Exists {
		t.Error("key still exists after delete")
	}

	// Delete is idempotent.
	if err := store.Delete(ctx, "/a"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestMockStoreCAS(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()

	// ExpectNotExists on a fresh key succeeds.
	if _, err := store.Put(ctx, "/a", []byte("x"), WithExpectedVersion(0)); err != nil {
		t.Fatalf("Put(expect-not-exists) error = %v", err)
	}
	// ...and fails once the key exists.
	if _, err := store.Put(ctx, "/a", []byte("y"), WithExpectedVersion(0)); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("Put(expect-not-exists) on existing key = %v, want ErrVersionMismatch", err)
	}

	// CAS with the right version succeeds and bumps it.
	v, err := store.Put(ctx, "/a", []byte("y"), WithExpectedVersion(1))
	if err != nil {
		t.Fatalf("CAS Put error = %v", err)
	}
	if v != 2 {
		t.Errorf("version after CAS = %d, want 2", v)
	}

	// Stale version fails.
	if _, err := store.Put(ctx, "/a", []byte("z"), WithExpectedVersion(1)); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("stale CAS = %v, want ErrVersionMismatch", err)
	}
}

func TestMockStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()

	for _, key := range []string{"/p/c", "/p/a", "/p/b", "/q/a"} {
		if _, err := store.Put(ctx, key, []byte(key)); err != nil {
			t.Fatal(err)
		}
	}

	kvs, err := store.List(ctx, "/p/", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(kvs) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(kvs))
	}
	// Lexicographic order.
	if kvs[0].Key != "/p/a" || kvs[1].Key != "/p/b" || kvs[2].Key != "/p/c" {
		t.Errorf("List() order = %v", []string{kvs[0].Key, kvs[1].Key, kvs[2].Key})
	}

	kvs, err = store.List(ctx, "/p/", 2)
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(kvs) != 2 {
		t.Errorf("List(limit=2) returned %d entries", len(kvs))
	}
}

func TestMockStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, "/a"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Get() after close = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Put(ctx, "/a", nil); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Put() after close = %v, want ErrStoreClosed", err)
	}
}
