package compactor

import (
	"context"
	"testing"

	"github.com/tessera-io/tessera/internal/metadata"
)

func TestPendingStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewPendingStore(metadata.NewMockStore())

	records, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("List() on empty store = %d records", len(records))
	}

	rec := PendingDelete{
		Org:     "acme",
		Account: "default",
		Key:     "files/acme/logs/nginx/2026/08/30/12/0/seg-0001.parquet",
	}
	if err := store.Add(ctx, rec); err != nil {
		t.Fatal(err)
	}
	// Re-adding the same key overwrites, not duplicates.
	if err := store.Add(ctx, rec); err != nil {
		t.Fatal(err)
	}

	records, err = store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("List() = %d records, want 1", len(records))
	}
	if records[0].Key != rec.Key || records[0].Org != "acme" {
		t.Errorf("List()[0] = %+v", records[0])
	}
	if records[0].AddedAt == 0 {
		t.Error("AddedAt not stamped")
	}

	if err := store.Remove(ctx, rec.Key); err != nil {
		t.Fatal(err)
	}
	records, _ = store.List(ctx)
	if len(records) != 0 {
		t.Errorf("List() after Remove = %d records", len(records))
	}
}

func TestRemovingMarkersRoundTrip(t *testing.T) {
	ctx := context.Background()
	markers := NewRemovingMarkers(metadata.NewMockStore())

	key := "files/acme/logs/nginx/2026/08/30/12/0/seg-0001.parquet"
	if err := markers.Add(ctx, key); err != nil {
		t.Fatal(err)
	}

	listed, err := markers.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0] != key {
		t.Fatalf("List() = %v, want [%s]", listed, key)
	}

	if err := markers.Remove(ctx, key); err != nil {
		t.Fatal(err)
	}
	listed, _ = markers.List(ctx)
	if len(listed) != 0 {
		t.Errorf("List() after Remove = %v", listed)
	}
}
