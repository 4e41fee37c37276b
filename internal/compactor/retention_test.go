package compactor

import (
	"context"
	"testing"
	"time"

	"github.com/tessera-io/tessera/internal/stream"
	"github.com/tessera-io/tessera/internal/wal"
)

func dateHour(t time.Time) string {
	return t.UTC().Format("2006/01/02/15")
}

func testGatekeeper(streams stream.Store, defaultDays int, now time.Time) *Gatekeeper {
	gk := NewGatekeeper(streams, defaultDays)
	gk.now = func() time.Time { return now }
	return gk
}

func TestGatekeeperAdmitsHealthyStream(t *testing.T) {
	streams := stream.NewMockStore()
	streams.SetSchema(stream.Schema{
		Org: "acme", StreamType: "logs", Stream: "nginx",
		Fields:   []string{wal.TimestampColumn, "msg"},
		Settings: stream.Settings{RetentionDays: 30},
	})

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	gk := testGatekeeper(streams, 0, now)

	pk := wal.PartitionKey{Org: "acme", StreamType: "logs", Stream: "nginx", DateHour: dateHour(now)}
	decision, schema, err := gk.Check(context.Background(), pk)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionMerge {
		t.Errorf("decision = %s, want merge", decision)
	}
	if len(schema.Fields) != 2 {
		t.Errorf("schema not returned: %+v", schema)
	}
}

func TestGatekeeperDropsDeletingStream(t *testing.T) {
	streams := stream.NewMockStore()
	streams.SetSchema(stream.Schema{
		Org: "acme", StreamType: "logs", Stream: "nginx",
		Fields: []string{"msg"},
	})
	streams.SetDeleting("acme", "logs", "nginx", true)

	gk := testGatekeeper(streams, 0, time.Now())
	pk := wal.PartitionKey{Org: "acme", StreamType: "logs", Stream: "nginx", DateHour: "2026/08/30/12"}
	decision, _, err := gk.Check(context.Background(), pk)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionDropDeleting {
		t.Errorf("decision = %s, want stream_deleting", decision)
	}
}

func TestGatekeeperDropsMissingOrEmptySchema(t *testing.T) {
	streams := stream.NewMockStore()
	gk := testGatekeeper(streams, 0, time.Now())

	pk := wal.PartitionKey{Org: "acme", StreamType: "logs", Stream: "ghost", DateHour: "2026/08/30/12"}
	decision, _, err := gk.Check(context.Background(), pk)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionDropNoSchema {
		t.Errorf("missing stream decision = %s, want no_schema", decision)
	}

	streams.SetSchema(stream.Schema{Org: "acme", StreamType: "logs", Stream: "ghost"})
	decision, _, err = gk.Check(context.Background(), pk)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionDropNoSchema {
		t.Errorf("empty schema decision = %s, want no_schema", decision)
	}
}

func TestGatekeeperDropsExpiredPartition(t *testing.T) {
	streams := stream.NewMockStore()
	streams.SetSchema(stream.Schema{
		Org: "acme", StreamType: "logs", Stream: "nginx",
		Fields:   []string{"msg"},
		Settings: stream.Settings{RetentionDays: 7},
	})

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	gk := testGatekeeper(streams, 0, now)

	// Partition is 10 days old with 7 day retention.
	old := now.AddDate(0, 0, -10)
	pk := wal.PartitionKey{Org: "acme", StreamType: "logs", Stream: "nginx", DateHour: dateHour(old)}
	decision, _, err := gk.Check(context.Background(), pk)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionDropExpired {
		t.Errorf("decision = %s, want expired", decision)
	}

	// Re-checking with unchanged inputs yields the same verdict.
	again, _, err := gk.Check(context.Background(), pk)
	if err != nil {
		t.Fatal(err)
	}
	if again != decision {
		t.Errorf("gatekeeper not idempotent: %s then %s", decision, again)
	}
}

func TestGatekeeperZeroRetentionNeverExpires(t *testing.T) {
	streams := stream.NewMockStore()
	streams.SetSchema(stream.Schema{
		Org: "acme", StreamType: "logs", Stream: "nginx",
		Fields: []string{"msg"},
	})

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	gk := testGatekeeper(streams, 0, now)

	ancient := now.AddDate(-3, 0, 0)
	pk := wal.PartitionKey{Org: "acme", StreamType: "logs", Stream: "nginx", DateHour: dateHour(ancient)}
	decision, _, err := gk.Check(context.Background(), pk)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionMerge {
		t.Errorf("decision = %s, want merge with retention disabled", decision)
	}
}

func TestGatekeeperDefaultRetentionFloor(t *testing.T) {
	streams := stream.NewMockStore()
	streams.SetSchema(stream.Schema{
		Org: "acme", StreamType: "logs", Stream: "nginx",
		Fields:   []string{"msg"},
		Settings: stream.Settings{RetentionDays: 3},
	})

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	// Global default of 30 days outlasts the stream's 3.
	gk := testGatekeeper(streams, 30, now)

	tenDaysOld := now.AddDate(0, 0, -10)
	pk := wal.PartitionKey{Org: "acme", StreamType: "logs", Stream: "nginx", DateHour: dateHour(tenDaysOld)}
	decision, _, err := gk.Check(context.Background(), pk)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionMerge {
		t.Errorf("decision = %s, want merge under the longer global retention", decision)
	}
}
