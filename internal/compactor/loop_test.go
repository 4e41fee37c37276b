package compactor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/tessera-io/tessera/internal/stream"
)

func TestControllerDrainFlushesAndStops(t *testing.T) {
	f := newEngineFixture(t)
	f.setHealthyStream(stream.Settings{})

	key := "files/acme/logs/nginx/2026/08/30/12/0/seg-a.parquet"
	path := writeSegmentFile(t, f.root, key, segmentRows(1000), []string{"level", "msg"})

	// A long interval proves the drain skips the steady-state sleep.
	c := NewController(f.engine, time.Hour, time.Millisecond, 10*time.Millisecond, testLogger())

	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background())
	}()
	c.Drain()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("drain did not complete")
	}

	if c.State() != StateStopped {
		t.Errorf("state = %s, want stopped", c.State())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("drain left the segment unflushed")
	}
	if f.objects.Len() == 0 {
		t.Error("drain uploaded nothing")
	}
}

func TestControllerStopsOnContextCancel(t *testing.T) {
	f := newEngineFixture(t)
	c := NewController(f.engine, time.Hour, time.Millisecond, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if c.State() != StateStopped {
		t.Errorf("state = %s, want stopped", c.State())
	}
}

func TestControllerDrainOnEmptyWALStopsImmediately(t *testing.T) {
	f := newEngineFixture(t)
	c := NewController(f.engine, time.Hour, time.Millisecond, 10*time.Millisecond, testLogger())
	c.Drain()

	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("empty drain did not stop")
	}
}
