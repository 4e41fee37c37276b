package compactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tessera-io/tessera/internal/stream"
	"github.com/tessera-io/tessera/internal/wal"
)

// Decision is the retention gatekeeper's verdict for a partition group.
type Decision int

const (
	// DecisionMerge admits the group to the merge engine.
	DecisionMerge Decision = iota

	// DecisionDropDeleting drops the group because its stream is being deleted.
	DecisionDropDeleting

	// DecisionDropNoSchema drops the group because the stream no longer
	// has a schema.
	DecisionDropNoSchema

	// DecisionDropExpired drops the group because the partition's date is
	// past the retention window.
	DecisionDropExpired
)

// String names the decision for logs and metrics.
func (d Decision) String() string {
	switch d {
	case DecisionMerge:
		return "merge"
	case DecisionDropDeleting:
		return "stream_deleting"
	case DecisionDropNoSchema:
		return "no_schema"
	case DecisionDropExpired:
		return "expired"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Gatekeeper decides whether a partition group is still worth merging.
// The same inputs always yield the same decision, so re-checking a
// partition is harmless.
type Gatekeeper struct {
	streams              stream.Store
	defaultRetentionDays int
	now                  func() time.Time
}

// NewGatekeeper creates a Gatekeeper. defaultRetentionDays of 0 disables
// the global retention floor.
func NewGatekeeper(streams stream.Store, defaultRetentionDays int) *Gatekeeper {
	return &Gatekeeper{
		streams:              streams,
		defaultRetentionDays: defaultRetentionDays,
		now:                  time.Now,
	}
}

// Check runs the three eligibility checks in order. When the decision is
// DecisionMerge, the stream's schema is returned for the merge engine.
func (gk *Gatekeeper) Check(ctx context.Context, pk wal.PartitionKey) (Decision, stream.Schema, error) {
	deleting, err := gk.streams.IsDeleting(ctx, pk.Org, pk.StreamType, pk.Stream)
	if err != nil {
		return DecisionMerge, stream.Schema{}, fmt.Errorf("compactor: deletion check for %s: %w", pk, err)
	}
	if deleting {
		return DecisionDropDeleting, stream.Schema{}, nil
	}

	schema, err := gk.streams.LatestSchema(ctx, pk.Org, pk.StreamType, pk.Stream)
	if errors.Is(err, stream.ErrStreamNotFound) {
		return DecisionDropNoSchema, stream.Schema{}, nil
	}
	if err != nil {
		return DecisionMerge, stream.Schema{}, fmt.Errorf("compactor: schema fetch for %s: %w", pk, err)
	}
	if len(schema.Fields) == 0 {
		return DecisionDropNoSchema, stream.Schema{}, nil
	}

	retentionDays := schema.Settings.RetentionDays
	if gk.defaultRetentionDays > retentionDays {
		retentionDays = gk.defaultRetentionDays
	}
	if retentionDays > 0 {
		date, err := pk.Date()
		if err != nil {
			return DecisionMerge, stream.Schema{}, fmt.Errorf("compactor: partition date for %s: %w", pk, err)
		}
		cutoff := gk.now().UTC().AddDate(0, 0, -retentionDays)
		cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
		if date.Before(cutoff) {
			return DecisionDropExpired, stream.Schema{}, nil
		}
	}

	return DecisionMerge, schema, nil
}
