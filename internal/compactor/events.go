package compactor

import (
	"context"

	"github.com/tessera-io/tessera/internal/logging"
	"github.com/tessera-io/tessera/internal/wal"
)

// MergedFileEvent is emitted after a merged file is uploaded and recorded
// in the file list.
type MergedFileEvent struct {
	Account   string
	Key       string
	Partition wal.PartitionKey
	Meta      wal.FileMeta
}

// Observer receives post-merge notifications. Observers run in their own
// failure domain: an observer error is logged and never rolls back or
// blocks the merge pipeline.
type Observer interface {
	FileMerged(ctx context.Context, event MergedFileEvent) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, event MergedFileEvent) error

func (f ObserverFunc) FileMerged(ctx context.Context, event MergedFileEvent) error {
	return f(ctx, event)
}

// notifyObservers fans an event out to all observers, logging failures.
func notifyObservers(ctx context.Context, log *logging.Logger, observers []Observer, event MergedFileEvent) {
	for _, obs := range observers {
		if err := obs.FileMerged(ctx, event); err != nil {
			log.Warn("merge observer failed", map[string]any{
				"key":   event.Key,
				"error": err.Error(),
			})
		}
	}
}
