package compactor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tessera-io/tessera/internal/logging"
)

// Scanner walks the WAL root for segment files and emits their absolute
// paths in bounded batches over a channel, so grouping can start before
// the walk finishes.
type Scanner struct {
	root      string
	suffix    string
	batchSize int
	log       *logging.Logger
}

// NewScanner creates a Scanner over root for files ending in suffix.
func NewScanner(root, suffix string, batchSize int, log *logging.Logger) *Scanner {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Scanner{
		root:      root,
		suffix:    suffix,
		batchSize: batchSize,
		log:       log.WithComponent("scanner"),
	}
}

// Scan walks the tree and sends batches until done or ctx is cancelled.
// The returned channel is closed when the walk ends. A missing root is
// not an error: ingestion simply has not written anything yet.
func (s *Scanner) Scan(ctx context.Context) <-chan []string {
	out := make(chan []string, 1)

	go func() {
		defer close(out)

		// No root means no files yet, not an error.
		if _, err := os.Stat(s.root); os.IsNotExist(err) {
			return
		}

		batch := make([]string, 0, s.batchSize)
		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			select {
			case out <- batch:
				batch = make([]string, 0, s.batchSize)
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				// Best effort: a racing delete or unreadable entry
				// should not abort the whole walk.
				s.log.Warn("skipping unreadable entry", map[string]any{
					"path":  path,
					"error": err.Error(),
				})
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(path, s.suffix) {
				return nil
			}
			batch = append(batch, path)
			if len(batch) >= s.batchSize {
				if !flush() {
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil {
			if !os.IsNotExist(err) && ctx.Err() == nil {
				s.log.Warn("wal walk ended early", map[string]any{"error": err.Error()})
			}
			return
		}
		flush()
	}()

	return out
}
