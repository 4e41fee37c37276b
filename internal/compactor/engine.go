package compactor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-io/tessera/internal/filelist"
	"github.com/tessera-io/tessera/internal/fts"
	"github.com/tessera-io/tessera/internal/logging"
	"github.com/tessera-io/tessera/internal/merge"
	"github.com/tessera-io/tessera/internal/metrics"
	"github.com/tessera-io/tessera/internal/objectstore"
	"github.com/tessera-io/tessera/internal/stream"
	"github.com/tessera-io/tessera/internal/wal"
)

// ErrMultiFileOutput is returned when the merge service produces more
// than one file. The planner bounds every merge to a single output, so
// this indicates a contract violation, not a transient failure.
var ErrMultiFileOutput = errors.New("compactor: merge produced multiple output files")

// EngineConfig configures a compaction engine.
type EngineConfig struct {
	Root          string
	Suffix        string
	ScanBatchSize int
	Workers       int
	Planner       PlannerConfig
	IndexEnabled  bool
	TempDir       string
}

// Engine runs one full compaction pass: sweep deferred deletes, scan the
// WAL, group by partition, gate on retention, merge, upload, record and
// delete. Groups for different partitions merge concurrently on a fixed
// worker pool; segments within a group are handled by exactly one worker.
type Engine struct {
	cfg         EngineConfig
	claims      *ClaimSet
	cache       *wal.MetaCache
	scanner     *Scanner
	grouper     *Grouper
	gatekeeper  *Gatekeeper
	planner     *Planner
	merger      merge.Service
	router      *objectstore.Router
	files       filelist.Index
	coordinator *Coordinator
	ftsBuilder  *fts.Builder
	observers   []Observer
	metrics     *metrics.CompactorMetrics
	log         *logging.Logger

	// Groups that failed recoverably keep their claims until the next
	// pass begins, so no other worker picks them up mid-pass.
	failedMu sync.Mutex
	failed   []string

	// draining disables the small-batch skip so every group flushes.
	draining atomic.Bool

	// reported holds the org/stream-type buckets gauged last pass, so a
	// partition that drains fully gets its gauge reset to zero. Passes
	// run one at a time, only RunPass touches it.
	reported map[[2]string]struct{}
}

// SetDraining toggles drain mode: small groups merge immediately instead
// of waiting to grow.
func (e *Engine) SetDraining(draining bool) {
	e.draining.Store(draining)
}

// EngineDeps carries the engine's collaborators.
type EngineDeps struct {
	Claims      *ClaimSet
	Cache       *wal.MetaCache
	Streams     stream.Store
	Merger      merge.Service
	Router      *objectstore.Router
	Files       filelist.Index
	Coordinator *Coordinator
	FTSBuilder  *fts.Builder
	Observers   []Observer
	Metrics     *metrics.CompactorMetrics
	Log         *logging.Logger

	// DefaultRetentionDays is the global retention floor.
	DefaultRetentionDays int
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig, deps EngineDeps) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	log := deps.Log.WithComponent("compactor")
	return &Engine{
		cfg:         cfg,
		claims:      deps.Claims,
		cache:       deps.Cache,
		scanner:     NewScanner(cfg.Root, cfg.Suffix, cfg.ScanBatchSize, deps.Log),
		grouper:     NewGrouper(cfg.Root, deps.Claims, deps.Cache, deps.Metrics, deps.Log),
		gatekeeper:  NewGatekeeper(deps.Streams, deps.DefaultRetentionDays),
		planner:     NewPlanner(cfg.Planner),
		merger:      deps.Merger,
		router:      deps.Router,
		files:       deps.Files,
		coordinator: deps.Coordinator,
		ftsBuilder:  deps.FTSBuilder,
		observers:   deps.Observers,
		metrics:     deps.Metrics,
		log:         log,
		reported:    make(map[[2]string]struct{}),
	}
}

// PassStats summarizes one compaction pass.
type PassStats struct {
	Scanned          int
	Groups           int
	MergedFiles      int
	MergedBytes      int64
	PendingRemaining int
}

// HasWork reports whether claimed or pending work remains, for drain.
func (s PassStats) HasWork() bool {
	return s.Scanned > 0 || s.PendingRemaining > 0
}

type passCounters struct {
	groups      atomic.Int64
	mergedFiles atomic.Int64
	mergedBytes atomic.Int64
}

// Recover prepares the engine after a restart. It must run before the
// first pass.
func (e *Engine) Recover(ctx context.Context) error {
	return e.coordinator.Recover(ctx)
}

// RunPass executes one full compaction pass.
func (e *Engine) RunPass(ctx context.Context) PassStats {
	start := time.Now()
	defer func() {
		e.metrics.PassDuration.Observe(time.Since(start).Seconds())
	}()

	e.releaseFailed()

	var stats PassStats
	remaining, err := e.coordinator.Sweep(ctx)
	if err != nil {
		e.log.Error("pending delete sweep failed", map[string]any{"error": err.Error()})
	}
	stats.PendingRemaining = remaining

	var counters passCounters
	work := make(chan Group, e.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range work {
				e.processGroup(ctx, group, &counters)
			}
		}()
	}

	pendingBytes := make(map[[2]string]int64)
	for batch := range e.scanner.Scan(ctx) {
		groups := e.grouper.Group(ctx, batch)
		for _, group := range groups {
			stats.Scanned += len(group.Segments)
			bucket := [2]string{group.Partition.Org, group.Partition.StreamType}
			for _, seg := range group.Segments {
				pendingBytes[bucket] += seg.Meta.OriginalSize
			}
			select {
			case work <- group:
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(work)
	wg.Wait()

	for bucket, bytes := range pendingBytes {
		e.metrics.PendingBytes.WithLabelValues(bucket[0], bucket[1]).Set(float64(bytes))
	}
	for bucket := range e.reported {
		if _, ok := pendingBytes[bucket]; !ok {
			e.metrics.PendingBytes.WithLabelValues(bucket[0], bucket[1]).Set(0)
		}
	}
	e.reported = make(map[[2]string]struct{}, len(pendingBytes))
	for bucket := range pendingBytes {
		e.reported[bucket] = struct{}{}
	}

	stats.Groups = int(counters.groups.Load())
	stats.MergedFiles = int(counters.mergedFiles.Load())
	stats.MergedBytes = counters.mergedBytes.Load()
	return stats
}

func (e *Engine) processGroup(ctx context.Context, group Group, counters *passCounters) {
	counters.groups.Add(1)
	pk := group.Partition

	decision, schema, err := e.gatekeeper.Check(ctx, pk)
	if err != nil {
		e.log.Warn("retention check failed, retrying next pass", map[string]any{
			"partition": pk.String(),
			"error":     err.Error(),
		})
		e.releaseGroup(group.Segments)
		return
	}
	if decision != DecisionMerge {
		e.log.Info("dropping ineligible partition", map[string]any{
			"partition": pk.String(),
			"reason":    decision.String(),
		})
		e.coordinator.DeleteGroup(ctx, group.Segments, dropReason(decision))
		return
	}

	plan := e.planner.Plan(group, schema.Settings, e.draining.Load())
	for _, seg := range plan.Rejected {
		e.claims.Remove(seg.Key)
	}
	if plan.SkipAll {
		// Too small and not yet stale. Free the claims so the group is
		// reconsidered on the next scan.
		e.releaseGroup(group.Segments)
		return
	}
	if len(plan.Selected) == 0 {
		return
	}

	event, err := e.mergeAndUpload(ctx, pk, plan, schema.Settings)
	if err != nil {
		e.metrics.MergeFailures.WithLabelValues(pk.Org, pk.StreamType).Inc()
		if errors.Is(err, ErrMultiFileOutput) {
			e.log.Error("merge contract violation", map[string]any{
				"partition": pk.String(),
				"error":     err.Error(),
			})
		} else {
			e.log.Warn("merge attempt failed, will retry", map[string]any{
				"partition": pk.String(),
				"error":     err.Error(),
			})
		}
		// Inputs stay claimed until the next pass so nothing else
		// touches them mid-pass; no input was deleted.
		e.markFailed(plan.Selected)
		return
	}

	counters.mergedFiles.Add(1)
	counters.mergedBytes.Add(event.Meta.OriginalSize)
	e.metrics.MergedFiles.WithLabelValues(pk.Org, pk.StreamType).Inc()
	e.metrics.MergedBytes.WithLabelValues(pk.Org, pk.StreamType).Add(float64(event.Meta.OriginalSize))

	notifyObservers(ctx, e.log, e.observers, event)

	// The merged file is durable and recorded, so the inputs may go.
	e.coordinator.DeleteGroup(ctx, plan.Selected, metrics.ReasonMerged)
}

// mergeAndUpload runs the merge, uploads the output, builds the optional
// full-text index and records the file in the file list. The file-list
// record is the authoritative existence signal: it strictly precedes any
// input deletion.
func (e *Engine) mergeAndUpload(ctx context.Context, pk wal.PartitionKey, plan Plan, settings stream.Settings) (MergedFileEvent, error) {
	anchor := plan.Selected[0]
	outPath := filepath.Join(e.cfg.TempDir, uuid.NewString()+e.cfg.Suffix)
	defer os.Remove(outPath)

	inputs := make([]string, len(plan.Selected))
	for i, seg := range plan.Selected {
		inputs[i] = seg.Path
	}

	results, err := e.merger.Merge(ctx, merge.Request{
		Inputs:       inputs,
		Fields:       plan.Fields,
		BloomFields:  plan.BloomFields,
		OutputPath:   outPath,
		OriginalSize: plan.TotalOriginal,
	})
	if err != nil {
		return MergedFileEvent{}, err
	}
	if len(results) != 1 {
		return MergedFileEvent{}, fmt.Errorf("%w: got %d", ErrMultiFileOutput, len(results))
	}

	meta := results[0].Meta
	if meta.Records == 0 || meta.CompressedSize == 0 {
		return MergedFileEvent{}, fmt.Errorf("compactor: empty merge output for %s", pk)
	}

	key := wal.MergedKey(pk, wal.SegmentName(anchor.Key))
	account := e.router.AccountFor(key)
	store := e.router.StoreFor(key)

	f, err := os.Open(results[0].Path)
	if err != nil {
		return MergedFileEvent{}, fmt.Errorf("compactor: open merged file: %w", err)
	}
	err = store.Put(ctx, key, f, meta.CompressedSize, wal.ContentType)
	f.Close()
	if err != nil {
		return MergedFileEvent{}, fmt.Errorf("compactor: upload %s: %w", key, err)
	}

	if e.cfg.IndexEnabled && e.ftsBuilder != nil && indexableStreamType(pk.StreamType) {
		indexFields := indexableFields(settings, plan.Fields)
		if len(indexFields) > 0 {
			rows, err := wal.ReadSegmentRows(results[0].Path)
			if err != nil {
				return MergedFileEvent{}, fmt.Errorf("compactor: reread merged file: %w", err)
			}
			size, err := e.ftsBuilder.Upload(ctx, store, key, rows, indexFields)
			if err != nil {
				return MergedFileEvent{}, err
			}
			meta.IndexSize = size
		}
	}

	if err := e.files.Record(ctx, filelist.Entry{Account: account, Key: key, Meta: meta}); err != nil {
		return MergedFileEvent{}, fmt.Errorf("compactor: record %s: %w", key, err)
	}

	return MergedFileEvent{Account: account, Key: key, Partition: pk, Meta: meta}, nil
}

// indexableStreamType reports whether a stream type gets inverted
// indexes. Only log streams are token searchable; metrics and traces
// are queried by time range and series identity.
func indexableStreamType(streamType string) bool {
	return streamType == "logs"
}

// indexableFields picks the columns fed to the inverted index builder:
// every column when the stream indexes all values, otherwise the stream's
// full-text and index field lists restricted to the merged schema.
func indexableFields(settings stream.Settings, fields []string) []string {
	if settings.IndexAllValues {
		var out []string
		for _, name := range fields {
			if name != wal.TimestampColumn && name != wal.OriginalColumn {
				out = append(out, name)
			}
		}
		return out
	}
	seen := make(map[string]struct{}, len(settings.FullTextSearchFields)+len(settings.IndexFields))
	var want []string
	for _, name := range append(append([]string(nil), settings.FullTextSearchFields...), settings.IndexFields...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		want = append(want, name)
	}
	return intersect(want, fields)
}

func (e *Engine) releaseGroup(segments []Segment) {
	for _, seg := range segments {
		e.claims.Remove(seg.Key)
	}
}

func (e *Engine) markFailed(segments []Segment) {
	e.failedMu.Lock()
	defer e.failedMu.Unlock()
	for _, seg := range segments {
		e.failed = append(e.failed, seg.Key)
	}
}

// releaseFailed frees the claims of last pass's failed groups so this
// pass rediscovers and retries them.
func (e *Engine) releaseFailed() {
	e.failedMu.Lock()
	failed := e.failed
	e.failed = nil
	e.failedMu.Unlock()
	for _, key := range failed {
		e.claims.Remove(key)
	}
}

func dropReason(d Decision) string {
	switch d {
	case DecisionDropExpired:
		return metrics.ReasonRetention
	default:
		return metrics.ReasonStreamGone
	}
}
