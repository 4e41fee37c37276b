package compactor

import (
	"sort"
	"time"

	"github.com/tessera-io/tessera/internal/stream"
	"github.com/tessera-io/tessera/internal/wal"
)

// Plan is the outcome of selecting a bounded subset of a partition group.
type Plan struct {
	// Selected segments, oldest first. Empty with SkipAll false means
	// nothing merged this pass.
	Selected []Segment

	// Rejected segments stay in the WAL for a later pass; their claims
	// must be released.
	Rejected []Segment

	// SkipAll is set when the whole group is too small to merge and not
	// yet stale. All claims are released and the group retries next scan.
	SkipAll bool

	// Fields is the output schema of the merge: the union of the selected
	// segments' own fields, projected to the stream's defined subset when
	// one is configured.
	Fields []string

	// BloomFields are the configured bloom columns present in Fields.
	BloomFields []string

	// TotalOriginal is the summed original size of the selected segments.
	TotalOriginal int64
}

// PlannerConfig bounds merge selection.
type PlannerConfig struct {
	MaxFileSizeBytes int64
	MinFileSizeBytes int64
	MaxSegmentAge    time.Duration
	FieldLimit       int
}

type candidate struct {
	segment Segment
	fields  []string
}

// Planner selects which of a group's segments merge this pass.
type Planner struct {
	cfg        PlannerConfig
	readFields func(path string) ([]string, error)
	now        func() time.Time
}

// NewPlanner creates a Planner.
func NewPlanner(cfg PlannerConfig) *Planner {
	return &Planner{
		cfg:        cfg,
		readFields: wal.ReadSegmentFields,
		now:        time.Now,
	}
}

// Plan orders the group oldest-first and greedily selects segments while
// the original and compressed sums stay under the max file size and the
// union field count stays under the field limit. Groups below the minimum
// size are skipped entirely unless a segment has sat in the WAL longer
// than the staleness bound, or forceFlush is set (used while draining).
func (p *Planner) Plan(group Group, settings stream.Settings, forceFlush bool) Plan {
	segments := make([]Segment, len(group.Segments))
	copy(segments, group.Segments)
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Meta.MinTs < segments[j].Meta.MinTs
	})

	fieldLimit := settings.FieldLimit
	if fieldLimit == 0 {
		fieldLimit = p.cfg.FieldLimit
	}

	// Segments whose schema cannot be read anymore are treated as already
	// gone and released back for the next scan to sort out.
	var plan Plan
	var candidates []candidate
	var totalOriginal int64
	for _, seg := range segments {
		fields, err := p.readFields(seg.Path)
		if err != nil {
			plan.Rejected = append(plan.Rejected, seg)
			continue
		}
		candidates = append(candidates, candidate{segment: seg, fields: fields})
		totalOriginal += seg.Meta.OriginalSize
	}
	if len(candidates) == 0 {
		return plan
	}

	if !forceFlush && totalOriginal < p.cfg.MinFileSizeBytes &&
		!p.anyStale(candidates) && !overWide(candidates, fieldLimit) {
		plan = Plan{SkipAll: true}
		return plan
	}

	union := make(map[string]struct{})
	var origSum, compSum int64
	for i, c := range candidates {
		meta := c.segment.Meta
		next := unionWith(union, c.fields)
		if origSum+meta.OriginalSize > p.cfg.MaxFileSizeBytes ||
			compSum+meta.CompressedSize > p.cfg.MaxFileSizeBytes ||
			(fieldLimit > 0 && len(next) > fieldLimit) {
			// First violation ends the selection; the rest wait.
			for _, rest := range candidates[i:] {
				plan.Rejected = append(plan.Rejected, rest.segment)
			}
			break
		}
		union = next
		origSum += meta.OriginalSize
		compSum += meta.CompressedSize
		plan.Selected = append(plan.Selected, c.segment)
	}
	plan.TotalOriginal = origSum

	fields := make([]string, 0, len(union))
	for name := range union {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	fields = projectFields(fields, settings.DefinedSchemaFields)
	if !settings.StoreOriginal {
		fields = dropField(fields, wal.OriginalColumn)
	}
	plan.Fields = fields
	plan.BloomFields = intersect(settings.BloomFilterFields, fields)

	return plan
}

// anyStale reports whether any candidate's oldest event predates the
// staleness bound. Footer timestamps are used rather than file mtimes so
// the decision does not depend on local filesystem clocks.
func (p *Planner) anyStale(candidates []candidate) bool {
	if p.cfg.MaxSegmentAge <= 0 {
		return false
	}
	cutoff := p.now().Add(-p.cfg.MaxSegmentAge).UnixMicro()
	for _, c := range candidates {
		if c.segment.Meta.MinTs < cutoff {
			return true
		}
	}
	return false
}

// overWide reports whether the group's union schema already exceeds the
// field limit. Such groups merge now to bound schema width instead of
// waiting to grow past the size threshold.
func overWide(candidates []candidate, fieldLimit int) bool {
	if fieldLimit <= 0 {
		return false
	}
	union := make(map[string]struct{})
	for _, c := range candidates {
		for _, name := range c.fields {
			union[name] = struct{}{}
		}
	}
	return len(union) > fieldLimit
}

func unionWith(union map[string]struct{}, fields []string) map[string]struct{} {
	next := make(map[string]struct{}, len(union)+len(fields))
	for name := range union {
		next[name] = struct{}{}
	}
	for _, name := range fields {
		next[name] = struct{}{}
	}
	return next
}

// projectFields restricts fields to the defined subset when one is set.
// The timestamp column always survives.
func projectFields(fields, defined []string) []string {
	if len(defined) == 0 {
		return fields
	}
	keep := make(map[string]struct{}, len(defined)+1)
	for _, name := range defined {
		keep[name] = struct{}{}
	}
	keep[wal.TimestampColumn] = struct{}{}

	out := fields[:0]
	for _, name := range fields {
		if _, ok := keep[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func dropField(fields []string, name string) []string {
	out := fields[:0]
	for _, f := range fields {
		if f != name {
			out = append(out, f)
		}
	}
	return out
}

func intersect(want, have []string) []string {
	if len(want) == 0 {
		return nil
	}
	present := make(map[string]struct{}, len(have))
	for _, name := range have {
		present[name] = struct{}{}
	}
	var out []string
	for _, name := range want {
		if _, ok := present[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
