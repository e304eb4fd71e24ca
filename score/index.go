package score

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"github.com/pakholeung37/midi-lab/debug"
)

const (
	DefaultBucketSize      = 0.5
	DefaultMaxNoteDuration = 10.0
)

// ErrMalformedNote is returned when a note cannot be indexed
var ErrMalformedNote = errors.New("malformed note")

// Index answers "what overlaps [t0,t1]" and "what sounds at t" over an
// immutable set of notes. Build a new Index when the notes change.
type Index struct {
	sorted     []Note
	buckets    map[int][]int // bucket -> indices into sorted
	bucketSize float64
	lookback   float64
	maxEnd     float64
}

type indexConfig struct {
	bucketSize      float64
	maxNoteDuration float64
}

type IndexOption func(*indexConfig)

// WithBucketSize sets the bucket width in seconds
func WithBucketSize(seconds float64) IndexOption {
	return func(c *indexConfig) {
		if seconds > 0 && !math.IsInf(seconds, 0) {
			c.bucketSize = seconds
		}
	}
}

// WithMaxNoteDuration sets the minimum point-query lookback in seconds.
// The index raises it to the longest note it holds.
func WithMaxNoteDuration(seconds float64) IndexOption {
	return func(c *indexConfig) {
		if seconds > 0 && !math.IsInf(seconds, 0) {
			c.maxNoteDuration = seconds
		}
	}
}

// NewIndex validates and indexes notes. The input slice is not retained.
func NewIndex(notes []Note, opts ...IndexOption) (*Index, error) {
	cfg := indexConfig{
		bucketSize:      DefaultBucketSize,
		maxNoteDuration: DefaultMaxNoteDuration,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ids := make(map[int]struct{}, len(notes))
	var longest float64
	for _, n := range notes {
		if err := validate(n); err != nil {
			return nil, fault.Wrap(err, fmsg.With("build note index"))
		}
		if _, dup := ids[n.ID]; dup {
			return nil, fault.Wrap(fmt.Errorf("%w: duplicate id %d", ErrMalformedNote, n.ID), fmsg.With("build note index"))
		}
		ids[n.ID] = struct{}{}
		if n.Duration > longest {
			longest = n.Duration
		}
	}

	ix := &Index{
		sorted:     make([]Note, len(notes)),
		buckets:    make(map[int][]int),
		bucketSize: cfg.bucketSize,
		lookback:   cfg.maxNoteDuration,
	}
	copy(ix.sorted, notes)
	sortNotes(ix.sorted)

	if longest > ix.lookback {
		debug.Log("index", "raising lookback %.2fs -> %.2fs for longest note", ix.lookback, longest)
		ix.lookback = longest
	}

	for i, n := range ix.sorted {
		first := ix.bucket(n.Start)
		last := ix.bucket(n.End())
		for b := first; b <= last; b++ {
			ix.buckets[b] = append(ix.buckets[b], i)
		}
		if n.End() > ix.maxEnd {
			ix.maxEnd = n.End()
		}
	}

	debug.Log("index", "built: notes=%d buckets=%d bucket=%.2fs lookback=%.2fs",
		len(ix.sorted), len(ix.buckets), ix.bucketSize, ix.lookback)
	return ix, nil
}

func validate(n Note) error {
	switch {
	case math.IsNaN(n.Start) || math.IsInf(n.Start, 0) || n.Start < 0:
		return fmt.Errorf("%w: id %d has start %v", ErrMalformedNote, n.ID, n.Start)
	case math.IsNaN(n.Duration) || math.IsInf(n.Duration, 0) || n.Duration <= 0:
		return fmt.Errorf("%w: id %d has duration %v", ErrMalformedNote, n.ID, n.Duration)
	case math.IsNaN(n.Velocity) || n.Velocity < 0 || n.Velocity > 1:
		return fmt.Errorf("%w: id %d has velocity %v", ErrMalformedNote, n.ID, n.Velocity)
	case n.Pitch > 127:
		return fmt.Errorf("%w: id %d has pitch %d", ErrMalformedNote, n.ID, n.Pitch)
	}
	return nil
}

func sortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].ID < notes[j].ID
	})
}

func (ix *Index) bucket(t float64) int {
	return int(math.Floor(t / ix.bucketSize))
}

// RangeQuery returns notes with End >= t0 and Start <= t1, ordered by
// start time. An inverted or NaN range yields nothing.
func (ix *Index) RangeQuery(t0, t1 float64) []Note {
	if len(ix.sorted) == 0 || math.IsNaN(t0) || math.IsNaN(t1) || t0 > t1 {
		return nil
	}
	if t1 < 0 || t0 > ix.maxEnd {
		return nil
	}
	// Clamp the scanned span to populated buckets so the loop stays finite
	first := ix.bucket(math.Max(t0, 0))
	last := ix.bucket(math.Min(t1, ix.maxEnd))

	var hits []int
	for b := first; b <= last; b++ {
		for _, i := range ix.buckets[b] {
			n := ix.sorted[i]
			if n.End() >= t0 && n.Start <= t1 {
				hits = append(hits, i)
			}
		}
	}
	if len(hits) == 0 {
		return nil
	}

	sort.Ints(hits)
	out := make([]Note, 0, len(hits))
	prev := -1
	for _, i := range hits {
		if i == prev {
			continue
		}
		prev = i
		out = append(out, ix.sorted[i])
	}
	return out
}

// PointQuery returns notes sounding at t (Start <= t < End)
func (ix *Index) PointQuery(t float64) []Note {
	n := len(ix.sorted)
	if n == 0 || math.IsNaN(t) {
		return nil
	}

	// Lower bound on End >= t. Ends are not sorted, so this only places
	// a cursor; the lookback walk below makes the result exact.
	lo, hi := 0, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		if ix.sorted[mid].End() < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	limit := t - ix.lookback
	for lo > 0 && ix.sorted[lo].Start > limit {
		lo--
	}

	var out []Note
	for i := lo; i < n && ix.sorted[i].Start <= t; i++ {
		if t < ix.sorted[i].End() {
			out = append(out, ix.sorted[i])
		}
	}
	return out
}

// Notes returns the time-sorted notes. Callers must not modify it.
func (ix *Index) Notes() []Note {
	return ix.sorted
}

func (ix *Index) Len() int {
	return len(ix.sorted)
}

func (ix *Index) BucketSize() float64 {
	return ix.bucketSize
}

// Lookback is the effective point-query lookback in seconds
func (ix *Index) Lookback() float64 {
	return ix.lookback
}
