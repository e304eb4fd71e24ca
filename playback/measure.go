package playback

import (
	"math"

	"github.com/pakholeung37/midi-lab/score"
)

const (
	// DefaultMeasureDuration applies when a score has no time signature
	DefaultMeasureDuration = 2.0
	seekBackThreshold      = 0.3
)

// Measure arithmetic uses the first time signature and the file tempo,
// so measures stay fixed in score time whatever the playback bpm.

func (c *Coordinator) fileBPMLocked() float64 {
	if c.score == nil || c.score.OriginalBPM <= 0 {
		return score.DefaultBPM
	}
	return c.score.OriginalBPM
}

func (c *Coordinator) measureDurationLocked() float64 {
	if c.score == nil || len(c.score.TimeSignatures) == 0 {
		return DefaultMeasureDuration
	}
	num := c.score.TimeSignatures[0].Numerator
	if num <= 0 {
		return DefaultMeasureDuration
	}
	return 60 / c.fileBPMLocked() * float64(num)
}

func (c *Coordinator) measureTimeRangeLocked(start, end int) (float64, float64, bool) {
	if c.score == nil || len(c.score.TimeSignatures) == 0 {
		return 0, 0, false
	}
	md := c.measureDurationLocked()
	return float64(start-1) * md, math.Min(float64(end)*md, c.score.Duration), true
}

// loopTimeRangeLocked reports the active loop span. An empty span (loop
// starting at or past the end of the score) disables wrapping.
func (c *Coordinator) loopTimeRangeLocked() (float64, float64, bool) {
	if !c.loop.Enabled {
		return 0, 0, false
	}
	start, end, ok := c.measureTimeRangeLocked(c.loop.Start, c.loop.End)
	if !ok || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

// MeasureDuration is the length of one measure in score seconds
func (c *Coordinator) MeasureDuration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.measureDurationLocked()
}

// MeasureTimeRange converts a 1-based measure range to seconds, capped at
// the score duration.
func (c *Coordinator) MeasureTimeRange(start, end int) (float64, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.measureTimeRangeLocked(start, end)
}

// LoopTimeRange returns the loop span in seconds while looping is enabled
func (c *Coordinator) LoopTimeRange() (float64, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loopTimeRangeLocked()
}

func (c *Coordinator) TotalMeasures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.score == nil || len(c.score.TimeSignatures) == 0 {
		return 1
	}
	return int(math.Ceil(c.score.Duration / c.measureDurationLocked()))
}

// CurrentMeasure is the 1-based measure under the playhead
func (c *Coordinator) CurrentMeasure() int {
	t := c.state.CurrentTime()
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(math.Floor(t/c.measureDurationLocked())) + 1
}

// SeekByMeasure jumps to the next measure (dir > 0) or back to the start
// of the current one. Stepping back from within 0.3s of a measure start
// goes to the previous measure instead.
func (c *Coordinator) SeekByMeasure(dir int) {
	c.do(func() {
		md := c.measureDurationLocked()
		t := c.state.CurrentTime()
		measure := math.Floor(t / md)

		target := measure + 1
		if dir < 0 {
			target = measure
			if t-measure*md < seekBackThreshold {
				target = measure - 1
			}
		}
		c.seekLocked(math.Max(0, target*md))
	})
}
