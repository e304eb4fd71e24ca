package stats

import (
	"sync"
	"time"

	"github.com/pakholeung37/midi-lab/debug"
	"github.com/pakholeung37/midi-lab/playback"
)

// Tracker turns coordinator events into recorded runs. A run opens on
// the first start of a score and closes when playback ends, stops, or
// another score loads. Pausing keeps it open.
type Tracker struct {
	mu    sync.Mutex
	store Storage
	now   func() time.Time

	open     bool
	playing  bool
	name     string
	segStart float64
	seconds  float64
}

func NewTracker(store Storage) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Observe is a playback.Observer
func (t *Tracker) Observe(ev playback.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Kind {
	case playback.EventStarted:
		if !t.open || t.name != ev.Score {
			t.finishLocked(false)
			t.open = true
			t.name = ev.Score
			t.seconds = 0
		}
		t.playing = true
		t.segStart = ev.Time
	case playback.EventPaused:
		t.closeSegmentLocked(ev.From)
		t.playing = false
	case playback.EventSeeked, playback.EventLooped:
		if t.playing {
			t.closeSegmentLocked(ev.From)
			t.playing = true
			t.segStart = ev.Time
		}
	case playback.EventEnded:
		t.closeSegmentLocked(ev.Time)
		t.finishLocked(true)
	case playback.EventStopped:
		t.closeSegmentLocked(ev.From)
		t.finishLocked(false)
	case playback.EventLoaded:
		t.finishLocked(false)
	}
}

func (t *Tracker) closeSegmentLocked(at float64) {
	if !t.playing {
		return
	}
	if d := at - t.segStart; d > 0 {
		t.seconds += d
	}
	t.playing = false
}

func (t *Tracker) finishLocked(completed bool) {
	if !t.open {
		return
	}
	t.open = false
	t.playing = false
	if _, err := RecordRun(t.store, t.name, completed, t.seconds, t.now()); err != nil {
		debug.Log("stats", "record %q: %v", t.name, err)
		return
	}
	debug.Log("stats", "recorded %q completed=%v seconds=%.1f", t.name, completed, t.seconds)
}

// Close records a run still open as incomplete
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishLocked(false)
}
