package playback

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pakholeung37/midi-lab/debug"
	"github.com/pakholeung37/midi-lab/score"
	"github.com/pakholeung37/midi-lab/theme"
	"github.com/pakholeung37/midi-lab/theory"
)

type Status int

const (
	Idle Status = iota // stopped or paused
	CountingDown
	Playing
)

func (s Status) String() string {
	switch s {
	case CountingDown:
		return "counting down"
	case Playing:
		return "playing"
	default:
		return "idle"
	}
}

const (
	DefaultPreBeats = 4
	MaxTranspose    = 24
)

// LoopRegion is a 1-based inclusive measure range
type LoopRegion struct {
	Enabled bool
	Start   int
	End     int
}

// Settings is the user-adjustable part of the coordinator, for persisting
type Settings struct {
	Countdown       bool
	PreBeats        int
	Metronome       bool
	Muted           bool
	Volume          float64
	MetronomeVolume float64
	Loop            LoopRegion
	Palette         *theme.Palette
}

// Timer is the handle returned by a TimerFunc
type Timer interface {
	Stop() bool
}

// TimerFunc schedules f after d, like time.AfterFunc
type TimerFunc func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Coordinator)

// WithCountdown enables a pre-roll of preBeats clicks before playback
func WithCountdown(enabled bool, preBeats int) Option {
	return func(c *Coordinator) {
		c.countdown = enabled
		if preBeats > 0 {
			c.preBeats = preBeats
		}
	}
}

func WithMetronome(enabled bool) Option {
	return func(c *Coordinator) {
		c.metronome = enabled
	}
}

func WithLoop(loop LoopRegion) Option {
	return func(c *Coordinator) {
		c.loop = normalizeLoop(loop)
	}
}

// WithTimerFunc replaces time.AfterFunc for countdown ticks
func WithTimerFunc(fn TimerFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.timer = fn
		}
	}
}

// WithIndexOptions tunes the note index built on every load
func WithIndexOptions(opts ...score.IndexOption) Option {
	return func(c *Coordinator) {
		c.indexOpts = append(c.indexOpts, opts...)
	}
}

// WithPalette sets the palette used by Recolor and reported by Settings
func WithPalette(p *theme.Palette) Option {
	return func(c *Coordinator) {
		c.palette = p
	}
}

// Coordinator advances the shared clock every frame, keeps engine keys in
// step with the score and drives audio for note starts, stops and clicks.
type Coordinator struct {
	mu sync.Mutex

	state     *State
	sched     *Scheduler
	audio     Audio
	timer     TimerFunc
	indexOpts []score.IndexOption

	source    *score.Score // as loaded, before transposition
	score     *score.Score
	index     *score.Index
	palette   *theme.Palette
	transpose int
	tonality  theory.Tonality
	inferred  bool

	status      Status
	unsubscribe func()

	countdownGen   int
	countdownTimer Timer
	countdownLeft  int

	countdown       bool
	preBeats        int
	metronome       bool
	muted           bool
	volume          float64
	metronomeVolume float64
	loop            LoopRegion

	sounding map[uint8]int // pitch -> note id started by the engine

	pending      []Event
	observers    map[int]Observer
	nextObserver int
}

func NewCoordinator(state *State, sched *Scheduler, audio Audio, opts ...Option) *Coordinator {
	if audio == nil {
		audio = NopAudio{}
	}
	c := &Coordinator{
		state:           state,
		sched:           sched,
		audio:           audio,
		timer:           afterFunc,
		preBeats:        DefaultPreBeats,
		countdown:       true,
		volume:          0.5,
		metronomeVolume: 0.5,
		loop:            LoopRegion{Start: 1, End: 4},
		sounding:        make(map[uint8]int),
		observers:       make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do runs fn under the lock, then delivers any events it queued
func (c *Coordinator) do(fn func()) {
	c.mu.Lock()
	fn()
	events := c.pending
	c.pending = nil
	var observers []Observer
	if len(events) > 0 {
		ids := make([]int, 0, len(c.observers))
		for id := range c.observers {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			observers = append(observers, c.observers[id])
		}
	}
	c.mu.Unlock()

	for _, ev := range events {
		debug.Log("playback", "event %s from=%.3f time=%.3f", ev.Kind, ev.From, ev.Time)
		for _, o := range observers {
			o(ev)
		}
	}
}

// queue must be called with mu held
func (c *Coordinator) queue(kind EventKind, from float64) {
	ev := Event{Kind: kind, From: from, Time: c.state.CurrentTime()}
	if c.score != nil {
		ev.Score = c.score.Name
	}
	c.pending = append(c.pending, ev)
}

// Observe registers fn for transport events
func (c *Coordinator) Observe(fn Observer) (remove func()) {
	c.mu.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// Load replaces the current score and resets the transport
func (c *Coordinator) Load(s *score.Score) error {
	ix, err := score.NewIndex(s.Notes, c.indexOpts...)
	if err != nil {
		return err
	}

	c.do(func() {
		c.haltLocked()
		c.state.ClearActiveKeys()
		c.source = s
		c.transpose = 0
		c.install(s, ix)

		bpm := s.OriginalBPM
		if bpm <= 0 {
			bpm = score.DefaultBPM
		}
		c.state.SetOriginalBPM(bpm)
		c.state.SetBPM(bpm)
		c.state.SetCurrentTime(0)
		c.queue(EventLoaded, 0)

		debug.Log("playback", "loaded %q notes=%d duration=%.2fs bpm=%.0f", s.Name, ix.Len(), s.Duration, bpm)
	})
	return nil
}

// install must be called with mu held
func (c *Coordinator) install(s *score.Score, ix *score.Index) {
	c.score = s
	c.index = ix
	c.inferred = false
	c.tonality = theory.Tonality{}
	if len(s.KeySignatures) == 0 {
		if t, ok := theory.InferTonality(s.Notes); ok {
			c.tonality = t
			c.inferred = true
			debug.Log("playback", "inferred key %s (confidence %.2f)", t.Name(), t.Confidence)
		}
	}
}

// Recolor rebuilds the score with track colors from p
func (c *Coordinator) Recolor(p *theme.Palette) error {
	c.mu.Lock()
	c.palette = p
	src, semis := c.source, c.transpose
	c.mu.Unlock()
	if src == nil {
		return nil
	}

	recolored := src.Recolor(p)
	next := recolored.Transpose(semis)
	ix, err := score.NewIndex(next.Notes, c.indexOpts...)
	if err != nil {
		return err
	}

	c.do(func() {
		if c.source != src {
			return
		}
		c.source = recolored
		c.score = next
		c.index = ix
	})
	return nil
}

// Transpose shifts the score by delta semitones relative to the current
// transposition, limited to ±MaxTranspose from the loaded pitches.
func (c *Coordinator) Transpose(delta int) error {
	c.mu.Lock()
	src := c.source
	total := c.transpose + delta
	c.mu.Unlock()
	if src == nil {
		return nil
	}
	total = max(-MaxTranspose, min(MaxTranspose, total))

	next := src.Transpose(total)
	ix, err := score.NewIndex(next.Notes, c.indexOpts...)
	if err != nil {
		return err
	}

	c.do(func() {
		if c.source != src {
			return
		}
		for _, p := range c.state.ClearSource(SourceEngine) {
			if !c.muted {
				c.audio.StopNote(p)
			}
		}
		clear(c.sounding)
		c.audio.StopAllNotes()

		c.transpose = total
		c.install(next, ix)
		debug.Log("playback", "transpose %+d notes=%d", total, ix.Len())
	})
	return nil
}

// Play starts playback, through the countdown when enabled. Playing from
// the end restarts at 0.
func (c *Coordinator) Play() {
	c.do(func() {
		if c.score == nil || c.status != Idle {
			return
		}
		if c.state.CurrentTime() >= c.score.Duration {
			c.state.SetCurrentTime(0)
		}
		if c.countdown && c.preBeats > 0 {
			c.startCountdownLocked()
			return
		}
		c.startLocked()
	})
}

// Pause stops the clock where it is. It also cancels a countdown.
func (c *Coordinator) Pause() {
	c.do(func() {
		if c.status == Idle {
			return
		}
		at := c.state.CurrentTime()
		c.haltLocked()
		c.queue(EventPaused, at)
	})
}

// Toggle plays when idle and pauses otherwise
func (c *Coordinator) Toggle() {
	c.mu.Lock()
	idle := c.status == Idle
	c.mu.Unlock()
	if idle {
		c.Play()
	} else {
		c.Pause()
	}
}

// Stop cancels any countdown, pauses and rewinds to 0
func (c *Coordinator) Stop() {
	c.do(func() {
		at := c.state.CurrentTime()
		c.haltLocked()
		c.state.SetCurrentTime(0)
		c.state.ClearActiveKeys()
		c.queue(EventStopped, at)
	})
}

// startLocked must be called with mu held
func (c *Coordinator) startLocked() {
	c.status = Playing
	c.state.SetPlaying(true)
	if c.unsubscribe == nil {
		c.unsubscribe = c.sched.Subscribe(c.onFrame, PriorityPlayback)
	}
	c.queue(EventStarted, c.state.CurrentTime())
}

// haltLocked cancels the countdown, drops engine keys and leaves the
// frame loop. It must be called with mu held.
func (c *Coordinator) haltLocked() {
	c.cancelCountdownLocked()
	c.status = Idle
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	for _, p := range c.state.ClearSource(SourceEngine) {
		if !c.muted {
			c.audio.StopNote(p)
		}
	}
	clear(c.sounding)
	c.audio.StopAllNotes()
	c.state.SetPlaying(false)
}

// releaseLocked clears every active key at a discontinuity
func (c *Coordinator) releaseLocked() {
	c.state.ClearActiveKeys()
	clear(c.sounding)
	c.audio.StopAllNotes()
}

func (c *Coordinator) onFrame(_ time.Time, dt float64) {
	c.do(func() {
		if c.status != Playing || c.score == nil {
			return
		}
		c.advanceLocked(dt)
	})
}

func (c *Coordinator) advanceLocked(dt float64) {
	snap := c.state.Snapshot()
	prev := snap.CurrentTime
	next := prev + dt*snap.BPM/max(1, snap.OriginalBPM)

	if start, end, ok := c.loopTimeRangeLocked(); ok && next >= end {
		c.releaseLocked()
		c.state.SetCurrentTime(start)
		c.queue(EventLooped, next)
		next = start
	}

	if next >= c.score.Duration {
		c.haltLocked()
		c.state.SetCurrentTime(c.score.Duration)
		c.state.ClearActiveKeys()
		c.queue(EventEnded, next)
		return
	}

	c.state.SetCurrentTime(next)
	c.updateActiveKeysLocked(next)
	if c.metronome {
		c.metronomeLocked(prev, next)
	}
	debug.LogEvery(time.Second, "frame", "t=%.3f dt=%.4f keys=%d", next, dt, len(c.sounding))
}

// updateActiveKeysLocked diffs the notes sounding at t against the
// engine's keys. Each pitch follows its latest-starting note, so a new
// note at a held pitch restarts it even with no gap.
func (c *Coordinator) updateActiveKeysLocked(t float64) {
	next := make(map[uint8]score.Note)
	for _, n := range c.index.PointQuery(t) {
		cur, ok := next[n.Pitch]
		if !ok || n.Start > cur.Start || (n.Start == cur.Start && n.ID > cur.ID) {
			next[n.Pitch] = n
		}
	}

	for pitch, id := range c.sounding {
		n, ok := next[pitch]
		if !ok {
			delete(c.sounding, pitch)
			c.state.RemoveActiveKey(pitch, SourceEngine)
			if !c.muted {
				c.audio.StopNote(pitch)
			}
			continue
		}
		if n.ID != id {
			c.sounding[pitch] = n.ID
			c.state.AddActiveKey(engineKey(n))
			if !c.muted {
				c.audio.StopNote(pitch)
				c.audio.PlayNote(pitch, n.Velocity)
			}
		}
	}

	pitches := make([]int, 0, len(next))
	for p := range next {
		if _, ok := c.sounding[p]; !ok {
			pitches = append(pitches, int(p))
		}
	}
	sort.Ints(pitches)
	for _, p := range pitches {
		n := next[uint8(p)]
		c.sounding[n.Pitch] = n.ID
		c.state.AddActiveKey(engineKey(n))
		if !c.muted {
			c.audio.PlayNote(n.Pitch, n.Velocity)
		}
	}
}

func engineKey(n score.Note) ActiveKey {
	return ActiveKey{Pitch: n.Pitch, Velocity: n.Velocity, Source: SourceEngine, Color: n.Color}
}

// metronomeLocked clicks when the clock crosses a beat of the file tempo.
// The downbeat of each measure is accented.
func (c *Coordinator) metronomeLocked(prev, next float64) {
	bd := 60 / c.fileBPMLocked()
	prevBeat := math.Floor(prev / bd)
	beat := math.Floor(next / bd)
	if beat <= prevBeat || beat < 0 {
		return
	}
	num := c.score.TimeSignatureAt(next).Numerator
	if num <= 0 {
		num = 4
	}
	c.audio.PlayClick(int(beat)%num == 0)
}

// Seek moves the playhead, clamped to the score
func (c *Coordinator) Seek(t float64) {
	c.do(func() {
		c.seekLocked(t)
	})
}

func (c *Coordinator) seekLocked(t float64) {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if c.score != nil && t > c.score.Duration {
		t = c.score.Duration
	}
	at := c.state.CurrentTime()
	c.state.SetCurrentTime(t)
	c.releaseLocked()
	c.queue(EventSeeked, at)
}

// SetBPM sets the playback tempo, clamped to 0-240
func (c *Coordinator) SetBPM(bpm float64) {
	c.state.SetBPM(bpm)
}

func (c *Coordinator) BPM() float64 {
	return c.state.BPM()
}

// SetMuted silences note audio. State tracking continues while muted.
func (c *Coordinator) SetMuted(muted bool) {
	c.do(func() {
		if muted && !c.muted {
			c.audio.StopAllNotes()
		}
		c.muted = muted
	})
}

func (c *Coordinator) ToggleMute() {
	c.mu.Lock()
	muted := c.muted
	c.mu.Unlock()
	c.SetMuted(!muted)
}

func (c *Coordinator) SetVolume(v float64) {
	v = clamp01(v)
	c.do(func() {
		c.volume = v
		c.audio.SetVolume(v)
	})
}

func (c *Coordinator) SetMetronomeVolume(v float64) {
	v = clamp01(v)
	c.do(func() {
		c.metronomeVolume = v
		c.audio.SetMetronomeVolume(v)
	})
}

func (c *Coordinator) SetCountdown(enabled bool) {
	c.do(func() {
		c.countdown = enabled
	})
}

func (c *Coordinator) SetMetronome(enabled bool) {
	c.do(func() {
		c.metronome = enabled
	})
}

func (c *Coordinator) SetLoop(enabled bool) {
	c.do(func() {
		c.loop.Enabled = enabled
	})
}

func (c *Coordinator) ToggleLoop() {
	c.do(func() {
		c.loop.Enabled = !c.loop.Enabled
	})
}

// SetLoopRange sets the loop measures; start is at least 1 and end at
// least start.
func (c *Coordinator) SetLoopRange(start, end int) {
	c.do(func() {
		c.loop = normalizeLoop(LoopRegion{Enabled: c.loop.Enabled, Start: start, End: end})
	})
}

func normalizeLoop(l LoopRegion) LoopRegion {
	l.Start = max(1, l.Start)
	l.End = max(l.Start, l.End)
	return l
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Score returns the current (possibly transposed) score
func (c *Coordinator) Score() *score.Score {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.score
}

// Index returns the note index for the current score. It is immutable;
// a later load or transposition replaces it.
func (c *Coordinator) Index() *score.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// TransposeAmount is the current shift in semitones
func (c *Coordinator) TransposeAmount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transpose
}

// Key returns the key at the playhead: the file's signature when it has
// one, otherwise the inferred tonality.
func (c *Coordinator) Key() (score.KeySignature, bool) {
	t := c.state.CurrentTime()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.score == nil {
		return score.KeySignature{}, false
	}
	if len(c.score.KeySignatures) > 0 {
		return theory.KeyAt(c.score.KeySignatures, t)
	}
	if c.inferred {
		return c.tonality.KeySignature(), true
	}
	return score.KeySignature{}, false
}

// Tonality returns the inferred key. ok is false when the file carries
// key signatures or the score is empty.
func (c *Coordinator) Tonality() (theory.Tonality, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tonality, c.inferred
}

func (c *Coordinator) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Settings{
		Countdown:       c.countdown,
		PreBeats:        c.preBeats,
		Metronome:       c.metronome,
		Muted:           c.muted,
		Volume:          c.volume,
		MetronomeVolume: c.metronomeVolume,
		Loop:            c.loop,
		Palette:         c.palette,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
