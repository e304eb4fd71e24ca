package playback

import (
	"context"
	"sort"
	"sync"

	"github.com/pakholeung37/midi-lab/theme"
)

const (
	MinBPM = 0
	MaxBPM = 240
)

// Source says who pressed a key
type Source int

const (
	SourceEngine Source = iota // scheduled playback
	SourceInput                // live keyboard
)

func (s Source) String() string {
	if s == SourceInput {
		return "input"
	}
	return "engine"
}

// ActiveKey is one sounding pitch as seen by renderers
type ActiveKey struct {
	Pitch    uint8
	Velocity float64
	Source   Source
	Color    theme.RGB
}

// Snapshot is a consistent copy of the transport fields
type Snapshot struct {
	CurrentTime float64
	Playing     bool
	BPM         float64
	OriginalBPM float64
}

// State is the shared playback state. The coordinator writes transport
// fields and engine keys; live input writes input keys from the driver
// goroutine. Subscribers are told that something changed, coalesced to at
// most one call per dispatch.
type State struct {
	mu sync.Mutex

	currentTime float64
	playing     bool
	bpm         float64
	originalBPM float64

	engine map[uint8]ActiveKey
	input  map[uint8]ActiveKey
	merged map[uint8]ActiveKey // replaced, never mutated
	dirty  bool

	listeners map[int]func()
	nextID    int
	pending   bool
	wake      chan struct{}
}

func NewState() *State {
	return &State{
		bpm:         120,
		originalBPM: 120,
		engine:      make(map[uint8]ActiveKey),
		input:       make(map[uint8]ActiveKey),
		merged:      make(map[uint8]ActiveKey),
		listeners:   make(map[int]func()),
		wake:        make(chan struct{}, 1),
	}
}

// Subscribe registers fn for change notifications
func (s *State) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// notify must be called with mu held
func (s *State) notify() {
	if s.pending {
		return
	}
	s.pending = true
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run delivers coalesced notifications until ctx is done
func (s *State) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
			s.Flush()
		}
	}
}

// Flush delivers a pending notification on the calling goroutine
func (s *State) Flush() {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = false
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *State) SetCurrentTime(t float64) {
	if t < 0 || t != t {
		t = 0
	}
	s.mu.Lock()
	s.currentTime = t
	s.notify()
	s.mu.Unlock()
}

func (s *State) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTime
}

func (s *State) SetPlaying(playing bool) {
	s.mu.Lock()
	s.playing = playing
	s.notify()
	s.mu.Unlock()
}

func (s *State) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SetBPM clamps to 0-240. Readers poll tempo, so no notification.
func (s *State) SetBPM(bpm float64) {
	s.mu.Lock()
	s.bpm = clampBPM(bpm)
	s.mu.Unlock()
}

func (s *State) BPM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

func (s *State) SetOriginalBPM(bpm float64) {
	s.mu.Lock()
	s.originalBPM = bpm
	s.mu.Unlock()
}

func (s *State) OriginalBPM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.originalBPM
}

// TempoRatio is playback speed relative to the file tempo
func (s *State) TempoRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm / max(1, s.originalBPM)
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		CurrentTime: s.currentTime,
		Playing:     s.playing,
		BPM:         s.bpm,
		OriginalBPM: s.originalBPM,
	}
}

func (s *State) owned(src Source) map[uint8]ActiveKey {
	if src == SourceInput {
		return s.input
	}
	return s.engine
}

// AddActiveKey presses key.Pitch for key.Source, replacing any earlier
// press of that pitch from the same source.
func (s *State) AddActiveKey(key ActiveKey) {
	s.mu.Lock()
	s.owned(key.Source)[key.Pitch] = key
	s.dirty = true
	s.notify()
	s.mu.Unlock()
}

// RemoveActiveKey releases pitch from the given sources, or from every
// source when none are given.
func (s *State) RemoveActiveKey(pitch uint8, sources ...Source) {
	if len(sources) == 0 {
		sources = []Source{SourceEngine, SourceInput}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, src := range sources {
		m := s.owned(src)
		if _, ok := m[pitch]; ok {
			delete(m, pitch)
			changed = true
		}
	}
	if changed {
		s.dirty = true
		s.notify()
	}
}

// ClearActiveKeys releases everything from both sources
func (s *State) ClearActiveKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.engine) == 0 && len(s.input) == 0 {
		return
	}
	s.engine = make(map[uint8]ActiveKey)
	s.input = make(map[uint8]ActiveKey)
	s.dirty = true
	s.notify()
}

// ClearSource releases every key held by src and returns their pitches
func (s *State) ClearSource(src Source) []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.owned(src)
	if len(m) == 0 {
		return nil
	}
	pitches := make([]uint8, 0, len(m))
	for p := range m {
		pitches = append(pitches, p)
	}
	sort.Slice(pitches, func(i, j int) bool { return pitches[i] < pitches[j] })

	if src == SourceInput {
		s.input = make(map[uint8]ActiveKey)
	} else {
		s.engine = make(map[uint8]ActiveKey)
	}
	s.dirty = true
	s.notify()
	return pitches
}

// ActiveKeys returns the merged view; input wins over engine on the same
// pitch. The map is shared and must not be modified.
func (s *State) ActiveKeys() map[uint8]ActiveKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		merged := make(map[uint8]ActiveKey, len(s.engine)+len(s.input))
		for p, k := range s.engine {
			merged[p] = k
		}
		for p, k := range s.input {
			merged[p] = k
		}
		s.merged = merged
		s.dirty = false
	}
	return s.merged
}

// ActivePitches returns the merged pitches in ascending order
func (s *State) ActivePitches() []uint8 {
	keys := s.ActiveKeys()
	out := make([]uint8, 0, len(keys))
	for p := range keys {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *State) IsKeyActive(pitch uint8) bool {
	_, ok := s.ActiveKeys()[pitch]
	return ok
}

// HasEngineKey reports whether playback holds pitch
func (s *State) HasEngineKey(pitch uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.engine[pitch]
	return ok
}

func clampBPM(bpm float64) float64 {
	if bpm != bpm || bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}
