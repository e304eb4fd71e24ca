package playback

import (
	"context"

	"github.com/pakholeung37/midi-lab/debug"
	"github.com/pakholeung37/midi-lab/theme"
)

// Session bundles one playback engine: shared state, frame scheduler and
// coordinator. Hosts pass it by reference.
type Session struct {
	State       *State
	Scheduler   *Scheduler
	Coordinator *Coordinator

	audio      Audio
	thru       bool
	inputColor theme.RGB
}

type sessionConfig struct {
	schedOpts []SchedulerOption
	coordOpts []Option
	thru      bool
	color     theme.RGB
}

type SessionOption func(*sessionConfig)

func WithSchedulerOptions(opts ...SchedulerOption) SessionOption {
	return func(c *sessionConfig) {
		c.schedOpts = append(c.schedOpts, opts...)
	}
}

func WithCoordinatorOptions(opts ...Option) SessionOption {
	return func(c *sessionConfig) {
		c.coordOpts = append(c.coordOpts, opts...)
	}
}

// WithThru echoes live input to the audio output
func WithThru(enabled bool) SessionOption {
	return func(c *sessionConfig) {
		c.thru = enabled
	}
}

// WithInputColor sets the color of keys pressed on a live keyboard
func WithInputColor(color theme.RGB) SessionOption {
	return func(c *sessionConfig) {
		c.color = color
	}
}

func NewSession(audio Audio, opts ...SessionOption) *Session {
	if audio == nil {
		audio = NopAudio{}
	}
	cfg := sessionConfig{color: theme.RGB{0xff, 0xff, 0xff}}
	for _, opt := range opts {
		opt(&cfg)
	}

	state := NewState()
	sched := NewScheduler(cfg.schedOpts...)
	return &Session{
		State:       state,
		Scheduler:   sched,
		Coordinator: NewCoordinator(state, sched, audio, cfg.coordOpts...),
		audio:       audio,
		thru:        cfg.thru,
		inputColor:  cfg.color,
	}
}

// Run dispatches state notifications until ctx is done
func (s *Session) Run(ctx context.Context) error {
	return s.State.Run(ctx)
}

// HandleNote routes a live keyboard note. Velocity 0 is a note off.
func (s *Session) HandleNote(note, velocity uint8) {
	if note > 127 {
		return
	}
	if velocity == 0 {
		s.State.RemoveActiveKey(note, SourceInput)
		if s.thru {
			s.audio.StopNote(note)
		}
		return
	}

	v := float64(velocity) / 127
	s.State.AddActiveKey(ActiveKey{
		Pitch:    note,
		Velocity: v,
		Source:   SourceInput,
		Color:    s.inputColor,
	})
	if s.thru {
		s.audio.PlayNote(note, v)
	}
	debug.Log("input", "note=%d vel=%d thru=%v", note, velocity, s.thru)
}

// Close stops playback and silences audio
func (s *Session) Close() {
	s.Coordinator.Stop()
	s.audio.StopAllNotes()
}
