package playback

import (
	"context"
	"testing"
	"time"

	"github.com/pakholeung37/midi-lab/theme"
)

func TestStateCoalescesNotifications(t *testing.T) {
	s := NewState()
	calls := 0
	s.Subscribe(func() { calls++ })

	s.SetCurrentTime(1)
	s.SetCurrentTime(2)
	s.SetPlaying(true)
	s.AddActiveKey(ActiveKey{Pitch: 60, Source: SourceEngine})
	s.Flush()
	if calls != 1 {
		t.Fatalf("listener called %d times for one batch, want 1", calls)
	}

	s.Flush()
	if calls != 1 {
		t.Fatalf("flush without changes notified again")
	}
}

func TestStateTempoDoesNotNotify(t *testing.T) {
	s := NewState()
	calls := 0
	s.Subscribe(func() { calls++ })

	s.SetBPM(90)
	s.SetOriginalBPM(180)
	s.Flush()
	if calls != 0 {
		t.Fatalf("tempo change notified %d times", calls)
	}
	if got := s.TempoRatio(); got != 0.5 {
		t.Fatalf("tempo ratio = %v, want 0.5", got)
	}
}

func TestStateClamps(t *testing.T) {
	s := NewState()
	s.SetBPM(500)
	if s.BPM() != MaxBPM {
		t.Errorf("bpm = %v, want %v", s.BPM(), MaxBPM)
	}
	s.SetBPM(-3)
	if s.BPM() != MinBPM {
		t.Errorf("bpm = %v, want %v", s.BPM(), MinBPM)
	}
	s.SetCurrentTime(-1)
	if s.CurrentTime() != 0 {
		t.Errorf("current time = %v, want 0", s.CurrentTime())
	}
	s.SetOriginalBPM(0)
	if got := s.TempoRatio(); got != 0 {
		t.Errorf("tempo ratio with zero bpm = %v", got)
	}
}

func TestStateMergedKeys(t *testing.T) {
	s := NewState()
	red := theme.RGB{255, 0, 0}
	white := theme.RGB{255, 255, 255}

	s.AddActiveKey(ActiveKey{Pitch: 60, Velocity: 0.5, Source: SourceEngine, Color: red})
	s.AddActiveKey(ActiveKey{Pitch: 64, Velocity: 0.5, Source: SourceEngine, Color: red})
	s.AddActiveKey(ActiveKey{Pitch: 60, Velocity: 0.9, Source: SourceInput, Color: white})

	before := s.ActiveKeys()
	if len(before) != 2 {
		t.Fatalf("merged keys = %d, want 2", len(before))
	}
	if before[60].Source != SourceInput || before[60].Color != white {
		t.Fatalf("input should win on collision, got %+v", before[60])
	}

	s.RemoveActiveKey(60, SourceInput)
	after := s.ActiveKeys()
	if after[60].Source != SourceEngine {
		t.Fatalf("engine key should show after input release, got %+v", after[60])
	}
	if before[60].Source != SourceInput {
		t.Fatal("earlier merged view was mutated")
	}

	s.RemoveActiveKey(60)
	if s.IsKeyActive(60) || s.HasEngineKey(60) {
		t.Fatal("RemoveActiveKey without source left the key")
	}
	if !s.HasEngineKey(64) {
		t.Fatal("unrelated engine key removed")
	}
}

func TestStateClearSource(t *testing.T) {
	s := NewState()
	s.AddActiveKey(ActiveKey{Pitch: 67, Source: SourceEngine})
	s.AddActiveKey(ActiveKey{Pitch: 60, Source: SourceEngine})
	s.AddActiveKey(ActiveKey{Pitch: 72, Source: SourceInput})

	got := s.ClearSource(SourceEngine)
	if len(got) != 2 || got[0] != 60 || got[1] != 67 {
		t.Fatalf("cleared pitches = %v, want [60 67]", got)
	}
	if pitches := s.ActivePitches(); len(pitches) != 1 || pitches[0] != 72 {
		t.Fatalf("remaining = %v, want [72]", pitches)
	}

	s.ClearActiveKeys()
	if len(s.ActiveKeys()) != 0 {
		t.Fatal("ClearActiveKeys left keys behind")
	}
}

func TestStateUnsubscribe(t *testing.T) {
	s := NewState()
	calls := 0
	unsub := s.Subscribe(func() { calls++ })
	unsub()
	unsub()

	s.SetPlaying(true)
	s.Flush()
	if calls != 0 {
		t.Fatalf("unsubscribed listener called %d times", calls)
	}
}

func TestStateRunDelivers(t *testing.T) {
	s := NewState()
	got := make(chan struct{}, 4)
	s.Subscribe(func() { got <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.SetCurrentTime(3)
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not deliver a notification")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
