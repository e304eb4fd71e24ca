package playback

import (
	"testing"
	"time"
)

func TestSchedulerPriorityOrder(t *testing.T) {
	s := NewScheduler(WithManualDriver())
	var order []string

	s.Subscribe(func(time.Time, float64) { order = append(order, "render") }, PriorityRender)
	s.Subscribe(func(time.Time, float64) { order = append(order, "default") }, PriorityDefault)
	s.Subscribe(func(time.Time, float64) { order = append(order, "playback") }, PriorityPlayback)
	s.Subscribe(func(time.Time, float64) { order = append(order, "audio") }, PriorityAudio)
	s.Subscribe(func(time.Time, float64) { order = append(order, "render2") }, PriorityRender)

	s.Step(time.Unix(0, 0))

	want := []string{"playback", "audio", "render", "render2", "default"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSchedulerDeltaTime(t *testing.T) {
	s := NewScheduler(WithManualDriver())
	var dts []float64
	unsub := s.Subscribe(func(_ time.Time, dt float64) { dts = append(dts, dt) }, PriorityDefault)

	base := time.Unix(100, 0)
	s.Step(base)
	s.Step(base.Add(16 * time.Millisecond))
	s.Step(base.Add(48 * time.Millisecond))

	if len(dts) != 3 || dts[0] != 0 || dts[1] != 0.016 || dts[2] != 0.032 {
		t.Fatalf("dts = %v, want [0 0.016 0.032]", dts)
	}

	// Restarting the loop resets the first-frame delta
	unsub()
	s.Subscribe(func(_ time.Time, dt float64) { dts = append(dts, dt) }, PriorityDefault)
	s.Step(base.Add(time.Second))
	if dts[len(dts)-1] != 0 {
		t.Fatalf("first dt after restart = %v, want 0", dts[len(dts)-1])
	}
}

func TestSchedulerRefCounting(t *testing.T) {
	s := NewScheduler(WithManualDriver())
	if s.Running() {
		t.Fatal("scheduler running with no subscribers")
	}

	calls := 0
	a := s.Subscribe(func(time.Time, float64) { calls++ }, PriorityDefault)
	b := s.Subscribe(func(time.Time, float64) { calls++ }, PriorityDefault)
	if !s.Running() || s.Len() != 2 {
		t.Fatalf("running=%v len=%d after two subscriptions", s.Running(), s.Len())
	}

	a()
	a()
	if !s.Running() || s.Len() != 1 {
		t.Fatalf("double unsubscribe removed too much: running=%v len=%d", s.Running(), s.Len())
	}

	b()
	if s.Running() {
		t.Fatal("scheduler still running after last unsubscribe")
	}
	s.Step(time.Now())
	if calls != 0 {
		t.Fatalf("step ran %d callbacks while stopped", calls)
	}
}

func TestSchedulerUnsubscribeFromCallback(t *testing.T) {
	s := NewScheduler(WithManualDriver())
	calls := 0
	var unsub func()
	unsub = s.Subscribe(func(time.Time, float64) {
		calls++
		unsub()
	}, PriorityDefault)

	s.Step(time.Unix(0, 0))
	s.Step(time.Unix(1, 0))
	if calls != 1 {
		t.Fatalf("callback ran %d times, want 1", calls)
	}
	if s.Running() {
		t.Fatal("scheduler running after self-unsubscribe")
	}
}

func TestSchedulerTicker(t *testing.T) {
	s := NewScheduler(WithFPS(200))
	frames := make(chan float64, 16)
	unsub := s.Subscribe(func(_ time.Time, dt float64) {
		select {
		case frames <- dt:
		default:
		}
	}, PriorityDefault)
	defer unsub()

	deadline := time.After(2 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case <-frames:
		case <-deadline:
			t.Fatalf("got %d frames before timeout, want 3", i)
		}
	}
}
