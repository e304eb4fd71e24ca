package playback

import (
	"sort"
	"sync"
	"time"

	"github.com/pakholeung37/midi-lab/debug"
)

// Frame priorities, lower runs first
const (
	PriorityPlayback = 0
	PriorityAudio    = 10
	PriorityRender   = 20
	PriorityDefault  = 100
)

const DefaultFPS = 60

// FrameFunc receives the frame timestamp and the seconds since the
// previous frame (0 on the first frame after the loop starts).
type FrameFunc func(ts time.Time, dt float64)

type frameSub struct {
	id       int
	priority int
	fn       FrameFunc
}

// Scheduler runs frame callbacks in priority order. The loop runs only
// while at least one callback is subscribed.
type Scheduler struct {
	mu       sync.Mutex
	subs     []frameSub
	nextID   int
	running  bool
	lastTime time.Time
	hasLast  bool

	fps      int
	manual   bool
	stopChan chan struct{}
}

type SchedulerOption func(*Scheduler)

// WithFPS sets the ticker rate
func WithFPS(fps int) SchedulerOption {
	return func(s *Scheduler) {
		if fps > 0 {
			s.fps = fps
		}
	}
}

// WithManualDriver disables the ticker; the host calls Step
func WithManualDriver() SchedulerOption {
	return func(s *Scheduler) {
		s.manual = true
	}
}

func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{fps: DefaultFPS}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe adds fn at priority. Equal priorities run in subscription
// order. The returned function is safe to call more than once.
func (s *Scheduler) Subscribe(fn FrameFunc, priority int) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, frameSub{id: id, priority: priority, fn: fn})
	sort.SliceStable(s.subs, func(i, j int) bool {
		return s.subs[i].priority < s.subs[j].priority
	})
	if !s.running {
		s.start()
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Scheduler) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			break
		}
	}
	if len(s.subs) == 0 && s.running {
		s.stop()
	}
}

// start must be called with mu held
func (s *Scheduler) start() {
	s.running = true
	s.hasLast = false
	debug.Log("sched", "loop start fps=%d manual=%v", s.fps, s.manual)
	if s.manual {
		return
	}
	s.stopChan = make(chan struct{})
	go s.loop(s.stopChan)
}

// stop must be called with mu held. It does not wait for the loop, so
// a callback may unsubscribe itself.
func (s *Scheduler) stop() {
	s.running = false
	s.hasLast = false
	debug.Log("sched", "loop stop")
	if s.stopChan != nil {
		close(s.stopChan)
		s.stopChan = nil
	}
}

func (s *Scheduler) loop(stop chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case ts := <-ticker.C:
			s.step(ts, stop)
		}
	}
}

// Step runs one frame. It is a no-op while nothing is subscribed.
func (s *Scheduler) Step(ts time.Time) {
	s.step(ts, nil)
}

// step ignores ticks from a loop that has since been stopped
func (s *Scheduler) step(ts time.Time, from chan struct{}) {
	s.mu.Lock()
	if !s.running || (from != nil && from != s.stopChan) {
		s.mu.Unlock()
		return
	}
	dt := 0.0
	if s.hasLast {
		dt = ts.Sub(s.lastTime).Seconds()
		if dt < 0 {
			dt = 0
		}
	}
	s.lastTime = ts
	s.hasLast = true
	fns := make([]FrameFunc, len(s.subs))
	for i, sub := range s.subs {
		fns[i] = sub.fn
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ts, dt)
	}
}

// Running reports whether the frame loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Len returns the number of subscribed callbacks
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
