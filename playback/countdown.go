package playback

import (
	"time"

	"github.com/pakholeung37/midi-lab/debug"
)

// startCountdownLocked clicks an accent now and one plain click per beat
// after it, then starts playback one beat after the last click.
func (c *Coordinator) startCountdownLocked() {
	c.status = CountingDown
	c.countdownGen++
	c.countdownLeft = c.preBeats - 1

	c.audio.PlayClick(true)
	c.pending = append(c.pending, Event{Kind: EventCountdownBeat, Score: c.score.Name, Time: c.state.CurrentTime(), Beat: c.preBeats})
	debug.Log("countdown", "start gen=%d beats=%d", c.countdownGen, c.preBeats)
	c.scheduleTickLocked(c.countdownGen)
}

func (c *Coordinator) scheduleTickLocked(gen int) {
	interval := time.Duration(60 / max(1, c.state.BPM()) * float64(time.Second))
	c.countdownTimer = c.timer(interval, func() {
		c.countdownTick(gen)
	})
}

func (c *Coordinator) countdownTick(gen int) {
	c.do(func() {
		// A cancelled countdown may still fire once; its generation is stale
		if gen != c.countdownGen || c.status != CountingDown {
			debug.Log("countdown", "stale tick gen=%d current=%d", gen, c.countdownGen)
			return
		}
		if c.countdownLeft > 0 {
			c.pending = append(c.pending, Event{Kind: EventCountdownBeat, Score: c.score.Name, Time: c.state.CurrentTime(), Beat: c.countdownLeft})
			c.audio.PlayClick(false)
			c.countdownLeft--
			c.scheduleTickLocked(gen)
			return
		}
		c.countdownTimer = nil
		c.startLocked()
	})
}

// cancelCountdownLocked stops a pending tick and invalidates any that
// already fired. It must be called with mu held.
func (c *Coordinator) cancelCountdownLocked() {
	if c.countdownTimer != nil {
		c.countdownTimer.Stop()
		c.countdownTimer = nil
	}
	c.countdownGen++
	c.countdownLeft = 0
	if c.status == CountingDown {
		c.status = Idle
		debug.Log("countdown", "cancelled")
	}
}

// CancelCountdown aborts a running countdown without touching the playhead
func (c *Coordinator) CancelCountdown() {
	c.do(func() {
		if c.status != CountingDown {
			return
		}
		c.cancelCountdownLocked()
		c.queue(EventPaused, c.state.CurrentTime())
	})
}
