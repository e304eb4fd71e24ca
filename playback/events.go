package playback

import "fmt"

type EventKind int

const (
	EventLoaded EventKind = iota
	EventCountdownBeat
	EventStarted
	EventPaused
	EventStopped
	EventEnded
	EventLooped
	EventSeeked
)

var eventNames = [...]string{
	EventLoaded:        "loaded",
	EventCountdownBeat: "countdown",
	EventStarted:       "started",
	EventPaused:        "paused",
	EventStopped:       "stopped",
	EventEnded:         "ended",
	EventLooped:        "looped",
	EventSeeked:        "seeked",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event describes a transport change. Score is the name of the loaded
// score. From and Time are the playhead before and after the change.
type Event struct {
	Kind  EventKind
	Score string
	From  float64
	Time  float64
	Beat  int // countdown beats remaining, counting down to 1
}

// Observer receives events outside the coordinator lock
type Observer func(Event)
