package midi

import "fmt"

// NoteEvent is sent when a note is played on a keyboard
type NoteEvent struct {
	Note     uint8
	Velocity uint8 // 0 = note off
	Channel  uint8
}

// Off reports whether the event releases the note
func (e NoteEvent) Off() bool {
	return e.Velocity == 0
}

func (e NoteEvent) String() string {
	if e.Off() {
		return fmt.Sprintf("ch%d note off %d", e.Channel+1, e.Note)
	}
	return fmt.Sprintf("ch%d note on  %d vel=%d", e.Channel+1, e.Note, e.Velocity)
}
