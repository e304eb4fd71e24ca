package audio

import "github.com/pakholeung37/midi-lab/playback"

// Multi fans every call out to several outputs, e.g. the synth and a
// MIDI port at once.
type Multi []playback.Audio

func (m Multi) PlayNote(pitch uint8, velocity float64) {
	for _, a := range m {
		a.PlayNote(pitch, velocity)
	}
}

func (m Multi) StopNote(pitch uint8) {
	for _, a := range m {
		a.StopNote(pitch)
	}
}

func (m Multi) StopAllNotes() {
	for _, a := range m {
		a.StopAllNotes()
	}
}

func (m Multi) PlayClick(accent bool) {
	for _, a := range m {
		a.PlayClick(accent)
	}
}

func (m Multi) SetVolume(v float64) {
	for _, a := range m {
		a.SetVolume(v)
	}
}

func (m Multi) SetMetronomeVolume(v float64) {
	for _, a := range m {
		a.SetMetronomeVolume(v)
	}
}

var (
	_ playback.Audio = (*Synth)(nil)
	_ playback.Audio = (*MIDIOut)(nil)
	_ playback.Audio = Multi(nil)
)
