package audio

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/pakholeung37/midi-lab/debug"
)

const (
	drumChannel = 9  // General MIDI percussion
	accentKey   = 76 // Hi Wood Block
	clickKey    = 77 // Low Wood Block

	ccVolume       = 7
	ccAllNotesOff  = 123
	defaultChannel = 0
)

// MIDIOut sends playback to an external MIDI port. It implements
// playback.Audio.
type MIDIOut struct {
	mu          sync.Mutex
	send        func(msg gomidi.Message) error
	channel     uint8
	clickVolume float64
	held        map[uint8]bool
}

// OpenMIDIOut connects to the first output port whose name contains name
// (case-insensitive). Channel is 0-based.
func OpenMIDIOut(name string, channel uint8) (*MIDIOut, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, port := range gomidi.GetOutPorts() {
		if want != "" && !strings.Contains(strings.ToLower(port.String()), want) {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.WithDesc("open output "+port.String(), "Could not open MIDI output "+port.String()+"."))
		}
		debug.Log("audio", "midi out %s ch=%d", port.String(), channel+1)
		return newMIDIOut(send, channel), nil
	}
	return nil, fault.New("no output port matching "+name, fmsg.WithDesc("no matching port", "No MIDI output matches \""+name+"\". Run `midi-lab ports` to list them."))
}

func newMIDIOut(send func(msg gomidi.Message) error, channel uint8) *MIDIOut {
	if channel > 15 {
		channel = defaultChannel
	}
	return &MIDIOut{
		send:        send,
		channel:     channel,
		clickVolume: 0.5,
		held:        make(map[uint8]bool),
	}
}

// sendLocked must be called with mu held
func (m *MIDIOut) sendLocked(msg gomidi.Message) {
	if err := m.send(msg); err != nil {
		debug.Log("audio", "midi send %v: %v", msg, err)
	}
}

func (m *MIDIOut) PlayNote(pitch uint8, velocity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendLocked(gomidi.NoteOn(m.channel, pitch, toVelocity(velocity)))
	m.held[pitch] = true
}

func (m *MIDIOut) StopNote(pitch uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendLocked(gomidi.NoteOff(m.channel, pitch))
	delete(m.held, pitch)
}

// StopAllNotes releases every note this output started, then sends All
// Notes Off for receivers that ignore stray note offs.
func (m *MIDIOut) StopAllNotes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	pitches := make([]int, 0, len(m.held))
	for p := range m.held {
		pitches = append(pitches, int(p))
	}
	sort.Ints(pitches)
	for _, p := range pitches {
		m.sendLocked(gomidi.NoteOff(m.channel, uint8(p)))
	}
	clear(m.held)
	m.sendLocked(gomidi.ControlChange(m.channel, ccAllNotesOff, 0))
}

func (m *MIDIOut) PlayClick(accent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := uint8(clickKey)
	if accent {
		key = accentKey
	}
	m.sendLocked(gomidi.NoteOn(drumChannel, key, toVelocity(m.clickVolume)))
	m.sendLocked(gomidi.NoteOff(drumChannel, key))
}

// SetVolume maps to channel volume (CC 7)
func (m *MIDIOut) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendLocked(gomidi.ControlChange(m.channel, ccVolume, uint8(math.Round(clamp01(v)*127))))
}

// SetMetronomeVolume scales click velocity
func (m *MIDIOut) SetMetronomeVolume(v float64) {
	m.mu.Lock()
	m.clickVolume = clamp01(v)
	m.mu.Unlock()
}

// toVelocity maps 0-1 to a MIDI velocity of at least 1
func toVelocity(v float64) uint8 {
	vel := uint8(math.Round(clamp01(v) * 127))
	if vel == 0 {
		vel = 1
	}
	return vel
}
