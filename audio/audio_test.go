package audio

import (
	"encoding/binary"
	"math"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
)

type mockSynth struct {
	noteOns  [][3]int32
	noteOffs [][2]int32
	messages [][4]int32
	renders  int
	level    float32
}

func (m *mockSynth) ProcessMidiMessage(ch, cmd, d1, d2 int32) {
	m.messages = append(m.messages, [4]int32{ch, cmd, d1, d2})
}
func (m *mockSynth) NoteOn(ch, key, vel int32) { m.noteOns = append(m.noteOns, [3]int32{ch, key, vel}) }
func (m *mockSynth) NoteOff(ch, key int32)     { m.noteOffs = append(m.noteOffs, [2]int32{ch, key}) }
func (m *mockSynth) Render(left, right []float32) {
	m.renders++
	for i := range left {
		left[i] = m.level
		right[i] = m.level
	}
}

func TestSynthNotes(t *testing.T) {
	mock := &mockSynth{}
	s := newSynth(mock)

	s.PlayNote(60, 1)
	s.PlayNote(62, 0)
	s.StopNote(60)
	s.StopAllNotes()

	if len(mock.noteOns) != 2 || mock.noteOns[0] != [3]int32{0, 60, 127} || mock.noteOns[1] != [3]int32{0, 62, 1} {
		t.Fatalf("note ons = %v", mock.noteOns)
	}
	if len(mock.noteOffs) != 1 || mock.noteOffs[0] != [2]int32{0, 60} {
		t.Fatalf("note offs = %v", mock.noteOffs)
	}
	if len(mock.messages) != 1 || mock.messages[0] != [4]int32{0, 0xB0, 123, 0} {
		t.Fatalf("messages = %v", mock.messages)
	}
}

func TestSynthProcessVolume(t *testing.T) {
	mock := &mockSynth{level: 0.8}
	s := newSynth(mock)
	s.SetVolume(0.25)

	dst := make([]float32, 2*(block+100))
	s.Process(dst)
	if mock.renders != 2 {
		t.Fatalf("renders = %d, want 2 blocks", mock.renders)
	}
	for i, v := range dst {
		if math.Abs(float64(v)-0.2) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.2", i, v)
		}
	}
}

func TestSynthClick(t *testing.T) {
	mock := &mockSynth{}
	s := newSynth(mock)
	s.SetMetronomeVolume(1)
	s.PlayClick(true)

	dst := make([]float32, 2*SampleRate/10)
	s.Process(dst)

	var peak float64
	for _, v := range dst[:2*int(clickSeconds*SampleRate)] {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak < 0.1 {
		t.Fatalf("click peak = %v, want audible", peak)
	}
	tail := dst[2*int(clickSeconds*SampleRate):]
	for i, v := range tail {
		if v != 0 {
			t.Fatalf("tail sample %d = %v after the click ended", i, v)
		}
	}
	if len(s.clicks) != 0 {
		t.Fatal("finished click voice kept")
	}

	s.SetMetronomeVolume(0)
	s.PlayClick(false)
	s.Process(dst)
	for _, v := range dst {
		if v != 0 {
			t.Fatal("muted metronome produced sound")
		}
	}
}

type constSource float32

func (c constSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = float32(c)
	}
}

func TestStreamReader(t *testing.T) {
	r := NewStreamReader(constSource(0.5))

	p := make([]byte, 8*3+5)
	n, err := r.Read(p)
	if err != nil || n != 24 {
		t.Fatalf("Read = %d, %v; want 24, nil", n, err)
	}
	for i := 0; i < 6; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if v != 0.5 {
			t.Fatalf("sample %d = %v", i, v)
		}
	}

	if n, _ := r.Read(make([]byte, 7)); n != 0 {
		t.Fatalf("short read = %d, want 0", n)
	}
}

func TestMIDIOut(t *testing.T) {
	var sent []gomidi.Message
	m := newMIDIOut(func(msg gomidi.Message) error {
		sent = append(sent, msg)
		return nil
	}, 3)

	m.PlayNote(60, 1)
	m.PlayNote(64, 0.5)
	m.StopNote(60)
	m.StopAllNotes()

	var ch, key, vel, cc, val uint8
	if !sent[0].GetNoteStart(&ch, &key, &vel) || ch != 3 || key != 60 || vel != 127 {
		t.Fatalf("first message = %v", sent[0])
	}
	if !sent[1].GetNoteStart(&ch, &key, &vel) || key != 64 || vel != 64 {
		t.Fatalf("second message = %v", sent[1])
	}
	if !sent[2].GetNoteEnd(&ch, &key) || key != 60 {
		t.Fatalf("third message = %v", sent[2])
	}
	// StopAllNotes releases the held 64, then All Notes Off
	if !sent[3].GetNoteEnd(&ch, &key) || key != 64 {
		t.Fatalf("fourth message = %v", sent[3])
	}
	if !sent[4].GetControlChange(&ch, &cc, &val) || cc != ccAllNotesOff || ch != 3 {
		t.Fatalf("fifth message = %v", sent[4])
	}
	if len(sent) != 5 {
		t.Fatalf("sent %d messages, want 5", len(sent))
	}
}

func TestMIDIOutClick(t *testing.T) {
	var sent []gomidi.Message
	m := newMIDIOut(func(msg gomidi.Message) error {
		sent = append(sent, msg)
		return nil
	}, 0)
	m.SetMetronomeVolume(1)

	m.PlayClick(true)
	m.PlayClick(false)

	var ch, key, vel uint8
	if !sent[0].GetNoteStart(&ch, &key, &vel) || ch != drumChannel || key != accentKey || vel != 127 {
		t.Fatalf("accent = %v", sent[0])
	}
	if !sent[2].GetNoteStart(&ch, &key, &vel) || key != clickKey {
		t.Fatalf("click = %v", sent[2])
	}

	sent = nil
	m.SetVolume(0.5)
	var cc, val uint8
	if len(sent) != 1 || !sent[0].GetControlChange(&ch, &cc, &val) || cc != ccVolume || val != 64 {
		t.Fatalf("volume = %v", sent)
	}
}

type countingAudio struct{ notes, clicks int }

func (c *countingAudio) PlayNote(uint8, float64)    { c.notes++ }
func (c *countingAudio) StopNote(uint8)             {}
func (c *countingAudio) StopAllNotes()              {}
func (c *countingAudio) PlayClick(bool)             { c.clicks++ }
func (c *countingAudio) SetVolume(float64)          {}
func (c *countingAudio) SetMetronomeVolume(float64) {}

func TestMulti(t *testing.T) {
	a, b := &countingAudio{}, &countingAudio{}
	m := Multi{a, b}
	m.PlayNote(60, 1)
	m.PlayClick(true)
	if a.notes != 1 || b.notes != 1 || a.clicks != 1 || b.clicks != 1 {
		t.Fatalf("a = %+v b = %+v", a, b)
	}
}
