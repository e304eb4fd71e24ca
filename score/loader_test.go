package score

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/pakholeung37/midi-lab/theme"
)

const ticks = 960 // one quarter note, 0.5s at 120 bpm

func buildSMF(t *testing.T) []byte {
	t.Helper()

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticks)

	var conductor smf.Track
	conductor.Add(0, smf.MetaMeter(3, 4))
	conductor.Add(0, smf.MetaTempo(120))
	conductor.Add(0, []byte{0xFF, 0x59, 0x02, 0xFE, 0x01}) // 2 flats, minor
	conductor.Close(0)

	var piano smf.Track
	piano.Add(0, []byte{0xFF, 0x03, 0x05, 'P', 'i', 'a', 'n', 'o'})
	piano.Add(0, midi.NoteOn(0, 60, 127))
	piano.Add(ticks, midi.NoteOff(0, 60))
	piano.Add(0, midi.NoteOn(0, 64, 100))
	piano.Add(2*ticks, midi.NoteOff(0, 64))
	piano.Close(0)

	var bass smf.Track
	bass.Add(0, midi.NoteOn(1, 43, 64))
	bass.Add(4*ticks, midi.NoteOff(1, 43))
	bass.Add(0, midi.NoteOn(1, 45, 64)) // never released
	bass.Close(0)

	for _, tr := range []smf.Track{conductor, piano, bass} {
		if err := sm.Add(tr); err != nil {
			t.Fatalf("add track: %v", err)
		}
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	return buf.Bytes()
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestLoad(t *testing.T) {
	palette := theme.Named("neon")
	s, err := Load(bytes.NewReader(buildSMF(t)), "etude", palette)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if s.Name != "etude" {
		t.Errorf("name = %q", s.Name)
	}
	if s.OriginalBPM != 120 {
		t.Errorf("original bpm = %v, want 120", s.OriginalBPM)
	}
	if !near(s.Duration, 2) {
		t.Errorf("duration = %v, want 2", s.Duration)
	}

	if len(s.TimeSignatures) != 1 || s.TimeSignatures[0].Numerator != 3 || s.TimeSignatures[0].Denominator != 4 {
		t.Errorf("time signatures = %+v, want 3/4", s.TimeSignatures)
	}
	if len(s.KeySignatures) != 1 || s.KeySignatures[0].Tonic != 7 || s.KeySignatures[0].Scale != Minor {
		t.Errorf("key signatures = %+v, want G minor", s.KeySignatures)
	}

	if len(s.Tracks) != 2 {
		t.Fatalf("tracks = %+v, want 2 tracks with notes", s.Tracks)
	}
	if s.Tracks[0].Name != "Piano" || s.Tracks[0].NoteCount != 2 {
		t.Errorf("track 0 = %+v", s.Tracks[0])
	}
	if s.Tracks[1].Name != "Track 3" || s.Tracks[1].NoteCount != 1 {
		t.Errorf("track 1 = %+v", s.Tracks[1])
	}

	if len(s.Notes) != 3 {
		t.Fatalf("notes = %d, want 3 (unterminated note dropped)", len(s.Notes))
	}
	byPitch := make(map[uint8]Note)
	for _, n := range s.Notes {
		byPitch[n.Pitch] = n
	}

	tests := []struct {
		pitch           uint8
		start, duration float64
		velocity        float64
	}{
		{60, 0, 0.5, 1},
		{64, 0.5, 1, 100.0 / 127},
		{43, 0, 2, 64.0 / 127},
	}
	for _, tt := range tests {
		n, ok := byPitch[tt.pitch]
		if !ok {
			t.Errorf("missing pitch %d", tt.pitch)
			continue
		}
		if !near(n.Start, tt.start) || !near(n.Duration, tt.duration) || !near(n.Velocity, tt.velocity) {
			t.Errorf("pitch %d = %+v, want start %v dur %v vel %v", tt.pitch, n, tt.start, tt.duration, tt.velocity)
		}
		if n.Color != palette.TrackColor(n.Track) {
			t.Errorf("pitch %d color = %v, want track color", tt.pitch, n.Color)
		}
	}

	if _, err := NewIndex(s.Notes); err != nil {
		t.Fatalf("loaded notes do not index: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticks)
	var tr smf.Track
	tr.Add(0, midi.NoteOn(0, 72, 90))
	tr.Add(ticks, midi.NoteOff(0, 72))
	tr.Close(0)
	if err := sm.Add(tr); err != nil {
		t.Fatalf("add track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}

	s, err := Load(&buf, "plain", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.OriginalBPM != DefaultBPM {
		t.Errorf("bpm = %v, want %v", s.OriginalBPM, DefaultBPM)
	}
	if ts := s.FirstTimeSignature(); ts.Numerator != 4 || ts.Denominator != 4 {
		t.Errorf("time signature = %+v, want 4/4", ts)
	}
	if len(s.KeySignatures) != 0 {
		t.Errorf("key signatures = %+v, want none", s.KeySignatures)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load(strings.NewReader("definitely not a midi file"), "junk", nil); err == nil {
		t.Fatal("expected an error for non-SMF input")
	}
}

func TestKeyFromSMF(t *testing.T) {
	tests := []struct {
		sf    int8
		minor bool
		tonic int
		scale Scale
	}{
		{0, false, 0, Major},
		{1, false, 7, Major},
		{-1, false, 5, Major},
		{-3, false, 3, Major},
		{6, false, 6, Major},
		{0, true, 9, Minor},
		{-2, true, 7, Minor},
		{3, true, 6, Minor},
	}
	for _, tt := range tests {
		tonic, scale := KeyFromSMF(tt.sf, tt.minor)
		if tonic != tt.tonic || scale != tt.scale {
			t.Errorf("KeyFromSMF(%d, %v) = %d %v, want %d %v", tt.sf, tt.minor, tonic, scale, tt.tonic, tt.scale)
		}
	}
}

func TestLoadKeySignatures(t *testing.T) {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticks)
	var tr smf.Track
	tr.Add(0, []byte{0xFF, 0x59, 0x02, 0x03, 0x00}) // 3 sharps, major
	tr.Add(0, midi.NoteOn(0, 69, 90))
	tr.Add(4*ticks, midi.NoteOff(0, 69))
	tr.Add(0, []byte{0xFF, 0x59, 0x02, 0xFD, 0x01}) // 3 flats, minor
	tr.Add(0, []byte{0xFF, 0x03, 0x04, 'L', 'e', 'a', 'd'})
	tr.Add(0, midi.NoteOn(0, 60, 90))
	tr.Add(ticks, midi.NoteOff(0, 60))
	tr.Close(0)
	if err := sm.Add(tr); err != nil {
		t.Fatalf("add track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}

	s, err := Load(&buf, "modulating", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []KeySignature{
		{Time: 0, Tonic: 9, Scale: Major},
		{Time: 2, Tonic: 0, Scale: Minor},
	}
	if len(s.KeySignatures) != len(want) {
		t.Fatalf("key signatures = %+v, want %+v", s.KeySignatures, want)
	}
	for i, ks := range want {
		got := s.KeySignatures[i]
		if !near(got.Time, ks.Time) || got.Tonic != ks.Tonic || got.Scale != ks.Scale {
			t.Errorf("key %d = %+v, want %+v", i, got, ks)
		}
	}
	// a name that arrives after the first note still names the track
	if len(s.Tracks) != 1 || s.Tracks[0].Name != "Lead" {
		t.Errorf("tracks = %+v, want Lead", s.Tracks)
	}
}
