package score

import (
	"github.com/pakholeung37/midi-lab/theme"
)

// Scale is the mode of a key
type Scale int

const (
	Major Scale = iota
	Minor
)

func (s Scale) String() string {
	if s == Minor {
		return "minor"
	}
	return "major"
}

// Note is a single timed event. Times are in seconds.
type Note struct {
	ID       int
	Pitch    uint8
	Start    float64
	Duration float64
	Velocity float64 // 0-1
	Track    int
	Color    theme.RGB
}

// End returns the time the note stops sounding
func (n Note) End() float64 {
	return n.Start + n.Duration
}

// Track describes one source track that contributed notes
type Track struct {
	Index     int
	Name      string
	Color     theme.RGB
	NoteCount int
}

type TimeSignature struct {
	Time        float64
	Numerator   int
	Denominator int
}

// KeySignature uses the tonic pitch class (0 = C), already normalized
// for minor keys.
type KeySignature struct {
	Time  float64
	Tonic int
	Scale Scale
}

// Score is everything the loader hands to playback
type Score struct {
	Name           string
	Notes          []Note // sorted by Start, then ID
	Tracks         []Track
	Duration       float64
	OriginalBPM    float64
	TimeSignatures []TimeSignature
	KeySignatures  []KeySignature
}

// FirstTimeSignature returns the first signature or 4/4
func (s *Score) FirstTimeSignature() TimeSignature {
	if len(s.TimeSignatures) == 0 {
		return TimeSignature{Numerator: 4, Denominator: 4}
	}
	return s.TimeSignatures[0]
}

// TimeSignatureAt returns the most recent signature with Time <= t
func (s *Score) TimeSignatureAt(t float64) TimeSignature {
	ts := s.FirstTimeSignature()
	for i := len(s.TimeSignatures) - 1; i >= 0; i-- {
		if s.TimeSignatures[i].Time <= t {
			return s.TimeSignatures[i]
		}
	}
	return ts
}

// PitchRange returns the lowest and highest pitch in the score
func (s *Score) PitchRange() (lo, hi uint8, ok bool) {
	if len(s.Notes) == 0 {
		return 0, 0, false
	}
	lo, hi = 127, 0
	for _, n := range s.Notes {
		if n.Pitch < lo {
			lo = n.Pitch
		}
		if n.Pitch > hi {
			hi = n.Pitch
		}
	}
	return lo, hi, true
}

// duration recomputes the end of the last sounding note
func duration(notes []Note) float64 {
	var d float64
	for _, n := range notes {
		if e := n.End(); e > d {
			d = e
		}
	}
	return d
}
