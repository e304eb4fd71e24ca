package score

import (
	"github.com/pakholeung37/midi-lab/theme"
)

// TransposePitch shifts a MIDI pitch. ok is false when the result leaves 0-127.
func TransposePitch(pitch uint8, semitones int) (uint8, bool) {
	shifted := int(pitch) + semitones
	if shifted < 0 || shifted > 127 {
		return 0, false
	}
	return uint8(shifted), true
}

// Transpose returns a copy shifted by semitones. Notes pushed out of range
// are dropped and track note counts follow. Key signatures move with the notes.
func (s *Score) Transpose(semitones int) *Score {
	out := s.clone()
	if semitones == 0 {
		return out
	}

	counts := make(map[int]int, len(s.Tracks))
	out.Notes = out.Notes[:0]
	for _, n := range s.Notes {
		p, ok := TransposePitch(n.Pitch, semitones)
		if !ok {
			continue
		}
		n.Pitch = p
		out.Notes = append(out.Notes, n)
		counts[n.Track]++
	}
	for i := range out.Tracks {
		out.Tracks[i].NoteCount = counts[out.Tracks[i].Index]
	}
	for i := range out.KeySignatures {
		out.KeySignatures[i].Tonic = ((out.KeySignatures[i].Tonic+semitones)%12 + 12) % 12
	}
	out.Duration = duration(out.Notes)
	return out
}

// Recolor returns a copy with track and note colors taken from palette
func (s *Score) Recolor(palette *theme.Palette) *Score {
	out := s.clone()
	if palette == nil {
		return out
	}
	for i := range out.Tracks {
		out.Tracks[i].Color = palette.TrackColor(out.Tracks[i].Index)
	}
	for i := range out.Notes {
		out.Notes[i].Color = palette.TrackColor(out.Notes[i].Track)
	}
	return out
}

func (s *Score) clone() *Score {
	out := *s
	out.Notes = append([]Note(nil), s.Notes...)
	out.Tracks = append([]Track(nil), s.Tracks...)
	out.TimeSignatures = append([]TimeSignature(nil), s.TimeSignatures...)
	out.KeySignatures = append([]KeySignature(nil), s.KeySignatures...)
	return &out
}
