package theory

import (
	"math"

	"github.com/pakholeung37/midi-lab/score"
)

type Strength int

const (
	Weak Strength = iota
	Medium
	Strong
)

func (s Strength) String() string {
	switch s {
	case Strong:
		return "strong"
	case Medium:
		return "medium"
	default:
		return "weak"
	}
}

type Beat struct {
	Time     float64
	Beat     int // 1-based within the measure
	Measure  int // 1-based
	Strength Strength
}

// BeatStrength classifies a 1-based beat under a time signature
func BeatStrength(beat, numerator, denominator int) Strength {
	if beat == 1 {
		return Strong
	}
	switch {
	case numerator == 4 && denominator == 4:
		if beat == 3 {
			return Medium
		}
	case numerator == 6 && denominator == 8:
		if beat == 4 {
			return Medium
		}
	case numerator == 2 && denominator == 2:
	case numerator%3 == 0 && denominator == 8:
		if (beat-1)%3 == 0 {
			return Medium
		}
	}
	return Weak
}

// BeatsInRange lists beats with start <= Time <= end. The signature active
// at start governs the whole range and measures count from time 0.
func BeatsInRange(start, end, bpm float64, sigs []score.TimeSignature) []Beat {
	if len(sigs) == 0 || !(bpm > 0) || math.IsNaN(start) || math.IsNaN(end) ||
		math.IsInf(start, 0) || math.IsInf(end, 0) || start > end {
		return nil
	}

	ts := sigs[0]
	for i := len(sigs) - 1; i >= 0; i-- {
		if sigs[i].Time <= start {
			ts = sigs[i]
			break
		}
	}
	if ts.Numerator <= 0 {
		return nil
	}

	beatDuration := 60 / bpm
	measureDuration := beatDuration * float64(ts.Numerator)

	var beats []Beat
	measure := int(math.Floor(start / measureDuration))
	for {
		measureStart := float64(measure) * measureDuration
		if measureStart > end {
			break
		}
		for i := 0; i < ts.Numerator; i++ {
			t := measureStart + float64(i)*beatDuration
			if t < start || t > end {
				continue
			}
			beats = append(beats, Beat{
				Time:     t,
				Beat:     i + 1,
				Measure:  measure + 1,
				Strength: BeatStrength(i+1, ts.Numerator, ts.Denominator),
			})
		}
		measure++
	}
	return beats
}
