package theory

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/pakholeung37/midi-lab/score"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

var (
	majorIntervals = []int{0, 2, 4, 5, 7, 9, 11}
	minorIntervals = []int{0, 2, 3, 5, 7, 8, 10}
)

// Key names favour the spelling most common in key signatures
var keyNames = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

var semitones = map[string]int{
	"C": 0, "B#": 0,
	"C#": 1, "Db": 1,
	"D":  2,
	"D#": 3, "Eb": 3,
	"E": 4, "Fb": 4,
	"E#": 5, "F": 5,
	"F#": 6, "Gb": 6,
	"G":  7,
	"G#": 8, "Ab": 8,
	"A":  9,
	"A#": 10, "Bb": 10,
	"B": 11, "Cb": 11,
}

func scaleIntervals(scale score.Scale) []int {
	if scale == score.Minor {
		return minorIntervals
	}
	return majorIntervals
}

// NoteName returns the key spelling of a pitch class
func NoteName(pc int) string {
	return keyNames[((pc%12)+12)%12]
}

// ParseKey accepts names like "C", "F#" or "Bb"
func ParseKey(name string) (int, bool) {
	pc, ok := semitones[strings.TrimSpace(name)]
	return pc, ok
}

// PitchClassSet marks the pitch classes of a scale. The zero value is
// empty and treats every pitch as in key.
type PitchClassSet struct {
	classes [12]bool
	size    int
}

func (s PitchClassSet) Has(pc int) bool {
	return s.classes[((pc%12)+12)%12]
}

func (s PitchClassSet) Len() int {
	return s.size
}

// ScalePitchClasses returns the diatonic set for root and scale. An
// out-of-range root yields the empty set.
func ScalePitchClasses(root int, scale score.Scale) PitchClassSet {
	var s PitchClassSet
	if root < 0 || root > 11 {
		return s
	}
	for _, interval := range scaleIntervals(scale) {
		s.classes[(root+interval)%12] = true
		s.size++
	}
	return s
}

// IsOutOfKey reports whether pitch falls outside a non-empty set
func IsOutOfKey(pitch uint8, set PitchClassSet) bool {
	if set.Len() == 0 {
		return false
	}
	return !set.Has(int(pitch))
}

// HasKeyModulation reports whether the signatures ever change key
func HasKeyModulation(sigs []score.KeySignature) bool {
	if len(sigs) <= 1 {
		return false
	}
	sorted := append([]score.KeySignature(nil), sigs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	first := sorted[0]
	for _, ks := range sorted[1:] {
		if ks.Tonic != first.Tonic || ks.Scale != first.Scale {
			return true
		}
	}
	return false
}

// KeyAt returns the latest signature at or before t
func KeyAt(sigs []score.KeySignature, t float64) (score.KeySignature, bool) {
	var (
		found score.KeySignature
		ok    bool
	)
	for _, ks := range sigs {
		if ks.Time <= t && (!ok || ks.Time >= found.Time) {
			found, ok = ks, true
		}
	}
	if !ok && len(sigs) > 0 {
		return sigs[0], true
	}
	return found, ok
}

// FormatKey returns "C Major" or "A minor"
func FormatKey(root int, scale score.Scale) string {
	label := "Major"
	if scale == score.Minor {
		label = "minor"
	}
	return NoteName(root) + " " + label
}

func FormatTimeSignature(numerator, denominator int) string {
	return fmt.Sprintf("%d/%d", numerator, denominator)
}

// FormatSeconds renders a playback length as "2 m 5 s", whole seconds,
// at most two units. Negative input reads as zero.
func FormatSeconds(sec float64) string {
	d := time.Duration(math.Max(0, sec) * float64(time.Second)).Truncate(time.Second)
	return durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
}
