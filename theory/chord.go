package theory

import (
	"sort"
)

// Chord spelling uses flats for black keys
var chordNoteNames = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

type chordTemplate struct {
	intervals []int
	quality   string
}

// Ordered by priority: richer chords match first
var chordTemplates = []chordTemplate{
	{[]int{0, 4, 7, 9, 10}, "13"},
	{[]int{0, 2, 4, 7, 11}, "maj9"},
	{[]int{0, 2, 3, 7, 10}, "m9"},
	{[]int{0, 2, 4, 7, 10}, "9"},
	{[]int{0, 2, 4, 7, 9}, "6/9"},
	{[]int{0, 4, 7, 9}, "6"},
	{[]int{0, 3, 7, 9}, "m6"},
	{[]int{0, 2, 4, 7}, "add9"},
	{[]int{0, 2, 3, 7}, "madd9"},
	{[]int{0, 3, 4, 7, 10}, "7#9"},
	{[]int{0, 1, 4, 7, 10}, "7b9"},
	{[]int{0, 4, 8, 10}, "7#5"},
	{[]int{0, 4, 6, 10}, "7b5"},
	{[]int{0, 4, 7, 11}, "maj7"},
	{[]int{0, 3, 7, 10}, "m7"},
	{[]int{0, 4, 7, 10}, "7"},
	{[]int{0, 3, 6, 9}, "dim7"},
	{[]int{0, 3, 6, 10}, "m7b5"},
	{[]int{0, 3, 7, 11}, "mMaj7"},
	{[]int{0, 5, 7, 10}, "7sus4"},
	{[]int{0, 5, 7}, "sus4"},
	{[]int{0, 2, 7}, "sus2"},
	{[]int{0, 4, 7}, ""},
	{[]int{0, 3, 7}, "m"},
	{[]int{0, 3, 6}, "dim"},
	{[]int{0, 4, 8}, "aug"},
	{[]int{0, 7}, "5"},
}

type Chord struct {
	Root    string
	Quality string // "" for a major triad
	Bass    string // set only for inversions
	Display string // e.g. "Cmaj7" or "Am/C"
}

// RecognizeChord names the chord formed by a set of sounding pitches.
// A match rooted on the bass note wins; otherwise the lowest matching
// root is used and the bass is shown after a slash.
func RecognizeChord(pitches []uint8) (Chord, bool) {
	if len(pitches) < 2 {
		return Chord{}, false
	}

	bass := pitches[0]
	var present [12]bool
	for _, p := range pitches {
		if p < bass {
			bass = p
		}
		present[p%12] = true
	}
	var classes []int
	for pc, ok := range present {
		if ok {
			classes = append(classes, pc)
		}
	}
	if len(classes) < 2 {
		return Chord{}, false
	}
	sort.Ints(classes)
	bassPC := int(bass % 12)

	type match struct {
		root    int
		quality string
	}
	var matches []match
	for _, root := range classes {
		if quality, ok := matchTemplate(present, root); ok {
			matches = append(matches, match{root, quality})
		}
	}
	if len(matches) == 0 {
		return Chord{}, false
	}

	best := matches[0]
	for _, m := range matches {
		if m.root == bassPC {
			best = m
			break
		}
	}

	c := Chord{
		Root:    chordNoteNames[best.root],
		Quality: best.quality,
	}
	c.Display = c.Root + c.Quality
	if best.root != bassPC {
		c.Bass = chordNoteNames[bassPC]
		c.Display += "/" + c.Bass
	}
	return c, true
}

func matchTemplate(present [12]bool, root int) (string, bool) {
	for _, tpl := range chordTemplates {
		all := true
		for _, interval := range tpl.intervals {
			if !present[(root+interval)%12] {
				all = false
				break
			}
		}
		if all {
			return tpl.quality, true
		}
	}
	return "", false
}
