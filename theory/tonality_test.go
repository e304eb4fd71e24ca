package theory

import (
	"math"
	"testing"

	"github.com/pakholeung37/midi-lab/score"
)

type fixtureNote struct {
	pitch              uint8
	start, dur, volume float64
}

func fixture(in []fixtureNote) []score.Note {
	out := make([]score.Note, len(in))
	for i, n := range in {
		out[i] = score.Note{ID: i, Pitch: n.pitch, Start: n.start, Duration: n.dur, Velocity: n.volume}
	}
	return out
}

var cMajorPhrase = fixture([]fixtureNote{
	{60, 0, 1.2, 0.8},
	{64, 1.3, 0.8, 0.7},
	{67, 2.2, 0.8, 0.7},
	{72, 3.2, 1.8, 0.85},
	{48, 0, 3.8, 0.74},
	{55, 4.2, 0.8, 0.68},
	{48, 5.1, 1.9, 0.78},
	{60, 5.2, 1.7, 0.82},
})

var gMinorPhrase = fixture([]fixtureNote{
	{55, 0, 2, 0.8},
	{58, 2.2, 0.8, 0.75},
	{62, 3.1, 0.8, 0.75},
	{67, 4, 1.2, 0.8},
	{70, 5.4, 1.2, 0.8},
	{74, 6.7, 0.8, 0.7},
	{67, 8, 2.6, 0.85},
	{43, 0, 4.8, 0.75},
	{46, 5, 1.2, 0.72},
	{50, 6.3, 1, 0.72},
	{43, 7.5, 3.1, 0.8},
	{65, 1.1, 0.7, 0.68},
	{63, 2.9, 0.7, 0.68},
	{69, 5.9, 0.5, 0.65},
})

func TestInferTonalityCMajor(t *testing.T) {
	got, ok := InferTonality(cMajorPhrase)
	if !ok {
		t.Fatal("no tonality for C major phrase")
	}
	if got.Root != 0 || got.Scale != score.Major {
		t.Fatalf("got %s, want C major", got.Name())
	}
	if math.Abs(got.Confidence-0.6895) > 0.001 {
		t.Errorf("confidence = %v, want about 0.6895", got.Confidence)
	}
}

func TestInferTonalityGMinor(t *testing.T) {
	got, ok := InferTonality(gMinorPhrase)
	if !ok {
		t.Fatal("no tonality for G minor phrase")
	}
	if got.Root != 7 || got.Scale != score.Minor {
		t.Fatalf("got %s, want G minor", got.Name())
	}
	if got.Confidence <= 0.5 || got.Confidence > 0.99 {
		t.Errorf("confidence = %v, want (0.5, 0.99]", got.Confidence)
	}
	if got.Name() != "G minor" {
		t.Errorf("name = %q", got.Name())
	}
}

func TestInferTonalityTieBreak(t *testing.T) {
	// A lone C fits C major and C minor equally; major is enumerated first
	got, ok := InferTonality(fixture([]fixtureNote{{60, 0, 1, 0.8}}))
	if !ok {
		t.Fatal("no tonality for single note")
	}
	if got.Root != 0 || got.Scale != score.Major {
		t.Fatalf("got %s, want C major", got.Name())
	}
	if got.Confidence != 0.45 {
		t.Errorf("confidence = %v, want 0.45", got.Confidence)
	}
}

func TestInferTonalityEmpty(t *testing.T) {
	if _, ok := InferTonality(nil); ok {
		t.Fatal("empty note list produced a tonality")
	}
}

func TestInferTonalityIsDeterministic(t *testing.T) {
	first, _ := InferTonality(gMinorPhrase)
	for i := 0; i < 20; i++ {
		again, _ := InferTonality(gMinorPhrase)
		if again != first {
			t.Fatalf("run %d = %+v, want %+v", i, again, first)
		}
	}
}
