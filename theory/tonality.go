package theory

import (
	"math"
	"sort"

	"github.com/pakholeung37/midi-lab/score"
)

const bassCeiling = 60 // notes below middle C count as bass

// Tonality is the estimated key of a whole piece
type Tonality struct {
	Root       int // pitch class, 0 = C
	Scale      score.Scale
	Confidence float64 // 0-0.99
}

// Name returns e.g. "G minor"
func (t Tonality) Name() string {
	return NoteName(t.Root) + " " + t.Scale.String()
}

// KeySignature converts the estimate into a signature starting at time 0
func (t Tonality) KeySignature() score.KeySignature {
	return score.KeySignature{Tonic: t.Root, Scale: t.Scale}
}

type pitchWeights struct {
	classes [12]float64
	total   float64
}

func (w *pitchWeights) add(pc int, weight float64) {
	w.classes[pc] += weight
	w.total += weight
}

// share returns the weight of pc relative to the table total
func (w *pitchWeights) share(pc int) float64 {
	return w.classes[pc] / w.total
}

type candidate struct {
	root  int
	scale score.Scale
	fit   float64
	score float64
}

// InferTonality estimates a piece's key from its note distribution.
// Long, loud, low and final notes weigh more. ok is false for an empty
// or weightless note list.
func InferTonality(notes []score.Note) (Tonality, bool) {
	if len(notes) == 0 {
		return Tonality{}, false
	}

	var maxEnd float64
	for _, n := range notes {
		if e := n.End(); e > maxEnd {
			maxEnd = e
		}
	}
	tailWindow := math.Max(4, maxEnd*0.08)
	tailStart := math.Max(0, maxEnd-tailWindow)

	var all, bass, tail pitchWeights
	for _, n := range notes {
		pc := int(n.Pitch) % 12
		dur := math.Max(0.05, n.Duration)
		durationFactor := 0.75 + math.Min(0.85, dur*0.45)
		velocityFactor := 0.85 + clamp(n.Velocity, 0, 1)*0.3
		weight := dur * durationFactor * velocityFactor

		all.add(pc, weight)
		if n.Pitch < bassCeiling {
			bass.add(pc, weight)
		}
		overlap := math.Min(n.End(), maxEnd) - math.Max(n.Start, tailStart)
		if overlap > 0 {
			tail.add(pc, overlap*durationFactor*velocityFactor)
		}
	}
	if !(all.total > 0) {
		return Tonality{}, false
	}

	candidates := make([]candidate, 0, 24)
	for root := 0; root < 12; root++ {
		candidates = append(candidates,
			scoreCandidate(root, score.Major, &all, &bass, &tail),
			scoreCandidate(root, score.Minor, &all, &bass, &tail),
		)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].fit > candidates[j].fit
	})

	best, second := candidates[0], candidates[1]
	scoreGap := math.Max(0, best.score-second.score)
	fitGap := math.Max(0, best.fit-second.fit)

	return Tonality{
		Root:       best.root,
		Scale:      best.scale,
		Confidence: clamp(0.45+scoreGap*5+fitGap*2, 0, 0.99),
	}, true
}

func scoreCandidate(root int, scale score.Scale, all, bass, tail *pitchWeights) candidate {
	var inScale float64
	for _, interval := range scaleIntervals(scale) {
		inScale += all.classes[(root+interval)%12]
	}

	third := (root + 4) % 12
	if scale == score.Minor {
		third = (root + 3) % 12
	}
	fifth := (root + 7) % 12

	fit := inScale / all.total
	rootShare := all.share(root)
	triadShare := (all.classes[root] + all.classes[third] + all.classes[fifth]) / all.total

	bassRootShare := rootShare
	if bass.total > 0 {
		bassRootShare = bass.share(root)
	}
	tailRootShare := rootShare
	if tail.total > 0 {
		tailRootShare = tail.share(root)
	}

	return candidate{
		root:  root,
		scale: scale,
		fit:   fit,
		score: fit*0.55 + rootShare*0.15 + triadShare*0.08 + bassRootShare*0.12 + tailRootShare*0.1,
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
