package score

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/pakholeung37/midi-lab/debug"
	"github.com/pakholeung37/midi-lab/theme"
)

// DefaultBPM is used when a file carries no tempo event
const DefaultBPM = 120

var extPattern = regexp.MustCompile(`(?i)\.midi?$`)

// LoadFile reads a standard MIDI file from disk
func LoadFile(path string, palette *theme.Palette) (*Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("open midi file", fmt.Sprintf("Could not open %s.", path)))
	}
	defer f.Close()

	name := extPattern.ReplaceAllString(filepath.Base(path), "")
	return Load(f, name, palette)
}

type noteKey struct {
	track int
	ch    uint8
	pitch uint8
}

type openNote struct {
	start    float64
	velocity uint8
}

type trackAcc struct {
	name  string
	notes []Note
}

// Load parses an SMF stream into a Score. Notes are numbered in file
// order and colored by track.
func Load(r io.Reader, name string, palette *theme.Palette) (*Score, error) {
	open := make(map[noteKey][]openNote)
	tracks := make(map[int]*trackAcc)
	acc := func(no int) *trackAcc {
		t, ok := tracks[no]
		if !ok {
			t = &trackAcc{}
			tracks[no] = t
		}
		return t
	}

	s := &Score{Name: name}
	var (
		tempoSeen bool
		nextID    int
		dropped   int
	)

	rd := smf.ReadTracksFrom(r)
	rd.Do(func(ev smf.TrackEvent) {
		t := float64(ev.AbsMicroSeconds) / 1e6
		msg := ev.Message

		var ch, key, vel uint8
		var bpm float64
		var num, denom, cpt, dsqpq uint8
		var text string
		var isMajor, isFlat bool

		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			k := noteKey{ev.TrackNo, ch, key}
			open[k] = append(open[k], openNote{start: t, velocity: vel})

		case msg.GetNoteEnd(&ch, &key):
			k := noteKey{ev.TrackNo, ch, key}
			pending := open[k]
			if len(pending) == 0 {
				return
			}
			on := pending[0]
			open[k] = pending[1:]
			if t <= on.start {
				dropped++
				return
			}
			acc(ev.TrackNo).notes = append(acc(ev.TrackNo).notes, Note{
				ID:       nextID,
				Pitch:    key,
				Start:    on.start,
				Duration: t - on.start,
				Velocity: float64(on.velocity) / 127,
				Track:    ev.TrackNo,
			})
			nextID++

		case msg.GetMetaTempo(&bpm):
			if !tempoSeen && bpm > 0 {
				s.OriginalBPM = math.Round(bpm)
				tempoSeen = true
			}

		case msg.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq):
			s.TimeSignatures = append(s.TimeSignatures, TimeSignature{
				Time:        t,
				Numerator:   int(num),
				Denominator: int(denom),
			})

		case msg.GetMetaTrackName(&text):
			if acc(ev.TrackNo).name == "" {
				acc(ev.TrackNo).name = text
			}

		case msg.GetMetaKeySig(&key, &num, &isMajor, &isFlat):
			sf := int8(num)
			if isFlat {
				sf = -sf
			}
			tonic, scale := KeyFromSMF(sf, !isMajor)
			s.KeySignatures = append(s.KeySignatures, KeySignature{Time: t, Tonic: tonic, Scale: scale})
		}
	})
	if err := rd.Error(); err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("read smf", fmt.Sprintf("%s is not a readable MIDI file.", name)))
	}

	for k, pending := range open {
		dropped += len(pending)
		delete(open, k)
	}
	if dropped > 0 {
		debug.Log("loader", "%s: dropped %d unterminated or empty notes", name, dropped)
	}

	if s.OriginalBPM <= 0 {
		s.OriginalBPM = DefaultBPM
	}
	if len(s.TimeSignatures) == 0 {
		s.TimeSignatures = []TimeSignature{{Time: 0, Numerator: 4, Denominator: 4}}
	}
	sort.SliceStable(s.TimeSignatures, func(i, j int) bool {
		return s.TimeSignatures[i].Time < s.TimeSignatures[j].Time
	})
	sort.SliceStable(s.KeySignatures, func(i, j int) bool {
		return s.KeySignatures[i].Time < s.KeySignatures[j].Time
	})

	order := make([]int, 0, len(tracks))
	for no := range tracks {
		order = append(order, no)
	}
	sort.Ints(order)

	for _, no := range order {
		t := tracks[no]
		if len(t.notes) == 0 {
			continue
		}
		var color theme.RGB
		if palette != nil {
			color = palette.TrackColor(no)
		}
		trackName := t.name
		if trackName == "" {
			trackName = fmt.Sprintf("Track %d", no+1)
		}
		s.Tracks = append(s.Tracks, Track{
			Index:     no,
			Name:      trackName,
			Color:     color,
			NoteCount: len(t.notes),
		})
		for _, n := range t.notes {
			n.Color = color
			s.Notes = append(s.Notes, n)
		}
	}

	sortNotes(s.Notes)
	s.Duration = duration(s.Notes)

	debug.Log("loader", "%s: notes=%d tracks=%d bpm=%.0f duration=%.2fs",
		name, len(s.Notes), len(s.Tracks), s.OriginalBPM, s.Duration)
	return s, nil
}

// KeyFromSMF converts SMF key signature data (sharps/flats count and
// minor flag) into a tonic pitch class and scale.
func KeyFromSMF(sf int8, minor bool) (int, Scale) {
	major := ((int(sf)*7)%12 + 12) % 12
	if minor {
		return (major + 9) % 12, Minor
	}
	return major, Major
}
