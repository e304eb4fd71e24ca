package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	StorageKey = "midi-lab:playback:v1"
	Version    = 1

	recentLimit = 20
)

// ScoreStats is the playback history of one score
type ScoreStats struct {
	Plays          int     `json:"plays"`
	Completions    int     `json:"completions"`
	CompletionRate float64 `json:"completionRate"`
	SecondsPlayed  float64 `json:"secondsPlayed"`
	LastPlayedAt   int64   `json:"lastPlayedAt"` // unix milliseconds
	RecentResults  []bool  `json:"recentResults"`
}

func (s ScoreStats) LastPlayed() time.Time {
	return time.UnixMilli(s.LastPlayedAt)
}

// Document is what gets stored under StorageKey
type Document struct {
	Version int                   `json:"version"`
	Scores  map[string]ScoreStats `json:"scores"`
}

func emptyDocument() Document {
	return Document{Version: Version, Scores: make(map[string]ScoreStats)}
}

// rawStats detects missing fields in stored entries
type rawStats struct {
	Plays         *float64 `json:"plays"`
	Completions   *float64 `json:"completions"`
	SecondsPlayed *float64 `json:"secondsPlayed"`
	LastPlayedAt  *float64 `json:"lastPlayedAt"`
	RecentResults []bool   `json:"recentResults"`
}

type rawDocument struct {
	Version int                        `json:"version"`
	Scores  map[string]json.RawMessage `json:"scores"`
}

// Load reads the document. Anything unreadable or of another version
// loads as empty; malformed entries are dropped.
func Load(store Storage) Document {
	raw, ok, err := store.Get(StorageKey)
	if err != nil || !ok || raw == "" {
		return emptyDocument()
	}

	var parsed rawDocument
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed.Version != Version {
		return emptyDocument()
	}

	doc := emptyDocument()
	for name, msg := range parsed.Scores {
		if s, ok := normalize(msg); ok {
			doc.Scores[name] = s
		}
	}
	return doc
}

func normalize(msg json.RawMessage) (ScoreStats, bool) {
	var r rawStats
	if err := json.Unmarshal(msg, &r); err != nil {
		return ScoreStats{}, false
	}
	if r.Plays == nil || r.Completions == nil || r.LastPlayedAt == nil || r.RecentResults == nil {
		return ScoreStats{}, false
	}

	plays := max(0, int(math.Floor(*r.Plays)))
	s := ScoreStats{
		Plays:         plays,
		Completions:   max(0, min(plays, int(math.Floor(*r.Completions)))),
		LastPlayedAt:  int64(*r.LastPlayedAt),
		RecentResults: clampRecent(r.RecentResults),
	}
	if r.SecondsPlayed != nil && *r.SecondsPlayed > 0 {
		s.SecondsPlayed = *r.SecondsPlayed
	}
	s.CompletionRate = rate(s.Completions, s.Plays)
	return s, true
}

func rate(completions, plays int) float64 {
	if plays == 0 {
		return 0
	}
	return float64(completions) / float64(plays)
}

func clampRecent(results []bool) []bool {
	if len(results) <= recentLimit {
		return results
	}
	return results[len(results)-recentLimit:]
}

func Save(store Storage, doc Document) error {
	doc.Version = Version
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := store.Set(StorageKey, string(data)); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// RecordRun adds one run of name and saves the document
func RecordRun(store Storage, name string, completed bool, seconds float64, at time.Time) (Document, error) {
	doc := Load(store)
	cur := doc.Scores[name]

	cur.Plays++
	if completed {
		cur.Completions++
	}
	if seconds > 0 && !math.IsInf(seconds, 0) {
		cur.SecondsPlayed += seconds
	}
	cur.CompletionRate = rate(cur.Completions, cur.Plays)
	cur.LastPlayedAt = at.UnixMilli()
	recent := append(append([]bool(nil), cur.RecentResults...), completed)
	cur.RecentResults = clampRecent(recent)

	doc.Scores[name] = cur
	return doc, Save(store, doc)
}

// Names returns score names, most recently played first
func (d Document) Names() []string {
	names := make([]string, 0, len(d.Scores))
	for name := range d.Scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := d.Scores[names[i]], d.Scores[names[j]]
		if a.LastPlayedAt != b.LastPlayedAt {
			return a.LastPlayedAt > b.LastPlayedAt
		}
		return names[i] < names[j]
	})
	return names
}
