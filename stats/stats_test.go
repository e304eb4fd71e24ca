package stats

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pakholeung37/midi-lab/playback"
	"github.com/pakholeung37/midi-lab/score"
)

func TestRecordRun(t *testing.T) {
	store := NewMemoryStorage()
	at := time.UnixMilli(1_700_000_000_000)

	if _, err := RecordRun(store, "song", true, 30, at); err != nil {
		t.Fatal(err)
	}
	doc, err := RecordRun(store, "song", false, 12.5, at.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	s := Load(store).Scores["song"]
	if s.Plays != 2 || s.Completions != 1 || s.CompletionRate != 0.5 {
		t.Fatalf("stats = %+v", s)
	}
	if s.SecondsPlayed != 42.5 {
		t.Fatalf("seconds = %v, want 42.5", s.SecondsPlayed)
	}
	if !s.LastPlayed().Equal(at.Add(time.Minute)) {
		t.Fatalf("last played = %v", s.LastPlayed())
	}
	if len(s.RecentResults) != 2 || !s.RecentResults[0] || s.RecentResults[1] {
		t.Fatalf("recent = %v", s.RecentResults)
	}
	if doc.Scores["song"].Plays != 2 {
		t.Fatal("returned document out of date")
	}
}

func TestRecentResultsCapped(t *testing.T) {
	store := NewMemoryStorage()
	for i := 0; i < 25; i++ {
		if _, err := RecordRun(store, "etude", i%2 == 0, 1, time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	s := Load(store).Scores["etude"]
	if len(s.RecentResults) != recentLimit {
		t.Fatalf("recent = %d, want %d", len(s.RecentResults), recentLimit)
	}
	// runs 5..24; run 5 was odd
	if s.RecentResults[0] {
		t.Fatal("oldest results were kept instead of the newest")
	}
	if s.Plays != 25 || s.Completions != 13 {
		t.Fatalf("plays = %d completions = %d", s.Plays, s.Completions)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "{not json"},
		{"wrong version", `{"version":2,"scores":{"a":{"plays":1,"completions":1,"lastPlayedAt":1,"recentResults":[true]}}}`},
		{"missing version", `{"scores":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStorage()
			store.Set(StorageKey, tt.raw)
			doc := Load(store)
			if doc.Version != Version || len(doc.Scores) != 0 {
				t.Fatalf("doc = %+v, want empty", doc)
			}
		})
	}
}

func TestLoadNormalizesEntries(t *testing.T) {
	store := NewMemoryStorage()
	store.Set(StorageKey, `{"version":1,"scores":{
		"ok":{"plays":4.7,"completions":9,"lastPlayedAt":5,"recentResults":[true,false]},
		"missing":{"plays":1,"completions":0,"recentResults":[]},
		"negative":{"plays":-3,"completions":-1,"secondsPlayed":-10,"lastPlayedAt":0,"recentResults":[]},
		"wrong":"nope"
	}}`)

	doc := Load(store)
	if len(doc.Scores) != 2 {
		t.Fatalf("scores = %v", doc.Scores)
	}
	ok := doc.Scores["ok"]
	if ok.Plays != 4 || ok.Completions != 4 || ok.CompletionRate != 1 {
		t.Fatalf("ok = %+v", ok)
	}
	neg := doc.Scores["negative"]
	if neg.Plays != 0 || neg.Completions != 0 || neg.SecondsPlayed != 0 || neg.CompletionRate != 0 {
		t.Fatalf("negative = %+v", neg)
	}
}

func TestNamesByRecency(t *testing.T) {
	doc := Document{Scores: map[string]ScoreStats{
		"old": {LastPlayedAt: 1},
		"new": {LastPlayedAt: 3},
		"b":   {LastPlayedAt: 2},
		"a":   {LastPlayedAt: 2},
	}}
	if got := strings.Join(doc.Names(), ","); got != "new,a,b,old" {
		t.Fatalf("names = %s", got)
	}
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stats.json")
	s := NewFileStorage(path)

	if _, ok, err := s.Get("k"); err != nil || ok {
		t.Fatalf("Get on missing file = %v, %v", ok, err)
	}
	if err := s.Set("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("other", "v2"); err != nil {
		t.Fatal(err)
	}

	reopened := NewFileStorage(path)
	v, ok, err := reopened.Get("k")
	if err != nil || !ok || v != "v1" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if v, _, _ := reopened.Get("other"); v != "v2" {
		t.Fatalf("other = %q", v)
	}
}

func event(kind playback.EventKind, from, at float64) playback.Event {
	return playback.Event{Kind: kind, Score: "song", From: from, Time: at}
}

func TestTrackerSegments(t *testing.T) {
	store := NewMemoryStorage()
	tr := NewTracker(store)
	tr.now = func() time.Time { return time.UnixMilli(99) }

	tr.Observe(event(playback.EventStarted, 0, 0))
	tr.Observe(event(playback.EventPaused, 5, 5))
	if len(Load(store).Scores) != 0 {
		t.Fatal("pause recorded a run")
	}
	tr.Observe(event(playback.EventStarted, 5, 5))
	tr.Observe(event(playback.EventLooped, 8, 2))
	tr.Observe(event(playback.EventEnded, 10, 10))

	s := Load(store).Scores["song"]
	if s.Plays != 1 || s.Completions != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if math.Abs(s.SecondsPlayed-16) > 1e-9 {
		t.Fatalf("seconds = %v, want 16", s.SecondsPlayed)
	}
	if s.LastPlayedAt != 99 {
		t.Fatalf("last played = %d", s.LastPlayedAt)
	}

	// a stop closes the run as incomplete
	tr.Observe(event(playback.EventStarted, 0, 0))
	tr.Observe(event(playback.EventStopped, 3, 0))
	s = Load(store).Scores["song"]
	if s.Plays != 2 || s.Completions != 1 || math.Abs(s.SecondsPlayed-19) > 1e-9 {
		t.Fatalf("after stop = %+v", s)
	}

	tr.Close()
	if Load(store).Scores["song"].Plays != 2 {
		t.Fatal("close recorded without an open run")
	}
}

func TestTrackerWithCoordinator(t *testing.T) {
	store := NewMemoryStorage()
	tr := NewTracker(store)

	s := playback.NewSession(nil,
		playback.WithSchedulerOptions(playback.WithManualDriver()),
		playback.WithCoordinatorOptions(playback.WithCountdown(false, 0)),
	)
	s.Coordinator.Observe(tr.Observe)

	err := s.Coordinator.Load(&score.Score{
		Name:        "etude",
		Notes:       []score.Note{{ID: 1, Pitch: 60, Start: 0, Duration: 1, Velocity: 0.5}},
		Duration:    1,
		OriginalBPM: 120,
	})
	if err != nil {
		t.Fatal(err)
	}

	s.Coordinator.Play()
	now := time.Unix(0, 0)
	for i := 0; i < 4; i++ {
		s.Scheduler.Step(now)
		now = now.Add(500 * time.Millisecond)
	}

	st := Load(store).Scores["etude"]
	if st.Plays != 1 || st.Completions != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if math.Abs(st.SecondsPlayed-1) > 1e-9 {
		t.Fatalf("seconds = %v, want 1", st.SecondsPlayed)
	}
}
