package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/dustin/go-humanize"
	"github.com/remeh/sizedwaitgroup"
	"github.com/spf13/cobra"

	"github.com/pakholeung37/midi-lab/midi"
	"github.com/pakholeung37/midi-lab/score"
	"github.com/pakholeung37/midi-lab/stats"
	"github.com/pakholeung37/midi-lab/theme"
	"github.com/pakholeung37/midi-lab/theory"
)

var infoCmd = &cobra.Command{
	Use:   "info file.mid...",
	Short: "Summarize MIDI files: length, tempo, meter, key",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInfo,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input and output ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ins, outs := midi.PortNames()
		fmt.Println("Inputs:")
		for i, name := range ins {
			mark := " "
			if midi.IsKeyboardPort(name) {
				mark = "*"
			}
			fmt.Printf(" %s%2d: %s\n", mark, i, name)
		}
		fmt.Println("Outputs:")
		for i, name := range outs {
			fmt.Printf("  %2d: %s\n", i, name)
		}
		fmt.Println("\n* connected automatically when playing")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show practice history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := statsStorage()
		if err != nil {
			return err
		}
		doc := stats.Load(store)
		if len(doc.Scores) == 0 {
			fmt.Println("Nothing played yet.")
			return nil
		}
		for _, name := range doc.Names() {
			s := doc.Scores[name]
			fmt.Printf("%-32s %5s plays  %3.0f%% finished  %8s practiced  last %s\n",
				name,
				humanize.Comma(int64(s.Plays)),
				s.CompletionRate*100,
				theory.FormatSeconds(s.SecondsPlayed),
				humanize.Time(s.LastPlayed()))
		}
		return nil
	},
}

type fileInfo struct {
	path  string
	score *score.Score
	err   error
}

func runInfo(cmd *cobra.Command, args []string) error {
	palette := theme.Named(theme.DefaultID)
	results := make([]fileInfo, len(args))

	wg := sizedwaitgroup.New(runtime.NumCPU())
	for i, path := range args {
		wg.Add()
		go func(i int, path string) {
			defer wg.Done()
			s, err := score.LoadFile(path, palette)
			results[i] = fileInfo{path: path, score: s, err: err}
		}(i, path)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.path, r.err)
			continue
		}
		printInfo(r.path, r.score)
	}
	if failed == len(results) {
		return fault.New("no readable files", fmsg.WithDesc("no readable files", "None of the files could be read."))
	}
	return nil
}

func printInfo(path string, s *score.Score) {
	fmt.Println(path)
	fmt.Printf("  length    %s\n", theory.FormatSeconds(s.Duration))
	fmt.Printf("  tempo     %.0f bpm\n", s.OriginalBPM)

	if len(s.TimeSignatures) > 0 {
		var sigs []string
		for _, ts := range s.TimeSignatures {
			sigs = append(sigs, theory.FormatTimeSignature(ts.Numerator, ts.Denominator))
		}
		fmt.Printf("  meter     %s\n", strings.Join(dedupe(sigs), ", "))
	}

	switch {
	case len(s.KeySignatures) > 0:
		k := s.KeySignatures[0]
		key := theory.FormatKey(k.Tonic, k.Scale)
		if theory.HasKeyModulation(s.KeySignatures) {
			key += " (modulates)"
		}
		fmt.Printf("  key       %s\n", key)
	default:
		if t, ok := theory.InferTonality(s.Notes); ok {
			fmt.Printf("  key       %s (inferred, %.0f%%)\n", t.Name(), t.Confidence*100)
		}
	}

	if lo, hi, ok := s.PitchRange(); ok {
		fmt.Printf("  range     %s%d-%s%d\n",
			theory.NoteName(int(lo)%12), int(lo)/12-1,
			theory.NoteName(int(hi)%12), int(hi)/12-1)
	}
	fmt.Printf("  notes     %s in %d track(s)\n", humanize.Comma(int64(len(s.Notes))), len(s.Tracks))
	for _, t := range s.Tracks {
		fmt.Printf("            %-24s %s\n", t.Name, humanize.Comma(int64(t.NoteCount)))
	}
}

func dedupe(in []string) []string {
	var out []string
	for i, v := range in {
		if i == 0 || in[i-1] != v {
			out = append(out, v)
		}
	}
	return out
}
