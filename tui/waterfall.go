package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pakholeung37/midi-lab/score"
	"github.com/pakholeung37/midi-lab/theme"
	"github.com/pakholeung37/midi-lab/theory"
)

type cellKind int

const (
	cellEmpty cellKind = iota
	cellGrid
	cellNote
	cellFaint // out-of-key note
)

type cell struct {
	kind     cellKind
	color    theme.RGB
	strength theory.Strength
}

// waterfall maps the next Window seconds onto Rows text rows, one column
// per pitch from Lo to Hi. The bottom row is the playhead.
type waterfall struct {
	Lo, Hi uint8
	Rows   int
	Window float64
}

func (w waterfall) rowSeconds() float64 {
	return w.Window / float64(w.Rows)
}

// row returns the text row for t, top row 0. ok is false outside the view.
func (w waterfall) row(t, now float64) (int, bool) {
	b := int(math.Floor((t - now) / w.rowSeconds()))
	if b < 0 || b >= w.Rows {
		return 0, false
	}
	return w.Rows - 1 - b, true
}

// grid lays out notes and beat lines. key, when set, marks pitches outside
// it as faint.
func (w waterfall) grid(notes []score.Note, beats []theory.Beat, now float64, key *theory.PitchClassSet) [][]cell {
	if w.Rows <= 0 || w.Hi < w.Lo || !(w.Window > 0) {
		return nil
	}
	cols := int(w.Hi) - int(w.Lo) + 1
	g := make([][]cell, w.Rows)
	for r := range g {
		g[r] = make([]cell, cols)
	}

	for _, b := range beats {
		r, ok := w.row(b.Time, now)
		if !ok {
			continue
		}
		for c := range g[r] {
			g[r][c] = cell{kind: cellGrid, strength: b.Strength}
		}
	}

	dt := w.rowSeconds()
	for _, n := range notes {
		if n.Pitch < w.Lo || n.Pitch > w.Hi {
			continue
		}
		col := int(n.Pitch - w.Lo)
		kind := cellNote
		color := theme.Dim(n.Color, 0.6*(1-score.VisualVelocity(n.Velocity)))
		if key != nil && theory.IsOutOfKey(n.Pitch, *key) {
			kind = cellFaint
			color = theme.Dim(n.Color, 0.6)
		}
		for b := 0; b < w.Rows; b++ {
			start := now + float64(b)*dt
			if n.Start < start+dt && n.End() > start {
				g[w.Rows-1-b][col] = cell{kind: kind, color: color}
			}
		}
	}
	return g
}

// render turns the grid into styled lines, one style per run of equal cells
func renderGrid(g [][]cell, th *theme.Theme) []string {
	lines := make([]string, len(g))
	gridStyle := lipgloss.NewStyle().Foreground(th.Grid())

	for r, row := range g {
		var out strings.Builder
		for i := 0; i < len(row); {
			j := i
			for j < len(row) && row[j] == row[i] {
				j++
			}
			run := strings.Repeat(string(cellRune(row[i], th)), j-i)
			switch row[i].kind {
			case cellNote, cellFaint:
				out.WriteString(lipgloss.NewStyle().Foreground(theme.Lipgloss(row[i].color)).Render(run))
			case cellGrid:
				out.WriteString(gridStyle.Render(run))
			default:
				out.WriteString(run)
			}
			i = j
		}
		lines[r] = out.String()
	}
	return lines
}

func cellRune(c cell, th *theme.Theme) rune {
	switch c.kind {
	case cellNote:
		return th.Symbols.NoteBody
	case cellFaint:
		return th.Symbols.NoteFaint
	case cellGrid:
		switch c.strength {
		case theory.Strong:
			return th.Symbols.GridStrong
		case theory.Medium:
			return th.Symbols.GridMedium
		}
		return th.Symbols.GridWeak
	}
	return th.Symbols.Empty
}
