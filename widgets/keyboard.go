package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pakholeung37/midi-lab/theme"
)

var blackKeys = [12]bool{1: true, 3: true, 6: true, 8: true, 10: true}

// IsBlackKey reports whether pitch is a sharp/flat on a piano
func IsBlackKey(pitch uint8) bool {
	return blackKeys[pitch%12]
}

// KeyboardRange widens [lo,hi] to whole octaves (C to B), clamped to 0-127
func KeyboardRange(lo, hi uint8) (uint8, uint8) {
	if lo > hi {
		lo, hi = hi, lo
	}
	lo -= lo % 12
	top := int(hi) - int(hi)%12 + 11
	if top > 127 {
		top = 127
	}
	return lo, uint8(top)
}

// RenderKeyboard draws one cell per pitch from lo to hi. Active pitches
// are drawn solid in their color.
func RenderKeyboard(lo, hi uint8, active map[uint8]theme.RGB, th *theme.Theme) string {
	if lo > hi {
		return ""
	}
	white := lipgloss.NewStyle().Foreground(th.FG())
	black := lipgloss.NewStyle().Foreground(th.Muted())

	var out strings.Builder
	for p := int(lo); p <= int(hi); p++ {
		pitch := uint8(p)
		if c, ok := active[pitch]; ok {
			out.WriteString(lipgloss.NewStyle().Foreground(theme.Lipgloss(c)).Render(string(th.Symbols.KeyActive)))
			continue
		}
		if IsBlackKey(pitch) {
			out.WriteString(black.Render(string(th.Symbols.KeyBlack)))
		} else {
			out.WriteString(white.Render(string(th.Symbols.KeyWhite)))
		}
	}
	return out.String()
}
