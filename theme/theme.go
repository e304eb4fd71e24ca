package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DefaultID is the palette used when nothing is configured
const DefaultID = "neon"

// Built-in waterfall palettes. Neighbouring entries contrast so adjacent
// tracks stay distinguishable.
var builtin = []*Palette{
	mustHexPalette("neon", "Neon",
		"#FF0055", "#00FF88", "#FFAA00", "#00AAFF", "#FF00FF",
		"#00FFCC", "#FF6600", "#AA00FF", "#FFFF00", "#00FF00"),
	mustHexPalette("ocean", "Ocean",
		"#00E5FF", "#2962FF", "#00BFA5", "#304FFE", "#18FFFF",
		"#0091EA", "#1DE9B6", "#448AFF", "#00B8D4", "#536DFE"),
	mustHexPalette("forest", "Forest",
		"#00E676", "#AEEA00", "#00C853", "#76FF03", "#1DE9B6",
		"#64DD17", "#00BFA5", "#B2FF59", "#69F0AE", "#CCFF90"),
	mustHexPalette("fire", "Fire",
		"#FF1744", "#FFEA00", "#FF6D00", "#FFAB00", "#FF3D00",
		"#FFD600", "#DD2C00", "#FFC400", "#FF5722", "#FFFF00"),
	mustHexPalette("purple", "Purple",
		"#D500F9", "#FF4081", "#7C4DFF", "#F50057", "#AA00FF",
		"#FF80AB", "#651FFF", "#E040FB", "#536DFE", "#FF1744"),
	mustHexPalette("candy", "Candy",
		"#FF1493", "#00FF7F", "#FF4500", "#00CED1", "#FFD700",
		"#9400D3", "#00FF00", "#FF69B4", "#1E90FF", "#FF6347"),
	mustHexPalette("aurora", "Aurora",
		"#00FF87", "#FF00E4", "#00E5FF", "#FF6B00", "#B700FF",
		"#00FFD1", "#FF0066", "#00AAFF", "#AAFF00", "#FF00AA"),
	mustHexPalette("rainbow", "Rainbow",
		"#FF0000", "#00FF00", "#0066FF", "#FFFF00", "#FF00FF",
		"#00FFFF", "#FF6600", "#9900FF", "#00FF66", "#FF0099"),
}

// IDs lists the built-in palette ids in display order
func IDs() []string {
	ids := make([]string, len(builtin))
	for i, p := range builtin {
		ids[i] = p.ID
	}
	return ids
}

// Named returns a built-in palette, falling back to the default.
// A value ending in .gpl is loaded from disk instead.
func Named(id string) *Palette {
	if strings.HasSuffix(strings.ToLower(id), ".gpl") {
		if p, err := LoadGPL(id); err == nil {
			return p
		}
	}
	for _, p := range builtin {
		if p.ID == id {
			return p
		}
	}
	return builtin[0]
}

// Next returns the palette after id, wrapping around
func Next(id string) *Palette {
	for i, p := range builtin {
		if p.ID == id {
			return builtin[(i+1)%len(builtin)]
		}
	}
	return builtin[0]
}

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	NoteBody  rune // █ sounding part of a falling note
	NoteFaint rune // ▓ out-of-key note
	Empty     rune // space between notes

	GridStrong rune // ━ measure line
	GridMedium rune // ─ secondary accent
	GridWeak   rune // ┄ plain beat

	KeyWhite  rune
	KeyBlack  rune
	KeyActive rune

	Playing rune // ▶
	Paused  rune // ‖
	Count   rune // ◔ counting down
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			NoteBody:  '█',
			NoteFaint: '▓',
			Empty:     ' ',

			GridStrong: '━',
			GridMedium: '─',
			GridWeak:   '┄',

			KeyWhite:  '▁',
			KeyBlack:  '▔',
			KeyActive: '█',

			Playing: '▶',
			Paused:  '‖',
			Count:   '◔',
		},
	}
}

// Fixed UI colors, independent of the waterfall palette
var (
	colorFG    = RGB{0xdd, 0xdd, 0xe8}
	colorMuted = RGB{0x6c, 0x6c, 0x80}
	colorGrid  = RGB{0x3a, 0x3a, 0x4a}
)

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(colorFG)
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(colorMuted)
}

func (t *Theme) Grid() lipgloss.Color {
	return rgbToLipgloss(colorGrid)
}

// Accent is the first palette entry
func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Index(0))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Index(1))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Index(2))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// InputColor marks keys pressed on a live keyboard
func (t *Theme) InputColor() RGB {
	return RGB{0xff, 0xff, 0xff}
}

// Lipgloss converts a raw color
func Lipgloss(c RGB) lipgloss.Color {
	return rgbToLipgloss(c)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(c.Hex())
}
