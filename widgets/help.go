package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pakholeung37/midi-lab/theme"
)

// RenderSwatch renders a single colored block
func RenderSwatch(color theme.RGB) string {
	style := lipgloss.NewStyle().Foreground(theme.Lipgloss(color))
	return style.Render("■")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color theme.RGB, name, desc string) string {
	if desc == "" {
		return fmt.Sprintf("%s %s", RenderSwatch(color), name)
	}
	return fmt.Sprintf("%s %s - %s", RenderSwatch(color), name, desc)
}

// RenderLegend joins legend items on one line
func RenderLegend(items []string) string {
	return strings.Join(items, "   ")
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
