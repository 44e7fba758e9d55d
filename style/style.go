// Package style renders terminal text with lipgloss.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/kitsune-cli/kitsune/color"
)

// New returns an empty style.
func New() lipgloss.Style {
	return lipgloss.NewStyle()
}

// Colored sets both colors. An empty color leaves that side unset.
func Colored(fg, bg lipgloss.Color) lipgloss.Style {
	s := New()
	if fg != "" {
		s = s.Foreground(fg)
	}
	if bg != "" {
		s = s.Background(bg)
	}
	return s
}

// Renderer returns a single-argument render function for s.
func Renderer(s lipgloss.Style) func(string) string {
	return func(text string) string { return s.Render(text) }
}

func Fg(c lipgloss.Color) func(string) string {
	return Renderer(Colored(c, ""))
}

var (
	Faint = Renderer(New().Faint(true))
	Bold  = Renderer(New().Bold(true))
)

// Title renders the dashboard heading.
var Title = Renderer(Colored(Text, color.Orange).Bold(true).Padding(0, 1))

// Tag renders text as a padded block, as used for the playback state.
func Tag(fg, bg lipgloss.Color) func(string) string {
	return Renderer(Colored(fg, bg).Padding(0, 1))
}
