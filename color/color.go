// Package color names the terminal colors kitsune prints with.
package color

import "github.com/charmbracelet/lipgloss"

// New wraps an ANSI index or a hex value.
func New(value string) lipgloss.Color {
	return lipgloss.Color(value)
}

// ANSI colors follow the user's terminal theme.
var (
	Black    = New("0")
	Red      = New("1")
	Green    = New("2")
	Yellow   = New("3")
	Blue     = New("4")
	Purple   = New("5")
	Cyan     = New("6")
	White    = New("7")
	HiRed    = New("9")
	HiPurple = New("13")
)

// Orange is the fox orange used for highlights that should not depend on the terminal theme.
var Orange = New("#ff8c42")
