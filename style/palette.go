package style

import "github.com/charmbracelet/lipgloss"

// Ember is the dashboard theme: warm text on a dark background.
var (
	Base  = lipgloss.Color("#1b1512")
	Text  = lipgloss.Color("#f1e4d8")
	Ash   = lipgloss.Color("#8c7f76")
	Fox   = lipgloss.Color("#ff8c42")
	Gold  = lipgloss.Color("#f4c06a")
	Ember = lipgloss.Color("#e0565b")
	Moss  = lipgloss.Color("#9ccf7a")
	Frost = lipgloss.Color("#8fc6dd")
)

var (
	AccentColor    = Fox
	SecondaryColor = Gold
	WarningColor   = Gold
	HiRed          = Ember
)

// StateColor is the tag background of every playback state, keyed by the state name.
var StateColor = map[string]lipgloss.Color{
	"initializing": Gold,
	"ready":        Frost,
	"playing":      Moss,
	"paused":       Ash,
	"terminating":  Fox,
	"idle":         Base,
}
