package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/style"
)

type keymap struct {
	quit, forceQuit,
	skip, autoSkip,
	showHelp key.Binding
}

func newKeymap() *keymap {
	k := &keymap{
		quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
		forceQuit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
		skip: key.NewBinding(
			key.WithKeys("s", "enter"),
			key.WithHelp(style.Fg(color.Orange)("s"), style.Fg(color.Orange)("skip")),
		),
		autoSkip: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle auto skip"),
		),
		showHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
	k.skip.SetEnabled(false)
	return k
}

func (k *keymap) ShortHelp() []key.Binding {
	return []key.Binding{k.skip, k.autoSkip, k.quit, k.showHelp}
}

func (k *keymap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.skip, k.autoSkip},
		{k.quit, k.forceQuit, k.showHelp},
	}
}
