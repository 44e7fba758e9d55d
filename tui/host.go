package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/internal/ui"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/session"
)

type (
	skipControlMsg struct {
		visible bool
		label   string
	}
	stateMsg   session.State
	tracksMsg  engine.TrackInfo
	surfaceMsg player.Event
	errorMsg   struct{ err error }
)

// host forwards controller callbacks into the bubbletea program.
type host struct {
	send func(tea.Msg)
}

// NewHost returns a session.Host that delivers callbacks to program.
func NewHost(program *tea.Program) session.Host {
	return &host{send: program.Send}
}

func (h *host) SkipControl(visible bool, label string) {
	h.send(skipControlMsg{visible: visible, label: label})
}

func (h *host) Notice(message string) {
	h.send(ui.Notice(message))
}

func (h *host) StateChanged(state session.State) {
	h.send(stateMsg(state))
}

func (h *host) Tracks(tracks engine.TrackInfo) {
	h.send(tracksMsg(tracks))
}
