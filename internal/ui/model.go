// Package ui holds small reusable bubbletea components.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"
)

// NoticeLifetime is how long a notice stays on screen.
const NoticeLifetime = 6 * time.Second

// Notice is a transient message for the user.
type Notice string

// clearNoticeMsg resets the notice once its lifetime has passed. The seq guards
// against clearing a newer notice.
type clearNoticeMsg struct {
	seq int
}

// Notifier shows the latest notice below the main view.
type Notifier struct {
	notice string
	seq    int
	width  int
}

// SetWidth sets the wrap width, 0 disables wrapping.
func (n *Notifier) SetWidth(width int) {
	n.width = width
}

// Current returns the visible notice, or "".
func (n *Notifier) Current() string {
	return n.notice
}

// Update handles Notice messages and their expiry.
func (n *Notifier) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case Notice:
		n.notice = string(msg)
		n.seq++
		seq := n.seq
		return tea.Tick(NoticeLifetime, func(time.Time) tea.Msg {
			return clearNoticeMsg{seq: seq}
		})
	case clearNoticeMsg:
		if msg.seq == n.seq {
			n.notice = ""
		}
	}
	return nil
}

// View renders the notice wrapped to the configured width.
func (n *Notifier) View(render func(string) string) string {
	if n.notice == "" {
		return ""
	}
	text := n.notice
	if n.width > 0 {
		text = wordwrap.String(text, n.width)
	}
	return render(text)
}
