package tui

import (
	"github.com/kitsune-cli/kitsune/icon"
	"github.com/kitsune-cli/kitsune/session"
	"github.com/kitsune-cli/kitsune/style"
)

var stateIcons = map[session.State]icon.Icon{
	session.Initializing: icon.Progress,
	session.Playing:      icon.Play,
	session.Paused:       icon.Pause,
}

var stateLabels = map[session.State]string{
	session.Initializing: "loading",
	session.Terminating:  "stopping",
}

func stateTag(s session.State) string {
	label, ok := stateLabels[s]
	if !ok {
		label = s.String()
	}
	if i, ok := stateIcons[s]; ok {
		label = icon.Get(i) + " " + label
	}

	bg, ok := style.StateColor[s.String()]
	if !ok {
		bg = style.Base
	}
	fg := style.Base
	if bg == style.Base {
		fg = style.Text
	}
	return style.Tag(fg, bg)(label)
}
