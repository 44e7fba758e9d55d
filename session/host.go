package session

import "github.com/kitsune-cli/kitsune/engine"

// Host displays what the controller decides. Calls come from the controller's event
// loop and must not block.
type Host interface {
	// SkipControl shows or hides the skip button. Label is "Intro" or "Outro" when visible.
	SkipControl(visible bool, label string)
	// Notice shows a user-facing message, such as a terminal stream error.
	Notice(message string)
	StateChanged(state State)
	Tracks(info engine.TrackInfo)
}

// NopHost ignores everything.
type NopHost struct{}

func (NopHost) SkipControl(bool, string) {}
func (NopHost) Notice(string)            {}
func (NopHost) StateChanged(State)       {}
func (NopHost) Tracks(engine.TrackInfo)  {}
