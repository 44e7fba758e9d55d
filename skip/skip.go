// Package skip decides what to do about intro and outro windows for a given playback position.
//
// Evaluate is a pure function of position, duration and windows. Machine wraps it with
// per-entry bookkeeping so a window is actioned at most once each time playback enters it.
package skip

import (
	"math"

	"github.com/samber/mo"
)

// Epsilon is subtracted from an outro target that would land exactly on the end of the stream.
const Epsilon = 0.1

// Window is a half-open [Start, End) range in seconds.
// An outro with End == 0 means "until the end of the stream".
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Windows groups the optional intro and outro windows of an episode.
type Windows struct {
	Intro mo.Option[Window]
	Outro mo.Option[Window]
}

// Mode selects between automatic seeking and showing a skip control.
type Mode int

const (
	Manual Mode = iota
	Auto
)

func (m Mode) String() string {
	if m == Auto {
		return "auto"
	}
	return "manual"
}

// Segment identifies which window a position falls into.
type Segment int

const (
	SegmentNone Segment = iota
	SegmentIntro
	SegmentOutro
)

// Label is the text shown on the skip control for the segment.
func (s Segment) Label() string {
	switch s {
	case SegmentIntro:
		return "Intro"
	case SegmentOutro:
		return "Outro"
	default:
		return ""
	}
}

// Kind enumerates skip actions.
type Kind int

const (
	None Kind = iota
	AutoSeek
	ShowControl
	HideControl
)

func (k Kind) String() string {
	switch k {
	case AutoSeek:
		return "auto-seek"
	case ShowControl:
		return "show-control"
	case HideControl:
		return "hide-control"
	default:
		return "none"
	}
}

// Action is the outcome of an evaluation.
// Target is set for AutoSeek, Label for ShowControl.
type Action struct {
	Kind    Kind
	Target  float64
	Label   string
	Segment Segment
}

// ResolveOutroEnd resolves the end of an outro window.
// The End == 0 sentinel becomes the duration once the duration is known and positive.
// The second result is false when the window cannot be used.
func ResolveOutroEnd(w Window, duration float64) (float64, bool) {
	end := w.End
	if end == 0 {
		if duration <= 0 {
			return 0, false
		}
		end = duration
	}
	return end, w.Start < end
}

func resolveIntro(w Window) (float64, bool) {
	return w.End, w.Start < w.End
}

// Locate reports the segment containing position along with the resolved window end.
func Locate(position, duration float64, windows Windows) (Segment, float64) {
	if w, ok := windows.Intro.Get(); ok {
		if end, valid := resolveIntro(w); valid && w.Start <= position && position < end {
			return SegmentIntro, end
		}
	}
	if w, ok := windows.Outro.Get(); ok {
		if end, valid := ResolveOutroEnd(w, duration); valid && w.Start <= position && position < end {
			return SegmentOutro, end
		}
	}
	return SegmentNone, 0
}

// Target resolves where a skip ending at resolvedEnd should land.
// A target at or past the end of a known duration lands Epsilon short of it.
func Target(resolvedEnd, duration float64) float64 {
	if duration <= 0 || resolvedEnd < duration {
		return resolvedEnd
	}
	return math.Max(duration-Epsilon, 0)
}

// Evaluate maps a position to a skip action without side effects.
func Evaluate(position, duration float64, windows Windows, mode Mode) Action {
	segment, end := Locate(position, duration, windows)
	if segment == SegmentNone {
		if mode == Manual {
			return Action{Kind: HideControl}
		}
		return Action{Kind: None}
	}

	if mode == Auto {
		return Action{Kind: AutoSeek, Target: Target(end, duration), Segment: segment}
	}
	return Action{Kind: ShowControl, Label: segment.Label(), Segment: segment}
}
