// Package player is the media surface a session renders into.
// The primary implementation drives a long-lived mpv process over its JSON-IPC socket.
package player

import (
	"context"
	"time"

	"github.com/kitsune-cli/kitsune/skip"
)

// EventKind enumerates media surface events.
type EventKind int

const (
	EventTimeUpdate EventKind = iota
	EventLoaded
	EventPaused
	EventResumed
	EventSeeked
	EventEnded
	EventError
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventTimeUpdate:
		return "timeupdate"
	case EventLoaded:
		return "loaded"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventSeeked:
		return "seeked"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a typed notification from the surface.
// Position and Duration are the latest known values, 0 when unknown.
type Event struct {
	Kind     EventKind
	Position float64
	Duration float64
	Detail   string
}

// LoadOptions accompany a Load call.
type LoadOptions struct {
	Title   string
	Headers map[string]string
	// Start is the position playback begins at, 0 for the beginning.
	Start  float64
	Buffer Buffer
}

// Buffer bounds how much media the surface holds around the playhead.
// Zero fields leave the surface default in place.
type Buffer struct {
	// Ahead is the look-ahead the surface aims to keep buffered.
	Ahead time.Duration
	// MaxAhead caps the look-ahead regardless of Ahead.
	MaxAhead time.Duration
	MaxBytes int64
	// Behind is how much already played media is kept for seeking back.
	Behind time.Duration
}

// Subtitle is an external subtitle track.
type Subtitle struct {
	Lang    string `json:"lang"`
	URL     string `json:"url"`
	Default bool   `json:"default,omitempty"`
}

// Surface is the playable element a session borrows from the host.
type Surface interface {
	// ID identifies the surface; at most one adapter handle may be attached per ID.
	ID() string

	Load(ctx context.Context, url string, opts LoadOptions) error
	Pause() error
	Resume() error
	Seek(seconds float64) error
	Position() (float64, error)
	Duration() (float64, error)

	// Reset clears the current source and drops all decoder state.
	Reset() error

	AddSubtitle(sub Subtitle) error
	SetChapters(chapters []skip.Chapter) error

	// Subscribe registers for events. The returned function unsubscribes and closes the channel.
	Subscribe() (<-chan Event, func())
}
