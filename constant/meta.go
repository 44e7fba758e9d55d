// Package constant defines immutable application-level identifiers and configuration defaults.
package constant

const (
	// Kitsune is the canonical application identifier used for filesystem paths and CLI branding.
	Kitsune = "kitsune"

	// Version is the current application semantic version string.
	Version = "0.3.0"

	// UserAgent is the browser User-Agent sent with every upstream manifest, level and fragment request.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Fallback messages shown to the user when a stream cannot be played.
const (
	StreamErrorMessage   = "Video stream error. Please try another server."
	PlaybackErrorMessage = "Playback error. Please refresh or try another server."
	NoSourcesMessage     = "No playable sources for this episode. Please try another server."
)
