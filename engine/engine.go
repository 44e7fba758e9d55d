// Package engine attaches an adaptive stream engine to a media surface and keeps it alive.
//
// The Engine interface is the opaque capability: it loads manifests and fragments and
// feeds a surface. The Adapter owns engine instances, classifies their errors, runs the
// recovery policy and enforces a single live Handle per surface.
package engine

import (
	"context"
	"time"

	"github.com/kitsune-cli/kitsune/player"
)

// Category names a class of upstream request, each with its own retry budget.
type Category int

const (
	CategoryManifest Category = iota
	CategoryLevel
	CategoryFragment
	CategorySubtitle
)

func (c Category) String() string {
	switch c {
	case CategoryManifest:
		return "manifest"
	case CategoryLevel:
		return "level"
	case CategoryFragment:
		return "fragment"
	case CategorySubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds retries of one request category.
type RetryPolicy struct {
	MaxRetry      int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// Config tunes buffering and retry budgets of an engine instance.
type Config struct {
	MaxBufferLength    time.Duration
	MaxMaxBufferLength time.Duration
	MaxBufferSize      int64
	BackBufferLength   time.Duration

	Manifest RetryPolicy
	Level    RetryPolicy
	Fragment RetryPolicy

	// MaxConsecutiveErrors is the number of fatal errors recovered from before giving up.
	MaxConsecutiveErrors int
}

// DefaultConfig favours fast startup and failing over quickly.
func DefaultConfig() Config {
	retry := RetryPolicy{
		MaxRetry:      3,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 10 * time.Second,
	}
	return Config{
		MaxBufferLength:      10 * time.Second,
		MaxMaxBufferLength:   30 * time.Second,
		MaxBufferSize:        20 * 1000 * 1000,
		BackBufferLength:     30 * time.Second,
		Manifest:             retry,
		Level:                retry,
		Fragment:             retry,
		MaxConsecutiveErrors: 10,
	}
}

// Buffer returns the limits an engine hands the surface it feeds.
func (c Config) Buffer() player.Buffer {
	return player.Buffer{
		Ahead:    c.MaxBufferLength,
		MaxAhead: c.MaxMaxBufferLength,
		MaxBytes: c.MaxBufferSize,
		Behind:   c.BackBufferLength,
	}
}

// Policy returns the retry policy for a category.
func (c Config) Policy(category Category) RetryPolicy {
	switch category {
	case CategoryManifest:
		return c.Manifest
	case CategoryLevel:
		return c.Level
	default:
		return c.Fragment
	}
}

// Source is a candidate stream for an episode.
type Source struct {
	URL     string            `json:"url"`
	Type    string            `json:"type,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Level is one selectable quality variant.
type Level struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Bandwidth int    `json:"bandwidth"`
	Height    int    `json:"height"`
}

// AudioTrack is one alternate audio rendition.
type AudioTrack struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

// TrackInfo describes what the loaded manifest offers.
type TrackInfo struct {
	Levels    []Level           `json:"levels"`
	Audio     []AudioTrack      `json:"audio"`
	Subtitles []player.Subtitle `json:"subtitles"`
}

// LevelDetails summarizes a loaded media playlist.
type LevelDetails struct {
	Level     int
	Duration  float64
	Fragments int
	Live      bool
}

// RawKind enumerates events an Engine reports.
type RawKind int

const (
	RawManifestLoaded RawKind = iota
	RawLevelLoaded
	RawFragLoaded
	RawError
)

// RawEvent is an engine-specific notification consumed by the Adapter.
type RawEvent struct {
	Kind   RawKind
	Tracks TrackInfo
	Level  LevelDetails
	Err    *Error
}

// Engine is the adaptive stream engine capability.
// Implementations publish on Events until Destroy returns, then close the channel.
type Engine interface {
	LoadSource(ctx context.Context, source Source) error
	AttachMedia(ctx context.Context, surface player.Surface, opts player.LoadOptions) error
	StartLoad() error
	RecoverMediaError() error
	StopLoad() error
	DetachMedia() error
	Destroy() error
	Events() <-chan RawEvent
}

// SubtitleProxy is implemented by engines that route subtitle requests themselves.
type SubtitleProxy interface {
	SubtitleURL(raw string) string
}

// Factory creates a configured engine instance.
type Factory func(cfg Config) (Engine, error)
