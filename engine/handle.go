package engine

import (
	"context"
	"sync"
	"time"

	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/metrics"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// EventKind enumerates adapter events.
type EventKind int

const (
	EventReady EventKind = iota
	EventError
	EventTrackInfo
	EventLevelLoaded
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventError:
		return "error"
	case EventTrackInfo:
		return "track-info"
	case EventLevelLoaded:
		return "level-loaded"
	default:
		return "unknown"
	}
}

// Event is published by a Handle.
// Error events carry the classified error and, when the user should be told, a Message.
// Terminal is set once recovery has stopped for good.
type Event struct {
	Kind     EventKind
	Err      *Error
	Message  string
	Terminal bool
	Tracks   TrackInfo
	Level    LevelDetails
}

// Handle owns one live engine instance attached to one surface.
type Handle struct {
	adapter *Adapter
	surface player.Surface
	engine  Engine
	spec    AttachSpec
	log     *logrus.Entry

	events  chan Event
	done    chan struct{}
	runDone chan struct{}
	loaded  chan struct{}

	loadedOnce sync.Once
	detachOnce sync.Once
	started    bool

	// owned by run
	consecutive int
	ready       bool
	hinted      bool
	terminal    bool
	nonFatal    rate.Sometimes

	mu     sync.Mutex
	tracks TrackInfo
}

func newHandle(a *Adapter, surface player.Surface, eng Engine, spec AttachSpec) *Handle {
	return &Handle{
		adapter:  a,
		surface:  surface,
		engine:   eng,
		spec:     spec,
		log:      a.log.WithField("surface", surface.ID()),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		runDone:  make(chan struct{}),
		loaded:   make(chan struct{}),
		nonFatal: rate.Sometimes{Interval: time.Second},
	}
}

// Events returns the adapter event stream. It is closed once the handle is detached.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Loading reports whether the manifest is still being fetched.
func (h *Handle) Loading() bool {
	select {
	case <-h.loaded:
		return false
	default:
		return true
	}
}

// Loaded is closed once the manifest load has settled, successfully or not.
func (h *Handle) Loaded() <-chan struct{} {
	return h.loaded
}

// Tracks returns the last track information reported by the engine.
func (h *Handle) Tracks() TrackInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracks
}

// SurfaceID returns the id of the surface the handle is attached to.
func (h *Handle) SurfaceID() string {
	return h.surface.ID()
}

// Detach stops loading, detaches from the surface and destroys the engine, in that order.
// Each step failure is logged and the sequence continues. Detach is safe to call repeatedly.
func (h *Handle) Detach(ctx context.Context) {
	if h == nil {
		return
	}
	h.detachOnce.Do(func() {
		close(h.done)
		if h.started {
			select {
			case <-h.runDone:
			case <-ctx.Done():
				h.log.Warn("engine event loop did not stop before detach deadline")
			}
		}
		h.markLoaded()

		if err := h.engine.StopLoad(); err != nil {
			h.log.WithError(err).Warn("stop load")
		}
		if err := h.engine.DetachMedia(); err != nil {
			h.log.WithError(err).Warn("detach media")
		}
		if err := h.engine.Destroy(); err != nil {
			h.log.WithError(err).Warn("destroy engine")
		}

		h.adapter.release(h.surface.ID())
		h.log.Info("detached engine")
	})
}

// abort tears down a handle whose attach did not complete.
func (h *Handle) abort() {
	close(h.events)
	h.Detach(context.Background())
}

func (h *Handle) markLoaded() {
	h.loadedOnce.Do(func() { close(h.loaded) })
}

func (h *Handle) start() {
	h.started = true
	go h.run()
}

func (h *Handle) run() {
	defer close(h.runDone)
	defer close(h.events)

	raw := h.engine.Events()
	for {
		select {
		case <-h.done:
			return
		case e, ok := <-raw:
			if !ok {
				return
			}
			h.handle(e)
		}
	}
}

func (h *Handle) emit(e Event) {
	select {
	case h.events <- e:
	case <-h.done:
	}
}

func (h *Handle) handle(e RawEvent) {
	switch e.Kind {
	case RawManifestLoaded:
		h.markLoaded()
		tracks := e.Tracks
		tracks.Subtitles = h.subtitles()
		h.mu.Lock()
		h.tracks = tracks
		h.mu.Unlock()

		h.emit(Event{Kind: EventTrackInfo, Tracks: tracks})
		if !h.ready {
			h.ready = true
			h.registerSubtitles(tracks.Subtitles)
			h.emit(Event{Kind: EventReady, Tracks: tracks})
		}
	case RawLevelLoaded:
		h.emit(Event{Kind: EventLevelLoaded, Level: e.Level})
	case RawFragLoaded:
		h.consecutive = 0
	case RawError:
		if e.Err != nil {
			h.classify(e.Err)
		}
	}
}

// classify applies the recovery policy to a single error.
func (h *Handle) classify(err *Error) {
	metrics.EngineErrors.WithLabelValues(err.Kind.String(), boolLabel(err.Fatal)).Inc()

	if !err.Fatal {
		h.nonFatal.Do(func() {
			h.log.WithError(err).Warn("non-fatal stream error")
		})
		return
	}

	if h.terminal {
		return
	}

	h.log.WithError(err).Error("fatal stream error")
	h.consecutive++

	if h.consecutive > h.adapter.cfg.MaxConsecutiveErrors {
		h.terminal = true
		h.markLoaded()
		h.log.Errorf("%d consecutive fatal errors, stopping recovery", h.consecutive)
		h.emit(Event{Kind: EventError, Err: err, Message: constant.StreamErrorMessage, Terminal: true})
		return
	}

	switch err.Kind {
	case KindNetwork:
		metrics.EngineRecoveries.WithLabelValues("start-load").Inc()
		if rerr := h.engine.StartLoad(); rerr != nil {
			h.log.WithError(rerr).Warn("resume loading")
		}
		h.emit(Event{Kind: EventError, Err: err})
	case KindMedia:
		metrics.EngineRecoveries.WithLabelValues("recover-media").Inc()
		if rerr := h.engine.RecoverMediaError(); rerr != nil {
			h.log.WithError(rerr).Warn("recover media pipeline")
		}
		h.emit(Event{Kind: EventError, Err: err})
	default:
		h.markLoaded()
		if h.hinted {
			h.emit(Event{Kind: EventError, Err: err})
			return
		}
		h.hinted = true
		h.emit(Event{Kind: EventError, Err: err, Message: constant.PlaybackErrorMessage})
	}
}

func (h *Handle) subtitles() []player.Subtitle {
	proxy, _ := h.engine.(SubtitleProxy)
	subs := make([]player.Subtitle, 0, len(h.spec.Subtitles))
	for _, s := range h.spec.Subtitles {
		if proxy != nil {
			s.URL = proxy.SubtitleURL(s.URL)
		}
		subs = append(subs, s)
	}
	return subs
}

func (h *Handle) registerSubtitles(subs []player.Subtitle) {
	for _, s := range subs {
		if err := h.surface.AddSubtitle(s); err != nil {
			h.log.WithError(err).Warnf("add %s subtitles", s.Lang)
		}
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
