package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/filesystem"
	"github.com/kitsune-cli/kitsune/history"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/player/playertest"
	"github.com/kitsune-cli/kitsune/skip"
)

func init() {
	filesystem.SetMemMapFs()
}

// callLog records calls across engines and the surface in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) index(call string) int {
	for i, c := range l.all() {
		if c == call {
			return i
		}
	}
	return -1
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.all() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeEngine struct {
	name    string
	log     *callLog
	sources *callLog
	events  chan engine.RawEvent
	once    sync.Once
	block   chan struct{}
}

func (f *fakeEngine) LoadSource(_ context.Context, source engine.Source) error {
	if f.block != nil {
		<-f.block
	}
	f.log.add(f.name + ":load")
	f.sources.add(source.URL)
	return nil
}

func (f *fakeEngine) AttachMedia(context.Context, player.Surface, player.LoadOptions) error {
	f.log.add(f.name + ":attach")
	return nil
}

func (f *fakeEngine) StartLoad() error         { f.log.add(f.name + ":start"); return nil }
func (f *fakeEngine) RecoverMediaError() error { f.log.add(f.name + ":recover"); return nil }
func (f *fakeEngine) StopLoad() error          { f.log.add(f.name + ":stop"); return nil }
func (f *fakeEngine) DetachMedia() error       { f.log.add(f.name + ":detach"); return nil }

func (f *fakeEngine) Destroy() error {
	f.log.add(f.name + ":destroy")
	f.once.Do(func() { close(f.events) })
	return nil
}

func (f *fakeEngine) Events() <-chan engine.RawEvent { return f.events }

// orderedSurface logs the calls teardown makes so they can be ordered against the engine.
type orderedSurface struct {
	*playertest.Surface
	log        *callLog
	panicPause bool
}

func (s *orderedSurface) Pause() error {
	s.log.add("surface:pause")
	if s.panicPause {
		panic("surface gone")
	}
	return s.Surface.Pause()
}

func (s *orderedSurface) Reset() error {
	s.log.add("surface:reset")
	return s.Surface.Reset()
}

type recordingHost struct {
	mu      sync.Mutex
	skips   []string
	notices []string
	states  []State
	tracks  int
}

func (h *recordingHost) SkipControl(visible bool, label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if visible {
		h.skips = append(h.skips, "show:"+label)
	} else {
		h.skips = append(h.skips, "hide")
	}
}

func (h *recordingHost) Notice(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notices = append(h.notices, message)
}

func (h *recordingHost) StateChanged(state State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, state)
}

func (h *recordingHost) Tracks(engine.TrackInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracks++
}

func (h *recordingHost) Notices() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.notices...)
}

func (h *recordingHost) Skips() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.skips...)
}

func (h *recordingHost) States() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.states...)
}

var rigs atomic.Int64

type rig struct {
	log     *callLog
	sources *callLog
	surface *orderedSurface
	adapter *engine.Adapter
	host    *recordingHost
	store   *history.Store
	engines chan *fakeEngine

	mu      sync.Mutex
	created int
	blocks  map[int]chan struct{}
}

func newRig() *rig {
	n := rigs.Add(1)
	dir := fmt.Sprintf("/sessions/%d", n)
	r := &rig{
		log:     &callLog{},
		sources: &callLog{},
		host:    &recordingHost{},
		store:   history.New(dir+"/progress.json", dir+"/bookmarks.json"),
		engines: make(chan *fakeEngine, 16),
		blocks:  make(map[int]chan struct{}),
	}
	r.surface = &orderedSurface{Surface: playertest.NewSurface("surface-1"), log: r.log}
	r.adapter = engine.NewAdapter(r.factory, engine.DefaultConfig())
	return r
}

func (r *rig) factory(engine.Config) (engine.Engine, error) {
	r.mu.Lock()
	r.created++
	e := &fakeEngine{
		name:    fmt.Sprintf("e%d", r.created),
		log:     r.log,
		sources: r.sources,
		events:  make(chan engine.RawEvent, 64),
		block:   r.blocks[r.created],
	}
	r.mu.Unlock()
	r.engines <- e
	return e, nil
}

// blockLoad makes the n-th engine's LoadSource wait until the returned channel is closed.
func (r *rig) blockLoad(n int) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := make(chan struct{})
	r.blocks[n] = c
	return c
}

func (r *rig) controller(mutate func(*Options)) *Controller {
	opts := Options{
		Surface:          r.surface,
		Adapter:          r.adapter,
		Host:             r.host,
		Progress:         r.store,
		Bookmarks:        r.store,
		Owner:            "user-1",
		InitialSeekDelay: 10 * time.Millisecond,
		LoadSettle:       50 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

func (r *rig) nextEngine() *fakeEngine {
	select {
	case e := <-r.engines:
		return e
	case <-time.After(2 * time.Second):
		return nil
	}
}

func (r *rig) engineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

// ready drives an attached engine to Ready and reports the duration on the surface.
func (r *rig) ready(c *Controller, e *fakeEngine, duration float64) bool {
	if !eventually(func() bool { return r.surface.Subscribers() == 1 }) {
		return false
	}
	e.events <- engine.RawEvent{Kind: engine.RawManifestLoaded}
	if !eventually(func() bool { return c.State() == Ready }) {
		return false
	}
	r.surface.Emit(player.Event{Kind: player.EventLoaded, Duration: duration})
	return true
}

func (r *rig) tick(position, duration float64) {
	r.surface.Emit(player.Event{Kind: player.EventTimeUpdate, Position: position, Duration: duration})
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func testSpec(episode string) Spec {
	return Spec{
		ContentID:     "show-1",
		EpisodeID:     episode,
		EpisodeNumber: 1,
		Title:         "Show",
		Sources:       []engine.Source{{URL: "https://cdn.example/" + episode + "/master.m3u8"}},
		Headers:       map[string]string{"Referer": "https://site.example/"},
		Subtitles:     []SubtitleTrack{{Lang: "English", URL: "https://cdn.example/en.vtt"}},
	}
}

func withIntro(spec Spec, start, end float64) Spec {
	spec.Intro = &skip.Window{Start: start, End: end}
	return spec
}

func hasPrefix(calls []string, prefix string) bool {
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
