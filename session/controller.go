// Package session runs one playback session at a time on a media surface.
//
// A Controller owns the current Spec, its engine handle, skip machine and progress
// synchronizer. All state changes happen on a single event loop goroutine; attach,
// persistence and teardown run on their own goroutines and report back to the loop.
// A replacement Spec never attaches before the previous session's teardown has settled.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kitsune-cli/kitsune/bookmark"
	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/metrics"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/progress"
	"github.com/kitsune-cli/kitsune/skip"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by calls on a closed controller.
var ErrClosed = errors.New("session: controller closed")

const (
	defaultInitialSeekDelay = 100 * time.Millisecond
	// initialSeekMargin keeps a resume from landing at the very end.
	initialSeekMargin = 5
	attachTimeout     = 15 * time.Second
)

// Lookup finds skip windows for a spec that carries none.
type Lookup func(ctx context.Context, spec Spec) (skip.Windows, error)

// Options configure a Controller. Surface and Adapter are required.
type Options struct {
	Surface player.Surface
	Adapter *engine.Adapter
	Host    Host

	// Progress is nil when history is disabled. Owner empty means nobody is signed in.
	Progress  progress.Store
	Bookmarks bookmark.Service
	Owner     string

	Mode             skip.Mode
	Skips            Lookup
	ProgressOptions  progress.Options
	InitialSeekDelay time.Duration
	LoadSettle       time.Duration
	// ProxyURL routes sources and subtitles through an m3u8 proxy when set.
	ProxyURL string
}

// Controller is the playback session state machine.
type Controller struct {
	opts     Options
	log      *logrus.Entry
	teardown *Sequencer

	inbox    chan func()
	quit     chan struct{}
	loopDone chan struct{}

	stateMu sync.RWMutex
	state   State

	// owned by the loop
	current *session
	pending *Spec
	mode    skip.Mode
	waiters []chan struct{}
	closing bool
	exit    bool
}

// New starts a controller on opts.Surface.
func New(opts Options) *Controller {
	if opts.Host == nil {
		opts.Host = NopHost{}
	}
	if opts.InitialSeekDelay <= 0 {
		opts.InitialSeekDelay = defaultInitialSeekDelay
	}

	c := &Controller{
		opts:     opts,
		log:      log.WithFields(logrus.Fields{"component": "session", "surface": opts.Surface.ID()}),
		teardown: NewSequencer(opts.LoadSettle),
		inbox:    make(chan func(), 64),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
		mode:     opts.Mode,
	}
	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.loopDone)
	for fn := range c.inbox {
		fn()
		if c.exit {
			close(c.quit)
			return
		}
	}
}

func (c *Controller) do(fn func()) error {
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	select {
	case c.inbox <- fn:
		return nil
	case <-c.quit:
		return ErrClosed
	}
}

func (c *Controller) post(fn func()) bool {
	return c.do(fn) == nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Submit replaces the active spec. An incomplete spec leaves the controller idle.
func (c *Controller) Submit(spec Spec) error {
	return c.do(func() { c.submit(spec) })
}

// Unmount tears the active session down and returns to idle.
func (c *Controller) Unmount() error {
	return c.do(func() { c.terminate(nil) })
}

// SkipPressed handles a click on the skip control.
func (c *Controller) SkipPressed() error {
	return c.do(c.skipPressed)
}

// SetMode switches between automatic and manual skipping.
func (c *Controller) SetMode(mode skip.Mode) error {
	return c.do(func() { c.setMode(mode) })
}

// Close tears down the active session and stops the controller.
func (c *Controller) Close(ctx context.Context) error {
	done := make(chan struct{})
	if err := c.do(func() { c.beginClose(done) }); err != nil {
		return nil
	}
	select {
	case <-done:
	case <-c.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) setState(s State) {
	c.stateMu.Lock()
	if c.state == s {
		c.stateMu.Unlock()
		return
	}
	from := c.state
	c.state = s
	c.stateMu.Unlock()

	metrics.Sessions.WithLabelValues(s.String()).Inc()
	entry := c.log
	if c.current != nil {
		entry = c.current.log
	}
	entry.Infof("%s -> %s", from, s)
	c.opts.Host.StateChanged(s)
}

func (c *Controller) live(s *session) bool {
	state := c.State()
	return s != nil && s == c.current && state != Terminating && state != Idle
}

func (c *Controller) submit(spec Spec) {
	if c.closing {
		return
	}
	switch {
	case c.State() == Terminating:
		c.log.Debug("teardown in flight, queueing spec")
		c.pending = &spec
	case c.current != nil:
		c.terminate(&spec)
	default:
		c.start(spec)
	}
}

func (c *Controller) start(spec Spec) {
	if !spec.Complete() {
		c.log.Info("spec is missing a source or referer, staying idle")
		return
	}

	id := uuid.NewString()
	s := newSession(id, spec, c.opts.Surface, c.mode, log.WithSession(id))
	c.current = s
	c.setState(Initializing)
	s.log.Infof("starting %s", spec.Identity())

	// taken on the loop so the attach never waits on its own teardown
	settled := c.teardown.Settled()
	go c.attach(s, settled)
}

// attach runs off the loop. It waits for the previous teardown to settle before touching the surface.
func (c *Controller) attach(s *session, settled <-chan struct{}) {
	<-settled

	ctx, cancel := context.WithTimeout(context.Background(), attachTimeout)
	defer cancel()

	var res attachResult
	res.syncer = c.synchronizer(ctx, s)

	prior, err := res.syncer.Prime(ctx)
	if err != nil {
		s.log.WithError(err).Warn("could not load watch progress")
	}
	res.prior = prior

	if c.opts.Skips != nil && s.windows.Intro.IsAbsent() && s.windows.Outro.IsAbsent() {
		w, err := c.opts.Skips(ctx, s.spec)
		if err != nil {
			s.log.WithError(err).Warn("skip window lookup failed")
		} else {
			res.found = mo.Some(w)
		}
	}

	res.handle, res.err = c.opts.Adapter.Attach(ctx, c.opts.Surface, s.spec.AttachSpec(c.opts.ProxyURL))

	if !s.finishAttach(res) {
		s.log.Debug("session superseded during attach, detaching")
		res.handle.Detach(ctx)
		return
	}
	c.post(func() { c.attached(s) })
}

func (c *Controller) synchronizer(ctx context.Context, s *session) *progress.Synchronizer {
	opts := c.opts.ProgressOptions
	opts.EpisodeNumber = s.spec.EpisodeNumber
	opts.Logger = s.log

	if c.opts.Progress == nil || c.opts.Owner == "" {
		return progress.NewSynchronizer(nil, progress.Key{}, opts)
	}

	owner := c.opts.Owner
	if c.opts.Bookmarks != nil {
		id, err := c.opts.Bookmarks.EnsureWatching(ctx, owner, s.spec.ContentID, s.spec.Title, s.spec.Thumbnail)
		if err != nil {
			s.log.WithError(err).Warn("could not mark as watching, history disabled for this session")
			return progress.NewSynchronizer(nil, progress.Key{}, opts)
		}
		owner = id
	}

	return progress.NewSynchronizer(c.opts.Progress, progress.Key{Owner: owner, Episode: s.spec.EpisodeID}, opts)
}

func (c *Controller) attached(s *session) {
	if s != c.current || c.State() != Initializing {
		return
	}

	if s.attachErr != nil {
		s.log.WithError(s.attachErr).Error("attach failed")
		c.opts.Host.Notice(attachNotice(s.attachErr))
		c.terminate(nil)
		return
	}

	if w, ok := s.found.Get(); ok {
		s.windows = w
		s.machine = skip.NewMachine(w, c.mode)
	}

	events, unsubscribe := c.opts.Surface.Subscribe()
	s.addListener(unsubscribe)
	go c.forwardSurface(s, events)
	go c.forwardEngine(s, s.handle.Events())
}

func attachNotice(err error) string {
	if errors.Is(err, engine.ErrNoSources) {
		return constant.NoSourcesMessage
	}
	return constant.PlaybackErrorMessage
}

func (c *Controller) forwardSurface(s *session, events <-chan player.Event) {
	for e := range events {
		if s.isStopped() {
			continue
		}
		if !c.post(func() { c.onSurface(s, e) }) {
			return
		}
	}
}

func (c *Controller) forwardEngine(s *session, events <-chan engine.Event) {
	for e := range events {
		if s.isStopped() {
			continue
		}
		if !c.post(func() { c.onEngine(s, e) }) {
			return
		}
	}
}

func (c *Controller) onEngine(s *session, e engine.Event) {
	if !c.live(s) {
		return
	}

	switch e.Kind {
	case engine.EventReady:
		if !s.ready {
			s.ready = true
			c.setState(Ready)
		}
		c.opts.Host.Tracks(e.Tracks)
		c.onDuration(s)
	case engine.EventTrackInfo:
		c.opts.Host.Tracks(e.Tracks)
	case engine.EventLevelLoaded:
		if e.Level.Duration > 0 {
			s.levelSeconds = e.Level.Duration
		}
		c.onDuration(s)
	case engine.EventError:
		if e.Message != "" {
			c.opts.Host.Notice(e.Message)
		}
		if e.Terminal {
			s.log.Error("stream recovery exhausted")
		}
	}
}

func (c *Controller) onSurface(s *session, e player.Event) {
	if !c.live(s) {
		return
	}
	s.track(e.Position, e.Duration)
	if !s.ready {
		return
	}
	position, duration := e.Position, c.duration(s)

	switch e.Kind {
	case player.EventTimeUpdate:
		if c.State() == Ready {
			c.setState(Playing)
		}
		c.applySkip(s, position, duration)
		s.syncer.OnTick(position, duration)
		c.onDuration(s)
	case player.EventLoaded:
		c.onDuration(s)
	case player.EventPaused:
		c.setState(Paused)
		s.syncer.OnInteraction(position, duration)
	case player.EventResumed:
		c.setState(Playing)
	case player.EventSeeked:
		c.applySkip(s, position, duration)
		s.syncer.OnInteraction(position, duration)
	case player.EventEnded:
		s.syncer.OnInteraction(position, duration)
	case player.EventError:
		s.log.Warnf("surface error: %s", e.Detail)
	case player.EventClosed:
		s.log.Info("surface closed")
		c.terminate(nil)
	}
}

func (c *Controller) duration(s *session) float64 {
	if _, d := s.snapshot(); d > 0 {
		return d
	}
	return s.levelSeconds
}

// onDuration runs the one-time work that needs a known duration: chapters and the initial seek.
func (c *Controller) onDuration(s *session) {
	if !s.ready || s.seekDecided {
		return
	}
	duration := c.duration(s)
	if duration <= 0 {
		return
	}
	s.seekDecided = true

	if err := c.opts.Surface.SetChapters(skip.Chapters(s.windows, duration)); err != nil {
		s.log.WithError(err).Debug("set chapters")
	}

	resume := s.spec.InitialSeek()
	if resume.IsAbsent() {
		resume = s.prior
	}
	target, ok := resume.Get()
	if !ok || target <= 0 || target >= duration-initialSeekMargin {
		return
	}

	s.schedule(c.opts.InitialSeekDelay, func() {
		c.post(func() { c.initialSeek(s, target) })
	})
}

func (c *Controller) initialSeek(s *session, target float64) {
	if !c.live(s) {
		return
	}
	if err := c.opts.Surface.Seek(target); err != nil {
		s.log.WithError(err).Warn("initial seek")
		return
	}
	s.log.Infof("resumed at %.1fs", target)
}

func (c *Controller) applySkip(s *session, position, duration float64) {
	action := s.machine.Next(position, duration)
	switch action.Kind {
	case skip.AutoSeek:
		s.log.Debugf("skipping %s to %.1fs", action.Label, action.Target)
		if err := c.opts.Surface.Seek(action.Target); err != nil {
			s.log.WithError(err).Warn("auto skip")
		}
	case skip.ShowControl:
		c.opts.Host.SkipControl(true, action.Label)
	case skip.HideControl:
		c.opts.Host.SkipControl(false, "")
	}
}

func (c *Controller) skipPressed() {
	s := c.current
	if !c.live(s) || !s.ready {
		return
	}
	position, _ := s.snapshot()
	duration := c.duration(s)

	target, ok := s.machine.Press(position, duration)
	if !ok {
		return
	}
	c.opts.Host.SkipControl(false, "")
	if err := c.opts.Surface.Seek(target); err != nil {
		s.log.WithError(err).Warn("skip")
		return
	}
	s.track(target, duration)
	s.syncer.OnInteraction(target, duration)
}

func (c *Controller) setMode(mode skip.Mode) {
	c.mode = mode
	s := c.current
	if !c.live(s) {
		return
	}
	if action := s.machine.SetMode(mode); action.Kind == skip.HideControl {
		c.opts.Host.SkipControl(false, "")
	}
}

// terminate tears down the current session and starts next once it settles.
func (c *Controller) terminate(next *Spec) {
	c.pending = next
	if c.State() == Terminating {
		return
	}

	s := c.current
	if s == nil {
		c.pending = nil
		if next != nil {
			c.start(*next)
		}
		return
	}

	c.setState(Terminating)
	c.opts.Host.SkipControl(false, "")

	done := c.teardown.Teardown(s)
	go func() {
		<-done
		c.post(func() { c.settled(s) })
	}()
}

func (c *Controller) settled(s *session) {
	if c.current == s {
		c.current = nil
	}
	c.setState(Idle)

	if c.closing {
		c.finishClose()
		return
	}
	if next := c.pending; next != nil {
		c.pending = nil
		c.start(*next)
	}
}

func (c *Controller) beginClose(done chan struct{}) {
	c.waiters = append(c.waiters, done)
	c.closing = true
	c.pending = nil
	if c.current == nil {
		c.finishClose()
		return
	}
	c.terminate(nil)
}

func (c *Controller) finishClose() {
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
	c.exit = true
}
