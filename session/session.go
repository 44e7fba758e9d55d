package session

import (
	"sync"
	"time"

	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/progress"
	"github.com/kitsune-cli/kitsune/skip"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
)

// session is everything one Spec owns while attached to the surface.
type session struct {
	id      string
	spec    Spec
	surface player.Surface
	log     *logrus.Entry

	// attachDone is closed once the attach attempt has finished. The fields below it
	// are written under mu before the close.
	attachDone chan struct{}
	claimed    bool
	handle     *engine.Handle
	syncer     *progress.Synchronizer
	prior      mo.Option[float64]
	found      mo.Option[skip.Windows]
	attachErr  error

	// stopped is closed when event listeners are detached.
	stopped  chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	listeners []func()
	timers    []*time.Timer
	released  bool
	position  float64
	duration  float64

	// owned by the controller loop
	machine      *skip.Machine
	windows      skip.Windows
	ready        bool
	seekDecided  bool
	levelSeconds float64
}

// attachResult is what the attach goroutine hands back.
type attachResult struct {
	handle *engine.Handle
	syncer *progress.Synchronizer
	prior  mo.Option[float64]
	found  mo.Option[skip.Windows]
	err    error
}

func newSession(id string, spec Spec, surface player.Surface, mode skip.Mode, log *logrus.Entry) *session {
	return &session{
		id:         id,
		spec:       spec,
		surface:    surface,
		log:        log,
		attachDone: make(chan struct{}),
		stopped:    make(chan struct{}),
		machine:    skip.NewMachine(spec.Windows(), mode),
		windows:    spec.Windows(),
	}
}

// finishAttach records the attach outcome. It returns false when teardown already
// claimed the session, in which case the caller owns the handle and must detach it.
func (s *session) finishAttach(res attachResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(s.attachDone)

	if s.claimed {
		return false
	}
	s.handle, s.syncer, s.prior, s.found, s.attachErr = res.handle, res.syncer, res.prior, res.found, res.err
	return true
}

// claim hands the attached resources to teardown. Later attach results are refused.
func (s *session) claim() (*engine.Handle, *progress.Synchronizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimed = true
	return s.handle, s.syncer
}

// addListener registers a detach function, running it at once if listeners are already gone.
func (s *session) addListener(stop func()) {
	s.mu.Lock()
	if s.isStopped() {
		s.mu.Unlock()
		stop()
		return
	}
	s.listeners = append(s.listeners, stop)
	s.mu.Unlock()
}

func (s *session) isStopped() bool {
	select {
	case <-s.stopped:
		return true
	default:
		return false
	}
}

func (s *session) detachListeners() {
	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	s.stopOnce.Do(func() { close(s.stopped) })
	s.mu.Unlock()

	for _, stop := range listeners {
		stop()
	}
}

// schedule runs fn after d unless timers are released first.
func (s *session) schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.timers = append(s.timers, time.AfterFunc(d, fn))
}

func (s *session) releaseTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	stopped := 0
	for _, t := range s.timers {
		if t.Stop() {
			stopped++
		}
	}
	s.timers = nil
	return stopped
}

func (s *session) track(position, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = position
	if duration > 0 {
		s.duration = duration
	}
}

func (s *session) snapshot() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.duration
}
