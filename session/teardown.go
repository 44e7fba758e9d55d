package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/metrics"
	"github.com/sirupsen/logrus"
)

// Teardown step names, in execution order.
const (
	StepSettleLoad      = "settle-load"
	StepPersistProgress = "persist-progress"
	StepDetachListeners = "detach-listeners"
	StepPauseSurface    = "pause-surface"
	StepResetSurface    = "reset-surface"
	StepDetachEngine    = "detach-engine"
	StepReleaseTimers   = "release-timers"
)

const (
	defaultSettle      = time.Second
	persistTimeout     = 5 * time.Second
	detachTimeout      = 5 * time.Second
	attachWaitDeadline = 15 * time.Second
)

// StepError is a teardown step failure. It is logged and never returned to callers.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("teardown step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Sequencer releases a session in a fixed order. Concurrent requests collapse into the
// one in flight, and Settled lets the next session wait for it.
type Sequencer struct {
	settle time.Duration
	log    *logrus.Entry

	mu      sync.Mutex
	current chan struct{}
	target  *session

	// failed collects step failures of the last run; used by tests.
	failed []*StepError
}

// NewSequencer returns a sequencer that waits up to settle for an in-flight load.
func NewSequencer(settle time.Duration) *Sequencer {
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Sequencer{
		settle: settle,
		log:    log.WithFields(logrus.Fields{"component": "teardown"}),
	}
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Settled returns a channel closed once no teardown is in flight.
func (q *Sequencer) Settled() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return closedChan
	}
	return q.current
}

// InFlight reports whether a teardown is running.
func (q *Sequencer) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current != nil
}

// Teardown starts releasing s and returns a channel closed when it settles.
// A request while another teardown runs joins the running one.
func (q *Sequencer) Teardown(s *session) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil {
		if q.target != s {
			q.log.Warn("teardown requested while another is in flight, joining it")
		}
		return q.current
	}

	done := make(chan struct{})
	q.current, q.target = done, s
	go q.run(s, done)
	return done
}

func (q *Sequencer) run(s *session, done chan struct{}) {
	started := time.Now()
	entry := q.log.WithField("session", s.id)
	var failed []*StepError

	step := func(name string, fn func() error) {
		if err := guard(fn); err != nil {
			serr := &StepError{Step: name, Err: err}
			failed = append(failed, serr)
			metrics.TeardownStepFailures.WithLabelValues(name).Inc()
			entry.WithField("step", name).WithError(err).Warn("teardown step failed")
			return
		}
		entry.WithField("step", name).Trace("teardown step done")
	}

	// The handle only exists once the attach attempt has finished.
	waitAttach(s, entry)
	handle, syncer := s.claim()

	step(StepSettleLoad, func() error {
		if handle == nil || !handle.Loading() {
			return nil
		}
		select {
		case <-handle.Loaded():
		case <-time.After(q.settle):
			entry.Debug("load did not settle, continuing")
		}
		return nil
	})

	step(StepPersistProgress, func() error {
		if syncer == nil {
			return nil
		}
		position, duration := s.snapshot()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return syncer.OnTeardown(ctx, position, duration)
	})

	step(StepDetachListeners, func() error {
		s.detachListeners()
		return nil
	})

	step(StepPauseSurface, func() error {
		if s.surface == nil || handle == nil {
			return nil
		}
		return s.surface.Pause()
	})

	step(StepResetSurface, func() error {
		if s.surface == nil || handle == nil {
			return nil
		}
		return s.surface.Reset()
	})

	step(StepDetachEngine, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
		defer cancel()
		handle.Detach(ctx)
		return nil
	})

	step(StepReleaseTimers, func() error {
		s.releaseTimers()
		return nil
	})

	metrics.TeardownDuration.Observe(time.Since(started).Seconds())
	entry.Infof("teardown settled in %s", time.Since(started).Round(time.Millisecond))

	q.mu.Lock()
	q.current, q.target = nil, nil
	q.failed = failed
	q.mu.Unlock()
	close(done)
}

func waitAttach(s *session, entry *logrus.Entry) {
	select {
	case <-s.attachDone:
	case <-time.After(attachWaitDeadline):
		entry.Warn("attach did not finish before teardown deadline")
	}
}

// guard runs fn, turning a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (q *Sequencer) lastFailures() []*StepError {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failed
}
