package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/progress"
	"github.com/kitsune-cli/kitsune/skip"
	. "github.com/smartystreets/goconvey/convey"
)

// attachedSession attaches a real adapter handle and hands it to a new session.
func attachedSession(r *rig, syncer *progress.Synchronizer) (*session, *fakeEngine) {
	spec := testSpec("ep1")
	s := newSession("s1", spec, r.surface, skip.Manual, log.WithSession("s1"))
	h, err := r.adapter.Attach(context.Background(), r.surface, spec.AttachSpec(""))
	So(err, ShouldBeNil)
	e := r.nextEngine()
	So(e, ShouldNotBeNil)
	So(s.finishAttach(attachResult{handle: h, syncer: syncer}), ShouldBeTrue)
	return s, e
}

func waitDone(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-time.After(3 * time.Second):
		return false
	}
}

func TestTeardown(t *testing.T) {
	Convey("Given an attached session", t, func() {
		r := newRig()
		s, e := attachedSession(r, progress.NewSynchronizer(nil, progress.Key{}, progress.Options{}))
		e.events <- engine.RawEvent{Kind: engine.RawManifestLoaded}
		So(eventually(func() bool { return !s.handle.Loading() }), ShouldBeTrue)

		_, unsubscribe := r.surface.Subscribe()
		s.addListener(unsubscribe)
		fired := make(chan struct{}, 1)
		s.schedule(300*time.Millisecond, func() { fired <- struct{}{} })

		q := NewSequencer(50 * time.Millisecond)

		Convey("When it is torn down", func() {
			So(waitDone(q.Teardown(s)), ShouldBeTrue)

			Convey("Then the surface is released before the engine", func() {
				So(r.log.all(), ShouldResemble, []string{
					"e1:load", "e1:attach",
					"surface:pause", "surface:reset",
					"e1:stop", "e1:detach", "e1:destroy",
				})
				So(q.lastFailures(), ShouldBeEmpty)
			})

			Convey("Then listeners, timers and the handle are gone", func() {
				So(r.surface.Subscribers(), ShouldEqual, 0)
				So(s.isStopped(), ShouldBeTrue)
				So(r.adapter.Live("surface-1"), ShouldEqual, 0)

				time.Sleep(400 * time.Millisecond)
				So(fired, ShouldBeEmpty)
			})

			Convey("Then nothing is in flight", func() {
				So(q.InFlight(), ShouldBeFalse)
				So(waitDone(q.Settled()), ShouldBeTrue)
			})
		})

		Convey("When teardown is requested twice", func() {
			first := q.Teardown(s)
			second := q.Teardown(s)

			Convey("Then both calls share one run", func() {
				So(first == second, ShouldBeTrue)
				So(waitDone(first), ShouldBeTrue)
				So(r.log.count("e1:destroy"), ShouldEqual, 1)
			})
		})

		Convey("When pausing the surface panics", func() {
			r.surface.panicPause = true
			So(waitDone(q.Teardown(s)), ShouldBeTrue)

			Convey("Then the failure is recorded and the other steps still run", func() {
				failures := q.lastFailures()
				So(failures, ShouldHaveLength, 1)
				So(failures[0].Step, ShouldEqual, StepPauseSurface)
				So(failures[0].Error(), ShouldContainSubstring, "surface gone")
				So(r.log.index("surface:reset"), ShouldBeGreaterThan, -1)
				So(r.log.index("e1:destroy"), ShouldBeGreaterThan, -1)
			})
		})
	})

	Convey("Given a session whose manifest is still loading", t, func() {
		r := newRig()
		s, e := attachedSession(r, nil)
		So(s.handle.Loading(), ShouldBeTrue)

		Convey("When the load never settles", func() {
			q := NewSequencer(150 * time.Millisecond)
			started := time.Now()
			So(waitDone(q.Teardown(s)), ShouldBeTrue)

			Convey("Then teardown waits for the settle timeout", func() {
				So(time.Since(started), ShouldBeGreaterThanOrEqualTo, 150*time.Millisecond)
				So(r.log.index("e1:destroy"), ShouldBeGreaterThan, -1)
			})
		})

		Convey("When the load settles during the wait", func() {
			q := NewSequencer(2 * time.Second)
			started := time.Now()
			done := q.Teardown(s)
			So(q.InFlight(), ShouldBeTrue)

			time.Sleep(30 * time.Millisecond)
			So(q.InFlight(), ShouldBeTrue)
			e.events <- engine.RawEvent{Kind: engine.RawManifestLoaded}

			Convey("Then teardown proceeds without the full wait", func() {
				So(waitDone(done), ShouldBeTrue)
				So(time.Since(started), ShouldBeLessThan, time.Second)
			})
		})
	})

	Convey("Given a session with watch progress", t, func() {
		r := newRig()
		ctx := context.Background()
		key := progress.Key{Owner: "bookmark-1", Episode: "ep1"}
		syncer := progress.NewSynchronizer(r.store, key, progress.Options{})
		s, e := attachedSession(r, syncer)
		e.events <- engine.RawEvent{Kind: engine.RawManifestLoaded}

		syncer.OnTick(42, 1400)
		syncer.Wait()
		s.track(50, 1400)

		Convey("When it is torn down", func() {
			So(waitDone(NewSequencer(50*time.Millisecond).Teardown(s)), ShouldBeTrue)

			Convey("Then the last position is persisted", func() {
				record, err := r.store.Find(ctx, key)
				So(err, ShouldBeNil)
				So(record, ShouldNotBeNil)
				So(record.Position, ShouldEqual, 50.0)
			})
		})
	})

	Convey("Given a session whose attach failed", t, func() {
		r := newRig()
		s := newSession("s2", testSpec("ep1"), r.surface, skip.Manual, log.WithSession("s2"))
		s.finishAttach(attachResult{err: engine.FatalError("attach", engine.ErrNoSources)})

		Convey("When it is torn down", func() {
			q := NewSequencer(50 * time.Millisecond)
			So(waitDone(q.Teardown(s)), ShouldBeTrue)

			Convey("Then the surface is left alone", func() {
				So(hasPrefix(r.log.all(), "surface:"), ShouldBeFalse)
				So(q.lastFailures(), ShouldBeEmpty)
			})
		})
	})

	Convey("Given a session claimed before its attach finished", t, func() {
		r := newRig()
		s := newSession("s3", testSpec("ep1"), r.surface, skip.Manual, log.WithSession("s3"))
		s.claim()

		Convey("Then the late attach result is refused", func() {
			So(s.finishAttach(attachResult{}), ShouldBeFalse)
			So(waitDone(s.attachDone), ShouldBeTrue)
		})
	})
}

func TestStepError(t *testing.T) {
	Convey("Given a step error", t, func() {
		cause := errors.New("boom")
		err := &StepError{Step: StepDetachEngine, Err: cause}

		Convey("Then it names the step and unwraps to the cause", func() {
			So(err.Error(), ShouldEqual, "teardown step detach-engine: boom")
			So(errors.Is(err, cause), ShouldBeTrue)
		})
	})
}
