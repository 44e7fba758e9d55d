package progress

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type memStore struct {
	mu      sync.Mutex
	records map[Key]*Record
	upserts int
	fail    bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[Key]*Record)}
}

func (m *memStore) Upsert(_ context.Context, key Key, p Progress) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.fail {
		return "", errors.New("store offline")
	}
	r, ok := m.records[key]
	if !ok {
		r = &Record{ID: "rec-" + strconv.Itoa(len(m.records)+1), Owner: key.Owner, EpisodeID: key.Episode}
		m.records[key] = r
	}
	r.Position, r.Duration, r.EpisodeNumber = p.Position, p.Duration, p.EpisodeNumber
	return r.ID, nil
}

func (m *memStore) Find(_ context.Context, key Key) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

var key = Key{Owner: "bookmark-1", Episode: "ep-1"}

func newSync(store Store, c *clock) *Synchronizer {
	return NewSynchronizer(store, key, Options{Now: c.now, EpisodeNumber: 3})
}

func TestSynchronizer(t *testing.T) {
	Convey("Given a fresh synchronizer", t, func() {
		store := newMemStore()
		c := &clock{t: time.Unix(1_700_000_000, 0)}
		s := newSync(store, c)

		Convey("Stopping at 9.9s never creates a record", func() {
			for pos := 0.0; pos < 10; pos += 0.3 {
				s.OnTick(pos, 1400)
				c.advance(300 * time.Millisecond)
			}
			s.OnTick(9.9, 1400)
			s.OnInteraction(9.9, 1400)
			So(s.OnTeardown(context.Background(), 9.9, 1400), ShouldBeNil)
			So(store.count(), ShouldEqual, 0)
			So(store.writes(), ShouldEqual, 0)
			So(s.HasMetMinWatchTime(), ShouldBeFalse)
		})

		Convey("Reaching 10s creates exactly one record immediately", func() {
			s.OnTick(9.9, 1400)
			s.OnTick(10.0, 1400)
			s.Wait()
			So(store.count(), ShouldEqual, 1)
			So(store.writes(), ShouldEqual, 1)
			So(s.RecordID(), ShouldEqual, "rec-1")
			So(s.HasMetMinWatchTime(), ShouldBeTrue)

			Convey("Later ticks are throttled", func() {
				c.advance(5 * time.Second)
				s.OnTick(15, 1400)
				s.Wait()
				So(store.writes(), ShouldEqual, 1)

				c.advance(5 * time.Second)
				s.OnTick(20, 1400)
				s.Wait()
				So(store.writes(), ShouldEqual, 2)
				So(store.count(), ShouldEqual, 1)
			})

			Convey("Interactions bypass the throttle", func() {
				s.OnInteraction(11, 1400)
				s.Wait()
				So(store.writes(), ShouldEqual, 2)
			})

			Convey("Falling back below the minimum stays gated open", func() {
				s.OnInteraction(2, 1400)
				s.Wait()
				rec, _ := store.Find(context.Background(), key)
				So(rec.Position, ShouldEqual, 2)
			})
		})

		Convey("Interactions without a known duration are ignored", func() {
			s.OnTick(12, 0)
			s.OnInteraction(12, 0)
			s.Wait()
			So(store.writes(), ShouldEqual, 0)

			Convey("The first tick with a duration writes at once", func() {
				s.OnTick(13, 1400)
				s.Wait()
				So(store.writes(), ShouldEqual, 1)
				rec, _ := store.Find(context.Background(), key)
				So(rec.Position, ShouldEqual, 13)
				So(rec.Duration, ShouldEqual, 1400)
			})
		})

		Convey("Teardown writes the final position", func() {
			s.OnTick(10, 1400)
			c.advance(2 * time.Second)
			s.OnTick(12, 1400)
			So(s.OnTeardown(context.Background(), 13.5, 1400), ShouldBeNil)
			rec, _ := store.Find(context.Background(), key)
			So(rec.Position, ShouldEqual, 13.5)
			So(rec.EpisodeNumber, ShouldEqual, 3)
		})
	})

	Convey("Given concurrent ticks and interactions", t, func() {
		store := newMemStore()
		s := NewSynchronizer(store, key, Options{Interval: time.Nanosecond})

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				s.OnTick(float64(10+i), 1400)
			}(i)
			go func(i int) {
				defer wg.Done()
				s.OnInteraction(float64(100+i), 1400)
			}(i)
		}
		wg.Wait()

		So(s.OnTeardown(context.Background(), 777, 1400), ShouldBeNil)

		Convey("Exactly one record holds the last position", func() {
			So(store.count(), ShouldEqual, 1)
			rec, _ := store.Find(context.Background(), key)
			So(rec.Position, ShouldEqual, 777)
		})
	})

	Convey("Given a prior record", t, func() {
		store := newMemStore()
		_, _ = store.Upsert(context.Background(), key, Progress{Position: 750, Duration: 1400})
		c := &clock{t: time.Unix(1_700_000_000, 0)}
		s := newSync(store, c)

		position, err := s.Prime(context.Background())
		So(err, ShouldBeNil)
		So(position.MustGet(), ShouldEqual, 750)
		So(s.RecordID(), ShouldEqual, "rec-1")

		Convey("Early positions still update the existing record", func() {
			s.OnInteraction(4, 1400)
			s.Wait()
			rec, _ := store.Find(context.Background(), key)
			So(rec.Position, ShouldEqual, 4)
			So(store.count(), ShouldEqual, 1)
		})
	})

	Convey("Given a failing store", t, func() {
		store := newMemStore()
		store.fail = true
		s := NewSynchronizer(store, key, Options{})

		Convey("Teardown reports the failure without panicking", func() {
			s.OnTick(20, 1400)
			err := s.OnTeardown(context.Background(), 21, 1400)
			So(err, ShouldNotBeNil)
			So(s.RecordID(), ShouldBeEmpty)
		})
	})

	Convey("Without an owner every call is a no-op", t, func() {
		store := newMemStore()
		s := NewSynchronizer(store, Key{Episode: "ep-1"}, Options{})
		So(s.Enabled(), ShouldBeFalse)
		s.OnTick(100, 1400)
		s.OnInteraction(100, 1400)
		So(s.OnTeardown(context.Background(), 100, 1400), ShouldBeNil)
		position, err := s.Prime(context.Background())
		So(err, ShouldBeNil)
		So(position.IsAbsent(), ShouldBeTrue)
		So(store.writes(), ShouldEqual, 0)

		var nilSync *Synchronizer
		So(nilSync.Enabled(), ShouldBeFalse)
		So(func() { nilSync.OnTick(20, 1400) }, ShouldNotPanic)
	})
}

func TestRecord(t *testing.T) {
	Convey("Percentage", t, func() {
		So((&Record{Position: 700, Duration: 1400}).Percentage(), ShouldEqual, 50)
		So((&Record{Position: 10}).Percentage(), ShouldEqual, 0)
		So((&Record{Position: 2000, Duration: 1400}).Percentage(), ShouldEqual, 100)
		var r *Record
		So(r.Percentage(), ShouldEqual, 0)
	})
}
