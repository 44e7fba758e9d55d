package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/metrics"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
)

// Options tune a Synchronizer.
type Options struct {
	// Interval is the minimum time between throttled saves.
	Interval time.Duration
	// MinWatch is the position, in seconds, at which a record is first created.
	MinWatch float64
	// Timeout bounds a single store call.
	Timeout time.Duration

	EpisodeNumber int

	Now    func() time.Time
	Logger *logrus.Entry
}

// DefaultOptions returns the stock persistence timings.
func DefaultOptions() Options {
	return Options{
		Interval: 10 * time.Second,
		MinWatch: 10,
		Timeout:  5 * time.Second,
	}
}

// Synchronizer decides when playback positions are written to a Store.
// Tick and interaction calls never block; the store call runs on its own goroutine.
// Store calls for one synchronizer are serialized and a write issued earlier never
// overwrites one issued later.
type Synchronizer struct {
	store Store
	key   Key
	opts  Options
	log   *logrus.Entry

	mu            sync.Mutex
	hasMetMin     bool
	recordID      string
	lastPersistAt time.Time
	issued        uint64

	writeMu sync.Mutex
	applied uint64
	pending sync.WaitGroup
}

// NewSynchronizer returns a synchronizer for key. A nil store or an invalid key yields
// a synchronizer whose every call is a no-op.
func NewSynchronizer(store Store, key Key, opts Options) *Synchronizer {
	defaults := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.MinWatch <= 0 {
		opts.MinWatch = defaults.MinWatch
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithFields(logrus.Fields{})
	}

	return &Synchronizer{
		store: store,
		key:   key,
		opts:  opts,
		log:   logger.WithField("progress", key.String()),
	}
}

// Enabled reports whether the synchronizer persists anything at all.
func (s *Synchronizer) Enabled() bool {
	return s != nil && s.store != nil && s.key.Valid()
}

// HasMetMinWatchTime reports whether playback has reached the minimum watch position.
func (s *Synchronizer) HasMetMinWatchTime() bool {
	if !s.Enabled() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMetMin
}

// RecordID returns the id of the persisted record, or "" if none exists yet.
func (s *Synchronizer) RecordID() string {
	if !s.Enabled() {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordID
}

// Prime loads a previously stored record. It returns the stored position when one exists.
func (s *Synchronizer) Prime(ctx context.Context) (mo.Option[float64], error) {
	if !s.Enabled() {
		return mo.None[float64](), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	record, err := s.store.Find(ctx, s.key)
	if err != nil {
		return mo.None[float64](), fmt.Errorf("find progress: %w", err)
	}
	if record == nil {
		return mo.None[float64](), nil
	}

	s.mu.Lock()
	s.recordID = record.ID
	if record.Position >= s.opts.MinWatch {
		s.hasMetMin = true
	}
	s.mu.Unlock()

	return mo.Some(record.Position), nil
}

// OnTick handles a periodic position update.
func (s *Synchronizer) OnTick(position, duration float64) {
	if !s.Enabled() {
		return
	}

	s.mu.Lock()
	now := s.opts.Now()
	crossed := false
	if !s.hasMetMin && position >= s.opts.MinWatch {
		s.hasMetMin = true
		crossed = true
	}

	var seq uint64
	switch {
	case crossed && s.recordID == "" && duration > 0:
		seq = s.issueLocked(now)
	case s.gateLocked(duration) && now.Sub(s.lastPersistAt) >= s.opts.Interval:
		seq = s.issueLocked(now)
	}
	s.mu.Unlock()

	if seq > 0 {
		s.persistAsync(seq, position, duration)
	}
}

// OnInteraction handles a user pause or seek. It bypasses the throttle.
func (s *Synchronizer) OnInteraction(position, duration float64) {
	if !s.Enabled() {
		return
	}

	s.mu.Lock()
	if !s.hasMetMin && position >= s.opts.MinWatch {
		s.hasMetMin = true
	}
	var seq uint64
	if s.gateLocked(duration) {
		seq = s.issueLocked(s.opts.Now())
	}
	s.mu.Unlock()

	if seq > 0 {
		s.persistAsync(seq, position, duration)
	}
}

// OnTeardown waits for pending writes and performs one final write.
// The returned error is informational; callers log it and carry on.
func (s *Synchronizer) OnTeardown(ctx context.Context, position, duration float64) error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	if !s.hasMetMin && position >= s.opts.MinWatch {
		s.hasMetMin = true
	}
	var seq uint64
	if s.gateLocked(duration) {
		seq = s.issueLocked(s.opts.Now())
	}
	s.mu.Unlock()

	s.pending.Wait()
	if seq == 0 {
		return nil
	}
	return s.persist(ctx, seq, position, duration)
}

// Wait blocks until every pending write has finished.
func (s *Synchronizer) Wait() {
	if s.Enabled() {
		s.pending.Wait()
	}
}

func (s *Synchronizer) gateLocked(duration float64) bool {
	return duration > 0 && (s.hasMetMin || s.recordID != "")
}

func (s *Synchronizer) issueLocked(now time.Time) uint64 {
	s.lastPersistAt = now
	s.issued++
	return s.issued
}

func (s *Synchronizer) persistAsync(seq uint64, position, duration float64) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.persist(context.Background(), seq, position, duration); err != nil {
			s.log.WithError(err).Warn("persist progress")
		}
	}()
}

func (s *Synchronizer) persist(ctx context.Context, seq uint64, position, duration float64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if seq < s.applied {
		s.log.Tracef("dropping superseded write %d", seq)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	id, err := s.store.Upsert(ctx, s.key, Progress{
		EpisodeNumber: s.opts.EpisodeNumber,
		Position:      position,
		Duration:      duration,
	})
	if err != nil {
		metrics.ProgressWrites.WithLabelValues("failed").Inc()
		return fmt.Errorf("upsert progress: %w", err)
	}
	metrics.ProgressWrites.WithLabelValues("ok").Inc()

	s.applied = seq
	s.mu.Lock()
	s.recordID = id
	s.mu.Unlock()
	s.log.Tracef("persisted %.1f/%.1f", position, duration)
	return nil
}
