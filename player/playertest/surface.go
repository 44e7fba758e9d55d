// Package playertest provides an in-memory player.Surface for tests.
package playertest

import (
	"context"
	"sync"

	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/skip"
)

// Surface records every call and lets tests drive events.
type Surface struct {
	id string

	mu        sync.Mutex
	position  float64
	duration  float64
	paused    bool
	loaded    []string
	lastLoad  player.LoadOptions
	seeks     []float64
	resets    int
	subtitles []player.Subtitle
	chapters  []skip.Chapter
	subs      map[int]chan player.Event
	nextSub   int
	seekErr   error
}

// NewSurface returns a surface identified by id.
func NewSurface(id string) *Surface {
	return &Surface{id: id, subs: make(map[int]chan player.Event)}
}

func (s *Surface) ID() string { return s.id }

func (s *Surface) Load(_ context.Context, url string, opts player.LoadOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = append(s.loaded, url)
	s.lastLoad = opts
	return nil
}

func (s *Surface) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *Surface) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

func (s *Surface) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seekErr != nil {
		return s.seekErr
	}
	s.seeks = append(s.seeks, seconds)
	s.position = seconds
	return nil
}

func (s *Surface) Position() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}

func (s *Surface) Duration() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration, nil
}

func (s *Surface) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.position, s.duration = 0, 0
	return nil
}

func (s *Surface) AddSubtitle(sub player.Subtitle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subtitles = append(s.subtitles, sub)
	return nil
}

func (s *Surface) SetChapters(chapters []skip.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters = chapters
	return nil
}

func (s *Surface) Subscribe() (<-chan player.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan player.Event, 64)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Emit delivers e to all subscribers and updates the playhead.
func (s *Surface) Emit(e player.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Kind == player.EventTimeUpdate || e.Kind == player.EventLoaded {
		s.position, s.duration = e.Position, e.Duration
	}
	for _, c := range s.subs {
		select {
		case c <- e:
		default:
		}
	}
}

// SetPlayhead sets what Position and Duration return.
func (s *Surface) SetPlayhead(position, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position, s.duration = position, duration
}

// FailSeeks makes every following Seek return err.
func (s *Surface) FailSeeks(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekErr = err
}

func (s *Surface) Seeks() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.seeks...)
}

func (s *Surface) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loaded...)
}

// LastLoad returns the options of the most recent Load.
func (s *Surface) LastLoad() player.LoadOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoad
}

func (s *Surface) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

func (s *Surface) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Surface) Subtitles() []player.Subtitle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]player.Subtitle(nil), s.subtitles...)
}

func (s *Surface) Chapters() []skip.Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]skip.Chapter(nil), s.chapters...)
}

// Subscribers returns the number of open subscriptions.
func (s *Surface) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
