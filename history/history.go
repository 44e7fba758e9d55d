// Package history is the default, file-backed watch progress and bookmark store.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kitsune-cli/kitsune/bookmark"
	"github.com/kitsune-cli/kitsune/filesystem"
	"github.com/kitsune-cli/kitsune/progress"
	"github.com/metafates/gache"
	"github.com/samber/lo"
)

// Store keeps records and bookmarks in two JSON files through gache.
type Store struct {
	mu        sync.Mutex
	records   *gache.Cache[map[string]*progress.Record]
	bookmarks *gache.Cache[map[string]*bookmark.Bookmark]
	now       func() time.Time
}

// New opens a store backed by the given files.
func New(progressPath, bookmarksPath string) *Store {
	return &Store{
		records: gache.New[map[string]*progress.Record](&gache.Options{
			Path:       progressPath,
			FileSystem: &filesystem.GacheFs{},
		}),
		bookmarks: gache.New[map[string]*bookmark.Bookmark](&gache.Options{
			Path:       bookmarksPath,
			FileSystem: &filesystem.GacheFs{},
		}),
		now: time.Now,
	}
}

func (s *Store) loadRecords() (map[string]*progress.Record, error) {
	cached, expired, err := s.records.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*progress.Record), nil
	}
	return cached, nil
}

func (s *Store) loadBookmarks() (map[string]*bookmark.Bookmark, error) {
	cached, expired, err := s.bookmarks.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*bookmark.Bookmark), nil
	}
	return cached, nil
}

// commit stores next. gache keeps a value in memory even when writing the file fails,
// so on failure the previous value is put back.
func commit[T any](cache *gache.Cache[T], previous, next T) error {
	if err := cache.Set(next); err != nil {
		_ = cache.Set(previous)
		return err
	}
	return nil
}

// Upsert creates or updates the record for key.
func (s *Store) Upsert(_ context.Context, key progress.Key, p progress.Progress) (string, error) {
	if key.Owner == "" {
		return "", progress.ErrNoOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadRecords()
	if err != nil {
		return "", err
	}

	now := s.now()
	record := progress.Record{
		ID:        uuid.NewString(),
		Owner:     key.Owner,
		EpisodeID: key.Episode,
		CreatedAt: now,
	}
	if existing, ok := saved[key.String()]; ok {
		record = *existing
	}
	record.EpisodeNumber = p.EpisodeNumber
	record.Position = p.Position
	record.Duration = p.Duration
	record.UpdatedAt = now

	next := lo.Assign(saved, map[string]*progress.Record{key.String(): &record})
	if err := commit(s.records, saved, next); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Find returns the record for key or nil.
func (s *Store) Find(_ context.Context, key progress.Key) (*progress.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadRecords()
	if err != nil {
		return nil, err
	}
	record, ok := saved[key.String()]
	if !ok {
		return nil, nil
	}
	c := *record
	return &c, nil
}

// List returns all records, most recently updated first.
func (s *Store) List(_ context.Context) ([]*progress.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadRecords()
	if err != nil {
		return nil, err
	}

	records := make([]*progress.Record, 0, len(saved))
	for _, r := range saved {
		c := *r
		records = append(records, &c)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

// Remove deletes the record for key.
func (s *Store) Remove(_ context.Context, key progress.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadRecords()
	if err != nil {
		return err
	}
	next := lo.OmitByKeys(saved, []string{key.String()})
	return commit(s.records, saved, next)
}

// EnsureWatching creates or refreshes the owner's bookmark for contentID with the watching status.
func (s *Store) EnsureWatching(_ context.Context, owner, contentID, title, thumbnail string) (string, error) {
	if owner == "" {
		return "", bookmark.ErrNoOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadBookmarks()
	if err != nil {
		return "", err
	}

	now := s.now()
	k := bookmark.Key(owner, contentID)
	b := bookmark.Bookmark{
		ID:        uuid.NewString(),
		Owner:     owner,
		ContentID: contentID,
		CreatedAt: now,
	}
	if existing, ok := saved[k]; ok {
		b = *existing
	}
	b.Title = title
	b.Thumbnail = thumbnail
	b.Status = bookmark.StatusWatching
	b.UpdatedAt = now

	next := lo.Assign(saved, map[string]*bookmark.Bookmark{k: &b})
	if err := commit(s.bookmarks, saved, next); err != nil {
		return "", err
	}
	return b.ID, nil
}

// Bookmarks returns the owner's bookmarks, most recently updated first.
func (s *Store) Bookmarks(_ context.Context, owner string) ([]*bookmark.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadBookmarks()
	if err != nil {
		return nil, err
	}

	var owned []*bookmark.Bookmark
	for _, b := range saved {
		if b.Owner == owner {
			c := *b
			owned = append(owned, &c)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].UpdatedAt.After(owned[j].UpdatedAt)
	})
	return owned, nil
}
