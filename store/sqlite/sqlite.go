// Package sqlite stores watch progress and bookmarks in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kitsune-cli/kitsune/bookmark"
	"github.com/kitsune-cli/kitsune/progress"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.EnsureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert relies on UNIQUE(owner_id, episode_id) so concurrent creators converge on one row.
func (s *Store) Upsert(ctx context.Context, key progress.Key, p progress.Progress) (string, error) {
	if key.Owner == "" {
		return "", progress.ErrNoOwner
	}
	now := s.now().Unix()

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO watch_progress (id, owner_id, episode_id, episode_number, position, duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, episode_id) DO UPDATE SET
			episode_number=excluded.episode_number,
			position=excluded.position,
			duration=excluded.duration,
			updated_at=excluded.updated_at
		RETURNING id
	`, uuid.NewString(), key.Owner, key.Episode, p.EpisodeNumber, p.Position, p.Duration, now, now).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("sqlite: upsert progress: %w", err)
	}
	return id, nil
}

func (s *Store) Find(ctx context.Context, key progress.Key) (*progress.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, episode_id, episode_number, position, duration, created_at, updated_at
		FROM watch_progress
		WHERE owner_id = ? AND episode_id = ?
	`, key.Owner, key.Episode)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find progress: %w", err)
	}
	return record, nil
}

func (s *Store) List(ctx context.Context) ([]*progress.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, episode_id, episode_number, position, duration, created_at, updated_at
		FROM watch_progress
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list progress: %w", err)
	}
	defer rows.Close()

	var records []*progress.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) Remove(ctx context.Context, key progress.Key) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM watch_progress WHERE owner_id = ? AND episode_id = ?`, key.Owner, key.Episode)
	return err
}

func (s *Store) EnsureWatching(ctx context.Context, owner, contentID, title, thumbnail string) (string, error) {
	if owner == "" {
		return "", bookmark.ErrNoOwner
	}
	now := s.now().Unix()

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bookmarks (id, owner_id, content_id, title, thumbnail, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, content_id) DO UPDATE SET
			title=excluded.title,
			thumbnail=excluded.thumbnail,
			status=excluded.status,
			updated_at=excluded.updated_at
		RETURNING id
	`, uuid.NewString(), owner, contentID, title, thumbnail, bookmark.StatusWatching, now, now).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("sqlite: ensure bookmark: %w", err)
	}
	return id, nil
}

func (s *Store) Bookmarks(ctx context.Context, owner string) ([]*bookmark.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, content_id, title, thumbnail, status, created_at, updated_at
		FROM bookmarks
		WHERE owner_id = ?
		ORDER BY updated_at DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []*bookmark.Bookmark
	for rows.Next() {
		var (
			b                bookmark.Bookmark
			created, updated int64
		)
		if err := rows.Scan(&b.ID, &b.Owner, &b.ContentID, &b.Title, &b.Thumbnail, &b.Status, &created, &updated); err != nil {
			return nil, err
		}
		b.CreatedAt = time.Unix(created, 0)
		b.UpdatedAt = time.Unix(updated, 0)
		bookmarks = append(bookmarks, &b)
	}
	return bookmarks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*progress.Record, error) {
	var (
		r                progress.Record
		created, updated int64
	)
	if err := row.Scan(&r.ID, &r.Owner, &r.EpisodeID, &r.EpisodeNumber, &r.Position, &r.Duration, &created, &updated); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(created, 0)
	r.UpdatedAt = time.Unix(updated, 0)
	return &r, nil
}
