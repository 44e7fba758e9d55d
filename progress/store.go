// Package progress persists watch progress for signed-in users.
package progress

import (
	"context"
	"errors"
	"time"
)

// ErrNoOwner is returned by stores when asked to persist without an owner.
var ErrNoOwner = errors.New("progress: no owner")

// Key identifies a record. At most one record exists per key.
type Key struct {
	// Owner is the bookmark id the record hangs off.
	Owner   string
	Episode string
}

// Valid reports whether both halves of the key are set.
func (k Key) Valid() bool {
	return k.Owner != "" && k.Episode != ""
}

func (k Key) String() string {
	return k.Owner + ":" + k.Episode
}

// Progress is the mutable part of a record.
type Progress struct {
	EpisodeNumber int
	Position      float64
	Duration      float64
}

// Record is a stored watch progress entry.
type Record struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	EpisodeID     string    `json:"episode_id"`
	EpisodeNumber int       `json:"episode_number"`
	Position      float64   `json:"position"`
	Duration      float64   `json:"duration"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Percentage returns how much of the episode was watched, from 0 to 100.
func (r *Record) Percentage() int {
	if r == nil || r.Duration <= 0 {
		return 0
	}
	p := int(r.Position / r.Duration * 100)
	return min(max(p, 0), 100)
}

// Store is the durable backend. Upsert must enforce uniqueness on the key.
// Find returns nil without an error when no record exists.
type Store interface {
	Upsert(ctx context.Context, key Key, progress Progress) (string, error)
	Find(ctx context.Context, key Key) (*Record, error)
}

// Lister is implemented by stores that can enumerate their records, newest first.
type Lister interface {
	List(ctx context.Context) ([]*Record, error)
}
