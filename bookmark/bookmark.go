// Package bookmark defines the bookmark contract used to key watch progress.
package bookmark

import (
	"context"
	"errors"
	"time"
)

// Status values a bookmark may carry.
const (
	StatusWatching  = "watching"
	StatusCompleted = "completed"
	StatusPlanned   = "plan to watch"
	StatusOnHold    = "on hold"
	StatusDropped   = "dropped"
)

// ErrNoOwner is returned when a bookmark is requested without an owner.
var ErrNoOwner = errors.New("bookmark: no owner")

// Bookmark links an owner to a piece of content. One bookmark exists per owner and content.
type Bookmark struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	ContentID string    `json:"content_id"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service marks content as being watched and returns the bookmark id.
type Service interface {
	EnsureWatching(ctx context.Context, owner, contentID, title, thumbnail string) (string, error)
}

// Lister enumerates an owner's bookmarks, most recently updated first.
type Lister interface {
	Bookmarks(ctx context.Context, owner string) ([]*Bookmark, error)
}

// Key is the identity of a bookmark inside a store.
func Key(owner, contentID string) string {
	return owner + ":" + contentID
}
