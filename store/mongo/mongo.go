// Package mongo stores watch progress and bookmarks in MongoDB.
// Documents are keyed by a composite _id so upserts enforce one document per key.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kitsune-cli/kitsune/bookmark"
	"github.com/kitsune-cli/kitsune/progress"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type progressDoc struct {
	ID            string  `bson:"_id"`
	Owner         string  `bson:"owner"`
	EpisodeID     string  `bson:"episodeId"`
	EpisodeNumber int     `bson:"episodeNumber"`
	Position      float64 `bson:"position"`
	Duration      float64 `bson:"duration"`
	CreatedAt     int64   `bson:"createdAt"`
	UpdatedAt     int64   `bson:"updatedAt"`
}

type bookmarkDoc struct {
	ID        string `bson:"_id"`
	Owner     string `bson:"owner"`
	ContentID string `bson:"contentId"`
	Title     string `bson:"title"`
	Thumbnail string `bson:"thumbnail"`
	Status    string `bson:"status"`
	CreatedAt int64  `bson:"createdAt"`
	UpdatedAt int64  `bson:"updatedAt"`
}

type Store struct {
	client    *mongo.Client
	progress  *mongo.Collection
	bookmarks *mongo.Collection
	now       func() time.Time
}

// Connect dials MongoDB and returns a store on the given database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return New(client, database), nil
}

func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:    client,
		progress:  db.Collection("watch_progress"),
		bookmarks: db.Collection("bookmarks"),
		now:       time.Now,
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.progress.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updatedAt", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = s.bookmarks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}, {Key: "updatedAt", Value: -1}},
	})
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func progressDocID(key progress.Key) string {
	return fmt.Sprintf("%s:%s", key.Owner, key.Episode)
}

func (s *Store) Upsert(ctx context.Context, key progress.Key, p progress.Progress) (string, error) {
	if key.Owner == "" {
		return "", progress.ErrNoOwner
	}

	id := progressDocID(key)
	now := s.now().Unix()
	update := bson.M{
		"$set": bson.M{
			"owner":         key.Owner,
			"episodeId":     key.Episode,
			"episodeNumber": p.EpisodeNumber,
			"position":      p.Position,
			"duration":      p.Duration,
			"updatedAt":     now,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}
	_, err := s.progress.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("mongo: upsert progress: %w", err)
	}
	return id, nil
}

func (s *Store) Find(ctx context.Context, key progress.Key) (*progress.Record, error) {
	var doc progressDoc
	err := s.progress.FindOne(ctx, bson.M{"_id": progressDocID(key)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo: find progress: %w", err)
	}
	return progressDocToRecord(doc), nil
}

func (s *Store) List(ctx context.Context) ([]*progress.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := s.progress.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []progressDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	records := make([]*progress.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, progressDocToRecord(doc))
	}
	return records, nil
}

func (s *Store) Remove(ctx context.Context, key progress.Key) error {
	_, err := s.progress.DeleteOne(ctx, bson.M{"_id": progressDocID(key)})
	return err
}

func (s *Store) EnsureWatching(ctx context.Context, owner, contentID, title, thumbnail string) (string, error) {
	if owner == "" {
		return "", bookmark.ErrNoOwner
	}

	id := bookmark.Key(owner, contentID)
	now := s.now().Unix()
	update := bson.M{
		"$set": bson.M{
			"owner":     owner,
			"contentId": contentID,
			"title":     title,
			"thumbnail": thumbnail,
			"status":    bookmark.StatusWatching,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}
	_, err := s.bookmarks.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("mongo: ensure bookmark: %w", err)
	}
	return id, nil
}

func (s *Store) Bookmarks(ctx context.Context, owner string) ([]*bookmark.Bookmark, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := s.bookmarks.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bookmarkDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	bookmarks := make([]*bookmark.Bookmark, 0, len(docs))
	for _, doc := range docs {
		bookmarks = append(bookmarks, bookmarkDocToBookmark(doc))
	}
	return bookmarks, nil
}

func progressDocToRecord(doc progressDoc) *progress.Record {
	return &progress.Record{
		ID:            doc.ID,
		Owner:         doc.Owner,
		EpisodeID:     doc.EpisodeID,
		EpisodeNumber: doc.EpisodeNumber,
		Position:      doc.Position,
		Duration:      doc.Duration,
		CreatedAt:     time.Unix(doc.CreatedAt, 0).UTC(),
		UpdatedAt:     time.Unix(doc.UpdatedAt, 0).UTC(),
	}
}

func bookmarkDocToBookmark(doc bookmarkDoc) *bookmark.Bookmark {
	return &bookmark.Bookmark{
		ID:        doc.ID,
		Owner:     doc.Owner,
		ContentID: doc.ContentID,
		Title:     doc.Title,
		Thumbnail: doc.Thumbnail,
		Status:    doc.Status,
		CreatedAt: time.Unix(doc.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(doc.UpdatedAt, 0).UTC(),
	}
}
