// Package mongo implements the repository interfaces on MongoDB.
//
// Aggregates map onto documents directly: a card embeds its links, a
// bookmark list embeds its groups and tags, and a bookmark's _id is the
// {followerUserId, followedCardId} pair so the primary index rejects
// duplicates. Read-side joins use $lookup.
package mongo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.Store = (*DB)(nil)

const (
	usersCollection         = "users"
	cardsCollection         = "cards"
	canvasesCollection      = "canvases"
	bookmarkListsCollection = "bookmarkLists"
	bookmarksCollection     = "bookmarks"
	messagesCollection      = "messages"
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri, pings the primary and makes sure the indexes exist.
func New(ctx context.Context, uri, database string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	db := &DB{client: client, db: client.Database(database)}
	if err := db.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: creating indexes: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

func (db *DB) Users() repository.UserRepository {
	return &UserDB{coll: db.db.Collection(usersCollection)}
}

func (db *DB) Cards() repository.CardRepository {
	return &CardDB{coll: db.db.Collection(cardsCollection)}
}

func (db *DB) Canvases() repository.CanvasRepository {
	return &CanvasDB{coll: db.db.Collection(canvasesCollection)}
}

func (db *DB) BookmarkLists() repository.BookmarkListRepository {
	return &BookmarkListDB{coll: db.db.Collection(bookmarkListsCollection)}
}

func (db *DB) Bookmarks() repository.BookmarkRepository {
	return &BookmarkDB{coll: db.db.Collection(bookmarksCollection)}
}

func (db *DB) Messages() repository.MessageRepository {
	return &MessageDB{coll: db.db.Collection(messagesCollection)}
}

func (db *DB) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		cardsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "isPublished", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		bookmarksCollection: {
			{Keys: bson.D{{Key: "_id.followerUserId", Value: 1}, {Key: "followerGroupId", Value: 1}}},
			{Keys: bson.D{{Key: "_id.followedCardId", Value: 1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "recipientUserId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", coll, err)
		}
	}
	return nil
}

// now is truncated to the millisecond precision BSON dates carry.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// containsFold matches s anywhere, ignoring case. s is matched literally.
func containsFold(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

// count decodes the {$count: "n"} stage result.
type countDoc struct {
	N int64 `bson:"n"`
}
