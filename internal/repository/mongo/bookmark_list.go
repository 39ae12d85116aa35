package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.BookmarkListRepository = (*BookmarkListDB)(nil)

// BookmarkListDB uses the owner's user id as _id, one list per user.
type BookmarkListDB struct {
	coll *mongo.Collection
}

type bookmarkListDoc struct {
	UserID    string        `bson:"_id"`
	Groups    []model.Group `bson:"group"`
	Tags      []string      `bson:"tags"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

func (b *BookmarkListDB) Create(ctx context.Context, list *model.BookmarkList) error {
	if list.Tags == nil {
		list.Tags = []string{}
	}
	list.CreatedAt = now()
	list.UpdatedAt = list.CreatedAt

	doc := bookmarkListDoc{list.UserID, list.Groups, list.Tags, list.CreatedAt, list.UpdatedAt}
	if _, err := b.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("bookmark list", list.UserID)
		}
		return fmt.Errorf("mongo: creating bookmark list: %w", err)
	}
	return nil
}

func (b *BookmarkListDB) Get(ctx context.Context, userID string) (*model.BookmarkList, error) {
	var doc bookmarkListDoc
	if err := b.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("bookmark list", userID)
		}
		return nil, fmt.Errorf("mongo: getting bookmark list %s: %w", userID, err)
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return &model.BookmarkList{
		UserID:    doc.UserID,
		Groups:    doc.Groups,
		Tags:      doc.Tags,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (b *BookmarkListDB) SaveGroups(ctx context.Context, userID string, groups []model.Group) error {
	result, err := b.coll.UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"group": groups, "updatedAt": now()},
	})
	if err != nil {
		return fmt.Errorf("mongo: saving groups of %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("bookmark list", userID)
	}
	return nil
}

func (b *BookmarkListDB) AddTags(ctx context.Context, userID string, tags []string) error {
	nonEmpty := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}
	_, err := b.coll.UpdateByID(ctx, userID, bson.M{
		"$addToSet": bson.M{"tags": bson.M{"$each": nonEmpty}},
		"$set":      bson.M{"updatedAt": now()},
	})
	if err != nil {
		return fmt.Errorf("mongo: adding tags to %s: %w", userID, err)
	}
	return nil
}

func (b *BookmarkListDB) Delete(ctx context.Context, userID string) error {
	result, err := b.coll.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("mongo: deleting bookmark list %s: %w", userID, err)
	}
	if result.DeletedCount == 0 {
		return apperror.NotFound("bookmark list", userID)
	}
	return nil
}
