package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.CardRepository = (*CardDB)(nil)

type CardDB struct {
	coll *mongo.Collection
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (c *CardDB) Create(ctx context.Context, card *model.Card) error {
	card.ID = xid.New().String()
	card.CreatedAt = now()
	card.UpdatedAt = card.CreatedAt
	if card.LayoutDirection == "" {
		card.LayoutDirection = model.LayoutHorizontal
	}
	if card.HomepageLinks == nil {
		card.HomepageLinks = []model.HomepageLink{}
	}
	if _, err := c.coll.InsertOne(ctx, card); err != nil {
		return fmt.Errorf("mongo: creating card: %w", err)
	}
	return nil
}

func (c *CardDB) GetByID(ctx context.Context, id string) (*model.Card, error) {
	var card model.Card
	if err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&card); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("card", id)
		}
		return nil, fmt.Errorf("mongo: getting card %s: %w", id, err)
	}
	return &card, nil
}

func (c *CardDB) ListByOwner(ctx context.Context, ownerID string) ([]model.Card, error) {
	return c.find(ctx, bson.M{"userId": ownerID}, options.Find().SetSort(newestFirst))
}

// Update replaces the whole document. CreatedAt and OwnerID come from card.
func (c *CardDB) Update(ctx context.Context, card *model.Card) error {
	card.UpdatedAt = now()
	result, err := c.coll.ReplaceOne(ctx, bson.M{"_id": card.ID}, card)
	if err != nil {
		return fmt.Errorf("mongo: updating card %s: %w", card.ID, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("card", card.ID)
	}
	return nil
}

func (c *CardDB) Delete(ctx context.Context, id string) error {
	result, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: deleting card %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return apperror.NotFound("card", id)
	}
	return nil
}

func (c *CardDB) ListPublished(ctx context.Context, f repository.CardWallFilter, opts repository.ListOptions) ([]model.Card, int64, error) {
	filter := bson.M{"isPublished": true}
	if f.City != "" {
		filter["jobInfo.city.isPublic"] = true
		filter["jobInfo.city.content"] = f.City
	}
	if f.Domain != "" {
		filter["jobInfo.domain.isPublic"] = true
		filter["jobInfo.domain.content"] = f.Domain
	}
	if f.Name != "" {
		filter["jobInfo.name.isPublic"] = true
		filter["jobInfo.name.content"] = containsFold(f.Name)
	}

	total, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: counting published cards: %w", err)
	}
	cards, err := c.find(ctx, filter, options.Find().
		SetSort(newestFirst).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit)))
	if err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}

func (c *CardDB) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Card, error) {
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing cards: %w", err)
	}
	defer cursor.Close(ctx)

	cards := []model.Card{}
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("mongo: decoding cards: %w", err)
	}
	return cards, nil
}
