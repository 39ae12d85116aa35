package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.CanvasRepository = (*CanvasDB)(nil)

// CanvasDB keys each canvas by its card id.
type CanvasDB struct {
	coll *mongo.Collection
}

func (c *CanvasDB) Create(ctx context.Context, canvas *model.Canvas) error {
	if _, err := c.coll.InsertOne(ctx, canvas); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("canvas", canvas.CardID)
		}
		return fmt.Errorf("mongo: creating canvas: %w", err)
	}
	return nil
}

func (c *CanvasDB) Get(ctx context.Context, cardID string) (*model.Canvas, error) {
	var canvas model.Canvas
	if err := c.coll.FindOne(ctx, bson.M{"_id": cardID}).Decode(&canvas); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("canvas", cardID)
		}
		return nil, fmt.Errorf("mongo: getting canvas %s: %w", cardID, err)
	}
	return &canvas, nil
}

func (c *CanvasDB) Save(ctx context.Context, canvas *model.Canvas) error {
	result, err := c.coll.UpdateByID(ctx, canvas.CardID, bson.M{"$set": bson.M{"canvasData": canvas.Data}})
	if err != nil {
		return fmt.Errorf("mongo: saving canvas %s: %w", canvas.CardID, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("canvas", canvas.CardID)
	}
	return nil
}

func (c *CanvasDB) Delete(ctx context.Context, cardID string) error {
	result, err := c.coll.DeleteOne(ctx, bson.M{"_id": cardID})
	if err != nil {
		return fmt.Errorf("mongo: deleting canvas %s: %w", cardID, err)
	}
	if result.DeletedCount == 0 {
		return apperror.NotFound("canvas", cardID)
	}
	return nil
}
