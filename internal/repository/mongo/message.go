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

var _ repository.MessageRepository = (*MessageDB)(nil)

type MessageDB struct {
	coll *mongo.Collection
}

type inboxDoc struct {
	Message      model.Message `bson:",inline"`
	SenderName   string        `bson:"senderName"`
	SenderAvatar string        `bson:"senderAvatar"`
}

// CreateMany is an ordered InsertMany: the server stops at the first
// failed document and keeps everything before it.
func (m *MessageDB) CreateMany(ctx context.Context, msgs []model.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	docs := make([]any, len(msgs))
	for i := range msgs {
		msgs[i].ID = xid.New().String()
		msgs[i].CreatedAt = now()
		docs[i] = msgs[i]
	}

	_, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		var bulk mongo.BulkWriteException
		if errors.As(err, &bulk) && len(bulk.WriteErrors) > 0 {
			return bulk.WriteErrors[0].Index, fmt.Errorf("mongo: creating messages: %w", err)
		}
		return 0, fmt.Errorf("mongo: creating messages: %w", err)
	}
	return len(msgs), nil
}

func (m *MessageDB) ListInbox(ctx context.Context, userID string, category model.MessageCategory) ([]model.InboxMessage, error) {
	match := bson.M{"recipientUserId": userID}
	if category != "" {
		match["category"] = category
	}
	first := func(path string) bson.M {
		return bson.M{"$arrayElemAt": bson.A{path, 0}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: newestFirst}},
		{{Key: "$lookup", Value: bson.M{
			"from": cardsCollection, "localField": "senderCardId", "foreignField": "_id", "as": "card",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from": usersCollection, "localField": "senderUserId", "foreignField": "_id", "as": "sender",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"senderName": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{first("$card.jobInfo.name.isPublic"), true}},
				first("$card.jobInfo.name.content"),
				"",
			}},
			"senderAvatar": bson.M{"$ifNull": bson.A{first("$sender.avatar"), ""}},
		}}},
		{{Key: "$project", Value: bson.M{"card": 0, "sender": 0}}},
	}

	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing inbox of %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var docs []inboxDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding inbox: %w", err)
	}
	inbox := make([]model.InboxMessage, len(docs))
	for i, d := range docs {
		inbox[i] = model.InboxMessage{Message: d.Message, SenderName: d.SenderName, SenderAvatar: d.SenderAvatar}
	}
	return inbox, nil
}

func (m *MessageDB) MarkRead(ctx context.Context, id, recipientID string) error {
	result, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": id, "recipientUserId": recipientID},
		bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return fmt.Errorf("mongo: marking message %s read: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("message", id)
	}
	return nil
}

func (m *MessageDB) CountUnread(ctx context.Context, userID string) (int64, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"recipientUserId": userID, "isRead": false})
	if err != nil {
		return 0, fmt.Errorf("mongo: counting unread messages of %s: %w", userID, err)
	}
	return n, nil
}
