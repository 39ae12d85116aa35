package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.BookmarkRepository = (*BookmarkDB)(nil)

// BookmarkDB stores the (follower, card) pair as the document _id.
type BookmarkDB struct {
	coll *mongo.Collection
}

type bookmarkDoc struct {
	Key             model.BookmarkKey `bson:"_id"`
	FollowerGroupID string            `bson:"followerGroupId"`
	IsPinned        bool              `bson:"isPinned"`
	Tags            []string          `bson:"tags"`
	Note            string            `bson:"note"`
	CreatedAt       time.Time         `bson:"createdAt"`
	UpdatedAt       time.Time         `bson:"updatedAt"`
}

func (d bookmarkDoc) model() model.Bookmark {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.Bookmark{
		FollowerUserID:  d.Key.FollowerUserID,
		FollowedCardID:  d.Key.FollowedCardID,
		FollowerGroupID: d.FollowerGroupID,
		IsPinned:        d.IsPinned,
		Tags:            tags,
		Note:            d.Note,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// recordDoc is a bookmark after the card and owner lookups.
type recordDoc struct {
	Bookmark bookmarkDoc `bson:",inline"`
	Card     model.Card  `bson:"card"`
	Avatar   string      `bson:"avatar"`
}

// byKey filters on the composite _id. Field order inside _id matters for
// equality, so the key is matched field by field.
func byKey(key model.BookmarkKey) bson.M {
	return bson.M{"_id.followerUserId": key.FollowerUserID, "_id.followedCardId": key.FollowedCardID}
}

var sortPaths = map[string]string{
	repository.SortCreatedAt:   "createdAt",
	repository.SortName:        "card.jobInfo.name.content",
	repository.SortCompanyName: "card.jobInfo.companyName.content",
	repository.SortJobTitle:    "card.jobInfo.jobTitle.content",
}

func (b *BookmarkDB) Create(ctx context.Context, bm *model.Bookmark) error {
	if bm.Tags == nil {
		bm.Tags = []string{}
	}
	bm.CreatedAt = now()
	bm.UpdatedAt = bm.CreatedAt

	doc := bookmarkDoc{
		Key:             bm.Key(),
		FollowerGroupID: bm.FollowerGroupID,
		IsPinned:        bm.IsPinned,
		Tags:            bm.Tags,
		Note:            bm.Note,
		CreatedAt:       bm.CreatedAt,
		UpdatedAt:       bm.UpdatedAt,
	}
	if _, err := b.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("bookmark", bm.FollowedCardID)
		}
		return fmt.Errorf("mongo: creating bookmark: %w", err)
	}
	return nil
}

func (b *BookmarkDB) Get(ctx context.Context, key model.BookmarkKey) (*model.Bookmark, error) {
	var doc bookmarkDoc
	if err := b.coll.FindOne(ctx, byKey(key)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("bookmark", key.FollowedCardID)
		}
		return nil, fmt.Errorf("mongo: getting bookmark: %w", err)
	}
	bm := doc.model()
	return &bm, nil
}

func (b *BookmarkDB) Delete(ctx context.Context, key model.BookmarkKey) error {
	result, err := b.coll.DeleteOne(ctx, byKey(key))
	if err != nil {
		return fmt.Errorf("mongo: deleting bookmark: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperror.NotFound("bookmark", key.FollowedCardID)
	}
	return nil
}

func (b *BookmarkDB) SetPinned(ctx context.Context, key model.BookmarkKey, pinned bool) error {
	result, err := b.coll.UpdateOne(ctx, byKey(key), bson.M{
		"$set": bson.M{"isPinned": pinned, "updatedAt": now()},
	})
	if err != nil {
		return fmt.Errorf("mongo: pinning bookmark: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("bookmark", key.FollowedCardID)
	}
	return nil
}

func (b *BookmarkDB) Annotate(ctx context.Context, key model.BookmarkKey, a model.BookmarkAnnotation) (*model.Bookmark, error) {
	if a.IsEmpty() {
		return b.Get(ctx, key)
	}

	set := bson.M{"updatedAt": now()}
	if a.Note != nil {
		set["note"] = *a.Note
	}
	if a.Tags != nil {
		set["tags"] = a.Tags
	}
	if a.FollowerGroupID != "" {
		set["followerGroupId"] = a.FollowerGroupID
	}

	var doc bookmarkDoc
	err := b.coll.FindOneAndUpdate(ctx, byKey(key), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("bookmark", key.FollowedCardID)
		}
		return nil, fmt.Errorf("mongo: annotating bookmark: %w", err)
	}
	bm := doc.model()
	return &bm, nil
}

func (b *BookmarkDB) ReassignGroup(ctx context.Context, userID, fromGroupID, toGroupID string) (int64, error) {
	result, err := b.coll.UpdateMany(ctx,
		bson.M{"_id.followerUserId": userID, "followerGroupId": fromGroupID},
		bson.M{"$set": bson.M{"followerGroupId": toGroupID, "updatedAt": now()}})
	if err != nil {
		return 0, fmt.Errorf("mongo: reassigning group %s: %w", fromGroupID, err)
	}
	return result.ModifiedCount, nil
}

func (b *BookmarkDB) DeleteByCard(ctx context.Context, cardID string) (int64, error) {
	result, err := b.coll.DeleteMany(ctx, bson.M{"_id.followedCardId": cardID})
	if err != nil {
		return 0, fmt.Errorf("mongo: deleting bookmarks of card %s: %w", cardID, err)
	}
	return result.DeletedCount, nil
}

func (b *BookmarkDB) Followers(ctx context.Context, cardID string) ([]string, error) {
	cursor, err := b.coll.Find(ctx, bson.M{"_id.followedCardId": cardID},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing followers of %s: %w", cardID, err)
	}
	defer cursor.Close(ctx)

	var docs []bookmarkDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding followers: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.Key.FollowerUserID
	}
	return ids, nil
}

func (b *BookmarkDB) ListByGroup(ctx context.Context, userID, groupID string, q repository.GroupQuery) ([]model.BookmarkRecord, int64, error) {
	match := bson.M{"_id.followerUserId": userID, "followerGroupId": groupID}
	return b.records(ctx, match, nil, groupSort(q), q.ListOptions)
}

// groupSort puts pinned bookmarks first, then orders by the requested
// field with creation time and _id as tiebreaks. Each key appears once.
func groupSort(q repository.GroupQuery) bson.D {
	path, ok := sortPaths[q.SortField]
	if !ok {
		path = sortPaths[repository.SortCreatedAt]
	}
	dir := -1
	if q.Ascending {
		dir = 1
	}
	sort := bson.D{{Key: "isPinned", Value: -1}, {Key: path, Value: dir}}
	if path != "createdAt" {
		sort = append(sort, bson.E{Key: "createdAt", Value: dir})
	}
	return append(sort, bson.E{Key: "_id", Value: dir})
}

func (b *BookmarkDB) ListByTag(ctx context.Context, userID, tag string, opts repository.ListOptions) ([]model.BookmarkRecord, int64, error) {
	match := bson.M{"_id.followerUserId": userID, "tags": tag}
	return b.records(ctx, match, nil, newestFirst, opts)
}

// Search regex-matches the joined card's public fields, the note and each
// tag. Private job-info fields are excluded by the isPublic guards.
func (b *BookmarkDB) Search(ctx context.Context, userID, q string, opts repository.ListOptions) ([]model.BookmarkRecord, int64, error) {
	re := containsFold(q)
	field := func(name string) bson.M {
		return bson.M{
			"card.jobInfo." + name + ".isPublic": true,
			"card.jobInfo." + name + ".content":  re,
		}
	}
	joined := bson.M{"$or": bson.A{
		field("name"),
		field("companyName"),
		field("jobTitle"),
		bson.M{"note": re},
		bson.M{"tags": re},
	}}
	return b.records(ctx, bson.M{"_id.followerUserId": userID}, joined, newestFirst, opts)
}

// records runs the shared pipeline: match bookmarks, join card and owner,
// optionally filter on the joined view, then count and page in one $facet.
func (b *BookmarkDB) records(ctx context.Context, match, joined bson.M, sort bson.D, opts repository.ListOptions) ([]model.BookmarkRecord, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.M{
			"from": cardsCollection, "localField": "_id.followedCardId", "foreignField": "_id", "as": "card",
		}}},
		{{Key: "$unwind", Value: "$card"}},
		{{Key: "$lookup", Value: bson.M{
			"from": usersCollection, "localField": "card.userId", "foreignField": "_id", "as": "owner",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"avatar": bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$owner.avatar", 0}}, ""}},
		}}},
		{{Key: "$project", Value: bson.M{"owner": 0}}},
	}
	if joined != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: joined}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$facet", Value: bson.M{
		"total": bson.A{bson.M{"$count": "n"}},
		"records": bson.A{
			bson.M{"$sort": sort},
			bson.M{"$skip": opts.Offset},
			bson.M{"$limit": opts.Limit},
		},
	}}})

	cursor, err := b.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: aggregating bookmarks: %w", err)
	}
	defer cursor.Close(ctx)

	var out []struct {
		Total   []countDoc  `bson:"total"`
		Records []recordDoc `bson:"records"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("mongo: decoding bookmarks: %w", err)
	}

	records := []model.BookmarkRecord{}
	var total int64
	if len(out) == 1 {
		if len(out[0].Total) == 1 {
			total = out[0].Total[0].N
		}
		for _, d := range out[0].Records {
			records = append(records, model.BookmarkRecord{
				Bookmark: d.Bookmark.model(),
				Card:     d.Card.Summarize(d.Avatar),
			})
		}
	}
	return records, total, nil
}
