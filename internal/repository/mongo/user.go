package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

type UserDB struct {
	coll *mongo.Collection
}

func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt

	if _, err := u.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("mongo: creating user: %w", err)
	}
	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.findOne(ctx, bson.M{"_id": id}, id)
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.findOne(ctx, bson.M{"email": email}, email)
}

func (u *UserDB) findOne(ctx context.Context, filter bson.M, key string) (*model.User, error) {
	var user model.User
	if err := u.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("mongo: getting user %s: %w", key, err)
	}
	return &user, nil
}

func (u *UserDB) UpdateProfile(ctx context.Context, id, name, avatarURL string) error {
	return u.set(ctx, id, bson.M{"name": name, "avatar": avatarURL})
}

func (u *UserDB) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return u.set(ctx, id, bson.M{"passwordHash": passwordHash})
}

func (u *UserDB) set(ctx context.Context, id string, fields bson.M) error {
	fields["updatedAt"] = now()
	result, err := u.coll.UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("mongo: updating user %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func (u *UserDB) Delete(ctx context.Context, id string) error {
	result, err := u.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: deleting user %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
