package services

import (
	"context"
	"errors"
	"time"

	"github.com/AnshRaj112/videotube-backend/internal/database"
	"github.com/AnshRaj112/videotube-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// publicProjection drops the credential fields from user reads.
var publicProjection = bson.D{{Key: "password", Value: 0}, {Key: "refreshToken", Value: 0}}

type MongoUserStore struct {
	coll *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{coll: db.Collection(database.UsersCollection)}
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MongoUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) GetPublicByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(publicProjection))
}

func (s *MongoUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// GetByCredentials finds the user owning both the email and the username.
func (s *MongoUserStore) GetByCredentials(ctx context.Context, email, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email, "username": username})
}

func (s *MongoUserStore) SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"refreshToken": token, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) SwapRefreshToken(ctx context.Context, id primitive.ObjectID, current, next string) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "refreshToken": current},
		bson.M{"$set": bson.M{"refreshToken": next, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoUserStore) ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.coll.UpdateByID(ctx, id, bson.M{
		"$unset": bson.M{"refreshToken": ""},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	})
	return err
}

func (s *MongoUserStore) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"password": hash, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) UpdateDetails(ctx context.Context, id primitive.ObjectID, fullName, email string) (*models.User, error) {
	return s.updateAndReturn(ctx, id, bson.M{"fullname": fullName, "email": email})
}

func (s *MongoUserStore) UpdateAvatar(ctx context.Context, id primitive.ObjectID, url string) (*models.User, error) {
	return s.updateAndReturn(ctx, id, bson.M{"avatar": url})
}

func (s *MongoUserStore) UpdateCoverImage(ctx context.Context, id primitive.ObjectID, url string) (*models.User, error) {
	return s.updateAndReturn(ctx, id, bson.M{"coverImage": url})
}

func (s *MongoUserStore) updateAndReturn(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.User, error) {
	fields["updatedAt"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(publicProjection)

	var user models.User
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&user)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrDuplicate
	case err != nil:
		return nil, err
	}
	return &user, nil
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.User, error) {
	var user models.User
	if err := s.coll.FindOne(ctx, filter, opts...).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
