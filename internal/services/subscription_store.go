package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/videotube-backend/internal/database"
	"github.com/AnshRaj112/videotube-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoSubscriptionStore struct {
	coll *mongo.Collection
}

func NewMongoSubscriptionStore(db *mongo.Database) *MongoSubscriptionStore {
	return &MongoSubscriptionStore{coll: db.Collection(database.SubscriptionsCollection)}
}

func (s *MongoSubscriptionStore) Toggle(ctx context.Context, subscriber, channel primitive.ObjectID) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"subscriber": subscriber, "channel": channel})
	if err != nil {
		return false, err
	}
	if res.DeletedCount > 0 {
		return false, nil
	}

	_, err = s.coll.InsertOne(ctx, models.Subscription{
		ID:         primitive.NewObjectID(),
		Subscriber: subscriber,
		Channel:    channel,
		CreatedAt:  time.Now().UTC(),
	})
	// a concurrent toggle already inserted the same row
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
