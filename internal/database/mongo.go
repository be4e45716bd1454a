package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by the stores and the aggregation pipelines.
const (
	UsersCollection         = "users"
	SubscriptionsCollection = "subscriptions"
	VideosCollection        = "videos"
)

// Connect opens a MongoDB client, pings it and returns the named database.
func Connect(ctx context.Context, mongoURI, dbName string) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	// Atlas clusters can take a while to elect a primary
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(dbName), nil
}

func Disconnect(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the unique and lookup indexes the stores rely on.
// Email and username uniqueness is enforced here, not in application code.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("uniq_email").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetName("uniq_username").SetUnique(true),
			},
		},
		SubscriptionsCollection: {
			{
				Keys:    bson.D{{Key: "subscriber", Value: 1}, {Key: "channel", Value: 1}},
				Options: options.Index().SetName("uniq_subscriber_channel").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "channel", Value: 1}},
				Options: options.Index().SetName("idx_channel"),
			},
		},
		VideosCollection: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}},
				Options: options.Index().SetName("idx_owner"),
			},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}
