package services

import (
	"context"

	"github.com/AnshRaj112/videotube-backend/internal/database"
	"github.com/AnshRaj112/videotube-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoProfileStore builds the channel profile and watch history views with
// aggregation pipelines over the users, subscriptions and videos collections.
type MongoProfileStore struct {
	users *mongo.Collection
}

func NewMongoProfileStore(db *mongo.Database) *MongoProfileStore {
	return &MongoProfileStore{users: db.Collection(database.UsersCollection)}
}

func (s *MongoProfileStore) ChannelProfile(ctx context.Context, username string, requester primitive.ObjectID) (*models.ChannelProfile, error) {
	cur, err := s.users.Aggregate(ctx, channelProfilePipeline(username, requester))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	var profile models.ChannelProfile
	if err := cur.Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

type watchHistoryRow struct {
	HistoryOrder []primitive.ObjectID  `bson:"historyOrder"`
	WatchHistory []models.WatchedVideo `bson:"watchHistory"`
}

func (s *MongoProfileStore) WatchHistory(ctx context.Context, userID primitive.ObjectID) ([]models.WatchedVideo, error) {
	cur, err := s.users.Aggregate(ctx, watchHistoryPipeline(userID))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []watchHistoryRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.WatchedVideo{}, nil
	}
	return orderWatchHistory(rows[0].HistoryOrder, rows[0].WatchHistory), nil
}

func channelProfilePipeline(username string, requester primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "username", Value: username}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: database.SubscriptionsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "channel"},
			{Key: "as", Value: "subscribers"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: database.SubscriptionsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "subscriber"},
			{Key: "as", Value: "subscribedTo"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "subscriberCount", Value: bson.D{{Key: "$size", Value: "$subscribers"}}},
			{Key: "channelsSubscribedToCount", Value: bson.D{{Key: "$size", Value: "$subscribedTo"}}},
			{Key: "isSubscribed", Value: bson.D{{Key: "$in", Value: bson.A{requester, "$subscribers.subscriber"}}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "fullname", Value: 1},
			{Key: "username", Value: 1},
			{Key: "subscriberCount", Value: 1},
			{Key: "channelsSubscribedToCount", Value: 1},
			{Key: "isSubscribed", Value: 1},
			{Key: "avatar", Value: 1},
			{Key: "coverImage", Value: 1},
			{Key: "email", Value: 1},
		}}},
	}
}

// watchHistoryPipeline keeps the stored id order in historyOrder because
// $lookup returns matches in collection order, not localField order.
func watchHistoryPipeline(userID primitive.ObjectID) mongo.Pipeline {
	ownerLookup := bson.D{
		{Key: "from", Value: database.UsersCollection},
		{Key: "localField", Value: "owner"},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: "owner"},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$project", Value: bson.D{
				{Key: "_id", Value: 0},
				{Key: "fullname", Value: 1},
				{Key: "username", Value: 1},
				{Key: "avatar", Value: 1},
			}}},
		}},
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: userID}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "historyOrder", Value: "$watchHistory"},
			{Key: "watchHistory", Value: 1},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: database.VideosCollection},
			{Key: "localField", Value: "watchHistory"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "watchHistory"},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$lookup", Value: ownerLookup}},
				bson.D{{Key: "$addFields", Value: bson.D{
					{Key: "owner", Value: bson.D{{Key: "$first", Value: "$owner"}}},
				}}},
			}},
		}}},
	}
}

// orderWatchHistory lays videos out in history order. Repeated ids repeat the
// video and ids without a matching video are skipped.
func orderWatchHistory(order []primitive.ObjectID, videos []models.WatchedVideo) []models.WatchedVideo {
	byID := make(map[primitive.ObjectID]models.WatchedVideo, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}

	out := make([]models.WatchedVideo, 0, len(order))
	for _, id := range order {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}
