package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChannelProfile is a read-only projection of a user as seen by the requester.
type ChannelProfile struct {
	ID                        primitive.ObjectID `bson:"_id" json:"_id"`
	FullName                  string             `bson:"fullname" json:"fullname"`
	Username                  string             `bson:"username" json:"username"`
	Email                     string             `bson:"email" json:"email"`
	Avatar                    string             `bson:"avatar" json:"avatar"`
	CoverImage                string             `bson:"coverImage" json:"coverImage"`
	SubscriberCount           int64              `bson:"subscriberCount" json:"subscriberCount"`
	ChannelsSubscribedToCount int64              `bson:"channelsSubscribedToCount" json:"channelsSubscribedToCount"`
	IsSubscribed              bool               `bson:"isSubscribed" json:"isSubscribed"`
}

// VideoOwner is the three-field owner projection nested in watch history.
type VideoOwner struct {
	FullName string `bson:"fullname" json:"fullname"`
	Username string `bson:"username" json:"username"`
	Avatar   string `bson:"avatar" json:"avatar"`
}

// WatchedVideo is one watch history entry with its owner expanded.
type WatchedVideo struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	VideoFile   string             `bson:"videoFile" json:"videoFile"`
	Thumbnail   string             `bson:"thumbnail" json:"thumbnail"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Duration    float64            `bson:"duration" json:"duration"`
	Views       int64              `bson:"views" json:"views"`
	Owner       *VideoOwner        `bson:"owner,omitempty" json:"owner"`
}
