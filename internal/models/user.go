package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`

	Username   string `bson:"username" json:"username"` // always lowercase
	Email      string `bson:"email" json:"email"`
	FullName   string `bson:"fullname" json:"fullname"`
	Avatar     string `bson:"avatar" json:"avatar"`
	CoverImage string `bson:"coverImage,omitempty" json:"coverImage"`

	// Never returned in JSON
	Password     string `bson:"password,omitempty" json:"-"`
	RefreshToken string `bson:"refreshToken,omitempty" json:"-"`

	WatchHistory []primitive.ObjectID `bson:"watchHistory,omitempty" json:"watchHistory,omitempty"`
}

// Sanitized returns a copy safe to hand to clients: no password hash, no
// refresh token and no watch history.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Password = ""
	out.RefreshToken = ""
	out.WatchHistory = nil
	return &out
}
