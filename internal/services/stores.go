package services

import (
	"context"
	"errors"

	"github.com/AnshRaj112/videotube-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// UserStore persists user documents. GetByID returns the full record including
// the password hash and refresh token; GetPublicByID leaves both out.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetPublicByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByCredentials(ctx context.Context, email, username string) (*models.User, error)

	SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error
	// SwapRefreshToken replaces the stored token only if it still equals current.
	SwapRefreshToken(ctx context.Context, id primitive.ObjectID, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error

	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	UpdateDetails(ctx context.Context, id primitive.ObjectID, fullName, email string) (*models.User, error)
	UpdateAvatar(ctx context.Context, id primitive.ObjectID, url string) (*models.User, error)
	UpdateCoverImage(ctx context.Context, id primitive.ObjectID, url string) (*models.User, error)
}

// ProfileStore answers the read-only joined views.
type ProfileStore interface {
	ChannelProfile(ctx context.Context, username string, requester primitive.ObjectID) (*models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID primitive.ObjectID) ([]models.WatchedVideo, error)
}

type SubscriptionStore interface {
	// Toggle subscribes when no row exists and unsubscribes otherwise. It
	// returns the subscription state after the call.
	Toggle(ctx context.Context, subscriber, channel primitive.ObjectID) (bool, error)
}
