// Package servicestest provides in-memory implementations of the service
// interfaces for handler and middleware tests.
package servicestest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/AnshRaj112/videotube-backend/internal/models"
	"github.com/AnshRaj112/videotube-backend/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store implements services.UserStore, services.ProfileStore and
// services.SubscriptionStore over maps, mirroring the unique indexes of the
// MongoDB adapters.
type Store struct {
	mu     sync.Mutex
	users  map[primitive.ObjectID]models.User
	subs   []models.Subscription
	videos map[primitive.ObjectID]models.Video
}

var (
	_ services.UserStore         = (*Store)(nil)
	_ services.ProfileStore      = (*Store)(nil)
	_ services.SubscriptionStore = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		users:  make(map[primitive.ObjectID]models.User),
		videos: make(map[primitive.ObjectID]models.Video),
	}
}

func (s *Store) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return services.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = clone(*user)
	return nil
}

func (s *Store) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	out := clone(u)
	return &out, nil
}

func (s *Store) GetPublicByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Password, u.RefreshToken = "", ""
	return u, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *Store) GetByCredentials(_ context.Context, email, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email && u.Username == username })
}

func (s *Store) SetRefreshToken(_ context.Context, id primitive.ObjectID, token string) error {
	return s.mutate(id, func(u *models.User) error {
		u.RefreshToken = token
		return nil
	})
}

func (s *Store) SwapRefreshToken(_ context.Context, id primitive.ObjectID, current, next string) (bool, error) {
	swapped := false
	err := s.mutate(id, func(u *models.User) error {
		if u.RefreshToken == current {
			u.RefreshToken = next
			swapped = true
		}
		return nil
	})
	if err == services.ErrNotFound {
		return false, nil
	}
	return swapped, err
}

func (s *Store) ClearRefreshToken(_ context.Context, id primitive.ObjectID) error {
	err := s.mutate(id, func(u *models.User) error {
		u.RefreshToken = ""
		return nil
	})
	if err == services.ErrNotFound {
		return nil
	}
	return err
}

func (s *Store) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	return s.mutate(id, func(u *models.User) error {
		u.Password = hash
		return nil
	})
}

func (s *Store) UpdateDetails(ctx context.Context, id primitive.ObjectID, fullName, email string) (*models.User, error) {
	err := s.mutate(id, func(u *models.User) error {
		for otherID, other := range s.users {
			if otherID != id && other.Email == email {
				return services.ErrDuplicate
			}
		}
		u.FullName, u.Email = fullName, email
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetPublicByID(ctx, id)
}

func (s *Store) UpdateAvatar(ctx context.Context, id primitive.ObjectID, url string) (*models.User, error) {
	if err := s.mutate(id, func(u *models.User) error { u.Avatar = url; return nil }); err != nil {
		return nil, err
	}
	return s.GetPublicByID(ctx, id)
}

func (s *Store) UpdateCoverImage(ctx context.Context, id primitive.ObjectID, url string) (*models.User, error) {
	if err := s.mutate(id, func(u *models.User) error { u.CoverImage = url; return nil }); err != nil {
		return nil, err
	}
	return s.GetPublicByID(ctx, id)
}

func (s *Store) ChannelProfile(_ context.Context, username string, requester primitive.ObjectID) (*models.ChannelProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var channel *models.User
	for _, u := range s.users {
		if u.Username == username {
			u := u
			channel = &u
			break
		}
	}
	if channel == nil {
		return nil, services.ErrNotFound
	}

	profile := &models.ChannelProfile{
		ID:         channel.ID,
		FullName:   channel.FullName,
		Username:   channel.Username,
		Email:      channel.Email,
		Avatar:     channel.Avatar,
		CoverImage: channel.CoverImage,
	}
	for _, sub := range s.subs {
		if sub.Channel == channel.ID {
			profile.SubscriberCount++
			if sub.Subscriber == requester {
				profile.IsSubscribed = true
			}
		}
		if sub.Subscriber == channel.ID {
			profile.ChannelsSubscribedToCount++
		}
	}
	return profile, nil
}

func (s *Store) WatchHistory(_ context.Context, userID primitive.ObjectID) ([]models.WatchedVideo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.WatchedVideo{}
	u, ok := s.users[userID]
	if !ok {
		return out, nil
	}
	for _, vid := range u.WatchHistory {
		v, ok := s.videos[vid]
		if !ok {
			continue
		}
		entry := models.WatchedVideo{
			ID:          v.ID,
			CreatedAt:   v.CreatedAt,
			VideoFile:   v.VideoFile,
			Thumbnail:   v.Thumbnail,
			Title:       v.Title,
			Description: v.Description,
			Duration:    v.Duration,
			Views:       v.Views,
		}
		if owner, ok := s.users[v.Owner]; ok {
			entry.Owner = &models.VideoOwner{FullName: owner.FullName, Username: owner.Username, Avatar: owner.Avatar}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) Toggle(_ context.Context, subscriber, channel primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.Subscriber == subscriber && sub.Channel == channel {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return false, nil
		}
	}
	s.subs = append(s.subs, models.Subscription{
		ID:         primitive.NewObjectID(),
		Subscriber: subscriber,
		Channel:    channel,
		CreatedAt:  time.Now().UTC(),
	})
	return true, nil
}

// AddVideo stores a video and returns its id.
func (s *Store) AddVideo(v models.Video) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	s.videos[v.ID] = v
	return v.ID
}

// Watch appends a video to the user's watch history.
func (s *Store) Watch(userID, videoID primitive.ObjectID) error {
	return s.mutate(userID, func(u *models.User) error {
		u.WatchHistory = append(u.WatchHistory, videoID)
		return nil
	})
}

// UserCount reports how many users are stored.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Store) find(match func(models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			out := clone(u)
			return &out, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *Store) mutate(id primitive.ObjectID, fn func(*models.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return services.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func clone(u models.User) models.User {
	u.WatchHistory = append([]primitive.ObjectID(nil), u.WatchHistory...)
	return u
}

// Uploader is a services.Uploader that records every call. It fails with Err
// when set and returns an empty URL when EmptyURL is true. Deletes are
// recorded in Deleted and fail with DeleteErr.
type Uploader struct {
	mu        sync.Mutex
	Err       error
	EmptyURL  bool
	DeleteErr error
	Calls     []UploadCall
	Deleted   []string
}

type UploadCall struct {
	Path      string
	FileExist bool // whether the staged file existed at upload time
}

func (u *Uploader) Upload(_ context.Context, localPath string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	_, statErr := os.Stat(localPath)
	u.Calls = append(u.Calls, UploadCall{Path: localPath, FileExist: statErr == nil})

	if u.Err != nil {
		return "", u.Err
	}
	if u.EmptyURL {
		return "", nil
	}
	return fmt.Sprintf("https://res.cloudinary.test/videotube/%d.png", len(u.Calls)), nil
}

func (u *Uploader) Delete(_ context.Context, assetURL string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.DeleteErr != nil {
		return u.DeleteErr
	}
	u.Deleted = append(u.Deleted, assetURL)
	return nil
}
