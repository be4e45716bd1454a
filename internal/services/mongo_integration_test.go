//go:build integration

package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/videotube-backend/internal/database"
	"github.com/AnshRaj112/videotube-backend/internal/models"
	"github.com/AnshRaj112/videotube-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	ctr, err := mongodb.Run(ctx, "mongo:7")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	client, db, err := database.Connect(ctx, uri, "videotube_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Disconnect(client) })

	require.NoError(t, database.EnsureIndexes(ctx, db))
	return db
}

func newMongoUser(t *testing.T, store *services.MongoUserStore, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		FullName: "Full " + username,
		Avatar:   "https://res.cloudinary.test/" + username + ".png",
		Password: "$argon2id$hash",
	}
	require.NoError(t, store.Create(context.Background(), u))
	return u
}

func TestMongoStores(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	users := services.NewMongoUserStore(db)
	profiles := services.NewMongoProfileStore(db)
	subs := services.NewMongoSubscriptionStore(db)

	t.Run("unique email and username", func(t *testing.T) {
		newMongoUser(t, users, "dup")
		err := users.Create(ctx, &models.User{Username: "dup", Email: "other@example.com"})
		assert.ErrorIs(t, err, services.ErrDuplicate)
		err = users.Create(ctx, &models.User{Username: "other", Email: "dup@example.com"})
		assert.ErrorIs(t, err, services.ErrDuplicate)
	})

	t.Run("public reads omit credentials", func(t *testing.T) {
		u := newMongoUser(t, users, "public")
		require.NoError(t, users.SetRefreshToken(ctx, u.ID, "tok"))

		full, err := users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "tok", full.RefreshToken)
		assert.NotEmpty(t, full.Password)

		pub, err := users.GetPublicByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, pub.RefreshToken)
		assert.Empty(t, pub.Password)

		_, err = users.GetByID(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("credentials lookup needs both fields", func(t *testing.T) {
		newMongoUser(t, users, "creds")
		_, err := users.GetByCredentials(ctx, "creds@example.com", "creds")
		require.NoError(t, err)
		_, err = users.GetByCredentials(ctx, "creds@example.com", "someone")
		assert.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("refresh token swap and clear", func(t *testing.T) {
		u := newMongoUser(t, users, "swap")
		require.NoError(t, users.SetRefreshToken(ctx, u.ID, "one"))

		ok, err := users.SwapRefreshToken(ctx, u.ID, "stale", "two")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = users.SwapRefreshToken(ctx, u.ID, "one", "two")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, users.ClearRefreshToken(ctx, u.ID))
		full, err := users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, full.RefreshToken)

		var raw bson.M
		require.NoError(t, db.Collection(database.UsersCollection).FindOne(ctx, bson.M{"_id": u.ID}).Decode(&raw))
		assert.NotContains(t, raw, "refreshToken")
	})

	t.Run("concurrent rotation has one winner", func(t *testing.T) {
		u := newMongoUser(t, users, "race")
		issuer := services.NewTokenIssuer(users, services.TokenConfig{
			AccessSecret: []byte("a"), AccessTTL: time.Minute,
			RefreshSecret: []byte("r"), RefreshTTL: time.Hour,
		})
		pair, err := issuer.IssueTokens(ctx, u.ID)
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := issuer.VerifyRefresh(ctx, pair.RefreshToken); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("update details and images", func(t *testing.T) {
		u := newMongoUser(t, users, "upd")
		newMongoUser(t, users, "holder")

		updated, err := users.UpdateDetails(ctx, u.ID, "New Name", "upd2@example.com")
		require.NoError(t, err)
		assert.Equal(t, "New Name", updated.FullName)
		assert.Equal(t, "upd2@example.com", updated.Email)
		assert.Empty(t, updated.Password)
		assert.True(t, updated.UpdatedAt.After(u.UpdatedAt) || updated.UpdatedAt.Equal(u.UpdatedAt))

		_, err = users.UpdateDetails(ctx, u.ID, "x", "holder@example.com")
		assert.ErrorIs(t, err, services.ErrDuplicate)

		withCover, err := users.UpdateCoverImage(ctx, u.ID, "https://cover")
		require.NoError(t, err)
		assert.Equal(t, "https://cover", withCover.CoverImage)
		assert.Equal(t, u.Avatar, withCover.Avatar)

		withAvatar, err := users.UpdateAvatar(ctx, u.ID, "https://avatar")
		require.NoError(t, err)
		assert.Equal(t, "https://avatar", withAvatar.Avatar)

		_, err = users.UpdateAvatar(ctx, primitive.NewObjectID(), "x")
		assert.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("channel profile counts", func(t *testing.T) {
		a := newMongoUser(t, users, "chan_a")
		b := newMongoUser(t, users, "chan_b")

		p, err := profiles.ChannelProfile(ctx, "chan_a", b.ID)
		require.NoError(t, err)
		assert.Zero(t, p.SubscriberCount)
		assert.False(t, p.IsSubscribed)

		subscribed, err := subs.Toggle(ctx, b.ID, a.ID)
		require.NoError(t, err)
		assert.True(t, subscribed)

		p, err = profiles.ChannelProfile(ctx, "chan_a", b.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, p.SubscriberCount)
		assert.True(t, p.IsSubscribed)
		assert.Equal(t, a.Email, p.Email)

		p, err = profiles.ChannelProfile(ctx, "chan_b", a.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, p.ChannelsSubscribedToCount)
		assert.False(t, p.IsSubscribed)

		subscribed, err = subs.Toggle(ctx, b.ID, a.ID)
		require.NoError(t, err)
		assert.False(t, subscribed)

		_, err = profiles.ChannelProfile(ctx, "missing", a.ID)
		assert.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("watch history keeps stored order", func(t *testing.T) {
		viewer := newMongoUser(t, users, "viewer")
		owner := newMongoUser(t, users, "owner")

		videos := db.Collection(database.VideosCollection)
		ids := make([]primitive.ObjectID, 3)
		for i, title := range []string{"one", "two", "three"} {
			ids[i] = primitive.NewObjectID()
			_, err := videos.InsertOne(ctx, models.Video{
				ID: ids[i], Title: title, Owner: owner.ID, IsPublished: true,
				CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
			})
			require.NoError(t, err)
		}

		history := bson.A{ids[2], ids[0], primitive.NewObjectID(), ids[2]}
		_, err := db.Collection(database.UsersCollection).UpdateByID(ctx, viewer.ID,
			bson.M{"$set": bson.M{"watchHistory": history}})
		require.NoError(t, err)

		got, err := profiles.WatchHistory(ctx, viewer.ID)
		require.NoError(t, err)
		titles := make([]string, 0, len(got))
		for _, v := range got {
			titles = append(titles, v.Title)
			require.NotNil(t, v.Owner)
			assert.Equal(t, "owner", v.Owner.Username)
		}
		assert.Equal(t, []string{"three", "one", "three"}, titles)

		empty, err := profiles.WatchHistory(ctx, owner.ID)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})
}
