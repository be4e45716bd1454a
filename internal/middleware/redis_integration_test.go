//go:build integration

package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/AnshRaj112/videotube-backend/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T, image string) *redis.Client {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb, err := database.ConnectRedis(ctx, "redis://"+endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.DisconnectRedis(rdb) })
	return rdb
}

func TestRedisLimiter(t *testing.T) {
	for _, image := range []string{"redis:6-alpine", "redis:7-alpine"} {
		t.Run(image, func(t *testing.T) {
			ctx := context.Background()
			rdb := startRedis(t, image)

			l := NewRedisLimiter(rdb, 3, 2*time.Second)
			for i := 0; i < 3; i++ {
				ok, _, err := l.Allow(ctx, "203.0.113.9:/login")
				require.NoError(t, err)
				assert.True(t, ok, "request %d", i)
			}

			ok, retry, err := l.Allow(ctx, "203.0.113.9:/login")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Positive(t, retry)
			assert.LessOrEqual(t, retry, 2*time.Second)

			ok, _, err = l.Allow(ctx, "203.0.113.9:/register")
			require.NoError(t, err)
			assert.True(t, ok)

			// the window is fixed: denied requests do not extend it
			require.Eventually(t, func() bool {
				ok, _, err := l.Allow(ctx, "203.0.113.9:/login")
				return err == nil && ok
			}, 5*time.Second, 200*time.Millisecond)
		})
	}
}

func TestRedisLimiter_RepairsKeyWithoutTTL(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t, "redis:6-alpine")

	key := "198.51.100.4:/login"
	require.NoError(t, rdb.Set(ctx, rateLimitKeyPrefix+key, 50, 0).Err())

	l := NewRedisLimiter(rdb, 3, time.Minute)
	ok, retry, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ttl, err := rdb.TTL(ctx, rateLimitKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
