package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/AnshRaj112/videotube-backend/internal/logging"
	"github.com/AnshRaj112/videotube-backend/pkg/clientip"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	// AuthRateLimitWindow and AuthRateLimitMax bound credential endpoints per IP.
	AuthRateLimitWindow = time.Minute
	AuthRateLimitMax    = 10

	rateLimitKeyPrefix = "ratelimit:"
)

// Limiter decides whether the caller identified by key may proceed. retryAfter
// is meaningful only when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter is a fixed-window counter shared by every instance pointing at
// the same Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: int64(limit), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = rateLimitKeyPrefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}

	// The first hit opens the window. A key left without a TTL is repaired here
	// so it cannot block the caller forever.
	remaining := ttl.Val()
	if remaining < 0 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return true, 0, fmt.Errorf("rate limit %s: %w", key, err)
		}
		remaining = l.window
	}

	if incr.Val() <= l.limit {
		return true, 0, nil
	}
	return false, remaining, nil
}

// MemoryLimiter keeps a token bucket per key in process memory. Idle buckets
// are dropped by Cleanup.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	every   time.Duration
	burst   int
	now     func() time.Time
}

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// NewMemoryLimiter allows burst requests at once, refilling one every
// window/burst.
func NewMemoryLimiter(burst int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*limiterEntry),
		every:   window / time.Duration(burst),
		burst:   burst,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.entries[key] = e
	}
	e.lastUse = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// Cleanup drops buckets idle for longer than ttl.
func (l *MemoryLimiter) Cleanup(ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, e := range l.entries {
		if now.Sub(e.lastUse) > ttl {
			delete(l.entries, key)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (l *MemoryLimiter) RunCleanup(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup(ttl)
		}
	}
}

// RateLimit rejects requests over the limiter's budget with 429. The bucket is
// per client IP and route, so login attempts do not eat into registration.
// Limiter errors fail open.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientip.RealClientIP(r) + ":" + r.URL.Path

			allowed, retryAfter, err := l.Allow(r.Context(), key)
			if err != nil {
				logging.FromContext(r.Context()).Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				secs := int(retryAfter.Round(time.Second).Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
