package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AnshRaj112/videotube-backend/internal/config"
	"github.com/AnshRaj112/videotube-backend/internal/database"
	"github.com/AnshRaj112/videotube-backend/internal/handlers"
	"github.com/AnshRaj112/videotube-backend/internal/logging"
	"github.com/AnshRaj112/videotube-backend/internal/middleware"
	"github.com/AnshRaj112/videotube-backend/internal/routes"
	"github.com/AnshRaj112/videotube-backend/internal/services"
	"github.com/AnshRaj112/videotube-backend/pkg/clientip"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second

	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = 30 * time.Minute
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if envErr != nil {
		logger.Info("no .env file found, using process environment")
	}
	if cfg.ApplyDevDefaults() {
		logger.Warn("token secrets not set, using development placeholders")
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	logger.Info("connecting to MongoDB", "database", cfg.MongoDatabase)
	client, db, err := database.Connect(startCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Disconnect(client); err != nil {
			logger.Warn("disconnect MongoDB", "error", err)
		}
	}()

	if err := database.EnsureIndexes(startCtx, db); err != nil {
		return err
	}
	logger.Info("MongoDB indexes ensured")

	limiter, closeLimiter, err := newLimiter(ctx, startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	var uploader services.Uploader
	if cfg.UploadsEnabled() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			logger.Warn("Cloudinary unavailable, uploads disabled", "error", err)
		} else {
			uploader = cld
			logger.Info("Cloudinary service initialized", "folder", cfg.CloudinaryFolder)
		}
	} else {
		logger.Warn("Cloudinary credentials not found, uploads disabled")
	}

	trusted, err := clientip.ParseTrusted(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	users := services.NewMongoUserStore(db)
	tokens := services.NewTokenIssuer(users, services.TokenConfig{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		AccessTTL:     cfg.AccessTokenExpiry,
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		RefreshTTL:    cfg.RefreshTokenExpiry,
	})
	media := services.NewMediaService(uploader, cfg.UploadTempDir)

	router := routes.NewRouter(routes.Deps{
		Logger:         logger,
		Users:          handlers.NewUserHandler(users, services.NewMongoProfileStore(db), tokens, media, handlers.CookieConfig{Domain: cfg.CookieDomain}),
		Subscriptions:  handlers.NewSubscriptionHandler(users, services.NewMongoSubscriptionStore(db)),
		Auth:           middleware.NewAuthenticator(tokens, users),
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: trusted,
		Production:     cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("videotube backend listening", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// newLimiter prefers Redis so limits hold across instances and falls back to
// process memory when REDIS_URI is empty.
func newLimiter(ctx, startCtx context.Context, cfg *config.Config, logger *slog.Logger) (middleware.Limiter, func(), error) {
	if cfg.RedisURI != "" {
		rdb, err := database.ConnectRedis(startCtx, cfg.RedisURI)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("rate limiting via Redis")
		closeFn := func() {
			if err := database.DisconnectRedis(rdb); err != nil {
				logger.Warn("disconnect Redis", "error", err)
			}
		}
		return middleware.NewRedisLimiter(rdb, middleware.AuthRateLimitMax, middleware.AuthRateLimitWindow), closeFn, nil
	}

	mem := middleware.NewMemoryLimiter(middleware.AuthRateLimitMax, middleware.AuthRateLimitWindow)
	go mem.RunCleanup(ctx, limiterCleanupInterval, limiterIdleTTL)
	logger.Info("rate limiting in memory")
	return mem, func() {}, nil
}
