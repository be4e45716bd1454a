package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/videotube-backend/pkg/clientip"
)

const defaultDatabase = "videotube"

type Config struct {
	Port        string
	Environment string // ENV: production, development, etc.
	LogLevel    string

	MongoURI      string
	MongoDatabase string
	RedisURI      string // empty disables the Redis rate limiter

	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenSecret string
	RefreshTokenExpiry time.Duration

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	UploadTempDir       string

	AllowedOrigins []string
	CookieDomain   string
	// TrustedProxies lists CIDRs or addresses whose forwarding headers are
	// honoured. Empty means the socket peer is always the client.
	TrustedProxies []string

	// raw expiry strings, kept so Validate can report what was configured
	accessExpiryRaw  string
	refreshExpiryRaw string
}

func Load() *Config {
	mongoURI := getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/"+defaultDatabase))
	accessRaw := getEnv("ACCESS_TOKEN_EXPIRY", "1h")
	refreshRaw := getEnv("REFRESH_TOKEN_EXPIRY", "10d")

	accessTTL, _ := ParseExpiry(accessRaw)
	refreshTTL, _ := ParseExpiry(refreshRaw)

	origins := splitList(getEnv("ALLOWED_ORIGINS", getEnv("CORS_ORIGIN", "")))
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	return &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		MongoURI:      mongoURI,
		MongoDatabase: getEnv("MONGODB_DATABASE", DatabaseName(mongoURI, defaultDatabase)),
		RedisURI:      getEnv("REDIS_URI", ""),

		AccessTokenSecret:  getEnv("ACCESS_TOKEN_SECRET", ""),
		AccessTokenExpiry:  accessTTL,
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", ""),
		RefreshTokenExpiry: refreshTTL,

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", defaultDatabase),
		UploadTempDir:       getEnv("UPLOAD_TEMP_DIR", "./public/temp"),

		AllowedOrigins: origins,
		CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
		TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),

		accessExpiryRaw:  accessRaw,
		refreshExpiryRaw: refreshRaw,
	}
}

// Validate reports configuration that would make the server unusable.
// Missing token secrets are only fatal in production; development falls back
// to insecure placeholders via ApplyDevDefaults.
func (c *Config) Validate() error {
	var errs []error
	if c.AccessTokenExpiry <= 0 {
		errs = append(errs, fmt.Errorf("invalid ACCESS_TOKEN_EXPIRY %q", c.accessExpiryRaw))
	}
	if c.RefreshTokenExpiry <= 0 {
		errs = append(errs, fmt.Errorf("invalid REFRESH_TOKEN_EXPIRY %q", c.refreshExpiryRaw))
	}
	if c.IsProduction() {
		if c.AccessTokenSecret == "" {
			errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required in production"))
		}
		if c.RefreshTokenSecret == "" {
			errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required in production"))
		}
	}
	if _, err := clientip.ParseTrusted(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	return errors.Join(errs...)
}

// ApplyDevDefaults fills missing token secrets outside production. It returns
// true when a placeholder was used so the caller can warn about it.
func (c *Config) ApplyDevDefaults() bool {
	if c.IsProduction() {
		return false
	}
	used := false
	if c.AccessTokenSecret == "" {
		c.AccessTokenSecret = "dev-access-secret-change-me"
		used = true
	}
	if c.RefreshTokenSecret == "" {
		c.RefreshTokenSecret = "dev-refresh-secret-change-me"
		used = true
	}
	return used
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

// UploadsEnabled reports whether Cloudinary credentials are present.
func (c *Config) UploadsEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// ParseExpiry accepts Go durations ("15m", "1h30m") and whole days ("10d").
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day expiry %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("expiry must be positive, got %q", s)
	}
	return d, nil
}

// DatabaseName extracts the database from a connection string of the form
// mongodb://host/dbname?opts, falling back when the path is empty.
func DatabaseName(mongoURI, fallback string) string {
	rest := mongoURI
	if idx := strings.Index(rest, "://"); idx != -1 {
		rest = rest[idx+3:]
	}
	idx := strings.Index(rest, "/")
	if idx == -1 {
		return fallback
	}
	name := strings.Split(rest[idx+1:], "?")[0]
	if name == "" {
		return fallback
	}
	return name
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
