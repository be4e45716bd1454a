package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENV", "MONGODB_URI", "MONGO_URI", "MONGODB_DATABASE", "ACCESS_TOKEN_EXPIRY",
		"REFRESH_TOKEN_EXPIRY", "ALLOWED_ORIGINS", "CORS_ORIGIN", "REDIS_URI", "ACCESS_TOKEN_SECRET", "REFRESH_TOKEN_SECRET",
		"CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "mongodb://localhost:27017/videotube", cfg.MongoURI)
	assert.Equal(t, "videotube", cfg.MongoDatabase)
	assert.Equal(t, time.Hour, cfg.AccessTokenExpiry)
	assert.Equal(t, 10*24*time.Hour, cfg.RefreshTokenExpiry)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.RedisURI)
	assert.False(t, cfg.UploadsEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", " Production ")
	t.Setenv("MONGO_URI", "mongodb+srv://u:p@cluster0.example.net/tube?retryWrites=true")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("MONGODB_DATABASE", "")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "15m")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "7d")
	t.Setenv("ACCESS_TOKEN_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "b")
	t.Setenv("ALLOWED_ORIGINS", "https://tube.example.com, http://localhost:5173,")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "tube", cfg.MongoDatabase)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenExpiry)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenExpiry)
	assert.Equal(t, []string{"https://tube.example.com", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.True(t, cfg.UploadsEnabled())
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.7"}, cfg.TrustedProxies)
	require.NoError(t, cfg.Validate())
}

func TestValidate_ProductionRequiresSecrets(t *testing.T) {
	cfg := &Config{
		Environment:        "production",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_SECRET")
	assert.Contains(t, err.Error(), "REFRESH_TOKEN_SECRET")

	assert.False(t, cfg.ApplyDevDefaults())
	assert.Empty(t, cfg.AccessTokenSecret)
}

func TestValidate_RejectsBadExpiryAndSharedSecret(t *testing.T) {
	cfg := &Config{
		AccessTokenSecret:  "same",
		RefreshTokenSecret: "same",
		RefreshTokenExpiry: time.Hour,
		accessExpiryRaw:    "soon",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid ACCESS_TOKEN_EXPIRY "soon"`)
	assert.Contains(t, err.Error(), "must differ")
}

func TestValidate_RejectsBadTrustedProxy(t *testing.T) {
	cfg := &Config{
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour,
		TrustedProxies:     []string{"10.0.0.0/8", "proxy.internal"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid TRUSTED_PROXIES")
	assert.Contains(t, err.Error(), "proxy.internal")
}

func TestApplyDevDefaults(t *testing.T) {
	cfg := &Config{Environment: "development", RefreshTokenSecret: "kept"}

	assert.True(t, cfg.ApplyDevDefaults())
	assert.NotEmpty(t, cfg.AccessTokenSecret)
	assert.Equal(t, "kept", cfg.RefreshTokenSecret)
	assert.False(t, cfg.ApplyDevDefaults())
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "1d", want: 24 * time.Hour},
		{in: "10d", want: 240 * time.Hour},
		{in: "90m", want: 90 * time.Minute},
		{in: " 2h ", want: 2 * time.Hour},
		{in: "0d", wantErr: true},
		{in: "xd", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExpiry(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "tube", DatabaseName("mongodb://localhost:27017/tube", "x"))
	assert.Equal(t, "tube", DatabaseName("mongodb+srv://u:p@c.example.net/tube?w=majority", "x"))
	assert.Equal(t, "x", DatabaseName("mongodb://localhost:27017/", "x"))
	assert.Equal(t, "x", DatabaseName("mongodb://localhost:27017", "x"))
	assert.Equal(t, "x", DatabaseName("mongodb://localhost:27017/?replicaSet=rs0", "x"))
}
