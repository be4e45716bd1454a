package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/videotube-backend/internal/apperror"
	"github.com/AnshRaj112/videotube-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessClaims identify the user for the lifetime of the access token.
type AccessClaims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullname,omitempty"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

type TokenConfig struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
}

// TokenIssuer signs access/refresh token pairs and keeps the single active
// refresh token on the user record.
type TokenIssuer struct {
	users UserStore
	cfg   TokenConfig
	now   func() time.Time
}

func NewTokenIssuer(users UserStore, cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{users: users, cfg: cfg, now: time.Now}
}

// IssueTokens signs a new pair for the user and stores the refresh token,
// replacing whatever was stored before.
func (t *TokenIssuer) IssueTokens(ctx context.Context, userID primitive.ObjectID) (*TokenPair, error) {
	user, err := t.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("Error generating tokens", err)
	}

	pair, err := t.sign(user)
	if err != nil {
		return nil, apperror.Internal("Error generating tokens", err)
	}

	if err := t.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, apperror.Internal("Error generating tokens", err)
	}
	return pair, nil
}

// VerifyRefresh validates a presented refresh token against the stored one and
// rotates it. A token that was already rotated or cleared is rejected.
func (t *TokenIssuer) VerifyRefresh(ctx context.Context, token string) (*TokenPair, error) {
	if token == "" {
		return nil, apperror.Unauthorized("Unauthorized request")
	}

	claims := &RefreshClaims{}
	if err := t.parse(token, claims, t.cfg.RefreshSecret); err != nil {
		return nil, apperror.Unauthorized("Invalid refresh token")
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid refresh token")
	}

	user, err := t.users.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.Unauthorized("Invalid refresh token")
	}
	if err != nil {
		return nil, apperror.Internal("Error refreshing tokens", err)
	}

	if user.RefreshToken != token {
		return nil, apperror.Unauthorized("Refresh token is expired or used")
	}

	pair, err := t.sign(user)
	if err != nil {
		return nil, apperror.Internal("Error refreshing tokens", err)
	}

	swapped, err := t.users.SwapRefreshToken(ctx, user.ID, token, pair.RefreshToken)
	if err != nil {
		return nil, apperror.Internal("Error refreshing tokens", err)
	}
	if !swapped {
		return nil, apperror.Unauthorized("Refresh token is expired or used")
	}
	return pair, nil
}

// ParseAccessToken checks signature and expiry and returns the user id.
func (t *TokenIssuer) ParseAccessToken(token string) (primitive.ObjectID, error) {
	claims := &AccessClaims{}
	if err := t.parse(token, claims, t.cfg.AccessSecret); err != nil {
		return primitive.NilObjectID, apperror.Unauthorized("Invalid access token")
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, apperror.Unauthorized("Invalid access token")
	}
	return id, nil
}

func (t *TokenIssuer) sign(user *models.User) (*TokenPair, error) {
	now := t.now()
	accessExp := now.Add(t.cfg.AccessTTL)
	refreshExp := now.Add(t.cfg.RefreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	accessToken, err := access.SignedString(t.cfg.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	// the jti keeps two refresh tokens issued in the same second distinct
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	refreshToken, err := refresh.SignedString(t.cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (t *TokenIssuer) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
