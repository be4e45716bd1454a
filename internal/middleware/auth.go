package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/videotube-backend/internal/logging"
	"github.com/AnshRaj112/videotube-backend/internal/models"
	"github.com/AnshRaj112/videotube-backend/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessTokenCookie is read before the Authorization header.
const AccessTokenCookie = "accessToken"

type ctxKey struct{}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// CurrentUser returns the user attached by RequireAuth.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.User)
	return u, ok && u != nil
}

type accessTokenParser interface {
	ParseAccessToken(token string) (primitive.ObjectID, error)
}

type publicUserLoader interface {
	GetPublicByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type Authenticator struct {
	tokens accessTokenParser
	users  publicUserLoader
}

func NewAuthenticator(tokens *services.TokenIssuer, users services.UserStore) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// RequireAuth resolves the access token into a user or answers 401.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized request")
			return
		}

		id, err := a.tokens.ParseAccessToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		user, err := a.users.GetPublicByID(r.Context(), id)
		if err != nil {
			if !errors.Is(err, services.ErrNotFound) {
				logging.FromContext(r.Context()).Error("load session user", "user_id", id.Hex(), "error", err)
			}
			writeError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
