package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AnshRaj112/videotube-backend/internal/apperror"
	"github.com/AnshRaj112/videotube-backend/internal/logging"
	"github.com/AnshRaj112/videotube-backend/internal/middleware"
	"github.com/AnshRaj112/videotube-backend/internal/models"
	"github.com/AnshRaj112/videotube-backend/internal/services"
	"github.com/AnshRaj112/videotube-backend/pkg/utils"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const refreshTokenCookie = "refreshToken"

// CookieConfig controls the session cookies. Both are always HttpOnly and
// Secure.
type CookieConfig struct {
	Domain string
}

type UserResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

type AuthResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type ChannelResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Channel *models.ChannelProfile `json:"channel"`
}

type HistoryResponse struct {
	Success      bool                  `json:"success"`
	Message      string                `json:"message"`
	WatchHistory []models.WatchedVideo `json:"watchHistory"`
}

type UserHandler struct {
	users    services.UserStore
	profiles services.ProfileStore
	tokens   *services.TokenIssuer
	media    *services.MediaService
	cookies  CookieConfig
}

func NewUserHandler(users services.UserStore, profiles services.ProfileStore, tokens *services.TokenIssuer, media *services.MediaService, cookies CookieConfig) *UserHandler {
	return &UserHandler{users: users, profiles: profiles, tokens: tokens, media: media, cookies: cookies}
}

// Routes mounts the public and authenticated account endpoints. limit wraps
// the credential endpoints.
func (h *UserHandler) Routes(requireAuth, limit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.With(limit).Post("/register", handle(h.Register))
	r.With(limit).Post("/login", handle(h.Login))
	r.With(limit).Post("/refresh-token", handle(h.RefreshToken))

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/logout", handle(h.Logout))
		r.Post("/change-password", handle(h.ChangePassword))
		r.Get("/current-user", handle(h.CurrentUser))
		r.Patch("/update-account", handle(h.UpdateAccount))
		r.Patch("/avatar", handle(h.UpdateAvatar))
		r.Patch("/cover-image", handle(h.UpdateCoverImage))
		r.Get("/c/{username}", handle(h.ChannelProfile))
		r.Get("/history", handle(h.WatchHistory))
	})
	return r
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) error {
	if err := parseMultipart(w, r); err != nil {
		return err
	}

	var username, email, fullName, password string
	if err := readFields(w, r, map[string]*string{
		"username": &username,
		"email":    &email,
		"fullname": &fullName,
		"password": &password,
	}); err != nil {
		return err
	}
	if anyEmpty(username, email, fullName, password) {
		return apperror.BadRequest("All fields are required")
	}
	username, email = utils.NormalizeUsername(username), utils.NormalizeEmail(email)

	_, err := h.users.GetByEmail(r.Context(), email)
	if err == nil {
		return apperror.Conflict("User already exists")
	}
	if !errors.Is(err, services.ErrNotFound) {
		return apperror.Internal("Error registering user", err)
	}

	avatarFile := formFile(r, "avatar")
	if avatarFile == nil {
		return apperror.BadRequest("Avatar image is required")
	}

	avatarURL, err := h.media.UploadFormFile(r.Context(), avatarFile)
	if err != nil {
		return apperror.Internal("Error uploading avatar image", err)
	}

	var coverURL string
	if coverFile := formFile(r, "coverImage"); coverFile != nil {
		coverURL, err = h.media.UploadFormFile(r.Context(), coverFile)
		if err != nil {
			logging.FromContext(r.Context()).Warn("cover image upload failed", "error", err)
			coverURL = ""
		}
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return apperror.Internal("Error registering user", err)
	}

	user := &models.User{
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Avatar:     avatarURL,
		CoverImage: coverURL,
		Password:   hash,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.media.Discard(r.Context(), avatarURL, coverURL)
		if errors.Is(err, services.ErrDuplicate) {
			return apperror.Conflict("User with email or username already exists")
		}
		return apperror.Internal("Error registering user", err)
	}

	writeJSON(w, http.StatusCreated, UserResponse{
		Success: true,
		Message: "User registered successfully",
		User:    user.Sanitized(),
	})
	return nil
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var email, username, password string
	if err := readFields(w, r, map[string]*string{
		"email":    &email,
		"username": &username,
		"password": &password,
	}); err != nil {
		return err
	}
	if anyEmpty(email, username, password) {
		return apperror.BadRequest("Email, username and password are required")
	}

	user, err := h.users.GetByCredentials(r.Context(), utils.NormalizeEmail(email), utils.NormalizeUsername(username))
	if errors.Is(err, services.ErrNotFound) {
		return apperror.NotFound("User not found")
	}
	if err != nil {
		return apperror.Internal("Error logging in", err)
	}

	ok, err := utils.VerifyPassword(password, user.Password)
	if err != nil && !errors.Is(err, utils.ErrInvalidHash) {
		return apperror.Internal("Error logging in", err)
	}
	if !ok {
		return apperror.Unauthorized("Invalid credentials")
	}

	pair, err := h.tokens.IssueTokens(r.Context(), user.ID)
	if err != nil {
		return err
	}

	loggedIn, err := h.users.GetPublicByID(r.Context(), user.ID)
	if err != nil {
		return apperror.Internal("Error logging in", err)
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, AuthResponse{
		Success:      true,
		Message:      "Login successful",
		User:         loggedIn.Sanitized(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	return nil
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	user, err := sessionUser(r)
	if err != nil {
		return err
	}
	if err := h.users.ClearRefreshToken(r.Context(), user.ID); err != nil {
		return apperror.Internal("Error logging out", err)
	}

	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "User Logout Success"})
	return nil
}

func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) error {
	var token string
	if c, err := r.Cookie(refreshTokenCookie); err == nil && c.Value != "" {
		token = c.Value
	} else if r.ContentLength != 0 {
		if err := readFields(w, r, map[string]*string{"refreshToken": &token}); err != nil {
			return err
		}
	}

	pair, err := h.tokens.VerifyRefresh(r.Context(), token)
	if err != nil {
		return err
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, AuthResponse{
		Success:      true,
		Message:      "Access token refreshed",
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	return nil
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	session, err := sessionUser(r)
	if err != nil {
		return err
	}

	var oldPassword, newPassword string
	if err := readFields(w, r, map[string]*string{
		"oldPassword": &oldPassword,
		"newPassword": &newPassword,
	}); err != nil {
		return err
	}
	if anyEmpty(oldPassword, newPassword) {
		return apperror.BadRequest("Old and new password are required")
	}

	user, err := h.users.GetByID(r.Context(), session.ID)
	if errors.Is(err, services.ErrNotFound) {
		return apperror.Unauthorized("Invalid access token")
	}
	if err != nil {
		return apperror.Internal("Error changing password", err)
	}

	ok, err := utils.VerifyPassword(oldPassword, user.Password)
	if err != nil && !errors.Is(err, utils.ErrInvalidHash) {
		return apperror.Internal("Error changing password", err)
	}
	if !ok {
		return apperror.Unauthorized("Invalid old password")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperror.Internal("Error changing password", err)
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		return apperror.Internal("Error changing password", err)
	}

	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Password changed successfully"})
	return nil
}

func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) error {
	user, err := sessionUser(r)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		Message: "Current user fetched successfully",
		User:    user,
	})
	return nil
}

func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) error {
	session, err := sessionUser(r)
	if err != nil {
		return err
	}

	var fullName, email string
	if err := readFields(w, r, map[string]*string{
		"fullname": &fullName,
		"email":    &email,
	}); err != nil {
		return err
	}
	if anyEmpty(fullName, email) {
		return apperror.BadRequest("All fields are required")
	}

	user, err := h.users.UpdateDetails(r.Context(), session.ID, fullName, utils.NormalizeEmail(email))
	switch {
	case errors.Is(err, services.ErrDuplicate):
		return apperror.Conflict("Email is already in use")
	case errors.Is(err, services.ErrNotFound):
		return apperror.NotFound("User not found")
	case err != nil:
		return apperror.Internal("Error updating account", err)
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		Message: "Account details updated successfully",
		User:    user.Sanitized(),
	})
	return nil
}

func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) error {
	return h.updateImage(w, r, "avatar", "Avatar", h.users.UpdateAvatar)
}

func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) error {
	return h.updateImage(w, r, "coverImage", "Cover image", h.users.UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, id primitive.ObjectID, url string) (*models.User, error)

func (h *UserHandler) updateImage(w http.ResponseWriter, r *http.Request, field, label string, update imageUpdater) error {
	session, err := sessionUser(r)
	if err != nil {
		return err
	}
	if err := parseMultipart(w, r); err != nil {
		return err
	}

	file := formFile(r, field)
	if file == nil {
		return apperror.BadRequest(label + " file is missing")
	}

	url, err := h.media.UploadFormFile(r.Context(), file)
	if err != nil {
		logging.FromContext(r.Context()).Warn("image upload failed", "field", field, "error", err)
		return apperror.BadRequest("Error while uploading " + field)
	}

	user, err := update(r.Context(), session.ID, url)
	if err != nil {
		h.media.Discard(r.Context(), url)
	}
	if errors.Is(err, services.ErrNotFound) {
		return apperror.NotFound("User not found")
	}
	if err != nil {
		return apperror.Internal("Error updating "+field, err)
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		Message: label + " updated successfully",
		User:    user.Sanitized(),
	})
	return nil
}

func (h *UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) error {
	session, err := sessionUser(r)
	if err != nil {
		return err
	}

	username := utils.NormalizeUsername(chi.URLParam(r, "username"))
	if username == "" {
		return apperror.BadRequest("Username is missing")
	}

	profile, err := h.profiles.ChannelProfile(r.Context(), username, session.ID)
	if errors.Is(err, services.ErrNotFound) {
		return apperror.NotFound("Channel does not exist")
	}
	if err != nil {
		return apperror.Internal("Error fetching channel", err)
	}

	writeJSON(w, http.StatusOK, ChannelResponse{
		Success: true,
		Message: "User channel fetched successfully",
		Channel: profile,
	})
	return nil
}

func (h *UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) error {
	session, err := sessionUser(r)
	if err != nil {
		return err
	}

	history, err := h.profiles.WatchHistory(r.Context(), session.ID)
	if err != nil {
		return apperror.Internal("Error fetching watch history", err)
	}
	if history == nil {
		history = []models.WatchedVideo{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Success:      true,
		Message:      "Watch history fetched successfully",
		WatchHistory: history,
	})
	return nil
}

func (h *UserHandler) setSessionCookies(w http.ResponseWriter, pair *services.TokenPair) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, h.cookie(refreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (h *UserHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, refreshTokenCookie} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *UserHandler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func sessionUser(r *http.Request) (*models.User, error) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		return nil, apperror.Unauthorized("Unauthorized request")
	}
	return user, nil
}
