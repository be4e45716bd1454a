package handlers

import (
	"errors"
	"net/http"

	"github.com/AnshRaj112/videotube-backend/internal/apperror"
	"github.com/AnshRaj112/videotube-backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SubscriptionResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Subscribed bool   `json:"subscribed"`
}

type SubscriptionHandler struct {
	users services.UserStore
	subs  services.SubscriptionStore
}

func NewSubscriptionHandler(users services.UserStore, subs services.SubscriptionStore) *SubscriptionHandler {
	return &SubscriptionHandler{users: users, subs: subs}
}

func (h *SubscriptionHandler) Routes(requireAuth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requireAuth)
	r.Post("/c/{channelId}", handle(h.Toggle))
	return r
}

// Toggle subscribes the caller to the channel, or unsubscribes when already
// subscribed.
func (h *SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) error {
	session, err := sessionUser(r)
	if err != nil {
		return err
	}

	channelID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "channelId"))
	if err != nil {
		return apperror.BadRequest("Invalid channel id")
	}
	if channelID == session.ID {
		return apperror.BadRequest("You cannot subscribe to your own channel")
	}

	if _, err := h.users.GetPublicByID(r.Context(), channelID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return apperror.NotFound("Channel not found")
		}
		return apperror.Internal("Error toggling subscription", err)
	}

	subscribed, err := h.subs.Toggle(r.Context(), session.ID, channelID)
	if err != nil {
		return apperror.Internal("Error toggling subscription", err)
	}

	msg := "Unsubscribed successfully"
	if subscribed {
		msg = "Subscribed successfully"
	}
	writeJSON(w, http.StatusOK, SubscriptionResponse{Success: true, Message: msg, Subscribed: subscribed})
	return nil
}
