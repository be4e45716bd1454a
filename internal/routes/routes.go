package routes

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/AnshRaj112/videotube-backend/internal/handlers"
	"github.com/AnshRaj112/videotube-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Logger         *slog.Logger
	Users          *handlers.UserHandler
	Subscriptions  *handlers.SubscriptionHandler
	Auth           *middleware.Authenticator
	Limiter        middleware.Limiter
	AllowedOrigins []string
	TrustedProxies []netip.Prefix
	Production     bool
}

// NewRouter builds the middleware stack and mounts every route.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(d.TrustedProxies))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)

	// Preflight must answer before anything else can reject it
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.Production {
		r.Use(middleware.SecurityHeaders)
	}

	SetupRoutes(r, d)
	return r
}

func SetupRoutes(r chi.Router, d Deps) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})

	limit := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		limit = middleware.RateLimit(d.Limiter)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/users", d.Users.Routes(d.Auth.RequireAuth, limit))
		r.Mount("/subscriptions", d.Subscriptions.Routes(d.Auth.RequireAuth))
	})
}
