package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"stylist/internal/http/handlers"
	"stylist/internal/infra"
	"stylist/internal/middleware"
)

// NewRouter assembles the HTTP surface consumed by the app UI.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.UserID,
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/tryon", func(r chi.Router) {
		// The generative routes are the expensive ones; cap them per client.
		limited := middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)
		r.With(limited).Post("/start", app.TryOnStart)
		r.With(limited).Post("/confirm", app.TryOnConfirm)
		r.Get("/state", app.TryOnState)
		r.Post("/reject", app.TryOnReject)
		r.Post("/restart", app.TryOnRestart)
	})

	r.Route("/v1/avatar", func(r chi.Router) {
		r.Post("/", app.AvatarRegister)
		r.Get("/", app.AvatarGet)
		r.Post("/reset", app.AvatarReset)
	})

	return r
}
