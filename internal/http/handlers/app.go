package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"stylist/internal/domain"
	"stylist/internal/engine"
	"stylist/internal/infra"
	"stylist/internal/middleware"
)

// App is the handler container wiring the workflow engine and repositories
// into the HTTP surface.
type App struct {
	Engine *engine.Manager
	Logger infra.Logger
}

func NewApp(eng *engine.Manager, logger infra.Logger) *App {
	return &App{Engine: eng, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"error": slug, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// session resolves the caller's workflow session or writes the error
// response and returns nil.
func (a *App) session(w http.ResponseWriter, r *http.Request) *engine.Session {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil
	}
	sess, err := a.Engine.Session(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "no_avatar", "create an avatar before trying on garments")
			return nil
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("failed to open workflow session")
		a.error(w, http.StatusInternalServerError, "internal", "failed to open workflow session")
		return nil
	}
	return sess
}
