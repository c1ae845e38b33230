package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"stylist/internal/domain"
)

type avatarRegisterRequest struct {
	ImageURL string `json:"image_url"`
}

type avatarResponse struct {
	OriginalURL   string    `json:"original_url"`
	CurrentURL    string    `json:"current_url"`
	ChangeCount   int       `json:"change_count"`
	MaxChanges    int       `json:"max_changes"`
	ResetRequired bool      `json:"reset_required"`
	Pristine      bool      `json:"pristine"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func avatarFromState(state *domain.AvatarState) avatarResponse {
	return avatarResponse{
		OriginalURL:   state.OriginalRef,
		CurrentURL:    state.CurrentRef,
		ChangeCount:   state.ChangeCount,
		MaxChanges:    state.MaxChanges,
		ResetRequired: state.ResetRequired,
		Pristine:      state.Pristine(),
		UpdatedAt:     state.UpdatedAt,
	}
}

// AvatarRegister stores a new pristine avatar image for the caller. Any
// previous avatar and any in-flight try-on are replaced.
func (a *App) AvatarRegister(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req avatarRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image_url is required")
		return
	}

	state, err := a.Engine.RegisterAvatar(r.Context(), userID, strings.TrimSpace(req.ImageURL))
	if err != nil {
		if domain.IsValidation(err) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("avatar registration failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to register avatar")
		return
	}
	a.json(w, http.StatusCreated, avatarFromState(state))
}

// AvatarGet returns the caller's avatar ledger state.
func (a *App) AvatarGet(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	a.json(w, http.StatusOK, avatarFromState(sess.Avatar()))
}

// AvatarReset restores the avatar to its pristine original, clearing the
// accumulated-drift counter.
func (a *App) AvatarReset(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	state, err := sess.ResetAvatar(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("avatar reset failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to reset avatar")
		return
	}
	a.json(w, http.StatusOK, avatarFromState(state))
}
