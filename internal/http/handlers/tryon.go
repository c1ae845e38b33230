package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"stylist/internal/domain"
	"stylist/internal/engine"
)

type startRequest struct {
	Description string `json:"description"`
	Style       string `json:"style"`
}

type garmentResponse struct {
	ID       string    `json:"id"`
	ImageURL string    `json:"image_url"`
	Category string    `json:"category"`
	Label    string    `json:"label,omitempty"`
	Created  time.Time `json:"created_at"`
}

type compositeResponse struct {
	ID       string    `json:"id"`
	ImageURL string    `json:"image_url"`
	Provider string    `json:"provider_used"`
	Risk     string    `json:"risk_level"`
	Created  time.Time `json:"created_at"`
}

type workflowResponse struct {
	Step           string             `json:"step"`
	Progress       int                `json:"progress"`
	Message        string             `json:"message"`
	Garment        *garmentResponse   `json:"garment,omitempty"`
	Composite      *compositeResponse `json:"composite,omitempty"`
	ResetRequired  bool               `json:"avatar_reset_required"`
	ResetSuggested bool               `json:"avatar_reset_suggested"`
}

func workflowFromSnapshot(snap engine.Snapshot) workflowResponse {
	out := workflowResponse{
		Step:           string(snap.Step),
		Progress:       snap.Progress,
		Message:        snap.Message,
		ResetRequired:  snap.ResetRequired,
		ResetSuggested: snap.ResetSuggested,
	}
	if snap.Garment != nil {
		out.Garment = &garmentResponse{
			ID:       snap.Garment.ID,
			ImageURL: snap.Garment.ImageRef,
			Category: string(snap.Garment.Category),
			Label:    snap.Garment.Label,
			Created:  snap.Garment.CreatedAt,
		}
	}
	if snap.Composite != nil {
		out.Composite = &compositeResponse{
			ID:       snap.Composite.ID,
			ImageURL: snap.Composite.ImageRef,
			Provider: string(snap.Composite.ProviderUsed),
			Risk:     string(snap.Composite.RiskLevel),
			Created:  snap.Composite.CreatedAt,
		}
	}
	return out
}

// TryOnStart kicks off garment generation for the caller's session.
func (a *App) TryOnStart(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "description is required")
		return
	}

	snap, err := sess.Start(r.Context(), req.Description, req.Style)
	if err != nil {
		a.workflowError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, workflowFromSnapshot(snap))
}

// TryOnState reports the current workflow snapshot for polling.
func (a *App) TryOnState(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	a.json(w, http.StatusOK, workflowFromSnapshot(sess.Snapshot()))
}

// TryOnConfirm accepts the previewed garment and starts compositing.
func (a *App) TryOnConfirm(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	snap, err := sess.Confirm(r.Context())
	if err != nil {
		a.workflowError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, workflowFromSnapshot(snap))
}

// TryOnReject discards the previewed garment.
func (a *App) TryOnReject(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	snap, err := sess.Reject()
	if err != nil {
		a.workflowError(w, err)
		return
	}
	a.json(w, http.StatusOK, workflowFromSnapshot(snap))
}

// TryOnRestart returns the workflow to idle from any step.
func (a *App) TryOnRestart(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	a.json(w, http.StatusOK, workflowFromSnapshot(sess.Restart()))
}

func (a *App) workflowError(w http.ResponseWriter, err error) {
	var stateErr *domain.StateError
	if errors.As(err, &stateErr) {
		a.error(w, http.StatusConflict, "illegal_transition", stateErr.Error())
		return
	}
	if domain.IsValidation(err) {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.error(w, http.StatusInternalServerError, "internal", err.Error())
}
