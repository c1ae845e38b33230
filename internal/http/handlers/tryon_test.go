package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stylist/internal/domain"
	"stylist/internal/engine"
	"stylist/internal/infra"
	"stylist/internal/middleware"
	"stylist/internal/providers/prompt"
	"stylist/internal/providers/synthesis"
	"stylist/internal/providers/tryon"
	"stylist/internal/retry"
)

type stubAvatarRepo struct {
	mu     sync.Mutex
	states map[string]*domain.AvatarState
}

func (r *stubAvatarRepo) Load(_ context.Context, userID string) (*domain.AvatarState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return state.Clone(), nil
}

func (r *stubAvatarRepo) Save(_ context.Context, state *domain.AvatarState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.UserID] = state.Clone()
	return nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, synthesis.Request) ([]synthesis.Image, error) {
	return []synthesis.Image{{URL: "https://cdn.example.com/garment.png"}}, nil
}

type stubCompositor struct{ model string }

func (c stubCompositor) Composite(context.Context, tryon.Request) (*tryon.Image, error) {
	return &tryon.Image{URL: "https://cdn.example.com/composite.png"}, nil
}

func (c stubCompositor) Model() string { return c.model }

type stubChecker struct{}

func (stubChecker) Check(context.Context, string) error { return nil }

type stubGarmentRepo struct{}

func (stubGarmentRepo) Save(context.Context, string, *domain.GarmentAsset) error { return nil }

type stubCompositeRepo struct{}

func (stubCompositeRepo) Save(context.Context, string, *domain.CompositeResult) error { return nil }

func newTestApp() *App {
	avatars := &stubAvatarRepo{states: map[string]*domain.AvatarState{
		"u1": {
			UserID:      "u1",
			OriginalRef: "https://cdn.example.com/avatars/u1.png",
			CurrentRef:  "https://cdn.example.com/avatars/u1.png",
			MaxChanges:  5,
		},
	}}
	policy := retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Growth: 1}
	manager := engine.NewManager(engine.ManagerConfig{
		Synthesis: engine.NewSynthesisStage(engine.SynthesisStageConfig{
			Composer:  prompt.NewStaticComposer(),
			Generator: stubGenerator{},
			Checker:   stubChecker{},
			Policy:    policy,
			Logger:    zerolog.Nop(),
		}),
		Compositing: engine.NewCompositingStage(engine.CompositingStageConfig{
			Primary:  stubCompositor{model: "model-a"},
			Fallback: stubCompositor{model: "model-b"},
			Checker:  stubChecker{},
			Policy:   policy,
			Logger:   zerolog.Nop(),
		}),
		Ledger:     engine.NewLedger(avatars, 0.8),
		Avatars:    avatars,
		Garments:   stubGarmentRepo{},
		Composites: stubCompositeRepo{},
		Logger:     zerolog.Nop(),
	})
	logger := infra.Logger(zerolog.Nop())
	return NewApp(manager, logger)
}

func doRequest(handler http.HandlerFunc, method, target, userID string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	middleware.UserID(handler).ServeHTTP(rec, req)
	return rec
}

func decodeWorkflow(t *testing.T, rec *httptest.ResponseRecorder) workflowResponse {
	t.Helper()
	var out workflowResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func pollUntilStep(t *testing.T, app *App, userID, want string) workflowResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec := doRequest(app.TryOnState, http.MethodGet, "/v1/tryon/state", userID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("state status = %d: %s", rec.Code, rec.Body.String())
		}
		state := decodeWorkflow(t, rec)
		if state.Step == want {
			return state
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("workflow never reached step %q", want)
	return workflowResponse{}
}

func TestTryOnLifecycleOverHTTP(t *testing.T) {
	app := newTestApp()

	rec := doRequest(app.TryOnStart, http.MethodPost, "/v1/tryon/start", "u1",
		`{"description":"a flowy red sundress","style":"casual"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	started := decodeWorkflow(t, rec)
	if started.Step != "generating" {
		t.Fatalf("step = %q, want generating", started.Step)
	}

	preview := pollUntilStep(t, app, "u1", "preview")
	if preview.Garment == nil {
		t.Fatalf("preview missing garment")
	}
	if preview.Garment.Category != "one-piece" {
		t.Fatalf("category = %q, want one-piece", preview.Garment.Category)
	}

	rec = doRequest(app.TryOnConfirm, http.MethodPost, "/v1/tryon/confirm", "u1", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("confirm status = %d: %s", rec.Code, rec.Body.String())
	}

	done := pollUntilStep(t, app, "u1", "complete")
	if done.Composite == nil {
		t.Fatalf("complete missing composite")
	}
	if done.Composite.Provider != "primary" {
		t.Fatalf("provider = %q, want primary", done.Composite.Provider)
	}
	if done.Progress != 100 {
		t.Fatalf("progress = %d, want 100", done.Progress)
	}

	rec = doRequest(app.AvatarGet, http.MethodGet, "/v1/avatar", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("avatar status = %d", rec.Code)
	}
	var avatar avatarResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &avatar); err != nil {
		t.Fatalf("decode avatar: %v", err)
	}
	if avatar.ChangeCount != 1 {
		t.Fatalf("change count = %d, want 1", avatar.ChangeCount)
	}
	if avatar.CurrentURL != "https://cdn.example.com/composite.png" {
		t.Fatalf("current url = %q", avatar.CurrentURL)
	}
	if avatar.Pristine {
		t.Fatalf("avatar must not be pristine after a composite")
	}
}

func TestTryOnStartRequiresUser(t *testing.T) {
	app := newTestApp()
	rec := doRequest(app.TryOnStart, http.MethodPost, "/v1/tryon/start", "", `{"description":"x"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTryOnStartUnknownUserIs404(t *testing.T) {
	app := newTestApp()
	rec := doRequest(app.TryOnStart, http.MethodPost, "/v1/tryon/start", "ghost", `{"description":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no_avatar") {
		t.Fatalf("body = %s, want no_avatar slug", rec.Body.String())
	}
}

func TestTryOnStartRejectsEmptyDescription(t *testing.T) {
	app := newTestApp()
	rec := doRequest(app.TryOnStart, http.MethodPost, "/v1/tryon/start", "u1", `{"description":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTryOnConfirmBeforePreviewIsConflict(t *testing.T) {
	app := newTestApp()
	rec := doRequest(app.TryOnConfirm, http.MethodPost, "/v1/tryon/confirm", "u1", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "illegal_transition") {
		t.Fatalf("body = %s, want illegal_transition slug", rec.Body.String())
	}
}

func TestTryOnRestartFromAnyStep(t *testing.T) {
	app := newTestApp()
	rec := doRequest(app.TryOnStart, http.MethodPost, "/v1/tryon/start", "u1", `{"description":"a red gown"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d", rec.Code)
	}
	rec = doRequest(app.TryOnRestart, http.MethodPost, "/v1/tryon/restart", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("restart status = %d", rec.Code)
	}
	out := decodeWorkflow(t, rec)
	if out.Step != "idle" {
		t.Fatalf("step = %q, want idle", out.Step)
	}
	if out.Progress != 0 {
		t.Fatalf("progress = %d, want 0", out.Progress)
	}
}

func TestAvatarReset(t *testing.T) {
	app := newTestApp()

	// Apply one composite so the reset has something to undo.
	doRequest(app.TryOnStart, http.MethodPost, "/v1/tryon/start", "u1", `{"description":"a red gown"}`)
	pollUntilStep(t, app, "u1", "preview")
	doRequest(app.TryOnConfirm, http.MethodPost, "/v1/tryon/confirm", "u1", "")
	pollUntilStep(t, app, "u1", "complete")

	rec := doRequest(app.AvatarReset, http.MethodPost, "/v1/avatar/reset", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d: %s", rec.Code, rec.Body.String())
	}
	var avatar avatarResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &avatar); err != nil {
		t.Fatalf("decode avatar: %v", err)
	}
	if avatar.ChangeCount != 0 {
		t.Fatalf("change count = %d, want 0", avatar.ChangeCount)
	}
	if avatar.CurrentURL != avatar.OriginalURL {
		t.Fatalf("current url = %q, want original %q", avatar.CurrentURL, avatar.OriginalURL)
	}
	if !avatar.Pristine {
		t.Fatalf("avatar must be pristine after reset")
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp()
	rec := doRequest(app.Health, http.MethodGet, "/v1/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
