package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestAvatarRegisterThenTryOn(t *testing.T) {
	app := newTestApp()

	// A user without an avatar cannot start a try-on.
	rec := doRequest(app.TryOnStart, http.MethodPost, "/v1/tryon/start", "u2", `{"description":"a red gown"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("start without avatar status = %d, want 404", rec.Code)
	}

	rec = doRequest(app.AvatarRegister, http.MethodPost, "/v1/avatar", "u2",
		`{"image_url":"https://cdn.example.com/avatars/u2.png"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	var avatar avatarResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &avatar); err != nil {
		t.Fatalf("decode avatar: %v", err)
	}
	if !avatar.Pristine {
		t.Fatalf("new avatar must be pristine")
	}
	if avatar.MaxChanges < 1 {
		t.Fatalf("max changes = %d", avatar.MaxChanges)
	}

	rec = doRequest(app.TryOnStart, http.MethodPost, "/v1/tryon/start", "u2", `{"description":"a red gown"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start after register status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAvatarRegisterRequiresImageURL(t *testing.T) {
	app := newTestApp()
	rec := doRequest(app.AvatarRegister, http.MethodPost, "/v1/avatar", "u1", `{"image_url":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAvatarRegisterRequiresUser(t *testing.T) {
	app := newTestApp()
	rec := doRequest(app.AvatarRegister, http.MethodPost, "/v1/avatar", "",
		`{"image_url":"https://cdn.example.com/a.png"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
