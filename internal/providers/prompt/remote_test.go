package prompt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stylist/internal/domain"
)

func TestRemoteComposeUsesEnrichedPrompt(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  an enriched sundress prompt  "}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	composer := NewRemoteComposer(RemoteOptions{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	})
	out := composer.Compose(context.Background(), Request{
		UserText: "a red sundress",
		Style:    "casual",
		Category: domain.CategoryOnePiece,
	})

	if out.Prompt != "an enriched sundress prompt" {
		t.Fatalf("prompt = %q", out.Prompt)
	}
	if !out.Enriched {
		t.Fatalf("expected enriched prompt")
	}
	// Negative prompt and label still come from the deterministic composer.
	if !strings.Contains(out.NegativePrompt, "separate top") {
		t.Fatalf("negative prompt = %q", out.NegativePrompt)
	}
	if out.Label != "A Red Sundress" {
		t.Fatalf("label = %q", out.Label)
	}
	if captured.Model != "test-model" {
		t.Fatalf("model = %q", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[1].Content != "a red sundress" {
		t.Fatalf("messages = %+v", captured.Messages)
	}
	if !strings.Contains(captured.Messages[0].Content, "no person wearing it") {
		t.Fatalf("system instructions = %q", captured.Messages[0].Content)
	}
}

func TestRemoteComposeFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	composer := NewRemoteComposer(RemoteOptions{APIKey: "test-key", BaseURL: srv.URL})
	out := composer.Compose(context.Background(), Request{UserText: "wool sweater", Style: "casual"})

	if out.Enriched {
		t.Fatalf("fallback output must not be marked enriched")
	}
	if !strings.HasPrefix(out.Prompt, "wool sweater, ") {
		t.Fatalf("prompt = %q, want deterministic composition", out.Prompt)
	}
}

func TestRemoteComposeFallsBackOnEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	composer := NewRemoteComposer(RemoteOptions{APIKey: "test-key", BaseURL: srv.URL})
	out := composer.Compose(context.Background(), Request{UserText: "wool sweater"})
	if out.Enriched {
		t.Fatalf("fallback output must not be marked enriched")
	}
}

func TestRemoteComposeWithoutKeySkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	composer := NewRemoteComposer(RemoteOptions{BaseURL: srv.URL})
	out := composer.Compose(context.Background(), Request{UserText: "wool sweater"})
	if called {
		t.Fatalf("remote endpoint must not be called without credentials")
	}
	if out.Prompt == "" {
		t.Fatalf("expected deterministic prompt")
	}
}
