package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stylist/internal/infra"
)

const (
	remoteDefaultTimeout = 15 * time.Second
	remoteDefaultModel   = "gpt-4o-mini"
	remoteProviderName   = "prompt-enrichment"
)

// RemoteOptions configures the text-generation provider used for prompt
// enrichment.
type RemoteOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Fallback   Composer
}

// RemoteComposer asks a text-generation provider for an enriched synthesis
// prompt. Any failure (missing credentials, non-2xx, timeout, malformed or
// empty output) falls through to the deterministic composer; it never
// surfaces an error to the caller.
type RemoteComposer struct {
	apiKey   string
	baseURL  string
	model    string
	client   *http.Client
	logger   *infra.Logger
	fallback Composer
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewRemoteComposer(opts RemoteOptions) *RemoteComposer {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = remoteDefaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: remoteDefaultTimeout}
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewStaticComposer()
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &RemoteComposer{
		apiKey:   strings.TrimSpace(opts.APIKey),
		baseURL:  baseURL,
		model:    model,
		client:   client,
		logger:   logger,
		fallback: fallback,
	}
}

func (r *RemoteComposer) Compose(ctx context.Context, req Request) SynthesisPrompt {
	if r.apiKey == "" {
		return r.fallback.Compose(ctx, req)
	}
	enriched, err := r.generate(ctx, req)
	if err != nil {
		r.logger.Warn().Err(err).Msg("prompt enrichment unavailable, using deterministic composer")
		return r.fallback.Compose(ctx, req)
	}

	out := r.fallback.Compose(ctx, req)
	out.Prompt = enriched
	out.Enriched = true
	return out
}

func (r *RemoteComposer) generate(ctx context.Context, req Request) (string, error) {
	payload := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: buildInstructions(req)},
			{Role: "user", Content: strings.TrimSpace(req.UserText)},
		},
		Temperature: 0.7,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encode request: %w", remoteProviderName, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", remoteProviderName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: http request: %w", remoteProviderName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", remoteProviderName, err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s: status %d: %s", remoteProviderName, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", remoteProviderName, err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", remoteProviderName)
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%s: empty prompt", remoteProviderName)
	}
	return content, nil
}

func buildInstructions(req Request) string {
	var b strings.Builder
	b.WriteString("Rewrite the garment description into a detailed image generation prompt. ")
	b.WriteString("Describe fabric, cut, color and texture. ")
	b.WriteString("The image must show the standalone garment only, with no person wearing it. ")
	if style := strings.TrimSpace(req.Style); style != "" {
		fmt.Fprintf(&b, "Match a %s style. ", strings.ToLower(style))
	}
	b.WriteString("Answer with the prompt text only.")
	return b.String()
}

var _ Composer = (*RemoteComposer)(nil)
