// Package synthesis is the HTTP client for the image-synthesis provider that
// produces standalone garment images from composed prompts.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stylist/internal/domain"
	"stylist/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("synthesis: api key is required")

const providerName = "synthesis"

// Options configures the synthesis client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the image-synthesis API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Request captures the inputs for one generation call.
type Request struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	NumImages      int
}

// Image is a single generated image reference.
type Image struct {
	URL string
}

type generationRequest struct {
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negative_prompt,omitempty"`
	ImageSize      imageSize `json:"image_size"`
	NumImages      int       `json:"num_images"`
}

type imageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type generationResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://fal.run"
	}
	model := strings.Trim(strings.TrimSpace(opts.Model), "/")
	if model == "" {
		model = "fal-ai/flux/dev"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Generate invokes the synthesis API once. Failures are classified into the
// domain error taxonomy so the retry scheduler can tell transient outages
// from fatal request problems.
func (c *Client) Generate(ctx context.Context, req Request) ([]Image, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.NewValidationError("synthesis: prompt is required", nil)
	}
	numImages := req.NumImages
	if numImages <= 0 {
		numImages = 1
	}
	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		width, height = 768, 1024
	}

	payload := generationRequest{
		Prompt:         prompt,
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		ImageSize:      imageSize{Width: width, Height: height},
		NumImages:      numImages,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("synthesis: encode request: %w", err)
	}

	endpoint := c.baseURL + "/" + c.model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("synthesis: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Transient: true, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Transient: true, Cause: err}
	}

	if resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, raw)
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Msg: "malformed response body", Transient: true, Cause: err}
	}
	images := make([]Image, 0, len(decoded.Images))
	for _, img := range decoded.Images {
		if url := strings.TrimSpace(img.URL); url != "" {
			images = append(images, Image{URL: url})
		}
	}
	if len(images) == 0 {
		return nil, &domain.ProviderError{Provider: providerName, Msg: "empty image result", Transient: true}
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("images", len(images)).
		Msg("synthesis: generated garment image")
	return images, nil
}

func classifyStatus(status int, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		for _, candidate := range []string{detail.Message, detail.Error, detail.Detail} {
			if candidate != "" {
				msg = candidate
				break
			}
		}
	}
	transient := status >= 500 ||
		status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout
	return &domain.ProviderError{Provider: providerName, Status: status, Msg: msg, Transient: transient}
}
