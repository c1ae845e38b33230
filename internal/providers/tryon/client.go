// Package tryon is the HTTP client for the image-compositing ("try-on")
// providers that place a garment image onto an avatar image. The primary and
// fallback providers share this wire shape and differ only in model and
// blending parameters.
package tryon

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
var ErrMissingAPIKey = errors.New("tryon: api key is required")

// Options configures a try-on client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to one try-on model endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Request captures the inputs for one compositing call.
type Request struct {
	SourceImageURL  string
	GarmentImageURL string
	CategoryHint    string
	Strength        float64
}

// Image is the composited result reference.
type Image struct {
	URL string
}

type compositeRequest struct {
	SourceImageURL  string  `json:"source_image_url"`
	GarmentImageURL string  `json:"garment_image_url"`
	CategoryHint    string  `json:"category_hint,omitempty"`
	Strength        float64 `json:"strength,omitempty"`
}

type compositeResponse struct {
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
			timeout = 90 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://fal.run"
	}
	model := strings.Trim(strings.TrimSpace(opts.Model), "/")
	if model == "" {
		model = "fal-ai/fashn/tryon"
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

// Composite invokes the try-on API once and returns the first composited
// image. Failures carry the domain error taxonomy so callers can decide
// between retry, fallback, and surfacing.
func (c *Client) Composite(ctx context.Context, req Request) (*Image, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.SourceImageURL) == "" {
		return nil, domain.NewValidationError("tryon: source image url is required", nil)
	}
	if strings.TrimSpace(req.GarmentImageURL) == "" {
		return nil, domain.NewValidationError("tryon: garment image url is required", nil)
	}

	payload := compositeRequest{
		SourceImageURL:  strings.TrimSpace(req.SourceImageURL),
		GarmentImageURL: strings.TrimSpace(req.GarmentImageURL),
		CategoryHint:    strings.TrimSpace(req.CategoryHint),
		Strength:        req.Strength,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tryon: encode request: %w", err)
	}

	endpoint := c.baseURL + "/" + c.model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tryon: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: c.model, Transient: true, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: c.model, Transient: true, Cause: err}
	}
	if resp.StatusCode >= 300 {
		return nil, c.classifyStatus(resp.StatusCode, raw)
	}

	var decoded compositeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.ProviderError{Provider: c.model, Msg: "malformed response body", Transient: true, Cause: err}
	}
	for _, img := range decoded.Images {
		if url := strings.TrimSpace(img.URL); url != "" {
			c.logger.Debug().
				Str("model", c.model).
				Str("url", url).
				Msg("tryon: composited image")
			return &Image{URL: url}, nil
		}
	}
	return nil, &domain.ProviderError{Provider: c.model, Msg: "empty composite result", Transient: true}
}

func (c *Client) classifyStatus(status int, raw []byte) error {
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
	return &domain.ProviderError{Provider: c.model, Status: status, Msg: msg, Transient: transient}
}
