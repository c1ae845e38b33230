// Package imageref verifies that an image reference returned by a provider
// actually resolves to an image resource before the workflow builds on it.
package imageref

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultCheckTimeout = 10 * time.Second

// Checker performs a lightweight existence check against an image URL.
type Checker struct {
	client *http.Client
}

func NewChecker(client *http.Client) *Checker {
	if client == nil {
		client = &http.Client{Timeout: defaultCheckTimeout}
	}
	return &Checker{client: client}
}

// Check returns nil when ref points at a reachable resource with an image
// content type. Any failure means retrying with the same reference cannot
// succeed, so callers treat it as a validation failure, not a provider flake.
func (c *Checker) Check(ctx context.Context, ref string) error {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid image url: %q", ref)
	}

	resp, err := c.do(ctx, http.MethodHead, parsed.String())
	if err != nil {
		return fmt.Errorf("image unreachable: %w", err)
	}
	resp.Body.Close()

	// Some CDNs refuse HEAD; fall back to a GET we drain immediately.
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp, err = c.do(ctx, http.MethodGet, parsed.String())
		if err != nil {
			return fmt.Errorf("image unreachable: %w", err)
		}
		resp.Body.Close()
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("image unreachable: status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return fmt.Errorf("not an image resource: content type %q", contentType)
	}
	return nil
}

func (c *Checker) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	return c.client.Do(req)
}
