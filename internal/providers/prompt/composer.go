// Package prompt turns a user's garment description into a synthesis request,
// optionally enriching it through a text-generation provider with a
// deterministic fallback when that provider is unavailable.
package prompt

import (
	"context"

	"stylist/internal/domain"
)

// Request carries everything the composer needs for one garment.
type Request struct {
	UserText string
	Style    string
	Category domain.Category
}

// SynthesisPrompt is the composed input for the image-synthesis provider.
type SynthesisPrompt struct {
	Prompt         string
	NegativePrompt string
	// Label is a short title-cased rendering of the description, used in
	// status messages and persisted records.
	Label string
	// Enriched is true when the text-generation provider produced the prompt
	// rather than the deterministic composer.
	Enriched bool
}

// Composer builds a SynthesisPrompt. Implementations must not fail: when an
// upstream provider is unavailable they degrade to the deterministic path.
type Composer interface {
	Compose(ctx context.Context, req Request) SynthesisPrompt
}
