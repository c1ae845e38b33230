// Package engine drives a garment description from text prompt to a
// composited image on the user's avatar: classification, prompt composition,
// garment synthesis, try-on compositing with provider fallback, and the
// avatar drift ledger, sequenced by a per-session workflow state machine.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stylist/internal/domain"
	"stylist/internal/garment"
	"stylist/internal/providers/prompt"
	"stylist/internal/providers/synthesis"
	"stylist/internal/retry"
)

// Generator is the image-synthesis provider contract consumed by the stage.
type Generator interface {
	Generate(ctx context.Context, req synthesis.Request) ([]synthesis.Image, error)
}

// RefChecker validates that an image reference resolves to an image resource.
type RefChecker interface {
	Check(ctx context.Context, ref string) error
}

// SynthesisStageConfig wires a SynthesisStage.
type SynthesisStageConfig struct {
	Classifier *garment.Classifier
	Composer   prompt.Composer
	Generator  Generator
	Checker    RefChecker
	Policy     retry.Policy
	Width      int
	Height     int
	Logger     zerolog.Logger
}

// SynthesisStage produces a standalone garment image from a description.
type SynthesisStage struct {
	classifier *garment.Classifier
	composer   prompt.Composer
	generator  Generator
	checker    RefChecker
	policy     retry.Policy
	width      int
	height     int
	logger     zerolog.Logger
}

func NewSynthesisStage(cfg SynthesisStageConfig) *SynthesisStage {
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = garment.NewClassifier()
	}
	width, height := cfg.Width, cfg.Height
	if width <= 0 || height <= 0 {
		width, height = 768, 1024
	}
	policy := cfg.Policy
	if policy.MaxAttempts < 1 {
		policy = retry.DefaultPolicy()
	}
	if policy.OnAttempt == nil {
		policy.OnAttempt = attemptLogger(cfg.Logger)
	}
	return &SynthesisStage{
		classifier: classifier,
		composer:   cfg.Composer,
		generator:  cfg.Generator,
		checker:    cfg.Checker,
		policy:     policy,
		width:      width,
		height:     height,
		logger:     cfg.Logger,
	}
}

// attemptLogger adapts a stage logger into a retry attempt observer.
func attemptLogger(logger zerolog.Logger) func(domain.ProviderAttempt) {
	return func(a domain.ProviderAttempt) {
		evt := logger.Debug().
			Str("provider", a.Provider).
			Str("outcome", string(a.Outcome))
		if a.ErrorDetail != "" {
			evt = evt.Str("error", a.ErrorDetail)
		}
		evt.Msg("provider attempt")
	}
}

// Synthesize composes a prompt, calls the synthesis provider under the retry
// policy, and validates the returned reference before declaring success. The
// category comes from the original user text, not the enriched prompt, to
// keep classification stable.
func (s *SynthesisStage) Synthesize(ctx context.Context, userText, style string) (*domain.GarmentAsset, error) {
	composition := s.classifier.Classify(userText)
	category := composition.Primary()

	sp := s.composer.Compose(ctx, prompt.Request{
		UserText: userText,
		Style:    style,
		Category: category,
	})

	images, err := retry.Do(ctx, s.policy, "synthesis", func() ([]synthesis.Image, error) {
		return s.generator.Generate(ctx, synthesis.Request{
			Prompt:         sp.Prompt,
			NegativePrompt: sp.NegativePrompt,
			Width:          s.width,
			Height:         s.height,
			NumImages:      1,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, &domain.ProviderError{Provider: "synthesis", Msg: "empty image result", Transient: true}
	}

	imageRef := images[0].URL
	// An unreachable URL will stay unreachable; do not retry with the same
	// inputs.
	if err := s.checker.Check(ctx, imageRef); err != nil {
		return nil, domain.NewValidationError("generated garment image failed validation", err)
	}

	s.logger.Info().
		Str("category", string(category)).
		Bool("multi_piece", composition.IsMultiPiece).
		Bool("enriched", sp.Enriched).
		Msg("garment synthesized")

	return &domain.GarmentAsset{
		ID:         uuid.NewString(),
		ImageRef:   imageRef,
		Category:   category,
		Label:      sp.Label,
		PromptUsed: sp.Prompt,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
