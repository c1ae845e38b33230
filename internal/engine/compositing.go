package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stylist/internal/domain"
	"stylist/internal/providers/tryon"
	"stylist/internal/retry"
)

// Compositor is the try-on provider contract consumed by the stage.
type Compositor interface {
	Composite(ctx context.Context, req tryon.Request) (*tryon.Image, error)
	Model() string
}

// CompositingStageConfig wires a CompositingStage.
type CompositingStageConfig struct {
	Primary          Compositor
	Fallback         Compositor
	Checker          RefChecker
	Policy           retry.Policy
	PrimaryStrength  float64
	FallbackStrength float64
	Logger           zerolog.Logger
}

// CompositingStage places a garment image onto an avatar image, trying the
// primary provider first and falling back to a secondary provider with more
// conservative blending parameters.
type CompositingStage struct {
	primary          Compositor
	fallback         Compositor
	checker          RefChecker
	policy           retry.Policy
	primaryStrength  float64
	fallbackStrength float64
	logger           zerolog.Logger
}

func NewCompositingStage(cfg CompositingStageConfig) *CompositingStage {
	policy := cfg.Policy
	if policy.MaxAttempts < 1 {
		policy = retry.Policy{MaxAttempts: 2, BaseDelay: 2 * time.Second, Growth: 1}
	}
	if policy.OnAttempt == nil {
		policy.OnAttempt = attemptLogger(cfg.Logger)
	}
	primaryStrength := cfg.PrimaryStrength
	if primaryStrength <= 0 || primaryStrength > 1 {
		primaryStrength = 0.85
	}
	fallbackStrength := cfg.FallbackStrength
	if fallbackStrength <= 0 || fallbackStrength > 1 {
		fallbackStrength = 0.6
	}
	return &CompositingStage{
		primary:          cfg.Primary,
		fallback:         cfg.Fallback,
		checker:          cfg.Checker,
		policy:           policy,
		primaryStrength:  primaryStrength,
		fallbackStrength: fallbackStrength,
		logger:           cfg.Logger,
	}
}

// Composite validates both image references up front, then attempts the
// primary provider under the retry policy and the fallback provider after
// that. When both fail, the returned error retains both underlying causes.
func (s *CompositingStage) Composite(ctx context.Context, asset *domain.GarmentAsset, avatar *domain.AvatarState) (*domain.CompositeResult, error) {
	// Retrying with a broken input cannot succeed, so both refs are checked
	// before any provider call.
	if err := s.checker.Check(ctx, asset.ImageRef); err != nil {
		return nil, domain.NewValidationError("garment image failed validation", err)
	}
	if err := s.checker.Check(ctx, avatar.CurrentRef); err != nil {
		return nil, domain.NewValidationError("avatar image failed validation", err)
	}

	base := tryon.Request{
		SourceImageURL:  avatar.CurrentRef,
		GarmentImageURL: asset.ImageRef,
		CategoryHint:    regionHint(asset.Category),
	}

	primaryReq := base
	primaryReq.Strength = s.primaryStrength
	image, primaryErr := retry.Do(ctx, s.policy, s.primary.Model(), func() (*tryon.Image, error) {
		return s.primary.Composite(ctx, primaryReq)
	})
	if primaryErr == nil {
		return s.result(image.URL, domain.ProviderPrimary), nil
	}
	s.logger.Warn().Err(primaryErr).
		Str("model", s.primary.Model()).
		Msg("primary try-on provider failed, trying fallback")

	// Lower strength preserves more of the base avatar, trading fidelity for
	// reduced distortion risk.
	fallbackReq := base
	fallbackReq.Strength = s.fallbackStrength
	image, fallbackErr := retry.Do(ctx, s.policy, s.fallback.Model(), func() (*tryon.Image, error) {
		return s.fallback.Composite(ctx, fallbackReq)
	})
	if fallbackErr == nil {
		return s.result(image.URL, domain.ProviderFallback), nil
	}

	return nil, &domain.CompositeFailure{Primary: primaryErr, Fallback: fallbackErr}
}

func (s *CompositingStage) result(imageRef string, provider domain.CompositeProvider) *domain.CompositeResult {
	risk := domain.RiskLow
	if provider == domain.ProviderFallback {
		risk = domain.RiskElevated
	}
	return &domain.CompositeResult{
		ID:           uuid.NewString(),
		ImageRef:     imageRef,
		ProviderUsed: provider,
		RiskLevel:    risk,
		CreatedAt:    time.Now().UTC(),
	}
}

// regionHint maps a garment category to the provider's region parameter.
func regionHint(category domain.Category) string {
	switch category {
	case domain.CategoryOnePiece:
		return "full_body"
	case domain.CategoryTops, domain.CategoryOuterwear:
		return "upper_body"
	case domain.CategoryBottoms:
		return "lower_body"
	case domain.CategoryFootwear:
		return "feet"
	case domain.CategoryAccessories:
		return "accessory"
	default:
		return "auto"
	}
}
