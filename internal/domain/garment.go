package domain

import "time"

// Category is one of the fixed garment categories used by the classifier and
// the compositing region hints.
type Category string

const (
	CategoryOnePiece    Category = "one-piece"
	CategoryTops        Category = "tops"
	CategoryBottoms     Category = "bottoms"
	CategoryOuterwear   Category = "outerwear"
	CategoryFootwear    Category = "footwear"
	CategoryAccessories Category = "accessories"

	// CategoryUnclassified marks a description none of the taxonomy keywords
	// matched; downstream consumers fall back to the raw query text.
	CategoryUnclassified Category = "unclassified"
)

// GarmentAsset is a synthesized standalone garment image. Immutable once
// created; owned by the workflow that produced it until the user confirms,
// at which point it is handed to the persistence layer.
type GarmentAsset struct {
	ID         string
	ImageRef   string
	Category   Category
	Label      string
	PromptUsed string
	CreatedAt  time.Time
}

// CompositeProvider tells which try-on provider produced a composite.
type CompositeProvider string

const (
	ProviderPrimary  CompositeProvider = "primary"
	ProviderFallback CompositeProvider = "fallback"
)

// RiskLevel is a coarse classification of how likely a composite is to look
// distorted, based on which provider and parameters produced it.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskElevated RiskLevel = "elevated"
)

// CompositeResult is a garment composited onto an avatar. Immutable once
// created.
type CompositeResult struct {
	ID           string
	ImageRef     string
	ProviderUsed CompositeProvider
	RiskLevel    RiskLevel
	CreatedAt    time.Time
}
