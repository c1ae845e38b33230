package prompt

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stylist/internal/domain"
)

const staticProviderName = "static"

// qualityModifiers are appended to every deterministic prompt.
var qualityModifiers = []string{
	"professional product photography",
	"studio lighting",
	"clean white background",
	"high detail",
	"standalone garment, no person wearing it",
}

// styleModifiers translate the requested style into generation guidance.
// Unknown styles fall back to the default entry.
var styleModifiers = map[string]string{
	"casual":     "relaxed everyday wear, soft natural fabric",
	"formal":     "elegant tailored cut, refined fabric, evening wear",
	"sporty":     "athletic fit, technical fabric, activewear",
	"streetwear": "urban streetwear aesthetic, bold contemporary cut",
	"bohemian":   "flowing bohemian silhouette, natural textures, earthy tones",
	"vintage":    "vintage-inspired cut, classic retro styling",
	"minimalist": "clean minimal lines, muted palette, understated",
}

const defaultStyleModifier = "versatile modern styling"

// negativeBase is excluded from every synthesis request; categoryNegatives
// add per-category exclusions on top.
const negativeBase = "person, body, face, hands, mannequin, distorted, deformed, blurry, low quality, watermark, text"

var categoryNegatives = map[domain.Category]string{
	domain.CategoryOnePiece:    "separate top, separate bottom, two-piece outfit",
	domain.CategoryTops:        "pants, skirt, legs, full outfit",
	domain.CategoryBottoms:     "shirt, blouse, torso, full outfit",
	domain.CategoryOuterwear:   "inner layers, full outfit",
	domain.CategoryFootwear:    "legs, pants, full outfit, pair mismatch",
	domain.CategoryAccessories: "clothing, outfit",
}

// NegativePromptFor returns the exclusion terms for a category.
func NegativePromptFor(category domain.Category) string {
	if extra, ok := categoryNegatives[category]; ok {
		return negativeBase + ", " + extra
	}
	return negativeBase
}

// StaticComposer is the deterministic fallback path: user text plus fixed
// quality modifiers, a standalone-garment qualifier, and a style-specific
// modifier from a lookup table. It performs no external calls.
type StaticComposer struct {
	titler cases.Caser
}

func NewStaticComposer() *StaticComposer {
	return &StaticComposer{titler: cases.Title(language.Und)}
}

func (s *StaticComposer) Compose(_ context.Context, req Request) SynthesisPrompt {
	text := strings.TrimSpace(req.UserText)
	parts := make([]string, 0, 2+len(qualityModifiers))
	parts = append(parts, text)
	parts = append(parts, styleModifier(req.Style))
	parts = append(parts, qualityModifiers...)

	return SynthesisPrompt{
		Prompt:         strings.Join(parts, ", "),
		NegativePrompt: NegativePromptFor(req.Category),
		Label:          s.titler.String(text),
	}
}

func styleModifier(style string) string {
	if m, ok := styleModifiers[strings.ToLower(strings.TrimSpace(style))]; ok {
		return m
	}
	return defaultStyleModifier
}

var _ Composer = (*StaticComposer)(nil)
