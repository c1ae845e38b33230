package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	CORSAllowedOrigins []string

	// Text-generation provider used for prompt enrichment. Optional; an empty
	// key keeps the deterministic composer.
	PromptAPIKey  string
	PromptBaseURL string
	PromptModel   string

	// Image-synthesis provider.
	SynthesisAPIKey  string
	SynthesisBaseURL string
	SynthesisModel   string
	SynthesisWidth   int
	SynthesisHeight  int

	// Try-on (compositing) providers. Primary and fallback share credentials
	// and wire shape but run different models with different blending
	// strengths.
	TryOnAPIKey           string
	TryOnBaseURL          string
	TryOnPrimaryModel     string
	TryOnFallbackModel    string
	TryOnPrimaryStrength  float64
	TryOnFallbackStrength float64

	// Retry policy for the synthesis stage and, with its own attempt cap, the
	// compositing stage.
	RetryMaxAttempts          int
	RetryBaseDelay            time.Duration
	RetryGrowth               float64
	CompositeRetryMaxAttempts int

	// Avatar drift protection.
	MaxAvatarChanges   int
	AvatarWarnFraction float64

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		CORSAllowedOrigins: splitEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		PromptAPIKey:  os.Getenv("PROMPT_API_KEY"),
		PromptBaseURL: getEnv("PROMPT_BASE_URL", "https://api.openai.com/v1"),
		PromptModel:   getEnv("PROMPT_MODEL", "gpt-4o-mini"),

		SynthesisAPIKey:  os.Getenv("SYNTHESIS_API_KEY"),
		SynthesisBaseURL: getEnv("SYNTHESIS_BASE_URL", "https://fal.run"),
		SynthesisModel:   getEnv("SYNTHESIS_MODEL", "fal-ai/flux/dev"),
		SynthesisWidth:   getEnvInt("SYNTHESIS_IMAGE_WIDTH", 768),
		SynthesisHeight:  getEnvInt("SYNTHESIS_IMAGE_HEIGHT", 1024),

		TryOnAPIKey:           os.Getenv("TRYON_API_KEY"),
		TryOnBaseURL:          getEnv("TRYON_BASE_URL", "https://fal.run"),
		TryOnPrimaryModel:     getEnv("TRYON_PRIMARY_MODEL", "fal-ai/fashn/tryon"),
		TryOnFallbackModel:    getEnv("TRYON_FALLBACK_MODEL", "fal-ai/idm-vton"),
		TryOnPrimaryStrength:  getEnvFloat("TRYON_PRIMARY_STRENGTH", 0.85),
		TryOnFallbackStrength: getEnvFloat("TRYON_FALLBACK_STRENGTH", 0.6),

		RetryMaxAttempts:          getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:            time.Millisecond * time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", 2000)),
		RetryGrowth:               getEnvFloat("RETRY_GROWTH", 1.5),
		CompositeRetryMaxAttempts: getEnvInt("COMPOSITE_RETRY_MAX_ATTEMPTS", 2),

		MaxAvatarChanges:   getEnvInt("MAX_AVATAR_CHANGES", 5),
		AvatarWarnFraction: getEnvFloat("AVATAR_RESET_WARN_FRACTION", 0.8),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MaxAvatarChanges < 1 {
		return nil, fmt.Errorf("MAX_AVATAR_CHANGES must be at least 1")
	}
	if cfg.AvatarWarnFraction <= 0 || cfg.AvatarWarnFraction > 1 {
		return nil, fmt.Errorf("AVATAR_RESET_WARN_FRACTION must be in (0, 1]")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
