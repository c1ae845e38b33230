package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stylist/internal/adapter/repo"
	"stylist/internal/engine"
	"stylist/internal/garment"
	"stylist/internal/http/handlers"
	"stylist/internal/http/httpapi"
	"stylist/internal/imageref"
	"stylist/internal/infra"
	"stylist/internal/infra/credentials"
	promptprovider "stylist/internal/providers/prompt"
	"stylist/internal/providers/synthesis"
	"stylist/internal/providers/tryon"
	"stylist/internal/retry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "tryon-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	// Keys missing from the environment may still live in the credentials
	// table.
	credStore := credentials.NewStore(pool)
	synthesisKey := resolveKey(ctx, logger, credStore, credentials.ProviderSynthesis, cfg.SynthesisAPIKey)
	tryonKey := resolveKey(ctx, logger, credStore, credentials.ProviderTryOn, cfg.TryOnAPIKey)
	promptKey := resolveKey(ctx, logger, credStore, credentials.ProviderPrompt, cfg.PromptAPIKey)

	synthesisClient, err := synthesis.NewClient(synthesis.Options{
		APIKey:  synthesisKey,
		BaseURL: cfg.SynthesisBaseURL,
		Model:   cfg.SynthesisModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure synthesis client")
	}
	if !synthesisClient.HasCredentials() {
		logger.Warn().Msg("synthesis api key missing, generation requests will fail")
	}

	primaryTryOn, err := tryon.NewClient(tryon.Options{
		APIKey:  tryonKey,
		BaseURL: cfg.TryOnBaseURL,
		Model:   cfg.TryOnPrimaryModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure primary try-on client")
	}
	fallbackTryOn, err := tryon.NewClient(tryon.Options{
		APIKey:  tryonKey,
		BaseURL: cfg.TryOnBaseURL,
		Model:   cfg.TryOnFallbackModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure fallback try-on client")
	}

	composer := promptprovider.NewRemoteComposer(promptprovider.RemoteOptions{
		APIKey:  promptKey,
		BaseURL: cfg.PromptBaseURL,
		Model:   cfg.PromptModel,
		Logger:  &logger,
	})

	checker := imageref.NewChecker(nil)
	stagePolicy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		Growth:      cfg.RetryGrowth,
	}
	compositePolicy := stagePolicy
	compositePolicy.MaxAttempts = cfg.CompositeRetryMaxAttempts

	synthesisStage := engine.NewSynthesisStage(engine.SynthesisStageConfig{
		Classifier: garment.NewClassifier(),
		Composer:   composer,
		Generator:  synthesisClient,
		Checker:    checker,
		Policy:     stagePolicy,
		Width:      cfg.SynthesisWidth,
		Height:     cfg.SynthesisHeight,
		Logger:     logger,
	})
	compositingStage := engine.NewCompositingStage(engine.CompositingStageConfig{
		Primary:          primaryTryOn,
		Fallback:         fallbackTryOn,
		Checker:          checker,
		Policy:           compositePolicy,
		PrimaryStrength:  cfg.TryOnPrimaryStrength,
		FallbackStrength: cfg.TryOnFallbackStrength,
		Logger:           logger,
	})

	avatars := repo.NewAvatarRepository(pool)
	manager := engine.NewManager(engine.ManagerConfig{
		Synthesis:   synthesisStage,
		Compositing: compositingStage,
		Ledger:      engine.NewLedger(avatars, cfg.AvatarWarnFraction),
		Avatars:     avatars,
		Garments:    repo.NewGarmentRepository(pool),
		Composites:  repo.NewCompositeRepository(pool),
		Checker:     checker,
		MaxChanges:  cfg.MaxAvatarChanges,
		Logger:      logger,
	})

	app := handlers.NewApp(manager, logger)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func resolveKey(ctx context.Context, logger infra.Logger, store *credentials.Store, provider, envKey string) string {
	if key := strings.TrimSpace(envKey); key != "" {
		return key
	}
	key, err := store.Token(ctx, provider)
	if err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("failed to load api key from store")
		return ""
	}
	return key
}
