package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"

	"vibevideo/internal/adapter/repo"
	"vibevideo/internal/http/handlers"
	"vibevideo/internal/http/httpapi"
	"vibevideo/internal/infra"
	"vibevideo/internal/orchestrator"
	videoprovider "vibevideo/internal/providers/video"
	"vibevideo/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	var store storage.ObjectStore
	staticDir := ""
	switch cfg.StorageBackend {
	case "gcs":
		gcsStore, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentials)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: gcs storage failed")
		}
		defer gcsStore.Close()
		store = gcsStore
	default:
		fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: file storage failed")
		}
		store = fileStore
		staticDir = fileStore.BasePath()
	}

	var locker orchestrator.JobLocker
	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: redis connection failed")
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = orchestrator.NewRedisLocker(redislock.New(redisClient), 0)
		logger.Info().Msg("api: using redis job locks")
	}

	provider, err := videoprovider.NewClient(videoprovider.Options{
		APIKey:         cfg.ProviderAPIKey,
		BaseURL:        cfg.ProviderBaseURL,
		Model:          cfg.ProviderModel,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: provider client failed")
	}

	videos := repo.NewVideoRepository(pool)
	orch, err := orchestrator.New(orchestrator.Config{
		Jobs:            repo.NewJobRepository(pool),
		Videos:          videos,
		Ledger:          repo.NewLedgerRepository(pool),
		Vibes:           repo.NewVibeRepository(pool),
		Analytics:       repo.NewAnalyticsRepository(pool),
		Provider:        provider,
		Store:           store,
		Locker:          locker,
		Logger:          logger,
		GenerationCost:  cfg.GenerationCost,
		CallbackBaseURL: cfg.PublicBaseURL,
		ProviderTimeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: orchestrator wiring failed")
	}

	app := handlers.NewApp(orch, videos, logger)
	router := httpapi.NewRouter(app, logger, httpapi.Options{
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  cfg.AllowedOrigins,
		StaticDir:       staticDir,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
