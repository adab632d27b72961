// The worker sweeps processing jobs whose webhooks never arrived and
// reconciles them against the provider by polling. It shares the
// orchestrator with the API, so both entry points run the same logic.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"

	"vibevideo/internal/adapter/repo"
	"vibevideo/internal/domain"
	"vibevideo/internal/infra"
	"vibevideo/internal/orchestrator"
	videoprovider "vibevideo/internal/providers/video"
	"vibevideo/internal/storage"
)

const sweepBatchSize = 50

type sweeper struct {
	ctx        context.Context
	jobs       domain.JobRepository
	orch       *orchestrator.Orchestrator
	logger     infra.Logger
	interval   time.Duration
	staleAfter time.Duration
}

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
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	var store storage.ObjectStore
	switch cfg.StorageBackend {
	case "gcs":
		gcsStore, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentials)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: gcs storage failed")
		}
		defer gcsStore.Close()
		store = gcsStore
	default:
		fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: file storage failed")
		}
		store = fileStore
	}

	var locker orchestrator.JobLocker
	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = orchestrator.NewRedisLocker(redislock.New(redisClient), 0)
	}

	provider, err := videoprovider.NewClient(videoprovider.Options{
		APIKey:         cfg.ProviderAPIKey,
		BaseURL:        cfg.ProviderBaseURL,
		Model:          cfg.ProviderModel,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: provider client failed")
	}

	jobs := repo.NewJobRepository(pool)
	orch, err := orchestrator.New(orchestrator.Config{
		Jobs:            jobs,
		Videos:          repo.NewVideoRepository(pool),
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
		logger.Fatal().Err(err).Msg("worker: orchestrator wiring failed")
	}

	w := &sweeper{
		ctx:        ctx,
		jobs:       jobs,
		orch:       orch,
		logger:     logger,
		interval:   cfg.PollInterval,
		staleAfter: cfg.PollStaleAfter,
	}
	if err := w.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *sweeper) Run() error {
	w.logger.Info().Msg("worker: started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *sweeper) sweep() {
	cutoff := time.Now().UTC().Add(-w.staleAfter)
	jobs, err := w.jobs.ListStaleProcessing(w.ctx, cutoff, sweepBatchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("worker: list stale jobs failed")
		return
	}
	for _, job := range jobs {
		select {
		case <-w.ctx.Done():
			return
		default:
		}
		if err := w.orch.Reconcile(w.ctx, job.ID); err != nil {
			w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: reconcile failed")
		}
	}
}
