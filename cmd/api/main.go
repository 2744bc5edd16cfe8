package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"server/internal/adapter/repo"
	"server/internal/dispatch"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/ledger"
	"server/internal/notify"
	"server/internal/orchestrator"
	"server/internal/providers/inference"
	"server/internal/storage"
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
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	users := repo.NewUserRepository(pool)
	photos := repo.NewPhotoRepository(pool)
	ledgerStore := repo.NewLedgerStore(pool)
	creditLedger := ledger.New(ledgerStore, logger)

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init storage")
	}
	thumbs := storage.NewThumbnailer(fileStore, nil)

	provider := inference.NewReplicateClient(inference.ReplicateOptions{
		BaseURL:      cfg.ReplicateBaseURL,
		APIToken:     cfg.ReplicateAPIToken,
		ModelVersion: cfg.ReplicateModel,
	})

	hub := notify.NewHub(logger)
	defer hub.Close()

	orch := orchestrator.New(ctx, orchestrator.Config{
		WaitCeiling: cfg.JobWaitCeiling,
		MaxRetries:  cfg.JobMaxRetries,
	}, photos, creditLedger, provider, thumbs, hub, logger)
	defer orch.Close()

	dispatcher := dispatch.New(creditLedger, orch, logger)

	// Periodic sweep for jobs stranded by a crash or restart.
	reconciler := orchestrator.NewReconciler(photos, creditLedger, hub, logger, cfg.ReconcileMaxAge)
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.ReconcileSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := reconciler.Sweep(sweepCtx); err != nil {
			logger.Error().Err(err).Msg("reconcile sweep failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("invalid reconcile schedule")
	}
	sched.Start()
	defer sched.Stop()

	app := &handlers.App{
		Users:        users,
		Photos:       photos,
		Ledger:       creditLedger,
		Orchestrator: orch,
		Dispatcher:   dispatcher,
		Hub:          hub,
		Store:        fileStore,
		Logger:       logger,
	}

	router := httpapi.NewRouter(app, logger, httpapi.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimitPerMin,
		RateWindow:     time.Minute,
		StaticDir:      cfg.StoragePath,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
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
