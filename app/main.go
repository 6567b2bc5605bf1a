package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/postcomb/postcomb/app/api"
	"github.com/postcomb/postcomb/app/cfg"
	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/ledger"
	"github.com/postcomb/postcomb/app/publisher"
	"github.com/postcomb/postcomb/app/secrets"
	"github.com/postcomb/postcomb/app/source"
	"github.com/postcomb/postcomb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting PostComb server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	cipher, err := secrets.NewCipher(appCfg.EncryptionKey)
	if err != nil {
		slog.Error("Invalid encryption key", "error", err)
		os.Exit(1)
	}

	userRepo := database.NewUserRepository(db)
	sourceRepo := database.NewSourceRepository(db)
	itemRepo := database.NewItemRepository(db)
	ruleRepo := database.NewRuleRepository(db)
	postRepo := database.NewPostRepository(db)
	accountRepo := database.NewAccountRepository(db)
	usageRepo := database.NewUsageRepository(db)

	seeds, err := source.LoadSeedFiles(appCfg.SeedsDir)
	if err != nil {
		slog.Error("Failed to load seed files", "dir", appCfg.SeedsDir, "error", err)
		os.Exit(1)
	}
	if len(seeds) > 0 {
		created, err := source.ApplySeeds(seeds, userRepo, sourceRepo)
		if err != nil {
			slog.Error("Failed to apply seeds", "error", err)
			os.Exit(1)
		}
		slog.Info("Seed sources applied", "files", len(seeds), "created", created)
	}

	registry := publisher.NewRegistry(
		publisher.NewTelegramPublisher(appCfg.TelegramAPIBaseURL, cipher),
		publisher.NewTwitterPublisher(appCfg.TwitterAPIBaseURL, cipher),
		publisher.NewInstagramPublisher(appCfg.InstagramAPIBaseURL, cipher),
	)

	recorder := ledger.NewRecorder(usageRepo)
	httpClient := &http.Client{}
	filterer := source.NewFilterer()
	scorer := source.NewScorer()
	similarity := source.NewTitleSimilarity(0.85)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(sourceRepo, itemRepo, ruleRepo, postRepo, accountRepo,
		recorder, registry, httpClient, filterer, scorer, similarity)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(sourceRepo, itemRepo, ruleRepo, postRepo, accountRepo,
		recorder, cipher, scheduler, httpClient, filterer, scorer, similarity)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
