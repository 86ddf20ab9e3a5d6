package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/patientid/internal/api"
	"github.com/saturnino-fabrica-de-software/patientid/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/patientid/internal/audit"
	"github.com/saturnino-fabrica-de-software/patientid/internal/cache"
	"github.com/saturnino-fabrica-de-software/patientid/internal/config"
	"github.com/saturnino-fabrica-de-software/patientid/internal/face"
	"github.com/saturnino-fabrica-de-software/patientid/internal/imagefetch"
	"github.com/saturnino-fabrica-de-software/patientid/internal/match"
	"github.com/saturnino-fabrica-de-software/patientid/internal/repository"
	"github.com/saturnino-fabrica-de-software/patientid/internal/service"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting PatientID API",
		slog.String("version", version),
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("provider", cfg.ProviderType),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err = pool.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Face backends; an unreachable model stops the process here
	startupCtx, cancelStartup := context.WithTimeout(ctx, cfg.DeepFaceTimeout+5*time.Second)
	pipeline, err := face.NewPipeline(startupCtx, cfg, logger)
	cancelStartup()
	if err != nil {
		return fmt.Errorf("failed to initialize face backends: %w", err)
	}

	// Matching
	matchConfig := match.Config{
		BatchSize:           cfg.BatchSize,
		GalleryMaxDimension: cfg.GalleryMaxDimension,
		Dimension:           cfg.DescriptorDimension,
		PreloadSampleSize:   cfg.PreloadSampleSize,
		Policy: match.Policy{
			High:          cfg.HighConfidenceDistance,
			Medium:        cfg.MediumConfidenceDistance,
			MarginCeiling: cfg.MarginCeilingDistance,
			MarginRatio:   cfg.MarginRatio,
		},
	}
	if err := matchConfig.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid match policy: %w", err)
	}

	descriptors := cache.NewDescriptorCache(
		cache.WithWarnSize(cfg.DescriptorCacheWarnSize),
		cache.WithLogger(logger),
	)
	fetcher := imagefetch.NewFetcher(imagefetch.Config{
		Timeout:       cfg.FetchTimeout,
		RetryCount:    cfg.FetchRetryCount,
		RetryWaitTime: imagefetch.DefaultConfig().RetryWaitTime,
		MaxEntries:    cfg.ImageCacheMaxEntries,
		MaxBodyBytes:  cfg.FetchMaxBodyBytes,
	}, logger)
	engine := match.NewEngine(descriptors, fetcher, pipeline, matchConfig, logger)

	identification := service.NewIdentificationService(
		repository.NewIdentityRepository(pool),
		pipeline,
		engine,
		audit.NewSlogLogger(logger),
		service.Config{
			ProbeMaxDimension: cfg.ProbeMaxDimension,
			PreloadTimeout:    cfg.PreloadTimeout,
		},
		logger,
	)

	if cfg.PreloadOnStart {
		identification.StartPreload()
	}

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		Identification: identification,
		DB:             pool,
		AdminAPIKey:    cfg.AdminAPIKey,
		RateLimit: middleware.RateLimiterConfig{
			Max:    cfg.RateLimitMax,
			Window: cfg.RateLimitWindow,
		},
		Version: version,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	shutdownDone := make(chan error, 1)
	go func() {
		shutdownDone <- router.Shutdown()
	}()

	select {
	case err := <-shutdownDone:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")
	return nil
}
