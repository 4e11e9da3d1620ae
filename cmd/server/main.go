package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"prism/internal/api"
	"prism/internal/config"
	"prism/internal/models"
	"prism/internal/reporting"
	"prism/internal/repository"
	"prism/internal/service"
	"prism/internal/storage"
	"prism/pkg/logger"

	"go.uber.org/zap"
)

const (
	// Application information
	AppName    = "Prism"
	AppVersion = "0.1.0"

	// Graceful shutdown timeout
	ShutdownTimeout = 30 * time.Second

	reporterFlushTimeout = 2 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application failed to start: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger first
	if err := logger.Init(logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Starting "+AppName,
		zap.String("version", AppVersion),
		zap.String("port", cfg.Server.Port),
		zap.Bool("multi_customer", cfg.Tenancy.MultiCustomer),
		zap.Bool("development", cfg.IsDevelopment()))

	reporter, err := reporting.New(&cfg.Sentry)
	if err != nil {
		return fmt.Errorf("failed to initialize error reporting: %w", err)
	}
	defer reporter.Flush(reporterFlushTimeout)

	index, err := repository.NewDerivativeIndex(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize derivative index: %w", err)
	}
	defer func() {
		if err := index.Close(); err != nil {
			logger.Error("Failed to close derivative index", zap.Error(err))
		}
	}()

	s3Store := storage.NewS3Store()
	gateway := storage.NewHTTPGateway(&http.Client{}, storage.DefaultRetryPolicy())
	customers := newCustomerStore(cfg, s3Store)

	derivation := service.NewDerivationService(
		gateway,
		s3Store,
		service.NewProcessorService(service.NewSmartcropDetector()),
		index,
		service.NewJanitor(cfg.Janitor.Glob, cfg.Janitor.MaxAge),
		cfg.Cache.TTL,
	)
	healthService := service.NewHealthService(index, customers, derivation, cfg.Server.TestImage, AppVersion)

	router := api.NewRouter(cfg, derivation, customers, healthService, reporter)

	server := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        router.GetEngine(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	if cfg.IsDevelopment() {
		router.PrintRoutes()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, server)
}

// newCustomerStore reads credentials.json from the secrets bucket in multi
// customer mode, and otherwise serves the single bucket from the environment
func newCustomerStore(cfg *config.Config, s3Store *storage.S3Store) service.CustomerStore {
	if cfg.Tenancy.MultiCustomer {
		secrets := models.Bucket{
			Name:            cfg.Tenancy.SecretsBucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.EndpointURL,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
		}
		logger.Info("Loading customers from secrets bucket",
			zap.String("bucket", secrets.Name),
			zap.String("default_customer", cfg.Tenancy.DefaultCustomer))
		return service.NewMultiCustomerStore(storage.NewSecretsLoader(s3Store, secrets), cfg.Tenancy.DefaultCustomer)
	}

	return service.NewSingleCustomerStore(cfg.Tenancy.DefaultCustomer, models.CustomerCredentials{
		ReadBucketName:         cfg.S3.Bucket,
		ReadBucketKeyID:        cfg.S3.AccessKey,
		ReadBucketSecretKey:    cfg.S3.SecretKey,
		ReadBucketRegion:       cfg.S3.Region,
		ReadBucketEndpointURL:  cfg.S3.EndpointURL,
		WriteBucketName:        cfg.S3.WriteBucket,
		WriteBucketEndpointURL: cfg.S3.EndpointURL,
	})
}

// serve runs server until ctx is cancelled, then drains in-flight requests
func serve(ctx context.Context, server *http.Server) error {
	errs := make(chan error, 1)
	go func() {
		logger.Info("Listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("server failed to start: %w", err)
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down", zap.Duration("timeout", ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
