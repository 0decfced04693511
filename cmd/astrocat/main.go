package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/config"
	dbPostgres "github.com/kailas-cloud/astrocat/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/astrocat/internal/db/redis"
	"github.com/kailas-cloud/astrocat/internal/domain/photometry"
	logpkg "github.com/kailas-cloud/astrocat/internal/logger"
	"github.com/kailas-cloud/astrocat/internal/metrics"
	catalogrepo "github.com/kailas-cloud/astrocat/internal/repository/catalog"
	crossmatchrepo "github.com/kailas-cloud/astrocat/internal/repository/crossmatch"
	observationrepo "github.com/kailas-cloud/astrocat/internal/repository/observation"
	workflowrepo "github.com/kailas-cloud/astrocat/internal/repository/workflow"
	"github.com/kailas-cloud/astrocat/internal/retry"
	"github.com/kailas-cloud/astrocat/internal/storage/blob"
	chiTransport "github.com/kailas-cloud/astrocat/internal/transport/chi"
	cataloguc "github.com/kailas-cloud/astrocat/internal/usecase/catalog"
	crossmatchuc "github.com/kailas-cloud/astrocat/internal/usecase/crossmatch"
	healthuc "github.com/kailas-cloud/astrocat/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/astrocat/internal/usecase/ingest"
	intermediateuc "github.com/kailas-cloud/astrocat/internal/usecase/intermediate"
	observationuc "github.com/kailas-cloud/astrocat/internal/usecase/observation"
	qualityuc "github.com/kailas-cloud/astrocat/internal/usecase/quality"
	variabilityuc "github.com/kailas-cloud/astrocat/internal/usecase/variability"
	workflowuc "github.com/kailas-cloud/astrocat/internal/usecase/workflow"
	"github.com/kailas-cloud/astrocat/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting astrocat API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
		zap.String("workflow_backend", cfg.Workflow.Backend),
		zap.Bool("blob_enabled", cfg.BlobEnabled()),
	)

	metrics.Register()
	ctx := context.Background()

	// Positional index
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create redis store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Redis not ready", zap.Error(err))
	}
	catRepo := catalogrepo.New(store, cfg.Redis.KeyPrefix).WithPageSize(cfg.Catalog.ScanPageSize)
	if err := catRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to create catalog index", zap.Error(err))
	}
	logger.Info("Connected to redis")

	// Relational store
	pgCfg := &dbPostgres.Config{
		URL:             cfg.Postgres.URL,
		MaxConnections:  cfg.Postgres.MaxConnections,
		MaxConnLifetime: time.Duration(cfg.Postgres.MaxConnLifetimeSec) * time.Second,
		MaxConnIdleTime: time.Duration(cfg.Postgres.MaxConnIdleSec) * time.Second,
	}
	pg, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*dbPostgres.DB, error) {
		return dbPostgres.NewConnection(ctx, pgCfg)
	})
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer pg.Close()

	if *cfg.Postgres.Migrate {
		if err := dbPostgres.RunMigrations(pg, logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}
	logger.Info("Connected to postgres")

	// Object store, optional
	var blobStore *blob.Store
	if cfg.BlobEnabled() {
		blobStore, err = blob.New(blob.Config{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			UseSSL:    cfg.Blob.UseSSL,
			Region:    cfg.Blob.Region,
			Buckets:   cfg.Blob.Buckets,
		}, blob.WithLogger(logger))
		if err != nil {
			logger.Fatal("Failed to create blob store", zap.Error(err))
		}
		buckets := cfg.Blob.Buckets
		if len(buckets) == 0 {
			buckets = []string{blob.BucketIntermediates, blob.BucketWorkflowPlans}
		}
		if err := blobStore.EnsureBuckets(ctx, buckets...); err != nil {
			logger.Fatal("Failed to create buckets", zap.Error(err))
		}
		logger.Info("Connected to blob store", zap.String("endpoint", cfg.Blob.Endpoint))
	}

	// Repositories
	xmRepo := crossmatchrepo.New(pg)
	obsRepo := observationrepo.New(pg)

	var wfStore workflowuc.Store
	switch cfg.Workflow.Backend {
	case "memory":
		wfStore = workflowrepo.NewMemory(cfg.Workflow.HistoryCap)
	default:
		wfStore = workflowrepo.NewPostgres(pg, cfg.Workflow.HistoryCap)
	}

	// Use case services
	catalogSvc := cataloguc.New(catRepo).
		WithLimits(cataloguc.Limits{
			DefaultMaxResults: cfg.Catalog.DefaultMaxResults,
			MaxResults:        cfg.Catalog.MaxResults,
			MaxBoxResults:     cfg.Catalog.MaxBoxResults,
			BatchSize:         cfg.Catalog.BatchSize,
			HighPMThreshold:   cfg.Catalog.HighPMThreshold,
			NearestCandidates: cfg.Catalog.NearestCandidates,
		}).
		WithReferences(obsRepo, xmRepo).
		WithLogger(logger)
	crossmatchSvc := crossmatchuc.New(catalogSvc, xmRepo).
		WithDefaultRadius(cfg.CrossMatch.DefaultRadiusArcsec).
		WithVersion(cfg.CrossMatch.Version).
		WithLogger(logger)
	observationSvc := observationuc.New(obsRepo, catalogSvc).WithLogger(logger)
	variabilitySvc := variabilityuc.New(observationSvc, catalogSvc).
		WithMaxPoints(cfg.Variability.MaxPoints).
		WithLogger(logger)
	qualitySvc := qualityuc.New(catalogSvc).
		WithLimits(cfg.Catalog.ScanPageSize, cfg.Quality.MaxSources).
		WithLogger(logger)
	workflowSvc := workflowuc.New(wfStore).WithLogger(logger)

	calibrator := photometry.NewCalibrator(
		photometry.WithZeroPoints(cfg.Photometry.ZeroPoints),
		photometry.WithExtinction(cfg.Photometry.Extinction),
	)
	ingestSvc := ingestuc.New(catalogSvc, calibrator).
		WithWorkflows(workflowSvc).
		WithLogger(logger)

	health := []healthuc.Component{
		{Name: "catalog", Pinger: store, Required: true},
		{Name: "database", Pinger: pg, Required: true},
	}

	services := chiTransport.Services{
		Catalog:      catalogSvc,
		CrossMatch:   crossmatchSvc,
		Ingest:       ingestSvc,
		Variability:  variabilitySvc,
		Quality:      qualitySvc,
		Observations: observationSvc,
		Workflows:    workflowSvc,
	}

	// Pass nil interfaces (not typed nil pointers) when the blob store is off.
	if blobStore != nil {
		workflowSvc.WithPlans(blobStore)
		ingestSvc.WithManifests(blobStore)
		services.Intermediates = intermediateuc.New(blobStore).WithLogger(logger)
		health = append(health, healthuc.Component{Name: "blob", Pinger: blobStore})
	}
	services.Health = healthuc.New(health...).WithLogger(logger)

	server := chiTransport.NewServer(services, logger).
		WithMaxBodyBytes(int64(cfg.HTTP.MaxBodyBytes))

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
