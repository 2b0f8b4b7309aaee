package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackphs/cortexvision/internal/acquire"
	"github.com/hackphs/cortexvision/internal/api"
	"github.com/hackphs/cortexvision/internal/api/middleware"
	"github.com/hackphs/cortexvision/internal/config"
	"github.com/hackphs/cortexvision/internal/logger"
	"github.com/hackphs/cortexvision/internal/repository"
	"github.com/hackphs/cortexvision/internal/service"
	"github.com/hackphs/cortexvision/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "cortexvision-api",
	})
	logger.SetDefaultLogger(appLogger)

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	deps, err := buildDependencies(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize dependencies")
	}
	defer deps.Close()

	router := api.SetupRouter(
		deps.TeachService,
		deps.ClassifyService,
		deps.AdminService,
		deps.ModelRepo,
		&api.RouterConfig{
			Mode: cfg.Server.Mode,
			CORS: middleware.CORSConfig{
				AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
				AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
			},
			AsyncTeach:    cfg.Teach.Async,
			AdminUsername: cfg.Admin.Username,
			AdminPassword: cfg.Admin.Password,
		},
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithField("port", cfg.Server.Port).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Forced shutdown")
	}

	if err := logger.Sync(); err != nil {
		appLogger.WithError(err).Warn("Failed to flush logs")
	}

	appLogger.Info("Server stopped")
}

type dependencies struct {
	ModelRepo       *repository.ModelRepository
	TeachService    *service.TeachService
	ClassifyService *service.ClassifyService
	AdminService    *service.AdminService

	index *repository.VectorIndex
}

// Close releases held connections.
func (d *dependencies) Close() {
	if d.index != nil {
		d.index.Close()
	}
}

// buildDependencies wires the persistence, storage, and external clients
// into the three domain services.
func buildDependencies(cfg *config.Config, appLogger *logger.Logger) (*dependencies, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	modelRepo := repository.NewModelRepository(db)
	imageRepo := repository.NewImageRepository(db)
	embRepo := repository.NewEmbeddingRepository(db)
	jobRepo := repository.NewJobRepository(db)

	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("storage bucket: %w", err)
	}

	embedder := service.NewEmbeddingClient(&service.EmbeddingClientConfig{
		BaseURL:       cfg.Embedding.BaseURL,
		APIKey:        cfg.Embedding.APIKey,
		TextFunction:  cfg.Embedding.TextFunction,
		ImageFunction: cfg.Embedding.ImageFunction,
		Dimensions:    cfg.Embedding.Dimensions,
		Timeout:       time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
	})

	var acquirer acquire.Acquirer
	switch cfg.Acquire.Provider {
	case "local":
		acquirer = acquire.NewLocalAcquirer(cfg.Acquire.LocalRoot)
	default:
		acquirer = acquire.NewWebAcquirer(&acquire.WebConfig{
			BaseURL: cfg.Acquire.BaseURL,
			APIKey:  cfg.Acquire.APIKey,
			Timeout: time.Duration(cfg.Acquire.TimeoutSec) * time.Second,
		})
	}

	var index *repository.VectorIndex
	// Services take the index through an interface; assign only when
	// enabled so a nil pointer never hides inside a non-nil interface
	var classIndex service.ClassIndex
	if cfg.VectorIndex.Enabled {
		index, err = repository.NewVectorIndex(&repository.VectorIndexConfig{
			Host:            cfg.VectorIndex.Host,
			Port:            cfg.VectorIndex.Port,
			Collection:      cfg.VectorIndex.Collection,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("vector index: %w", err)
		}
		if err := index.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("vector index collection: %w", err)
		}
		classIndex = index
		appLogger.Info("Vector index mirroring enabled")
	}

	teachService := service.NewTeachService(
		modelRepo, imageRepo, embRepo, jobRepo,
		objectStorage, acquirer, embedder, classIndex,
		&service.TeachServiceConfig{
			Prefix:         cfg.Storage.Prefix,
			ImagesPerClass: cfg.Teach.ImagesPerClass,
			WorkDir:        cfg.Acquire.WorkDir,
			KeepWorkDir:    cfg.Teach.KeepWorkDir,
		},
	)

	classifyService := service.NewClassifyService(
		modelRepo, imageRepo, embRepo,
		objectStorage, embedder, classIndex,
		"images/queries",
	)

	adminService := service.NewAdminService(
		modelRepo, imageRepo, embRepo, jobRepo,
		objectStorage, embedder, classIndex,
		cfg.Storage.Prefix,
	)

	return &dependencies{
		ModelRepo:       modelRepo,
		TeachService:    teachService,
		ClassifyService: classifyService,
		AdminService:    adminService,
		index:           index,
	}, nil
}
