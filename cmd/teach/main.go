package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackphs/cortexvision/internal/acquire"
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
		Format:      "text",
		ServiceName: "cortexvision-teach",
	})
	logger.SetDefaultLogger(appLogger)

	modelName := flag.String("model", "", "Model to teach under")
	className := flag.String("class", "", "Class name to learn")
	count := flag.Int("count", 0, "Images to acquire (0 uses the configured default)")
	localRoot := flag.String("local", "", "Teach from a local directory holding the class images instead of web search")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *modelName == "" || *className == "" {
		appLogger.Fatal("Both -model and -class are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *count > 0 {
		cfg.Teach.ImagesPerClass = *count
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
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
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
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
	if *localRoot != "" {
		acquirer = acquire.NewLocalAcquirer(*localRoot)
	} else if cfg.Acquire.Provider == "local" {
		acquirer = acquire.NewLocalAcquirer(cfg.Acquire.LocalRoot)
	} else {
		acquirer = acquire.NewWebAcquirer(&acquire.WebConfig{
			BaseURL: cfg.Acquire.BaseURL,
			APIKey:  cfg.Acquire.APIKey,
			Timeout: time.Duration(cfg.Acquire.TimeoutSec) * time.Second,
		})
	}

	// Assign the interface only when enabled so a nil pointer never
	// hides inside a non-nil interface
	var classIndex service.ClassIndex
	if cfg.VectorIndex.Enabled {
		index, err := repository.NewVectorIndex(&repository.VectorIndexConfig{
			Host:            cfg.VectorIndex.Host,
			Port:            cfg.VectorIndex.Port,
			Collection:      cfg.VectorIndex.Collection,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize vector index")
		}
		defer index.Close()
		if err := index.EnsureCollection(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure vector index collection")
		}
		classIndex = index
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

	result, err := teachService.Teach(ctx, *modelName, *className)
	if err != nil {
		appLogger.WithError(err).Fatal("Teach failed")
	}

	appLogger.WithFields(logger.Fields{
		"class_id": result.ClassID,
		"uploaded": result.Uploaded,
		"inserted": result.Inserted,
	}).Info("Teach completed")
}
