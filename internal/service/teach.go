package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackphs/cortexvision/internal/acquire"
	"github.com/hackphs/cortexvision/internal/domain"
	"github.com/hackphs/cortexvision/internal/logger"
	"github.com/hackphs/cortexvision/internal/repository"
	"github.com/hackphs/cortexvision/internal/storage"
)

// TeachService runs the teaching pipeline: acquire images for a class,
// upload them to object storage, record their metadata, and register the
// class with its name embedding.
type TeachService struct {
	modelRepo *repository.ModelRepository
	imageRepo *repository.ImageRepository
	embRepo   *repository.EmbeddingRepository
	jobRepo   *repository.JobRepository
	storage   storage.ObjectStorage
	acquirer  acquire.Acquirer
	embedder  Embedder
	index     ClassIndex // optional, nil disables mirroring

	prefix         string // storage key prefix for trained images
	imagesPerClass int
	workDir        string
	keepWorkDir    bool
}

// TeachServiceConfig holds configuration for the teach service.
type TeachServiceConfig struct {
	Prefix         string
	ImagesPerClass int
	WorkDir        string
	KeepWorkDir    bool
}

// NewTeachService creates a new teach service.
// Parameters:
//   - modelRepo, imageRepo, embRepo, jobRepo: persistence layers.
//   - objectStorage: training image store.
//   - acquirer: image acquisition provider.
//   - embedder: embedding service client.
//   - index: optional vector index mirror; may be nil.
//   - cfg: pipeline configuration.
// Returns:
//   - *TeachService: configured service.
func NewTeachService(
	modelRepo *repository.ModelRepository,
	imageRepo *repository.ImageRepository,
	embRepo *repository.EmbeddingRepository,
	jobRepo *repository.JobRepository,
	objectStorage storage.ObjectStorage,
	acquirer acquire.Acquirer,
	embedder Embedder,
	index ClassIndex,
	cfg *TeachServiceConfig,
) *TeachService {
	imagesPerClass := cfg.ImagesPerClass
	if imagesPerClass <= 0 {
		imagesPerClass = 8
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	return &TeachService{
		modelRepo:      modelRepo,
		imageRepo:      imageRepo,
		embRepo:        embRepo,
		jobRepo:        jobRepo,
		storage:        objectStorage,
		acquirer:       acquirer,
		embedder:       embedder,
		index:          index,
		prefix:         strings.TrimSuffix(cfg.Prefix, "/"),
		imagesPerClass: imagesPerClass,
		workDir:        workDir,
		keepWorkDir:    cfg.KeepWorkDir,
	}
}

// TeachResult reports the outcome of a teach run.
type TeachResult struct {
	ModelName string `json:"model_name"`
	ClassName string `json:"class_name"`
	ClassID   string `json:"class_id"`
	Uploaded  int    `json:"uploaded"`
	Inserted  int    `json:"inserted"`
}

// Teach runs the full pipeline synchronously.
//
// Model and class names are stored as given (trimmed); their normalized
// tokens appear only in storage keys and scratch paths. The duplicate
// check happens before any side effect. Failures after the storage
// upload undo every relational write of the run, metadata rows
// included, but leave the uploaded objects in place; re-teaching the
// same class overwrites them.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: model to teach under, created on first use.
//   - className: class to learn.
// Returns:
//   - *TeachResult: counters and the allocated class ID.
//   - error: ErrDuplicateClass, ErrAcquisitionFailed, ErrUploadFailed, or
//     another pipeline failure.
func (s *TeachService) Teach(ctx context.Context, modelName, className string) (*TeachResult, error) {
	modelName = strings.TrimSpace(modelName)
	className = strings.TrimSpace(className)
	modelToken := NormalizeToken(modelName)
	classToken := NormalizeToken(className)
	if modelToken == "" || classToken == "" {
		return nil, fmt.Errorf("model and class names must contain usable characters")
	}

	ctx = logger.SetModelClass(ctx, modelToken, classToken)

	exists, err := s.modelRepo.HasClass(ctx, modelName, className)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing class: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateClass
	}

	dir, cleanup, err := s.makeWorkDir(modelToken, classToken)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	start := time.Now()
	acquired, err := s.acquirer.Acquire(ctx, className, s.imagesPerClass, dir)
	if err != nil {
		return nil, fmt.Errorf("acquisition failed: %w", err)
	}
	if acquired == 0 {
		return nil, domain.ErrAcquisitionFailed
	}
	logger.With(logger.Fields{
		logger.FieldCount:      acquired,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "acquired class images")

	keyPrefix := fmt.Sprintf("%s/%s/%s", s.prefix, modelToken, classToken)
	keys, err := s.storage.UploadDir(ctx, keyPrefix, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	records := make([]domain.ImageRecord, 0, len(keys))
	for _, key := range keys {
		base := filepath.Base(key)
		records = append(records, domain.ImageRecord{
			ImageID:  strings.TrimSuffix(base, filepath.Ext(base)),
			FilePath: key,
			Caption:  className,
			FileHash: hashFile(filepath.Join(dir, base)),
		})
	}

	inserted, err := s.imageRepo.InsertBatch(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to insert image metadata: %w", err)
	}

	classID, err := s.registerClass(ctx, modelName, className)
	if err != nil {
		// Remove this run's metadata rows so a failed teach leaves no
		// relational trace
		if _, derr := s.imageRepo.DeleteByPathPrefix(ctx, keyPrefix+"/"); derr != nil {
			logger.CtxError(ctx, "failed to roll back image metadata after %v: %v", err, derr)
		}
		return nil, err
	}

	logger.With(logger.Fields{
		"class_id":        classID,
		"uploaded":        len(keys),
		"inserted":        inserted,
		logger.FieldModel: modelToken,
		logger.FieldClass: classToken,
	}).Info(ctx, "teach completed")

	return &TeachResult{
		ModelName: modelName,
		ClassName: className,
		ClassID:   classID,
		Uploaded:  len(keys),
		Inserted:  inserted,
	}, nil
}

// registerClass records the model/class mapping and the class name
// embedding. Failures after the mapping insert compensate by removing
// the mapping again.
func (s *TeachService) registerClass(ctx context.Context, modelName, className string) (string, error) {
	if err := s.modelRepo.EnsureModel(ctx, modelName); err != nil {
		return "", fmt.Errorf("failed to ensure model: %w", err)
	}
	if err := s.modelRepo.AddClass(ctx, modelName, className); err != nil {
		return "", fmt.Errorf("failed to register class: %w", err)
	}

	rollback := func(cause error) {
		if err := s.modelRepo.DeleteClass(ctx, modelName, className); err != nil {
			logger.CtxError(ctx, "failed to roll back class mapping after %v: %v", cause, err)
		}
	}

	vec, err := s.embedder.EmbedText(ctx, className)
	if err != nil {
		rollback(err)
		return "", fmt.Errorf("failed to embed class name: %w", err)
	}

	classID, err := s.embRepo.NextClassID(ctx)
	if err != nil {
		rollback(err)
		return "", fmt.Errorf("failed to allocate class ID: %w", err)
	}

	created, err := s.embRepo.CreateIfAbsent(ctx, &domain.ClassEmbedding{
		ClassID:    classID,
		ClassName:  className,
		TextVector: vec,
	})
	if err != nil {
		rollback(err)
		return "", fmt.Errorf("failed to store class embedding: %w", err)
	}
	if !created {
		// Another model already taught this class name; reuse its row
		existing, err := s.embRepo.GetByName(ctx, className)
		if err != nil || existing == nil {
			rollback(fmt.Errorf("embedding row vanished"))
			return "", fmt.Errorf("failed to load existing class embedding: %v", err)
		}
		return existing.ClassID, nil
	}

	if s.index != nil {
		if err := s.index.Upsert(ctx, classID, vec, &repository.ClassPayload{
			ClassID:   classID,
			ClassName: className,
		}); err != nil {
			// The relational row is authoritative; the mirror catches up
			// on the next reindex
			logger.CtxWarn(ctx, "vector index upsert failed for %s: %v", classID, err)
		}
	}

	return classID, nil
}

// TeachAsync validates the request, records a teach job, and runs the
// pipeline in the background. The returned job ID is immediately
// pollable.
// Parameters:
//   - ctx: context for the validation phase only.
//   - modelName: model to teach under.
//   - className: class to learn.
// Returns:
//   - string: teach job ID.
//   - error: ErrDuplicateClass or a validation failure.
func (s *TeachService) TeachAsync(ctx context.Context, modelName, className string) (string, error) {
	modelName = strings.TrimSpace(modelName)
	className = strings.TrimSpace(className)
	if NormalizeToken(modelName) == "" || NormalizeToken(className) == "" {
		return "", fmt.Errorf("model and class names must contain usable characters")
	}

	exists, err := s.modelRepo.HasClass(ctx, modelName, className)
	if err != nil {
		return "", fmt.Errorf("failed to check for existing class: %w", err)
	}
	if exists {
		return "", domain.ErrDuplicateClass
	}

	job := &domain.TeachJob{
		ID:        uuid.New().String(),
		ModelName: modelName,
		ClassName: className,
		Status:    domain.JobStatusPending,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create teach job: %w", err)
	}

	go s.runJob(job.ID, modelName, className)

	return job.ID, nil
}

// runJob executes a teach job detached from the request context.
func (s *TeachService) runJob(jobID, modelName, className string) {
	ctx := logger.SetJobID(context.Background(), jobID)

	if err := s.jobRepo.MarkRunning(ctx, jobID); err != nil {
		logger.CtxError(ctx, "failed to mark job running: %v", err)
		return
	}

	result, err := s.Teach(ctx, modelName, className)
	if err != nil {
		logger.CtxError(ctx, "teach job failed: %v", err)
		if markErr := s.jobRepo.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			logger.CtxError(ctx, "failed to mark job failed: %v", markErr)
		}
		return
	}

	if err := s.jobRepo.MarkCompleted(ctx, jobID, result.ClassID, result.Uploaded, result.Inserted); err != nil {
		logger.CtxError(ctx, "failed to mark job completed: %v", err)
	}
}

// GetJob retrieves a teach job by ID.
func (s *TeachService) GetJob(ctx context.Context, id string) (*domain.TeachJob, error) {
	return s.jobRepo.GetByID(ctx, id)
}

// RecentJobs lists the most recent teach jobs.
func (s *TeachService) RecentJobs(ctx context.Context, limit int) ([]domain.TeachJob, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.jobRepo.ListRecent(ctx, limit)
}

// makeWorkDir creates a scratch directory for one teach run.
func (s *TeachService) makeWorkDir(modelToken, classToken string) (string, func(), error) {
	dir := filepath.Join(s.workDir, fmt.Sprintf("%s_%s_%s", modelToken, classToken, uuid.New().String()[:8]))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	cleanup := func() {
		if !s.keepWorkDir {
			os.RemoveAll(dir)
		}
	}
	return dir, cleanup, nil
}

// hashFile returns the hex sha256 of a file, or empty on read failure.
// Missing hashes disable the content-match fallback for that row only.
func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
