package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackphs/cortexvision/internal/domain"
	"github.com/hackphs/cortexvision/internal/logger"
	"github.com/hackphs/cortexvision/internal/repository"
	"github.com/hackphs/cortexvision/internal/storage"
)

// AdminService implements the operator surface: overviews, diagnostics,
// destructive deletes, and orphan cleanup.
type AdminService struct {
	modelRepo *repository.ModelRepository
	imageRepo *repository.ImageRepository
	embRepo   *repository.EmbeddingRepository
	jobRepo   *repository.JobRepository
	storage   storage.ObjectStorage
	embedder  Embedder
	index     ClassIndex // optional, nil disables

	prefix string // storage key prefix for trained images
}

// NewAdminService creates a new admin service.
func NewAdminService(
	modelRepo *repository.ModelRepository,
	imageRepo *repository.ImageRepository,
	embRepo *repository.EmbeddingRepository,
	jobRepo *repository.JobRepository,
	objectStorage storage.ObjectStorage,
	embedder Embedder,
	index ClassIndex,
	prefix string,
) *AdminService {
	return &AdminService{
		modelRepo: modelRepo,
		imageRepo: imageRepo,
		embRepo:   embRepo,
		jobRepo:   jobRepo,
		storage:   objectStorage,
		embedder:  embedder,
		index:     index,
		prefix:    strings.TrimSuffix(prefix, "/"),
	}
}

// Overview is the admin landing payload: models with their classes and
// per-class image counts.
type Overview struct {
	Models  []domain.ModelSummary `json:"models"`
	Classes []domain.ClassSummary `json:"classes"`
}

// GetOverview builds the model and class overview.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *Overview: summary rows.
//   - error: non-nil if a query fails.
func (s *AdminService) GetOverview(ctx context.Context) (*Overview, error) {
	models, err := s.modelRepo.Summaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize models: %w", err)
	}

	var classes []domain.ClassSummary
	for _, m := range models {
		names, err := s.modelRepo.ListClasses(ctx, m.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to list classes for %s: %w", m.Name, err)
		}
		for _, name := range names {
			count, err := s.imageRepo.CountByCaption(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("failed to count images for %s: %w", name, err)
			}
			classes = append(classes, domain.ClassSummary{
				ModelName:  m.Name,
				ClassName:  name,
				ImageCount: int(count),
			})
		}
	}

	return &Overview{Models: models, Classes: classes}, nil
}

// Diagnostics reports table row counts and the embedding functions the
// service currently exposes, so an operator can tell at a glance which
// classification path a deployment will take.
type Diagnostics struct {
	ImageRows          int64             `json:"image_rows"`
	EmbeddingRows      int64             `json:"embedding_rows"`
	ModelCount         int               `json:"model_count"`
	EmbeddingFunctions []string          `json:"embedding_functions"`
	ImagePathAvailable bool              `json:"image_path_available"`
	RecentJobs         []domain.TeachJob `json:"recent_jobs"`
}

// GetDiagnostics collects the diagnostics payload.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *Diagnostics: current counts and capabilities.
//   - error: non-nil if a count query fails.
func (s *AdminService) GetDiagnostics(ctx context.Context) (*Diagnostics, error) {
	imgRows, err := s.imageRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count image metadata: %w", err)
	}
	embRows, err := s.embRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count class embeddings: %w", err)
	}
	models, err := s.modelRepo.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	jobs, err := s.jobRepo.ListRecent(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}

	// The probe failing is itself diagnostic information
	funcs, err := s.embedder.Functions(ctx)
	if err != nil {
		logger.CtxWarn(ctx, "embedding function probe failed: %v", err)
		funcs = []string{}
	}
	hasImage := false
	for _, f := range funcs {
		if strings.EqualFold(f, s.embedder.ImageFunctionName()) {
			hasImage = true
			break
		}
	}

	return &Diagnostics{
		ImageRows:          imgRows,
		EmbeddingRows:      embRows,
		ModelCount:         len(models),
		EmbeddingFunctions: funcs,
		ImagePathAvailable: hasImage,
		RecentJobs:         jobs,
	}, nil
}

// DeleteClass removes a class from a model: the mapping, its metadata
// rows, its stored images, and, when no other model references the
// class, its embedding row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: model the class belongs to.
//   - className: class to remove.
// Returns:
//   - error: non-nil if any removal step fails.
func (s *AdminService) DeleteClass(ctx context.Context, modelName, className string) error {
	modelName = strings.TrimSpace(modelName)
	className = strings.TrimSpace(className)

	if err := s.modelRepo.DeleteClass(ctx, modelName, className); err != nil {
		return fmt.Errorf("failed to delete class mapping: %w", err)
	}

	// Storage keys use the normalized tokens, the tables use the names
	keyPrefix := fmt.Sprintf("%s/%s/%s", s.prefix, NormalizeToken(modelName), NormalizeToken(className))
	rows, err := s.imageRepo.DeleteByPathPrefix(ctx, keyPrefix+"/")
	if err != nil {
		return fmt.Errorf("failed to delete image metadata: %w", err)
	}
	objects, err := s.storage.DeletePrefix(ctx, keyPrefix+"/")
	if err != nil {
		return fmt.Errorf("failed to delete stored images: %w", err)
	}

	// The embedding row is shared across models teaching the same class
	// name; drop it only when the last reference is gone
	var refs int64
	if emb, err := s.embRepo.GetByName(ctx, className); err == nil && emb != nil {
		refs, err = s.classReferences(ctx, className)
		if err != nil {
			return err
		}
		if refs == 0 {
			if err := s.embRepo.DeleteByName(ctx, className); err != nil {
				return fmt.Errorf("failed to delete class embedding: %w", err)
			}
			if s.index != nil {
				if err := s.index.Delete(ctx, emb.ClassID); err != nil {
					logger.CtxWarn(ctx, "vector index delete failed for %s: %v", emb.ClassID, err)
				}
			}
		}
	}

	logger.With(logger.Fields{
		logger.FieldModel: modelName,
		logger.FieldClass: className,
		"metadata_rows":   rows,
		"objects":         objects,
	}).Info(ctx, "class deleted")

	return nil
}

// classReferences counts model mappings still pointing at a class name.
func (s *AdminService) classReferences(ctx context.Context, className string) (int64, error) {
	models, err := s.modelRepo.ListModels(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list models: %w", err)
	}
	var refs int64
	for _, m := range models {
		has, err := s.modelRepo.HasClass(ctx, m, className)
		if err != nil {
			return 0, err
		}
		if has {
			refs++
		}
	}
	return refs, nil
}

// DeleteModel removes a model and everything taught under it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: model to remove.
// Returns:
//   - error: non-nil if any removal step fails.
func (s *AdminService) DeleteModel(ctx context.Context, modelName string) error {
	modelName = strings.TrimSpace(modelName)

	classes, err := s.modelRepo.ListClasses(ctx, modelName)
	if err != nil {
		return fmt.Errorf("failed to list classes: %w", err)
	}
	for _, class := range classes {
		if err := s.DeleteClass(ctx, modelName, class); err != nil {
			return err
		}
	}

	if err := s.modelRepo.DeleteModel(ctx, modelName); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	logger.With(logger.Fields{
		logger.FieldModel: modelName,
		logger.FieldCount: len(classes),
	}).Info(ctx, "model deleted")

	return nil
}

// CleanupReport lists what the orphan cleanup removed.
type CleanupReport struct {
	OrphanPrefixes []string `json:"orphan_prefixes"`
	ObjectsRemoved int      `json:"objects_removed"`
}

// CleanupOrphans removes stored image directories that no metadata row
// references anymore, typically left behind by interrupted teach runs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *CleanupReport: removed prefixes and object count.
//   - error: non-nil if listing or deletion fails.
func (s *AdminService) CleanupOrphans(ctx context.Context) (*CleanupReport, error) {
	keys, err := s.storage.ListPrefix(ctx, s.prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list stored objects: %w", err)
	}

	stored := make(map[string]struct{})
	for _, key := range keys {
		if idx := strings.LastIndex(key, "/"); idx > 0 {
			stored[key[:idx]] = struct{}{}
		}
	}

	referenced, err := s.imageRepo.DistinctPathPrefixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect referenced prefixes: %w", err)
	}
	refSet := make(map[string]struct{}, len(referenced))
	for _, p := range referenced {
		refSet[p] = struct{}{}
	}

	report := &CleanupReport{}
	for dir := range stored {
		if _, ok := refSet[dir]; ok {
			continue
		}
		removed, err := s.storage.DeletePrefix(ctx, dir+"/")
		if err != nil {
			return report, fmt.Errorf("failed to delete orphan prefix %s: %w", dir, err)
		}
		report.OrphanPrefixes = append(report.OrphanPrefixes, dir)
		report.ObjectsRemoved += removed
	}

	logger.With(logger.Fields{
		logger.FieldCount: len(report.OrphanPrefixes),
		"objects":         report.ObjectsRemoved,
	}).Info(ctx, "orphan cleanup finished")

	return report, nil
}
