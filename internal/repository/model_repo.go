package repository

import (
	"context"

	"github.com/hackphs/cortexvision/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ModelRepository handles model and model-class mapping operations.
type ModelRepository struct {
	db *gorm.DB
}

// NewModelRepository creates a new ModelRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ModelRepository: repository instance bound to db.
func NewModelRepository(db *gorm.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// EnsureModel creates a model row if it does not exist.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: model name as taught.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ModelRepository) EnsureModel(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&domain.Model{Name: name}).Error
}

// AddClass registers a class under a model.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: model name as taught.
//   - className: class name as taught.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ModelRepository) AddClass(ctx context.Context, modelName, className string) error {
	return r.db.WithContext(ctx).Create(&domain.ModelClass{
		ModelName: modelName,
		ClassName: className,
	}).Error
}

// HasClass checks whether a class is already registered under a model.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: model name as taught.
//   - className: class name as taught.
// Returns:
//   - bool: true if the pair exists.
//   - error: non-nil if the lookup fails.
func (r *ModelRepository) HasClass(ctx context.Context, modelName, className string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ModelClass{}).
		Where("model_name = ? AND class_name = ?", modelName, className).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListModels retrieves all model names.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []string: model names sorted ascending.
//   - error: non-nil if the query fails.
func (r *ModelRepository) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&domain.Model{}).
		Order("name ASC").
		Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// ListClasses retrieves the class names registered under a model.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: model name as taught.
// Returns:
//   - []string: class names sorted ascending.
//   - error: non-nil if the query fails.
func (r *ModelRepository) ListClasses(ctx context.Context, modelName string) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&domain.ModelClass{}).
		Where("model_name = ?", modelName).
		Order("class_name ASC").
		Pluck("class_name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// Summaries retrieves the admin overview of models with class counts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.ModelSummary: one row per model.
//   - error: non-nil if the query fails.
func (r *ModelRepository) Summaries(ctx context.Context) ([]domain.ModelSummary, error) {
	var rows []domain.ModelSummary
	if err := r.db.WithContext(ctx).Model(&domain.Model{}).
		Select("models.name AS name, COUNT(model_classes.class_name) AS class_count").
		Joins("LEFT JOIN model_classes ON model_classes.model_name = models.name").
		Group("models.name").
		Order("models.name ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteClass removes a class mapping from a model.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: model name as taught.
//   - className: class name as taught.
// Returns:
//   - error: non-nil if the delete fails.
func (r *ModelRepository) DeleteClass(ctx context.Context, modelName, className string) error {
	return r.db.WithContext(ctx).
		Where("model_name = ? AND class_name = ?", modelName, className).
		Delete(&domain.ModelClass{}).Error
}

// DeleteModel removes a model and all of its class mappings.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: model name as taught.
// Returns:
//   - error: non-nil if the delete fails.
func (r *ModelRepository) DeleteModel(ctx context.Context, modelName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("model_name = ?", modelName).Delete(&domain.ModelClass{}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", modelName).Delete(&domain.Model{}).Error
	})
}
