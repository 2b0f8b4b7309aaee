package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hackphs/cortexvision/internal/domain"
	"gorm.io/gorm"
)

// EmbeddingRepository handles class-embedding rows and class ID
// allocation.
type EmbeddingRepository struct {
	db *gorm.DB
}

// NewEmbeddingRepository creates a new EmbeddingRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *EmbeddingRepository: repository instance bound to db.
func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// NextClassID allocates the next class identifier. IDs are "c" followed
// by a number; the next is the maximum numeric suffix plus one, so IDs
// are monotonic but not dense after deletes.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - string: next free identifier, "c1" for an empty table.
//   - error: non-nil if the scan fails.
func (r *EmbeddingRepository) NextClassID(ctx context.Context) (string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&domain.ClassEmbedding{}).
		Pluck("class_id", &ids).Error; err != nil {
		return "", err
	}
	max := 0
	for _, id := range ids {
		n, err := strconv.Atoi(strings.TrimPrefix(id, "c"))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("c%d", max+1), nil
}

// CreateIfAbsent inserts a class embedding unless one already exists for
// the class name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - emb: embedding row to persist.
// Returns:
//   - bool: true if a new row was inserted, false if one already existed.
//   - error: non-nil if the check or insert fails.
func (r *EmbeddingRepository) CreateIfAbsent(ctx context.Context, emb *domain.ClassEmbedding) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ClassEmbedding{}).
		Where("class_name = ?", emb.ClassName).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Create(emb).Error; err != nil {
		return false, err
	}
	return true, nil
}

// GetByName retrieves the embedding row for a class name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - className: class name as taught.
// Returns:
//   - *domain.ClassEmbedding: matching row, nil if none.
//   - error: non-nil if the query fails.
func (r *EmbeddingRepository) GetByName(ctx context.Context, className string) (*domain.ClassEmbedding, error) {
	var emb domain.ClassEmbedding
	err := r.db.WithContext(ctx).First(&emb, "class_name = ?", className).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

// List retrieves all class embeddings.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.ClassEmbedding: all rows.
//   - error: non-nil if the query fails.
func (r *EmbeddingRepository) List(ctx context.Context) ([]domain.ClassEmbedding, error) {
	var embs []domain.ClassEmbedding
	if err := r.db.WithContext(ctx).Find(&embs).Error; err != nil {
		return nil, err
	}
	return embs, nil
}

// ListByModel retrieves the class embeddings whose class names are
// registered under the given model.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - modelName: model name as taught.
// Returns:
//   - []domain.ClassEmbedding: matching rows.
//   - error: non-nil if the query fails.
func (r *EmbeddingRepository) ListByModel(ctx context.Context, modelName string) ([]domain.ClassEmbedding, error) {
	var embs []domain.ClassEmbedding
	if err := r.db.WithContext(ctx).Model(&domain.ClassEmbedding{}).
		Joins("JOIN model_classes ON model_classes.class_name = class_embeddings.class_name").
		Where("model_classes.model_name = ?", modelName).
		Find(&embs).Error; err != nil {
		return nil, err
	}
	return embs, nil
}

// Count counts all class embedding rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of rows.
//   - error: non-nil if the query fails.
func (r *EmbeddingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ClassEmbedding{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByName removes the embedding row for a class name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - className: class name as taught.
// Returns:
//   - error: non-nil if the delete fails.
func (r *EmbeddingRepository) DeleteByName(ctx context.Context, className string) error {
	return r.db.WithContext(ctx).
		Where("class_name = ?", className).
		Delete(&domain.ClassEmbedding{}).Error
}
