package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/hackphs/cortexvision/internal/domain"
	"github.com/hackphs/cortexvision/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImageRepository handles training-image metadata operations.
type ImageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new ImageRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ImageRepository: repository instance bound to db.
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// InsertBatch inserts metadata rows one at a time, tolerating per-row
// failures. A row whose path already exists is skipped, so re-teaching
// already-uploaded files never duplicates rows. Rows that fail with a
// missing hash column are retried without it, so deployments that
// predate the column keep working.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - records: metadata rows to persist.
// Returns:
//   - int: number of rows newly inserted.
//   - error: non-nil only if every row failed.
func (r *ImageRepository) InsertBatch(ctx context.Context, records []domain.ImageRecord) (int, error) {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_path"}},
		DoNothing: true,
	}

	inserted := 0
	var lastErr error
	for i := range records {
		rec := records[i]
		res := r.db.WithContext(ctx).Clauses(onConflict).Create(&rec)
		if res.Error != nil && isMissingHashColumn(res.Error) {
			res = r.db.WithContext(ctx).Model(&domain.ImageRecord{}).Clauses(onConflict).Create(map[string]interface{}{
				"image_id":  rec.ImageID,
				"file_path": rec.FilePath,
				"caption":   rec.Caption,
			})
		}
		if res.Error != nil {
			lastErr = res.Error
			logger.CtxWarn(ctx, "metadata insert failed for %s: %v", rec.ImageID, res.Error)
			continue
		}
		inserted += int(res.RowsAffected)
	}
	if inserted == 0 && lastErr != nil {
		return 0, lastErr
	}
	return inserted, nil
}

// isMissingHashColumn reports whether err indicates the file_hash column
// does not exist in the target table.
func isMissingHashColumn(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file_hash") &&
		(strings.Contains(msg, "no such column") ||
			strings.Contains(msg, "does not exist") ||
			strings.Contains(msg, "unknown column") ||
			strings.Contains(msg, "has no column"))
}

// FindByPath retrieves the record whose stored path matches exactly.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filePath: full storage path to match.
// Returns:
//   - *domain.ImageRecord: matching record, nil if none.
//   - error: non-nil if the query fails.
func (r *ImageRepository) FindByPath(ctx context.Context, filePath string) (*domain.ImageRecord, error) {
	var rec domain.ImageRecord
	err := r.db.WithContext(ctx).First(&rec, "file_path = ?", filePath).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByHash retrieves the first record with the given content hash.
// On a legacy table without the file_hash column it reports no match
// rather than an error, so callers can fall through to other lookups.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileHash: hex-encoded content hash.
// Returns:
//   - *domain.ImageRecord: matching record, nil if none.
//   - error: non-nil if the query fails.
func (r *ImageRepository) FindByHash(ctx context.Context, fileHash string) (*domain.ImageRecord, error) {
	if fileHash == "" {
		return nil, nil
	}
	var rec domain.ImageRecord
	err := r.db.WithContext(ctx).First(&rec, "file_hash = ?", fileHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		if isMissingHashColumn(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// FindByBasename retrieves the first record whose path ends in the given
// file name. The match is on the path segment, not a substring.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - basename: file name without directory components.
// Returns:
//   - *domain.ImageRecord: matching record, nil if none.
//   - error: non-nil if the query fails.
func (r *ImageRepository) FindByBasename(ctx context.Context, basename string) (*domain.ImageRecord, error) {
	var rec domain.ImageRecord
	err := r.db.WithContext(ctx).
		Where("file_path LIKE ?", "%/"+basename).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Count counts all metadata rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of rows.
//   - error: non-nil if the query fails.
func (r *ImageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ImageRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByCaption counts metadata rows labeled with the given class name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - caption: class name the rows were labeled with.
// Returns:
//   - int64: number of rows.
//   - error: non-nil if the query fails.
func (r *ImageRepository) CountByCaption(ctx context.Context, caption string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ImageRecord{}).
		Where("caption = ?", caption).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByPathPrefix removes all rows whose path starts with prefix.
// Used by admin deletes to drop a class or model directory worth of rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - prefix: storage path prefix.
// Returns:
//   - int64: number of rows removed.
//   - error: non-nil if the delete fails.
func (r *ImageRepository) DeleteByPathPrefix(ctx context.Context, prefix string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("file_path LIKE ?", prefix+"%").
		Delete(&domain.ImageRecord{})
	return res.RowsAffected, res.Error
}

// DistinctPathPrefixes lists the distinct directory portions of stored
// paths, used by the orphan-directory cleanup.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []string: distinct directory prefixes.
//   - error: non-nil if the query fails.
func (r *ImageRepository) DistinctPathPrefixes(ctx context.Context) ([]string, error) {
	var paths []string
	if err := r.db.WithContext(ctx).Model(&domain.ImageRecord{}).
		Pluck("file_path", &paths).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(paths))
	var prefixes []string
	for _, p := range paths {
		idx := strings.LastIndex(p, "/")
		if idx <= 0 {
			continue
		}
		dir := p[:idx]
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		prefixes = append(prefixes, dir)
	}
	return prefixes, nil
}
