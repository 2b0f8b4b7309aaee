package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hackphs/cortexvision/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles teach job bookkeeping.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new teach job row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.TeachJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a teach job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.TeachJob: job record, nil if none.
//   - error: non-nil if the lookup fails.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.TeachJob, error) {
	var job domain.TeachJob
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkRunning transitions a job to running and stamps the start time.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) MarkRunning(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.TeachJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusRunning,
			"started_at": &now,
		}).Error
}

// MarkCompleted transitions a job to completed with its final counters.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - classID: allocated class identifier.
//   - uploaded: number of files uploaded to storage.
//   - inserted: number of metadata rows written.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) MarkCompleted(ctx context.Context, id, classID string, uploaded, inserted int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.TeachJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       domain.JobStatusCompleted,
			"class_id":     classID,
			"uploaded":     uploaded,
			"inserted":     inserted,
			"completed_at": &now,
		}).Error
}

// MarkFailed transitions a job to failed and records the error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - cause: failure description stored in the error log.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) MarkFailed(ctx context.Context, id, cause string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.TeachJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       domain.JobStatusFailed,
			"error_log":    cause,
			"completed_at": &now,
		}).Error
}

// ListRecent retrieves the most recent teach jobs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of jobs to return.
// Returns:
//   - []domain.TeachJob: jobs ordered newest first.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.TeachJob, error) {
	var jobs []domain.TeachJob
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
