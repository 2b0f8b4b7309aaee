package domain

import "time"

// JobStatus represents the status of a background teach job.
// Values include JobStatusPending, JobStatusRunning, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// TeachJob tracks an asynchronous teach run and its outcome. The
// triggering request returns as soon as acquisition completes; the rest
// of the pipeline reports through this row.
type TeachJob struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	ModelName   string     `gorm:"type:text;not null;index" json:"model_name"`
	ClassName   string     `gorm:"type:text;not null" json:"class_name"`
	Status      JobStatus  `gorm:"default:pending" json:"status"`
	ClassID     string     `gorm:"type:text" json:"class_id,omitempty"`
	Uploaded    int        `gorm:"default:0" json:"uploaded"`
	Inserted    int        `gorm:"default:0" json:"inserted"`
	ErrorLog    string     `json:"error_log,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for TeachJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (TeachJob) TableName() string {
	return "teach_jobs"
}
