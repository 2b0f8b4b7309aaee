package domain

// ImageRecord is the metadata row for one ingested training image.
// Rows are written in bulk during teaching and never updated. FilePath
// is unique so re-teaching an already-uploaded file converges instead
// of duplicating rows. FileHash may be empty on deployments that
// predate the hash column; the exact content-match fallback is
// unavailable for such rows.
type ImageRecord struct {
	ImageID  string `gorm:"type:text;not null;index:idx_image_metadata_image_id" json:"image_id"`
	FilePath string `gorm:"type:text;not null;uniqueIndex:idx_image_metadata_file_path" json:"file_path"`
	Caption  string `gorm:"type:text" json:"caption"`
	FileHash string `gorm:"type:text;index:idx_image_metadata_file_hash" json:"file_hash,omitempty"`
}

// TableName returns the database table name for ImageRecord.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ImageRecord) TableName() string {
	return "image_metadata"
}
