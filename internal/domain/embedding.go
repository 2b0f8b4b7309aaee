package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Vector is a fixed-length embedding stored as JSON in the database.
type Vector []float32

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded representation of the vector.
//   - error: non-nil if marshaling fails.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = Vector{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Vector")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, v)
}

// ClassEmbedding is the learned representation of a class: the text
// embedding of the class name. At most one row exists per class name;
// creation is a checked insert-if-absent.
type ClassEmbedding struct {
	ClassID    string `gorm:"type:text;primaryKey" json:"class_id"`
	ClassName  string `gorm:"type:text;not null;uniqueIndex:idx_class_embeddings_name" json:"class_name"`
	TextVector Vector `gorm:"type:text" json:"text_vector"`
}

// TableName returns the database table name for ClassEmbedding.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ClassEmbedding) TableName() string {
	return "class_embeddings"
}

// Match is a single classification result.
type Match struct {
	ClassID   string  `json:"class_id,omitempty"`
	ClassName string  `json:"class_name"`
	Score     float32 `json:"score"`
}
