package domain

// Model is a named grouping of classes sharing a detection context.
// It is created implicitly on the first teach for a new model name and
// never mutated afterwards.
type Model struct {
	Name string `gorm:"type:text;primaryKey" json:"name"`
}

// TableName returns the database table name for Model.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Model) TableName() string {
	return "models"
}

// ModelClass maps a class to the model it belongs to. A class name is
// unique within a model.
type ModelClass struct {
	ModelName string `gorm:"type:text;not null;index:idx_model_classes_pair,unique" json:"model_name"`
	ClassName string `gorm:"type:text;not null;index:idx_model_classes_pair,unique" json:"class_name"`
}

// TableName returns the database table name for ModelClass.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ModelClass) TableName() string {
	return "model_classes"
}

// ModelSummary is the admin overview row for a model.
type ModelSummary struct {
	Name       string `json:"name"`
	ClassCount int    `json:"class_count"`
}

// ClassSummary is the admin overview row for a class.
type ClassSummary struct {
	ModelName  string `json:"model_name"`
	ClassName  string `json:"class_name"`
	ImageCount int    `json:"image_count"`
}
