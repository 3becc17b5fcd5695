package audit

import "time"

// GenerationRecord is one row of the generations table: a single pipeline run.
// ImagePath and Model3DPath hold either a real file path or a status marker
// ("Error: ..." / "Skipped: ...").
type GenerationRecord struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Timestamp      time.Time `gorm:"column:timestamp;default:CURRENT_TIMESTAMP" json:"timestamp"`
	OriginalPrompt string    `gorm:"column:original_prompt;type:text" json:"original_prompt"`
	ExpandedPrompt string    `gorm:"column:expanded_prompt;type:text" json:"expanded_prompt"`
	ImagePath      string    `gorm:"column:image_path;type:text" json:"image_path"`
	Model3DPath    string    `gorm:"column:model_3d_path;type:text" json:"model_3d_path"`
}

// TableName 固定表名
func (GenerationRecord) TableName() string {
	return "generations"
}
