package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type AnalysisTask struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FileKey     string          `gorm:"type:text" json:"file_key"`
	FileName    string          `gorm:"type:text" json:"file_name"`
	ResumeText  string          `gorm:"type:text" json:"-"`
	TargetRole  string          `gorm:"type:varchar(255)" json:"target_role"`
	Location    string          `gorm:"type:varchar(255)" json:"location"`
	Status      string          `gorm:"type:varchar(50);index" json:"status"`
	Profile     json.RawMessage `gorm:"type:jsonb" json:"profile,omitempty"`
	Score       json.RawMessage `gorm:"type:jsonb" json:"score,omitempty"`
	SkillGap    json.RawMessage `gorm:"type:jsonb" json:"skill_gap,omitempty"`
	Personality json.RawMessage `gorm:"type:jsonb" json:"personality,omitempty"`
	Jobs        json.RawMessage `gorm:"type:jsonb" json:"jobs,omitempty"`
	Error       string          `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func (t *AnalysisTask) TableName() string {
	return "analysis_tasks"
}
