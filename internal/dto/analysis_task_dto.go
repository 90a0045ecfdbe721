package dto

import (
	"encoding/json"
	"time"

	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/google/uuid"
)

type AnalysisTaskDTO struct {
	ID          uuid.UUID       `json:"id"`
	Status      string          `json:"status"` // processing, completed, failed
	FileName    string          `json:"file_name"`
	TargetRole  string          `json:"target_role,omitempty"`
	Location    string          `json:"location,omitempty"`
	Profile     json.RawMessage `json:"profile,omitempty"`
	Score       json.RawMessage `json:"score,omitempty"`
	SkillGap    json.RawMessage `json:"skill_gap,omitempty"`
	Personality json.RawMessage `json:"personality,omitempty"`
	Jobs        json.RawMessage `json:"jobs,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func NewAnalysisTaskDTO(t *model.AnalysisTask) AnalysisTaskDTO {
	return AnalysisTaskDTO{
		ID:          t.ID,
		Status:      t.Status,
		FileName:    t.FileName,
		TargetRole:  t.TargetRole,
		Location:    t.Location,
		Profile:     t.Profile,
		Score:       t.Score,
		SkillGap:    t.SkillGap,
		Personality: t.Personality,
		Jobs:        t.Jobs,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
}

type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ExtractResponse struct {
	FileName   string `json:"file_name"`
	Kind       string `json:"kind"`
	MIMEType   string `json:"mime_type"`
	Pages      int    `json:"pages,omitempty"`
	OCR        bool   `json:"ocr"`
	Characters int    `json:"characters"`
	Text       string `json:"text"`
}
