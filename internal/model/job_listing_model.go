package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingDimensions matches gemini-embedding-001.
const EmbeddingDimensions = 3072

type JobListing struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title     string           `gorm:"type:text" json:"title"`
	Company   string           `gorm:"type:text" json:"company"`
	Location  string           `gorm:"type:text" json:"location"`
	Link      string           `gorm:"type:text;uniqueIndex" json:"link"`
	Snippet   string           `gorm:"type:text" json:"snippet"`
	Source    string           `gorm:"type:varchar(255)" json:"source"`
	Query     string           `gorm:"type:text" json:"query"`
	Embedding *pgvector.Vector `gorm:"type:vector(3072)" json:"-"`
	// Distance is only filled by similarity queries.
	Distance  float64   `gorm:"->;-:migration" json:"distance,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j *JobListing) TableName() string {
	return "job_listings"
}
