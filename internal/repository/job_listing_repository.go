package repository

import (
	"context"

	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobListingRepository struct {
	db *gorm.DB
}

func NewJobListingRepository(db *gorm.DB) *JobListingRepository {
	return &JobListingRepository{db}
}

var listingUpdateColumns = []string{"title", "company", "location", "snippet", "source", "query", "updated_at"}

// UpsertListings inserts listings, refreshing existing rows with the same link.
// A stored embedding is only replaced by a listing that carries one.
func (r *JobListingRepository) UpsertListings(ctx context.Context, listings []model.JobListing) error {
	var embedded, plain []model.JobListing
	for _, l := range listings {
		if l.Embedding != nil {
			embedded = append(embedded, l)
		} else {
			plain = append(plain, l)
		}
	}
	if err := r.upsert(ctx, embedded, append([]string{"embedding"}, listingUpdateColumns...)); err != nil {
		return err
	}
	return r.upsert(ctx, plain, listingUpdateColumns)
}

func (r *JobListingRepository) upsert(ctx context.Context, listings []model.JobListing, columns []string) error {
	if len(listings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "link"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&listings).Error
}

// NearestListings orders the listings with the given links by cosine
// distance to embedding. Rows without an embedding are left out.
func (r *JobListingRepository) NearestListings(ctx context.Context, embedding pgvector.Vector, links []string, topK int) ([]model.JobListing, error) {
	var jobs []model.JobListing
	if len(links) == 0 {
		return jobs, nil
	}

	err := r.db.WithContext(ctx).Raw(`
        SELECT id, title, company, location, link, snippet, source, query, created_at, updated_at,
               embedding <=> ? AS distance
        FROM job_listings
        WHERE link IN ? AND embedding IS NOT NULL
        ORDER BY embedding <=> ?
        LIMIT ?
    `, embedding, links, embedding, topK).Scan(&jobs).Error

	return jobs, err
}

func (r *JobListingRepository) ListJobs(ctx context.Context, page, pageSize int) ([]model.JobListing, int64, error) {
	var (
		jobs  []model.JobListing
		total int64
	)
	if err := r.db.WithContext(ctx).Model(&model.JobListing{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error
	return jobs, total, err
}
