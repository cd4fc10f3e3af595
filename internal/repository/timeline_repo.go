package repository

import (
	"context"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TimelineRepository defines data access for stage-6 timeline entries.
type TimelineRepository interface {
	Create(ctx context.Context, entry *model.TimelineEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.TimelineEntry, error)
	GetByInitiative(ctx context.Context, initiativeID uuid.UUID) ([]model.TimelineEntry, error)
	Update(ctx context.Context, entry *model.TimelineEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountNotCompleted(ctx context.Context, initiativeID uuid.UUID) (int64, error)
}

type timelineRepository struct {
	db *gorm.DB
}

func NewTimelineRepository(db *gorm.DB) TimelineRepository {
	return &timelineRepository{db: db}
}

func (r *timelineRepository) Create(ctx context.Context, entry *model.TimelineEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *timelineRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TimelineEntry, error) {
	var entry model.TimelineEntry
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *timelineRepository) GetByInitiative(ctx context.Context, initiativeID uuid.UUID) ([]model.TimelineEntry, error) {
	var entries []model.TimelineEntry
	if err := GetDB(ctx, r.db).
		Where("initiative_id = ?", initiativeID).
		Order("planned_start_date").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *timelineRepository) Update(ctx context.Context, entry *model.TimelineEntry) error {
	return GetDB(ctx, r.db).Save(entry).Error
}

func (r *timelineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.TimelineEntry{}).Error
}

// CountNotCompleted feeds the stage-6 validation gate: the count must be zero
// before the stage may be approved.
func (r *timelineRepository) CountNotCompleted(ctx context.Context, initiativeID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.TimelineEntry{}).
		Where("initiative_id = ? AND status <> ?", initiativeID, model.TimelineStatusCompleted).
		Count(&count).Error
	return count, err
}
