package repository

import (
	"context"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InitiativeRepository defines data access for the Initiative aggregate.
type InitiativeRepository interface {
	Create(ctx context.Context, initiative *model.Initiative) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Initiative, error)
	List(ctx context.Context, filter InitiativeFilter) ([]model.Initiative, int64, error)
	Update(ctx context.Context, initiative *model.Initiative) error
	CountBySitePrefix(ctx context.Context, numberPrefix string) (int64, error)
}

// InitiativeFilter narrows initiative listings; zero values mean "no filter".
type InitiativeFilter struct {
	Status     string
	Site       string
	Discipline string
	Page       int
	Limit      int
}

type initiativeRepository struct {
	db *gorm.DB
}

func NewInitiativeRepository(db *gorm.DB) InitiativeRepository {
	return &initiativeRepository{db: db}
}

func (r *initiativeRepository) Create(ctx context.Context, initiative *model.Initiative) error {
	return GetDB(ctx, r.db).Create(initiative).Error
}

func (r *initiativeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Initiative, error) {
	var initiative model.Initiative
	if err := GetDB(ctx, r.db).
		Preload("Creator").
		Preload("AssignedLead").
		First(&initiative, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &initiative, nil
}

func (r *initiativeRepository) List(ctx context.Context, filter InitiativeFilter) ([]model.Initiative, int64, error) {
	var total int64
	query := GetDB(ctx, r.db).Model(&model.Initiative{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Site != "" {
		query = query.Where("site = ?", filter.Site)
	}
	if filter.Discipline != "" {
		query = query.Where("discipline = ?", filter.Discipline)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	offset := (filter.Page - 1) * filter.Limit

	var initiatives []model.Initiative
	if err := query.
		Preload("Creator").
		Preload("AssignedLead").
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&initiatives).Error; err != nil {
		return nil, 0, err
	}

	return initiatives, total, nil
}

func (r *initiativeRepository) Update(ctx context.Context, initiative *model.Initiative) error {
	return GetDB(ctx, r.db).Save(initiative).Error
}

// CountBySitePrefix counts initiatives whose number starts with the given
// prefix — used by the per-site, per-fiscal-year number sequence.
func (r *initiativeRepository) CountBySitePrefix(ctx context.Context, numberPrefix string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.Initiative{}).
		Where("initiative_number LIKE ?", numberPrefix+"%").
		Count(&count).Error
	return count, err
}
