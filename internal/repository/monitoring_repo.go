package repository

import (
	"context"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MonitoringRepository defines data access for stage-9 monthly monitoring entries.
type MonitoringRepository interface {
	Create(ctx context.Context, entry *model.MonthlyMonitoringEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.MonthlyMonitoringEntry, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.MonthlyMonitoringEntry, error)
	GetByInitiative(ctx context.Context, initiativeID uuid.UUID) ([]model.MonthlyMonitoringEntry, error)
	Update(ctx context.Context, entry *model.MonthlyMonitoringEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountNotFinalized(ctx context.Context, initiativeID uuid.UUID) (int64, error)
	CountAwaitingFAApproval(ctx context.Context, initiativeID uuid.UUID) (int64, error)
	SetFAApproval(ctx context.Context, ids []uuid.UUID, comments string) (int64, error)
}

type monitoringRepository struct {
	db *gorm.DB
}

func NewMonitoringRepository(db *gorm.DB) MonitoringRepository {
	return &monitoringRepository{db: db}
}

func (r *monitoringRepository) Create(ctx context.Context, entry *model.MonthlyMonitoringEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *monitoringRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.MonthlyMonitoringEntry, error) {
	var entry model.MonthlyMonitoringEntry
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *monitoringRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.MonthlyMonitoringEntry, error) {
	var entries []model.MonthlyMonitoringEntry
	if len(ids) == 0 {
		return entries, nil
	}
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *monitoringRepository) GetByInitiative(ctx context.Context, initiativeID uuid.UUID) ([]model.MonthlyMonitoringEntry, error) {
	var entries []model.MonthlyMonitoringEntry
	if err := GetDB(ctx, r.db).
		Where("initiative_id = ?", initiativeID).
		Order("monitoring_month").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *monitoringRepository) Update(ctx context.Context, entry *model.MonthlyMonitoringEntry) error {
	return GetDB(ctx, r.db).Save(entry).Error
}

func (r *monitoringRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.MonthlyMonitoringEntry{}).Error
}

// CountNotFinalized feeds the stage-9 validation gate.
func (r *monitoringRepository) CountNotFinalized(ctx context.Context, initiativeID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.MonthlyMonitoringEntry{}).
		Where("initiative_id = ? AND is_finalized = ?", initiativeID, false).
		Count(&count).Error
	return count, err
}

// CountAwaitingFAApproval counts finalized entries not yet approved by F&A —
// the stage-10 gate requires this to reach zero coverage via batch approval.
func (r *monitoringRepository) CountAwaitingFAApproval(ctx context.Context, initiativeID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.MonthlyMonitoringEntry{}).
		Where("initiative_id = ? AND is_finalized = ? AND fa_approval = ?", initiativeID, true, false).
		Count(&count).Error
	return count, err
}

// SetFAApproval marks the listed finalized entries as F&A-approved. Entries
// that are not finalized are never touched.
func (r *monitoringRepository) SetFAApproval(ctx context.Context, ids []uuid.UUID, comments string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := GetDB(ctx, r.db).
		Model(&model.MonthlyMonitoringEntry{}).
		Where("id IN ? AND is_finalized = ?", ids, true).
		Updates(map[string]interface{}{
			"fa_approval": true,
			"fa_comments": comments,
		})
	return result.RowsAffected, result.Error
}
