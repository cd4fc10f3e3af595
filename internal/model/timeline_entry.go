package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Timeline entry status values
const (
	TimelineStatusPending    = "PENDING"
	TimelineStatusInProgress = "IN_PROGRESS"
	TimelineStatusCompleted  = "COMPLETED"
	TimelineStatusDelayed    = "DELAYED"
)

// IsValidTimelineStatus reports whether the status is a known timeline status.
func IsValidTimelineStatus(status string) bool {
	switch status {
	case TimelineStatusPending, TimelineStatusInProgress, TimelineStatusCompleted, TimelineStatusDelayed:
		return true
	}
	return false
}

// TimelineEntry is a stage-6 dependent record: one planned activity of an
// initiative's execution timeline. The initiative cannot advance past stage 6
// while any entry is not COMPLETED; entries are read-only once stage 6 is
// approved.
type TimelineEntry struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	InitiativeID uuid.UUID   `gorm:"type:uuid;not null;index" json:"initiative_id"`
	Initiative   *Initiative `gorm:"foreignKey:InitiativeID" json:"-"`

	ActivityName      string     `gorm:"type:varchar(255);not null" json:"activity_name"`
	PlannedStartDate  time.Time  `gorm:"type:date;not null" json:"planned_start_date"`
	PlannedEndDate    time.Time  `gorm:"type:date;not null" json:"planned_end_date"`
	ActualStartDate   *time.Time `gorm:"type:date" json:"actual_start_date"`
	ActualEndDate     *time.Time `gorm:"type:date" json:"actual_end_date"`
	Status            string     `gorm:"type:varchar(15);not null;default:'PENDING';index" json:"status"`
	ResponsiblePerson string     `gorm:"type:varchar(255)" json:"responsible_person"`
	Remarks           string     `gorm:"type:text" json:"remarks"`

	SiteLeadApproval       bool `gorm:"default:false" json:"site_lead_approval"`
	InitiativeLeadApproval bool `gorm:"default:false" json:"initiative_lead_approval"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *TimelineEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
