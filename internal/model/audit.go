package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateInitiative = "CREATE_INITIATIVE"
	ActionApproveStage     = "APPROVE_STAGE"
	ActionRejectStage      = "REJECT_STAGE"
	ActionDropStage        = "DROP_STAGE"

	ActionCreateTimelineEntry = "CREATE_TIMELINE_ENTRY"
	ActionUpdateTimelineEntry = "UPDATE_TIMELINE_ENTRY"

	ActionCreateMonitoringEntry   = "CREATE_MONITORING_ENTRY"
	ActionUpdateMonitoringEntry   = "UPDATE_MONITORING_ENTRY"
	ActionFinalizeMonitoringEntry = "FINALIZE_MONITORING_ENTRY"
	ActionBatchApproveMonitoring  = "BATCH_APPROVE_MONITORING"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
