package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Approval status of a workflow transaction
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
	ApprovalDropped  = "dropped"
)

// Workflow actions submitted by actors
const (
	WorkflowActionApprove = "approve"
	WorkflowActionReject  = "reject"
	WorkflowActionDrop    = "drop"
)

// WorkflowTransaction is the durable record of one stage's approval state for
// one initiative. Transactions are created lazily when their stage becomes
// current, mutated exactly once (pending → approved/rejected/dropped), and
// immutable thereafter.
type WorkflowTransaction struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	InitiativeID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_initiative_stage" json:"initiative_id"`
	Initiative   *Initiative `gorm:"foreignKey:InitiativeID" json:"-"`

	StageNumber  int    `gorm:"not null;uniqueIndex:idx_initiative_stage" json:"stage_number"`
	StageName    string `gorm:"type:varchar(100);not null" json:"stage_name"`
	RequiredRole string `gorm:"type:varchar(10)" json:"required_role"`

	ApproveStatus string `gorm:"type:varchar(10);not null;default:'pending';index" json:"approve_status"`

	// PendingWith is the identity authorized to act: an email when the
	// assignment is bound to an individual, otherwise the required role code.
	PendingWith string     `gorm:"type:varchar(255)" json:"pending_with"`
	ActionBy    *uuid.UUID `gorm:"type:uuid" json:"action_by"`
	Actor       *User      `gorm:"foreignKey:ActionBy" json:"actor,omitempty"`
	ActionDate  *time.Time `json:"action_date"`
	Comment     string     `gorm:"type:text" json:"comment"`

	// Stage-specific payload echo
	AssignedUserID *uuid.UUID `gorm:"type:uuid" json:"assigned_user_id"` // stage 4
	RequiresMoc    string     `gorm:"type:varchar(1)" json:"requires_moc"`
	MocNumber      string     `gorm:"type:varchar(50)" json:"moc_number"`
	RequiresCapex  string     `gorm:"type:varchar(1)" json:"requires_capex"`
	CapexNumber    string     `gorm:"type:varchar(50)" json:"capex_number"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *WorkflowTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
