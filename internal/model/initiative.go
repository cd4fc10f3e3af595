package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Initiative status values, derived from workflow transaction history
const (
	InitiativeStatusPending    = "Pending"
	InitiativeStatusInProgress = "In Progress"
	InitiativeStatusCompleted  = "Completed"
	InitiativeStatusRejected   = "Rejected"
	InitiativeStatusDropped    = "Dropped"
)

// Budget type enum
const (
	BudgetTypeBudgeted    = "BUDGETED"
	BudgetTypeNonBudgeted = "NON-BUDGETED"
)

// Plant site codes
var Sites = []string{"NDS", "HSD", "DHJ", "APL", "TCW"}

// Disciplines
var Disciplines = []string{"OP", "EG", "MT", "EL", "IN", "SF", "QA", "EN"}

// MOC / CAPEX decision values captured at stage 5
const (
	DecisionYes = "Y"
	DecisionNo  = "N"
)

// Initiative is the aggregate root of the approval workflow. CurrentStage
// always equals the stage number of the single pending transaction, or
// StageBeyondFinal when the initiative is Completed. Terminal statuses are
// final — initiatives are never hard-deleted.
type Initiative struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InitiativeNumber string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"initiative_number"`
	Title            string    `gorm:"type:varchar(255);not null" json:"title"`
	Description      string    `gorm:"type:text" json:"description"`
	Site             string    `gorm:"type:varchar(10);not null;index" json:"site"`
	Discipline       string    `gorm:"type:varchar(10);not null;index" json:"discipline"`
	BudgetType       string    `gorm:"type:varchar(20);not null" json:"budget_type"`

	ExpectedSavings decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"expected_savings"`
	ActualSavings   decimal.Decimal `gorm:"type:numeric(18,2)" json:"actual_savings"`
	EstimatedCapex  decimal.Decimal `gorm:"type:numeric(18,2)" json:"estimated_capex"`
	TargetValue     decimal.Decimal `gorm:"type:numeric(18,2)" json:"target_value"`
	ConfidenceLevel int             `gorm:"not null;default:0" json:"confidence_level"` // 0–100

	CurrentStage int    `gorm:"not null;default:1;index" json:"current_stage"`
	Status       string `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`

	// MOC/CAPEX decision, set by the stage-5 approval
	RequiresMoc   string `gorm:"type:varchar(1)" json:"requires_moc"` // Y / N
	MocNumber     string `gorm:"type:varchar(50)" json:"moc_number"`
	RequiresCapex string `gorm:"type:varchar(1)" json:"requires_capex"`
	CapexNumber   string `gorm:"type:varchar(50)" json:"capex_number"`

	// AssignedTo is the Initiative Lead chosen at stage 4; IL stages resolve
	// their pendingWith binding from this assignment.
	AssignedTo   *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to"`
	AssignedLead *User      `gorm:"foreignKey:AssignedTo" json:"assigned_lead,omitempty"`

	CreatedBy     *uuid.UUID `gorm:"type:uuid;index" json:"created_by"`
	Creator       *User      `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	InitiatorName string     `gorm:"type:varchar(255)" json:"initiator_name"`

	Transactions []WorkflowTransaction `gorm:"foreignKey:InitiativeID" json:"transactions,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Initiative) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether the initiative reached a final status.
func (i *Initiative) IsTerminal() bool {
	return i.Status == InitiativeStatusCompleted ||
		i.Status == InitiativeStatusRejected ||
		i.Status == InitiativeStatusDropped
}

// IsValidSite reports whether the plant code is known.
func IsValidSite(site string) bool {
	for _, s := range Sites {
		if s == site {
			return true
		}
	}
	return false
}

// IsValidDiscipline reports whether the discipline code is known.
func IsValidDiscipline(d string) bool {
	for _, known := range Disciplines {
		if known == d {
			return true
		}
	}
	return false
}
