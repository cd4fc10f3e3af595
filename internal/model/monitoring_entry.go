package model

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var monitoringMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// IsValidMonitoringMonth reports whether the month string is YYYY-MM.
func IsValidMonitoringMonth(month string) bool {
	return monitoringMonthPattern.MatchString(month)
}

// MonthlyMonitoringEntry is a stage-9 dependent record: one month of KPI
// savings tracking. The initiative cannot advance past stage 9 while any
// entry is not finalized; F&A approval at stage 10 operates only on
// finalized entries.
type MonthlyMonitoringEntry struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	InitiativeID uuid.UUID   `gorm:"type:uuid;not null;index" json:"initiative_id"`
	Initiative   *Initiative `gorm:"foreignKey:InitiativeID" json:"-"`

	KpiDescription  string `gorm:"type:varchar(255);not null" json:"kpi_description"`
	MonitoringMonth string `gorm:"type:varchar(7);not null;index" json:"monitoring_month"` // YYYY-MM
	Category        string `gorm:"type:varchar(50)" json:"category"`

	TargetValue         decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"target_value"`
	AchievedValue       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"achieved_value"`
	Deviation           decimal.Decimal `gorm:"type:numeric(18,2)" json:"deviation"`
	DeviationPercentage decimal.Decimal `gorm:"type:numeric(8,2)" json:"deviation_percentage"`

	IsFinalized bool   `gorm:"default:false;index" json:"is_finalized"`
	FAApproval  bool   `gorm:"column:fa_approval;default:false;index" json:"fa_approval"`
	FAComments  string `gorm:"column:fa_comments;type:text" json:"fa_comments"`

	EnteredBy *uuid.UUID `gorm:"type:uuid" json:"entered_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *MonthlyMonitoringEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// RecalculateDeviation refreshes the derived deviation fields from the
// target/achieved pair: deviation = achieved − target.
func (e *MonthlyMonitoringEntry) RecalculateDeviation() {
	e.Deviation = e.AchievedValue.Sub(e.TargetValue)
	if e.TargetValue.IsZero() {
		e.DeviationPercentage = decimal.Zero
		return
	}
	e.DeviationPercentage = e.Deviation.Div(e.TargetValue).Mul(decimal.NewFromInt(100)).Round(2)
}
