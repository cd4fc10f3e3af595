package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageCatalogIsContiguous(t *testing.T) {
	catalog := StageCatalog()
	require.Len(t, catalog, TotalStages)
	for i, def := range catalog {
		assert.Equal(t, i+1, def.Number, "catalog must be ordered 1..11 with no gaps")
		assert.NotEmpty(t, def.Name)
	}
}

func TestStageDefinitionFor(t *testing.T) {
	def, ok := StageDefinitionFor(StageHODEvaluation)
	require.True(t, ok)
	assert.Equal(t, RoleHOD, def.RequiredRole)
	assert.True(t, def.AllowReject)
	assert.False(t, def.AllowDrop)

	_, ok = StageDefinitionFor(0)
	assert.False(t, ok)
	_, ok = StageDefinitionFor(StageBeyondFinal)
	assert.False(t, ok)
}

func TestRejectAndDropAffordances(t *testing.T) {
	for _, def := range StageCatalog() {
		switch def.Number {
		case StageHODEvaluation, StageSiteAssessment:
			assert.True(t, def.AllowReject, "stage %d should allow reject", def.Number)
		default:
			assert.False(t, def.AllowReject, "stage %d should not allow reject", def.Number)
		}
		if def.Number == StageCMOReview {
			assert.True(t, def.AllowDrop)
		} else {
			assert.False(t, def.AllowDrop, "stage %d should not allow drop", def.Number)
		}
	}
}

func TestRoleActsOnStage(t *testing.T) {
	assert.True(t, RoleActsOnStage(RoleHOD, StageHODEvaluation))
	assert.True(t, RoleActsOnStage(RoleSiteTSDLead, StageSiteAssessment))
	assert.True(t, RoleActsOnStage(RoleSiteTSDLead, StageProgress))
	assert.True(t, RoleActsOnStage(RoleSiteHead, StageDefineLead))
	assert.True(t, RoleActsOnStage(RoleCorporateTSD, StageCMOReview))
	assert.True(t, RoleActsOnStage(RoleFinance, StageFAValidation))
	for _, n := range []int{StageMocCapex, StageTimeline, StageSavingsMonitor, StageClosure} {
		assert.True(t, RoleActsOnStage(RoleInitiativeLead, n))
	}

	assert.False(t, RoleActsOnStage(RoleHOD, StageSiteAssessment))
	assert.False(t, RoleActsOnStage(RoleViewer, StageHODEvaluation))
	assert.False(t, RoleActsOnStage("", StageHODEvaluation))
}

func TestIsValidMonitoringMonth(t *testing.T) {
	assert.True(t, IsValidMonitoringMonth("2026-01"))
	assert.True(t, IsValidMonitoringMonth("2026-12"))
	assert.False(t, IsValidMonitoringMonth("2026-13"))
	assert.False(t, IsValidMonitoringMonth("2026-00"))
	assert.False(t, IsValidMonitoringMonth("2026-1"))
	assert.False(t, IsValidMonitoringMonth("26-01"))
	assert.False(t, IsValidMonitoringMonth("January 2026"))
}

func TestRecalculateDeviation(t *testing.T) {
	e := MonthlyMonitoringEntry{
		TargetValue:   decimal.NewFromInt(200),
		AchievedValue: decimal.NewFromInt(150),
	}
	e.RecalculateDeviation()
	assert.Equal(t, "-50", e.Deviation.String())
	assert.Equal(t, "-25", e.DeviationPercentage.String())

	e.TargetValue = decimal.Zero
	e.RecalculateDeviation()
	assert.True(t, e.DeviationPercentage.IsZero(), "zero target must not divide")
}

func TestInitiativeIsTerminal(t *testing.T) {
	i := Initiative{Status: InitiativeStatusInProgress}
	assert.False(t, i.IsTerminal())
	for _, s := range []string{InitiativeStatusCompleted, InitiativeStatusRejected, InitiativeStatusDropped} {
		i.Status = s
		assert.True(t, i.IsTerminal(), s)
	}
}
