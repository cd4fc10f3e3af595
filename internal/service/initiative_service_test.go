package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInitiativeSpawnsWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := env.seedUser(t, model.RoleViewer, "NDS")
	hod := env.seedUser(t, model.RoleHOD, "NDS")

	created, err := env.initiatives.CreateInitiative(ctx, actorFor(creator), CreateInitiativeRequest{
		Title:           "Compressed air leak audit",
		Site:            "NDS",
		Discipline:      "EG",
		BudgetType:      model.BudgetTypeNonBudgeted,
		ExpectedSavings: mustDecimal(t, "300000"),
		ConfidenceLevel: 60,
	})
	require.NoError(t, err)

	wantPrefix := fmt.Sprintf("OPEX-NDS-%s-", time.Now().Format("06"))
	assert.Equal(t, wantPrefix+"001", created.InitiativeNumber)
	assert.Equal(t, model.StageHODEvaluation, created.CurrentStage)
	assert.Equal(t, model.InitiativeStatusPending, created.Status)

	// Stage 1 is written already approved; stage 2 is the pending handoff.
	txns, err := env.workflow.GetTransactions(ctx, mustUUID(t, created.ID))
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, model.ApprovalApproved, txns[0].ApproveStatus)
	assert.Equal(t, creator.Email, txns[0].PendingWith)
	assert.Equal(t, model.ApprovalPending, txns[1].ApproveStatus)
	assert.Equal(t, hod.Email, txns[1].PendingWith)
}

func TestCreateInitiativeNumberSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := env.seedUser(t, model.RoleViewer, "HSD")

	req := CreateInitiativeRequest{
		Title:           "Boiler efficiency",
		Site:            "HSD",
		Discipline:      "OP",
		BudgetType:      model.BudgetTypeBudgeted,
		ExpectedSavings: mustDecimal(t, "100000"),
	}

	first, err := env.initiatives.CreateInitiative(ctx, actorFor(creator), req)
	require.NoError(t, err)
	second, err := env.initiatives.CreateInitiative(ctx, actorFor(creator), req)
	require.NoError(t, err)

	prefix := fmt.Sprintf("OPEX-HSD-%s-", time.Now().Format("06"))
	assert.Equal(t, prefix+"001", first.InitiativeNumber)
	assert.Equal(t, prefix+"002", second.InitiativeNumber)
}

func TestCreateInitiativeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := env.seedUser(t, model.RoleViewer, "NDS")

	base := CreateInitiativeRequest{
		Title:           "x",
		Site:            "NDS",
		Discipline:      "EG",
		BudgetType:      model.BudgetTypeBudgeted,
		ExpectedSavings: mustDecimal(t, "1"),
	}

	bad := base
	bad.Site = "XYZ"
	_, err := env.initiatives.CreateInitiative(ctx, actorFor(creator), bad)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	bad = base
	bad.Discipline = "ZZ"
	_, err = env.initiatives.CreateInitiative(ctx, actorFor(creator), bad)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	bad = base
	bad.BudgetType = "CAPEX"
	_, err = env.initiatives.CreateInitiative(ctx, actorFor(creator), bad)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	bad = base
	bad.ConfidenceLevel = 120
	_, err = env.initiatives.CreateInitiative(ctx, actorFor(creator), bad)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestListInitiativesFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")

	env.seedInitiativeAtStage(t, model.StageTimeline, "NDS", il)
	env.seedInitiativeAtStage(t, model.StageTimeline, "DHJ", nil)

	all, total, err := env.initiatives.ListInitiatives(ctx, listFilter("", ""))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	nds, total, err := env.initiatives.ListInitiatives(ctx, listFilter("", "NDS"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, nds, 1)
	assert.Equal(t, "NDS", nds[0].Site)
}
