package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullWorkflowWalkToCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := "NDS"

	creator := env.seedUser(t, model.RoleViewer, site)
	hod := env.seedUser(t, model.RoleHOD, site)
	stld := env.seedUser(t, model.RoleSiteTSDLead, site)
	sh := env.seedUser(t, model.RoleSiteHead, site)
	ctsd := env.seedUser(t, model.RoleCorporateTSD, site)
	fa := env.seedUser(t, model.RoleFinance, site)
	il := env.seedUser(t, model.RoleInitiativeLead, site)

	created, err := env.initiatives.CreateInitiative(ctx, actorFor(creator), CreateInitiativeRequest{
		Title:           "Condensate recovery",
		Site:            site,
		Discipline:      "EG",
		BudgetType:      model.BudgetTypeBudgeted,
		ExpectedSavings: mustDecimal(t, "1200000"),
		ConfidenceLevel: 80,
	})
	require.NoError(t, err)
	require.Equal(t, model.StageHODEvaluation, created.CurrentStage)

	initiative := env.reload(t, mustUUID(t, created.ID))

	// Stage 2: HOD
	txn := env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageHODEvaluation, txn.StageNumber)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(hod), approveReq(txn.ID, "evaluated", StageActionPayload{}))
	require.NoError(t, err)

	// Stage 3: STLD
	txn = env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageSiteAssessment, txn.StageNumber)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(stld), approveReq(txn.ID, "site assessed", StageActionPayload{}))
	require.NoError(t, err)

	// Stage 4: SH assigns the Initiative Lead
	txn = env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageDefineLead, txn.StageNumber)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(sh), approveReq(txn.ID, "lead assigned", StageActionPayload{AssignedUserID: &il.ID}))
	require.NoError(t, err)

	initiative = env.reload(t, initiative.ID)
	require.NotNil(t, initiative.AssignedTo)
	assert.Equal(t, il.ID, *initiative.AssignedTo)

	// Stage 5: IL records the MOC/CAPEX decision
	txn = env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageMocCapex, txn.StageNumber)
	assert.Equal(t, il.Email, txn.PendingWith, "IL stages bind to the assigned lead's email")
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(il), approveReq(txn.ID, "moc filed", StageActionPayload{
		RequiresMoc:   model.DecisionYes,
		MocNumber:     "MOC-22-104",
		RequiresCapex: model.DecisionNo,
	}))
	require.NoError(t, err)

	initiative = env.reload(t, initiative.ID)
	assert.Equal(t, model.DecisionYes, initiative.RequiresMoc)
	assert.Equal(t, "MOC-22-104", initiative.MocNumber)

	// Stage 6: all timeline entries must be completed before approval
	entry, err := env.timeline.CreateEntry(ctx, actorFor(il), initiative.ID, CreateTimelineEntryRequest{
		ActivityName:     "Install traps",
		PlannedStartDate: "2026-01-01",
		PlannedEndDate:   "2026-02-01",
	})
	require.NoError(t, err)

	txn = env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageTimeline, txn.StageNumber)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(il), approveReq(txn.ID, "done", StageActionPayload{}))
	var gateErr *GateError
	require.ErrorAs(t, err, &gateErr)
	assert.Equal(t, model.StageTimeline, gateErr.StageNumber)

	_, err = env.timeline.UpdateEntry(ctx, actorFor(il), mustUUID(t, entry.ID), UpdateTimelineEntryRequest{Status: model.TimelineStatusCompleted})
	require.NoError(t, err)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(il), approveReq(txn.ID, "activities complete", StageActionPayload{}))
	require.NoError(t, err)

	// Stage 7: STLD progress review
	txn = env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageProgress, txn.StageNumber)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(stld), approveReq(txn.ID, "on track", StageActionPayload{}))
	require.NoError(t, err)

	// Stage 8: CTSD review
	txn = env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageCMOReview, txn.StageNumber)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(ctsd), approveReq(txn.ID, "reviewed with CMO", StageActionPayload{}))
	require.NoError(t, err)

	// Stage 9: monitoring entries must all be finalized
	mEntry, err := env.monitoring.CreateEntry(ctx, actorFor(il), initiative.ID, CreateMonitoringEntryRequest{
		KpiDescription:  "Steam savings",
		MonitoringMonth: "2026-03",
		TargetValue:     mustDecimal(t, "100000"),
		AchievedValue:   mustDecimal(t, "110000"),
	})
	require.NoError(t, err)

	txn = env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageSavingsMonitor, txn.StageNumber)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(il), approveReq(txn.ID, "monitored", StageActionPayload{}))
	require.ErrorAs(t, err, &gateErr)

	_, err = env.monitoring.SetFinalized(ctx, actorFor(il), mustUUID(t, mEntry.ID), true)
	require.NoError(t, err)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(il), approveReq(txn.ID, "all months finalized", StageActionPayload{}))
	require.NoError(t, err)

	// Stage 10: F&A validation, approving the finalized entries in the action
	txn = env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageFAValidation, txn.StageNumber)
	_, err = env.workflow.ProcessStageAction(ctx, actorFor(fa), approveReq(txn.ID, "savings validated", StageActionPayload{
		ApprovedEntryIDs: []uuid.UUID{mustUUID(t, mEntry.ID)},
		FAComments:       "verified against ledger",
	}))
	require.NoError(t, err)

	// Stage 11: closure
	txn = env.pendingTxn(t, initiative.ID)
	require.Equal(t, model.StageClosure, txn.StageNumber)
	result, err := env.workflow.ProcessStageAction(ctx, actorFor(il), approveReq(txn.ID, "closing out", StageActionPayload{}))
	require.NoError(t, err)

	assert.Equal(t, model.InitiativeStatusCompleted, result.Initiative.Status)
	assert.Equal(t, model.StageBeyondFinal, result.Initiative.CurrentStage)
	assert.Zero(t, env.countPending(t, initiative.ID), "no transaction may remain pending after completion")
}

func TestSinglePendingTransactionInvariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hod := env.seedUser(t, model.RoleHOD, "HSD")

	initiative, txn := env.seedInitiativeAtStage(t, model.StageHODEvaluation, "HSD", nil)
	require.EqualValues(t, 1, env.countPending(t, initiative.ID))

	_, err := env.workflow.ProcessStageAction(ctx, actorFor(hod), approveReq(txn.ID, "ok", StageActionPayload{}))
	require.NoError(t, err)
	assert.EqualValues(t, 1, env.countPending(t, initiative.ID), "approval must hand off to exactly one new pending transaction")
}

func TestApproveRequiresComment(t *testing.T) {
	env := newTestEnv(t)
	hod := env.seedUser(t, model.RoleHOD, "NDS")
	_, txn := env.seedInitiativeAtStage(t, model.StageHODEvaluation, "NDS", nil)

	_, err := env.workflow.ProcessStageAction(context.Background(), actorFor(hod), approveReq(txn.ID, "   ", StageActionPayload{}))
	assert.ErrorIs(t, err, ErrCommentRequired)
}

func TestAuthorizationSiteMismatch(t *testing.T) {
	env := newTestEnv(t)
	hodElsewhere := env.seedUser(t, model.RoleHOD, "DHJ")
	_, txn := env.seedInitiativeAtStage(t, model.StageHODEvaluation, "NDS", nil)

	_, err := env.workflow.ProcessStageAction(context.Background(), actorFor(hodElsewhere), approveReq(txn.ID, "ok", StageActionPayload{}))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthorizationWrongRole(t *testing.T) {
	env := newTestEnv(t)
	stld := env.seedUser(t, model.RoleSiteTSDLead, "NDS")
	_, txn := env.seedInitiativeAtStage(t, model.StageHODEvaluation, "NDS", nil)

	_, err := env.workflow.ProcessStageAction(context.Background(), actorFor(stld), approveReq(txn.ID, "ok", StageActionPayload{}))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestEmailBindingBeatsRoleFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assignedIL := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	otherIL := env.seedUser(t, model.RoleInitiativeLead, "NDS")

	_, txn := env.seedInitiativeAtStage(t, model.StageMocCapex, "NDS", assignedIL)
	require.Equal(t, assignedIL.Email, txn.PendingWith)

	// A different IL at the same site holds the right role, but the pending
	// transaction is bound to an individual.
	_, err := env.workflow.ProcessStageAction(ctx, actorFor(otherIL), approveReq(txn.ID, "ok", StageActionPayload{
		RequiresMoc: model.DecisionNo, RequiresCapex: model.DecisionNo,
	}))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.workflow.ProcessStageAction(ctx, actorFor(assignedIL), approveReq(txn.ID, "ok", StageActionPayload{
		RequiresMoc: model.DecisionNo, RequiresCapex: model.DecisionNo,
	}))
	assert.NoError(t, err)
}

func TestRejectTerminatesInitiative(t *testing.T) {
	env := newTestEnv(t)
	hod := env.seedUser(t, model.RoleHOD, "NDS")
	initiative, txn := env.seedInitiativeAtStage(t, model.StageHODEvaluation, "NDS", nil)

	_, err := env.workflow.ProcessStageAction(context.Background(), actorFor(hod), ProcessStageActionRequest{
		TransactionID: txn.ID,
		Action:        model.WorkflowActionReject,
		Comment:       "not viable this year",
	})
	require.NoError(t, err)

	reloaded := env.reload(t, initiative.ID)
	assert.Equal(t, model.InitiativeStatusRejected, reloaded.Status)
	assert.Zero(t, env.countPending(t, initiative.ID))
}

func TestRejectUnavailableOutsideCatalog(t *testing.T) {
	env := newTestEnv(t)
	sh := env.seedUser(t, model.RoleSiteHead, "NDS")
	_, txn := env.seedInitiativeAtStage(t, model.StageDefineLead, "NDS", nil)

	_, err := env.workflow.ProcessStageAction(context.Background(), actorFor(sh), ProcessStageActionRequest{
		TransactionID: txn.ID,
		Action:        model.WorkflowActionReject,
		Comment:       "no",
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDropAtCMOReview(t *testing.T) {
	env := newTestEnv(t)
	ctsd := env.seedUser(t, model.RoleCorporateTSD, "NDS")
	initiative, txn := env.seedInitiativeAtStage(t, model.StageCMOReview, "NDS", nil)

	_, err := env.workflow.ProcessStageAction(context.Background(), actorFor(ctsd), ProcessStageActionRequest{
		TransactionID: txn.ID,
		Action:        model.WorkflowActionDrop,
		Comment:       "deferred to next fiscal year",
	})
	require.NoError(t, err)

	reloaded := env.reload(t, initiative.ID)
	assert.Equal(t, model.InitiativeStatusDropped, reloaded.Status)
	assert.Zero(t, env.countPending(t, initiative.ID))
}

func TestAlreadyProcessedOnSecondAction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hod := env.seedUser(t, model.RoleHOD, "NDS")
	_, txn := env.seedInitiativeAtStage(t, model.StageHODEvaluation, "NDS", nil)

	_, err := env.workflow.ProcessStageAction(ctx, actorFor(hod), approveReq(txn.ID, "first", StageActionPayload{}))
	require.NoError(t, err)

	_, err = env.workflow.ProcessStageAction(ctx, actorFor(hod), approveReq(txn.ID, "second", StageActionPayload{}))
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

// Two actors racing on the same pending transaction both pass the initial
// read; the conditional finalize must let exactly one win.
func TestConcurrentApprovalSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hod := env.seedUser(t, model.RoleHOD, "NDS")
	initiative, txn := env.seedInitiativeAtStage(t, model.StageHODEvaluation, "NDS", nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.workflow.ProcessStageAction(ctx, actorFor(hod), approveReq(txn.ID, "approved", StageActionPayload{}))
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyProcessed):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	reloaded := env.reload(t, initiative.ID)
	assert.Equal(t, model.StageSiteAssessment, reloaded.CurrentStage)
	assert.EqualValues(t, 1, env.countPending(t, initiative.ID))
}

func TestStage4GateValidatesAssignedLead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sh := env.seedUser(t, model.RoleSiteHead, "NDS")
	notAnIL := env.seedUser(t, model.RoleHOD, "NDS")
	ilElsewhere := env.seedUser(t, model.RoleInitiativeLead, "DHJ")

	_, txn := env.seedInitiativeAtStage(t, model.StageDefineLead, "NDS", nil)

	_, err := env.workflow.ProcessStageAction(ctx, actorFor(sh), approveReq(txn.ID, "ok", StageActionPayload{}))
	assert.ErrorIs(t, err, ErrInvalidPayload, "missing assigned_user_id")

	_, err = env.workflow.ProcessStageAction(ctx, actorFor(sh), approveReq(txn.ID, "ok", StageActionPayload{AssignedUserID: &notAnIL.ID}))
	assert.ErrorIs(t, err, ErrInvalidPayload, "assignee must hold the IL role")

	_, err = env.workflow.ProcessStageAction(ctx, actorFor(sh), approveReq(txn.ID, "ok", StageActionPayload{AssignedUserID: &ilElsewhere.ID}))
	assert.ErrorIs(t, err, ErrInvalidPayload, "assignee must belong to the initiative's site")
}

func TestStage5GateValidatesDecisions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	_, txn := env.seedInitiativeAtStage(t, model.StageMocCapex, "NDS", il)

	_, err := env.workflow.ProcessStageAction(ctx, actorFor(il), approveReq(txn.ID, "ok", StageActionPayload{
		RequiresMoc: "maybe", RequiresCapex: model.DecisionNo,
	}))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = env.workflow.ProcessStageAction(ctx, actorFor(il), approveReq(txn.ID, "ok", StageActionPayload{
		RequiresMoc: model.DecisionYes, RequiresCapex: model.DecisionNo,
	}))
	assert.ErrorIs(t, err, ErrInvalidPayload, "Y requires a number")
}

func TestStage10GateRequiresFACoverage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fa := env.seedUser(t, model.RoleFinance, "NDS")
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	initiative, txn := env.seedInitiativeAtStage(t, model.StageFAValidation, "NDS", il)

	entry := &model.MonthlyMonitoringEntry{
		InitiativeID:    initiative.ID,
		KpiDescription:  "Power savings",
		MonitoringMonth: "2026-04",
		IsFinalized:     true,
	}
	require.NoError(t, env.db.Create(entry).Error)

	_, err := env.workflow.ProcessStageAction(ctx, actorFor(fa), approveReq(txn.ID, "ok", StageActionPayload{}))
	var gateErr *GateError
	require.ErrorAs(t, err, &gateErr)

	_, err = env.workflow.ProcessStageAction(ctx, actorFor(fa), approveReq(txn.ID, "validated", StageActionPayload{
		ApprovedEntryIDs: []uuid.UUID{entry.ID},
	}))
	require.NoError(t, err)

	var reloaded model.MonthlyMonitoringEntry
	require.NoError(t, env.db.First(&reloaded, "id = ?", entry.ID).Error)
	assert.True(t, reloaded.FAApproval)
}

func TestGetPendingTransactionVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hod := env.seedUser(t, model.RoleHOD, "NDS")
	viewer := env.seedUser(t, model.RoleViewer, "NDS")
	initiative, txn := env.seedInitiativeAtStage(t, model.StageHODEvaluation, "NDS", nil)

	visible, err := env.workflow.GetPendingTransaction(ctx, initiative.ID, actorFor(hod))
	require.NoError(t, err)
	require.NotNil(t, visible)
	assert.Equal(t, txn.ID.String(), visible.ID)

	hidden, err := env.workflow.GetPendingTransaction(ctx, initiative.ID, actorFor(viewer))
	require.NoError(t, err)
	assert.Nil(t, hidden, "unauthorized actors see no pending transaction")
}
