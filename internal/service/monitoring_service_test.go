package service

import (
	"context"
	"testing"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoringEntryDeviationOnWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	initiative, _ := env.seedInitiativeAtStage(t, model.StageSavingsMonitor, "NDS", il)

	entry, err := env.monitoring.CreateEntry(ctx, actorFor(il), initiative.ID, CreateMonitoringEntryRequest{
		KpiDescription:  "Fuel savings",
		MonitoringMonth: "2026-05",
		TargetValue:     mustDecimal(t, "200"),
		AchievedValue:   mustDecimal(t, "150"),
	})
	require.NoError(t, err)
	assert.Equal(t, "-50.00", entry.Deviation)
	assert.Equal(t, "-25.00", entry.DeviationPercentage)

	updated, err := env.monitoring.UpdateEntry(ctx, actorFor(il), mustUUID(t, entry.ID), UpdateMonitoringEntryRequest{
		AchievedValue: decimalPtr(mustDecimal(t, "250")),
	})
	require.NoError(t, err)
	assert.Equal(t, "50.00", updated.Deviation)
	assert.Equal(t, "25.00", updated.DeviationPercentage)
}

func TestMonitoringEntryOnlyAtSavingsStage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	initiative, _ := env.seedInitiativeAtStage(t, model.StageCMOReview, "NDS", il)

	_, err := env.monitoring.CreateEntry(ctx, actorFor(il), initiative.ID, CreateMonitoringEntryRequest{
		KpiDescription:  "Too early",
		MonitoringMonth: "2026-05",
		TargetValue:     mustDecimal(t, "1"),
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestMonitoringMonthFormat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	initiative, _ := env.seedInitiativeAtStage(t, model.StageSavingsMonitor, "NDS", il)

	_, err := env.monitoring.CreateEntry(ctx, actorFor(il), initiative.ID, CreateMonitoringEntryRequest{
		KpiDescription:  "Bad month",
		MonitoringMonth: "May 2026",
		TargetValue:     mustDecimal(t, "1"),
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestFinalizeRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	otherIL := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	fa := env.seedUser(t, model.RoleFinance, "NDS")
	initiative, _ := env.seedInitiativeAtStage(t, model.StageSavingsMonitor, "NDS", il)

	entry, err := env.monitoring.CreateEntry(ctx, actorFor(il), initiative.ID, CreateMonitoringEntryRequest{
		KpiDescription:  "Water savings",
		MonitoringMonth: "2026-06",
		TargetValue:     mustDecimal(t, "100"),
		AchievedValue:   mustDecimal(t, "90"),
	})
	require.NoError(t, err)
	entryID := mustUUID(t, entry.ID)

	// Only the entering user, F&A, or an admin may finalize.
	_, err = env.monitoring.SetFinalized(ctx, actorFor(otherIL), entryID, true)
	assert.ErrorIs(t, err, ErrUnauthorized)

	finalized, err := env.monitoring.SetFinalized(ctx, actorFor(il), entryID, true)
	require.NoError(t, err)
	assert.True(t, finalized.IsFinalized)

	// Finalized entries are read-only.
	_, err = env.monitoring.UpdateEntry(ctx, actorFor(il), entryID, UpdateMonitoringEntryRequest{
		AchievedValue: decimalPtr(mustDecimal(t, "95")),
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	err = env.monitoring.DeleteEntry(ctx, actorFor(il), entryID)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	// F&A approval locks finalization in place.
	_, err = env.monitoring.BatchApprove(ctx, actorFor(fa), initiative.ID, BatchApproveRequest{
		EntryIDs:   []uuid.UUID{entryID},
		FAComments: "checked",
	})
	require.NoError(t, err)

	_, err = env.monitoring.SetFinalized(ctx, actorFor(il), entryID, false)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestBatchApproveRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	fa := env.seedUser(t, model.RoleFinance, "NDS")
	initiative, _ := env.seedInitiativeAtStage(t, model.StageSavingsMonitor, "NDS", il)

	entry, err := env.monitoring.CreateEntry(ctx, actorFor(il), initiative.ID, CreateMonitoringEntryRequest{
		KpiDescription:  "Power savings",
		MonitoringMonth: "2026-07",
		TargetValue:     mustDecimal(t, "10"),
	})
	require.NoError(t, err)
	entryID := mustUUID(t, entry.ID)

	// Only F&A (or admin) may batch-approve.
	_, err = env.monitoring.BatchApprove(ctx, actorFor(il), initiative.ID, BatchApproveRequest{EntryIDs: []uuid.UUID{entryID}})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Non-finalized entries are not approvable.
	_, err = env.monitoring.BatchApprove(ctx, actorFor(fa), initiative.ID, BatchApproveRequest{EntryIDs: []uuid.UUID{entryID}})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	// Unknown entry IDs are rejected.
	_, err = env.monitoring.BatchApprove(ctx, actorFor(fa), initiative.ID, BatchApproveRequest{EntryIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = env.monitoring.SetFinalized(ctx, actorFor(il), entryID, true)
	require.NoError(t, err)

	approved, err := env.monitoring.BatchApprove(ctx, actorFor(fa), initiative.ID, BatchApproveRequest{
		EntryIDs:   []uuid.UUID{entryID},
		FAComments: "verified",
	})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.True(t, approved[0].FAApproval)
	assert.Equal(t, "verified", approved[0].FAComments)

	allDone, err := env.monitoring.AreAllEntriesFinalized(ctx, initiative.ID)
	require.NoError(t, err)
	assert.True(t, allDone)
}
