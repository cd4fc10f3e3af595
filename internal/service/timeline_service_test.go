package service

import (
	"context"
	"testing"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineEntryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	initiative, _ := env.seedInitiativeAtStage(t, model.StageTimeline, "NDS", il)

	entry, err := env.timeline.CreateEntry(ctx, actorFor(il), initiative.ID, CreateTimelineEntryRequest{
		ActivityName:      "Procure valves",
		PlannedStartDate:  "2026-02-01",
		PlannedEndDate:    "2026-03-15",
		ResponsiblePerson: "J. Perera",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TimelineStatusPending, entry.Status)

	done, err := env.timeline.AreAllEntriesCompleted(ctx, initiative.ID)
	require.NoError(t, err)
	assert.False(t, done)

	updated, err := env.timeline.UpdateEntry(ctx, actorFor(il), mustUUID(t, entry.ID), UpdateTimelineEntryRequest{
		Status:          model.TimelineStatusCompleted,
		ActualStartDate: "2026-02-03",
		ActualEndDate:   "2026-03-10",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TimelineStatusCompleted, updated.Status)
	require.NotNil(t, updated.ActualEndDate)
	assert.Equal(t, "2026-03-10", *updated.ActualEndDate)

	done, err = env.timeline.AreAllEntriesCompleted(ctx, initiative.ID)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestTimelineEntryOnlyAtTimelineStage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	initiative, _ := env.seedInitiativeAtStage(t, model.StageProgress, "NDS", il)

	_, err := env.timeline.CreateEntry(ctx, actorFor(il), initiative.ID, CreateTimelineEntryRequest{
		ActivityName:     "Too late",
		PlannedStartDate: "2026-01-01",
		PlannedEndDate:   "2026-01-31",
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTimelineEntryAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	outsider := env.seedUser(t, model.RoleInitiativeLead, "DHJ")
	hod := env.seedUser(t, model.RoleHOD, "NDS")
	stld := env.seedUser(t, model.RoleSiteTSDLead, "NDS")
	initiative, _ := env.seedInitiativeAtStage(t, model.StageTimeline, "NDS", il)

	req := CreateTimelineEntryRequest{
		ActivityName:     "Survey",
		PlannedStartDate: "2026-01-01",
		PlannedEndDate:   "2026-01-31",
	}

	_, err := env.timeline.CreateEntry(ctx, actorFor(outsider), initiative.ID, req)
	assert.ErrorIs(t, err, ErrUnauthorized, "wrong site")

	_, err = env.timeline.CreateEntry(ctx, actorFor(hod), initiative.ID, req)
	assert.ErrorIs(t, err, ErrUnauthorized, "HOD does not manage timeline entries")

	_, err = env.timeline.CreateEntry(ctx, actorFor(stld), initiative.ID, req)
	assert.NoError(t, err, "site TSD lead may manage timeline entries")
}

func TestTimelineEntryValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	il := env.seedUser(t, model.RoleInitiativeLead, "NDS")
	initiative, _ := env.seedInitiativeAtStage(t, model.StageTimeline, "NDS", il)

	_, err := env.timeline.CreateEntry(ctx, actorFor(il), initiative.ID, CreateTimelineEntryRequest{
		ActivityName:     "Bad dates",
		PlannedStartDate: "01/02/2026",
		PlannedEndDate:   "2026-03-01",
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = env.timeline.CreateEntry(ctx, actorFor(il), initiative.ID, CreateTimelineEntryRequest{
		ActivityName:     "Inverted",
		PlannedStartDate: "2026-03-01",
		PlannedEndDate:   "2026-02-01",
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	entry, err := env.timeline.CreateEntry(ctx, actorFor(il), initiative.ID, CreateTimelineEntryRequest{
		ActivityName:     "OK",
		PlannedStartDate: "2026-02-01",
		PlannedEndDate:   "2026-03-01",
	})
	require.NoError(t, err)

	_, err = env.timeline.UpdateEntry(ctx, actorFor(il), mustUUID(t, entry.ID), UpdateTimelineEntryRequest{Status: "ALMOST_DONE"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
