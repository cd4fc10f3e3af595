package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the full service stack against an in-memory sqlite database.
type testEnv struct {
	db             *gorm.DB
	initiativeRepo repository.InitiativeRepository
	workflowRepo   repository.WorkflowTransactionRepository
	timelineRepo   repository.TimelineRepository
	monitoringRepo repository.MonitoringRepository
	userRepo       repository.UserRepository

	initiatives InitiativeService
	workflow    WorkflowService
	timeline    TimelineService
	monitoring  MonitoringService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Initiative{},
		&model.WorkflowTransaction{},
		&model.TimelineEntry{},
		&model.MonthlyMonitoringEntry{},
		&model.AuditLog{},
	))

	txManager := repository.NewTransactionManager(db)
	initiativeRepo := repository.NewInitiativeRepository(db)
	workflowRepo := repository.NewWorkflowTransactionRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	monitoringRepo := repository.NewMonitoringRepository(db)
	userRepo := repository.NewUserRepository(db)

	return &testEnv{
		db:             db,
		initiativeRepo: initiativeRepo,
		workflowRepo:   workflowRepo,
		timelineRepo:   timelineRepo,
		monitoringRepo: monitoringRepo,
		userRepo:       userRepo,
		initiatives:    NewInitiativeService(db, txManager, initiativeRepo, workflowRepo, userRepo),
		workflow:       NewWorkflowService(db, txManager, initiativeRepo, workflowRepo, timelineRepo, monitoringRepo, userRepo, nil),
		timeline:       NewTimelineService(db, txManager, timelineRepo, initiativeRepo),
		monitoring:     NewMonitoringService(db, txManager, monitoringRepo, initiativeRepo),
	}
}

func (e *testEnv) seedUser(t *testing.T, role, site string) *model.User {
	t.Helper()
	u := &model.User{
		Email:    fmt.Sprintf("%s.%s.%s@company.test", role, site, uuid.NewString()[:8]),
		FullName: role + " " + site,
		Password: "x",
		Site:     site,
		Role:     role,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func actorFor(u *model.User) model.AuthenticatedActor {
	return model.AuthenticatedActor{ID: u.ID, Email: u.Email, Role: u.Role, Site: u.Site}
}

// seedInitiativeAtStage inserts an initiative with a single pending transaction
// at the given stage, bypassing the earlier stages. pendingWith falls back to
// the stage's role code when no lead is bound.
func (e *testEnv) seedInitiativeAtStage(t *testing.T, stage int, site string, lead *model.User) (*model.Initiative, *model.WorkflowTransaction) {
	t.Helper()

	def, ok := model.StageDefinitionFor(stage)
	require.True(t, ok)

	initiative := &model.Initiative{
		InitiativeNumber: fmt.Sprintf("OPEX-%s-%s-%s", site, time.Now().Format("06"), uuid.NewString()[:6]),
		Title:            "Steam trap survey",
		Site:             site,
		Discipline:       "EG",
		BudgetType:       model.BudgetTypeBudgeted,
		ExpectedSavings:  decimal.NewFromInt(500000),
		CurrentStage:     stage,
		Status:           model.InitiativeStatusInProgress,
	}
	if lead != nil {
		initiative.AssignedTo = &lead.ID
	}
	require.NoError(t, e.db.Create(initiative).Error)

	pendingWith := def.RequiredRole
	if lead != nil && def.RequiredRole == model.RoleInitiativeLead {
		pendingWith = lead.Email
	}
	txn := &model.WorkflowTransaction{
		InitiativeID:  initiative.ID,
		StageNumber:   stage,
		StageName:     def.Name,
		RequiredRole:  def.RequiredRole,
		ApproveStatus: model.ApprovalPending,
		PendingWith:   pendingWith,
	}
	require.NoError(t, e.db.Create(txn).Error)

	return initiative, txn
}

func (e *testEnv) pendingTxn(t *testing.T, initiativeID uuid.UUID) *model.WorkflowTransaction {
	t.Helper()
	txn, err := e.workflowRepo.GetPendingByInitiative(context.Background(), initiativeID)
	require.NoError(t, err)
	return txn
}

func (e *testEnv) reload(t *testing.T, initiativeID uuid.UUID) *model.Initiative {
	t.Helper()
	initiative, err := e.initiativeRepo.GetByID(context.Background(), initiativeID)
	require.NoError(t, err)
	return initiative
}

func (e *testEnv) countPending(t *testing.T, initiativeID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.WorkflowTransaction{}).
		Where("initiative_id = ? AND approve_status = ?", initiativeID, model.ApprovalPending).
		Count(&n).Error)
	return n
}

func listFilter(status, site string) repository.InitiativeFilter {
	return repository.InitiativeFilter{Status: status, Site: site}
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func approveReq(txnID uuid.UUID, comment string, payload StageActionPayload) ProcessStageActionRequest {
	return ProcessStageActionRequest{
		TransactionID: txnID,
		Action:        model.WorkflowActionApprove,
		Comment:       comment,
		Payload:       payload,
	}
}
