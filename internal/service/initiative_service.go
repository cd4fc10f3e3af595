package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateInitiativeRequest struct {
	Title           string          `json:"title" binding:"required"`
	Description     string          `json:"description"`
	Site            string          `json:"site" binding:"required"`
	Discipline      string          `json:"discipline" binding:"required"`
	BudgetType      string          `json:"budget_type" binding:"required,oneof=BUDGETED NON-BUDGETED"`
	ExpectedSavings decimal.Decimal `json:"expected_savings" binding:"required"`
	EstimatedCapex  decimal.Decimal `json:"estimated_capex"`
	TargetValue     decimal.Decimal `json:"target_value"`
	ConfidenceLevel int             `json:"confidence_level" binding:"min=0,max=100"`
	InitiatorName   string          `json:"initiator_name"`
}

type InitiativeResponse struct {
	ID               string  `json:"id"`
	InitiativeNumber string  `json:"initiative_number"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Site             string  `json:"site"`
	Discipline       string  `json:"discipline"`
	BudgetType       string  `json:"budget_type"`
	ExpectedSavings  string  `json:"expected_savings"`
	ActualSavings    string  `json:"actual_savings"`
	EstimatedCapex   string  `json:"estimated_capex"`
	TargetValue      string  `json:"target_value"`
	ConfidenceLevel  int     `json:"confidence_level"`
	CurrentStage     int     `json:"current_stage"`
	Status           string  `json:"status"`
	RequiresMoc      string  `json:"requires_moc"`
	MocNumber        string  `json:"moc_number"`
	RequiresCapex    string  `json:"requires_capex"`
	CapexNumber      string  `json:"capex_number"`
	AssignedTo       *string `json:"assigned_to"`
	AssignedLeadName string  `json:"assigned_lead_name"`
	CreatedBy        *string `json:"created_by"`
	CreatorName      string  `json:"creator_name"`
	InitiatorName    string  `json:"initiator_name"`
	CreatedAt        string  `json:"created_at"`
}

// --- Interface ---

type InitiativeService interface {
	// CreateInitiative registers an initiative: the stage-1 transaction is
	// written already approved (registration implies stage-1 approval) and the
	// stage-2 transaction is spawned pending, all in one atomic unit.
	CreateInitiative(ctx context.Context, actor model.AuthenticatedActor, req CreateInitiativeRequest) (*InitiativeResponse, error)
	GetInitiative(ctx context.Context, id uuid.UUID) (*InitiativeResponse, error)
	ListInitiatives(ctx context.Context, filter repository.InitiativeFilter) ([]InitiativeResponse, int64, error)
}

type initiativeService struct {
	db             *gorm.DB
	txManager      repository.TransactionManager
	initiativeRepo repository.InitiativeRepository
	workflowRepo   repository.WorkflowTransactionRepository
	userRepo       repository.UserRepository
}

func NewInitiativeService(
	db *gorm.DB,
	txManager repository.TransactionManager,
	initiativeRepo repository.InitiativeRepository,
	workflowRepo repository.WorkflowTransactionRepository,
	userRepo repository.UserRepository,
) InitiativeService {
	return &initiativeService{
		db:             db,
		txManager:      txManager,
		initiativeRepo: initiativeRepo,
		workflowRepo:   workflowRepo,
		userRepo:       userRepo,
	}
}

// --- Implementation ---

func (s *initiativeService) CreateInitiative(ctx context.Context, actor model.AuthenticatedActor, req CreateInitiativeRequest) (*InitiativeResponse, error) {
	if !model.IsValidSite(req.Site) {
		return nil, fmt.Errorf("%w: unknown site %q", ErrInvalidPayload, req.Site)
	}
	if !model.IsValidDiscipline(req.Discipline) {
		return nil, fmt.Errorf("%w: unknown discipline %q", ErrInvalidPayload, req.Discipline)
	}
	if req.BudgetType != model.BudgetTypeBudgeted && req.BudgetType != model.BudgetTypeNonBudgeted {
		return nil, fmt.Errorf("%w: budget type must be BUDGETED or NON-BUDGETED", ErrInvalidPayload)
	}
	if req.ConfidenceLevel < 0 || req.ConfidenceLevel > 100 {
		return nil, fmt.Errorf("%w: confidence level must be between 0 and 100", ErrInvalidPayload)
	}

	initiatorName := strings.TrimSpace(req.InitiatorName)
	if initiatorName == "" {
		initiatorName = actor.Email
	}

	var initiative *model.Initiative
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, err := s.generateInitiativeNumber(txCtx, req.Site)
		if err != nil {
			return fmt.Errorf("failed to generate initiative number: %w", err)
		}

		creatorID := actor.ID
		initiative = &model.Initiative{
			InitiativeNumber: number,
			Title:            req.Title,
			Description:      req.Description,
			Site:             req.Site,
			Discipline:       req.Discipline,
			BudgetType:       req.BudgetType,
			ExpectedSavings:  req.ExpectedSavings,
			EstimatedCapex:   req.EstimatedCapex,
			TargetValue:      req.TargetValue,
			ConfidenceLevel:  req.ConfidenceLevel,
			CurrentStage:     model.StageRegister,
			Status:           model.InitiativeStatusPending,
			CreatedBy:        &creatorID,
			InitiatorName:    initiatorName,
		}
		if err := s.initiativeRepo.Create(txCtx, initiative); err != nil {
			return fmt.Errorf("failed to create initiative: %w", err)
		}

		// Stage 1: registration implies approval by the creator.
		registerDef, _ := model.StageDefinitionFor(model.StageRegister)
		now := time.Now()
		actionBy := actor.ID
		stageOne := &model.WorkflowTransaction{
			InitiativeID:  initiative.ID,
			StageNumber:   model.StageRegister,
			StageName:     registerDef.Name,
			ApproveStatus: model.ApprovalApproved,
			PendingWith:   actor.Email,
			ActionBy:      &actionBy,
			ActionDate:    &now,
			Comment:       "Initiative registered",
		}
		if err := s.workflowRepo.Create(txCtx, stageOne); err != nil {
			return fmt.Errorf("failed to create stage 1 transaction: %w", err)
		}

		// Stage 2 becomes the pending transaction, assigned to the site HOD.
		hodDef, _ := model.StageDefinitionFor(model.StageHODEvaluation)
		stageTwo := &model.WorkflowTransaction{
			InitiativeID:  initiative.ID,
			StageNumber:   model.StageHODEvaluation,
			StageName:     hodDef.Name,
			RequiredRole:  hodDef.RequiredRole,
			ApproveStatus: model.ApprovalPending,
			PendingWith:   resolveStageAssignee(txCtx, s.userRepo, initiative, hodDef),
		}
		if err := s.workflowRepo.Create(txCtx, stageTwo); err != nil {
			return fmt.Errorf("failed to create stage 2 transaction: %w", err)
		}

		initiative.CurrentStage = model.StageHODEvaluation
		if err := s.initiativeRepo.Update(txCtx, initiative); err != nil {
			return fmt.Errorf("failed to update initiative: %w", err)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"initiative_number": number,
			"site":              req.Site,
			"discipline":        req.Discipline,
			"expected_savings":  req.ExpectedSavings.StringFixed(2),
		})
		audit := model.AuditLog{
			UserID:     &creatorID,
			Action:     model.ActionCreateInitiative,
			EntityID:   initiative.ID.String(),
			EntityName: number,
			Details:    string(details),
		}
		if err := repository.GetDB(txCtx, s.db).Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reload with relations
	reloaded, err := s.initiativeRepo.GetByID(ctx, initiative.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload initiative: %w", err)
	}

	resp := toInitiativeResponse(reloaded)
	return &resp, nil
}

func (s *initiativeService) GetInitiative(ctx context.Context, id uuid.UUID) (*InitiativeResponse, error) {
	initiative, err := s.initiativeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: initiative %s", ErrNotFound, id)
		}
		return nil, err
	}
	resp := toInitiativeResponse(initiative)
	return &resp, nil
}

func (s *initiativeService) ListInitiatives(ctx context.Context, filter repository.InitiativeFilter) ([]InitiativeResponse, int64, error) {
	initiatives, total, err := s.initiativeRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch initiatives: %w", err)
	}

	result := make([]InitiativeResponse, 0, len(initiatives))
	for i := range initiatives {
		result = append(result, toInitiativeResponse(&initiatives[i]))
	}
	return result, total, nil
}

// generateInitiativeNumber produces OPEX-<SITE>-<YY>-NNN, sequenced per site
// and fiscal year.
func (s *initiativeService) generateInitiativeNumber(ctx context.Context, site string) (string, error) {
	prefix := fmt.Sprintf("OPEX-%s-%s-", site, time.Now().Format("06"))

	// Use advisory lock to prevent concurrent duplicate initiative numbers
	repository.GetDB(ctx, s.db).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix)

	count, err := s.initiativeRepo.CountBySitePrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

// --- Helpers ---

func toInitiativeResponse(i *model.Initiative) InitiativeResponse {
	resp := InitiativeResponse{
		ID:               i.ID.String(),
		InitiativeNumber: i.InitiativeNumber,
		Title:            i.Title,
		Description:      i.Description,
		Site:             i.Site,
		Discipline:       i.Discipline,
		BudgetType:       i.BudgetType,
		ExpectedSavings:  i.ExpectedSavings.StringFixed(2),
		ActualSavings:    i.ActualSavings.StringFixed(2),
		EstimatedCapex:   i.EstimatedCapex.StringFixed(2),
		TargetValue:      i.TargetValue.StringFixed(2),
		ConfidenceLevel:  i.ConfidenceLevel,
		CurrentStage:     i.CurrentStage,
		Status:           i.Status,
		RequiresMoc:      i.RequiresMoc,
		MocNumber:        i.MocNumber,
		RequiresCapex:    i.RequiresCapex,
		CapexNumber:      i.CapexNumber,
		InitiatorName:    i.InitiatorName,
		CreatedAt:        i.CreatedAt.Format(time.RFC3339),
	}
	if i.AssignedTo != nil {
		v := i.AssignedTo.String()
		resp.AssignedTo = &v
	}
	if i.AssignedLead != nil {
		resp.AssignedLeadName = i.AssignedLead.FullName
	}
	if i.CreatedBy != nil {
		v := i.CreatedBy.String()
		resp.CreatedBy = &v
	}
	if i.Creator != nil {
		resp.CreatorName = i.Creator.FullName
	}
	return resp
}
