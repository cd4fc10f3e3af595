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
	ws "github.com/dgappsadmin/OpEx-Main-sub000/internal/websocket"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

// StageActionPayload carries the stage-specific data of a stage action.
// Fields are relevant only to their owning stage; the processor validates
// them per stage number.
type StageActionPayload struct {
	// Stage 4: the Initiative Lead to assign
	AssignedUserID *uuid.UUID `json:"assigned_user_id"`

	// Stage 5: MOC/CAPEX decision
	RequiresMoc   string `json:"requires_moc"` // Y / N
	MocNumber     string `json:"moc_number"`
	RequiresCapex string `json:"requires_capex"`
	CapexNumber   string `json:"capex_number"`

	// Stage 10: monitoring entries F&A-approved as part of this action
	ApprovedEntryIDs []uuid.UUID `json:"approved_entry_ids"`
	FAComments       string      `json:"fa_comments"`
}

type ProcessStageActionRequest struct {
	TransactionID uuid.UUID          `json:"transaction_id" binding:"required"`
	Action        string             `json:"action" binding:"required,oneof=approve reject drop"`
	Comment       string             `json:"comment"`
	Payload       StageActionPayload `json:"payload"`
}

type WorkflowTransactionResponse struct {
	ID             string  `json:"id"`
	InitiativeID   string  `json:"initiative_id"`
	StageNumber    int     `json:"stage_number"`
	StageName      string  `json:"stage_name"`
	RequiredRole   string  `json:"required_role"`
	ApproveStatus  string  `json:"approve_status"`
	PendingWith    string  `json:"pending_with"`
	ActionBy       *string `json:"action_by"`
	ActorName      string  `json:"actor_name"`
	ActionDate     *string `json:"action_date"`
	Comment        string  `json:"comment"`
	AssignedUserID *string `json:"assigned_user_id"`
	RequiresMoc    string  `json:"requires_moc"`
	MocNumber      string  `json:"moc_number"`
	RequiresCapex  string  `json:"requires_capex"`
	CapexNumber    string  `json:"capex_number"`
	CreatedAt      string  `json:"created_at"`
}

// StageActionResult is the updated state returned by ProcessStageAction.
type StageActionResult struct {
	Initiative  InitiativeResponse          `json:"initiative"`
	Transaction WorkflowTransactionResponse `json:"transaction"`
}

// --- Interface ---

type WorkflowService interface {
	GetTransactions(ctx context.Context, initiativeID uuid.UUID) ([]WorkflowTransactionResponse, error)
	// GetPendingTransaction returns the single pending transaction of the
	// initiative if the actor is authorized to act on it, nil otherwise.
	GetPendingTransaction(ctx context.Context, initiativeID uuid.UUID, actor model.AuthenticatedActor) (*WorkflowTransactionResponse, error)
	// ProcessStageAction is the single mutating entry point of the workflow.
	ProcessStageAction(ctx context.Context, actor model.AuthenticatedActor, req ProcessStageActionRequest) (*StageActionResult, error)
}

type workflowService struct {
	db             *gorm.DB
	txManager      repository.TransactionManager
	initiativeRepo repository.InitiativeRepository
	workflowRepo   repository.WorkflowTransactionRepository
	timelineRepo   repository.TimelineRepository
	monitoringRepo repository.MonitoringRepository
	userRepo       repository.UserRepository
	hub            *ws.Hub
}

func NewWorkflowService(
	db *gorm.DB,
	txManager repository.TransactionManager,
	initiativeRepo repository.InitiativeRepository,
	workflowRepo repository.WorkflowTransactionRepository,
	timelineRepo repository.TimelineRepository,
	monitoringRepo repository.MonitoringRepository,
	userRepo repository.UserRepository,
	hub *ws.Hub,
) WorkflowService {
	return &workflowService{
		db:             db,
		txManager:      txManager,
		initiativeRepo: initiativeRepo,
		workflowRepo:   workflowRepo,
		timelineRepo:   timelineRepo,
		monitoringRepo: monitoringRepo,
		userRepo:       userRepo,
		hub:            hub,
	}
}

// --- Implementation ---

func (s *workflowService) GetTransactions(ctx context.Context, initiativeID uuid.UUID) ([]WorkflowTransactionResponse, error) {
	txns, err := s.workflowRepo.GetByInitiative(ctx, initiativeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow transactions: %w", err)
	}

	result := make([]WorkflowTransactionResponse, 0, len(txns))
	for _, t := range txns {
		result = append(result, toTransactionResponse(t))
	}
	return result, nil
}

func (s *workflowService) GetPendingTransaction(ctx context.Context, initiativeID uuid.UUID, actor model.AuthenticatedActor) (*WorkflowTransactionResponse, error) {
	txn, err := s.workflowRepo.GetPendingByInitiative(ctx, initiativeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Terminal initiative — nothing pending
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch pending transaction: %w", err)
	}

	initiative, err := s.initiativeRepo.GetByID(ctx, initiativeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: initiative %s", ErrNotFound, initiativeID)
		}
		return nil, err
	}

	if !isAuthorizedActor(actor, txn, initiative) {
		return nil, nil
	}

	resp := toTransactionResponse(*txn)
	return &resp, nil
}

func (s *workflowService) ProcessStageAction(ctx context.Context, actor model.AuthenticatedActor, req ProcessStageActionRequest) (*StageActionResult, error) {
	switch req.Action {
	case model.WorkflowActionApprove, model.WorkflowActionReject, model.WorkflowActionDrop:
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidPayload, req.Action)
	}

	var result *StageActionResult
	var event ws.WorkflowEvent

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		txn, err := s.workflowRepo.GetByID(txCtx, req.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: workflow transaction %s", ErrNotFound, req.TransactionID)
			}
			return fmt.Errorf("failed to load workflow transaction: %w", err)
		}

		// Fast-path check; the authoritative guard is the conditional update below.
		if txn.ApproveStatus != model.ApprovalPending {
			return ErrAlreadyProcessed
		}

		initiative, err := s.initiativeRepo.GetByID(txCtx, txn.InitiativeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: initiative %s", ErrNotFound, txn.InitiativeID)
			}
			return fmt.Errorf("failed to load initiative: %w", err)
		}

		if !isAuthorizedActor(actor, txn, initiative) {
			return ErrUnauthorized
		}

		if strings.TrimSpace(req.Comment) == "" {
			return ErrCommentRequired
		}

		stageDef, ok := model.StageDefinitionFor(txn.StageNumber)
		if !ok {
			return fmt.Errorf("%w: stage %d", ErrNotFound, txn.StageNumber)
		}

		fields := repository.FinalizeFields{
			ActionBy:   actor.ID,
			ActionDate: time.Now(),
			Comment:    strings.TrimSpace(req.Comment),
		}

		switch req.Action {
		case model.WorkflowActionApprove:
			if err := s.validateApproveGate(txCtx, initiative, txn.StageNumber, req.Payload, &fields); err != nil {
				return err
			}
			fields.ApproveStatus = model.ApprovalApproved
		case model.WorkflowActionReject:
			if !stageDef.AllowReject {
				return fmt.Errorf("%w: reject is not available at stage %d", ErrInvalidPayload, txn.StageNumber)
			}
			fields.ApproveStatus = model.ApprovalRejected
		case model.WorkflowActionDrop:
			if !stageDef.AllowDrop {
				return fmt.Errorf("%w: drop is not available at stage %d", ErrInvalidPayload, txn.StageNumber)
			}
			fields.ApproveStatus = model.ApprovalDropped
		}

		// Compare-and-set finalize: exactly one of two concurrent calls wins.
		affected, err := s.workflowRepo.Finalize(txCtx, txn.ID, fields)
		if err != nil {
			return fmt.Errorf("failed to finalize transaction: %w", err)
		}
		if affected == 0 {
			return ErrAlreadyProcessed
		}

		switch req.Action {
		case model.WorkflowActionApprove:
			if err := s.advanceInitiative(txCtx, initiative, txn.StageNumber, req.Payload); err != nil {
				return err
			}
		case model.WorkflowActionReject:
			initiative.Status = model.InitiativeStatusRejected
			if err := s.initiativeRepo.Update(txCtx, initiative); err != nil {
				return fmt.Errorf("failed to update initiative: %w", err)
			}
		case model.WorkflowActionDrop:
			// "Return to pool for next fiscal year" — terminal for this instance.
			initiative.Status = model.InitiativeStatusDropped
			if err := s.initiativeRepo.Update(txCtx, initiative); err != nil {
				return fmt.Errorf("failed to update initiative: %w", err)
			}
		}

		if err := s.writeAudit(txCtx, actor, req.Action, initiative, txn.StageNumber, fields.Comment); err != nil {
			return err
		}

		finalized, err := s.workflowRepo.GetByID(txCtx, txn.ID)
		if err != nil {
			return fmt.Errorf("failed to reload transaction: %w", err)
		}

		result = &StageActionResult{
			Initiative:  toInitiativeResponse(initiative),
			Transaction: toTransactionResponse(*finalized),
		}
		event = ws.WorkflowEvent{
			Event:        "stage_" + fields.ApproveStatus,
			InitiativeID: initiative.ID.String(),
			Stage:        txn.StageNumber,
			Status:       initiative.Status,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.broadcast(event)
	return result, nil
}

// validateApproveGate runs the stage-specific precondition for an approve
// action and collects the payload echo into the finalize fields. Gate scans
// run inside the caller's transaction so they are consistent with the write.
func (s *workflowService) validateApproveGate(
	ctx context.Context,
	initiative *model.Initiative,
	stageNumber int,
	payload StageActionPayload,
	fields *repository.FinalizeFields,
) error {
	switch stageNumber {
	case model.StageDefineLead:
		if payload.AssignedUserID == nil {
			return fmt.Errorf("%w: assigned_user_id is required at stage %d", ErrInvalidPayload, stageNumber)
		}
		lead, err := s.userRepo.GetByID(ctx, *payload.AssignedUserID)
		if err != nil {
			return fmt.Errorf("%w: assigned user %s does not exist", ErrInvalidPayload, *payload.AssignedUserID)
		}
		if lead.Role != model.RoleInitiativeLead {
			return fmt.Errorf("%w: assigned user must hold the IL role", ErrInvalidPayload)
		}
		if lead.Site != initiative.Site {
			return fmt.Errorf("%w: assigned user must belong to site %s", ErrInvalidPayload, initiative.Site)
		}
		fields.AssignedUserID = payload.AssignedUserID

	case model.StageMocCapex:
		if err := validateDecision("requires_moc", payload.RequiresMoc, payload.MocNumber); err != nil {
			return err
		}
		if err := validateDecision("requires_capex", payload.RequiresCapex, payload.CapexNumber); err != nil {
			return err
		}
		fields.RequiresMoc = payload.RequiresMoc
		fields.MocNumber = strings.TrimSpace(payload.MocNumber)
		fields.RequiresCapex = payload.RequiresCapex
		fields.CapexNumber = strings.TrimSpace(payload.CapexNumber)

	case model.StageTimeline:
		notCompleted, err := s.timelineRepo.CountNotCompleted(ctx, initiative.ID)
		if err != nil {
			return fmt.Errorf("failed to check timeline gate: %w", err)
		}
		if notCompleted > 0 {
			return &GateError{StageNumber: stageNumber, Reason: fmt.Sprintf("%d timeline entries not completed", notCompleted)}
		}

	case model.StageSavingsMonitor:
		notFinalized, err := s.monitoringRepo.CountNotFinalized(ctx, initiative.ID)
		if err != nil {
			return fmt.Errorf("failed to check monitoring gate: %w", err)
		}
		if notFinalized > 0 {
			return &GateError{StageNumber: stageNumber, Reason: fmt.Sprintf("%d monitoring entries not finalized", notFinalized)}
		}

	case model.StageFAValidation:
		awaiting, err := s.monitoringRepo.CountAwaitingFAApproval(ctx, initiative.ID)
		if err != nil {
			return fmt.Errorf("failed to check F&A gate: %w", err)
		}
		if awaiting > 0 && len(payload.ApprovedEntryIDs) == 0 {
			return &GateError{
				StageNumber: stageNumber,
				Reason:      fmt.Sprintf("%d finalized monitoring entries await F&A approval and none were included", awaiting),
			}
		}
		if len(payload.ApprovedEntryIDs) > 0 {
			entries, err := s.monitoringRepo.GetByIDs(ctx, payload.ApprovedEntryIDs)
			if err != nil {
				return fmt.Errorf("failed to load monitoring entries: %w", err)
			}
			if len(entries) != len(payload.ApprovedEntryIDs) {
				return fmt.Errorf("%w: unknown monitoring entry in approval set", ErrInvalidPayload)
			}
			for _, e := range entries {
				if e.InitiativeID != initiative.ID {
					return fmt.Errorf("%w: monitoring entry %s belongs to another initiative", ErrInvalidPayload, e.ID)
				}
				if !e.IsFinalized {
					return fmt.Errorf("%w: monitoring entry %s is not finalized", ErrInvalidPayload, e.ID)
				}
			}
			if _, err := s.monitoringRepo.SetFAApproval(ctx, payload.ApprovedEntryIDs, payload.FAComments); err != nil {
				return fmt.Errorf("failed to record F&A approvals: %w", err)
			}
		}
	}

	return nil
}

// advanceInitiative applies the approve outcome to the aggregate: copies the
// stage payload onto the initiative, and either completes the workflow
// (stage 11) or creates the next pending transaction.
func (s *workflowService) advanceInitiative(ctx context.Context, initiative *model.Initiative, stageNumber int, payload StageActionPayload) error {
	switch stageNumber {
	case model.StageDefineLead:
		initiative.AssignedTo = payload.AssignedUserID
	case model.StageMocCapex:
		initiative.RequiresMoc = payload.RequiresMoc
		initiative.MocNumber = strings.TrimSpace(payload.MocNumber)
		initiative.RequiresCapex = payload.RequiresCapex
		initiative.CapexNumber = strings.TrimSpace(payload.CapexNumber)
	}

	if stageNumber == model.StageClosure {
		initiative.Status = model.InitiativeStatusCompleted
		initiative.CurrentStage = model.StageBeyondFinal
		if err := s.initiativeRepo.Update(ctx, initiative); err != nil {
			return fmt.Errorf("failed to complete initiative: %w", err)
		}
		return nil
	}

	next := stageNumber + 1
	nextDef, ok := model.StageDefinitionFor(next)
	if !ok {
		return fmt.Errorf("stage catalog has no definition for stage %d", next)
	}

	nextTxn := &model.WorkflowTransaction{
		InitiativeID:  initiative.ID,
		StageNumber:   next,
		StageName:     nextDef.Name,
		RequiredRole:  nextDef.RequiredRole,
		ApproveStatus: model.ApprovalPending,
		PendingWith:   resolveStageAssignee(ctx, s.userRepo, initiative, nextDef),
	}
	if err := s.workflowRepo.Create(ctx, nextTxn); err != nil {
		return fmt.Errorf("failed to create stage %d transaction: %w", next, err)
	}

	initiative.CurrentStage = next
	initiative.Status = statusForStage(next)
	if err := s.initiativeRepo.Update(ctx, initiative); err != nil {
		return fmt.Errorf("failed to advance initiative: %w", err)
	}
	return nil
}

// resolveStageAssignee determines the pendingWith identity for a newly
// entered stage: the assigned Initiative Lead for IL stages once stage 4 has
// bound one, otherwise the first user holding the stage's role at the
// initiative's site, falling back to the bare role code when no such user
// exists yet.
func resolveStageAssignee(ctx context.Context, users repository.UserRepository, initiative *model.Initiative, stageDef model.StageDefinition) string {
	if stageDef.RequiredRole == model.RoleInitiativeLead && initiative.AssignedTo != nil {
		if lead, err := users.GetByID(ctx, *initiative.AssignedTo); err == nil {
			return lead.Email
		}
	}
	if stageDef.RequiredRole == "" {
		return ""
	}
	if u, err := users.FirstByRoleAndSite(ctx, stageDef.RequiredRole, initiative.Site); err == nil {
		return u.Email
	}
	return stageDef.RequiredRole
}

func (s *workflowService) writeAudit(ctx context.Context, actor model.AuthenticatedActor, action string, initiative *model.Initiative, stageNumber int, comment string) error {
	auditAction := model.ActionApproveStage
	switch action {
	case model.WorkflowActionReject:
		auditAction = model.ActionRejectStage
	case model.WorkflowActionDrop:
		auditAction = model.ActionDropStage
	}

	details, _ := json.Marshal(map[string]interface{}{
		"stage":             stageNumber,
		"initiative_number": initiative.InitiativeNumber,
		"comment":           comment,
	})
	actorID := actor.ID
	audit := model.AuditLog{
		UserID:     &actorID,
		Action:     auditAction,
		EntityID:   initiative.ID.String(),
		EntityName: initiative.InitiativeNumber,
		Details:    string(details),
	}
	if err := repository.GetDB(ctx, s.db).Create(&audit).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *workflowService) broadcast(event ws.WorkflowEvent) {
	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case s.hub.Broadcast <- msg:
	default:
		// No listener draining the hub — drop rather than block the request.
	}
}

// --- Helpers ---

// isAuthorizedActor implements the authorization resolution: an email-bound
// pendingWith requires exact identity match; a role-code pendingWith falls
// back to the static role→stage map. Site must always match.
func isAuthorizedActor(actor model.AuthenticatedActor, txn *model.WorkflowTransaction, initiative *model.Initiative) bool {
	if actor.Site != initiative.Site {
		return false
	}
	if strings.Contains(txn.PendingWith, "@") {
		return strings.EqualFold(txn.PendingWith, actor.Email)
	}
	return model.RoleActsOnStage(actor.Role, txn.StageNumber)
}

func validateDecision(field, decision, number string) error {
	switch decision {
	case model.DecisionYes:
		if strings.TrimSpace(number) == "" {
			return fmt.Errorf("%w: %s number is required when %s is Y", ErrInvalidPayload, field, field)
		}
	case model.DecisionNo:
	default:
		return fmt.Errorf("%w: %s must be Y or N", ErrInvalidPayload, field)
	}
	return nil
}

func statusForStage(stageNumber int) string {
	if stageNumber <= model.StageHODEvaluation {
		return model.InitiativeStatusPending
	}
	return model.InitiativeStatusInProgress
}

func toTransactionResponse(t model.WorkflowTransaction) WorkflowTransactionResponse {
	resp := WorkflowTransactionResponse{
		ID:            t.ID.String(),
		InitiativeID:  t.InitiativeID.String(),
		StageNumber:   t.StageNumber,
		StageName:     t.StageName,
		RequiredRole:  t.RequiredRole,
		ApproveStatus: t.ApproveStatus,
		PendingWith:   t.PendingWith,
		Comment:       t.Comment,
		RequiresMoc:   t.RequiresMoc,
		MocNumber:     t.MocNumber,
		RequiresCapex: t.RequiresCapex,
		CapexNumber:   t.CapexNumber,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
	if t.ActionBy != nil {
		v := t.ActionBy.String()
		resp.ActionBy = &v
	}
	if t.Actor != nil {
		resp.ActorName = t.Actor.FullName
	}
	if t.ActionDate != nil {
		v := t.ActionDate.Format(time.RFC3339)
		resp.ActionDate = &v
	}
	if t.AssignedUserID != nil {
		v := t.AssignedUserID.String()
		resp.AssignedUserID = &v
	}
	return resp
}
