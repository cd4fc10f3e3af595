package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateMonitoringEntryRequest struct {
	KpiDescription  string          `json:"kpi_description" binding:"required"`
	MonitoringMonth string          `json:"monitoring_month" binding:"required"` // YYYY-MM
	Category        string          `json:"category"`
	TargetValue     decimal.Decimal `json:"target_value" binding:"required"`
	AchievedValue   decimal.Decimal `json:"achieved_value"`
}

type UpdateMonitoringEntryRequest struct {
	KpiDescription string           `json:"kpi_description"`
	Category       string           `json:"category"`
	TargetValue    *decimal.Decimal `json:"target_value"`
	AchievedValue  *decimal.Decimal `json:"achieved_value"`
}

type BatchApproveRequest struct {
	EntryIDs   []uuid.UUID `json:"entry_ids" binding:"required,min=1"`
	FAComments string      `json:"fa_comments"`
}

type MonitoringEntryResponse struct {
	ID                  string `json:"id"`
	InitiativeID        string `json:"initiative_id"`
	KpiDescription      string `json:"kpi_description"`
	MonitoringMonth     string `json:"monitoring_month"`
	Category            string `json:"category"`
	TargetValue         string `json:"target_value"`
	AchievedValue       string `json:"achieved_value"`
	Deviation           string `json:"deviation"`
	DeviationPercentage string `json:"deviation_percentage"`
	IsFinalized         bool   `json:"is_finalized"`
	FAApproval          bool   `json:"fa_approval"`
	FAComments          string `json:"fa_comments"`
}

// --- Interface ---

type MonitoringService interface {
	CreateEntry(ctx context.Context, actor model.AuthenticatedActor, initiativeID uuid.UUID, req CreateMonitoringEntryRequest) (*MonitoringEntryResponse, error)
	UpdateEntry(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID, req UpdateMonitoringEntryRequest) (*MonitoringEntryResponse, error)
	DeleteEntry(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID) error
	ListEntries(ctx context.Context, initiativeID uuid.UUID) ([]MonitoringEntryResponse, error)
	// SetFinalized flips an entry in or out of the finalized state. Only the
	// entering user, F&A, or an admin may do this; an F&A-approved entry can
	// no longer be un-finalized.
	SetFinalized(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID, finalized bool) (*MonitoringEntryResponse, error)
	// BatchApprove applies F&A approval to a set of finalized entries. It is
	// independent of the stage-10 workflow action so F&A can sign off entries
	// before approving the stage itself.
	BatchApprove(ctx context.Context, actor model.AuthenticatedActor, initiativeID uuid.UUID, req BatchApproveRequest) ([]MonitoringEntryResponse, error)
	// AreAllEntriesFinalized exposes the stage-9 gate for UI pre-validation.
	AreAllEntriesFinalized(ctx context.Context, initiativeID uuid.UUID) (bool, error)
}

type monitoringService struct {
	db             *gorm.DB
	txManager      repository.TransactionManager
	monitoringRepo repository.MonitoringRepository
	initiativeRepo repository.InitiativeRepository
}

func NewMonitoringService(
	db *gorm.DB,
	txManager repository.TransactionManager,
	monitoringRepo repository.MonitoringRepository,
	initiativeRepo repository.InitiativeRepository,
) MonitoringService {
	return &monitoringService{
		db:             db,
		txManager:      txManager,
		monitoringRepo: monitoringRepo,
		initiativeRepo: initiativeRepo,
	}
}

// --- Implementation ---

func (s *monitoringService) CreateEntry(ctx context.Context, actor model.AuthenticatedActor, initiativeID uuid.UUID, req CreateMonitoringEntryRequest) (*MonitoringEntryResponse, error) {
	initiative, err := s.loadInitiative(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	if initiative.CurrentStage != model.StageSavingsMonitor {
		return nil, fmt.Errorf("%w: monitoring entries can only be created while the initiative is at stage %d", ErrInvalidPayload, model.StageSavingsMonitor)
	}
	if !canManageDependentEntries(actor, initiative) {
		return nil, ErrUnauthorized
	}
	if !model.IsValidMonitoringMonth(req.MonitoringMonth) {
		return nil, fmt.Errorf("%w: monitoring_month must be YYYY-MM", ErrInvalidPayload)
	}

	actorID := actor.ID
	entry := &model.MonthlyMonitoringEntry{
		InitiativeID:    initiativeID,
		KpiDescription:  req.KpiDescription,
		MonitoringMonth: req.MonitoringMonth,
		Category:        req.Category,
		TargetValue:     req.TargetValue,
		AchievedValue:   req.AchievedValue,
		EnteredBy:       &actorID,
	}
	entry.RecalculateDeviation()

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.monitoringRepo.Create(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create monitoring entry: %w", err)
		}
		return s.writeAudit(txCtx, actor, model.ActionCreateMonitoringEntry, initiative, entry.ID, map[string]interface{}{
			"month": req.MonitoringMonth,
			"kpi":   req.KpiDescription,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toMonitoringResponse(*entry)
	return &resp, nil
}

func (s *monitoringService) UpdateEntry(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID, req UpdateMonitoringEntryRequest) (*MonitoringEntryResponse, error) {
	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	initiative, err := s.loadInitiative(ctx, entry.InitiativeID)
	if err != nil {
		return nil, err
	}
	if !canManageDependentEntries(actor, initiative) {
		return nil, ErrUnauthorized
	}
	if entry.IsFinalized {
		return nil, fmt.Errorf("%w: finalized entries are read-only", ErrInvalidPayload)
	}

	if req.KpiDescription != "" {
		entry.KpiDescription = req.KpiDescription
	}
	if req.Category != "" {
		entry.Category = req.Category
	}
	if req.TargetValue != nil {
		entry.TargetValue = *req.TargetValue
	}
	if req.AchievedValue != nil {
		entry.AchievedValue = *req.AchievedValue
	}
	entry.RecalculateDeviation()

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.monitoringRepo.Update(txCtx, entry); err != nil {
			return fmt.Errorf("failed to update monitoring entry: %w", err)
		}
		return s.writeAudit(txCtx, actor, model.ActionUpdateMonitoringEntry, initiative, entry.ID, map[string]interface{}{
			"month": entry.MonitoringMonth,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toMonitoringResponse(*entry)
	return &resp, nil
}

func (s *monitoringService) DeleteEntry(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID) error {
	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return err
	}
	initiative, err := s.loadInitiative(ctx, entry.InitiativeID)
	if err != nil {
		return err
	}
	if !canManageDependentEntries(actor, initiative) {
		return ErrUnauthorized
	}
	if entry.IsFinalized {
		return fmt.Errorf("%w: finalized entries cannot be deleted", ErrInvalidPayload)
	}
	return s.monitoringRepo.Delete(ctx, id)
}

func (s *monitoringService) ListEntries(ctx context.Context, initiativeID uuid.UUID) ([]MonitoringEntryResponse, error) {
	entries, err := s.monitoringRepo.GetByInitiative(ctx, initiativeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch monitoring entries: %w", err)
	}
	result := make([]MonitoringEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, toMonitoringResponse(e))
	}
	return result, nil
}

func (s *monitoringService) SetFinalized(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID, finalized bool) (*MonitoringEntryResponse, error) {
	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	initiative, err := s.loadInitiative(ctx, entry.InitiativeID)
	if err != nil {
		return nil, err
	}
	if !canFinalizeEntry(actor, entry) {
		return nil, ErrUnauthorized
	}
	if !finalized && entry.FAApproval {
		return nil, fmt.Errorf("%w: F&A-approved entries cannot be un-finalized", ErrInvalidPayload)
	}
	if entry.IsFinalized == finalized {
		resp := toMonitoringResponse(*entry)
		return &resp, nil
	}

	entry.IsFinalized = finalized
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.monitoringRepo.Update(txCtx, entry); err != nil {
			return fmt.Errorf("failed to update monitoring entry: %w", err)
		}
		return s.writeAudit(txCtx, actor, model.ActionFinalizeMonitoringEntry, initiative, entry.ID, map[string]interface{}{
			"month":     entry.MonitoringMonth,
			"finalized": finalized,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toMonitoringResponse(*entry)
	return &resp, nil
}

func (s *monitoringService) BatchApprove(ctx context.Context, actor model.AuthenticatedActor, initiativeID uuid.UUID, req BatchApproveRequest) ([]MonitoringEntryResponse, error) {
	if actor.Role != model.RoleFinance && actor.Role != model.RoleAdmin {
		return nil, ErrUnauthorized
	}
	initiative, err := s.loadInitiative(ctx, initiativeID)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := s.monitoringRepo.GetByIDs(txCtx, req.EntryIDs)
		if err != nil {
			return fmt.Errorf("failed to fetch monitoring entries: %w", err)
		}
		if len(entries) != len(req.EntryIDs) {
			return fmt.Errorf("%w: one or more monitoring entries do not exist", ErrInvalidPayload)
		}
		for _, e := range entries {
			if e.InitiativeID != initiativeID {
				return fmt.Errorf("%w: entry %s does not belong to this initiative", ErrInvalidPayload, e.ID)
			}
			if !e.IsFinalized {
				return fmt.Errorf("%w: entry %s is not finalized", ErrInvalidPayload, e.ID)
			}
		}
		if _, err := s.monitoringRepo.SetFAApproval(txCtx, req.EntryIDs, req.FAComments); err != nil {
			return fmt.Errorf("failed to apply F&A approval: %w", err)
		}
		return s.writeAudit(txCtx, actor, model.ActionBatchApproveMonitoring, initiative, initiativeID, map[string]interface{}{
			"approved_count": len(req.EntryIDs),
		})
	})
	if err != nil {
		return nil, err
	}

	entries, err := s.monitoringRepo.GetByIDs(ctx, req.EntryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to reload monitoring entries: %w", err)
	}
	result := make([]MonitoringEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, toMonitoringResponse(e))
	}
	return result, nil
}

func (s *monitoringService) AreAllEntriesFinalized(ctx context.Context, initiativeID uuid.UUID) (bool, error) {
	notFinalized, err := s.monitoringRepo.CountNotFinalized(ctx, initiativeID)
	if err != nil {
		return false, err
	}
	return notFinalized == 0, nil
}

func (s *monitoringService) loadEntry(ctx context.Context, id uuid.UUID) (*model.MonthlyMonitoringEntry, error) {
	entry, err := s.monitoringRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: monitoring entry %s", ErrNotFound, id)
		}
		return nil, err
	}
	return entry, nil
}

func (s *monitoringService) loadInitiative(ctx context.Context, id uuid.UUID) (*model.Initiative, error) {
	initiative, err := s.initiativeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: initiative %s", ErrNotFound, id)
		}
		return nil, err
	}
	return initiative, nil
}

func (s *monitoringService) writeAudit(ctx context.Context, actor model.AuthenticatedActor, action string, initiative *model.Initiative, entityID uuid.UUID, detail map[string]interface{}) error {
	detail["initiative_number"] = initiative.InitiativeNumber
	details, _ := json.Marshal(detail)
	actorID := actor.ID
	audit := model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   entityID.String(),
		EntityName: initiative.InitiativeNumber,
		Details:    string(details),
	}
	if err := repository.GetDB(ctx, s.db).Create(&audit).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// --- Helpers ---

func canFinalizeEntry(actor model.AuthenticatedActor, entry *model.MonthlyMonitoringEntry) bool {
	if actor.Role == model.RoleAdmin || actor.Role == model.RoleFinance {
		return true
	}
	return entry.EnteredBy != nil && *entry.EnteredBy == actor.ID
}

func toMonitoringResponse(e model.MonthlyMonitoringEntry) MonitoringEntryResponse {
	return MonitoringEntryResponse{
		ID:                  e.ID.String(),
		InitiativeID:        e.InitiativeID.String(),
		KpiDescription:      e.KpiDescription,
		MonitoringMonth:     e.MonitoringMonth,
		Category:            e.Category,
		TargetValue:         e.TargetValue.StringFixed(2),
		AchievedValue:       e.AchievedValue.StringFixed(2),
		Deviation:           e.Deviation.StringFixed(2),
		DeviationPercentage: e.DeviationPercentage.StringFixed(2),
		IsFinalized:         e.IsFinalized,
		FAApproval:          e.FAApproval,
		FAComments:          e.FAComments,
	}
}
