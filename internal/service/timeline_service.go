package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// --- DTOs ---

type CreateTimelineEntryRequest struct {
	ActivityName      string `json:"activity_name" binding:"required"`
	PlannedStartDate  string `json:"planned_start_date" binding:"required"` // YYYY-MM-DD
	PlannedEndDate    string `json:"planned_end_date" binding:"required"`
	ResponsiblePerson string `json:"responsible_person"`
	Remarks           string `json:"remarks"`
}

type UpdateTimelineEntryRequest struct {
	ActivityName      string `json:"activity_name"`
	PlannedStartDate  string `json:"planned_start_date"`
	PlannedEndDate    string `json:"planned_end_date"`
	ActualStartDate   string `json:"actual_start_date"`
	ActualEndDate     string `json:"actual_end_date"`
	Status            string `json:"status"`
	ResponsiblePerson string `json:"responsible_person"`
	Remarks           string `json:"remarks"`
	SiteLeadApproval  *bool  `json:"site_lead_approval"`
	InitLeadApproval  *bool  `json:"initiative_lead_approval"`
}

type TimelineEntryResponse struct {
	ID                     string  `json:"id"`
	InitiativeID           string  `json:"initiative_id"`
	ActivityName           string  `json:"activity_name"`
	PlannedStartDate       string  `json:"planned_start_date"`
	PlannedEndDate         string  `json:"planned_end_date"`
	ActualStartDate        *string `json:"actual_start_date"`
	ActualEndDate          *string `json:"actual_end_date"`
	Status                 string  `json:"status"`
	ResponsiblePerson      string  `json:"responsible_person"`
	Remarks                string  `json:"remarks"`
	SiteLeadApproval       bool    `json:"site_lead_approval"`
	InitiativeLeadApproval bool    `json:"initiative_lead_approval"`
}

// --- Interface ---

type TimelineService interface {
	CreateEntry(ctx context.Context, actor model.AuthenticatedActor, initiativeID uuid.UUID, req CreateTimelineEntryRequest) (*TimelineEntryResponse, error)
	UpdateEntry(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID, req UpdateTimelineEntryRequest) (*TimelineEntryResponse, error)
	DeleteEntry(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID) error
	ListEntries(ctx context.Context, initiativeID uuid.UUID) ([]TimelineEntryResponse, error)
	// AreAllEntriesCompleted exposes the stage-6 gate for UI pre-validation.
	AreAllEntriesCompleted(ctx context.Context, initiativeID uuid.UUID) (bool, error)
}

type timelineService struct {
	db             *gorm.DB
	txManager      repository.TransactionManager
	timelineRepo   repository.TimelineRepository
	initiativeRepo repository.InitiativeRepository
}

func NewTimelineService(
	db *gorm.DB,
	txManager repository.TransactionManager,
	timelineRepo repository.TimelineRepository,
	initiativeRepo repository.InitiativeRepository,
) TimelineService {
	return &timelineService{
		db:             db,
		txManager:      txManager,
		timelineRepo:   timelineRepo,
		initiativeRepo: initiativeRepo,
	}
}

// --- Implementation ---

func (s *timelineService) CreateEntry(ctx context.Context, actor model.AuthenticatedActor, initiativeID uuid.UUID, req CreateTimelineEntryRequest) (*TimelineEntryResponse, error) {
	initiative, err := s.loadInitiative(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	if initiative.CurrentStage != model.StageTimeline {
		return nil, fmt.Errorf("%w: timeline entries can only be created while the initiative is at stage %d", ErrInvalidPayload, model.StageTimeline)
	}
	if !canManageDependentEntries(actor, initiative) {
		return nil, ErrUnauthorized
	}

	start, err := time.Parse(dateLayout, req.PlannedStartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: planned_start_date must be YYYY-MM-DD", ErrInvalidPayload)
	}
	end, err := time.Parse(dateLayout, req.PlannedEndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: planned_end_date must be YYYY-MM-DD", ErrInvalidPayload)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: planned_end_date precedes planned_start_date", ErrInvalidPayload)
	}

	actorID := actor.ID
	entry := &model.TimelineEntry{
		InitiativeID:      initiativeID,
		ActivityName:      req.ActivityName,
		PlannedStartDate:  start,
		PlannedEndDate:    end,
		Status:            model.TimelineStatusPending,
		ResponsiblePerson: req.ResponsiblePerson,
		Remarks:           req.Remarks,
		CreatedBy:         &actorID,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.timelineRepo.Create(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create timeline entry: %w", err)
		}
		return s.writeAudit(txCtx, actor, model.ActionCreateTimelineEntry, initiative, entry.ID, map[string]interface{}{
			"activity": req.ActivityName,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toTimelineResponse(*entry)
	return &resp, nil
}

func (s *timelineService) UpdateEntry(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID, req UpdateTimelineEntryRequest) (*TimelineEntryResponse, error) {
	entry, err := s.timelineRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: timeline entry %s", ErrNotFound, id)
		}
		return nil, err
	}

	initiative, err := s.loadInitiative(ctx, entry.InitiativeID)
	if err != nil {
		return nil, err
	}
	// Entries become read-only once stage 6 is approved.
	if initiative.CurrentStage != model.StageTimeline {
		return nil, fmt.Errorf("%w: timeline entries are locked once stage %d is approved", ErrInvalidPayload, model.StageTimeline)
	}
	if !canManageDependentEntries(actor, initiative) {
		return nil, ErrUnauthorized
	}

	if req.ActivityName != "" {
		entry.ActivityName = req.ActivityName
	}
	if req.PlannedStartDate != "" {
		v, err := time.Parse(dateLayout, req.PlannedStartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: planned_start_date must be YYYY-MM-DD", ErrInvalidPayload)
		}
		entry.PlannedStartDate = v
	}
	if req.PlannedEndDate != "" {
		v, err := time.Parse(dateLayout, req.PlannedEndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: planned_end_date must be YYYY-MM-DD", ErrInvalidPayload)
		}
		entry.PlannedEndDate = v
	}
	if req.ActualStartDate != "" {
		v, err := time.Parse(dateLayout, req.ActualStartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: actual_start_date must be YYYY-MM-DD", ErrInvalidPayload)
		}
		entry.ActualStartDate = &v
	}
	if req.ActualEndDate != "" {
		v, err := time.Parse(dateLayout, req.ActualEndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: actual_end_date must be YYYY-MM-DD", ErrInvalidPayload)
		}
		entry.ActualEndDate = &v
	}
	if req.Status != "" {
		if !model.IsValidTimelineStatus(req.Status) {
			return nil, fmt.Errorf("%w: unknown timeline status %q", ErrInvalidPayload, req.Status)
		}
		entry.Status = req.Status
	}
	if req.ResponsiblePerson != "" {
		entry.ResponsiblePerson = req.ResponsiblePerson
	}
	if req.Remarks != "" {
		entry.Remarks = req.Remarks
	}
	if req.SiteLeadApproval != nil {
		entry.SiteLeadApproval = *req.SiteLeadApproval
	}
	if req.InitLeadApproval != nil {
		entry.InitiativeLeadApproval = *req.InitLeadApproval
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.timelineRepo.Update(txCtx, entry); err != nil {
			return fmt.Errorf("failed to update timeline entry: %w", err)
		}
		return s.writeAudit(txCtx, actor, model.ActionUpdateTimelineEntry, initiative, entry.ID, map[string]interface{}{
			"activity": entry.ActivityName,
			"status":   entry.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toTimelineResponse(*entry)
	return &resp, nil
}

func (s *timelineService) DeleteEntry(ctx context.Context, actor model.AuthenticatedActor, id uuid.UUID) error {
	entry, err := s.timelineRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: timeline entry %s", ErrNotFound, id)
		}
		return err
	}
	initiative, err := s.loadInitiative(ctx, entry.InitiativeID)
	if err != nil {
		return err
	}
	if initiative.CurrentStage != model.StageTimeline {
		return fmt.Errorf("%w: timeline entries are locked once stage %d is approved", ErrInvalidPayload, model.StageTimeline)
	}
	if !canManageDependentEntries(actor, initiative) {
		return ErrUnauthorized
	}
	return s.timelineRepo.Delete(ctx, id)
}

func (s *timelineService) ListEntries(ctx context.Context, initiativeID uuid.UUID) ([]TimelineEntryResponse, error) {
	entries, err := s.timelineRepo.GetByInitiative(ctx, initiativeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch timeline entries: %w", err)
	}
	result := make([]TimelineEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, toTimelineResponse(e))
	}
	return result, nil
}

func (s *timelineService) AreAllEntriesCompleted(ctx context.Context, initiativeID uuid.UUID) (bool, error) {
	notCompleted, err := s.timelineRepo.CountNotCompleted(ctx, initiativeID)
	if err != nil {
		return false, err
	}
	return notCompleted == 0, nil
}

func (s *timelineService) loadInitiative(ctx context.Context, id uuid.UUID) (*model.Initiative, error) {
	initiative, err := s.initiativeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: initiative %s", ErrNotFound, id)
		}
		return nil, err
	}
	return initiative, nil
}

func (s *timelineService) writeAudit(ctx context.Context, actor model.AuthenticatedActor, action string, initiative *model.Initiative, entityID uuid.UUID, detail map[string]interface{}) error {
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

// canManageDependentEntries authorizes timeline/monitoring mutations: the
// assigned Initiative Lead, the Site TSD Lead of the initiative's site, or an
// admin.
func canManageDependentEntries(actor model.AuthenticatedActor, initiative *model.Initiative) bool {
	if actor.Role == model.RoleAdmin {
		return true
	}
	if actor.Site != initiative.Site {
		return false
	}
	if initiative.AssignedTo != nil && *initiative.AssignedTo == actor.ID {
		return true
	}
	return actor.Role == model.RoleSiteTSDLead
}

func toTimelineResponse(e model.TimelineEntry) TimelineEntryResponse {
	resp := TimelineEntryResponse{
		ID:                     e.ID.String(),
		InitiativeID:           e.InitiativeID.String(),
		ActivityName:           e.ActivityName,
		PlannedStartDate:       e.PlannedStartDate.Format(dateLayout),
		PlannedEndDate:         e.PlannedEndDate.Format(dateLayout),
		Status:                 e.Status,
		ResponsiblePerson:      e.ResponsiblePerson,
		Remarks:                e.Remarks,
		SiteLeadApproval:       e.SiteLeadApproval,
		InitiativeLeadApproval: e.InitiativeLeadApproval,
	}
	if e.ActualStartDate != nil {
		v := e.ActualStartDate.Format(dateLayout)
		resp.ActualStartDate = &v
	}
	if e.ActualEndDate != nil {
		v := e.ActualEndDate.Format(dateLayout)
		resp.ActualEndDate = &v
	}
	return resp
}
