package repository

import (
	"context"
	"time"

	"github.com/dgappsadmin/OpEx-Main-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FinalizeFields carries the terminal values written onto a pending
// transaction by the one allowed mutation.
type FinalizeFields struct {
	ApproveStatus  string
	ActionBy       uuid.UUID
	ActionDate     time.Time
	Comment        string
	AssignedUserID *uuid.UUID
	RequiresMoc    string
	MocNumber      string
	RequiresCapex  string
	CapexNumber    string
}

// WorkflowTransactionRepository defines data access for workflow transactions.
type WorkflowTransactionRepository interface {
	Create(ctx context.Context, txn *model.WorkflowTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.WorkflowTransaction, error)
	GetByInitiative(ctx context.Context, initiativeID uuid.UUID) ([]model.WorkflowTransaction, error)
	GetPendingByInitiative(ctx context.Context, initiativeID uuid.UUID) (*model.WorkflowTransaction, error)
	// Finalize performs the compare-and-set mutation pending → terminal.
	// It returns the number of rows affected: 0 means the transaction was
	// already finalized by a concurrent call.
	Finalize(ctx context.Context, id uuid.UUID, fields FinalizeFields) (int64, error)
}

type workflowTransactionRepository struct {
	db *gorm.DB
}

func NewWorkflowTransactionRepository(db *gorm.DB) WorkflowTransactionRepository {
	return &workflowTransactionRepository{db: db}
}

func (r *workflowTransactionRepository) Create(ctx context.Context, txn *model.WorkflowTransaction) error {
	return GetDB(ctx, r.db).Create(txn).Error
}

func (r *workflowTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.WorkflowTransaction, error) {
	var txn model.WorkflowTransaction
	if err := GetDB(ctx, r.db).Preload("Actor").First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *workflowTransactionRepository) GetByInitiative(ctx context.Context, initiativeID uuid.UUID) ([]model.WorkflowTransaction, error) {
	var txns []model.WorkflowTransaction
	if err := GetDB(ctx, r.db).
		Preload("Actor").
		Where("initiative_id = ?", initiativeID).
		Order("stage_number").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *workflowTransactionRepository) GetPendingByInitiative(ctx context.Context, initiativeID uuid.UUID) (*model.WorkflowTransaction, error) {
	var txn model.WorkflowTransaction
	if err := GetDB(ctx, r.db).
		Where("initiative_id = ? AND approve_status = ?", initiativeID, model.ApprovalPending).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// Finalize writes the terminal fields with a conditional update guarded on
// approve_status = 'pending'. Two concurrent finalize calls therefore result
// in exactly one row affected for one caller and zero for the other.
func (r *workflowTransactionRepository) Finalize(ctx context.Context, id uuid.UUID, fields FinalizeFields) (int64, error) {
	updates := map[string]interface{}{
		"approve_status": fields.ApproveStatus,
		"action_by":      fields.ActionBy,
		"action_date":    fields.ActionDate,
		"comment":        fields.Comment,
	}
	if fields.AssignedUserID != nil {
		updates["assigned_user_id"] = *fields.AssignedUserID
	}
	if fields.RequiresMoc != "" {
		updates["requires_moc"] = fields.RequiresMoc
		updates["moc_number"] = fields.MocNumber
		updates["requires_capex"] = fields.RequiresCapex
		updates["capex_number"] = fields.CapexNumber
	}

	result := GetDB(ctx, r.db).
		Model(&model.WorkflowTransaction{}).
		Where("id = ? AND approve_status = ?", id, model.ApprovalPending).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
