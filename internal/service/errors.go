package service

import (
	"errors"
	"fmt"
)

// Workflow engine error kinds. Handlers map these to HTTP statuses with
// errors.Is / errors.As; the engine never panics or retries on its own.
var (
	// ErrNotFound is returned when an initiative, transaction, or entry does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProcessed is returned when the pending transaction was already
	// finalized — including the losing side of two concurrent approvals
	ErrAlreadyProcessed = errors.New("transaction already processed")

	// ErrUnauthorized is returned when the actor fails identity/role/site resolution
	ErrUnauthorized = errors.New("actor not authorized for this transaction")

	// ErrCommentRequired is returned when an action is submitted without a non-blank comment
	ErrCommentRequired = errors.New("comment is required")

	// ErrInvalidPayload is returned when stage-specific payload fields are missing or malformed
	ErrInvalidPayload = errors.New("invalid stage payload")
)

// GateError reports a stage-specific precondition that is not met. The reason
// names the unmet gate so callers can complete the missing dependent work and
// resubmit.
type GateError struct {
	StageNumber int
	Reason      string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("stage %d validation gate failed: %s", e.StageNumber, e.Reason)
}
