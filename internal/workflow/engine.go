package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// AutoSkipComment is recorded when the requester's own approval step is
// passed through.
const AutoSkipComment = "Automatically skipped"

// ActionReject is the transaction action recorded for a rejection.
const ActionReject = "Reject"

// Engine applies workflow and cost-deliberation transitions to a request in
// memory. It performs no IO; persistence and serialization belong to the
// caller.
type Engine struct {
	Now   func() time.Time
	NewID func() string
}

// New returns an engine using the wall clock and random ids.
func New() Engine {
	return Engine{
		Now:   time.Now,
		NewID: func() string { return uuid.NewString() },
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// NewRequest is the payload of a maintenance request submission.
type NewRequest struct {
	VehicleID     string
	Description   string
	Priority      string
	EstimatedCost float64
}

// CreateRequest builds a Pending request at the first stage.
func (e Engine) CreateRequest(in NewRequest, actor Actor, route []models.RouteStep) (*models.MaintenanceRequest, error) {
	const op = "create request"
	if strings.TrimSpace(in.VehicleID) == "" {
		return nil, invalidArgument(op, "vehicle_id is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, invalidArgument(op, "description is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !models.IsValidPriority(in.Priority) {
		return nil, invalidArgument(op, "invalid priority %q", in.Priority)
	}
	if in.EstimatedCost < 0 {
		return nil, invalidArgument(op, "estimated_cost must not be negative")
	}
	if actor.ID == "" {
		return nil, unauthorized(op, "requester identity is required")
	}
	now := e.now()
	return &models.MaintenanceRequest{
		ID:            e.newID(),
		VehicleID:     in.VehicleID,
		RequesterID:   actor.ID,
		RequesterName: actor.displayName(),
		Description:   in.Description,
		Priority:      in.Priority,
		CurrentStage:  models.Pipeline[0],
		Status:        models.StatusPending,
		EstimatedCost: in.EstimatedCost,
		Route:         route,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ProcessStage advances the request by one stage on behalf of actor and
// returns the recorded transaction.
func (e Engine) ProcessStage(req *models.MaintenanceRequest, actor Actor, comments string) (models.Transaction, error) {
	const op = "process stage"
	if req.IsTerminal() || req.Status != models.StatusPending || req.CurrentStage == models.StageComplete {
		return models.Transaction{}, conflict(op, "request %s is %s at stage %s", req.ID, req.Status, req.CurrentStage)
	}
	if req.CurrentStage == models.StageReview && !CanProcessReview(req) {
		return models.Transaction{}, newError(KindPreconditionFailed, op, MsgDeliberationIncomplete)
	}
	tx := models.Transaction{
		ID:        e.newID(),
		ActorID:   actor.ID,
		ActorName: actor.displayName(),
		Action:    string(req.CurrentStage),
		Comments:  comments,
		Timestamp: e.now(),
	}
	switch {
	case ShouldAutoSkip(req, actor.ID):
		tx.Comments = AutoSkipComment
		tx.AutoSkipped = true
	case !CanAct(req, actor.ID):
		return models.Transaction{}, unauthorized(op, "user %s may not act on stage %s", actor.ID, req.CurrentStage)
	}
	req.Transactions = append(req.Transactions, tx)
	next := nextStage(req.CurrentStage)
	req.CurrentStage = next
	if next == models.StageComplete {
		req.Status = models.StatusApproved
	}
	return tx, nil
}

// Reject ends the request. Any user who may act on the current stage may
// reject at that stage.
func (e Engine) Reject(req *models.MaintenanceRequest, actor Actor, reason string) (models.Transaction, error) {
	const op = "reject request"
	if strings.TrimSpace(reason) == "" {
		return models.Transaction{}, invalidArgument(op, "reason is required")
	}
	if req.IsTerminal() || req.Status != models.StatusPending || req.CurrentStage == models.StageComplete {
		return models.Transaction{}, conflict(op, "request %s is %s at stage %s", req.ID, req.Status, req.CurrentStage)
	}
	if !CanAct(req, actor.ID) {
		return models.Transaction{}, unauthorized(op, "user %s may not act on stage %s", actor.ID, req.CurrentStage)
	}
	tx := models.Transaction{
		ID:        e.newID(),
		ActorID:   actor.ID,
		ActorName: actor.displayName(),
		Action:    ActionReject,
		Comments:  reason,
		Timestamp: e.now(),
	}
	req.Transactions = append(req.Transactions, tx)
	req.Status = models.StatusRejected
	req.RejectionReason = reason
	return tx, nil
}

// StartWork moves an approved request into progress.
func (e Engine) StartWork(req *models.MaintenanceRequest, actor Actor, comments string) error {
	const op = "start work"
	if !models.RoleHasPermission(actor.Role, models.ActionManageWork) {
		return unauthorized(op, "user %s may not manage work", actor.ID)
	}
	if req.Status != models.StatusApproved {
		return conflict(op, "request %s is %s", req.ID, req.Status)
	}
	req.Status = models.StatusInProgress
	e.appendNote(req, actor, "StartWork", comments)
	return nil
}

// CompleteWork closes a request whose work is in progress.
func (e Engine) CompleteWork(req *models.MaintenanceRequest, actor Actor, comments string) error {
	const op = "complete work"
	if !models.RoleHasPermission(actor.Role, models.ActionManageWork) {
		return unauthorized(op, "user %s may not manage work", actor.ID)
	}
	if req.Status != models.StatusInProgress {
		return conflict(op, "request %s is %s", req.ID, req.Status)
	}
	req.Status = models.StatusCompleted
	e.appendNote(req, actor, "CompleteWork", comments)
	return nil
}

func (e Engine) appendNote(req *models.MaintenanceRequest, actor Actor, action, comments string) {
	req.Transactions = append(req.Transactions, models.Transaction{
		ID:        e.newID(),
		ActorID:   actor.ID,
		ActorName: actor.displayName(),
		Action:    action,
		Comments:  comments,
		Timestamp: e.now(),
	})
}

func nextStage(s models.Stage) models.Stage {
	for i, stage := range models.Pipeline {
		if stage == s && i+1 < len(models.Pipeline) {
			return models.Pipeline[i+1]
		}
	}
	return models.StageComplete
}
