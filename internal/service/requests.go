package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/workflow"
)

// RequestView is a request as returned to callers. CostDeliberationStatus is
// derived from the embedded deliberation on every read and never stored.
type RequestView struct {
	*models.MaintenanceRequest
	CostDeliberationStatus *models.DeliberationStatus `json:"cost_deliberation_status,omitempty"`
}

func viewOf(req *models.MaintenanceRequest, actor workflow.Actor) *RequestView {
	return &RequestView{
		MaintenanceRequest:     redact(req, actor),
		CostDeliberationStatus: workflow.RequestDeliberationStatus(req),
	}
}

// CreateRequest resolves the stage route from the current users and stores
// a new Pending request.
func (s *MaintenanceService) CreateRequest(ctx context.Context, actor workflow.Actor, in workflow.NewRequest) (*RequestView, error) {
	const op = "create request"
	if err := requirePermission(op, actor, models.ActionCreateMaintenance); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	users, err := s.store.FindUsers(ctx, db.UserFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	route, err := workflow.BuildRoute(s.routes, users)
	if err != nil {
		return nil, workflow.PreconditionFailedf(op, "%v", err)
	}
	req, err := s.engine.CreateRequest(in, actor, route)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.WithFields(log.Fields{
		"request_id": req.ID,
		"vehicle_id": req.VehicleID,
		"actor_id":   actor.ID,
		"priority":   req.Priority,
	}).Info("Maintenance request created")

	s.publish(ctx, []events.Event{s.event(events.RequestCreated, req, actor, map[string]any{
		"vehicle_id": req.VehicleID,
		"priority":   req.Priority,
	})})
	return viewOf(req, actor), nil
}

// GetRequest returns a request as actor may see it.
func (s *MaintenanceService) GetRequest(ctx context.Context, actor workflow.Actor, id string) (*RequestView, error) {
	const op = "get request"
	if err := requirePermission(op, actor, models.ActionViewMaintenance); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	return viewOf(req, actor), nil
}

// ListRequests lists requests matching filter.
func (s *MaintenanceService) ListRequests(ctx context.Context, actor workflow.Actor, filter db.RequestFilter) ([]RequestView, error) {
	const op = "list requests"
	if err := requirePermission(op, actor, models.ActionViewMaintenance); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reqs, err := s.store.FindRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	views := make([]RequestView, 0, len(reqs))
	for i := range reqs {
		views = append(views, *viewOf(&reqs[i], actor))
	}
	return views, nil
}

// redact hides other mechanics' proposals and offers from a mechanic.
func redact(req *models.MaintenanceRequest, actor workflow.Actor) *models.MaintenanceRequest {
	if actor.Role != models.RoleMechanic || req.Deliberation == nil {
		return req
	}
	out := *req
	d := *req.Deliberation
	d.Proposals = workflow.Proposals(req, actor, "")
	d.AcceptedOffers = ownOffers(d.AcceptedOffers, actor.ID)
	out.Deliberation = &d
	return &out
}

func ownOffers(offers []models.AcceptedOffer, mechanicID string) []models.AcceptedOffer {
	out := []models.AcceptedOffer{}
	for _, o := range offers {
		if o.MechanicID == mechanicID {
			out = append(out, o)
		}
	}
	return out
}

// ProcessStage advances the request by one stage.
func (s *MaintenanceService) ProcessStage(ctx context.Context, actor workflow.Actor, id, comments string) (*RequestView, models.Transaction, error) {
	var tx models.Transaction
	req, err := s.mutate(ctx, "process stage", id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		from := req.CurrentStage
		var err error
		tx, err = s.engine.ProcessStage(req, actor, comments)
		if err != nil {
			return nil, err
		}
		return []events.Event{s.event(events.StageProcessed, req, actor, map[string]any{
			"from_stage":   from,
			"to_stage":     req.CurrentStage,
			"status":       req.Status,
			"auto_skipped": tx.AutoSkipped,
		})}, nil
	})
	if err != nil {
		return nil, models.Transaction{}, err
	}
	return viewOf(req, actor), tx, nil
}

// ReviewGate reports whether the Review stage may be processed.
type ReviewGate struct {
	CanProcess         bool                       `json:"can_process"`
	CurrentStage       models.Stage               `json:"current_stage"`
	DeliberationStatus *models.DeliberationStatus `json:"deliberation_status"`
}

// CanProcessReview evaluates the review gate without changing anything.
func (s *MaintenanceService) CanProcessReview(ctx context.Context, actor workflow.Actor, id string) (ReviewGate, error) {
	const op = "can process review"
	if err := requirePermission(op, actor, models.ActionViewMaintenance); err != nil {
		return ReviewGate{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := s.load(ctx, op, id)
	if err != nil {
		return ReviewGate{}, err
	}
	return ReviewGate{
		CanProcess:         workflow.CanProcessReview(req),
		CurrentStage:       req.CurrentStage,
		DeliberationStatus: workflow.RequestDeliberationStatus(req),
	}, nil
}

// Reject ends the request with a reason.
func (s *MaintenanceService) Reject(ctx context.Context, actor workflow.Actor, id, reason string) (*RequestView, error) {
	return s.viewMutate(ctx, "reject request", id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		if _, err := s.engine.Reject(req, actor, reason); err != nil {
			return nil, err
		}
		return []events.Event{s.event(events.RequestRejected, req, actor, map[string]any{
			"stage":  req.CurrentStage,
			"reason": reason,
		})}, nil
	})
}

// StartWork moves an approved request into progress.
func (s *MaintenanceService) StartWork(ctx context.Context, actor workflow.Actor, id, comments string) (*RequestView, error) {
	return s.viewMutate(ctx, "start work", id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		if err := s.engine.StartWork(req, actor, comments); err != nil {
			return nil, err
		}
		return []events.Event{s.event(events.WorkStarted, req, actor, nil)}, nil
	})
}

// CompleteWork closes a request whose work is in progress.
func (s *MaintenanceService) CompleteWork(ctx context.Context, actor workflow.Actor, id, comments string) (*RequestView, error) {
	return s.viewMutate(ctx, "complete work", id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		if err := s.engine.CompleteWork(req, actor, comments); err != nil {
			return nil, err
		}
		payload := map[string]any{}
		if req.FinalCost != nil {
			payload["final_cost"] = *req.FinalCost
		}
		return []events.Event{s.event(events.WorkCompleted, req, actor, payload)}, nil
	})
}

func (s *MaintenanceService) viewMutate(ctx context.Context, op, id string, actor workflow.Actor, apply mutation) (*RequestView, error) {
	req, err := s.mutate(ctx, op, id, actor, apply)
	if err != nil {
		return nil, err
	}
	return viewOf(req, actor), nil
}
