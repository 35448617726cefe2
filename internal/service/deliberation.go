package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/workflow"
)

// SelectMechanics invites mechanics from the directory to quote.
func (s *MaintenanceService) SelectMechanics(ctx context.Context, actor workflow.Actor, id string, mechanicIDs []string, comments string) (workflow.DeliberationSnapshot, error) {
	const op = "select mechanics"
	if len(mechanicIDs) == 0 {
		return workflow.DeliberationSnapshot{}, workflow.InvalidArgumentf(op, "at least one mechanic is required")
	}
	if !models.IsCostReviewer(actor.Role) {
		return workflow.DeliberationSnapshot{}, workflow.Unauthorizedf(op, "user %s may not select mechanics", actor.ID)
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	mechanics := make([]models.Mechanic, 0, len(mechanicIDs))
	for _, mid := range mechanicIDs {
		m, err := s.store.FindMechanicByID(lookupCtx, mid)
		if errors.Is(err, db.ErrNotFound) {
			return workflow.DeliberationSnapshot{}, workflow.NotFoundf(op, "mechanic %s not found", mid)
		}
		if err != nil {
			return workflow.DeliberationSnapshot{}, fmt.Errorf("%s: %w", op, err)
		}
		mechanics = append(mechanics, *m)
	}

	req, err := s.mutate(ctx, op, id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		if err := s.engine.SelectMechanics(req, actor, mechanics, comments); err != nil {
			return nil, err
		}
		return []events.Event{s.event(events.MechanicsSelected, req, actor, map[string]any{
			"mechanic_ids": req.Deliberation.SelectedMechanicIDs,
		})}, nil
	})
	if err != nil {
		return workflow.DeliberationSnapshot{}, err
	}
	return workflow.Snapshot(req, actor), nil
}

// SubmitProposal records a selected mechanic's opening offer.
func (s *MaintenanceService) SubmitProposal(ctx context.Context, actor workflow.Actor, id, mechanicID string, amount float64, comments string) (models.MechanicProposal, error) {
	if mechanicID == "" {
		mechanicID = actor.ID
	}
	var out models.MechanicProposal
	_, err := s.mutate(ctx, "submit proposal", id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		p, err := s.engine.SubmitProposal(req, actor, mechanicID, amount, comments)
		if err != nil {
			return nil, err
		}
		out = *p
		return []events.Event{s.event(events.ProposalSubmitted, req, actor, map[string]any{
			"proposal_id": p.ID,
			"mechanic_id": p.MechanicID,
			"amount":      amount,
			"status":      workflow.DeliberationStatus(req.Deliberation),
		})}, nil
	})
	return out, err
}

// Negotiate appends a counter or final offer to a proposal.
func (s *MaintenanceService) Negotiate(ctx context.Context, actor workflow.Actor, id, proposalID string, amount float64, comments string, final bool) (models.MechanicProposal, error) {
	var out models.MechanicProposal
	_, err := s.mutate(ctx, "negotiate", id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		p, err := s.engine.Negotiate(req, actor, proposalID, amount, comments, final)
		if err != nil {
			return nil, err
		}
		out = *p
		entry := p.Entries[len(p.Entries)-1]
		return []events.Event{s.event(events.ProposalNegotiated, req, actor, map[string]any{
			"proposal_id":      p.ID,
			"sequence_number":  entry.SequenceNumber,
			"negotiation_type": entry.NegotiationType,
			"amount":           amount,
		})}, nil
	})
	return out, err
}

// Accept accepts a proposal's standing offer.
func (s *MaintenanceService) Accept(ctx context.Context, actor workflow.Actor, id, proposalID, comments string) (models.AcceptedOffer, error) {
	var out models.AcceptedOffer
	_, err := s.mutate(ctx, "accept", id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		offer, err := s.engine.Accept(req, actor, proposalID, comments)
		if err != nil {
			return nil, err
		}
		out = offer
		return []events.Event{s.event(events.ProposalAccepted, req, actor, map[string]any{
			"proposal_id": offer.ProposalID,
			"mechanic_id": offer.MechanicID,
			"amount":      offer.AcceptedAmount,
			"is_primary":  offer.IsPrimary,
		})}, nil
	})
	return out, err
}

// RejectProposal closes one proposal.
func (s *MaintenanceService) RejectProposal(ctx context.Context, actor workflow.Actor, id, proposalID, comments, reason string) (models.MechanicProposal, error) {
	var out models.MechanicProposal
	_, err := s.mutate(ctx, "reject proposal", id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		p, err := s.engine.RejectProposal(req, actor, proposalID, comments, reason)
		if err != nil {
			return nil, err
		}
		out = *p
		return []events.Event{s.event(events.ProposalRejected, req, actor, map[string]any{
			"proposal_id": p.ID,
			"mechanic_id": p.MechanicID,
			"reason":      reason,
		})}, nil
	})
	return out, err
}

// Finalize locks an agreed deliberation.
func (s *MaintenanceService) Finalize(ctx context.Context, actor workflow.Actor, id, comments string) (workflow.DeliberationSnapshot, error) {
	req, err := s.mutate(ctx, "finalize", id, actor, func(req *models.MaintenanceRequest) ([]events.Event, error) {
		if err := s.engine.Finalize(req, actor, comments); err != nil {
			return nil, err
		}
		return []events.Event{s.event(events.DeliberationFinalized, req, actor, map[string]any{
			"final_cost": *req.Deliberation.FinalCost,
		})}, nil
	})
	if err != nil {
		return workflow.DeliberationSnapshot{}, err
	}
	return workflow.Snapshot(req, actor), nil
}

func (s *MaintenanceService) view(ctx context.Context, op string, actor workflow.Actor, id string) (*models.MaintenanceRequest, error) {
	if err := requirePermission(op, actor, models.ActionViewMaintenance); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.load(ctx, op, id)
}

// Deliberation returns the caller's view of the cost deliberation.
func (s *MaintenanceService) Deliberation(ctx context.Context, actor workflow.Actor, id string) (workflow.DeliberationSnapshot, error) {
	req, err := s.view(ctx, "get deliberation", actor, id)
	if err != nil {
		return workflow.DeliberationSnapshot{}, err
	}
	return workflow.Snapshot(req, actor), nil
}

// History returns negotiation entries ordered by date.
func (s *MaintenanceService) History(ctx context.Context, actor workflow.Actor, id, proposalID string) ([]workflow.HistoryEntry, error) {
	req, err := s.view(ctx, "get history", actor, id)
	if err != nil {
		return nil, err
	}
	return workflow.History(req, actor, proposalID), nil
}

// AcceptedOffers returns accepted offers ordered by acceptance.
func (s *MaintenanceService) AcceptedOffers(ctx context.Context, actor workflow.Actor, id string) ([]models.AcceptedOffer, error) {
	req, err := s.view(ctx, "get accepted offers", actor, id)
	if err != nil {
		return nil, err
	}
	offers := workflow.AcceptedOffers(req)
	if actor.Role == models.RoleMechanic {
		offers = ownOffers(offers, actor.ID)
	}
	return offers, nil
}

// Proposals lists proposals, optionally for one mechanic.
func (s *MaintenanceService) Proposals(ctx context.Context, actor workflow.Actor, id, mechanicID string) ([]models.MechanicProposal, error) {
	req, err := s.view(ctx, "get proposals", actor, id)
	if err != nil {
		return nil, err
	}
	return workflow.Proposals(req, actor, mechanicID), nil
}
