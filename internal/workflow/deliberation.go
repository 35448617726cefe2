package workflow

import (
	"math"
	"strings"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// DeliberationStatus derives the aggregate status from the proposal set. It
// is the only source of the status; nothing stores it.
func DeliberationStatus(d *models.CostDeliberation) models.DeliberationStatus {
	if d == nil {
		return models.DeliberationPending
	}
	if d.FinalCost != nil {
		return models.DeliberationAgreed
	}
	if len(d.SelectedMechanicIDs) == 0 {
		return models.DeliberationPending
	}
	for _, id := range d.SelectedMechanicIDs {
		p := findByMechanic(d, id)
		if p == nil || !hasInitial(p) {
			return models.DeliberationMechanicsSelected
		}
	}
	for i := range d.Proposals {
		p := &d.Proposals[i]
		if !p.IsTerminal() && len(p.Entries) >= 2 {
			return models.DeliberationNegotiating
		}
	}
	return models.DeliberationProposed
}

// RequestDeliberationStatus is the nullable status mirrored on a request:
// nil until a deliberation exists.
func RequestDeliberationStatus(req *models.MaintenanceRequest) *models.DeliberationStatus {
	if req.Deliberation == nil {
		return nil
	}
	s := DeliberationStatus(req.Deliberation)
	return &s
}

// CanProcessReview reports whether the Review stage may be processed.
func CanProcessReview(req *models.MaintenanceRequest) bool {
	return req.Deliberation != nil && DeliberationStatus(req.Deliberation) == models.DeliberationAgreed
}

// deliberationOpen checks that the request still accepts deliberation
// changes: not terminal, not past Review, and not finalized.
func deliberationOpen(op string, req *models.MaintenanceRequest) error {
	if req.Status != models.StatusPending {
		return conflict(op, "request %s is %s", req.ID, req.Status)
	}
	if req.CurrentStage != models.StageComment && req.CurrentStage != models.StageReview {
		return conflict(op, "request %s has already passed the review stage", req.ID)
	}
	if d := req.Deliberation; d != nil && d.FinalizedAt != nil {
		return conflict(op, "cost deliberation for request %s is finalized", req.ID)
	}
	return nil
}

// SelectMechanics opens the deliberation with one empty proposal slot per
// mechanic. The mechanics are resolved by the caller; unknown ids fail there
// with NotFound.
func (e Engine) SelectMechanics(req *models.MaintenanceRequest, actor Actor, mechanics []models.Mechanic, comments string) error {
	const op = "select mechanics"
	if len(mechanics) == 0 {
		return invalidArgument(op, "at least one mechanic is required")
	}
	if !models.IsCostReviewer(actor.Role) {
		return unauthorized(op, "user %s may not select mechanics", actor.ID)
	}
	if err := deliberationOpen(op, req); err != nil {
		return err
	}
	if s := DeliberationStatus(req.Deliberation); s != models.DeliberationPending {
		return conflict(op, "mechanics already selected (status %s)", s)
	}
	seen := make(map[string]bool, len(mechanics))
	var unique []models.Mechanic
	for _, m := range mechanics {
		if strings.TrimSpace(m.ID) == "" {
			return invalidArgument(op, "mechanic id is required")
		}
		if !m.Active {
			return invalidArgument(op, "mechanic %s is inactive", m.ID)
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		unique = append(unique, m)
	}

	now := e.now()
	d := req.Deliberation
	if d == nil {
		d = &models.CostDeliberation{}
	}
	d.SelectedMechanicIDs = make([]string, 0, len(unique))
	d.Proposals = make([]models.MechanicProposal, 0, len(unique))
	for _, m := range unique {
		d.SelectedMechanicIDs = append(d.SelectedMechanicIDs, m.ID)
		d.Proposals = append(d.Proposals, models.MechanicProposal{
			ID:           e.newID(),
			MechanicID:   m.ID,
			MechanicName: m.Name,
			Status:       models.ProposalAwaiting,
			Entries:      []models.NegotiationEntry{},
		})
	}
	d.SelectedDate = &now
	d.SelectedByUserID = actor.ID
	d.Comments = comments
	req.Deliberation = d
	return nil
}

func validAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 1)
}

// SubmitProposal records a selected mechanic's opening offer. A reviewer may
// enter it on the mechanic's behalf; the offer is still the mechanic's.
func (e Engine) SubmitProposal(req *models.MaintenanceRequest, actor Actor, mechanicID string, amount float64, comments string) (*models.MechanicProposal, error) {
	const op = "submit proposal"
	if !validAmount(amount) {
		return nil, invalidArgument(op, "amount must be positive")
	}
	if err := deliberationOpen(op, req); err != nil {
		return nil, err
	}
	if s := DeliberationStatus(req.Deliberation); s != models.DeliberationMechanicsSelected {
		return nil, conflict(op, "proposals are not being collected (status %s)", s)
	}
	p := findByMechanic(req.Deliberation, mechanicID)
	if p == nil {
		return nil, notFound(op, "mechanic %s was not selected", mechanicID)
	}
	if actor.ID != mechanicID && !models.IsCostReviewer(actor.Role) {
		return nil, unauthorized(op, "user %s may not propose for mechanic %s", actor.ID, mechanicID)
	}
	if err := submitProposal(p, actor, amount, comments, e.now()); err != nil {
		return nil, err
	}
	return p, nil
}

// Negotiate appends a counter offer (or a caller-designated final offer).
func (e Engine) Negotiate(req *models.MaintenanceRequest, actor Actor, proposalID string, amount float64, comments string, final bool) (*models.MechanicProposal, error) {
	const op = "negotiate"
	if !validAmount(amount) {
		return nil, invalidArgument(op, "amount must be positive")
	}
	p, err := openProposal(op, req, proposalID)
	if err != nil {
		return nil, err
	}
	if err := negotiateProposal(p, actor, amount, comments, final, e.now()); err != nil {
		return nil, err
	}
	return p, nil
}

// Accept accepts a proposal's standing offer. The first acceptance on a
// request is primary and fixes the final cost.
func (e Engine) Accept(req *models.MaintenanceRequest, actor Actor, proposalID, comments string) (models.AcceptedOffer, error) {
	const op = "accept"
	p, err := openProposal(op, req, proposalID)
	if err != nil {
		return models.AcceptedOffer{}, err
	}
	if err := acceptProposal(p, actor, comments); err != nil {
		return models.AcceptedOffer{}, err
	}
	d := req.Deliberation
	amount := p.CurrentAmount()
	offer := models.AcceptedOffer{
		ProposalID:       p.ID,
		MechanicID:       p.MechanicID,
		MechanicName:     p.MechanicName,
		AcceptedAmount:   amount,
		AcceptedByUserID: actor.ID,
		AcceptedByName:   actor.displayName(),
		Comments:         comments,
		AcceptedDate:     e.now(),
		IsPrimary:        len(d.AcceptedOffers) == 0,
	}
	d.AcceptedOffers = append(d.AcceptedOffers, offer)
	if offer.IsPrimary {
		final := amount
		d.FinalCost = &final
		reqFinal := amount
		req.FinalCost = &reqFinal
	}
	return offer, nil
}

// RejectProposal closes one proposal. Sibling proposals are unaffected.
func (e Engine) RejectProposal(req *models.MaintenanceRequest, actor Actor, proposalID, comments, reason string) (*models.MechanicProposal, error) {
	const op = "reject proposal"
	p, err := openProposal(op, req, proposalID)
	if err != nil {
		return nil, err
	}
	if err := rejectProposal(p, actor, comments, reason); err != nil {
		return nil, err
	}
	return p, nil
}

// Finalize closes an agreed deliberation against further changes.
func (e Engine) Finalize(req *models.MaintenanceRequest, actor Actor, comments string) error {
	const op = "finalize"
	if !models.IsCostReviewer(actor.Role) {
		return unauthorized(op, "user %s may not finalize cost", actor.ID)
	}
	if req.Deliberation == nil {
		return notFound(op, "request %s has no cost deliberation", req.ID)
	}
	if err := deliberationOpen(op, req); err != nil {
		return err
	}
	if s := DeliberationStatus(req.Deliberation); s != models.DeliberationAgreed {
		return conflict(op, "cost deliberation is %s, not %s", s, models.DeliberationAgreed)
	}
	now := e.now()
	req.Deliberation.FinalizedAt = &now
	req.Deliberation.FinalizedByUserID = actor.ID
	if comments != "" {
		req.Deliberation.Comments = comments
		req.AdminComments = comments
	}
	return nil
}

func openProposal(op string, req *models.MaintenanceRequest, proposalID string) (*models.MechanicProposal, error) {
	if req.Deliberation == nil {
		return nil, notFound(op, "request %s has no cost deliberation", req.ID)
	}
	p := FindProposal(req.Deliberation, proposalID)
	if p == nil {
		return nil, notFound(op, "proposal %s not found", proposalID)
	}
	if err := deliberationOpen(op, req); err != nil {
		return nil, err
	}
	return p, nil
}

// FindProposal returns the proposal with the given id.
func FindProposal(d *models.CostDeliberation, id string) *models.MechanicProposal {
	for i := range d.Proposals {
		if d.Proposals[i].ID == id {
			return &d.Proposals[i]
		}
	}
	return nil
}

func findByMechanic(d *models.CostDeliberation, mechanicID string) *models.MechanicProposal {
	if d == nil {
		return nil
	}
	for i := range d.Proposals {
		if d.Proposals[i].MechanicID == mechanicID {
			return &d.Proposals[i]
		}
	}
	return nil
}
