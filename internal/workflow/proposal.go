package workflow

import (
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// The proposal state machine:
//
//	AwaitingSubmission --submit--> Proposed --negotiate--> Negotiating
//	Proposed|Negotiating --accept--> Accepted
//	Proposed|Negotiating --reject--> Rejected
//
// Accepted and Rejected are terminal.

// submitProposal records the opening offer. The ledger entry names whoever
// entered it; the standing offer is always the mechanic's.
func submitProposal(p *models.MechanicProposal, actor Actor, amount float64, comments string, now time.Time) error {
	const op = "submit proposal"
	if p.Status != models.ProposalAwaiting {
		return conflict(op, "mechanic %s already submitted a proposal", p.MechanicID)
	}
	entry := appendEntry(p, models.NegotiationInitial, actor.ID, actor.displayName(), amount, comments, now)
	proposed := entry.NegotiatedDate
	p.ProposedAmount = amount
	p.Comments = comments
	p.ProposedDate = &proposed
	p.NegotiatedByUserID = p.MechanicID
	p.Status = models.ProposalProposed
	return nil
}

func negotiateProposal(p *models.MechanicProposal, actor Actor, amount float64, comments string, final bool, now time.Time) error {
	const op = "negotiate"
	if !p.IsOpen() {
		return conflict(op, "proposal %s is %s", p.ID, p.Status)
	}
	side := partyOf(p, actor)
	if side == partyNone {
		return unauthorized(op, "user %s is not a party to proposal %s", actor.ID, p.ID)
	}
	if side == lastParty(p) {
		return conflict(op, "proposal %s is waiting for the counter-party to respond", p.ID)
	}
	typ := models.NegotiationCounter
	if final {
		typ = models.NegotiationFinal
	}
	appendEntry(p, typ, actor.ID, actor.displayName(), amount, comments, now)
	p.NegotiatedAmount = &amount
	p.NegotiatedByUserID = actor.ID
	p.NegotiationComments = comments
	p.Status = models.ProposalNegotiating
	return nil
}

// acceptProposal accepts the standing offer. A party cannot accept its own
// offer.
func acceptProposal(p *models.MechanicProposal, actor Actor, comments string) error {
	const op = "accept"
	if !p.IsOpen() {
		return conflict(op, "proposal %s is %s", p.ID, p.Status)
	}
	side := partyOf(p, actor)
	if side == partyNone {
		return unauthorized(op, "user %s is not a party to proposal %s", actor.ID, p.ID)
	}
	if side == lastParty(p) {
		return conflict(op, "the standing offer on proposal %s was made by the accepting party", p.ID)
	}
	p.Status = models.ProposalAccepted
	p.AcceptanceComments = comments
	return nil
}

func rejectProposal(p *models.MechanicProposal, actor Actor, comments, reason string) error {
	const op = "reject proposal"
	if !p.IsOpen() {
		return conflict(op, "proposal %s is %s", p.ID, p.Status)
	}
	if partyOf(p, actor) == partyNone {
		return unauthorized(op, "user %s is not a party to proposal %s", actor.ID, p.ID)
	}
	p.Status = models.ProposalRejected
	p.NegotiationComments = comments
	p.RejectionReason = reason
	return nil
}
