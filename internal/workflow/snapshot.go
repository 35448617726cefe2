package workflow

import (
	"sort"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// DeliberationSnapshot is the caller-specific view of a request's cost
// deliberation.
type DeliberationSnapshot struct {
	RequestID           string                    `json:"request_id"`
	Status              models.DeliberationStatus `json:"status"`
	SelectedMechanicIDs []string                  `json:"selected_mechanic_ids"`
	SelectedDate        *time.Time                `json:"selected_date,omitempty"`
	EstimatedCost       float64                   `json:"estimated_cost"`
	FinalCost           *float64                  `json:"final_cost,omitempty"`
	Comments            string                    `json:"comments"`
	Finalized           bool                      `json:"finalized"`
	Proposals           []models.MechanicProposal `json:"proposals"`
	CanSelectMechanics  bool                      `json:"can_select_mechanics"`
	CanProposeCost      bool                      `json:"can_propose_cost"`
	CanNegotiateCost    bool                      `json:"can_negotiate_cost"`
	CanAcceptCost       bool                      `json:"can_accept_cost"`
	CanFinalizeCost     bool                      `json:"can_finalize_cost"`
}

// HistoryEntry is a ledger entry annotated with its proposal.
type HistoryEntry struct {
	ProposalID   string `json:"proposal_id"`
	MechanicID   string `json:"mechanic_id"`
	MechanicName string `json:"mechanic_name"`
	models.NegotiationEntry
}

// Snapshot projects the deliberation for actor. Mechanics only see their own
// proposals.
func Snapshot(req *models.MaintenanceRequest, actor Actor) DeliberationSnapshot {
	d := req.Deliberation
	snap := DeliberationSnapshot{
		RequestID:           req.ID,
		Status:              DeliberationStatus(d),
		SelectedMechanicIDs: []string{},
		EstimatedCost:       req.EstimatedCost,
		Proposals:           []models.MechanicProposal{},
	}
	if d != nil {
		snap.SelectedMechanicIDs = append(snap.SelectedMechanicIDs, d.SelectedMechanicIDs...)
		snap.SelectedDate = d.SelectedDate
		snap.FinalCost = d.FinalCost
		snap.Comments = d.Comments
		snap.Finalized = d.FinalizedAt != nil
		snap.Proposals = Proposals(req, actor, "")
	}
	open := deliberationOpen("", req) == nil
	reviewer := models.IsCostReviewer(actor.Role)
	snap.CanSelectMechanics = open && reviewer && snap.Status == models.DeliberationPending
	snap.CanFinalizeCost = open && reviewer && snap.Status == models.DeliberationAgreed
	if open && d != nil {
		for i := range d.Proposals {
			p := &d.Proposals[i]
			if snap.Status == models.DeliberationMechanicsSelected && p.Status == models.ProposalAwaiting &&
				(actor.ID == p.MechanicID || reviewer) {
				snap.CanProposeCost = true
			}
			if p.IsOpen() {
				side := partyOf(p, actor)
				if side != partyNone && side != lastParty(p) {
					snap.CanNegotiateCost = true
					snap.CanAcceptCost = true
				}
			}
		}
	}
	return snap
}

// Proposals lists the proposals visible to actor, optionally for one
// mechanic.
func Proposals(req *models.MaintenanceRequest, actor Actor, mechanicID string) []models.MechanicProposal {
	out := []models.MechanicProposal{}
	if req.Deliberation == nil {
		return out
	}
	for _, p := range req.Deliberation.Proposals {
		if !visibleTo(&p, actor) {
			continue
		}
		if mechanicID != "" && p.MechanicID != mechanicID {
			continue
		}
		out = append(out, p)
	}
	return out
}

// History returns the negotiation entries visible to actor, ordered by date.
// proposalID narrows it to one proposal.
func History(req *models.MaintenanceRequest, actor Actor, proposalID string) []HistoryEntry {
	out := []HistoryEntry{}
	if req.Deliberation == nil {
		return out
	}
	for _, p := range req.Deliberation.Proposals {
		if !visibleTo(&p, actor) || (proposalID != "" && p.ID != proposalID) {
			continue
		}
		for _, e := range p.Entries {
			out = append(out, HistoryEntry{
				ProposalID:       p.ID,
				MechanicID:       p.MechanicID,
				MechanicName:     p.MechanicName,
				NegotiationEntry: e,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NegotiatedDate.Before(out[j].NegotiatedDate)
	})
	return out
}

// AcceptedOffers returns the accepted offers ordered by acceptance date.
func AcceptedOffers(req *models.MaintenanceRequest) []models.AcceptedOffer {
	out := []models.AcceptedOffer{}
	if req.Deliberation == nil {
		return out
	}
	out = append(out, req.Deliberation.AcceptedOffers...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AcceptedDate.Before(out[j].AcceptedDate)
	})
	return out
}

func visibleTo(p *models.MechanicProposal, actor Actor) bool {
	if actor.Role == models.RoleMechanic {
		return p.MechanicID == actor.ID
	}
	return true
}
