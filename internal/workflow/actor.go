package workflow

import "github.com/ukydev/fleet-maintenance/internal/models"

// Actor is the identity performing an operation. It is always passed in
// explicitly; the engine never reads session state.
type Actor struct {
	ID   string
	Name string
	Role models.Role
}

func (a Actor) displayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// party is one side of a proposal's two-party negotiation.
type party int

const (
	partyNone party = iota
	partyMechanic
	partyReviewer
)

func partyOf(p *models.MechanicProposal, a Actor) party {
	switch {
	case a.ID != "" && a.ID == p.MechanicID:
		return partyMechanic
	case models.IsCostReviewer(a.Role):
		return partyReviewer
	default:
		return partyNone
	}
}

// lastParty is the side that made the standing offer. Only the mechanic or a
// reviewer can make offers, so the last actor id is enough.
func lastParty(p *models.MechanicProposal) party {
	switch p.NegotiatedByUserID {
	case "":
		return partyNone
	case p.MechanicID:
		return partyMechanic
	default:
		return partyReviewer
	}
}
