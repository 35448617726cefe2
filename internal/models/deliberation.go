package models

import "time"

// DeliberationStatus is derived from the proposal set, never assigned.
type DeliberationStatus string

const (
	DeliberationPending           DeliberationStatus = "Pending"
	DeliberationMechanicsSelected DeliberationStatus = "MechanicsSelected"
	DeliberationProposed          DeliberationStatus = "Proposed"
	DeliberationNegotiating       DeliberationStatus = "Negotiating"
	DeliberationAgreed            DeliberationStatus = "Agreed"
)

// ProposalStatus is the lifecycle of one mechanic's proposal.
type ProposalStatus string

const (
	ProposalAwaiting    ProposalStatus = "AwaitingSubmission"
	ProposalProposed    ProposalStatus = "Proposed"
	ProposalNegotiating ProposalStatus = "Negotiating"
	ProposalAccepted    ProposalStatus = "Accepted"
	ProposalRejected    ProposalStatus = "Rejected"
)

// NegotiationType classifies a ledger entry.
type NegotiationType string

const (
	NegotiationInitial NegotiationType = "Initial"
	NegotiationCounter NegotiationType = "Counter"
	NegotiationFinal   NegotiationType = "Final"
)

// CostDeliberation is the cost negotiation attached to one request.
type CostDeliberation struct {
	SelectedMechanicIDs []string           `bson:"selected_mechanic_ids" json:"selected_mechanic_ids"`
	SelectedDate        *time.Time         `bson:"selected_date,omitempty" json:"selected_date,omitempty"`
	SelectedByUserID    string             `bson:"selected_by_user_id,omitempty" json:"selected_by_user_id,omitempty"`
	FinalCost           *float64           `bson:"final_cost,omitempty" json:"final_cost,omitempty"`
	Comments            string             `bson:"comments" json:"comments"`
	Proposals           []MechanicProposal `bson:"proposals" json:"proposals"`
	AcceptedOffers      []AcceptedOffer    `bson:"accepted_offers" json:"accepted_offers"`
	FinalizedAt         *time.Time         `bson:"finalized_at,omitempty" json:"finalized_at,omitempty"`
	FinalizedByUserID   string             `bson:"finalized_by_user_id,omitempty" json:"finalized_by_user_id,omitempty"`
}

// MechanicProposal is one mechanic's costed offer and its ledger.
type MechanicProposal struct {
	ID                  string             `bson:"id" json:"id"`
	MechanicID          string             `bson:"mechanic_id" json:"mechanic_id"`
	MechanicName        string             `bson:"mechanic_name" json:"mechanic_name"`
	ProposedAmount      float64            `bson:"proposed_amount" json:"proposed_amount"`
	Comments            string             `bson:"comments" json:"comments"`
	Status              ProposalStatus     `bson:"status" json:"status"`
	NegotiatedAmount    *float64           `bson:"negotiated_amount,omitempty" json:"negotiated_amount,omitempty"`
	NegotiatedByUserID  string             `bson:"negotiated_by_user_id,omitempty" json:"negotiated_by_user_id,omitempty"`
	NegotiationComments string             `bson:"negotiation_comments,omitempty" json:"negotiation_comments,omitempty"`
	AcceptanceComments  string             `bson:"acceptance_comments,omitempty" json:"acceptance_comments,omitempty"`
	RejectionReason     string             `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	ProposedDate        *time.Time         `bson:"proposed_date,omitempty" json:"proposed_date,omitempty"`
	Entries             []NegotiationEntry `bson:"entries" json:"entries"`
}

// NegotiationEntry is one immutable row of a proposal's negotiation history.
type NegotiationEntry struct {
	SequenceNumber     int             `bson:"sequence_number" json:"sequence_number"`
	NegotiationType    NegotiationType `bson:"negotiation_type" json:"negotiation_type"`
	NegotiatedBy       string          `bson:"negotiated_by" json:"negotiated_by"`
	NegotiatedByUserID string          `bson:"negotiated_by_user_id" json:"negotiated_by_user_id"`
	NegotiatedAmount   float64         `bson:"negotiated_amount" json:"negotiated_amount"`
	Comments           string          `bson:"comments" json:"comments"`
	NegotiatedDate     time.Time       `bson:"negotiated_date" json:"negotiated_date"`
}

// AcceptedOffer is materialized when a proposal is accepted.
type AcceptedOffer struct {
	ProposalID       string    `bson:"proposal_id" json:"proposal_id"`
	MechanicID       string    `bson:"mechanic_id" json:"mechanic_id"`
	MechanicName     string    `bson:"mechanic_name" json:"mechanic_name"`
	AcceptedAmount   float64   `bson:"accepted_amount" json:"accepted_amount"`
	AcceptedByUserID string    `bson:"accepted_by_user_id" json:"accepted_by_user_id"`
	AcceptedByName   string    `bson:"accepted_by_name" json:"accepted_by_name"`
	Comments         string    `bson:"comments" json:"comments"`
	AcceptedDate     time.Time `bson:"accepted_date" json:"accepted_date"`
	IsPrimary        bool      `bson:"is_primary" json:"is_primary"`
}

// IsTerminal reports whether the proposal can no longer change.
func (p *MechanicProposal) IsTerminal() bool {
	return p.Status == ProposalAccepted || p.Status == ProposalRejected
}

// IsOpen reports whether the proposal accepts negotiate/accept/reject.
func (p *MechanicProposal) IsOpen() bool {
	return p.Status == ProposalProposed || p.Status == ProposalNegotiating
}

// CurrentAmount is the standing offer: the last negotiated amount, else the
// proposed amount.
func (p *MechanicProposal) CurrentAmount() float64 {
	if p.NegotiatedAmount != nil {
		return *p.NegotiatedAmount
	}
	return p.ProposedAmount
}
