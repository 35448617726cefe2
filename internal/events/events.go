// Package events publishes maintenance workflow transitions to a message bus.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a workflow transition.
type Type string

const (
	RequestCreated        Type = "request.created"
	StageProcessed        Type = "stage.processed"
	RequestRejected       Type = "request.rejected"
	MechanicsSelected     Type = "deliberation.mechanics_selected"
	ProposalSubmitted     Type = "proposal.submitted"
	ProposalNegotiated    Type = "proposal.negotiated"
	ProposalAccepted      Type = "proposal.accepted"
	ProposalRejected      Type = "proposal.rejected"
	DeliberationFinalized Type = "deliberation.finalized"
	WorkStarted           Type = "work.started"
	WorkCompleted         Type = "work.completed"
)

// Event is one committed transition.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	RequestID string         `json:"request_id"`
	ActorID   string         `json:"actor_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New builds an event with a fresh id.
func New(typ Type, requestID, actorID string, at time.Time, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		RequestID: requestID,
		ActorID:   actorID,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

// Publisher delivers events after the state change is committed. Delivery
// is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
