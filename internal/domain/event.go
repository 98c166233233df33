package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event. Values are stable wire identifiers.
type EventType string

const (
	EventProposalCreated       EventType = "proposal.created"
	EventVoteCast              EventType = "proposal.vote_cast"
	EventProposalStatusChanged EventType = "proposal.status_changed"
	EventProposalRejected      EventType = "proposal.rejected"
	EventProposalMerged        EventType = "proposal.merged"
	EventMemberChanged         EventType = "trip.member_changed"
)

// Event is emitted after a state change has been committed.
// Delivery to clients is the transport layer's concern; the core only
// hands events to a sink.
type Event struct {
	Type       EventType  `json:"type"`
	TripID     uuid.UUID  `json:"trip_id"`
	ProposalID *uuid.UUID `json:"proposal_id,omitempty"`
	ActorID    uuid.UUID  `json:"actor_id"`
	OccurredAt time.Time  `json:"occurred_at"`
	Data       any        `json:"data,omitempty"`
}
