package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProposalStatus is the lifecycle state of a proposal.
// Allowed transitions: pending → approved|rejected, approved → merged|rejected.
// Merged and rejected are terminal.
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusApproved ProposalStatus = "approved"
	StatusRejected ProposalStatus = "rejected"
	StatusMerged   ProposalStatus = "merged"
)

// IsTerminal reports whether no further transition is possible.
func (s ProposalStatus) IsTerminal() bool {
	return s == StatusMerged || s == StatusRejected
}

// CanTransitionTo reports whether moving from s to next is a legal, forward step.
// Staying in the same state is not a transition.
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusMerged || next == StatusRejected
	}
	return false
}

// Proposal is a batch of changes to a trip's itinerary awaiting approval.
//
// EligibleVoters and EligibleVoterIDs are frozen when the proposal is created
// so that majority arithmetic stays stable if membership changes afterwards.
// VotesFor and VotesAgainst are always re-aggregated from the vote rows.
type Proposal struct {
	ID                    uuid.UUID        `json:"id"`
	TripID                uuid.UUID        `json:"trip_id"`
	AuthorID              uuid.UUID        `json:"author_id"`
	Title                 string           `json:"title"`
	Description           string           `json:"description,omitempty"`
	Changes               []ProposedChange `json:"changes"`
	VotesFor              int              `json:"votes_for"`
	VotesAgainst          int              `json:"votes_against"`
	EligibleVoters        int              `json:"eligible_voters"`
	EligibleVoterIDs      []uuid.UUID      `json:"-"`
	OwnerDecisionRequired bool             `json:"owner_decision_required"`
	Status                ProposalStatus   `json:"status"`
	CreatedAt             time.Time        `json:"created_at"`
	ResolvedAt            *time.Time       `json:"resolved_at,omitempty"`

	// UserVote is the requesting viewer's own vote; nil when they have not
	// voted. It is populated by list/get queries and never stored.
	UserVote *bool `json:"user_vote,omitempty"`
}

// IsEligibleVoter reports whether userID was in the frozen voter set.
func (p Proposal) IsEligibleVoter(userID uuid.UUID) bool {
	for _, id := range p.EligibleVoterIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Vote is one user's current stance on a proposal. Re-voting overwrites it;
// the row's cast_at is maintained by the database.
type Vote struct {
	ProposalID uuid.UUID `json:"proposal_id"`
	UserID     uuid.UUID `json:"user_id"`
	Value      bool      `json:"value"`
}

// VoteTally is the re-aggregated count of all vote rows for a proposal.
type VoteTally struct {
	For     int
	Against int
}

// VoteResult is returned to the voter after a successful vote.
type VoteResult struct {
	VotesFor              int            `json:"votes_for"`
	VotesAgainst          int            `json:"votes_against"`
	Status                ProposalStatus `json:"status"`
	UserVote              bool           `json:"user_vote"`
	EligibleVoters        int            `json:"eligible_voters"`
	RequiredVotes         int            `json:"required_votes"`
	OwnerDecisionRequired bool           `json:"owner_decision_required"`
}

// Decision is the owner's final call on an approved proposal.
type Decision string

const (
	DecisionMerge  Decision = "merge"
	DecisionReject Decision = "reject"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionMerge || d == DecisionReject
}

// TargetStatus is the terminal status the decision leads to.
func (d Decision) TargetStatus() ProposalStatus {
	if d == DecisionMerge {
		return StatusMerged
	}
	return StatusRejected
}

// DecisionResult is returned by Decide, including on an idempotent retry.
type DecisionResult struct {
	Status     ProposalStatus `json:"status"`
	ResolvedAt time.Time      `json:"resolved_at"`
}

// NewProposal is the input to proposal creation.
type NewProposal struct {
	TripID      uuid.UUID
	AuthorID    uuid.UUID
	Title       string
	Description string
	Changes     []ProposedChange
}
