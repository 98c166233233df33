// Package tally holds the majority arithmetic that drives proposal status.
// Everything here is pure: no I/O, no clocks, no shared state.
package tally

import (
	"github.com/google/uuid"

	"github.com/pkordes/tripvote/internal/domain"
)

// Outcome is the tally engine's verdict for a set of counts.
type Outcome struct {
	Status                domain.ProposalStatus
	RequiredVotes         int
	OwnerDecisionRequired bool
}

// RequiredVotes returns the strict-majority threshold floor(eligible/2)+1.
// For eligible == 0 this is 0; callers use it for display only, since
// PendingStatus handles the zero-voter case on its own.
func RequiredVotes(eligible int) int {
	if eligible <= 0 {
		return 0
	}
	return eligible/2 + 1
}

// EligibleVoterCount returns |editorIDs \ {authorID}|.
// Duplicate ids in editorIDs are counted once.
func EligibleVoterCount(editorIDs []uuid.UUID, authorID uuid.UUID) int {
	return len(EligibleVoters(editorIDs, authorID))
}

// EligibleVoters returns editorIDs without the author and without duplicates,
// preserving the input order.
func EligibleVoters(editorIDs []uuid.UUID, authorID uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(editorIDs))
	out := make([]uuid.UUID, 0, len(editorIDs))
	for _, id := range editorIDs {
		if id == authorID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// OwnerDecisionRequired reports whether a proposal has nobody to vote on it,
// so that only the owner can move it forward.
func OwnerDecisionRequired(eligible int) bool {
	return eligible <= 0
}

// PendingStatus decides where a pending proposal stands.
// Zero eligible voters auto-approves so the owner can decide; otherwise a
// strict majority for approves and a strict majority against rejects.
// Ties never resolve.
func PendingStatus(eligible, votesFor, votesAgainst int) domain.ProposalStatus {
	if eligible <= 0 {
		return domain.StatusApproved
	}
	required := RequiredVotes(eligible)
	switch {
	case votesFor >= required:
		return domain.StatusApproved
	case votesAgainst >= required:
		return domain.StatusRejected
	}
	return domain.StatusPending
}

// Evaluate bundles PendingStatus with the display fields. It is the single
// entry point used both when a proposal is created and when a vote is cast.
func Evaluate(eligible, votesFor, votesAgainst int) Outcome {
	return Outcome{
		Status:                PendingStatus(eligible, votesFor, votesAgainst),
		RequiredVotes:         RequiredVotes(eligible),
		OwnerDecisionRequired: OwnerDecisionRequired(eligible),
	}
}
