package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripvote/internal/domain"
	"github.com/pkordes/tripvote/internal/events"
	"github.com/pkordes/tripvote/internal/merge"
	"github.com/pkordes/tripvote/internal/repo"
	"github.com/pkordes/tripvote/internal/tally"
)

// ProposalService drives the proposal lifecycle: create, vote, decide.
//
// Every state change runs in one transaction that first locks the proposal
// row, so concurrent votes and decisions on the same proposal serialise and
// the second one observes the first one's outcome.
type ProposalService struct {
	deps
	merger *merge.Engine
}

// NewProposalService constructs a ProposalService. A nil merger uses the
// default merge engine.
func NewProposalService(store repo.Store, sink events.Sink, log *slog.Logger, merger *merge.Engine, opts ...Option) *ProposalService {
	if merger == nil {
		merger = merge.New()
	}
	return &ProposalService{deps: newDeps(store, sink, log, opts), merger: merger}
}

// MergedData is the payload of a proposal.merged event.
type MergedData struct {
	Version  int64            `json:"version"`
	Days     []domain.TripDay `json:"days"`
	Warnings []string         `json:"warnings,omitempty"`
}

// StatusChangedData is the payload of a proposal.status_changed event.
type StatusChangedData struct {
	From domain.ProposalStatus `json:"from"`
	To   domain.ProposalStatus `json:"to"`
}

// Create validates and persists a proposal. The set of eligible voters (all
// owners and editors except the author) is frozen now, and the initial status
// comes from the tally: with nobody to vote it starts out approved and waits
// for the owner.
func (s *ProposalService) Create(ctx context.Context, in domain.NewProposal) (domain.Proposal, error) {
	var created domain.Proposal
	err := s.store.InTx(ctx, func(r repo.Repos) error {
		if _, err := r.Trips.GetByID(ctx, in.TripID); err != nil {
			return err
		}
		role, err := r.Members.GetRole(ctx, in.TripID, in.AuthorID)
		if err != nil {
			return err
		}
		if !role.CanEdit() {
			return fmt.Errorf("%w: only owners and editors can propose changes", domain.ErrForbidden)
		}
		if err := validateNewProposal(in); err != nil {
			return err
		}

		editors, err := r.Members.EditorUserIDs(ctx, in.TripID)
		if err != nil {
			return err
		}
		voters := tally.EligibleVoters(editors, in.AuthorID)
		outcome := tally.Evaluate(len(voters), 0, 0)

		created, err = r.Proposals.Create(ctx, domain.Proposal{
			TripID:                in.TripID,
			AuthorID:              in.AuthorID,
			Title:                 strings.TrimSpace(in.Title),
			Description:           strings.TrimSpace(in.Description),
			Changes:               in.Changes,
			EligibleVoters:        len(voters),
			EligibleVoterIDs:      voters,
			OwnerDecisionRequired: outcome.OwnerDecisionRequired,
			Status:                outcome.Status,
		})
		return err
	})
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("service.ProposalService.Create: %w", err)
	}

	s.emit(ctx, s.event(domain.EventProposalCreated, created.TripID, &created.ID, created.AuthorID, created))
	return created, nil
}

// List returns one page of a trip's proposals, newest first, each annotated
// with the viewer's own vote. Any member may list.
func (s *ProposalService) List(ctx context.Context, tripID, viewerID uuid.UUID, page domain.PaginationParams) ([]domain.Proposal, int64, error) {
	r := s.store.Repos()
	if _, err := r.Trips.GetByID(ctx, tripID); err != nil {
		return nil, 0, fmt.Errorf("service.ProposalService.List: %w", err)
	}
	if _, err := requireMember(ctx, r.Members, tripID, viewerID); err != nil {
		return nil, 0, fmt.Errorf("service.ProposalService.List: %w", err)
	}
	proposals, total, err := r.Proposals.ListByTrip(ctx, tripID, viewerID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ProposalService.List: %w", err)
	}
	return proposals, total, nil
}

// Get returns a single proposal annotated with the viewer's vote.
func (s *ProposalService) Get(ctx context.Context, proposalID, viewerID uuid.UUID) (domain.Proposal, error) {
	r := s.store.Repos()
	p, err := r.Proposals.GetByID(ctx, proposalID, viewerID)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("service.ProposalService.Get: %w", err)
	}
	if _, err := requireMember(ctx, r.Members, p.TripID, viewerID); err != nil {
		return domain.Proposal{}, fmt.Errorf("service.ProposalService.Get: %w", err)
	}
	return p, nil
}

// Vote records userID's vote, replacing any earlier one, then re-counts all
// votes and re-evaluates the status.
//
// The voter must currently be an owner or editor, must not be the author and
// must have been eligible when the proposal was created.
func (s *ProposalService) Vote(ctx context.Context, proposalID, userID uuid.UUID, value bool) (domain.VoteResult, error) {
	var (
		result domain.VoteResult
		before domain.Proposal
	)
	err := s.inTxRetry(ctx, func(r repo.Repos) error {
		p, err := r.Proposals.GetForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		before = p
		if p.Status != domain.StatusPending {
			return fmt.Errorf("%w: proposal is %s", domain.ErrConflict, p.Status)
		}
		if userID == p.AuthorID {
			return fmt.Errorf("%w: authors cannot vote on their own proposal", domain.ErrForbidden)
		}
		role, err := r.Members.GetRole(ctx, p.TripID, userID)
		if err != nil {
			return err
		}
		if !role.CanEdit() {
			return fmt.Errorf("%w: only owners and editors can vote", domain.ErrForbidden)
		}
		if !p.IsEligibleVoter(userID) {
			return fmt.Errorf("%w: joined after the proposal was created", domain.ErrForbidden)
		}

		if err := r.Proposals.UpsertVote(ctx, domain.Vote{ProposalID: p.ID, UserID: userID, Value: value}); err != nil {
			return err
		}
		counts, err := r.Proposals.CountVotes(ctx, p.ID)
		if err != nil {
			return err
		}
		outcome := tally.Evaluate(p.EligibleVoters, counts.For, counts.Against)

		var resolvedAt *time.Time
		if outcome.Status.IsTerminal() {
			now := s.now()
			resolvedAt = &now
		}
		if err := r.Proposals.UpdateTally(ctx, p.ID, counts, outcome.Status, resolvedAt); err != nil {
			return err
		}

		result = domain.VoteResult{
			VotesFor:              counts.For,
			VotesAgainst:          counts.Against,
			Status:                outcome.Status,
			UserVote:              value,
			EligibleVoters:        p.EligibleVoters,
			RequiredVotes:         outcome.RequiredVotes,
			OwnerDecisionRequired: outcome.OwnerDecisionRequired,
		}
		return nil
	})
	if err != nil {
		return domain.VoteResult{}, fmt.Errorf("service.ProposalService.Vote: %w", err)
	}

	evts := []domain.Event{s.event(domain.EventVoteCast, before.TripID, &before.ID, userID, result)}
	if result.Status != before.Status {
		evts = append(evts, s.event(domain.EventProposalStatusChanged, before.TripID, &before.ID, userID,
			StatusChangedData{From: before.Status, To: result.Status}))
	}
	if result.Status == domain.StatusRejected {
		evts = append(evts, s.event(domain.EventProposalRejected, before.TripID, &before.ID, userID, result))
	}
	s.emit(ctx, evts...)
	return result, nil
}

// Decide is the owner's final call on an approved proposal.
//
// Merge applies the proposal's changes to the trip's current itinerary and
// writes the result and the merged status in one transaction; a stale
// itinerary version re-runs the whole transaction against the fresh one.
// Any failure leaves the proposal approved.
//
// Repeating the decision that was already recorded returns the earlier
// result without touching anything, so a retried request never merges twice.
func (s *ProposalService) Decide(ctx context.Context, proposalID, ownerID uuid.UUID, decision domain.Decision) (domain.DecisionResult, error) {
	if !decision.Valid() {
		return domain.DecisionResult{}, fmt.Errorf("service.ProposalService.Decide: %w: decision must be merge or reject", domain.ErrValidation)
	}

	var (
		result  domain.DecisionResult
		p       domain.Proposal
		merged  *MergedData
		replays bool
	)
	err := s.inTxRetry(ctx, func(r repo.Repos) error {
		merged, replays = nil, false

		var err error
		p, err = r.Proposals.GetForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		role, err := r.Members.GetRole(ctx, p.TripID, ownerID)
		if err != nil {
			return err
		}
		if role != domain.RoleOwner {
			return fmt.Errorf("%w: only the trip owner can decide", domain.ErrForbidden)
		}

		target := decision.TargetStatus()
		if p.Status == target {
			replays = true
			result = domain.DecisionResult{Status: p.Status}
			if p.ResolvedAt != nil {
				result.ResolvedAt = *p.ResolvedAt
			}
			return nil
		}
		if p.Status != domain.StatusApproved {
			return fmt.Errorf("%w: proposal is %s", domain.ErrConflict, p.Status)
		}

		now := s.now()
		if decision == domain.DecisionMerge {
			if merged, err = s.applyMerge(ctx, r, p); err != nil {
				return err
			}
		}
		if err := r.Proposals.Resolve(ctx, p.ID, domain.StatusApproved, target, now); err != nil {
			return err
		}
		result = domain.DecisionResult{Status: target, ResolvedAt: now}
		return nil
	})
	if err != nil {
		return domain.DecisionResult{}, fmt.Errorf("service.ProposalService.Decide: %w", err)
	}
	if replays {
		return result, nil
	}

	evts := []domain.Event{s.event(domain.EventProposalStatusChanged, p.TripID, &p.ID, ownerID,
		StatusChangedData{From: domain.StatusApproved, To: result.Status})}
	if merged != nil {
		evts = append(evts, s.event(domain.EventProposalMerged, p.TripID, &p.ID, ownerID, *merged))
	} else {
		evts = append(evts, s.event(domain.EventProposalRejected, p.TripID, &p.ID, ownerID, result))
	}
	s.emit(ctx, evts...)
	return result, nil
}

// applyMerge runs the merge engine against the row-locked trip and writes
// the new itinerary guarded by the version it was computed from.
func (s *ProposalService) applyMerge(ctx context.Context, r repo.Repos, p domain.Proposal) (*MergedData, error) {
	trip, err := r.Trips.GetForUpdate(ctx, p.TripID)
	if err != nil {
		return nil, err
	}

	days, report, err := s.merger.Apply(trip.Itinerary.Days, p.Changes)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for _, w := range report.Warnings {
		s.log.WarnContext(ctx, "merge warning",
			"proposal_id", p.ID.String(),
			"change_index", w.Index,
			"change_type", string(w.Type),
			"target_id", w.TargetID,
			"message", w.Message,
		)
		warnings = append(warnings, fmt.Sprintf("change %d (%s): %s", w.Index, w.Type, w.Message))
	}

	it := domain.Itinerary{SchemaVersion: trip.Itinerary.SchemaVersion, Days: days}
	updated, err := r.Trips.UpdateItinerary(ctx, trip.ID, it, trip.Version)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "proposal merged",
		"proposal_id", p.ID.String(),
		"trip_id", trip.ID.String(),
		"version", updated.Version,
		"applied", report.Applied,
		"skipped", report.Skipped,
	)
	return &MergedData{Version: updated.Version, Days: updated.Itinerary.Days, Warnings: warnings}, nil
}

func validateNewProposal(in domain.NewProposal) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if len(in.Changes) == 0 {
		return fmt.Errorf("%w: at least one change is required", domain.ErrValidation)
	}
	for i, c := range in.Changes {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
	}
	return nil
}
