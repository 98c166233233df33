package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripvote/internal/domain"
)

// ProposalRepo defines the persistence operations for proposals and votes.
type ProposalRepo interface {
	// Create inserts a proposal with its frozen eligible-voter set and returns
	// the persisted record. Returns domain.ErrNotFound if the trip is gone.
	Create(ctx context.Context, p domain.Proposal) (domain.Proposal, error)

	// GetByID retrieves a proposal annotated with viewerID's own vote.
	// Pass uuid.Nil to skip the annotation.
	// Returns domain.ErrNotFound if no proposal with that ID exists.
	GetByID(ctx context.Context, id, viewerID uuid.UUID) (domain.Proposal, error)

	// GetForUpdate retrieves a proposal and locks its row until the
	// surrounding transaction ends. All vote and decide paths start here.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Proposal, error)

	// ListByTrip returns one page of a trip's proposals, newest first, each
	// annotated with viewerID's vote, plus the total count.
	ListByTrip(ctx context.Context, tripID, viewerID uuid.UUID, p domain.PaginationParams) ([]domain.Proposal, int64, error)

	// UpsertVote records a user's vote, replacing any earlier one.
	UpsertVote(ctx context.Context, v domain.Vote) error

	// CountVotes re-aggregates the full vote set for a proposal.
	CountVotes(ctx context.Context, proposalID uuid.UUID) (domain.VoteTally, error)

	// UpdateTally stores re-aggregated counters and the resulting status on a
	// pending proposal. Returns domain.ErrConflict if it is no longer pending
	// or status is not reachable from pending.
	UpdateTally(ctx context.Context, id uuid.UUID, t domain.VoteTally, status domain.ProposalStatus, resolvedAt *time.Time) error

	// Resolve moves a proposal from one status to another.
	// Returns domain.ErrConflict if from -> to is not a legal transition or
	// the stored status is not from.
	Resolve(ctx context.Context, id uuid.UUID, from, to domain.ProposalStatus, resolvedAt time.Time) error
}

// pgProposalRepo is the Postgres implementation of ProposalRepo.
type pgProposalRepo struct {
	db db
}

// NewProposalRepo constructs a ProposalRepo backed by the provided db connection.
func NewProposalRepo(db db) ProposalRepo {
	return &pgProposalRepo{db: db}
}

const proposalColumns = `p.id, p.trip_id, p.author_id, p.title, p.description, p.changes,
		p.votes_for, p.votes_against, p.eligible_voters, p.eligible_voter_ids,
		p.owner_decision_required, p.status, p.created_at, p.resolved_at`

func (r *pgProposalRepo) Create(ctx context.Context, p domain.Proposal) (domain.Proposal, error) {
	const q = `
		INSERT INTO proposals AS p (trip_id, author_id, title, description, changes,
			votes_for, votes_against, eligible_voters, eligible_voter_ids,
			owner_decision_required, status, resolved_at)
		VALUES (@trip_id, @author_id, @title, @description, @changes,
			0, 0, @eligible_voters, @eligible_voter_ids,
			@owner_decision_required, @status, @resolved_at)
		RETURNING ` + proposalColumns

	changes, err := json.Marshal(p.Changes)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("repo.ProposalRepo.Create: encode changes: %w", err)
	}
	voterIDs := p.EligibleVoterIDs
	if voterIDs == nil {
		voterIDs = []uuid.UUID{}
	}

	args := pgx.NamedArgs{
		"trip_id":                 p.TripID,
		"author_id":               p.AuthorID,
		"title":                   p.Title,
		"description":             p.Description,
		"changes":                 changes,
		"eligible_voters":         p.EligibleVoters,
		"eligible_voter_ids":      voterIDs,
		"owner_decision_required": p.OwnerDecisionRequired,
		"status":                  string(p.Status),
		"resolved_at":             p.ResolvedAt,
	}

	result, err := scanProposal(r.db.QueryRow(ctx, q, args), false)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Proposal{}, fmt.Errorf("repo.ProposalRepo.Create: trip: %w", domain.ErrNotFound)
		}
		return domain.Proposal{}, fmt.Errorf("repo.ProposalRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgProposalRepo) GetByID(ctx context.Context, id, viewerID uuid.UUID) (domain.Proposal, error) {
	const q = `
		SELECT ` + proposalColumns + `, v.value
		FROM proposals p
		LEFT JOIN proposal_votes v ON v.proposal_id = p.id AND v.user_id = @viewer_id
		WHERE p.id = @id`

	result, err := scanProposal(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "viewer_id": viewerID}), true)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("repo.ProposalRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgProposalRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Proposal, error) {
	const q = `
		SELECT ` + proposalColumns + `
		FROM proposals p
		WHERE p.id = @id
		FOR UPDATE`

	result, err := scanProposal(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}), false)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("repo.ProposalRepo.GetForUpdate: %w", err)
	}
	return result, nil
}

func (r *pgProposalRepo) ListByTrip(ctx context.Context, tripID, viewerID uuid.UUID, pg domain.PaginationParams) ([]domain.Proposal, int64, error) {
	const countQ = `SELECT count(*) FROM proposals WHERE trip_id = @trip_id`

	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"trip_id": tripID}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.ProposalRepo.ListByTrip: count: %w", err)
	}

	const q = `
		SELECT ` + proposalColumns + `, v.value
		FROM proposals p
		LEFT JOIN proposal_votes v ON v.proposal_id = p.id AND v.user_id = @viewer_id
		WHERE p.trip_id = @trip_id
		ORDER BY p.created_at DESC, p.id
		LIMIT @limit OFFSET @offset`

	args := pgx.NamedArgs{
		"trip_id":   tripID,
		"viewer_id": viewerID,
		"limit":     pg.Limit,
		"offset":    pg.Offset(),
	}

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.ProposalRepo.ListByTrip: %w", err)
	}
	defer rows.Close()

	proposals := []domain.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows, true)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.ProposalRepo.ListByTrip: scan: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.ProposalRepo.ListByTrip: rows: %w", err)
	}
	return proposals, total, nil
}

func (r *pgProposalRepo) UpsertVote(ctx context.Context, v domain.Vote) error {
	const q = `
		INSERT INTO proposal_votes (proposal_id, user_id, value)
		VALUES (@proposal_id, @user_id, @value)
		ON CONFLICT (proposal_id, user_id) DO UPDATE
		SET value = EXCLUDED.value, cast_at = now()`

	args := pgx.NamedArgs{
		"proposal_id": v.ProposalID,
		"user_id":     v.UserID,
		"value":       v.Value,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("repo.ProposalRepo.UpsertVote: proposal: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("repo.ProposalRepo.UpsertVote: %w", err)
	}
	return nil
}

// CountVotes counts from the vote rows rather than trusting the stored
// counters, so an overwritten vote is never counted twice.
func (r *pgProposalRepo) CountVotes(ctx context.Context, proposalID uuid.UUID) (domain.VoteTally, error) {
	const q = `
		SELECT count(*) FILTER (WHERE value),
		       count(*) FILTER (WHERE NOT value)
		FROM proposal_votes
		WHERE proposal_id = @proposal_id`

	var t domain.VoteTally
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"proposal_id": proposalID}).Scan(&t.For, &t.Against); err != nil {
		return domain.VoteTally{}, fmt.Errorf("repo.ProposalRepo.CountVotes: %w", err)
	}
	return t, nil
}

func (r *pgProposalRepo) UpdateTally(ctx context.Context, id uuid.UUID, t domain.VoteTally, status domain.ProposalStatus, resolvedAt *time.Time) error {
	if status != domain.StatusPending && !domain.StatusPending.CanTransitionTo(status) {
		return fmt.Errorf("repo.ProposalRepo.UpdateTally: a vote cannot move a proposal to %s: %w", status, domain.ErrConflict)
	}

	const q = `
		UPDATE proposals
		SET votes_for     = @votes_for,
		    votes_against = @votes_against,
		    status        = @status,
		    resolved_at   = @resolved_at
		WHERE id = @id AND status = 'pending'`

	args := pgx.NamedArgs{
		"id":            id,
		"votes_for":     t.For,
		"votes_against": t.Against,
		"status":        string(status),
		"resolved_at":   resolvedAt,
	}
	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("repo.ProposalRepo.UpdateTally: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ProposalRepo.UpdateTally: proposal is no longer pending: %w", domain.ErrConflict)
	}
	return nil
}

func (r *pgProposalRepo) Resolve(ctx context.Context, id uuid.UUID, from, to domain.ProposalStatus, resolvedAt time.Time) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("repo.ProposalRepo.Resolve: %s -> %s: %w", from, to, domain.ErrConflict)
	}

	const q = `
		UPDATE proposals
		SET status = @to, resolved_at = @resolved_at
		WHERE id = @id AND status = @from`

	args := pgx.NamedArgs{
		"id":          id,
		"from":        string(from),
		"to":          string(to),
		"resolved_at": resolvedAt,
	}
	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("repo.ProposalRepo.Resolve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ProposalRepo.Resolve: proposal is not %s: %w", from, domain.ErrConflict)
	}
	return nil
}

// scanProposal maps a row into a domain.Proposal. withVote selects whether a
// trailing nullable viewer-vote column is present.
func scanProposal(s scanner, withVote bool) (domain.Proposal, error) {
	var (
		p          domain.Proposal
		id         pgtype.UUID
		tripID     pgtype.UUID
		authorID   pgtype.UUID
		changesRaw []byte
		voterIDs   []pgtype.UUID
		status     string
		resolvedAt pgtype.Timestamptz
		userVote   pgtype.Bool
	)

	dest := []any{
		&id, &tripID, &authorID, &p.Title, &p.Description, &changesRaw,
		&p.VotesFor, &p.VotesAgainst, &p.EligibleVoters, &voterIDs,
		&p.OwnerDecisionRequired, &status, &p.CreatedAt, &resolvedAt,
	}
	if withVote {
		dest = append(dest, &userVote)
	}

	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Proposal{}, domain.ErrNotFound
		}
		return domain.Proposal{}, err
	}

	p.ID = uuid.UUID(id.Bytes)
	p.TripID = uuid.UUID(tripID.Bytes)
	p.AuthorID = uuid.UUID(authorID.Bytes)
	p.Status = domain.ProposalStatus(status)

	p.EligibleVoterIDs = make([]uuid.UUID, len(voterIDs))
	for i, v := range voterIDs {
		p.EligibleVoterIDs[i] = uuid.UUID(v.Bytes)
	}

	if err := json.Unmarshal(changesRaw, &p.Changes); err != nil {
		return domain.Proposal{}, fmt.Errorf("proposal %s: decode changes: %w", p.ID, err)
	}
	if resolvedAt.Valid {
		ts := resolvedAt.Time
		p.ResolvedAt = &ts
	}
	if userVote.Valid {
		v := userVote.Bool
		p.UserVote = &v
	}
	return p, nil
}
