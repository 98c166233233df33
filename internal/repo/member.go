package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripvote/internal/domain"
)

// MemberRepo defines the persistence operations for trip membership.
// It is the storage side of the role resolver.
type MemberRepo interface {
	// GetRole returns the user's role on the trip, or domain.RoleNone if the
	// user is not a member. Not being a member is not an error.
	GetRole(ctx context.Context, tripID, userID uuid.UUID) (domain.Role, error)

	// EditorUserIDs returns every member whose role is owner or editor,
	// ordered by join time.
	EditorUserIDs(ctx context.Context, tripID uuid.UUID) ([]uuid.UUID, error)

	// List returns all members of a trip, owner first, then by join time.
	List(ctx context.Context, tripID uuid.UUID) ([]domain.TripMember, error)

	// Upsert adds a member or changes an existing member's role.
	// Returns domain.ErrNotFound if the trip does not exist and
	// domain.ErrConflict if it would create a second owner.
	Upsert(ctx context.Context, m domain.TripMember) (domain.TripMember, error)

	// Remove deletes a membership. Returns domain.ErrNotFound if absent.
	Remove(ctx context.Context, tripID, userID uuid.UUID) error
}

// pgMemberRepo is the Postgres implementation of MemberRepo.
type pgMemberRepo struct {
	db db
}

// NewMemberRepo constructs a MemberRepo backed by the provided db connection.
func NewMemberRepo(db db) MemberRepo {
	return &pgMemberRepo{db: db}
}

func (r *pgMemberRepo) GetRole(ctx context.Context, tripID, userID uuid.UUID) (domain.Role, error) {
	const q = `
		SELECT role
		FROM trip_members
		WHERE trip_id = @trip_id AND user_id = @user_id`

	var role string
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID, "user_id": userID}).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoleNone, nil
		}
		return domain.RoleNone, fmt.Errorf("repo.MemberRepo.GetRole: %w", err)
	}
	return domain.Role(role), nil
}

func (r *pgMemberRepo) EditorUserIDs(ctx context.Context, tripID uuid.UUID) ([]uuid.UUID, error) {
	const q = `
		SELECT user_id
		FROM trip_members
		WHERE trip_id = @trip_id AND role IN ('owner', 'editor')
		ORDER BY joined_at, user_id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.MemberRepo.EditorUserIDs: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repo.MemberRepo.EditorUserIDs: scan: %w", err)
		}
		ids = append(ids, uuid.UUID(id.Bytes))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.MemberRepo.EditorUserIDs: rows: %w", err)
	}
	return ids, nil
}

func (r *pgMemberRepo) List(ctx context.Context, tripID uuid.UUID) ([]domain.TripMember, error) {
	const q = `
		SELECT trip_id, user_id, role, joined_at
		FROM trip_members
		WHERE trip_id = @trip_id
		ORDER BY role = 'owner' DESC, joined_at, user_id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.MemberRepo.List: %w", err)
	}
	defer rows.Close()

	members := []domain.TripMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.MemberRepo.List: scan: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.MemberRepo.List: rows: %w", err)
	}
	return members, nil
}

// Upsert inserts the membership or updates its role on conflict.
// joined_at is kept from the first insert.
func (r *pgMemberRepo) Upsert(ctx context.Context, m domain.TripMember) (domain.TripMember, error) {
	const q = `
		INSERT INTO trip_members (trip_id, user_id, role)
		VALUES (@trip_id, @user_id, @role)
		ON CONFLICT (trip_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING trip_id, user_id, role, joined_at`

	args := pgx.NamedArgs{
		"trip_id": m.TripID,
		"user_id": m.UserID,
		"role":    string(m.Role),
	}

	result, err := scanMember(r.db.QueryRow(ctx, q, args))
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return domain.TripMember{}, fmt.Errorf("repo.MemberRepo.Upsert: trip: %w", domain.ErrNotFound)
		case isUniqueViolation(err):
			return domain.TripMember{}, fmt.Errorf("repo.MemberRepo.Upsert: trip already has an owner: %w", domain.ErrConflict)
		}
		return domain.TripMember{}, fmt.Errorf("repo.MemberRepo.Upsert: %w", err)
	}
	return result, nil
}

func (r *pgMemberRepo) Remove(ctx context.Context, tripID, userID uuid.UUID) error {
	const q = `DELETE FROM trip_members WHERE trip_id = @trip_id AND user_id = @user_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"trip_id": tripID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("repo.MemberRepo.Remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.MemberRepo.Remove: %w", domain.ErrNotFound)
	}
	return nil
}

func scanMember(s scanner) (domain.TripMember, error) {
	var (
		m      domain.TripMember
		tripID pgtype.UUID
		userID pgtype.UUID
		role   string
	)
	if err := s.Scan(&tripID, &userID, &role, &m.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TripMember{}, domain.ErrNotFound
		}
		return domain.TripMember{}, err
	}
	m.TripID = uuid.UUID(tripID.Bytes)
	m.UserID = uuid.UUID(userID.Bytes)
	m.Role = domain.Role(role)
	return m, nil
}
