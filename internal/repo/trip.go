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

// TripRepo defines the persistence operations for Trips and their itinerary.
// The service layer depends on this interface, not the concrete Postgres implementation,
// which allows the service to be unit-tested with a fake.
type TripRepo interface {
	// Create inserts a new trip and returns the persisted record (with DB-generated
	// id, version, created_at, and updated_at populated).
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip by its UUID primary key.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// GetForUpdate is GetByID plus a row lock held until the surrounding
	// transaction ends. Only meaningful inside Store.InTx.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// UpdateItinerary replaces the itinerary if the stored version still equals
	// expectedVersion, bumping the version by one.
	// Returns domain.ErrVersionConflict when the snapshot was stale.
	UpdateItinerary(ctx context.Context, id uuid.UUID, it domain.Itinerary, expectedVersion int64) (domain.Trip, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, owner_id, name, visibility, itinerary, version, created_at, updated_at`

// Create inserts a new trip row and returns the full persisted record.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		INSERT INTO trips (owner_id, name, visibility, itinerary)
		VALUES (@owner_id, @name, @visibility, @itinerary)
		RETURNING ` + tripColumns

	raw, err := domain.EncodeItinerary(trip.Itinerary)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}

	args := pgx.NamedArgs{
		"owner_id":   trip.OwnerID,
		"name":       trip.Name,
		"visibility": string(trip.Visibility),
		"itinerary":  raw,
	}

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetForUpdate retrieves a trip by primary key and locks its row.
func (r *pgTripRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = @id FOR UPDATE`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetForUpdate: %w", err)
	}
	return result, nil
}

// UpdateItinerary writes a new itinerary guarded by the expected version.
func (r *pgTripRepo) UpdateItinerary(ctx context.Context, id uuid.UUID, it domain.Itinerary, expectedVersion int64) (domain.Trip, error) {
	const q = `
		UPDATE trips
		SET itinerary  = @itinerary,
		    version    = version + 1,
		    updated_at = now()
		WHERE id = @id AND version = @version
		RETURNING ` + tripColumns

	raw, err := domain.EncodeItinerary(it)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.UpdateItinerary: %w", err)
	}

	args := pgx.NamedArgs{
		"id":        id,
		"itinerary": raw,
		"version":   expectedVersion,
	}

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		// The row was locked or read moments ago, so no match means the
		// version moved on underneath us.
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Trip{}, fmt.Errorf("repo.TripRepo.UpdateItinerary: %w", domain.ErrVersionConflict)
		}
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.UpdateItinerary: %w", err)
	}
	return result, nil
}

// scanTrip maps a single database row into a domain.Trip.
// The itinerary column is validated on the way out so that a malformed
// document never reaches the merge engine.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t          domain.Trip
		id         pgtype.UUID
		ownerID    pgtype.UUID
		visibility string
		raw        []byte
	)

	err := s.Scan(&id, &ownerID, &t.Name, &visibility, &raw, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.OwnerID = uuid.UUID(ownerID.Bytes)
	t.Visibility = domain.Visibility(visibility)

	t.Itinerary, err = domain.DecodeItinerary(raw)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("trip %s: %w", t.ID, err)
	}

	return t, nil
}
