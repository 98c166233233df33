package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/tripvote/internal/domain"
	"github.com/pkordes/tripvote/internal/events"
	"github.com/pkordes/tripvote/internal/repo"
)

// TripService implements business logic for Trip operations.
type TripService struct {
	deps
}

// NewTripService constructs a TripService.
func NewTripService(store repo.Store, sink events.Sink, log *slog.Logger, opts ...Option) *TripService {
	return &TripService{deps: newDeps(store, sink, log, opts)}
}

// Create validates and persists a new trip. The creator becomes its owner in
// the same transaction.
func (s *TripService) Create(ctx context.Context, ownerID uuid.UUID, in domain.NewTrip) (domain.Trip, error) {
	trip, err := s.validateNew(ownerID, in)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	var created domain.Trip
	err = s.store.InTx(ctx, func(r repo.Repos) error {
		var err error
		if created, err = r.Trips.Create(ctx, trip); err != nil {
			return err
		}
		_, err = r.Members.Upsert(ctx, domain.TripMember{TripID: created.ID, UserID: ownerID, Role: domain.RoleOwner})
		return err
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	s.emit(ctx, s.event(domain.EventMemberChanged, created.ID, nil, ownerID,
		domain.TripMember{TripID: created.ID, UserID: ownerID, Role: domain.RoleOwner}))
	return created, nil
}

// Get returns a trip with its itinerary. Public trips are readable by any
// caller; all others only by members.
func (s *TripService) Get(ctx context.Context, tripID, viewerID uuid.UUID) (domain.Trip, error) {
	r := s.store.Repos()
	trip, err := r.Trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	if trip.Visibility == domain.VisibilityPublic {
		return trip, nil
	}
	if _, err := requireMember(ctx, r.Members, tripID, viewerID); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	return trip, nil
}

func (s *TripService) validateNew(ownerID uuid.UUID, in domain.NewTrip) (domain.Trip, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Trip{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	vis := in.Visibility
	if vis == "" {
		vis = domain.VisibilityPrivate
	}
	if !vis.Valid() {
		return domain.Trip{}, fmt.Errorf("%w: unknown visibility %q", domain.ErrValidation, vis)
	}
	it := domain.NewItinerary()
	if in.Itinerary != nil {
		it = in.Itinerary.Clone()
		if it.SchemaVersion == 0 {
			it.SchemaVersion = domain.ItinerarySchemaVersion
		}
	}
	if err := it.Validate(); err != nil {
		return domain.Trip{}, err
	}
	return domain.Trip{OwnerID: ownerID, Name: name, Visibility: vis, Itinerary: it}, nil
}
