package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pkordes/tripvote/internal/domain"
	"github.com/pkordes/tripvote/internal/events"
	"github.com/pkordes/tripvote/internal/repo"
)

// MembershipService resolves roles and manages who belongs to a trip.
type MembershipService struct {
	deps
}

// NewMembershipService constructs a MembershipService.
func NewMembershipService(store repo.Store, sink events.Sink, log *slog.Logger, opts ...Option) *MembershipService {
	return &MembershipService{deps: newDeps(store, sink, log, opts)}
}

// GetRole returns the user's role on the trip, or domain.RoleNone.
// Returns domain.ErrNotFound if the trip does not exist.
func (s *MembershipService) GetRole(ctx context.Context, tripID, userID uuid.UUID) (domain.Role, error) {
	r := s.store.Repos()
	if _, err := r.Trips.GetByID(ctx, tripID); err != nil {
		return domain.RoleNone, fmt.Errorf("service.MembershipService.GetRole: %w", err)
	}
	role, err := r.Members.GetRole(ctx, tripID, userID)
	if err != nil {
		return domain.RoleNone, fmt.Errorf("service.MembershipService.GetRole: %w", err)
	}
	return role, nil
}

// EditorUserIDs returns the owner and editors of the trip.
func (s *MembershipService) EditorUserIDs(ctx context.Context, tripID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.store.Repos().Members.EditorUserIDs(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.MembershipService.EditorUserIDs: %w", err)
	}
	return ids, nil
}

// List returns the trip's members. Only members may see the list.
func (s *MembershipService) List(ctx context.Context, tripID, viewerID uuid.UUID) ([]domain.TripMember, error) {
	r := s.store.Repos()
	if _, err := r.Trips.GetByID(ctx, tripID); err != nil {
		return nil, fmt.Errorf("service.MembershipService.List: %w", err)
	}
	if _, err := requireMember(ctx, r.Members, tripID, viewerID); err != nil {
		return nil, fmt.Errorf("service.MembershipService.List: %w", err)
	}
	members, err := r.Members.List(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.MembershipService.List: %w", err)
	}
	return members, nil
}

// SetRole adds userID to the trip or changes their role. Only the owner may
// do this, and only the editor and viewer roles can be granted. The owner's
// own role cannot be changed.
func (s *MembershipService) SetRole(ctx context.Context, tripID, actorID, userID uuid.UUID, role domain.Role) (domain.TripMember, error) {
	if role != domain.RoleEditor && role != domain.RoleViewer {
		return domain.TripMember{}, fmt.Errorf("service.MembershipService.SetRole: %w: role must be editor or viewer", domain.ErrValidation)
	}

	var member domain.TripMember
	err := s.store.InTx(ctx, func(r repo.Repos) error {
		if err := s.requireOwner(ctx, r, tripID, actorID); err != nil {
			return err
		}
		current, err := r.Members.GetRole(ctx, tripID, userID)
		if err != nil {
			return err
		}
		if current == domain.RoleOwner {
			return fmt.Errorf("%w: the owner's role cannot be changed", domain.ErrConflict)
		}
		member, err = r.Members.Upsert(ctx, domain.TripMember{TripID: tripID, UserID: userID, Role: role})
		return err
	})
	if err != nil {
		return domain.TripMember{}, fmt.Errorf("service.MembershipService.SetRole: %w", err)
	}

	s.emit(ctx, s.event(domain.EventMemberChanged, tripID, nil, actorID, member))
	return member, nil
}

// Remove deletes userID's membership. The owner may remove anyone but
// themselves; any other member may only remove themselves.
func (s *MembershipService) Remove(ctx context.Context, tripID, actorID, userID uuid.UUID) error {
	err := s.store.InTx(ctx, func(r repo.Repos) error {
		if _, err := r.Trips.GetByID(ctx, tripID); err != nil {
			return err
		}
		actorRole, err := requireMember(ctx, r.Members, tripID, actorID)
		if err != nil {
			return err
		}
		if actorID != userID && actorRole != domain.RoleOwner {
			return fmt.Errorf("%w: only the owner can remove other members", domain.ErrForbidden)
		}
		target, err := r.Members.GetRole(ctx, tripID, userID)
		if err != nil {
			return err
		}
		if target == domain.RoleOwner {
			return fmt.Errorf("%w: the owner cannot leave or be removed", domain.ErrConflict)
		}
		return r.Members.Remove(ctx, tripID, userID)
	})
	if err != nil {
		return fmt.Errorf("service.MembershipService.Remove: %w", err)
	}

	s.emit(ctx, s.event(domain.EventMemberChanged, tripID, nil, actorID, domain.TripMember{TripID: tripID, UserID: userID, Role: domain.RoleNone}))
	return nil
}

func (s *MembershipService) requireOwner(ctx context.Context, r repo.Repos, tripID, actorID uuid.UUID) error {
	if _, err := r.Trips.GetByID(ctx, tripID); err != nil {
		return err
	}
	role, err := requireMember(ctx, r.Members, tripID, actorID)
	if err != nil {
		return err
	}
	if role != domain.RoleOwner {
		return fmt.Errorf("%w: only the trip owner can manage members", domain.ErrForbidden)
	}
	return nil
}
