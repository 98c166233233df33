package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's permission level on a trip.
// RoleNone is never stored; it is what the resolver returns for non-members.
type Role string

const (
	RoleNone   Role = ""
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a storable role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// CanEdit reports whether the role may propose changes and vote.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleEditor
}

// IsMember reports whether the role grants any access at all.
func (r Role) IsMember() bool {
	return r.Valid()
}

// TripMember links a user to a trip with a role.
// Each trip has exactly one member with RoleOwner.
type TripMember struct {
	TripID   uuid.UUID `json:"trip_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
