// Package domain contains the core data types for the trip proposal service.
// This package depends only on google/uuid and is imported by every other
// internal package (repo, service, merge, tally, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Visibility controls who can discover a trip outside its member list.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityPublic  Visibility = "public"
)

// Valid reports whether v is one of the known visibilities.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityShared, VisibilityPublic:
		return true
	}
	return false
}

// Trip is the top-level aggregate: a shared, mutable itinerary owned by one user.
// Version is incremented on every itinerary write and guards merges against
// stale snapshots.
type Trip struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Itinerary  Itinerary  `json:"itinerary"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewTrip is the input to trip creation. A nil Itinerary starts the trip empty.
type NewTrip struct {
	Name       string
	Visibility Visibility
	Itinerary  *Itinerary
}
