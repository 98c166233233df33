package handler

import (
	"net/http"

	"github.com/pkordes/tripvote/internal/domain"
)

// MemberList is the body of GET /trips/{tripId}/members.
type MemberList struct {
	Data []domain.TripMember `json:"data"`
}

// SetRoleRequest is the body of PUT /trips/{tripId}/members/{userId}.
type SetRoleRequest struct {
	Role domain.Role `json:"role"`
}

// ListMembers handles GET /trips/{tripId}/members.
func (s *Server) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := s.caller(w, r, "tripId")
	if !ok {
		return
	}

	members, err := s.members.List(r.Context(), ids[0], user)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	if members == nil {
		members = []domain.TripMember{}
	}

	writeJSON(w, http.StatusOK, MemberList{Data: members})
}

// SetMemberRole handles PUT /trips/{tripId}/members/{userId}.
// Adds the user as a member or changes their role; owner only.
func (s *Server) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := s.caller(w, r, "tripId", "userId")
	if !ok {
		return
	}
	var body SetRoleRequest
	if !readBody(w, r, &body) {
		return
	}

	member, err := s.members.SetRole(r.Context(), ids[0], user, ids[1], body.Role)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}

	writeJSON(w, http.StatusOK, member)
}

// RemoveMember handles DELETE /trips/{tripId}/members/{userId}.
// The owner may remove anyone but themselves; any member may leave.
func (s *Server) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := s.caller(w, r, "tripId", "userId")
	if !ok {
		return
	}

	if err := s.members.Remove(r.Context(), ids[0], user, ids[1]); err != nil {
		s.writeError(w, r, err, "member not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
