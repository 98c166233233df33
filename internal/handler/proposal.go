package handler

import (
	"net/http"

	"github.com/pkordes/tripvote/internal/domain"
)

// CreateProposalRequest is the body of POST /trips/{tripId}/proposals.
type CreateProposalRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	Changes     []domain.ProposedChange `json:"changes"`
}

// VoteRequest is the body of PUT /proposals/{proposalId}/vote.
// Value is a pointer so that a missing field is not read as a "no" vote.
type VoteRequest struct {
	Value *bool `json:"value"`
}

// DecisionRequest is the body of POST /proposals/{proposalId}/decision.
type DecisionRequest struct {
	Decision domain.Decision `json:"decision"`
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// ProposalList is the body of GET /trips/{tripId}/proposals.
type ProposalList struct {
	Data       []domain.Proposal `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// CreateProposal handles POST /trips/{tripId}/proposals.
func (s *Server) CreateProposal(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := s.caller(w, r, "tripId")
	if !ok {
		return
	}
	var body CreateProposalRequest
	if !readBody(w, r, &body) {
		return
	}

	created, err := s.proposals.Create(r.Context(), domain.NewProposal{
		TripID:      ids[0],
		AuthorID:    user,
		Title:       body.Title,
		Description: body.Description,
		Changes:     body.Changes,
	})
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}

	w.Header().Set("Location", "/proposals/"+created.ID.String())
	writeJSON(w, http.StatusCreated, created)
}

// ListProposals handles GET /trips/{tripId}/proposals.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
// Each proposal carries the caller's own vote, if any.
func (s *Server) ListProposals(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := s.caller(w, r, "tripId")
	if !ok {
		return
	}
	params, err := pageParams(r)
	if err != nil {
		requestError(w, http.StatusBadRequest, err.Error())
		return
	}

	proposals, total, err := s.proposals.List(r.Context(), ids[0], user, params)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}
	if proposals == nil {
		proposals = []domain.Proposal{}
	}

	writeJSON(w, http.StatusOK, ProposalList{
		Data: proposals,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// GetProposal handles GET /proposals/{proposalId}.
func (s *Server) GetProposal(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := s.caller(w, r, "proposalId")
	if !ok {
		return
	}

	p, err := s.proposals.Get(r.Context(), ids[0], user)
	if err != nil {
		s.writeError(w, r, err, "proposal not found")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// VoteOnProposal handles PUT /proposals/{proposalId}/vote.
// Voting again replaces the caller's previous vote.
func (s *Server) VoteOnProposal(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := s.caller(w, r, "proposalId")
	if !ok {
		return
	}
	var body VoteRequest
	if !readBody(w, r, &body) {
		return
	}
	if body.Value == nil {
		requestError(w, http.StatusUnprocessableEntity, "value is required")
		return
	}

	result, err := s.proposals.Vote(r.Context(), ids[0], user, *body.Value)
	if err != nil {
		s.writeError(w, r, err, "proposal not found")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// DecideProposal handles POST /proposals/{proposalId}/decision.
// Repeating a decision that was already recorded returns the original result.
func (s *Server) DecideProposal(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := s.caller(w, r, "proposalId")
	if !ok {
		return
	}
	var body DecisionRequest
	if !readBody(w, r, &body) {
		return
	}

	result, err := s.proposals.Decide(r.Context(), ids[0], user, body.Decision)
	if err != nil {
		s.writeError(w, r, err, "proposal not found")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
