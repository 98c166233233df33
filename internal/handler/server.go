// Package handler implements the HTTP handlers for the trip proposal API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, member.go, proposal.go) but share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/tripvote/internal/domain"
)

// TripServicer defines the trip operations the handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type TripServicer interface {
	Create(ctx context.Context, ownerID uuid.UUID, in domain.NewTrip) (domain.Trip, error)
	Get(ctx context.Context, tripID, viewerID uuid.UUID) (domain.Trip, error)
}

// MemberServicer defines the membership operations the handlers depend on.
type MemberServicer interface {
	List(ctx context.Context, tripID, viewerID uuid.UUID) ([]domain.TripMember, error)
	SetRole(ctx context.Context, tripID, actorID, userID uuid.UUID, role domain.Role) (domain.TripMember, error)
	Remove(ctx context.Context, tripID, actorID, userID uuid.UUID) error
}

// ProposalServicer defines the proposal lifecycle operations the handlers depend on.
type ProposalServicer interface {
	Create(ctx context.Context, in domain.NewProposal) (domain.Proposal, error)
	List(ctx context.Context, tripID, viewerID uuid.UUID, page domain.PaginationParams) ([]domain.Proposal, int64, error)
	Get(ctx context.Context, proposalID, viewerID uuid.UUID) (domain.Proposal, error)
	Vote(ctx context.Context, proposalID, userID uuid.UUID, value bool) (domain.VoteResult, error)
	Decide(ctx context.Context, proposalID, ownerID uuid.UUID, decision domain.Decision) (domain.DecisionResult, error)
}

// Pinger is a dependency the readiness probe checks, such as the database
// pool or the Redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Server holds the dependencies of every endpoint.
// Methods are in domain-specific files but all operate on this struct.
type Server struct {
	trips     TripServicer
	members   MemberServicer
	proposals ProposalServicer
	checks    map[string]Pinger
	log       *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// checks are the named dependencies reported by GET /readyz.
func NewServer(trips TripServicer, members MemberServicer, proposals ProposalServicer, checks map[string]Pinger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{trips: trips, members: members, proposals: proposals, checks: checks, log: log}
}

// Routes registers the public routes (health and API description) on r and
// the authenticated API routes on a group wrapped by auth.
func (s *Server) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/readyz", s.GetReady)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}

		r.Post("/trips", s.CreateTrip)
		r.Route("/trips/{tripId}", func(r chi.Router) {
			r.Get("/", s.GetTrip)
			r.Get("/members", s.ListMembers)
			r.Put("/members/{userId}", s.SetMemberRole)
			r.Delete("/members/{userId}", s.RemoveMember)
			r.Post("/proposals", s.CreateProposal)
			r.Get("/proposals", s.ListProposals)
		})
		r.Route("/proposals/{proposalId}", func(r chi.Router) {
			r.Get("/", s.GetProposal)
			r.Put("/vote", s.VoteOnProposal)
			r.Post("/decision", s.DecideProposal)
		})
	})
}

// Handler returns a chi router serving every route, for tests and simple
// wiring. main.go mounts Routes on its own router so it can add middleware.
func (s *Server) Handler(auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	s.Routes(r, auth)
	return r
}
