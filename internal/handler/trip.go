package handler

import (
	"net/http"

	"github.com/pkordes/tripvote/internal/domain"
)

// CreateTripRequest is the body of POST /trips.
type CreateTripRequest struct {
	Name       string            `json:"name"`
	Visibility domain.Visibility `json:"visibility,omitempty"`
	Itinerary  *domain.Itinerary `json:"itinerary,omitempty"`
}

// CreateTrip handles POST /trips. The caller becomes the trip's owner.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	user, _, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body CreateTripRequest
	if !readBody(w, r, &body) {
		return
	}

	created, err := s.trips.Create(r.Context(), user, domain.NewTrip{
		Name:       body.Name,
		Visibility: body.Visibility,
		Itinerary:  body.Itinerary,
	})
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	w.Header().Set("Location", "/trips/"+created.ID.String())
	writeJSON(w, http.StatusCreated, created)
}

// GetTrip handles GET /trips/{tripId}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	user, ids, ok := s.caller(w, r, "tripId")
	if !ok {
		return
	}

	trip, err := s.trips.Get(r.Context(), ids[0], user)
	if err != nil {
		s.writeError(w, r, err, "trip not found")
		return
	}

	writeJSON(w, http.StatusOK, trip)
}
