package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripvote/internal/domain"
	"github.com/pkordes/tripvote/internal/handler"
	"github.com/pkordes/tripvote/internal/middleware"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	create func(ctx context.Context, ownerID uuid.UUID, in domain.NewTrip) (domain.Trip, error)
	get    func(ctx context.Context, tripID, viewerID uuid.UUID) (domain.Trip, error)
}

func (m *mockTripServicer) Create(ctx context.Context, ownerID uuid.UUID, in domain.NewTrip) (domain.Trip, error) {
	return m.create(ctx, ownerID, in)
}
func (m *mockTripServicer) Get(ctx context.Context, tripID, viewerID uuid.UUID) (domain.Trip, error) {
	return m.get(ctx, tripID, viewerID)
}

// compile-time check: mockTripServicer must satisfy handler.TripServicer.
var _ handler.TripServicer = (*mockTripServicer)(nil)

// ---- helpers ---------------------------------------------------------------

// caller is the authenticated user for every request made through newHTTPHandler.
var caller = uuid.MustParse("5b1a3c9e-0000-4000-8000-000000000001")

// asCaller stands in for the JWT middleware.
func asCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), caller)))
	})
}

type services struct {
	trips     handler.TripServicer
	members   handler.MemberServicer
	proposals handler.ProposalServicer
}

// newHTTPHandler wires a Server with the given mocks into a chi router, the
// same way main.go mounts it.
func newHTTPHandler(svc services) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := handler.NewServer(svc.trips, svc.members, svc.proposals, nil, log)
	return srv.Handler(asCaller)
}

func serve(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		buf = jsonBody(t, body)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func tripFixture() domain.Trip {
	return domain.Trip{
		ID:         uuid.New(),
		OwnerID:    caller,
		Name:       "Lisbon long weekend",
		Visibility: domain.VisibilityPrivate,
		Itinerary: domain.NewItinerary(domain.TripDay{
			DayNumber: 1,
			Items:     []domain.TripItem{{ID: "A1", Title: "Museum", Type: domain.ItemActivity}},
		}),
		Version:   1,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// ---- POST /trips -----------------------------------------------------------

func TestCreateTrip_201(t *testing.T) {
	fixture := tripFixture()
	var got domain.NewTrip
	svc := &mockTripServicer{
		create: func(_ context.Context, owner uuid.UUID, in domain.NewTrip) (domain.Trip, error) {
			assert.Equal(t, caller, owner)
			got = in
			return fixture, nil
		},
	}

	rec := serve(t, newHTTPHandler(services{trips: svc}), http.MethodPost, "/trips", map[string]any{
		"name":       "Lisbon long weekend",
		"visibility": "shared",
		"itinerary": map[string]any{
			"schema_version": 1,
			"days":           []map[string]any{{"day_number": 1, "items": []any{}}},
		},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/trips/"+fixture.ID.String(), rec.Header().Get("Location"))
	assert.Equal(t, domain.VisibilityShared, got.Visibility)
	require.NotNil(t, got.Itinerary)
	assert.Len(t, got.Itinerary.Days, 1)

	var resp domain.Trip
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, fixture.ID, resp.ID)
	assert.Equal(t, fixture.Name, resp.Name)
}

func TestCreateTrip_422_ValidationError(t *testing.T) {
	svc := &mockTripServicer{
		create: func(context.Context, uuid.UUID, domain.NewTrip) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w: name is required", domain.ErrValidation)
		},
	}

	rec := serve(t, newHTTPHandler(services{trips: svc}), http.MethodPost, "/trips", map[string]any{"name": ""})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation_error", resp.Error.Code)
	assert.Equal(t, "name is required", resp.Error.Message)
}

func TestCreateTrip_400_MalformedBody(t *testing.T) {
	h := newHTTPHandler(services{trips: &mockTripServicer{}})

	cases := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"not json", "{"},
		{"unknown field", `{"name":"x","start_date":"2025-06-01"}`},
		{"two objects", `{"name":"x"}{"name":"y"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/trips", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decodeError(t, rec).Error.Code)
		})
	}
}

func TestCreateTrip_401_WithoutCaller(t *testing.T) {
	srv := handler.NewServer(&mockTripServicer{}, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := srv.Handler(nil)

	rec := serve(t, h, http.MethodPost, "/trips", map[string]any{"name": "x"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Error.Code)
}

// ---- GET /trips/{tripId} ---------------------------------------------------

func TestGetTrip_200(t *testing.T) {
	fixture := tripFixture()
	svc := &mockTripServicer{
		get: func(_ context.Context, id, viewer uuid.UUID) (domain.Trip, error) {
			assert.Equal(t, fixture.ID, id)
			assert.Equal(t, caller, viewer)
			return fixture, nil
		},
	}

	rec := serve(t, newHTTPHandler(services{trips: svc}), http.MethodGet, "/trips/"+fixture.ID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.Trip
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, fixture.ID, resp.ID)
	assert.Equal(t, fixture.Itinerary, resp.Itinerary)
}

func TestGetTrip_404(t *testing.T) {
	svc := &mockTripServicer{
		get: func(context.Context, uuid.UUID, uuid.UUID) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("service.TripService.Get: repo.TripRepo.GetByID: %w", domain.ErrNotFound)
		},
	}

	rec := serve(t, newHTTPHandler(services{trips: svc}), http.MethodGet, "/trips/"+uuid.New().String(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "not_found", resp.Error.Code)
	assert.Equal(t, "trip not found", resp.Error.Message)
}

func TestGetTrip_403_NotAMember(t *testing.T) {
	svc := &mockTripServicer{
		get: func(context.Context, uuid.UUID, uuid.UUID) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("service.TripService.Get: %w: not a member of this trip", domain.ErrForbidden)
		},
	}

	rec := serve(t, newHTTPHandler(services{trips: svc}), http.MethodGet, "/trips/"+uuid.New().String(), nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not a member of this trip", decodeError(t, rec).Error.Message)
}

func TestGetTrip_400_BadID(t *testing.T) {
	rec := serve(t, newHTTPHandler(services{trips: &mockTripServicer{}}), http.MethodGet, "/trips/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error.Message, "tripId")
}

func TestGetTrip_500_HidesInternalError(t *testing.T) {
	svc := &mockTripServicer{
		get: func(context.Context, uuid.UUID, uuid.UUID) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: connection reset by peer")
		},
	}

	rec := serve(t, newHTTPHandler(services{trips: svc}), http.MethodGet, "/trips/"+uuid.New().String(), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "internal_error", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "connection")
}
