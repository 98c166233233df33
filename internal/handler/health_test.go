package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripvote/internal/handler"
)

func newHealthHandler(checks map[string]handler.Pinger) http.Handler {
	srv := handler.NewServer(nil, nil, nil, checks, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return srv.Handler(nil)
}

// TestGetHealth_returns200WithOKStatus verifies that GET /healthz returns
// HTTP 200 and a JSON body of {"status":"ok"}.
func TestGetHealth_returns200WithOKStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	newHealthHandler(nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body handler.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
}

func TestGetReady(t *testing.T) {
	ok := handler.PingFunc(func(context.Context) error { return nil })
	down := handler.PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	cases := []struct {
		name       string
		checks     map[string]handler.Pinger
		wantStatus int
		wantChecks map[string]string
	}{
		{"no checks", nil, http.StatusOK, nil},
		{"all up", map[string]handler.Pinger{"postgres": ok, "redis": ok}, http.StatusOK,
			map[string]string{"postgres": "ok", "redis": "ok"}},
		{"redis down", map[string]handler.Pinger{"postgres": ok, "redis": down}, http.StatusServiceUnavailable,
			map[string]string{"postgres": "ok", "redis": "unavailable"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			rec := httptest.NewRecorder()

			newHealthHandler(tc.checks).ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code)
			var body handler.HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.wantChecks, body.Checks)
		})
	}
}

func TestGetOpenAPI_servesEmbeddedDocument(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()

	newHealthHandler(nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
	assert.Contains(t, rec.Body.String(), "/proposals/{proposalId}/decision:")
}
