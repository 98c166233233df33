package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/pkordes/tripvote/internal/domain"
	"github.com/pkordes/tripvote/internal/middleware"
)

// ErrorDetail is the machine-readable code plus a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// errorMappings pairs each domain sentinel with its HTTP status and error code.
// The first match wins.
var errorMappings = []struct {
	sentinel error
	status   int
	code     string
}{
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrVersionConflict, http.StatusConflict, "version_conflict"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{middleware.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
}

// writeError maps err onto the error envelope. notFound is the message used
// when a not-found error carries no detail of its own (e.g. "trip not found").
// Anything unrecognised is logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		msg := unwrapMessage(err, m.sentinel)
		if m.sentinel == domain.ErrNotFound && msg == m.sentinel.Error() && notFound != "" {
			msg = notFound
		}
		writeJSON(w, m.status, ErrorResponse{Error: ErrorDetail{Code: m.code, Message: msg}})
		return
	}

	s.log.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
		Code:    "internal_error",
		Message: "internal server error",
	}})
}

// requestError answers a request rejected before reaching the service layer
// (e.g. malformed body or path parameter).
func requestError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: "invalid_request", Message: message}})
}

// opPrefix matches the "pkg.Type.Method: " breadcrumbs layers add when wrapping.
var opPrefix = regexp.MustCompile(`^(?:[a-z]+\.[A-Za-z]+(?:\.[A-Za-z]+)?: )+`)

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.TripService.Create: validation error: name is required" → "name is required"
func unwrapMessage(err error, sentinel error) string {
	if err == nil {
		return ""
	}
	msg := opPrefix.ReplaceAllString(err.Error(), "")
	msg = strings.Replace(msg, sentinel.Error()+": ", "", 1)
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
