package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource (trip, proposal, member, itinerary item) does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. empty title, empty change list, malformed change).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrForbidden is returned when the caller's role does not allow the action:
// a viewer proposing, a non-member voting, an author voting on their own
// proposal, or anyone but the owner deciding.
// Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an action is attempted against a proposal in
// an incompatible state (voting on a resolved proposal, deciding one that is
// still pending, contradicting a recorded decision).
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrVersionConflict is returned by the repo layer when an itinerary write
// was computed against a stale trip version. Services retry on it; it only
// reaches the handler once retries are exhausted, where it maps to HTTP 409.
var ErrVersionConflict = errors.New("version conflict")
