package middleware

import (
	"fmt"
	"net/http"
)

// NewMaxBodySizeHandler returns a middleware that limits incoming request body
// sizes to limit bytes. Requests that declare a larger Content-Length are
// rejected with a 413 error envelope before reaching the next handler; bodies
// of unknown length are wrapped in http.MaxBytesReader so reading past the
// limit fails with *http.MaxBytesError, which the JSON decoder surfaces.
func NewMaxBodySizeHandler(limit int64) func(http.Handler) http.Handler {
	tooLarge := fmt.Sprintf("request body exceeds %d bytes", limit)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", tooLarge)
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
