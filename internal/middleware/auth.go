package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	userIDKey     contextKey = "user_id"
	userHolderKey contextKey = "user_holder"
)

// userHolder lets NewSlogLogger, which wraps the auth middleware, learn who
// the caller was.
type userHolder struct {
	id  uuid.UUID
	set bool
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey, h)
}

// NewJWTAuth returns a middleware that requires an HS256 bearer token signed
// with secret. The token's subject must be the caller's user UUID; it is put
// into the request context for UserIDFromContext.
// Issuing tokens is not this service's job.
func NewJWTAuth(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			var claims jwt.RegisteredClaims
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}
			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeUnauthorized(w, "token subject is not a user id")
				return
			}

			if h, ok := r.Context().Value(userHolderKey).(*userHolder); ok {
				h.id, h.set = userID, true
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// ErrUnauthenticated is returned by RequireUserID when no user is in context.
var ErrUnauthenticated = errors.New("unauthenticated")

// RequireUserID is UserIDFromContext for handlers mounted behind NewJWTAuth.
func RequireUserID(ctx context.Context) (uuid.UUID, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

// SignToken issues an HS256 token for userID. The server never calls it; it
// exists for tests and local tooling.
func SignToken(secret []byte, userID uuid.UUID, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID.String()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("middleware.SignToken: %w", err)
	}
	return tok, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tripvote"`)
	writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

// writeError writes the same error envelope the handlers use.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
