package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripvote/internal/domain"
	"github.com/pkordes/tripvote/internal/middleware"
)

// pathUUID binds a simple-style UUID path parameter the same way generated
// oapi-codegen routers do.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return id, nil
}

// pageParams binds the optional ?page= and ?limit= query parameters.
func pageParams(r *http.Request) (domain.PaginationParams, error) {
	var page, limit *int
	if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &page); err != nil {
		return domain.PaginationParams{}, fmt.Errorf("invalid format for parameter page: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		return domain.PaginationParams{}, fmt.Errorf("invalid format for parameter limit: %w", err)
	}
	return domain.NewPaginationParams(page, limit), nil
}

// caller resolves the authenticated user and the named path UUIDs in one go.
// On failure it has already written the response and returns ok=false.
func (s *Server) caller(w http.ResponseWriter, r *http.Request, names ...string) (user uuid.UUID, ids []uuid.UUID, ok bool) {
	user, err := middleware.RequireUserID(r.Context())
	if err != nil {
		s.writeError(w, r, err, "")
		return uuid.Nil, nil, false
	}
	ids = make([]uuid.UUID, len(names))
	for i, name := range names {
		id, err := pathUUID(r, name)
		if err != nil {
			requestError(w, http.StatusBadRequest, err.Error())
			return uuid.Nil, nil, false
		}
		ids[i] = id
	}
	return user, ids, true
}
