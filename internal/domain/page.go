package domain

// Page size bounds for proposal lists.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PaginationParams is a 1-indexed page of a newest-first list.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams builds PaginationParams from the optional ?page= and
// ?limit= query values. Missing or non-positive values fall back to page 1 and
// DefaultPageLimit; larger limits are clamped to MaxPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultPageLimit}
	if page != nil && *page > 0 {
		p.Page = *page
	}
	if limit != nil && *limit > 0 {
		p.Limit = min(*limit, MaxPageLimit)
	}
	return p
}

// Offset is the number of rows to skip for SQL OFFSET.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
