package repository

import "errors"

// ErrConflict is returned by conditional writes when the record no longer
// matches the expected state. Losing an optimistic-concurrency race is an
// expected outcome, not a bug.
var ErrConflict = errors.New("conditional update conflict")

// ListQuery holds common pagination, search and filter parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}
