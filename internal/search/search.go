package search

import (
	"net/url"
	"strconv"
)

const (
	PaginationNone  = "none"
	PaginationPaged = "paged"
	StatusActive    = "active"
)

// SearchParams mirrors the filter parameters of GET /deceased.
type SearchParams struct {
	Search     string
	Pagination string
	Status     string
	IsPrivate  *int
	Page       int
	PerPage    int
}

// DefaultSnapshotParams asks for every active, non-private record in one response.
func DefaultSnapshotParams() SearchParams {
	return SearchParams{
		Search:     "",
		Pagination: PaginationNone,
		Status:     StatusActive,
		IsPrivate:  Ptr(0),
	}
}

func (p SearchParams) Values() url.Values {
	q := url.Values{}
	q.Set("search", p.Search)
	if p.Pagination != "" {
		q.Set("pagination", p.Pagination)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.IsPrivate != nil {
		q.Set("is_private", strconv.Itoa(*p.IsPrivate))
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(p.PerPage))
	}
	return q
}

type SearchResponse struct {
	Data        []DeceasedRecord `json:"data"`
	CurrentPage int              `json:"current_page,omitempty"`
	LastPage    int              `json:"last_page,omitempty"`
	PerPage     int              `json:"per_page,omitempty"`
	Total       int              `json:"total,omitempty"`
}
