package orders

import "math"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	// MaxPage keeps (Page-1)*Limit inside int for any allowed limit.
	MaxPage = math.MaxInt / MaxPageLimit
)

// ListFilter selects orders for listing. Empty OwnerID/Status match everything.
type ListFilter struct {
	OwnerID string
	Status  Status
	Page    int
	Limit   int
}

// Normalize clamps page and limit to sane values.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type PageMeta struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
}

func NewPageMeta(total, page, limit int) PageMeta {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return PageMeta{
		CurrentPage: page,
		TotalPages:  pages,
		TotalCount:  total,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
	}
}

type Page struct {
	Orders []Order  `json:"orders"`
	Meta   PageMeta `json:"meta"`
}
