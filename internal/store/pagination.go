package store

import (
	"strconv"
	"strings"
)

// Pagination bounds for listing endpoints.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page selects one page of a listing. Number is 1-based.
type Page struct {
	Number int
	Limit  int
}

// NewPage parses raw query values. Garbage falls back to defaults, page < 1
// becomes 1, and the limit is clamped to MaxLimit.
func NewPage(rawPage, rawLimit string) Page {
	p := Page{Number: 1, Limit: DefaultLimit}
	if n, err := strconv.Atoi(strings.TrimSpace(rawPage)); err == nil {
		p.Number = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(rawLimit)); err == nil {
		p.Limit = n
	}
	p.Normalize()
	return p
}

// Normalize clamps the page into sane bounds.
func (p *Page) Normalize() {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

// Offset is the number of items before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// PaginatedResult contains one page of items and metadata.
type PaginatedResult[T any] struct {
	Items      []T  `json:"items"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// Paginate slices an already filtered and sorted list.
func Paginate[T any](all []T, p Page) *PaginatedResult[T] {
	p.Normalize()
	total := len(all)

	start := min(p.Offset(), total)
	end := min(start+p.Limit, total)

	items := make([]T, end-start)
	copy(items, all[start:end])

	return &PaginatedResult[T]{
		Items:      items,
		Page:       p.Number,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: (total + p.Limit - 1) / p.Limit,
		HasMore:    end < total,
	}
}

// Sort orders article listings.
type Sort string

// Supported sort orders.
const (
	SortLatest    Sort = "latest"
	SortOldest    Sort = "oldest"
	SortTitleAsc  Sort = "title-asc"
	SortTitleDesc Sort = "title-desc"
)

// ParseSort maps a query value onto a Sort. Unknown values become SortLatest.
func ParseSort(s string) Sort {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortOldest:
		return SortOldest
	case SortTitleAsc:
		return SortTitleAsc
	case SortTitleDesc:
		return SortTitleDesc
	default:
		return SortLatest
	}
}
