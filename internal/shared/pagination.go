package shared

import (
	"math"
	"net/url"
	"strconv"
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Bounds returns the half-open slice range of the current page.
func (p Pagination) Bounds() (int, int) {
	start := (p.Page - 1) * p.PerPage
	if start > p.Total {
		start = p.Total
	}
	end := start + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

// Paginate slices items according to page and perPage.
func Paginate[T any](items []T, page, perPage int) ([]T, Pagination) {
	p := NewPagination(page, perPage, len(items))
	start, end := p.Bounds()
	return items[start:end], p
}

// ParsePage reads page and per_page from a query string. Missing values fall
// back to the defaults of NewPagination; malformed or negative ones are
// rejected.
func ParsePage(q url.Values) (page, perPage int, err error) {
	if page, err = pageParam(q, "page"); err != nil {
		return 0, 0, err
	}
	if perPage, err = pageParam(q, "per_page"); err != nil {
		return 0, 0, err
	}
	return page, perPage, nil
}

func pageParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, Invalid("%s must be a positive integer", name)
	}
	return n, nil
}
