package shared

import "math"

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
	// Keep (page-1)*perPage representable.
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the zero based index of the first row on the page.
func (p Pagination) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt - math.MaxInt%p.PerPage
	}
	return (p.Page - 1) * p.PerPage
}

// Window returns the [start, end) bounds of the page within total rows.
func (p Pagination) Window() (int, int) {
	start := p.Offset()
	if start > p.Total {
		start = p.Total
	}
	end := p.Total
	if p.Total-start > p.PerPage {
		end = start + p.PerPage
	}
	return start, end
}

// ClampPerPage applies a default and an upper bound to a requested page size.
func ClampPerPage(perPage, def, max int) int {
	if perPage <= 0 {
		return def
	}
	if perPage > max {
		return max
	}
	return perPage
}
