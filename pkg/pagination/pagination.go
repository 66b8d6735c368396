package pagination

const (
	// DefaultPerPage is the page size used when none is provided.
	DefaultPerPage = 25
	// MaxPerPage caps how many rows a single page can carry.
	MaxPerPage = 200
)

// Params holds 1-based page inputs from controllers or services.
type Params struct {
	Page    int
	PerPage int
}

// Meta describes the page that was returned.
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NormalizePerPage enforces the default and maximum page sizes.
func NormalizePerPage(perPage int) int {
	if perPage <= 0 {
		return DefaultPerPage
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}

// Normalize clamps the page to at least 1 and the size to the allowed range.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	p.PerPage = NormalizePerPage(p.PerPage)
	return p
}

// Window returns the half-open [start, end) bounds of the page within total rows.
// A page past the end yields an empty window.
func (p Params) Window(total int) (start, end int) {
	p = p.Normalize()
	start = (p.Page - 1) * p.PerPage
	if start > total {
		start = total
	}
	end = start + p.PerPage
	if end > total {
		end = total
	}
	return start, end
}

// MetaFor builds the page metadata for total rows.
func (p Params) MetaFor(total int) Meta {
	p = p.Normalize()
	pages := 0
	if total > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return Meta{Page: p.Page, PerPage: p.PerPage, Total: total, TotalPages: pages}
}

// Slice returns the rows of the requested page. The input is not modified.
func Slice[T any](rows []T, p Params) ([]T, Meta) {
	start, end := p.Window(len(rows))
	page := make([]T, end-start)
	copy(page, rows[start:end])
	return page, p.MetaFor(len(rows))
}
