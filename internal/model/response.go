package model

// DataResponse is the envelope for single-record responses.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse is the envelope for paginated list endpoints.
type ListResponse struct {
	Data any      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// PageMeta carries pagination totals for a list response.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewPageMeta computes the page count for total rows at perPage.
func NewPageMeta(total int64, page, perPage int) PageMeta {
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return PageMeta{Total: total, Page: page, PerPage: perPage, TotalPages: pages}
}

// Page is a resolved pagination window.
type Page struct {
	Page    int
	PerPage int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// UpsertResponse is returned by create endpoints that merge into an existing
// record. Created is false when the record already existed.
type UpsertResponse struct {
	Data    any  `json:"data"`
	Created bool `json:"created"`
}
