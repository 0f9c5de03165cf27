package dto

// Paging defaults for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageQuery captures ?page=&size= (page is zero based).
type PageQuery struct {
	Page int `query:"page"`
	Size int `query:"size"`
}

// Normalize clamps the query to sane bounds.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	return q
}

// Limit is the page size.
func (q PageQuery) Limit() int { return q.Size }

// Offset is the number of items skipped.
func (q PageQuery) Offset() int { return q.Page * q.Size }

// PageMeta describes the returned page.
type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// NewPageMeta builds metadata for a page of a result set of total items.
func NewPageMeta(q PageQuery, total int64) PageMeta {
	pages := int64(0)
	if q.Size > 0 {
		pages = (total + int64(q.Size) - 1) / int64(q.Size)
	}
	return PageMeta{Page: q.Page, Size: q.Size, Total: total, TotalPages: pages}
}
