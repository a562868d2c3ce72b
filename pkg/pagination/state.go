package pagination

// State is the page position of an offset-paginated list.
type State struct {
	Page     int // 1-based
	PageSize int
	Total    int
	HasMore  bool
}

// NewState returns the first page of a list with the given page size.
func NewState(pageSize int) State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return State{Page: 1, PageSize: pageSize}
}

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 20

// Offset is the number of items before the current page.
func (s State) Offset() int {
	if s.Page < 1 {
		return 0
	}
	return (s.Page - 1) * s.PageSize
}

// WithTotal records the server's total count. HasMore is false once the
// current page reaches the end of the list.
func (s State) WithTotal(total int) State {
	s.Total = total
	s.HasMore = s.Page*s.PageSize < total
	return s
}

// TotalPages returns the number of pages implied by Total.
func (s State) TotalPages() int {
	if s.PageSize <= 0 || s.Total <= 0 {
		return 0
	}
	return (s.Total + s.PageSize - 1) / s.PageSize
}

// WithPage moves to page, clamped to 1.
func (s State) WithPage(page int) State {
	if page < 1 {
		page = 1
	}
	s.Page = page
	s.HasMore = s.Page*s.PageSize < s.Total
	return s
}

// Next returns the following page; ok is false when there is none.
func (s State) Next() (next State, ok bool) {
	if !s.HasMore {
		return s, false
	}
	return s.WithPage(s.Page + 1), true
}

// Reset returns to page 1, keeping the page size.
func (s State) Reset() State {
	return NewState(s.PageSize)
}
