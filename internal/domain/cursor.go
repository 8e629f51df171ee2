package domain

// DefaultPageSize is the number of posts requested per feed page.
const DefaultPageSize = 10

// Cursor tracks the position of a paginated, searchable listing.
type Cursor struct {
	Page     int
	PageSize int
	Total    int
	Term     string
}

// NewCursor returns a cursor on the first page. Non-positive sizes fall back
// to DefaultPageSize.
func NewCursor(pageSize int) Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Cursor{Page: 1, PageSize: pageSize}
}

// TotalPages derives the page count from the total number of documents.
func (c Cursor) TotalPages() int {
	if c.PageSize <= 0 || c.Total <= 0 {
		return 0
	}
	return (c.Total + c.PageSize - 1) / c.PageSize
}

// LastPage is the highest page that may be requested, never below 1.
func (c Cursor) LastPage() int {
	return max(1, c.TotalPages())
}

// Contains reports whether page lies in 1..LastPage.
func (c Cursor) Contains(page int) bool {
	return page >= 1 && page <= c.LastPage()
}

// Clamp forces page into 1..LastPage.
func (c Cursor) Clamp(page int) int {
	return min(max(page, 1), c.LastPage())
}

// Window returns up to size page numbers around the current page, shifted so
// the window never leaves 1..TotalPages.
func (c Cursor) Window(size int) []int {
	total := c.TotalPages()
	if total == 0 || size <= 0 {
		return nil
	}
	start := max(1, c.Page-size/2)
	end := min(total, start+size-1)
	if end-start < size-1 {
		start = max(1, end-size+1)
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}
