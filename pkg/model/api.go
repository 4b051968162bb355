package model

// Pagination holds pagination metadata for list pages.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list pages.
type ListOptions struct {
	Limit  int
	Offset int
	Query  string // Optional case-insensitive substring filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// Page slices items according to opts. The backend returns full lists, so
// paging happens in the console.
func Page[T any](items []T, opts ListOptions) ([]T, Pagination) {
	opts.Clamp()
	total := len(items)
	pg := Pagination{Total: total, Limit: opts.Limit, Offset: opts.Offset}
	if opts.Offset >= total {
		return []T{}, pg
	}
	end := min(opts.Offset+opts.Limit, total)
	pg.HasMore = end < total
	return items[opts.Offset:end], pg
}
