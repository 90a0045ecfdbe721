package response

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int64 `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
	HasMore    bool  `json:"has_more"`
	From       int   `json:"from"`
	To         int   `json:"to"`
}

// NewPagination describes page (1-based) of pageSize items out of total.
func NewPagination(page, pageSize int, total int64) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	pages := (total + int64(pageSize) - 1) / int64(pageSize)
	from := (page-1)*pageSize + 1
	to := page * pageSize
	if int64(to) > total {
		to = int(total)
	}
	if int64(from) > total {
		from, to = 0, 0
	}
	return &Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pages,
		TotalItems: total,
		HasMore:    int64(page) < pages,
		From:       from,
		To:         to,
	}
}
