package models

// PageInfo describes where a page is located inside the full result set
type PageInfo struct {
	// Total number of rows in the result set
	Total uint `json:"total"`
	// The (1-based) number of this page
	Page uint `json:"page"`
	// Maximum number of rows per page
	Limit uint `json:"limit"`
	// Number of pages needed to show the full result set
	TotalPages uint `json:"totalPages"`
}

// NewPageInfo calculates the paging information for the given total row count
func NewPageInfo(total, page, limit uint) PageInfo {
	info := PageInfo{
		Total: total,
		Page:  page,
		Limit: limit,
	}
	if limit > 0 {
		info.TotalPages = (total + limit - 1) / limit
	}
	return info
}
