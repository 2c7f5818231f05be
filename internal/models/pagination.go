package models

// Page selects a window of a traversal result.
type Page struct {
	Offset int64
	Limit  int64
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Offset     int64 `json:"offset"`
	Limit      int64 `json:"limit"`
	TotalCount int64 `json:"total_count"`
}
