// Package repository holds pagination helpers shared by SQL-backed repositories.
package repository

import "errors"

const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// ListOptions defines pagination and ordering for list queries.
type ListOptions struct {
	Offset    int  `json:"offset"`
	Limit     int  `json:"limit"`
	OrderDesc bool `json:"order_desc"`
}

// Validate sets the default limit and rejects out-of-range values.
func (o *ListOptions) Validate() error {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		return errors.New("limit exceeds maximum allowed value of 1000")
	}
	if o.Offset < 0 {
		return errors.New("offset must be non-negative")
	}
	return nil
}

// SetPagination sets pagination parameters
func (o *ListOptions) SetPagination(page, pageSize int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultLimit
	}
	o.Offset = (page - 1) * pageSize
	o.Limit = pageSize
}

// PaginationResult represents the result of a paginated query
type PaginationResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// NewPaginationResult creates a new pagination result. opts must be validated.
func NewPaginationResult[T any](items []T, total int64, opts ListOptions) *PaginationResult[T] {
	if items == nil {
		items = []T{}
	}
	page := (opts.Offset / opts.Limit) + 1
	totalPages := int((total + int64(opts.Limit) - 1) / int64(opts.Limit))

	return &PaginationResult[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   opts.Limit,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}
