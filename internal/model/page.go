package model

import "github.com/sakif/cardbook/internal/apperror"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest is a 1-based page number and page size.
type PageRequest struct {
	Page  int
	Limit int
}

// Validate rejects zero and negative values instead of treating them as
// "no limit".
func (p PageRequest) Validate() error {
	if p.Page < 1 {
		return apperror.ValidationFailed("page", "page must be at least 1")
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return apperror.ValidationFailed("limit", "limit must be between 1 and 100")
	}
	return nil
}

// Offset is the number of records to skip.
func (p PageRequest) Offset() int {
	return p.Limit * (p.Page - 1)
}

// Page is one page of results. TotalPage is 0 when there are no records.
type Page[T any] struct {
	TotalPage   int `json:"totalPage"`
	CurrentPage int `json:"currentPage"`
	Records     []T `json:"records"`
}

// NewPage builds a page from the total match count and the page's records.
func NewPage[T any](req PageRequest, total int64, records []T) Page[T] {
	if records == nil {
		records = []T{}
	}
	return Page[T]{
		TotalPage:   int((total + int64(req.Limit) - 1) / int64(req.Limit)),
		CurrentPage: req.Page,
		Records:     records,
	}
}
