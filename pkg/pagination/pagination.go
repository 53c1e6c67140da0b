package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// Params holds 1-indexed page parameters extracted from a request.
type Params struct {
	Page    int
	PerPage int
}

// FromContext extracts page and per_page from the echo context. Missing,
// malformed or non-positive values fall back to the defaults instead of
// failing the request.
func FromContext(c echo.Context, defaultPerPage int) Params {
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}

	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page <= 0 {
		page = 1
	}

	perPage, err := strconv.Atoi(c.QueryParam("per_page"))
	if err != nil || perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	// page*perPage must stay representable.
	if page > math.MaxInt/perPage {
		page = math.MaxInt / perPage
	}

	return Params{Page: page, PerPage: perPage}
}

// Offset returns the index of the first item of the page. It saturates at
// math.MaxInt instead of overflowing.
func (p Params) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PerPage
}

// Pages returns the number of pages needed for total items.
func (p Params) Pages(total int) int {
	if p.PerPage <= 0 || total <= 0 {
		return 0
	}
	return (total + p.PerPage - 1) / p.PerPage
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	if p.PerPage <= 0 {
		return false
	}
	return p.Offset() < total-p.PerPage
}

// Slice returns items[offset : offset+per_page]. A page past the end yields an
// empty, non-nil slice.
func Slice[T any](items []T, p Params) []T {
	start := p.Offset()
	if start < 0 || start >= len(items) || p.PerPage <= 0 {
		return []T{}
	}
	end := len(items)
	if p.PerPage < end-start {
		end = start + p.PerPage
	}
	return items[start:end]
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Pages   int         `json:"pages"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Page:    p.Page,
		PerPage: p.PerPage,
		Pages:   p.Pages(total),
		HasMore: p.HasNext(total),
	}
}
