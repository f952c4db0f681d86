package fortnox

import (
	"net/url"
	"strconv"
	"strings"
)

// SortOrder is the listing order accepted by Fortnox list endpoints
type SortOrder string

const (
	SortAscending  SortOrder = "ascending"
	SortDescending SortOrder = "descending"
)

const (
	DefaultLimit = 10
	DefaultPage  = 1
)

// ParseSortOrder accepts "ascending" or "descending", case-insensitively
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortAscending:
		return SortAscending, nil
	case SortDescending:
		return SortDescending, nil
	}
	return "", invalid("sort order", s, `must be "ascending" or "descending"`)
}

// ResourceParams are the paging parameters of a list request
type ResourceParams struct {
	Limit     int
	Page      int
	SortOrder SortOrder
}

// DefaultResourceParams returns limit 10, page 1, ascending
func DefaultResourceParams() *ResourceParams {
	return &ResourceParams{Limit: DefaultLimit, Page: DefaultPage, SortOrder: SortAscending}
}

// NewResourceParams validates and builds list parameters
func NewResourceParams(limit, page int, sort SortOrder) (*ResourceParams, error) {
	p := &ResourceParams{Limit: limit, Page: page, SortOrder: sort}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks limit, page and sort order
func (p *ResourceParams) Validate() error {
	if p.Limit <= 0 {
		return invalid("limit", p.Limit, "must be positive")
	}
	if p.Page < 1 {
		return invalid("page", p.Page, "must be at least 1")
	}
	if p.SortOrder != SortAscending && p.SortOrder != SortDescending {
		return invalid("sort order", string(p.SortOrder), `must be "ascending" or "descending"`)
	}
	return nil
}

// Values encodes the parameters as limit, page and sortorder
func (p *ResourceParams) Values() url.Values {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("sortorder", string(p.SortOrder))
	return v
}

// resolveParams substitutes defaults for nil and validates the rest
func resolveParams(p *ResourceParams) (*ResourceParams, error) {
	if p == nil {
		return DefaultResourceParams(), nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseDocumentNumber parses a positive integer identifier from user input
func ParseDocumentNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalid("document number", s, "must be an integer")
	}
	if n <= 0 {
		return 0, invalid("document number", n, "must be positive")
	}
	return n, nil
}

func checkNumber(field string, n int) error {
	if n <= 0 {
		return invalid(field, n, "must be positive")
	}
	return nil
}
