// Package criteria describes a catalog query: the optional search text,
// filters, sort order and page window shared by the product listing and the
// facet endpoint.
package criteria

import (
	"strings"
)

// Availability restricts results by stock state.
type Availability string

const (
	AvailabilityAny     Availability = ""
	AvailabilityInStock Availability = "in-stock"
	AvailabilitySoldOut Availability = "sold-out"
)

// SortOrder selects the result ordering. The empty order keeps catalog (or
// search) order.
type SortOrder string

const (
	SortNone      SortOrder = ""
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortRating    SortOrder = "rating"
	SortPopular   SortOrder = "popular"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// Criteria is an immutable query description. Every field is optional and
// its zero value means "no constraint".
type Criteria struct {
	Search       string       `json:"search,omitempty"`
	Categories   []string     `json:"categories,omitempty"`
	Brands       []string     `json:"brands,omitempty"`
	MinPrice     *float64     `json:"minPrice,omitempty"`
	MaxPrice     *float64     `json:"maxPrice,omitempty"`
	Availability Availability `json:"availability,omitempty"`
	Sort         SortOrder    `json:"sort,omitempty"`
	Page         int          `json:"page,omitempty"`
	Limit        int          `json:"limit,omitempty"`
}

// HasSearch reports whether the search text contains anything but
// whitespace. Whitespace-only search text means "no search".
func (c Criteria) HasSearch() bool {
	return strings.TrimSpace(c.Search) != ""
}

// Window returns the effective 1-based page and page size.
func (c Criteria) Window() (page, limit int) {
	page, limit = c.Page, c.Limit
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return page, limit
}

// WithoutPaging drops the sort and page window, leaving only the parts that
// select products. Facet computation ignores paging.
func (c Criteria) WithoutPaging() Criteria {
	c.Sort = SortNone
	c.Page = 0
	c.Limit = 0
	return c
}

// Price returns a pointer to v, for building criteria literals.
func Price(v float64) *float64 {
	return &v
}
