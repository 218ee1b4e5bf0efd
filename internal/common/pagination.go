package common

import (
	"net/http"
	"strconv"
)

// Page is a 1-based page request read from ?page= and ?limit=.
type Page struct {
	Number  int `json:"page"`
	PerPage int `json:"perPage"`
}

// ParsePage reads the page query parameters. Missing or invalid values fall back
// to page 1 and defaultPerPage; perPage is capped at maxPerPage when it is positive.
func ParsePage(r *http.Request, defaultPerPage, maxPerPage int) Page {
	p := Page{Number: 1, PerPage: defaultPerPage}
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.PerPage = n
	}
	if maxPerPage > 0 && p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

// Limit is the SQL LIMIT for the page.
func (p Page) Limit() int32 { return int32(p.PerPage) }

// Offset is the SQL OFFSET for the page.
func (p Page) Offset() int32 {
	if p.Number <= 1 {
		return 0
	}
	return int32((p.Number - 1) * p.PerPage)
}
