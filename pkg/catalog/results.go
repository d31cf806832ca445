package catalog

import (
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// Page is the wire level result of fetching one page of a paginated
// query from an upstream source. Count is the total size of the logical
// result set, not the length of Results. Next and Previous carry page
// numbers, nil meaning no such page.
type Page struct {
	Results  []types.Record `json:"results"`
	Count    int            `json:"count"`
	Next     *int           `json:"next"`
	Previous *int           `json:"previous"`
}

func NewPage(results []types.Record, count int, next, previous *int) *Page {
	return &Page{
		Results:  results,
		Count:    count,
		Next:     next,
		Previous: previous,
	}
}

// EmptyPage is what a session gated fetch resolves to when no session is
// present: a successful, complete and empty result set.
func EmptyPage() *Page {
	return &Page{Results: []types.Record{}}
}

func (p *Page) HasNext() bool {
	return p.Next != nil
}

// NextPage returns the next page number, or 0 when the last page has
// been reached.
func (p *Page) NextPage() int {
	if p.Next == nil {
		return 0
	}

	return *p.Next
}

// PageNumber is a convenience helper for building Next/Previous values.
func PageNumber(n int) *int {
	return &n
}
