package query

import (
	"fmt"

	"feed-go/internal/model"
)

// Apply filters records by filterExpr and orders the survivors by sortKey.
// The input slice is not modified.
func Apply(records []model.Record, filterExpr string, sortKey string) []model.Record {
	f := ParseFilter(filterExpr)
	out := make([]model.Record, 0, len(records))
	for i := range records {
		if f.Match(&records[i]) {
			out = append(out, records[i])
		}
	}
	ParseSort(sortKey).Order(out)
	return out
}

// Bounds locates one page within total items. page is 1-indexed. It returns
// the half-open range [start, end) of the page and the number of pages; a page
// past the end has start == end.
func Bounds(total, page, perPage int) (start, end, pages int, err error) {
	if perPage <= 0 {
		return 0, 0, 0, fmt.Errorf("perPage must be positive, got %d", perPage)
	}
	if page < 1 {
		return 0, 0, 0, fmt.Errorf("page must be at least 1, got %d", page)
	}

	pages = total / perPage
	if total%perPage != 0 {
		pages++
	}
	// Compared before multiplying so a huge page cannot overflow start.
	if page > pages {
		return total, total, pages, nil
	}
	start = (page - 1) * perPage
	end = start + min(perPage, total-start)
	return start, end, pages, nil
}

// Paginate slices an already filtered and sorted sequence. page is 1-indexed.
// A page past the end yields no items but still reports the totals.
func Paginate(records []model.Record, page, perPage int) (*model.Page, error) {
	start, end, pages, err := Bounds(len(records), page, perPage)
	if err != nil {
		return nil, err
	}
	result := &model.Page{
		Items:      make([]model.Record, 0, end-start),
		Page:       page,
		PerPage:    perPage,
		TotalItems: len(records),
		TotalPages: pages,
	}
	result.Items = append(result.Items, records[start:end]...)
	return result, nil
}
