package query

import (
	"slices"

	"feed-go/internal/model"
)

// Sort is a listing order.
type Sort int

const (
	SortRecent  Sort = iota // newest first; the default
	SortOldest              // oldest first
	SortPopular             // most likes+comments first, ties newest first
)

// ParseSort maps a sort key to a Sort. Unknown keys fall back to SortRecent.
func ParseSort(key string) Sort {
	switch key {
	case "created", "oldest", "+created":
		return SortOldest
	case "popular":
		return SortPopular
	default:
		return SortRecent
	}
}

func (s Sort) String() string {
	switch s {
	case SortOldest:
		return "oldest"
	case SortPopular:
		return "popular"
	default:
		return "recent"
	}
}

// Order sorts records in place. The sort is stable: records equal under s
// keep their relative order.
func (s Sort) Order(records []model.Record) {
	switch s {
	case SortOldest:
		slices.SortStableFunc(records, func(a, b model.Record) int {
			return a.Created.Compare(b.Created)
		})
	case SortPopular:
		slices.SortStableFunc(records, func(a, b model.Record) int {
			if d := b.Score() - a.Score(); d != 0 {
				return d
			}
			return b.Created.Compare(a.Created)
		})
	default:
		slices.SortStableFunc(records, func(a, b model.Record) int {
			return b.Created.Compare(a.Created)
		})
	}
}
