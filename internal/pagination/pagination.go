// Package pagination computes page metadata and the compact page-number
// control for listings.
package pagination

import (
	"encoding/json"
	"strconv"
	"strings"

	apperrors "github.com/spec-kit/escalation-service/pkg/util/errorutil"
)

const maxVisiblePages = 5

// Meta describes one page of a listing.
type Meta struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// TotalPages is never zero so an empty listing still renders "page 1 of 1".
func TotalPages(totalItems, limit int) int {
	if limit <= 0 || totalItems <= 0 {
		return 1
	}
	return (totalItems + limit - 1) / limit
}

// New validates page against the collection size. Out-of-range pages are a
// caller error and are not clamped.
func New(page, limit, totalItems int) (Meta, error) {
	if limit < 1 {
		return Meta{}, apperrors.NewFieldError("limit", "limit must be at least 1")
	}
	if totalItems < 0 {
		totalItems = 0
	}
	totalPages := TotalPages(totalItems, limit)
	if page < 1 || page > totalPages {
		return Meta{}, apperrors.NewValidationError("page out of range", map[string]any{
			"field":      "page",
			"totalPages": totalPages,
		})
	}
	return Meta{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   totalItems,
		ItemsPerPage: limit,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
	}, nil
}

// Offset is the number of items before the current page.
func (m Meta) Offset() int {
	return (m.CurrentPage - 1) * m.ItemsPerPage
}

// PageItem is a page number or an ellipsis gap.
type PageItem struct {
	Number   int
	Ellipsis bool
}

// MarshalJSON renders numbers as numbers and gaps as "...".
func (p PageItem) MarshalJSON() ([]byte, error) {
	if p.Ellipsis {
		return json.Marshal("...")
	}
	return json.Marshal(p.Number)
}

func (p PageItem) String() string {
	if p.Ellipsis {
		return "..."
	}
	return strconv.Itoa(p.Number)
}

// PageNumbers lists every page when there are few, otherwise the first page,
// a window around the current page, and the last page, with gaps marked.
func PageNumbers(current, totalPages int) []PageItem {
	if totalPages < 1 {
		totalPages = 1
	}
	if totalPages <= maxVisiblePages {
		items := make([]PageItem, 0, totalPages)
		for i := 1; i <= totalPages; i++ {
			items = append(items, PageItem{Number: i})
		}
		return items
	}

	items := []PageItem{{Number: 1}}
	start := max(2, current-1)
	end := min(totalPages-1, current+1)
	if start > 2 {
		items = append(items, PageItem{Ellipsis: true})
	}
	for i := start; i <= end; i++ {
		items = append(items, PageItem{Number: i})
	}
	if end < totalPages-1 {
		items = append(items, PageItem{Ellipsis: true})
	}
	return append(items, PageItem{Number: totalPages})
}

// Params is a parsed page/limit pair.
type Params struct {
	Page  int
	Limit int
}

// ParseParams reads raw query values. Empty values take defaults; malformed
// or out-of-bounds values are validation errors.
func ParseParams(rawPage, rawLimit string, defaultLimit, maxLimit int) (Params, error) {
	params := Params{Page: 1, Limit: defaultLimit}

	if s := strings.TrimSpace(rawPage); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 {
			return Params{}, apperrors.NewFieldError("page", "page must be a positive integer")
		}
		params.Page = page
	}
	if s := strings.TrimSpace(rawLimit); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return Params{}, apperrors.NewFieldError("limit", "limit must be a positive integer")
		}
		params.Limit = limit
	}
	if maxLimit > 0 && params.Limit > maxLimit {
		return Params{}, apperrors.NewValidationError("limit too large", map[string]any{
			"field": "limit",
			"max":   maxLimit,
		})
	}
	return params, nil
}
