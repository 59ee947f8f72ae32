package events

import (
	"strings"
	"time"

	"github.com/magic-amatlan/backend/internal/storage/models"
)

// Filter selects and orders events for the advanced search.
type Filter struct {
	// Query matches title, description or location, case-insensitively.
	Query    string
	Category string
	// From and To keep events overlapping the range.
	From     *time.Time
	To       *time.Time
	MinPrice *int64
	MaxPrice *int64
	// Sort is "date" (default), "price" or "title".
	Sort string
	Desc bool
}

func (f *Filter) validate() error {
	ve := &ValidationError{Fields: map[string]string{}}

	if f.Category != "" {
		if _, ok := models.ParseCategory(f.Category); !ok {
			ve.Fields["category"] = "must be one of " + joinCategories()
		}
	}
	if f.Sort == "" {
		f.Sort = "date"
	}
	if _, ok := sortKeys[f.Sort]; !ok {
		ve.Fields["sort"] = "must be date, price or title"
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		ve.Fields["to"] = "must not be before from"
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MaxPrice < *f.MinPrice {
		ve.Fields["maxPrice"] = "must not be below minPrice"
	}

	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

func (f Filter) matches(e models.Event) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(e.Title), q) &&
			!strings.Contains(strings.ToLower(e.Description), q) &&
			!strings.Contains(strings.ToLower(e.Location), q) {
			return false
		}
	}
	if f.Category != "" && !strings.EqualFold(string(e.Category), f.Category) {
		return false
	}
	if f.From != nil && e.EndDate.Before(*f.From) {
		return false
	}
	if f.To != nil && e.StartDate.After(*f.To) {
		return false
	}
	if f.MinPrice != nil && e.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && e.Price > *f.MaxPrice {
		return false
	}
	return true
}

func (f Filter) sort(events []models.Event) {
	sortEvents(events, f.Sort, f.Desc)
}
