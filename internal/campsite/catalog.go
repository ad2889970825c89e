package campsite

import (
	"fmt"
	"sort"
	"time"
)

// Catalog indexes a facility's campsites by id.
type Catalog map[string]*Campsite

// NewCatalog builds a catalog from sites. Later duplicates replace earlier ones.
func NewCatalog(sites ...*Campsite) Catalog {
	c := make(Catalog, len(sites))
	for _, s := range sites {
		c[s.ID] = s
	}
	return c
}

// Ingest merges each calendar into the matching campsite. Ids that are not in
// the catalog are ignored.
func (c Catalog) Ingest(a Availability) {
	for id, cal := range a {
		site, ok := c[id]
		if !ok {
			continue
		}
		site.MergeCalendar(cal)
	}
}

// SelectConsecutive returns the campsites whose calendars show every night in
// [start, start+nights) as available. nights must be positive.
func (c Catalog) SelectConsecutive(start time.Time, nights int) (Catalog, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if nights <= 0 {
		return nil, fmt.Errorf("%w: nights must be at least 1, got %d", ErrValidation, nights)
	}
	out := Catalog{}
	for id, s := range c {
		if s.HasConsecutive(start, nights) {
			out[id] = s
		}
	}
	return out, nil
}

// SelectAny returns the campsites with at least one available date.
func (c Catalog) SelectAny() Catalog {
	out := Catalog{}
	for id, s := range c {
		if s.Calendar.AvailableNights() > 0 {
			out[id] = s
		}
	}
	return out
}

// Sorted returns the campsites ordered by id.
func (c Catalog) Sorted() []*Campsite {
	out := make([]*Campsite, 0, len(c))
	for _, s := range c {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
