package providers

import (
	"time"

	"github.com/brensch/campwatch/internal/campsite"
)

// Lookup kinds reported to a LookupFunc.
const (
	LookupCampsites = "campsites"
	LookupMonth     = "month"
)

// Lookup describes one upstream fetch attempt, successful or not.
type Lookup struct {
	Kind       string
	FacilityID string
	// Month is the first day of the month fetched; zero for catalog lookups.
	Month     time.Time
	CheckedAt time.Time
	Success   bool
	Err       string
	// Count is the number of campsites returned.
	Count int
}

// LookupFunc observes every upstream fetch. It must not block for long.
type LookupFunc func(Lookup)

// CalendarResult is the outcome of collecting availability for a window.
type CalendarResult struct {
	// Availability holds only dates inside the requested window.
	Availability campsite.Availability
	Months       []MonthLookup
}

// MonthLookup records whether a single month was fetched.
type MonthLookup struct {
	Month time.Time
	Err   error
}

// Skipped counts the months that could not be fetched.
func (r CalendarResult) Skipped() int {
	n := 0
	for _, m := range r.Months {
		if m.Err != nil {
			n++
		}
	}
	return n
}

// FacilityInfo is a facility returned by a RIDB search.
type FacilityInfo struct {
	ID   string
	Name string
	Type string
	Lat  float64
	Lon  float64
}
