package campsite

import "time"

// Availability is the calendar data collected for a facility, keyed by
// campsite id. It is built up one month at a time.
type Availability map[string]Calendar

// MergeMonth folds one month's calendars in. A campsite seen for the first
// time takes a copy of its month calendar; a known campsite has the month's
// dates merged key by key, so dates fetched later win.
func (a Availability) MergeMonth(month map[string]Calendar) {
	for id, cal := range month {
		existing, ok := a[id]
		if !ok || existing == nil {
			a[id] = cal.Clone()
			continue
		}
		existing.Merge(cal)
	}
}

// Within returns a copy restricted to dates in [start, end]. Campsites left
// with no dates are dropped.
func (a Availability) Within(start, end time.Time) Availability {
	out := Availability{}
	for id, cal := range a {
		filtered := cal.Within(start, end)
		if len(filtered) == 0 {
			continue
		}
		out[id] = filtered
	}
	return out
}
