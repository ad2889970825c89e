// Package campsite holds the campsite catalog, the per-campsite availability
// calendars merged into it and the filters that select bookable runs of nights.
package campsite

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// StatusAvailable is the only upstream status treated as bookable. Any other
// status ("Reserved", "Not Reservable", "Open", ...) counts as not available.
const StatusAvailable = "Available"

// DateKeyLayout is the key format used by the availability API.
const DateKeyLayout = "2006-01-02T00:00:00Z"

// DayLayout is the plain day format used in reports and CLI input.
const DayLayout = "2006-01-02"

// ErrValidation is returned for missing or impossible request parameters.
// It is always raised before any network activity.
var ErrValidation = errors.New("invalid request")

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a day the way the availability API keys its calendars.
func DateKey(t time.Time) string {
	return Day(t).Format(DateKeyLayout)
}

// ParseDateKey reads the date part of an availability key. Keys carry a time
// and zone that are always midnight UTC, so only the first ten characters count.
func ParseDateKey(key string) (time.Time, error) {
	if len(key) < len(DayLayout) {
		return time.Time{}, errors.New("date key too short: " + key)
	}
	return time.Parse(DayLayout, key[:len(DayLayout)])
}

// Calendar maps availability date keys to upstream status strings.
type Calendar map[string]string

// Merge copies every entry of other into c, overwriting existing dates.
func (c Calendar) Merge(other Calendar) {
	for k, v := range other {
		c[k] = v
	}
}

// Clone returns an independent copy.
func (c Calendar) Clone() Calendar {
	if c == nil {
		return nil
	}
	out := make(Calendar, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Status returns the status recorded for day, or "" if none is known.
func (c Calendar) Status(day time.Time) string {
	return c[DateKey(day)]
}

// Available reports whether day is explicitly marked available.
func (c Calendar) Available(day time.Time) bool {
	return c.Status(day) == StatusAvailable
}

// AvailableDays returns the available days in ascending order. Keys that do
// not parse are skipped.
func (c Calendar) AvailableDays() []time.Time {
	var out []time.Time
	for k, v := range c {
		if v != StatusAvailable {
			continue
		}
		d, err := ParseDateKey(k)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// AvailableNights counts the available dates.
func (c Calendar) AvailableNights() int {
	n := 0
	for _, v := range c {
		if v == StatusAvailable {
			n++
		}
	}
	return n
}

// Ranges groups the available days into runs, rendered as "2025-07-20" for a
// single day or "2025-07-20 to 2025-07-22" for a longer run.
func (c Calendar) Ranges() []string {
	days := c.AvailableDays()
	if len(days) == 0 {
		return nil
	}
	var out []string
	start, end := days[0], days[0]
	flush := func() {
		if start.Equal(end) {
			out = append(out, start.Format(DayLayout))
			return
		}
		out = append(out, start.Format(DayLayout)+" to "+end.Format(DayLayout))
	}
	for _, d := range days[1:] {
		if d.Equal(end.AddDate(0, 0, 1)) {
			end = d
			continue
		}
		flush()
		start, end = d, d
	}
	flush()
	return out
}

// Within returns the entries whose date falls in [start, end] by calendar day.
func (c Calendar) Within(start, end time.Time) Calendar {
	from, to := Day(start), Day(end)
	out := Calendar{}
	for k, v := range c {
		d, err := ParseDateKey(k)
		if err != nil {
			continue
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		out[k] = v
	}
	return out
}

// Campsite is one bookable site within a facility.
type Campsite struct {
	ID         string
	Name       string
	SiteType   string
	Loop       string
	TypeOfUse  string
	Accessible bool
	Latitude   float64
	Longitude  float64

	// Calendar is nil until the first merge.
	Calendar Calendar
}

// MergeCalendar folds cal into the campsite's calendar. The first merge takes
// a copy of cal; later merges overwrite key by key.
func (s *Campsite) MergeCalendar(cal Calendar) {
	if s.Calendar == nil {
		s.Calendar = cal.Clone()
		if s.Calendar == nil {
			s.Calendar = Calendar{}
		}
		return
	}
	s.Calendar.Merge(cal)
}

// HasConsecutive reports whether every night start, start+1, ...,
// start+nights-1 is available. Missing dates are not available.
func (s *Campsite) HasConsecutive(start time.Time, nights int) bool {
	if s.Calendar == nil {
		return false
	}
	day := Day(start)
	for i := 0; i < nights; i++ {
		if !s.Calendar.Available(day.AddDate(0, 0, i)) {
			return false
		}
	}
	return true
}

// Title is the display name, falling back to the id.
func (s *Campsite) Title() string {
	if strings.TrimSpace(s.Name) == "" {
		return s.ID
	}
	return s.Name
}
