package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/brensch/campwatch/internal/campsite"
)

// Window is a requested stay. Start is the first night and End the departure
// day, both normalized to UTC midnight.
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(start, end time.Time) Window {
	return Window{Start: campsite.Day(start), End: campsite.Day(end)}
}

// Nights is the number of nights between Start and End.
func (w Window) Nights() int {
	return int(campsite.Day(w.End).Sub(campsite.Day(w.Start)) / (24 * time.Hour))
}

// Validate rejects windows without a start or with no nights to book.
func (w Window) Validate() error {
	if w.Start.IsZero() {
		return fmt.Errorf("%w: start date is required", campsite.ErrValidation)
	}
	if w.Nights() <= 0 {
		return fmt.Errorf("%w: window %s must span at least one night", campsite.ErrValidation, w)
	}
	return nil
}

func (w Window) String() string {
	return w.Start.Format(campsite.DayLayout) + " to " + w.End.Format(campsite.DayLayout)
}

// ParseWindow parses "YYYY-MM-DD:YYYY-MM-DD".
func ParseWindow(s string) (Window, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Window{}, fmt.Errorf("%w: window %q must look like 2025-07-20:2025-07-23", campsite.ErrValidation, s)
	}
	start, err := time.Parse(campsite.DayLayout, from)
	if err != nil {
		return Window{}, fmt.Errorf("%w: bad start date %q", campsite.ErrValidation, from)
	}
	end, err := time.Parse(campsite.DayLayout, to)
	if err != nil {
		return Window{}, fmt.Errorf("%w: bad end date %q", campsite.ErrValidation, to)
	}
	w := NewWindow(start, end)
	return w, w.Validate()
}

// ArrivalWindows builds one window per arrival date, each nights long.
func ArrivalWindows(arrivals []time.Time, nights int) ([]Window, error) {
	if nights <= 0 {
		return nil, fmt.Errorf("%w: nights must be positive, got %d", campsite.ErrValidation, nights)
	}
	out := make([]Window, 0, len(arrivals))
	for _, a := range arrivals {
		if a.IsZero() {
			return nil, fmt.Errorf("%w: arrival date is required", campsite.ErrValidation)
		}
		start := campsite.Day(a)
		out = append(out, Window{Start: start, End: start.AddDate(0, 0, nights)})
	}
	return out, nil
}
