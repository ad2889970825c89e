// Package report holds the structured result of checking one facility for one
// date window, and renders it for terminals, JSON consumers and notifiers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

type Status string

const (
	StatusMatch   Status = "match"
	StatusNoMatch Status = "no_match"
	// StatusNoData means the facility could not be checked for this window.
	StatusNoData Status = "no_data"
)

// PartialLimit is how many partially available sites are listed when no site
// covers the whole stay.
const PartialLimit = 3

const dayLayout = "2006-01-02"

type Site struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	SiteType string   `json:"site_type"`
	Loop     string   `json:"loop"`
	URL      string   `json:"url"`
	Ranges   []string `json:"availability"`
}

type Report struct {
	Facility      string    `json:"facility"`
	FacilityID    string    `json:"facility_id"`
	CampgroundURL string    `json:"campground_url,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Nights        int       `json:"nights"`
	Status        Status    `json:"status"`
	Matches       []Site    `json:"matches,omitempty"`
	// Partial holds up to PartialLimit sites with some availability when
	// nothing matched; PartialTotal counts all of them.
	Partial       []Site    `json:"partial,omitempty"`
	PartialTotal  int       `json:"partial_total,omitempty"`
	SkippedMonths int       `json:"skipped_months,omitempty"`
	Err           string    `json:"error,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Remaining is the number of partial sites not listed.
func (r Report) Remaining() int {
	if n := r.PartialTotal - len(r.Partial); n > 0 {
		return n
	}
	return 0
}

func (r Report) dates() string {
	return r.Start.Format(dayLayout) + " to " + r.End.Format(dayLayout)
}

// WriteText renders reports in the order given.
func WriteText(w io.Writer, reports []Report) error {
	var b strings.Builder
	for _, r := range reports {
		writeOne(&b, r)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeOne(b *strings.Builder, r Report) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(b, "\n%s\n", rule)
	fmt.Fprintf(b, "🏔️ CHECKING %s (ID: %s)\n", strings.ToUpper(r.Facility), r.FacilityID)
	fmt.Fprintf(b, "📅 Dates: %s\n", r.dates())
	fmt.Fprintf(b, "%s\n", rule)

	switch r.Status {
	case StatusNoData:
		fmt.Fprintf(b, "\n❌ No data for %s: %s\n", r.Facility, r.Err)
		return
	case StatusMatch:
		fmt.Fprintf(b, "\n🎉 FOUND %d SITES WITH %d-NIGHT AVAILABILITY!\n", len(r.Matches), r.Nights)
		fmt.Fprintf(b, "%s\n", strings.Repeat("-", 50))
		for _, s := range r.Matches {
			fmt.Fprintf(b, "🏕️ Site: %s (ID: %s)\n", s.Name, s.ID)
			fmt.Fprintf(b, "   Type: %s\n", s.SiteType)
			fmt.Fprintf(b, "   Loop: %s\n", s.Loop)
			fmt.Fprintf(b, "   Available for: %s (%d nights)\n", r.dates(), r.Nights)
			fmt.Fprintf(b, "   All availability: %s\n", strings.Join(s.Ranges, ", "))
			fmt.Fprintf(b, "   Book at: %s\n\n", s.URL)
		}
	default:
		fmt.Fprintf(b, "\n❌ No %d-night availability found for %s\n", r.Nights, r.Facility)
		fmt.Fprintf(b, "   Dates requested: %s\n", r.dates())
		if r.PartialTotal > 0 {
			fmt.Fprintf(b, "   ℹ️ However, %d sites have some availability in this period:\n", r.PartialTotal)
			for _, s := range r.Partial {
				fmt.Fprintf(b, "      • %s: %s\n", s.Name, strings.Join(s.Ranges, ", "))
			}
			if n := r.Remaining(); n > 0 {
				fmt.Fprintf(b, "      • ... and %d more sites\n", n)
			}
		}
	}
	if r.SkippedMonths > 0 {
		fmt.Fprintf(b, "   ⚠️ %d month(s) could not be fetched; results may be incomplete\n", r.SkippedMonths)
	}
}

// WriteJSON renders reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []Report) error {
	if reports == nil {
		reports = []Report{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// Summary is a compact form for SMS and chat notifications. Only matching
// reports are worth sending; it returns "" for anything else.
func Summary(r Report) string {
	if r.Status != StatusMatch {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏕️ %s: %d site(s) free %s (%d nights)", r.Facility, len(r.Matches), r.dates(), r.Nights)
	for _, s := range r.Matches {
		fmt.Fprintf(&b, "\n%s %s", s.Name, s.URL)
	}
	return b.String()
}
