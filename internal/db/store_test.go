package db_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/providers"
	"github.com/brensch/campwatch/internal/report"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.duckdb")
	s, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(); _ = os.Remove(path) })
	return s
}

func TestRecordLookup_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	lookups := []providers.Lookup{
		{Kind: providers.LookupCampsites, FacilityID: "232447", CheckedAt: now.Add(-time.Hour), Success: true, Count: 238},
		{Kind: providers.LookupMonth, FacilityID: "232447", Month: july, CheckedAt: now.Add(-time.Minute), Success: true, Count: 238},
		{Kind: providers.LookupMonth, FacilityID: "232447", Month: july.AddDate(0, 1, 0), CheckedAt: now, Err: "status 500"},
		{Kind: providers.LookupMonth, FacilityID: "232450", Month: july, CheckedAt: now, Success: true},
	}
	for _, l := range lookups {
		if err := s.RecordLookup(ctx, "run-1", l); err != nil {
			t.Fatalf("record lookup: %v", err)
		}
	}
	// Lookups outside a run have no run id.
	if err := s.RecordLookup(ctx, "", providers.Lookup{Kind: providers.LookupCampsites, FacilityID: "232449", Err: "timeout"}); err != nil {
		t.Fatalf("record lookup without run: %v", err)
	}

	st, err := s.LookupStatsFor(ctx, "232447", time.Time{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if !st.Last.Equal(now) {
		t.Fatalf("last lookup: got %v want %v", st.Last, now)
	}

	recent, err := s.LookupStatsFor(ctx, "232447", now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("stats since: %v", err)
	}
	if recent.Total != 2 {
		t.Fatalf("expected 2 recent lookups, got %d", recent.Total)
	}

	none, err := s.LookupStatsFor(ctx, "999999", time.Time{})
	if err != nil {
		t.Fatalf("stats for unknown campground: %v", err)
	}
	if none.Total != 0 || !none.Last.IsZero() {
		t.Fatalf("expected empty stats, got %+v", none)
	}
}

func TestRecordRun_RecentRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 23, 0, 0, 0, 0, time.UTC)
	base := time.Now().UTC().Truncate(time.Second)

	reports := []report.Report{
		{Facility: "Upper Pines", FacilityID: "232447", Start: start, End: end, Nights: 3,
			Status: report.StatusMatch, Matches: []report.Site{{ID: "1"}, {ID: "2"}}, CheckedAt: base},
		{Facility: "Lower Pines", FacilityID: "232450", Start: start, End: end, Nights: 3,
			Status: report.StatusNoMatch, PartialTotal: 5, SkippedMonths: 1, CheckedAt: base.Add(time.Second)},
		{Facility: "North Pines", FacilityID: "232449", Start: start, End: end, Nights: 3,
			Status: report.StatusNoData, Err: "could not retrieve campsite information", CheckedAt: base.Add(2 * time.Second)},
	}
	for _, r := range reports {
		if err := s.RecordRun(ctx, "run-1", r); err != nil {
			t.Fatalf("record run: %v", err)
		}
	}

	rows, err := s.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].CampgroundID != "232449" || rows[0].Status != string(report.StatusNoData) || rows[0].Err == "" {
		t.Fatalf("unexpected newest row: %+v", rows[0])
	}
	if rows[1].Partial != 5 || rows[1].SkippedMonths != 1 || rows[1].Err != "" {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}

	all, err := s.RecentRuns(ctx, 0)
	if err != nil {
		t.Fatalf("recent runs default limit: %v", err)
	}
	if len(all) != 3 || all[2].Matches != 2 || all[2].RunID != "run-1" {
		t.Fatalf("unexpected rows: %+v", all)
	}
	if !all[2].Start.Equal(start) || all[2].Nights != 3 {
		t.Fatalf("dates not round-tripped: %+v", all[2])
	}
}

func TestOpenReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ro.duckdb")
	s, err := db.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.RecordRun(context.Background(), "run-1", report.Report{Facility: "Upper Pines", FacilityID: "232447",
		Start: time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 7, 21, 0, 0, 0, 0, time.UTC),
		Nights: 1, Status: report.StatusMatch}); err != nil {
		t.Fatalf("record: %v", err)
	}
	s.Close()

	ro, err := db.OpenReadOnly(path)
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer ro.Close()
	rows, err := ro.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}
