package campsite

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func day(s string) time.Time {
	d, err := time.Parse(DayLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func key(s string) string { return s + "T00:00:00Z" }

func TestDay(t *testing.T) {
	ts := time.Date(2025, 1, 2, 12, 34, 56, 123, time.FixedZone("X", 7*3600))
	got := Day(ts)
	want := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseDateKey(t *testing.T) {
	got, err := ParseDateKey("2025-07-20T00:00:00Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(day("2025-07-20")) {
		t.Fatalf("got %v", got)
	}
	if _, err := ParseDateKey("2025"); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestCalendar_Ranges(t *testing.T) {
	cal := Calendar{
		key("2025-07-20"): StatusAvailable,
		key("2025-07-21"): StatusAvailable,
		key("2025-07-22"): "Reserved",
		key("2025-07-24"): StatusAvailable,
		key("2025-07-26"): StatusAvailable,
		key("2025-07-27"): StatusAvailable,
		key("2025-07-28"): StatusAvailable,
	}
	got := cal.Ranges()
	want := []string{"2025-07-20 to 2025-07-21", "2025-07-24", "2025-07-26 to 2025-07-28"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if n := cal.AvailableNights(); n != 6 {
		t.Fatalf("AvailableNights = %d, want 6", n)
	}
	if got := (Calendar{key("2025-07-22"): "Reserved"}).Ranges(); got != nil {
		t.Fatalf("expected no ranges, got %v", got)
	}
}

func TestCalendar_Within(t *testing.T) {
	cal := Calendar{}
	for d := day("2025-07-01"); d.Month() == time.July; d = d.AddDate(0, 0, 1) {
		cal[DateKey(d)] = StatusAvailable
	}
	got := cal.Within(day("2025-07-20"), day("2025-07-23"))
	if len(got) != 4 {
		t.Fatalf("expected 4 dates, got %d: %v", len(got), got)
	}
	for k := range got {
		d, _ := ParseDateKey(k)
		if d.Before(day("2025-07-20")) || d.After(day("2025-07-23")) {
			t.Fatalf("date %s outside window", k)
		}
	}
}

func TestCampsite_MergeCalendar(t *testing.T) {
	s := &Campsite{ID: "1"}
	first := Calendar{key("2025-07-20"): StatusAvailable}
	s.MergeCalendar(first)
	first[key("2025-07-21")] = "Reserved"
	if _, ok := s.Calendar[key("2025-07-21")]; ok {
		t.Fatalf("first population must copy, not alias")
	}
	s.MergeCalendar(Calendar{key("2025-07-20"): "Reserved", key("2025-07-22"): StatusAvailable})
	want := Calendar{key("2025-07-20"): "Reserved", key("2025-07-22"): StatusAvailable}
	if !reflect.DeepEqual(s.Calendar, want) {
		t.Fatalf("got %v want %v", s.Calendar, want)
	}
}

func TestAvailability_MergeMonth_Idempotent(t *testing.T) {
	month := map[string]Calendar{
		"1": {key("2025-07-20"): StatusAvailable, key("2025-07-21"): "Reserved"},
		"2": {key("2025-07-20"): "Reserved"},
	}
	once := Availability{}
	once.MergeMonth(month)
	twice := Availability{}
	twice.MergeMonth(month)
	twice.MergeMonth(month)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merging twice changed result: %v vs %v", once, twice)
	}
}

func TestAvailability_MergeMonth_LastWriteWins(t *testing.T) {
	a := Availability{}
	a.MergeMonth(map[string]Calendar{"1": {key("2025-07-31"): StatusAvailable, key("2025-07-30"): StatusAvailable}})
	a.MergeMonth(map[string]Calendar{"1": {key("2025-07-31"): "Reserved", key("2025-08-01"): StatusAvailable}})

	want := Calendar{
		key("2025-07-30"): StatusAvailable,
		key("2025-07-31"): "Reserved",
		key("2025-08-01"): StatusAvailable,
	}
	if !reflect.DeepEqual(a["1"], want) {
		t.Fatalf("got %v want %v", a["1"], want)
	}
}

func TestAvailability_Within_DropsEmpty(t *testing.T) {
	a := Availability{
		"1": {key("2025-07-01"): StatusAvailable, key("2025-07-20"): StatusAvailable},
		"2": {key("2025-07-01"): StatusAvailable},
	}
	got := a.Within(day("2025-07-20"), day("2025-07-23"))
	if len(got) != 1 || len(got["1"]) != 1 {
		t.Fatalf("unexpected filtered availability: %v", got)
	}
	if len(a["1"]) != 2 {
		t.Fatalf("Within mutated its receiver")
	}
}

func TestCatalog_Ingest_IgnoresUnknownIDs(t *testing.T) {
	c := NewCatalog(&Campsite{ID: "1"})
	c.Ingest(Availability{
		"1": {key("2025-07-20"): StatusAvailable},
		"9": {key("2025-07-20"): StatusAvailable},
	})
	if len(c) != 1 {
		t.Fatalf("ingest inserted unknown ids: %v", c)
	}
	if !c["1"].Calendar.Available(day("2025-07-20")) {
		t.Fatalf("calendar not merged")
	}
}

func TestSelectConsecutive(t *testing.T) {
	c := NewCatalog(&Campsite{ID: "1", Calendar: Calendar{
		key("2025-07-20"): StatusAvailable,
		key("2025-07-21"): StatusAvailable,
		key("2025-07-22"): "Reserved",
	}}, &Campsite{ID: "2"})

	got, err := c.SelectConsecutive(day("2025-07-20"), 2)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, ok := got["1"]; !ok || len(got) != 1 {
		t.Fatalf("expected site 1 only for 2 nights, got %v", got)
	}

	got, err = c.SelectConsecutive(day("2025-07-20"), 3)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no match for 3 nights, got %v", got)
	}
}

func TestSelectConsecutive_MissingDateIsUnavailable(t *testing.T) {
	c := NewCatalog(&Campsite{ID: "1", Calendar: Calendar{
		key("2025-07-20"): StatusAvailable,
		key("2025-07-22"): StatusAvailable,
	}})
	got, err := c.SelectConsecutive(day("2025-07-20"), 3)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("gap should break the run, got %v", got)
	}
}

func TestSelectConsecutive_RejectsBadInput(t *testing.T) {
	c := NewCatalog(&Campsite{ID: "1", Calendar: Calendar{key("2025-07-20"): StatusAvailable}})
	for _, nights := range []int{0, -1} {
		if _, err := c.SelectConsecutive(day("2025-07-20"), nights); !errors.Is(err, ErrValidation) {
			t.Fatalf("nights=%d: expected ErrValidation, got %v", nights, err)
		}
	}
	if _, err := c.SelectConsecutive(time.Time{}, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero start: expected ErrValidation, got %v", err)
	}
}

func TestSelectAny(t *testing.T) {
	c := NewCatalog(
		&Campsite{ID: "1", Calendar: Calendar{key("2025-07-20"): StatusAvailable}},
		&Campsite{ID: "2", Calendar: Calendar{key("2025-07-20"): "Reserved"}},
		&Campsite{ID: "3"},
	)
	strict, err := c.SelectConsecutive(day("2025-07-21"), 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(strict) != 0 {
		t.Fatalf("expected no consecutive match, got %v", strict)
	}
	anyAvail := c.SelectAny()
	if _, ok := anyAvail["1"]; !ok || len(anyAvail) != 1 {
		t.Fatalf("expected site 1 only, got %v", anyAvail)
	}
}

func TestSelectors_DoNotMutate(t *testing.T) {
	cal := Calendar{key("2025-07-20"): StatusAvailable}
	c := NewCatalog(&Campsite{ID: "1", Calendar: cal}, &Campsite{ID: "2"})
	_, _ = c.SelectConsecutive(day("2025-07-20"), 1)
	_ = c.SelectAny()
	if len(c) != 2 || len(c["1"].Calendar) != 1 || c["2"].Calendar != nil {
		t.Fatalf("selectors mutated the catalog: %v", c)
	}
}

func TestEmptyCatalog_NoMatches(t *testing.T) {
	got, err := Catalog{}.SelectConsecutive(day("2025-07-20"), 2)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 0 || len(Catalog{}.SelectAny()) != 0 {
		t.Fatalf("empty catalog produced matches")
	}
}

func TestSorted(t *testing.T) {
	c := NewCatalog(&Campsite{ID: "3"}, &Campsite{ID: "1"}, &Campsite{ID: "2"})
	var ids []string
	for _, s := range c.Sorted() {
		ids = append(ids, s.ID)
	}
	if !reflect.DeepEqual(ids, []string{"1", "2", "3"}) {
		t.Fatalf("got %v", ids)
	}
}
