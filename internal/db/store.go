package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brensch/campwatch/internal/providers"
	"github.com/brensch/campwatch/internal/report"
	_ "github.com/marcboeker/go-duckdb"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store is an append-only audit log of upstream lookups and check results.
// Nothing in the check pipeline reads it back.
type Store struct {
	DB *sql.DB
}

func Open(path string) (*Store, error) {
	return OpenWithMode(path, "READ_WRITE")
}

// OpenReadOnly opens the database in READ_ONLY mode (no write lock)
func OpenReadOnly(path string) (*Store, error) { return OpenWithMode(path, "READ_ONLY") }

// OpenWithMode allows specifying DuckDB access_mode (READ_WRITE or READ_ONLY)
func OpenWithMode(path, mode string) (*Store, error) {
	if mode == "" {
		mode = "READ_WRITE"
	}
	dsn := fmt.Sprintf("%s?access_mode=%s", path, mode)
	slog.Debug("connecting to duckdb", slog.String("dsn", dsn))
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if strings.EqualFold(mode, "READ_WRITE") {
		if err := migrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func migrate(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(schemaBytes))
	return err
}

// Models

// RunRow is one recorded facility/window check.
type RunRow struct {
	RunID         string
	Facility      string
	CampgroundID  string
	Start         time.Time
	End           time.Time
	Nights        int
	Status        string
	Matches       int
	Partial       int
	SkippedMonths int
	Err           string
	CheckedAt     time.Time
}

// LookupStats summarizes the lookup log for one campground.
type LookupStats struct {
	Total  int64
	Failed int64
	Last   time.Time
}

// Writes

func (s *Store) RecordLookup(ctx context.Context, runID string, l providers.Lookup) error {
	checked := l.CheckedAt
	if checked.IsZero() {
		checked = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO lookup_log(run_id, kind, campground_id, month, checked_at, success, err, campsite_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, nullString(runID), l.Kind, l.FacilityID, nullTime(l.Month), checked, l.Success, nullString(l.Err), l.Count)
	return err
}

func (s *Store) RecordRun(ctx context.Context, runID string, r report.Report) error {
	checked := r.CheckedAt
	if checked.IsZero() {
		checked = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO run_log(run_id, facility, campground_id, start_date, end_date, nights, status, matches, partial, skipped_months, err, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, r.Facility, r.FacilityID, r.Start, r.End, r.Nights, string(r.Status),
		len(r.Matches), r.PartialTotal, r.SkippedMonths, nullString(r.Err), checked)
	return err
}

// Reads, for the history command.

// RecentRuns returns the newest recorded checks first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT run_id, facility, campground_id, start_date, end_date, nights, status,
		       matches, partial, skipped_months, coalesce(err, ''), checked_at
		FROM run_log
		ORDER BY checked_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.Facility, &r.CampgroundID, &r.Start, &r.End, &r.Nights, &r.Status,
			&r.Matches, &r.Partial, &r.SkippedMonths, &r.Err, &r.CheckedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LookupStatsFor counts lookups for a campground, optionally only those since
// the given time.
func (s *Store) LookupStatsFor(ctx context.Context, campgroundID string, since time.Time) (LookupStats, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE NOT success),
		       max(checked_at)
		FROM lookup_log
		WHERE campground_id=? AND checked_at >= ?
	`, campgroundID, since)
	var st LookupStats
	var last sql.NullTime
	if err := row.Scan(&st.Total, &st.Failed, &last); err != nil {
		return LookupStats{}, err
	}
	if last.Valid {
		st.Last = last.Time
	}
	return st, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
