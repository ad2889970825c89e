// Package monitor drives availability checks across the facility registry and
// a list of stay windows, one request at a time.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/campwatch/internal/campsite"
	"github.com/brensch/campwatch/internal/config"
	"github.com/brensch/campwatch/internal/metrics"
	"github.com/brensch/campwatch/internal/notify"
	"github.com/brensch/campwatch/internal/providers"
	"github.com/brensch/campwatch/internal/report"
	"github.com/brensch/campwatch/internal/ridb"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Source supplies campsite metadata and availability for a facility.
// providers.RecreationGov satisfies it.
type Source interface {
	BuildCatalog(ctx context.Context, facilityID string) (campsite.Catalog, error)
	CollectCalendar(ctx context.Context, facilityID string, start, end time.Time) (providers.CalendarResult, error)
	CampsiteURL(campsiteID string) string
	CampgroundURL(facilityID string) string
}

// Store is the write-only audit log. db.Store satisfies it.
type Store interface {
	RecordLookup(ctx context.Context, runID string, l providers.Lookup) error
	RecordRun(ctx context.Context, runID string, r report.Report) error
}

type Options struct {
	Facilities []config.Facility
	// IterationDelay spaces successive facility/window checks. Zero disables it.
	IterationDelay time.Duration
	Notifier       notify.Notifier
	Store          Store
	// OnRun, if set, receives the reports of every completed run.
	OnRun  func([]report.Report)
	Logger *slog.Logger
}

type Monitor struct {
	source         Source
	facilities     []config.Facility
	iterationDelay time.Duration
	notifier       notify.Notifier
	store          Store
	onRun          func([]report.Report)
	logger         *slog.Logger
	now            func() time.Time

	mu      sync.Mutex
	runID   string
	latest  []report.Report
	lastRun time.Time
}

func New(source Source, opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	facilities := make([]config.Facility, len(opts.Facilities))
	copy(facilities, opts.Facilities)
	return &Monitor{
		source:         source,
		facilities:     facilities,
		iterationDelay: opts.IterationDelay,
		notifier:       opts.Notifier,
		store:          opts.Store,
		onRun:          opts.OnRun,
		logger:         logger,
		now:            time.Now,
	}
}

// Facilities returns the registry in check order.
func (m *Monitor) Facilities() []config.Facility {
	out := make([]config.Facility, len(m.facilities))
	copy(out, m.facilities)
	return out
}

// ObserveLookup forwards an upstream lookup to the store, tagged with the
// current run. Pass it to providers.RecreationGov.SetLookupFunc.
func (m *Monitor) ObserveLookup(l providers.Lookup) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	runID := m.runID
	m.mu.Unlock()
	// The lookup callback carries no context; the write is local and short.
	if err := m.store.RecordLookup(context.Background(), runID, l); err != nil {
		m.logger.Warn("record lookup failed", slog.Any("err", err))
	}
}

// Latest returns the reports of the most recent completed run and when it
// finished.
func (m *Monitor) Latest() ([]report.Report, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]report.Report, len(m.latest))
	copy(out, m.latest)
	return out, m.lastRun
}

// Run checks every facility against every window, in registry then window
// order. A pair that cannot be checked is reported as no data and the run
// continues. Only a missing or rejected API key, or ctx ending, stops it
// early; the reports gathered so far are returned with the error.
func (m *Monitor) Run(ctx context.Context, windows []Window) ([]report.Report, error) {
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	m.mu.Lock()
	m.runID = runID
	m.mu.Unlock()
	m.logger.Info("starting run",
		slog.String("run", runID),
		slog.Int("facilities", len(m.facilities)),
		slog.Int("windows", len(windows)))

	limit := rate.Inf
	if m.iterationDelay > 0 {
		limit = rate.Every(m.iterationDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	reports := make([]report.Report, 0, len(m.facilities)*len(windows))
	for _, f := range m.facilities {
		for _, w := range windows {
			if err := limiter.Wait(ctx); err != nil {
				return reports, err
			}
			r, err := m.Check(ctx, f, w)
			if err != nil {
				m.logger.Error("run aborted", slog.String("run", runID), slog.String("facility", f.Name), slog.Any("err", err))
				return reports, err
			}
			reports = append(reports, r)
			if m.store != nil {
				if err := m.store.RecordRun(ctx, runID, r); err != nil {
					m.logger.Warn("record run failed", slog.Any("err", err))
				}
			}
		}
	}

	m.mu.Lock()
	m.latest = reports
	m.lastRun = m.now()
	m.mu.Unlock()

	m.notify(ctx, reports)
	if m.onRun != nil {
		m.onRun(reports)
	}
	m.logger.Info("run complete", slog.String("run", runID), slog.Int("reports", len(reports)))
	return reports, nil
}

// Check runs the full pipeline for one facility and window. Failures that
// leave the pair unchecked become a no-data report; the returned error is
// reserved for ErrAuth and context cancellation.
func (m *Monitor) Check(ctx context.Context, f config.Facility, w Window) (report.Report, error) {
	r := report.Report{
		Facility:      f.Name,
		FacilityID:    f.ID,
		CampgroundURL: m.source.CampgroundURL(f.ID),
		Start:         w.Start,
		End:           w.End,
		Nights:        w.Nights(),
		CheckedAt:     m.now(),
	}
	log := m.logger.With(slog.String("facility", f.Name), slog.String("window", w.String()))

	catalog, err := m.source.BuildCatalog(ctx, f.ID)
	if err != nil {
		if fatal(ctx, err) {
			return r, err
		}
		return m.noData(r, err), nil
	}
	if len(catalog) == 0 {
		log.Warn("no campsite information")
		return m.noData(r, errors.New("could not retrieve campsite information")), nil
	}

	cal, err := m.source.CollectCalendar(ctx, f.ID, w.Start, w.End)
	if err != nil {
		if fatal(ctx, err) {
			return r, err
		}
		return m.noData(r, err), nil
	}
	r.SkippedMonths = cal.Skipped()
	if len(cal.Months) > 0 && r.SkippedMonths == len(cal.Months) {
		log.Warn("no availability months could be fetched")
		return m.noData(r, errors.New("could not retrieve availability")), nil
	}

	catalog.Ingest(cal.Availability)
	matches, err := catalog.SelectConsecutive(w.Start, w.Nights())
	if err != nil {
		return m.noData(r, err), nil
	}

	if len(matches) > 0 {
		r.Status = report.StatusMatch
		for _, s := range matches.Sorted() {
			r.Matches = append(r.Matches, m.site(s))
		}
		metrics.Matches.WithLabelValues(f.ID).Add(float64(len(r.Matches)))
		log.Info("found availability", slog.Int("sites", len(r.Matches)))
	} else {
		r.Status = report.StatusNoMatch
		partial := catalog.SelectAny().Sorted()
		r.PartialTotal = len(partial)
		for _, s := range partial[:min(len(partial), report.PartialLimit)] {
			r.Partial = append(r.Partial, m.site(s))
		}
		log.Info("no full-length availability", slog.Int("partial", r.PartialTotal))
	}
	metrics.Checks.WithLabelValues(string(r.Status)).Inc()
	return r, nil
}

func (m *Monitor) site(s *campsite.Campsite) report.Site {
	return report.Site{
		ID:       s.ID,
		Name:     s.Title(),
		SiteType: s.SiteType,
		Loop:     s.Loop,
		URL:      m.source.CampsiteURL(s.ID),
		Ranges:   s.Calendar.Ranges(),
	}
}

func (m *Monitor) noData(r report.Report, err error) report.Report {
	r.Status = report.StatusNoData
	r.Err = err.Error()
	metrics.Checks.WithLabelValues(string(r.Status)).Inc()
	m.logger.Error("facility not checked",
		slog.String("facility", r.Facility),
		slog.Time("start", r.Start),
		slog.Any("err", err))
	return r
}

func (m *Monitor) notify(ctx context.Context, reports []report.Report) {
	if m.notifier == nil {
		return
	}
	for _, r := range reports {
		msg := report.Summary(r)
		if msg == "" {
			continue
		}
		if err := m.notifier.Send(ctx, msg); err != nil {
			m.logger.Warn("notification failed",
				slog.String("notifier", m.notifier.Name()),
				slog.String("facility", r.Facility),
				slog.Any("err", err))
		}
	}
}

func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, ridb.ErrAuth) || ctx.Err() != nil
}
