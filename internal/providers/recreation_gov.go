package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/brensch/campwatch/internal/campsite"
	"github.com/brensch/campwatch/internal/httpx"
	"github.com/brensch/campwatch/internal/metrics"
	"github.com/brensch/campwatch/internal/ridb"
)

const (
	DefaultAvailabilityBaseURL = "https://www.recreation.gov"
	// DefaultMonthDelay is the pause between consecutive month requests.
	DefaultMonthDelay = time.Second
	// DefaultWindowDays is used when a calendar request has no end date.
	DefaultWindowDays = 30
)

type RecreationGov struct {
	client     *http.Client
	ridb       *ridb.Client
	baseURL    string
	userAgent  string
	monthDelay time.Duration
	onLookup   LookupFunc
	logger     *slog.Logger
}

// Options configures a RecreationGov provider. Zero values take defaults.
type Options struct {
	APIKey              string
	RIDBBaseURL         string
	AvailabilityBaseURL string
	// MonthDelay is the politeness pause between month requests. Negative
	// disables it.
	MonthDelay time.Duration
	Timeout    time.Duration
	// UserAgent overrides the randomly chosen anonymous user agent.
	UserAgent string
	OnLookup  LookupFunc
}

func NewRecreationGov(opts Options) *RecreationGov {
	client := httpx.New(opts.Timeout)
	rc := ridb.New(opts.APIKey, client)
	if opts.RIDBBaseURL != "" {
		rc.WithBaseURL(opts.RIDBBaseURL)
	}
	base := opts.AvailabilityBaseURL
	if base == "" {
		base = DefaultAvailabilityBaseURL
	}
	delay := opts.MonthDelay
	switch {
	case delay == 0:
		delay = DefaultMonthDelay
	case delay < 0:
		delay = 0
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = httpx.RandomUserAgent()
	}
	return &RecreationGov{
		client:     client,
		ridb:       rc,
		baseURL:    base,
		userAgent:  ua,
		monthDelay: delay,
		onLookup:   opts.OnLookup,
		logger:     slog.Default(),
	}
}

func (r *RecreationGov) Name() string { return "recreation_gov" }

// SetLookupFunc replaces the fetch observer.
func (r *RecreationGov) SetLookupFunc(fn LookupFunc) { r.onLookup = fn }

// CampsiteURL returns the booking page for a campsite.
func (r *RecreationGov) CampsiteURL(campsiteID string) string {
	if campsiteID == "" {
		return ""
	}
	return "https://www.recreation.gov/camping/campsites/" + campsiteID
}

// CampgroundURL returns the campground landing page.
func (r *RecreationGov) CampgroundURL(facilityID string) string {
	if facilityID == "" {
		return ""
	}
	return "https://www.recreation.gov/camping/campgrounds/" + facilityID
}

func (r *RecreationGov) record(l Lookup) {
	if r.onLookup == nil {
		return
	}
	if l.CheckedAt.IsZero() {
		l.CheckedAt = time.Now()
	}
	r.onLookup(l)
}

// FetchCatalog loads every campsite of a facility from RIDB. Any failure is
// returned to the caller.
func (r *RecreationGov) FetchCatalog(ctx context.Context, facilityID string) (campsite.Catalog, error) {
	endpoint := fmt.Sprintf("/facilities/%s/campsites", url.PathEscape(facilityID))
	catalog := campsite.Catalog{}
	for raw, err := range r.ridb.Records(ctx, endpoint, nil) {
		if err != nil {
			return nil, fmt.Errorf("fetch campsites for facility %s: %w", facilityID, err)
		}
		site, err := decodeCampsite(raw)
		if err != nil {
			return nil, fmt.Errorf("facility %s: %w", facilityID, err)
		}
		catalog[site.ID] = site
	}
	return catalog, nil
}

// BuildCatalog is FetchCatalog with the monitoring failure policy applied:
// failures are logged and an empty catalog is returned. Callers treat an empty
// catalog as "could not retrieve campsite information". ErrAuth is the
// exception and is returned, since no later fetch can succeed without a key.
func (r *RecreationGov) BuildCatalog(ctx context.Context, facilityID string) (campsite.Catalog, error) {
	r.logger.Info("fetching campsite information", slog.String("facility", facilityID))
	catalog, err := r.FetchCatalog(ctx, facilityID)
	if err != nil {
		r.record(Lookup{Kind: LookupCampsites, FacilityID: facilityID, Err: err.Error()})
		if errors.Is(err, ridb.ErrAuth) {
			return campsite.Catalog{}, err
		}
		r.logger.Error("fetch campsites failed", slog.String("facility", facilityID), slog.Any("err", err))
		return campsite.Catalog{}, nil
	}
	r.record(Lookup{Kind: LookupCampsites, FacilityID: facilityID, Success: true, Count: len(catalog)})
	r.logger.Info("fetched campsites", slog.String("facility", facilityID), slog.Int("count", len(catalog)))
	return catalog, nil
}

// SearchFacilities pages through RIDB camping facilities matching query.
func (r *RecreationGov) SearchFacilities(ctx context.Context, query string) ([]FacilityInfo, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("activity", "CAMPING")
	var out []FacilityInfo
	for raw, err := range r.ridb.Records(ctx, "/facilities", params) {
		if err != nil {
			return nil, fmt.Errorf("search facilities: %w", err)
		}
		f, err := decodeFacility(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// minimal response struct: availability is monthly and keyed by campsite id and date
type recGovResp struct {
	Campsites map[string]struct {
		Availabilities map[string]string `json:"availabilities"`
	} `json:"campsites"`
}

// FetchMonth fetches one month of availability for a facility. month may be
// any day; it is normalized to the first of its month.
func (r *RecreationGov) FetchMonth(ctx context.Context, facilityID string, month time.Time) (map[string]campsite.Calendar, error) {
	first := monthStart(month)
	base := fmt.Sprintf("%s/api/camps/availability/campground/%s/month", r.baseURL, url.PathEscape(facilityID))
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	// Recreation.gov expects RFC3339 with milliseconds and Zulu time.
	q.Set("start_date", first.Format("2006-01-02T15:04:05.000Z"))
	u.RawQuery = q.Encode()
	r.logger.Info("fetching availability", slog.String("facility", facilityID), slog.String("month", first.Format("January 2006")), slog.String("url", u.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create availability request: %w", err)
	}
	httpx.SpoofBrowserHeaders(req, r.userAgent)

	started := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		metrics.ObserveRequest(metrics.EndpointMonth, started, 0, err)
		return nil, fmt.Errorf("availability GET failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	metrics.ObserveRequest(metrics.EndpointMonth, started, resp.StatusCode, err)
	if err != nil {
		return nil, fmt.Errorf("availability read body failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recreation.gov availability status %d; body: %s", resp.StatusCode, httpx.ClipBody(body))
	}
	var parsed recGovResp
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("availability JSON decode failed: %w; body: %s", err, httpx.ClipBody(body))
	}
	out := make(map[string]campsite.Calendar, len(parsed.Campsites))
	for siteID, data := range parsed.Campsites {
		out[siteID] = campsite.Calendar(data.Availabilities)
	}
	r.logger.Debug("retrieved availability", slog.String("facility", facilityID), slog.Int("campsites", len(out)))
	return out, nil
}

// CollectCalendar fetches every month touching [start, end], merges them in
// chronological order and returns only the dates inside the window. A month
// that fails is logged and skipped. A zero end defaults to start plus
// DefaultWindowDays.
func (r *RecreationGov) CollectCalendar(ctx context.Context, facilityID string, start, end time.Time) (CalendarResult, error) {
	if start.IsZero() {
		return CalendarResult{}, fmt.Errorf("%w: start date is required", campsite.ErrValidation)
	}
	if end.IsZero() {
		end = start.AddDate(0, 0, DefaultWindowDays)
	}
	if campsite.Day(end).Before(campsite.Day(start)) {
		return CalendarResult{}, fmt.Errorf("%w: end date %s is before start date %s", campsite.ErrValidation,
			end.Format(campsite.DayLayout), start.Format(campsite.DayLayout))
	}

	limit := rate.Inf
	if r.monthDelay > 0 {
		limit = rate.Every(r.monthDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	merged := campsite.Availability{}
	var result CalendarResult
	for _, month := range PlanMonths(start, end) {
		if err := limiter.Wait(ctx); err != nil {
			return CalendarResult{}, err
		}
		cals, err := r.FetchMonth(ctx, facilityID, month)
		result.Months = append(result.Months, MonthLookup{Month: month, Err: err})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return CalendarResult{}, ctxErr
			}
			r.logger.Error("availability month skipped",
				slog.String("facility", facilityID),
				slog.Time("month", month),
				slog.Any("err", err))
			metrics.MonthsSkipped.WithLabelValues(facilityID).Inc()
			r.record(Lookup{Kind: LookupMonth, FacilityID: facilityID, Month: month, Err: err.Error()})
			continue
		}
		r.record(Lookup{Kind: LookupMonth, FacilityID: facilityID, Month: month, Success: true, Count: len(cals)})
		merged.MergeMonth(cals)
	}
	result.Availability = merged.Within(start, end)
	return result, nil
}

// PlanMonths returns the first day of every calendar month touching
// [start, end], oldest first.
func PlanMonths(start, end time.Time) []time.Time {
	cur := monthStart(start)
	last := monthStart(end)
	var out []time.Time
	for !cur.After(last) {
		out = append(out, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
