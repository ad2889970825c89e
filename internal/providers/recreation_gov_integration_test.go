package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/brensch/campwatch/internal/ridb"
)

// rewriteTransport rewrites outgoing requests to hit a test server instead of the real host.
type rewriteTransport struct{ target *url.URL }

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone to avoid mutating caller's request
	r2 := req.Clone(req.Context())
	r2.URL.Scheme = rt.target.Scheme
	r2.URL.Host = rt.target.Host
	// Ensure Host header matches (some servers check it)
	r2.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r2)
}

// ridbHandler serves a RIDB-style campsite listing of n sites in pages of 50.
func ridbHandler(t *testing.T, n int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") == "" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var recs []map[string]any
		for i := offset; i < n && i < offset+limit; i++ {
			recs = append(recs, map[string]any{
				// numeric ids exercise the string-or-number decoding
				"CampsiteID":   1000 + i,
				"CampsiteName": fmt.Sprintf("%03d", i),
				"CampsiteType": "STANDARD NONELECTRIC",
				"Loop":         "Upper Pines",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"RECDATA": recs,
			"METADATA": map[string]any{
				"RESULTS": map[string]int{"CURRENT_COUNT": len(recs), "TOTAL_COUNT": n},
			},
		})
	}
}

func newTestProvider(t *testing.T, srv *httptest.Server, key string) *RecreationGov {
	t.Helper()
	targetURL, _ := url.Parse(srv.URL)
	p := NewRecreationGov(Options{APIKey: key, MonthDelay: -1})
	p.client.Transport = &rewriteTransport{target: targetURL}
	return p
}

func TestRecreationGov_BuildCatalog_Paginates(t *testing.T) {
	var offsets []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/facilities/232447/campsites", func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		ridbHandler(t, 120)(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var lookups []Lookup
	p := newTestProvider(t, srv, "key")
	p.SetLookupFunc(func(l Lookup) { lookups = append(lookups, l) })

	cat, err := p.BuildCatalog(context.Background(), "232447")
	if err != nil {
		t.Fatalf("BuildCatalog error: %v", err)
	}
	if len(cat) != 120 {
		t.Fatalf("expected 120 campsites, got %d", len(cat))
	}
	site, ok := cat["1000"]
	if !ok {
		t.Fatalf("numeric id not normalized to string key")
	}
	if site.Name != "000" || site.Loop != "Upper Pines" || site.SiteType != "STANDARD NONELECTRIC" {
		t.Fatalf("unexpected site: %+v", site)
	}
	if site.Calendar != nil {
		t.Fatalf("calendar should be unset before availability is merged")
	}
	if strings.Join(offsets, ",") != "0,50,100" {
		t.Fatalf("unexpected offsets: %v", offsets)
	}
	if len(lookups) != 1 || !lookups[0].Success || lookups[0].Count != 120 || lookups[0].Kind != LookupCampsites {
		t.Fatalf("unexpected lookups: %+v", lookups)
	}
}

func TestRecreationGov_BuildCatalog_TransportFailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // every request now fails at the transport

	p := newTestProvider(t, srv, "key")
	cat, err := p.BuildCatalog(context.Background(), "232447")
	if err != nil {
		t.Fatalf("expected degraded empty catalog, got error %v", err)
	}
	if cat == nil || len(cat) != 0 {
		t.Fatalf("expected empty non-nil catalog, got %v", cat)
	}
	matches, err := cat.SelectConsecutive(day("2025-07-20"), 2)
	if err != nil || len(matches) != 0 {
		t.Fatalf("expected zero matches, got %v (err %v)", matches, err)
	}

	if _, err := p.FetchCatalog(context.Background(), "232447"); err == nil {
		t.Fatalf("FetchCatalog should surface the transport error")
	}
}

func TestRecreationGov_BuildCatalog_MissingKeyIsFatal(t *testing.T) {
	srv := httptest.NewServer(ridbHandler(t, 1))
	defer srv.Close()

	p := newTestProvider(t, srv, "")
	_, err := p.BuildCatalog(context.Background(), "232447")
	if !errors.Is(err, ridb.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestRecreationGov_FetchCatalog_MissingIDIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"RECDATA": []map[string]any{{"CampsiteID": "1"}, {"CampsiteName": "no id"}},
			"METADATA": map[string]any{
				"RESULTS": map[string]int{"CURRENT_COUNT": 2, "TOTAL_COUNT": 2},
			},
		})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv, "key")
	_, err := p.FetchCatalog(context.Background(), "232447")
	if !errors.Is(err, ridb.ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
	cat, err := p.BuildCatalog(context.Background(), "232447")
	if err != nil || len(cat) != 0 {
		t.Fatalf("expected degraded empty catalog, got %v (err %v)", cat, err)
	}
}

func TestRecreationGov_SearchFacilities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/facilities" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("query") != "pines" || r.URL.Query().Get("activity") != "CAMPING" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"RECDATA": []map[string]any{
				{"FacilityID": "232447", "FacilityName": "UPPER PINES", "FacilityLatitude": 37.7, "FacilityLongitude": -119.5},
				{"FacilityID": "232450", "FacilityName": "LOWER PINES", "FacilityLatitude": "37.74", "FacilityLongitude": ""},
			},
			"METADATA": map[string]any{
				"RESULTS": map[string]int{"CURRENT_COUNT": 2, "TOTAL_COUNT": 2},
			},
		})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv, "key")
	got, err := p.SearchFacilities(context.Background(), "pines")
	if err != nil {
		t.Fatalf("SearchFacilities error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "232447" || got[1].Name != "LOWER PINES" {
		t.Fatalf("unexpected facilities: %+v", got)
	}
	if got[1].Lat != 37.74 || got[1].Lon != 0 {
		t.Fatalf("unexpected coordinates: %+v", got[1])
	}
}
