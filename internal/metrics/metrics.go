// Package metrics holds the Prometheus collectors shared by the fetchers and
// the monitor. Everything is registered on the default registry via promauto.
//
//   - campwatch_upstream_requests_total{endpoint, outcome}
//   - campwatch_upstream_request_duration_seconds{endpoint}
//   - campwatch_months_skipped_total{facility}
//   - campwatch_matches_total{facility}
//   - campwatch_checks_total{status}
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Endpoint labels.
const (
	EndpointRIDB  = "ridb"
	EndpointMonth = "month"
)

var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campwatch_upstream_requests_total",
		Help: "Upstream requests by endpoint and outcome (HTTP status code or \"error\").",
	}, []string{"endpoint", "outcome"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campwatch_upstream_request_duration_seconds",
		Help:    "Upstream request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	MonthsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campwatch_months_skipped_total",
		Help: "Availability months that could not be fetched and were skipped.",
	}, []string{"facility"})

	Matches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campwatch_matches_total",
		Help: "Campsites found with the full requested run of nights.",
	}, []string{"facility"})

	Checks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campwatch_checks_total",
		Help: "Facility/window checks by resulting status.",
	}, []string{"status"})
)

// ObserveRequest records one upstream call. status is ignored when err is set.
func ObserveRequest(endpoint string, started time.Time, status int, err error) {
	UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
	outcome := "error"
	if err == nil {
		outcome = strconv.Itoa(status)
	}
	UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}
